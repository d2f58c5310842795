// Package policy validates registration and profile fields.
package policy

import (
	"fmt"
	"strings"
)

// Violation lists every rule a field failed. Passwords report all unmet
// rules together; email and phone report a single reason.
type Violation struct {
	Field   string
	Reasons []string
}

func (v *Violation) Error() string {
	return strings.Join(v.Reasons, "; ")
}

func violation(field string, reasons ...string) *Violation {
	return &Violation{Field: field, Reasons: reasons}
}

// Merge joins several violations (nil entries skipped) into one, keeping order.
func Merge(errs ...error) error {
	var out *Violation
	for _, err := range errs {
		v, ok := err.(*Violation)
		if !ok || v == nil {
			continue
		}
		if out == nil {
			out = &Violation{Field: v.Field}
		} else {
			out.Field = fmt.Sprintf("%s,%s", out.Field, v.Field)
		}
		out.Reasons = append(out.Reasons, v.Reasons...)
	}
	if out == nil {
		return nil
	}
	return out
}
