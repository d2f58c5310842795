package policy

import (
	"regexp"
	"strings"
)

const maxEmailLength = 254

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

const (
	MsgEmailEmpty     = "Email cannot be empty"
	MsgEmailFormat    = "Invalid email format (must be like user@domain.com)"
	MsgEmailTooLong   = "Email too long (max 254 characters)"
	MsgEmailDoubleDot = "Email cannot contain consecutive dots"
	MsgEmailEdgeDot   = "Email cannot start or end with a dot"
)

// CheckEmail validates the shape of an email address after trimming
// surrounding whitespace.
func CheckEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return violation("email", MsgEmailEmpty)
	}
	if !emailPattern.MatchString(email) {
		return violation("email", MsgEmailFormat)
	}
	if len(email) > maxEmailLength {
		return violation("email", MsgEmailTooLong)
	}
	if strings.Contains(email, "..") {
		return violation("email", MsgEmailDoubleDot)
	}
	if strings.HasPrefix(email, ".") || strings.HasSuffix(email, ".") {
		return violation("email", MsgEmailEdgeDot)
	}
	return nil
}
