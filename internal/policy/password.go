package policy

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	minPasswordLength = 8
	maxIdenticalRun   = 2
	minCharClasses    = 3
	specialChars      = `!@#$%^&*(),.?":{}|<>`
)

const (
	MsgPasswordTooShort = "Password must be at least 8 characters long"
	MsgPasswordRepeats  = "No more than 2 identical characters in a row"
	MsgMissingLower     = "Missing lowercase letter (a-z)"
	MsgMissingUpper     = "Missing uppercase letter (A-Z)"
	MsgMissingDigit     = "Missing number (0-9)"
	MsgMissingSpecial   = "Missing special character (e.g., !@#$%^&*)"
)

// CheckPassword returns nil for a strong password, otherwise a *Violation
// listing every unmet rule in a fixed order: length, repeats, then the
// missing character classes followed by the class-count summary.
func CheckPassword(password string) error {
	var reasons []string

	if utf8.RuneCountInString(password) < minPasswordLength {
		reasons = append(reasons, MsgPasswordTooShort)
	}
	if hasIdenticalRun(password, maxIdenticalRun+1) {
		reasons = append(reasons, MsgPasswordRepeats)
	}

	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(specialChars, r):
			special = true
		}
	}

	met := 0
	var missing []string
	for _, c := range []struct {
		ok  bool
		msg string
	}{
		{lower, MsgMissingLower},
		{upper, MsgMissingUpper},
		{digit, MsgMissingDigit},
		{special, MsgMissingSpecial},
	} {
		if c.ok {
			met++
		} else {
			missing = append(missing, c.msg)
		}
	}
	if met < minCharClasses {
		reasons = append(reasons, missing...)
		reasons = append(reasons, fmt.Sprintf(
			"Must meet at least 3 of: lowercase, uppercase, number, special character (currently %d/4)", met))
	}

	if len(reasons) == 0 {
		return nil
	}
	return violation("password", reasons...)
}

func hasIdenticalRun(s string, n int) bool {
	var prev rune
	run := 0
	for i, r := range s {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run >= n {
			return true
		}
		prev = r
	}
	return false
}
