package auth

import "errors"

type Kind string

const (
	KindValidation         Kind = "validation_error"
	KindDuplicateUsername  Kind = "duplicate_username"
	KindAccountLocked      Kind = "account_locked"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindUserNotFound       Kind = "user_not_found"
	KindCodeNotFound       Kind = "code_not_found"
	KindCodeExpired        Kind = "code_expired"
	KindCodeMismatch       Kind = "code_mismatch"
	KindCodeAttempts       Kind = "code_attempts_exceeded"
	KindInvalidPhone       Kind = "invalid_phone"
	KindDelivery           Kind = "delivery_error"
	KindEncoding           Kind = "encoding_error"
	KindStore              Kind = "store_error"
	KindSessionInvalid     Kind = "session_invalid"
)

// Error is returned by every Service operation. Message is safe to show to
// the end user; Err keeps the cause for logs and errors.As.
type Error struct {
	Kind     Kind
	Message  string
	Attempts int // failed password attempts, for lockout and credential errors
	Err      error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the Err* values below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrDuplicateUsername  = &Error{Kind: KindDuplicateUsername}
	ErrAccountLocked      = &Error{Kind: KindAccountLocked}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrUserNotFound       = &Error{Kind: KindUserNotFound}
	ErrCodeNotFound       = &Error{Kind: KindCodeNotFound}
	ErrCodeExpired        = &Error{Kind: KindCodeExpired}
	ErrCodeMismatch       = &Error{Kind: KindCodeMismatch}
	ErrCodeAttempts       = &Error{Kind: KindCodeAttempts}
	ErrInvalidPhone       = &Error{Kind: KindInvalidPhone}
	ErrSessionInvalid     = &Error{Kind: KindSessionInvalid}
)

// KindOf returns the kind of an *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}
