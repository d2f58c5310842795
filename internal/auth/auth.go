// Package auth composes the credential codec, policy checks, lockout,
// verification codes and sessions into the register, login, verify and
// logout flows.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"streamflix/authd/internal/credential"
	"streamflix/authd/internal/lockout"
	"streamflix/authd/internal/model"
	"streamflix/authd/internal/policy"
	"streamflix/authd/internal/session"
	"streamflix/authd/internal/store"
	"streamflix/authd/internal/verification"
)

// State is where a caller stands in the sign-in flow. The presentation
// layer holds it; the service never does.
type State string

const (
	StateAnonymous            State = "anonymous"
	StateAwaitingVerification State = "awaiting_verification"
	StateAuthenticated        State = "authenticated"
	StateLocked               State = "locked"
)

const (
	msgUsernameEmpty   = "Username cannot be empty"
	msgUsernameTaken   = "Username already exists"
	msgEncoding        = "Invalid password encoding"
	msgUserNotFound    = "User not found"
	msgCodeNotFound    = "No verification code found. Please login again."
	msgCodeExpired     = "Verification code has expired"
	msgCodeMismatch    = "Invalid verification code"
	msgCodeAttempts    = "Too many incorrect codes. Please login again."
	msgSessionInvalid  = "Invalid or expired session"
	msgDeliveryFailed  = "Could not send the verification code"
	msgStoreFailure    = "A database error occurred, please try again"
	msgVerifySucceeded = "Verification successful"
)

type Service struct {
	users    store.Users
	guard    *lockout.Guard
	codes    *verification.Manager
	sessions *session.Manager
}

func NewService(users store.Users, guard *lockout.Guard, codes *verification.Manager, sessions *session.Manager) *Service {
	return &Service{users: users, guard: guard, codes: codes, sessions: sessions}
}

type RegisterInput struct {
	Username string
	Password string
	Name     string
	Phone    string
	Email    string
}

// LoginResult and VerifyResult carry the caller's next State on failure
// as well as on success.
type LoginResult struct {
	State   State
	Message string
}

type VerifyResult struct {
	State   State
	Session model.Session
	Message string
}

// Register validates the fields (email, phone, then password; the first
// failing field is reported), hashes the password and creates the user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	if strings.TrimSpace(in.Username) == "" {
		return model.User{}, newError(KindValidation, msgUsernameEmpty, nil)
	}
	for _, err := range []error{
		policy.CheckEmail(in.Email),
		policy.CheckPhone(in.Phone),
		policy.CheckPassword(in.Password),
	} {
		if err != nil {
			return model.User{}, newError(KindValidation, err.Error(), err)
		}
	}

	digest, salt, err := credential.Hash(in.Password, "")
	if err != nil {
		return model.User{}, s.hashError("register", err)
	}

	created, err := s.users.CreateUser(ctx, model.User{
		Username:     in.Username,
		PasswordHash: digest,
		Salt:         salt,
		Name:         in.Name,
		Phone:        in.Phone,
		Email:        in.Email,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return model.User{}, newError(KindDuplicateUsername, msgUsernameTaken, err)
		}
		return model.User{}, storeError("register", in.Username, err)
	}

	log.Printf("[auth][register] user registered: %s", created.Username)
	return created, nil
}

// Login checks the lock, then the password. A correct password resets the
// failure counter and sends a fresh verification code to the stored phone.
// A locked account, or a bad password that trips the lock, leaves the
// caller in StateLocked; other failures leave it anonymous.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	anon := LoginResult{State: StateAnonymous}

	locked, attempts, err := s.guard.Check(ctx, username)
	if err != nil {
		return anon, storeError("login", username, err)
	}
	if locked {
		log.Printf("[auth][login] rejected, account locked: %s (attempts=%d)", username, attempts)
		return LoginResult{State: StateLocked}, &Error{
			Kind:     KindAccountLocked,
			Message:  fmt.Sprintf("Account is locked. Try again later. Failed attempts: %d", attempts),
			Attempts: attempts,
		}
	}

	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return anon, newError(KindUserNotFound, msgUserNotFound, err)
		}
		return anon, storeError("login", username, err)
	}

	ok, err := credential.Verify(password, u.Salt, u.PasswordHash)
	if err != nil {
		return anon, s.hashError("login", err)
	}
	if !ok {
		n, nowLocked, err := s.guard.RecordFailure(ctx, username)
		if err != nil {
			return anon, storeError("login", username, err)
		}
		log.Printf("[auth][login] bad password: %s (attempts=%d locked=%t)", username, n, nowLocked)
		res := anon
		if nowLocked {
			res.State = StateLocked
		}
		return res, &Error{
			Kind:     KindInvalidCredentials,
			Message:  fmt.Sprintf("Invalid credentials. Failed attempts: %d", n),
			Attempts: n,
		}
	}

	if err := s.guard.RecordSuccess(ctx, username); err != nil {
		return anon, storeError("login", username, err)
	}

	hint, err := s.sendCode(ctx, "login", u)
	if err != nil {
		return anon, err
	}
	return LoginResult{State: StateAwaitingVerification, Message: hint}, nil
}

// VerifyCode consumes the pending code and opens a session. A rejected
// code leaves the caller awaiting verification, since a resend is still
// possible; a failure after the code is consumed leaves it anonymous.
func (s *Service) VerifyCode(ctx context.Context, username, code string) (VerifyResult, error) {
	if err := s.codes.Validate(ctx, username, strings.TrimSpace(code)); err != nil {
		awaiting := VerifyResult{State: StateAwaitingVerification}
		switch {
		case errors.Is(err, verification.ErrCodeNotFound):
			return awaiting, newError(KindCodeNotFound, msgCodeNotFound, err)
		case errors.Is(err, verification.ErrCodeExpired):
			log.Printf("[auth][verify] code expired for %s", username)
			return awaiting, newError(KindCodeExpired, msgCodeExpired, err)
		case errors.Is(err, verification.ErrCodeMismatch):
			log.Printf("[auth][verify] wrong code for %s", username)
			return awaiting, newError(KindCodeMismatch, msgCodeMismatch, err)
		case errors.Is(err, verification.ErrTooManyAttempts):
			log.Printf("[auth][verify] code attempts exhausted for %s", username)
			return awaiting, newError(KindCodeAttempts, msgCodeAttempts, err)
		default:
			return awaiting, storeError("verify", username, err)
		}
	}

	anon := VerifyResult{State: StateAnonymous}
	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return anon, newError(KindUserNotFound, msgUserNotFound, err)
		}
		return anon, storeError("verify", username, err)
	}

	sess, err := s.sessions.Create(ctx, u.ID)
	if err != nil {
		return anon, storeError("verify", username, err)
	}

	log.Printf("[auth][verify] session opened for %s", username)
	return VerifyResult{State: StateAuthenticated, Session: sess, Message: msgVerifySucceeded}, nil
}

// ResendCode issues a new code for username, superseding the pending one,
// and delivers it to the stored phone.
func (s *Service) ResendCode(ctx context.Context, username string) (string, error) {
	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", newError(KindUserNotFound, msgUserNotFound, err)
		}
		return "", storeError("resend", username, err)
	}
	return s.sendCode(ctx, "resend", u)
}

// Logout revokes token. Unknown tokens are accepted.
func (s *Service) Logout(ctx context.Context, token string) (State, error) {
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return "", storeError("logout", "", err)
	}
	return StateAnonymous, nil
}

// CurrentUser resolves a session token to its user.
func (s *Service) CurrentUser(ctx context.Context, token string) (*model.User, error) {
	username, err := s.sessions.Validate(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrSessionInvalid) {
			return nil, newError(KindSessionInvalid, msgSessionInvalid, err)
		}
		return nil, storeError("session", "", err)
	}

	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, newError(KindSessionInvalid, msgSessionInvalid, err)
		}
		return nil, storeError("session", username, err)
	}
	return u, nil
}

// UpdateProfile replaces the phone and email of the session's user. Both
// fields are checked and every violation is reported, phone first.
func (s *Service) UpdateProfile(ctx context.Context, token, phone, email string) (*model.User, error) {
	u, err := s.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := policy.Merge(policy.CheckPhone(phone), policy.CheckEmail(email)); err != nil {
		return nil, newError(KindValidation, err.Error(), err)
	}

	updated, err := s.users.UpdateContact(ctx, u.Username, phone, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, newError(KindUserNotFound, msgUserNotFound, err)
		}
		return nil, storeError("profile", u.Username, err)
	}

	log.Printf("[auth][profile] contact updated for %s", u.Username)
	return updated, nil
}

func (s *Service) sendCode(ctx context.Context, op string, u *model.User) (string, error) {
	code, err := s.codes.Issue(ctx, u.Username)
	if err != nil {
		return "", storeError(op, u.Username, err)
	}

	hint, err := s.codes.Deliver(ctx, u.Phone, u.Username, code)
	if err != nil {
		if errors.Is(err, verification.ErrInvalidPhone) {
			var v *policy.Violation
			reason := "malformed phone number"
			if errors.As(err, &v) {
				reason = v.Error()
			}
			return "", newError(KindInvalidPhone, "Invalid phone number: "+reason, err)
		}
		log.Printf("[auth][%s] delivery failed for %s: %v", op, u.Username, err)
		return "", newError(KindDelivery, msgDeliveryFailed, err)
	}
	return hint, nil
}

func (s *Service) hashError(op string, err error) error {
	if errors.Is(err, credential.ErrEncoding) {
		return newError(KindEncoding, msgEncoding, err)
	}
	return storeError(op, "", err)
}

// storeError logs the cause and hides it from the caller.
func storeError(op, username string, err error) error {
	log.Printf("[auth][%s] store failure (user=%q): %v", op, username, err)
	return newError(KindStore, msgStoreFailure, err)
}
