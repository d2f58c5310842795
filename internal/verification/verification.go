// Package verification issues, delivers and validates the six digit
// second-factor codes sent after a correct password.
package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"streamflix/authd/internal/model"
	"streamflix/authd/internal/policy"
	"streamflix/authd/internal/store"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrCodeNotFound = errors.New("code_not_found")
	ErrCodeExpired  = errors.New("code_expired")
	ErrCodeMismatch = errors.New("code_mismatch")
	ErrInvalidPhone = errors.New("invalid_phone")
	// ErrTooManyAttempts means the pending code was discarded after too
	// many wrong submissions.
	ErrTooManyAttempts = errors.New("too_many_attempts")
)

const (
	DefaultTTL         = 5 * time.Minute
	DefaultMaxAttempts = 5
	codeDigits         = 6
)

var codeSpace = big.NewInt(1_000_000)

// Gateway transmits a payload to a destination (a phone number).
type Gateway interface {
	Send(ctx context.Context, destination, payload string) error
}

type Config struct {
	TTL time.Duration
	// HashCost is the bcrypt cost used for stored codes.
	HashCost int
	// MaxAttempts is how many wrong submissions a code survives.
	MaxAttempts int
}

type Manager struct {
	codes   store.Codes
	gateway Gateway
	config  Config
	now     func() time.Time
}

func NewManager(codes store.Codes, gateway Gateway, cfg Config) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.HashCost == 0 {
		cfg.HashCost = bcrypt.DefaultCost
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Manager{codes: codes, gateway: gateway, config: cfg, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Issue generates a fresh code for username and stores it, replacing any
// pending one. The plain code is returned for delivery and is not kept.
func (m *Manager) Issue(ctx context.Context, username string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), m.config.HashCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt generate: %w", err)
	}

	expiresAt := m.now().Add(m.config.TTL)
	if err := m.codes.PutVerificationCode(ctx, model.VerificationCode{
		Username:  username,
		CodeHash:  string(hash),
		ExpiresAt: expiresAt,
	}); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}

	log.Printf("[verification][issue] username=%s expires_at=%s", username, expiresAt.UTC().Format(time.RFC3339))
	return code, nil
}

// Deliver validates phone and hands the code to the gateway. It returns a
// hint for the user naming the destination.
func (m *Manager) Deliver(ctx context.Context, phone, username, code string) (string, error) {
	if err := policy.CheckPhone(phone); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPhone, err)
	}

	payload := fmt.Sprintf("Your StreamFlix verification code is %s", code)
	if err := m.gateway.Send(ctx, phone, payload); err != nil {
		return "", fmt.Errorf("deliver code to %s: %w", username, err)
	}
	return fmt.Sprintf("Please enter the verification code sent to your phone: %s", phone), nil
}

// Validate checks submitted against the pending code for username and
// consumes it on success. An expired code is deleted, and so is a code
// that has taken MaxAttempts wrong submissions.
func (m *Manager) Validate(ctx context.Context, username, submitted string) error {
	vc, err := m.codes.GetVerificationCode(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrCodeNotFound
		}
		return fmt.Errorf("load code: %w", err)
	}

	// Every write below is conditional on vc.CodeHash, so a code issued
	// after the read above is never touched.
	if !m.now().Before(vc.ExpiresAt) {
		m.discard(ctx, "expired", vc)
		return ErrCodeExpired
	}
	if vc.Attempts >= m.config.MaxAttempts {
		m.discard(ctx, "exhausted", vc)
		return ErrTooManyAttempts
	}

	if len(submitted) != codeDigits || bcrypt.CompareHashAndPassword([]byte(vc.CodeHash), []byte(submitted)) != nil {
		return m.recordMismatch(ctx, vc)
	}

	if err := m.codes.ConsumeVerificationCode(ctx, username, vc.CodeHash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrCodeNotFound
		}
		return fmt.Errorf("consume code: %w", err)
	}
	return nil
}

func (m *Manager) recordMismatch(ctx context.Context, vc *model.VerificationCode) error {
	n, err := m.codes.RecordCodeMismatch(ctx, vc.Username, vc.CodeHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// consumed or reissued meanwhile; the submission was still wrong
			return ErrCodeMismatch
		}
		return fmt.Errorf("record mismatch: %w", err)
	}
	if n >= m.config.MaxAttempts {
		log.Printf("[verification][validate] %d wrong codes for %s, discarding", n, vc.Username)
		m.discard(ctx, "exhausted", vc)
		return ErrTooManyAttempts
	}
	return ErrCodeMismatch
}

// discard deletes vc only if it is still the pending code.
func (m *Manager) discard(ctx context.Context, reason string, vc *model.VerificationCode) {
	err := m.codes.ConsumeVerificationCode(ctx, vc.Username, vc.CodeHash)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("[verification][validate] delete %s code for %s: %v", reason, vc.Username, err)
	}
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
