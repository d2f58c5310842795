package store

import (
	"context"
	"errors"
	"time"

	"streamflix/authd/internal/model"
)

var (
	ErrNotFound = errors.New("not_found")
	ErrConflict = errors.New("conflict")
)

// FailurePolicy tells RecordLoginFailure when to set a lock.
type FailurePolicy struct {
	Threshold int
	LockUntil time.Time // lock expiry to write if the threshold is reached
	Now       time.Time
}

// Users holds account records. Every read reflects the latest committed
// state; there is no caching.
type Users interface {
	// CreateUser fails with ErrConflict when the username is taken.
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	UpdateContact(ctx context.Context, username, phone, email string) (*model.User, error)

	GetLockState(ctx context.Context, username string) (model.LockState, error)
	// RecordLoginFailure increments the failure counter and, when the new
	// count reaches p.Threshold and no lock is active at p.Now, writes
	// p.LockUntil. Both steps run atomically for the record.
	RecordLoginFailure(ctx context.Context, username string, p FailurePolicy) (model.LockState, error)
	// ResetLoginFailures zeroes the counter and clears the lock.
	ResetLoginFailures(ctx context.Context, username string) error
}

// Codes holds at most one pending verification code per username.
type Codes interface {
	// PutVerificationCode inserts or replaces the pending code for
	// c.Username, starting its attempt count at zero.
	PutVerificationCode(ctx context.Context, c model.VerificationCode) error
	GetVerificationCode(ctx context.Context, username string) (*model.VerificationCode, error)
	// ConsumeVerificationCode deletes the pending code only if it still
	// carries codeHash. Returns ErrNotFound when nothing was deleted.
	ConsumeVerificationCode(ctx context.Context, username, codeHash string) error
	// RecordCodeMismatch increments the wrong-submission count of the
	// pending code if it still carries codeHash, returning the new count.
	// Returns ErrNotFound when the code was consumed or superseded.
	RecordCodeMismatch(ctx context.Context, username, codeHash string) (int, error)
	PurgeVerificationCodesBefore(ctx context.Context, before time.Time) (int, error)
}

type Sessions interface {
	CreateSession(ctx context.Context, s model.Session) error
	GetSession(ctx context.Context, token string) (*model.Session, error)
	// DeleteSession is idempotent.
	DeleteSession(ctx context.Context, token string) error
	PurgeSessionsBefore(ctx context.Context, before time.Time) (int, error)
}

type Catalog interface {
	CountCatalogItems(ctx context.Context) (int, error)
	AddCatalogItems(ctx context.Context, items []model.CatalogItem) error
	// SearchCatalog matches titles by case-insensitive substring; an empty
	// term returns every item.
	SearchCatalog(ctx context.Context, term string) ([]model.CatalogItem, error)
}

type Store interface {
	Users
	Codes
	Sessions
	Catalog
}
