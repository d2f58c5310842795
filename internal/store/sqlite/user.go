package sqlite

import (
	"context"
	"database/sql"
	"time"

	"streamflix/authd/internal/model"
	"streamflix/authd/internal/store"

	"github.com/google/uuid"
)

const userColumns = `id, username, password_hash, salt, name, phone, email, failed_attempts, locked_until, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u                    model.User
		lockedUntil          sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.Salt,
		&u.Name,
		&u.Phone,
		&u.Email,
		&u.FailedAttempts,
		&lockedUntil,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	if u.LockedUntil, err = parseNullTime(lockedUntil); err != nil {
		return nil, err
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := formatTime(time.Now())
	out, err := scanUser(s.db.QueryRowContext(ctx, `
		insert into users (id, username, password_hash, salt, name, phone, email, created_at, updated_at)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?)
		returning `+userColumns,
		u.ID, u.Username, u.PasswordHash, u.Salt, u.Name, u.Phone, u.Email, now, now))
	if err != nil {
		return model.User{}, err
	}
	return *out, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where username = ?`, username))
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = ?`, id))
}

func (s *Store) UpdateContact(ctx context.Context, username, phone, email string) (*model.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		update users
		set phone = ?, email = ?, updated_at = ?
		where username = ?
		returning `+userColumns,
		phone, email, formatTime(time.Now()), username))
}

func (s *Store) GetLockState(ctx context.Context, username string) (model.LockState, error) {
	var (
		st          model.LockState
		lockedUntil sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select failed_attempts, locked_until from users where username = ?
	`, username).Scan(&st.FailedAttempts, &lockedUntil)
	if err != nil {
		return model.LockState{}, mapSQLiteErr(err)
	}
	if st.LockedUntil, err = parseNullTime(lockedUntil); err != nil {
		return model.LockState{}, err
	}
	return st, nil
}

func (s *Store) RecordLoginFailure(ctx context.Context, username string, p store.FailurePolicy) (model.LockState, error) {
	var (
		st          model.LockState
		lockedUntil sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		update users
		set failed_attempts = failed_attempts + 1,
		    locked_until = case
		      when failed_attempts + 1 >= ?
		       and (locked_until is null or locked_until <= ?)
		      then ?
		      else locked_until
		    end,
		    updated_at = ?
		where username = ?
		returning failed_attempts, locked_until
	`, p.Threshold, formatTime(p.Now), formatTime(p.LockUntil), formatTime(time.Now()), username).
		Scan(&st.FailedAttempts, &lockedUntil)
	if err != nil {
		return model.LockState{}, mapSQLiteErr(err)
	}
	if st.LockedUntil, err = parseNullTime(lockedUntil); err != nil {
		return model.LockState{}, err
	}
	return st, nil
}

func (s *Store) ResetLoginFailures(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, `
		update users
		set failed_attempts = 0, locked_until = null, updated_at = ?
		where username = ?
	`, formatTime(time.Now()), username)
	if err != nil {
		return mapSQLiteErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
