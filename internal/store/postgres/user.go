package postgres

import (
	"context"
	"errors"

	"streamflix/authd/internal/model"
	"streamflix/authd/internal/store"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id::text, username, password_hash, salt, name, phone, email, failed_attempts, locked_until, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.Salt,
		&u.Name,
		&u.Phone,
		&u.Email,
		&u.FailedAttempts,
		&u.LockedUntil,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapPgErr(err)
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	out, err := scanUser(s.pool.QueryRow(ctx, `
		insert into public.users (id, username, password_hash, salt, name, phone, email)
		values (coalesce(nullif($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7)
		returning `+userColumns,
		u.ID, u.Username, u.PasswordHash, u.Salt, u.Name, u.Phone, u.Email))
	if err != nil {
		return model.User{}, err
	}
	return *out, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `
		select `+userColumns+`
		from public.users
		where username = $1
	`, username))
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `
		select `+userColumns+`
		from public.users
		where id::text = $1
	`, id))
}

func (s *Store) UpdateContact(ctx context.Context, username, phone, email string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `
		update public.users
		set phone = $2, email = $3, updated_at = now()
		where username = $1
		returning `+userColumns,
		username, phone, email))
}

func (s *Store) GetLockState(ctx context.Context, username string) (model.LockState, error) {
	var st model.LockState
	err := s.pool.QueryRow(ctx, `
		select failed_attempts, locked_until
		from public.users
		where username = $1
	`, username).Scan(&st.FailedAttempts, &st.LockedUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.LockState{}, store.ErrNotFound
		}
		return model.LockState{}, mapPgErr(err)
	}
	return st, nil
}

// RecordLoginFailure is a single statement, so the increment and the lock
// decision see the same row version.
func (s *Store) RecordLoginFailure(ctx context.Context, username string, p store.FailurePolicy) (model.LockState, error) {
	var st model.LockState
	err := s.pool.QueryRow(ctx, `
		update public.users
		set failed_attempts = failed_attempts + 1,
		    locked_until = case
		      when failed_attempts + 1 >= $2
		       and (locked_until is null or locked_until <= $3)
		      then $4
		      else locked_until
		    end,
		    updated_at = now()
		where username = $1
		returning failed_attempts, locked_until
	`, username, p.Threshold, p.Now, p.LockUntil).Scan(&st.FailedAttempts, &st.LockedUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.LockState{}, store.ErrNotFound
		}
		return model.LockState{}, mapPgErr(err)
	}
	return st, nil
}

func (s *Store) ResetLoginFailures(ctx context.Context, username string) error {
	tag, err := s.pool.Exec(ctx, `
		update public.users
		set failed_attempts = 0, locked_until = null, updated_at = now()
		where username = $1
	`, username)
	if err != nil {
		return mapPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
