package sqlite

import (
	"context"
	"time"

	"streamflix/authd/internal/model"
	"streamflix/authd/internal/store"
)

func (s *Store) PutVerificationCode(ctx context.Context, c model.VerificationCode) error {
	_, err := s.db.ExecContext(ctx, `
		insert into verification_codes (username, code, expiry, attempts)
		values (?, ?, ?, 0)
		on conflict (username) do update
		set code = excluded.code,
		    expiry = excluded.expiry,
		    attempts = 0
	`, c.Username, c.CodeHash, formatTime(c.ExpiresAt))
	if err != nil {
		return mapSQLiteErr(err)
	}
	return nil
}

func (s *Store) GetVerificationCode(ctx context.Context, username string) (*model.VerificationCode, error) {
	var (
		c      model.VerificationCode
		expiry string
	)
	err := s.db.QueryRowContext(ctx, `
		select username, code, expiry, attempts from verification_codes where username = ?
	`, username).Scan(&c.Username, &c.CodeHash, &expiry, &c.Attempts)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	if c.ExpiresAt, err = parseTime(expiry); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ConsumeVerificationCode(ctx context.Context, username, codeHash string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from verification_codes where username = ? and code = ?
	`, username, codeHash)
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

func (s *Store) RecordCodeMismatch(ctx context.Context, username, codeHash string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		update verification_codes
		set attempts = attempts + 1
		where username = ? and code = ?
		returning attempts
	`, username, codeHash).Scan(&n)
	if err != nil {
		return 0, mapSQLiteErr(err)
	}
	return n, nil
}

func (s *Store) PurgeVerificationCodesBefore(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `delete from verification_codes where expiry < ?`, formatTime(before))
	if err != nil {
		return 0, mapSQLiteErr(err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
