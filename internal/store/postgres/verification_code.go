package postgres

import (
	"context"
	"errors"
	"time"

	"streamflix/authd/internal/model"
	"streamflix/authd/internal/store"

	"github.com/jackc/pgx/v5"
)

func (s *Store) PutVerificationCode(ctx context.Context, c model.VerificationCode) error {
	_, err := s.pool.Exec(ctx, `
		insert into public.verification_codes (username, code, expiry, attempts)
		values ($1, $2, $3, 0)
		on conflict (username) do update
		set code = excluded.code,
		    expiry = excluded.expiry,
		    attempts = 0
	`, c.Username, c.CodeHash, c.ExpiresAt)
	if err != nil {
		return mapPgErr(err)
	}
	return nil
}

func (s *Store) GetVerificationCode(ctx context.Context, username string) (*model.VerificationCode, error) {
	var c model.VerificationCode
	err := s.pool.QueryRow(ctx, `
		select username, code, expiry, attempts
		from public.verification_codes
		where username = $1
	`, username).Scan(&c.Username, &c.CodeHash, &c.ExpiresAt, &c.Attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapPgErr(err)
	}
	return &c, nil
}

func (s *Store) ConsumeVerificationCode(ctx context.Context, username, codeHash string) error {
	tag, err := s.pool.Exec(ctx, `
		delete from public.verification_codes
		where username = $1 and code = $2
	`, username, codeHash)
	if err != nil {
		return mapPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) RecordCodeMismatch(ctx context.Context, username, codeHash string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		update public.verification_codes
		set attempts = attempts + 1
		where username = $1 and code = $2
		returning attempts
	`, username, codeHash).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, mapPgErr(err)
	}
	return n, nil
}

func (s *Store) PurgeVerificationCodesBefore(ctx context.Context, before time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		with d as (
		  delete from public.verification_codes
		  where expiry < $1
		  returning 1
		)
		select count(*) from d
	`, before).Scan(&n)
	if err != nil {
		return 0, mapPgErr(err)
	}
	return n, nil
}
