package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"streamflix/authd/internal/model"
	"streamflix/authd/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
create extension if not exists pgcrypto;

create table if not exists public.users (
	id uuid primary key default gen_random_uuid(),
	username text not null unique,
	password_hash text not null,
	salt text not null,
	name text not null default '',
	phone text not null default '',
	email text not null default '',
	failed_attempts integer not null default 0,
	locked_until timestamptz null,
	created_at timestamptz not null default now(),
	updated_at timestamptz not null default now()
);

create table if not exists public.sessions (
	session_id text primary key,
	user_id uuid not null references public.users(id) on delete cascade,
	expiry timestamptz not null
);

create index if not exists idx_sessions_expiry on public.sessions (expiry);

create table if not exists public.verification_codes (
	username text primary key,
	code text not null,
	expiry timestamptz not null,
	attempts integer not null default 0
);

alter table public.verification_codes add column if not exists attempts integer not null default 0;

create table if not exists public.catalog_items (
	id bigserial primary key,
	title text not null,
	genre text not null default '',
	year integer not null default 0,
	thumbnail_url text not null default '',
	rating double precision not null default 0
);
`

type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

func NewStore(databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	// Ping to fail fast.
	ctxPing, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", mapPgErr(err))
	}
	return nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) CreateSession(ctx context.Context, sess model.Session) error {
	_, err := s.pool.Exec(ctx, `
		insert into public.sessions (session_id, user_id, expiry)
		values ($1, $2::uuid, $3)
	`, sess.Token, sess.UserID, sess.ExpiresAt)
	if err != nil {
		return mapPgErr(err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, token string) (*model.Session, error) {
	var sess model.Session
	err := s.pool.QueryRow(ctx, `
		select session_id, user_id::text, expiry
		from public.sessions
		where session_id = $1
	`, token).Scan(&sess.Token, &sess.UserID, &sess.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapPgErr(err)
	}
	return &sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.pool.Exec(ctx, `delete from public.sessions where session_id = $1`, token); err != nil {
		return mapPgErr(err)
	}
	return nil
}

func (s *Store) PurgeSessionsBefore(ctx context.Context, before time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		with d as (
		  delete from public.sessions
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

func (s *Store) CountCatalogItems(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `select count(*) from public.catalog_items`).Scan(&n); err != nil {
		return 0, mapPgErr(err)
	}
	return n, nil
}

func (s *Store) AddCatalogItems(ctx context.Context, items []model.CatalogItem) error {
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(`
			insert into public.catalog_items (title, genre, year, thumbnail_url, rating)
			values ($1, $2, $3, $4, $5)
		`, it.Title, it.Genre, it.Year, it.ThumbnailURL, it.Rating)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return mapPgErr(err)
	}
	return nil
}

func (s *Store) SearchCatalog(ctx context.Context, term string) ([]model.CatalogItem, error) {
	rows, err := s.pool.Query(ctx, `
		select id, title, genre, year, thumbnail_url, rating
		from public.catalog_items
		where $1 = '' or strpos(lower(title), lower($1)) > 0
		order by id
	`, term)
	if err != nil {
		return nil, mapPgErr(err)
	}
	defer rows.Close()

	out := []model.CatalogItem{}
	for rows.Next() {
		var it model.CatalogItem
		if err := rows.Scan(&it.ID, &it.Title, &it.Genre, &it.Year, &it.ThumbnailURL, &it.Rating); err != nil {
			return nil, mapPgErr(err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func mapPgErr(err error) error {
	// Unique violation, etc.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return store.ErrConflict
		case "23503":
			return store.ErrNotFound
		default:
			return fmt.Errorf("db_error %s: %s", pgErr.Code, pgErr.Message)
		}
	}
	return err
}
