// Package sqlite is the file-backed Store used when no Postgres URL is
// configured. Timestamps are stored as fixed-width UTC text so that string
// comparison in SQL orders them correctly.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"streamflix/authd/internal/model"
	"streamflix/authd/internal/store"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const timeLayout = "2006-01-02 15:04:05.000000000"

const schema = `
create table if not exists users (
	id text primary key,
	username text not null unique,
	password_hash text not null,
	salt text not null,
	name text not null default '',
	phone text not null default '',
	email text not null default '',
	failed_attempts integer not null default 0,
	locked_until text null,
	created_at text not null,
	updated_at text not null
);

create table if not exists sessions (
	session_id text primary key,
	user_id text not null references users(id) on delete cascade,
	expiry text not null
);

create index if not exists idx_sessions_expiry on sessions (expiry);

create table if not exists verification_codes (
	username text primary key,
	code text not null,
	expiry text not null,
	attempts integer not null default 0
);

create table if not exists catalog_items (
	id integer primary key autoincrement,
	title text not null,
	genre text not null default '',
	year integer not null default 0,
	thumbnail_url text not null default '',
	rating real not null default 0
);
`

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// NewStore opens (creating if needed) the database file at path and applies
// the schema.
func NewStore(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serialises writers; multi-step updates stay atomic.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	// Files created before codes counted wrong submissions.
	if err := ensureColumn(ctx, db, "verification_codes", "attempts", "integer not null default 0"); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func ensureColumn(ctx context.Context, db *sql.DB, table, column, decl string) error {
	rows, err := db.QueryContext(ctx, `select name from pragma_table_info(?)`, table)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	_, err = db.ExecContext(ctx, fmt.Sprintf("alter table %s add column %s %s", table, column, decl))
	return err
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, v, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", v, err)
	}
	return t, nil
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := parseTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func mapSQLiteErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return store.ErrConflict
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return store.ErrNotFound
		}
		// primary result code only
		if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			if strings.Contains(se.Error(), "FOREIGN KEY") {
				return store.ErrNotFound
			}
			return store.ErrConflict
		}
	}
	return err
}

func (s *Store) CreateSession(ctx context.Context, sess model.Session) error {
	_, err := s.db.ExecContext(ctx, `
		insert into sessions (session_id, user_id, expiry)
		values (?, ?, ?)
	`, sess.Token, sess.UserID, formatTime(sess.ExpiresAt))
	if err != nil {
		return mapSQLiteErr(err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, token string) (*model.Session, error) {
	var sess model.Session
	var expiry string
	err := s.db.QueryRowContext(ctx, `
		select session_id, user_id, expiry
		from sessions
		where session_id = ?
	`, token).Scan(&sess.Token, &sess.UserID, &expiry)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	if sess.ExpiresAt, err = parseTime(expiry); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `delete from sessions where session_id = ?`, token); err != nil {
		return mapSQLiteErr(err)
	}
	return nil
}

func (s *Store) PurgeSessionsBefore(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `delete from sessions where expiry < ?`, formatTime(before))
	if err != nil {
		return 0, mapSQLiteErr(err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *Store) CountCatalogItems(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `select count(*) from catalog_items`).Scan(&n); err != nil {
		return 0, mapSQLiteErr(err)
	}
	return n, nil
}

func (s *Store) AddCatalogItems(ctx context.Context, items []model.CatalogItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, it := range items {
		if _, err := tx.ExecContext(ctx, `
			insert into catalog_items (title, genre, year, thumbnail_url, rating)
			values (?, ?, ?, ?, ?)
		`, it.Title, it.Genre, it.Year, it.ThumbnailURL, it.Rating); err != nil {
			return mapSQLiteErr(err)
		}
	}
	return tx.Commit()
}

func (s *Store) SearchCatalog(ctx context.Context, term string) ([]model.CatalogItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, title, genre, year, thumbnail_url, rating
		from catalog_items
		where ? = '' or instr(lower(title), ?) > 0
		order by id
	`, term, strings.ToLower(term))
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer rows.Close()

	out := []model.CatalogItem{}
	for rows.Next() {
		var it model.CatalogItem
		if err := rows.Scan(&it.ID, &it.Title, &it.Genre, &it.Year, &it.ThumbnailURL, &it.Rating); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
