// Package sessionstore keeps the cookie session of every indexer in sqlite so a restart
// does not require logging in again.
package sessionstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

func wrapOpenDB(err error) error {
	return fmt.Errorf("open session db: %w", err)
}

type Store struct {
	db *sql.DB
}

// Open opens (and creates) the database at path, ":memory:" keeps it in memory.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0777)
		if err != nil {
			return nil, wrapOpenDB(err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrapOpenDB(err)
	}

	// sqlite does not handle concurrent writers, every query goes through one connection
	db.SetMaxOpenConns(1)
	if path != ":memory:" {
		_, err = db.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			db.Close()
			return nil, wrapOpenDB(err)
		}
	}

	_, err = db.Exec(schema)
	if err != nil {
		db.Close()
		return nil, wrapOpenDB(err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the stored cookie string of a site, an unknown site returns an empty string.
func (s *Store) Load(ctx context.Context, site string) (string, error) {
	var cookies string
	err := s.db.QueryRowContext(ctx, "select cookies from session where site = ?", site).Scan(&cookies)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load session %s: %w", site, err)
	}
	return cookies, nil
}

// Save replaces the session of a site, an empty cookie string deletes it.
func (s *Store) Save(ctx context.Context, site, cookies string) error {
	if cookies == "" {
		_, err := s.db.ExecContext(ctx, "delete from session where site = ?", site)
		if err != nil {
			return fmt.Errorf("delete session %s: %w", site, err)
		}
		return nil
	}

	_, err := s.db.ExecContext(
		ctx,
		`insert into session (site, cookies, updated_at) values (?, ?, ?)
		on conflict (site) do update set cookies = excluded.cookies, updated_at = excluded.updated_at`,
		site, cookies, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", site, err)
	}
	return nil
}

// Sites lists the sites that have a stored session, most recently updated first.
func (s *Store) Sites(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "select site from session order by updated_at desc, site")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var site string
		err = rows.Scan(&site)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		out = append(out, site)
	}
	return out, rows.Err()
}
