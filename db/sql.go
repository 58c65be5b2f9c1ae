// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLBackend stores tables as rows of the snapshot table.
type SQLBackend struct {
	db         *sql.DB
	selectStmt string
	upsertStmt string
}

// OpenSQLite opens (or creates) a SQLite database at path.
func OpenSQLite(path string) (*SQLBackend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer keeps ":memory:" databases on a single connection and
	// avoids SQLITE_BUSY on files.
	conn.SetMaxOpenConns(1)

	return newSQLBackend(conn,
		`SELECT payload FROM snapshot WHERE name = ?`,
		`INSERT INTO snapshot (name, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
	)
}

// OpenPostgres connects to PostgreSQL using a lib/pq connection string.
func OpenPostgres(url string) (*SQLBackend, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("database URL is required")
	}
	conn, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}

	return newSQLBackend(conn,
		`SELECT payload FROM snapshot WHERE name = $1`,
		`INSERT INTO snapshot (name, payload, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
	)
}

func newSQLBackend(conn *sql.DB, selectStmt, upsertStmt string) (*SQLBackend, error) {
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if err := CreateSchema(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &SQLBackend{db: conn, selectStmt: selectStmt, upsertStmt: upsertStmt}, nil
}

func (b *SQLBackend) Read(ctx context.Context, table string) ([]byte, error) {
	var payload string
	err := b.db.QueryRowContext(ctx, b.selectStmt, table).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(payload), nil
}

func (b *SQLBackend) Write(ctx context.Context, table string, payload []byte) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, b.upsertStmt, table, string(payload), time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

func (b *SQLBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}
