// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates the snapshot table used by the SQL backends.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// One row per logical table; payload is the same indented JSON document the
// file backend writes.
const schema = `
CREATE TABLE IF NOT EXISTS snapshot (
    name TEXT PRIMARY KEY,
    payload TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`
