// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db persists the logical tables of the application.

# Store

Store is the only component that touches the serialized form. Callers save
and load whole tables as Go values:

	store, err := db.Open(db.BackendFile, "./data")
	found, err := store.Load(ctx, db.TableVotes, &subjects)
	err = store.Save(ctx, db.TableVotes, subjects)

A table that was never saved loads as "not found" (false, nil), so a first
run starts empty. Any other read error is returned and should stop startup.

# Tables

  - votes: poll id → date key → subject
  - notifications: subject id → notification record
  - locations: scope → venue names
  - polls: poll id → poll

Every table is an indented UTF-8 JSON object with string keys.

# Backends

  - file: <dir>/<table>.json, written to a temp file then renamed
  - sqlite: modernc.org/sqlite, one row per table in "snapshot"
  - postgres: lib/pq, same schema
  - memory: in-process, for tests

CreateSchema is safe to call multiple times - uses IF NOT EXISTS.
*/
package db
