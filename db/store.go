// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Logical tables
const (
	TableVotes         = "votes"
	TableNotifications = "notifications"
	TableLocations     = "locations"
	TablePolls         = "polls"
)

// Backend types accepted by Open
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

var (
	ErrNotFound         = errors.New("table not found")
	ErrInvalidTableName = errors.New("invalid table name")
	ErrUnknownBackend   = errors.New("unknown store backend")
)

// SaveTimeout bounds one table write.
const SaveTimeout = 10 * time.Second

var tableNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Backend reads and writes one serialized document per table. Write must
// replace the previous document atomically.
type Backend interface {
	Read(ctx context.Context, table string) ([]byte, error)
	Write(ctx context.Context, table string, payload []byte) error
	Close() error
}

// Store is the single owner of the serialized form of every table.
type Store struct {
	backend Backend
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Open builds a store for the given backend type. location is a directory
// for "file", a path for "sqlite" and a connection string for "postgres".
func Open(kind, location string) (*Store, error) {
	var (
		backend Backend
		err     error
	)
	switch kind {
	case BackendFile:
		backend, err = OpenFile(location)
	case BackendSQLite:
		backend, err = OpenSQLite(location)
	case BackendPostgres:
		backend, err = OpenPostgres(location)
	case BackendMemory:
		backend = NewMemory()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, kind)
	}
	if err != nil {
		return nil, err
	}
	return NewStore(backend), nil
}

// Load decodes table into v. A table that was never saved leaves v untouched
// and reports false.
func (s *Store) Load(ctx context.Context, table string, v any) (bool, error) {
	if err := validateTable(table); err != nil {
		return false, err
	}
	payload, err := s.backend.Read(ctx, table)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", table, err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", table, err)
	}
	return true, nil
}

// Save encodes v as indented JSON and replaces table with it. The write
// outlives cancellation of ctx: a state change already applied in memory
// must reach the backend even when the request that caused it is gone.
func (s *Store) Save(ctx context.Context, table string, v any) error {
	if err := validateTable(table); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", table, err)
	}
	payload = append(payload, '\n')

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), SaveTimeout)
	defer cancel()
	if err := s.backend.Write(ctx, table, payload); err != nil {
		return fmt.Errorf("write %s: %w", table, err)
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

func validateTable(table string) error {
	if !tableNamePattern.MatchString(table) {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, table)
	}
	return nil
}
