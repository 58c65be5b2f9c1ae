// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sampleTable map[string]map[string][]string

func backends(t *testing.T) map[string]Backend {
	t.Helper()

	file, err := OpenFile(t.TempDir())
	if err != nil {
		t.Fatalf("open file backend: %v", err)
	}
	sqlite, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite backend: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	all := map[string]Backend{
		"memory": NewMemory(),
		"file":   file,
		"sqlite": sqlite,
	}

	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		pg, err := OpenPostgres(url)
		if err != nil {
			t.Fatalf("open postgres backend: %v", err)
		}
		if _, err := pg.db.Exec(`DELETE FROM snapshot`); err != nil {
			t.Fatalf("clean snapshot table: %v", err)
		}
		t.Cleanup(func() { pg.Close() })
		all["postgres"] = pg
	}
	return all
}

func TestStoreLoadMissingTable(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := NewStore(backend)

			table := sampleTable{"keep": nil}
			found, err := store.Load(context.Background(), TableVotes, &table)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if found {
				t.Error("Expected missing table to report not found")
			}
			if _, ok := table["keep"]; !ok {
				t.Error("Expected destination to be left untouched")
			}
		})
	}
}

func TestStoreSaveAndLoad(t *testing.T) {
	ctx := context.Background()

	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := NewStore(backend)

			first := sampleTable{"poll-1": {"2025-12-07 (Sun)": {"alice", "bob"}}}
			if err := store.Save(ctx, TableVotes, first); err != nil {
				t.Fatalf("Save: %v", err)
			}

			second := sampleTable{"poll-1": {"2025-12-07 (Sun)": {"bob"}}, "poll-2": {}}
			if err := store.Save(ctx, TableVotes, second); err != nil {
				t.Fatalf("Save: %v", err)
			}

			var loaded sampleTable
			found, err := store.Load(ctx, TableVotes, &loaded)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !found {
				t.Fatal("Expected table to be found")
			}
			got := loaded["poll-1"]["2025-12-07 (Sun)"]
			if len(got) != 1 || got[0] != "bob" {
				t.Errorf("Expected last write to win, got %v", got)
			}
			if _, ok := loaded["poll-2"]; !ok {
				t.Error("Expected poll-2 to be present")
			}

			// Tables are independent documents.
			var other sampleTable
			found, err = store.Load(ctx, TableLocations, &other)
			if err != nil || found {
				t.Errorf("Expected locations to be missing, got found=%v err=%v", found, err)
			}
		})
	}
}

func TestStoreSaveOutlivesCancelledContext(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := NewStore(backend)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			want := sampleTable{"poll-1": {"2025-12-07 (Sun)": {"alice"}}}
			if err := store.Save(ctx, TableVotes, want); err != nil {
				t.Fatalf("Expected save to ignore a cancelled caller, got %v", err)
			}

			var loaded sampleTable
			found, err := store.Load(context.Background(), TableVotes, &loaded)
			if err != nil || !found {
				t.Fatalf("Load: found=%v err=%v", found, err)
			}
			if got := loaded["poll-1"]["2025-12-07 (Sun)"]; len(got) != 1 || got[0] != "alice" {
				t.Errorf("Expected the saved document, got %v", loaded)
			}
		})
	}
}

func TestStoreRejectsBadTableNames(t *testing.T) {
	store := NewStore(NewMemory())

	for _, name := range []string{"", "../votes", "Votes", "votes.json", "a/b"} {
		if err := store.Save(context.Background(), name, sampleTable{}); !errors.Is(err, ErrInvalidTableName) {
			t.Errorf("%q: expected ErrInvalidTableName, got %v", name, err)
		}
	}
}

func TestFileBackendWritesReadableJSON(t *testing.T) {
	dir := t.TempDir()
	backend, err := OpenFile(dir)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	store := NewStore(backend)

	table := map[string][]string{"": {"Studio X", "スタジオ"}}
	if err := store.Save(context.Background(), TableLocations, table); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "locations.json"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !strings.Contains(string(raw), "\n  \"\": [") {
		t.Errorf("Expected indented JSON, got %s", raw)
	}
	if !strings.Contains(string(raw), "スタジオ") {
		t.Errorf("Expected UTF-8 text to be written verbatim, got %s", raw)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Errorf("Expected temp file to be renamed away, found %s", entry.Name())
		}
	}
}

func TestFileBackendKeepsLastGoodDocument(t *testing.T) {
	dir := t.TempDir()
	backend, err := OpenFile(dir)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	store := NewStore(backend)
	ctx := context.Background()

	if err := store.Save(ctx, TablePolls, map[string]int{"a": 1}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A value that cannot be encoded never reaches the backend.
	if err := store.Save(ctx, TablePolls, map[string]any{"bad": make(chan int)}); err == nil {
		t.Fatal("Expected encode error")
	}

	var loaded map[string]int
	if _, err := store.Load(ctx, TablePolls, &loaded); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded["a"] != 1 {
		t.Errorf("Expected previous document to survive, got %v", loaded)
	}
}

func TestStoreLoadCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "votes.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	backend, err := OpenFile(dir)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	var table sampleTable
	if _, err := NewStore(backend).Load(context.Background(), TableVotes, &table); err == nil {
		t.Error("Expected decode error for corrupt document")
	}
}

func TestMemoryBackendFailWrites(t *testing.T) {
	backend := NewMemory()
	store := NewStore(backend)
	boom := errors.New("disk full")

	backend.FailWrites(boom)
	if err := store.Save(context.Background(), TableVotes, sampleTable{}); !errors.Is(err, boom) {
		t.Errorf("Expected wrapped write error, got %v", err)
	}

	backend.FailWrites(nil)
	if err := store.Save(context.Background(), TableVotes, sampleTable{}); err != nil {
		t.Errorf("Expected recovery, got %v", err)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open("redis", "localhost"); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Expected ErrUnknownBackend, got %v", err)
	}
}
