// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package catalog keeps the venue names a confirmation may pick from.
// Scope "" is the common list shared by every scope.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/danielhkuo/rollcall/db"
)

const CommonScope = ""

var (
	ErrEmptyName     = errors.New("location name is required")
	ErrDuplicate     = errors.New("location already registered")
	ErrNotRegistered = errors.New("location not registered")
)

type Catalog struct {
	store  *db.Store
	saveMu sync.Mutex

	mu        sync.RWMutex
	locations map[string][]string
}

func New(store *db.Store) *Catalog {
	return &Catalog{store: store, locations: make(map[string][]string)}
}

func (c *Catalog) Load(ctx context.Context) error {
	loaded := make(map[string][]string)
	if _, err := c.store.Load(ctx, db.TableLocations, &loaded); err != nil {
		return err
	}
	c.mu.Lock()
	c.locations = loaded
	c.mu.Unlock()
	return nil
}

func (c *Catalog) Add(ctx context.Context, scope, name string) error {
	scope, name = strings.TrimSpace(scope), strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}

	c.mu.Lock()
	for _, existing := range c.locations[scope] {
		if existing == name {
			c.mu.Unlock()
			return ErrDuplicate
		}
	}
	c.locations[scope] = append(c.locations[scope], name)
	c.mu.Unlock()

	c.persist(ctx)
	slog.Info("location registered", "scope", scope, "name", name)
	return nil
}

func (c *Catalog) Remove(ctx context.Context, scope, name string) error {
	scope, name = strings.TrimSpace(scope), strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}

	c.mu.Lock()
	list := c.locations[scope]
	idx := -1
	for i, existing := range list {
		if existing == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return ErrNotRegistered
	}
	c.locations[scope] = append(list[:idx:idx], list[idx+1:]...)
	c.mu.Unlock()

	c.persist(ctx)
	slog.Info("location removed", "scope", scope, "name", name)
	return nil
}

// List returns the venues registered directly under scope.
func (c *Catalog) List(scope string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string{}, c.locations[strings.TrimSpace(scope)]...)
}

// Options returns the venues selectable for scope: its own list followed by
// the common list, without duplicates.
func (c *Catalog) Options(scope string) []string {
	scope = strings.TrimSpace(scope)
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]bool)
	options := []string{}
	lists := [][]string{c.locations[scope]}
	if scope != CommonScope {
		lists = append(lists, c.locations[CommonScope])
	}
	for _, list := range lists {
		for _, name := range list {
			if !seen[name] {
				seen[name] = true
				options = append(options, name)
			}
		}
	}
	return options
}

// Contains reports whether name is selectable for scope.
func (c *Catalog) Contains(scope, name string) bool {
	for _, option := range c.Options(scope) {
		if option == name {
			return true
		}
	}
	return false
}

func (c *Catalog) persist(ctx context.Context) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.RLock()
	err := c.store.Save(ctx, db.TableLocations, c.locations)
	c.mu.RUnlock()
	if err != nil {
		slog.Error("failed to save locations", "error", err)
	}
}
