// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielhkuo/rollcall/models"
)

// RosterSource supplies the members expected to vote on a poll.
type RosterSource interface {
	Members(ctx context.Context, poll models.Poll) ([]models.Member, error)
}

// StaticRoster maps a scope to its members. Scope "" applies to scopes with
// no entry of their own.
type StaticRoster map[string][]models.Member

// LoadRoster reads a StaticRoster from a JSON file of the form
// {"beginner": [{"id": "1", "name": "Ann"}]}.
func LoadRoster(path string) (StaticRoster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	var roster StaticRoster
	if err := json.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", path, err)
	}
	return roster, nil
}

func (r StaticRoster) Members(_ context.Context, poll models.Poll) ([]models.Member, error) {
	members, ok := r[poll.Scope]
	if !ok {
		members = r[""]
	}
	return append([]models.Member{}, members...), nil
}
