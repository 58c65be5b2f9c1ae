// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"sort"
	"strings"
)

var (
	ErrMissingActor    = errors.New("actor id is required")
	ErrInvalidActorKey = errors.New("invalid actor key")
)

// GenerateActorKey creates an HMAC-based key for an actor id.
// This is deterministic and verifiable
func GenerateActorKey(actorID, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(actorID))
	sum := h.Sum(nil)
	// Use URL-safe base64 and trim padding for cleaner keys
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}

// ValidateActorKey checks the key presented for actorID.
func ValidateActorKey(actorID, key, salt string) error {
	if strings.TrimSpace(actorID) == "" {
		return ErrMissingActor
	}
	expected := GenerateActorKey(actorID, salt)
	if !hmac.Equal([]byte(key), []byte(expected)) {
		return ErrInvalidActorKey
	}
	return nil
}

// Privileges is the set of actors allowed to resolve confirmations, run
// stages and edit the location catalog.
type Privileges struct {
	actors map[string]bool
}

func NewPrivileges(actorIDs []string) Privileges {
	p := Privileges{actors: make(map[string]bool, len(actorIDs))}
	for _, id := range actorIDs {
		if id = strings.TrimSpace(id); id != "" {
			p.actors[id] = true
		}
	}
	return p
}

func (p Privileges) IsPrivileged(actorID string) bool {
	return p.actors[strings.TrimSpace(actorID)]
}

// Actors returns the privileged ids in sorted order.
func (p Privileges) Actors() []string {
	ids := make([]string, 0, len(p.actors))
	for id := range p.actors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
