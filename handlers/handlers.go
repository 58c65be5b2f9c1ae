// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielhkuo/rollcall/auth"
	"github.com/danielhkuo/rollcall/calendar"
	"github.com/danielhkuo/rollcall/catalog"
	"github.com/danielhkuo/rollcall/cliparse"
	"github.com/danielhkuo/rollcall/ledger"
	"github.com/danielhkuo/rollcall/middleware"
	"github.com/danielhkuo/rollcall/models"
	"github.com/danielhkuo/rollcall/notifier"
	"github.com/danielhkuo/rollcall/scheduler"
)

// Services are the core components the HTTP adapter drives.
type Services struct {
	Ledger     *ledger.Ledger
	Notifier   *notifier.Notifier
	Catalog    *catalog.Catalog
	Scheduler  *scheduler.Scheduler
	Privileges auth.Privileges
}

var errNotPrivileged = errors.New("actor is not privileged")

// actorID authenticates the X-Actor-ID / X-Actor-Key pair.
func actorID(r *http.Request, cfg cliparse.Config) (string, error) {
	id := strings.TrimSpace(r.Header.Get("X-Actor-ID"))
	key := r.Header.Get("X-Actor-Key")
	if err := auth.ValidateActorKey(id, key, cfg.ActorKeySalt); err != nil {
		return "", err
	}
	return id, nil
}

// privilegedActor authenticates the actor and requires privilege.
func privilegedActor(r *http.Request, cfg cliparse.Config, privileges auth.Privileges) (string, error) {
	id, err := actorID(r, cfg)
	if err != nil {
		return "", err
	}
	if !privileges.IsPrivileged(id) {
		return "", errNotPrivileged
	}
	return id, nil
}

// writeActorError maps an actor check failure to 401 or 403.
func writeActorError(w http.ResponseWriter, err error) {
	if errors.Is(err, errNotPrivileged) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Privileged actor required")
		return
	}
	middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid actor credentials")
}

// subjectFromPath reads {poll} and {date}. The date may be a full date key
// ("2025-12-07 (Sun)") or a plain ISO date.
func subjectFromPath(r *http.Request, cfg cliparse.Config) (models.SubjectID, error) {
	pollID := strings.TrimSpace(r.PathValue("poll"))
	date := strings.TrimSpace(r.PathValue("date"))
	if pollID == "" || date == "" {
		return models.SubjectID{}, models.ErrInvalidSubjectID
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	_, err := calendar.ParseDateKey(date, loc)
	if err == nil {
		return models.SubjectID{PollID: pollID, DateKey: date}, nil
	}
	if errors.Is(err, calendar.ErrWeekdayLabel) {
		return models.SubjectID{}, err
	}
	day, err := calendar.ParseDay(date, loc)
	if err != nil {
		return models.SubjectID{}, err
	}
	return models.SubjectID{PollID: pollID, DateKey: calendar.DateKey(day)}, nil
}
