// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/rollcall/auth"
	"github.com/danielhkuo/rollcall/cliparse"
	"github.com/danielhkuo/rollcall/db"
	"github.com/danielhkuo/rollcall/messaging"
	"github.com/danielhkuo/rollcall/models"
)

// Privileged is the actor GetTestConfig marks as privileged.
const Privileged = "coach1"

// NewStore returns a store over a fresh in-memory backend.
func NewStore(t *testing.T) (*db.Store, *db.MemoryBackend) {
	t.Helper()
	backend := db.NewMemory()
	return db.NewStore(backend), backend
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:                3318,
		StoreType:           "memory",
		Timezone:            "UTC",
		Location:            time.UTC,
		Threshold:           3,
		NotifyOnce:          true,
		AttachmentTimeout:   50 * time.Millisecond,
		WeeksAhead:          3,
		SlateWeekday:        "sunday",
		SlateTime:           "09:00",
		SlateDay:            time.Sunday,
		SlateHour:           9,
		RemindWeeksBefore:   2,
		EscalateWeeksBefore: 1,
		Polls:               map[string]string{"beginner": "chat-beginner", "intermediate": "chat-intermediate"},
		PrivilegedActors:    []string{Privileged},
		ActorKeySalt:        "test-actor-salt",
	}
}

// ActorHeaders returns the identity headers for actorID under cfg.
func ActorHeaders(cfg cliparse.Config, actorID string) map[string]string {
	return map[string]string{
		"X-Actor-ID":  actorID,
		"X-Actor-Key": auth.GenerateActorKey(actorID, cfg.ActorKeySalt),
	}
}

// Escalation is one recorded RenderEscalation call.
type Escalation struct {
	Target   string
	Subject  models.SubjectID
	Mentions []models.Member
}

// Messenger records every rendering. Renders for a failing date key or
// target return messaging.ErrTargetNotFound.
type Messenger struct {
	mu            sync.Mutex
	subjects      []models.SubjectView
	digests       map[string]int
	escalations   []Escalation
	allVoted      []string
	confirmations []models.ConfirmationRequested
	resolutions   []models.ResolutionAnnounced
	failDates     map[string]bool
	failTargets   map[string]bool
}

var _ messaging.Messenger = (*Messenger)(nil)

func NewMessenger() *Messenger {
	return &Messenger{
		digests:     make(map[string]int),
		failDates:   make(map[string]bool),
		failTargets: make(map[string]bool),
	}
}

func (m *Messenger) FailDate(dateKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failDates[dateKey] = true
}

func (m *Messenger) FailTarget(target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failTargets[target] = true
}

func (m *Messenger) RenderSubject(_ context.Context, poll models.Poll, view models.SubjectView) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTargets[poll.Target] || m.failDates[view.SubjectID.DateKey] {
		return "", messaging.ErrTargetNotFound
	}
	m.subjects = append(m.subjects, view)
	return "msg:" + view.SubjectID.String(), nil
}

func (m *Messenger) RenderDigest(_ context.Context, poll models.Poll, _ []models.SubjectView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTargets[poll.Target] {
		return messaging.ErrTargetNotFound
	}
	m.digests[poll.ID]++
	return nil
}

func (m *Messenger) RenderEscalation(_ context.Context, poll models.Poll, subject models.SubjectID, mentions []models.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTargets[poll.Target] || m.failDates[subject.DateKey] {
		return messaging.ErrTargetNotFound
	}
	m.escalations = append(m.escalations, Escalation{Target: poll.Target, Subject: subject, Mentions: mentions})
	return nil
}

func (m *Messenger) RenderAllVoted(_ context.Context, poll models.Poll) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTargets[poll.Target] {
		return messaging.ErrTargetNotFound
	}
	m.allVoted = append(m.allVoted, poll.ID)
	return nil
}

func (m *Messenger) RenderConfirmationRequest(_ context.Context, req models.ConfirmationRequested) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTargets[req.Target] {
		return messaging.ErrTargetNotFound
	}
	m.confirmations = append(m.confirmations, req)
	return nil
}

func (m *Messenger) RenderResolution(_ context.Context, ann models.ResolutionAnnounced) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTargets[ann.SourceTarget] {
		return messaging.ErrTargetNotFound
	}
	m.resolutions = append(m.resolutions, ann)
	return nil
}

func (m *Messenger) Subjects() []models.SubjectView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.SubjectView{}, m.subjects...)
}

// Digests returns how many digests were rendered for pollID.
func (m *Messenger) Digests(pollID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.digests[pollID]
}

func (m *Messenger) Escalations() []Escalation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Escalation{}, m.escalations...)
}

func (m *Messenger) AllVoted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.allVoted...)
}

func (m *Messenger) Confirmations() []models.ConfirmationRequested {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ConfirmationRequested{}, m.confirmations...)
}

func (m *Messenger) Resolutions() []models.ResolutionAnnounced {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ResolutionAnnounced{}, m.resolutions...)
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
