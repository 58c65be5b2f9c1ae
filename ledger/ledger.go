// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package ledger records toggle votes for every (poll, date) subject.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/danielhkuo/rollcall/calendar"
	"github.com/danielhkuo/rollcall/db"
	"github.com/danielhkuo/rollcall/models"
)

var (
	ErrSubjectNotFound = errors.New("subject not found")
	ErrInvalidPoll     = errors.New("poll id is required")
	ErrInvalidVoter    = errors.New("voter id is required")
)

// ChangeObserver is told about every successful toggle, after the new state
// has been persisted.
type ChangeObserver interface {
	OnVoteChanged(ctx context.Context, id models.SubjectID)
}

// subjects is the persisted shape: poll id → date key → subject.
type subjects map[string]map[string]*models.Subject

type Ledger struct {
	store *db.Store
	now   func() time.Time

	mu        sync.RWMutex
	polls     subjects
	artifacts map[string]models.SubjectID
	observers []ChangeObserver

	// saveMu orders snapshot writes so an older snapshot never lands after
	// a newer one.
	saveMu sync.Mutex

	locksMu sync.Mutex
	locks   map[models.SubjectID]*sync.Mutex
}

func New(store *db.Store) *Ledger {
	return &Ledger{
		store:     store,
		now:       time.Now,
		polls:     make(subjects),
		artifacts: make(map[string]models.SubjectID),
		locks:     make(map[models.SubjectID]*sync.Mutex),
	}
}

// Observe registers o for toggle notifications. Not safe to call while
// toggles are running.
func (l *Ledger) Observe(o ChangeObserver) {
	l.observers = append(l.observers, o)
}

// Load replaces the in-memory ledger with the persisted votes table.
func (l *Ledger) Load(ctx context.Context) error {
	loaded := make(subjects)
	if _, err := l.store.Load(ctx, db.TableVotes, &loaded); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.polls = loaded
	l.artifacts = make(map[string]models.SubjectID)
	for pollID, dates := range loaded {
		if dates == nil {
			dates = make(map[string]*models.Subject)
			loaded[pollID] = dates
		}
		for dateKey, s := range dates {
			if s == nil {
				slog.Warn("dropping empty subject from stored votes", "poll", pollID, "date", dateKey)
				delete(dates, dateKey)
				continue
			}
			s.ID = models.SubjectID{PollID: pollID, DateKey: dateKey}
			if s.Votes == nil {
				s.Votes = emptyBuckets()
			}
			if s.ArtifactID != "" {
				l.artifacts[s.ArtifactID] = s.ID
			}
		}
	}
	return nil
}

// CreateSubject inserts an empty subject. An existing subject is left as is
// and reported with created=false.
func (l *Ledger) CreateSubject(ctx context.Context, pollID, dateKey string) (bool, error) {
	if strings.TrimSpace(pollID) == "" {
		return false, ErrInvalidPoll
	}
	if _, err := calendar.ParseDateKey(dateKey, time.UTC); err != nil {
		return false, err
	}

	l.mu.Lock()
	dates, ok := l.polls[pollID]
	if !ok {
		dates = make(map[string]*models.Subject)
		l.polls[pollID] = dates
	}
	if _, exists := dates[dateKey]; exists {
		l.mu.Unlock()
		return false, nil
	}
	dates[dateKey] = &models.Subject{
		ID:        models.SubjectID{PollID: pollID, DateKey: dateKey},
		Votes:     emptyBuckets(),
		CreatedAt: l.now(),
	}
	l.mu.Unlock()

	l.persist(ctx)
	return true, nil
}

// ToggleVote applies select-to-set, reselect-to-clear voting for one voter on
// one subject. The whole pipeline (mutation, save, observers) runs under the
// subject's lock, so concurrent toggles on a subject are serialized.
func (l *Ledger) ToggleVote(ctx context.Context, id models.SubjectID, voterID, voterName string, bucket models.Bucket) (models.VoteSnapshot, error) {
	if !bucket.Valid() {
		return models.VoteSnapshot{}, fmt.Errorf("%w: %q", models.ErrInvalidBucket, bucket)
	}
	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return models.VoteSnapshot{}, ErrInvalidVoter
	}
	if strings.TrimSpace(voterName) == "" {
		voterName = voterID
	}

	lock := l.subjectLock(id)
	lock.Lock()
	defer lock.Unlock()

	l.mu.Lock()
	s, ok := l.lookup(id)
	if !ok {
		l.mu.Unlock()
		return models.VoteSnapshot{}, fmt.Errorf("%w: %s", ErrSubjectNotFound, id)
	}
	current := toggle(s, voterID, voterName, bucket)
	snapshot := models.VoteSnapshot{
		SubjectView: view(s),
		VoterID:     voterID,
		Current:     current,
	}
	l.mu.Unlock()

	l.persist(ctx)

	for _, o := range l.observers {
		o.OnVoteChanged(ctx, id)
	}

	slog.Info("vote toggled", "subject", id.String(), "voter", voterID, "bucket", bucket, "current", current)
	return snapshot, nil
}

// toggle removes voterID from bucket if already there; otherwise moves the
// voter into bucket. Returns the voter's bucket afterwards ("" if none).
func toggle(s *models.Subject, voterID, voterName string, target models.Bucket) models.Bucket {
	var held models.Bucket
	for _, b := range models.Buckets {
		if indexOf(s.Votes[b], voterID) >= 0 {
			held = b
			break
		}
	}

	if held == target {
		s.Votes[target] = remove(s.Votes[target], voterID)
		return ""
	}

	// Every bucket, not just the held one: a voter ends up in exactly one.
	for _, b := range models.Buckets {
		s.Votes[b] = remove(s.Votes[b], voterID)
	}
	s.Votes[target] = append(s.Votes[target], models.Voter{ID: voterID, Name: voterName})
	return target
}

// SubjectView returns counts and member names for one subject.
func (l *Ledger) SubjectView(id models.SubjectID) (models.SubjectView, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.lookup(id)
	if !ok {
		return models.SubjectView{}, fmt.Errorf("%w: %s", ErrSubjectNotFound, id)
	}
	return view(s), nil
}

// Subjects returns the views of every subject in a poll, ordered by date.
func (l *Ledger) Subjects(pollID string) []models.SubjectView {
	l.mu.RLock()
	defer l.mu.RUnlock()

	dates := l.polls[pollID]
	keys := make([]string, 0, len(dates))
	for key := range dates {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	views := make([]models.SubjectView, 0, len(keys))
	for _, key := range keys {
		views = append(views, view(dates[key]))
	}
	return views
}

// UnvotedAmong returns the candidates holding no bucket on the subject, in
// candidate order without duplicates.
func (l *Ledger) UnvotedAmong(id models.SubjectID, candidates []string) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSubjectNotFound, id)
	}

	voted := make(map[string]bool)
	for _, b := range models.Buckets {
		for _, v := range s.Votes[b] {
			voted[v.ID] = true
		}
	}

	unvoted := []string{}
	seen := make(map[string]bool)
	for _, c := range candidates {
		if voted[c] || seen[c] {
			continue
		}
		seen[c] = true
		unvoted = append(unvoted, c)
	}
	return unvoted, nil
}

// SetArtifact records the messenger handle a subject was rendered as.
func (l *Ledger) SetArtifact(ctx context.Context, id models.SubjectID, artifactID string) error {
	l.mu.Lock()
	s, ok := l.lookup(id)
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSubjectNotFound, id)
	}
	if s.ArtifactID != "" {
		delete(l.artifacts, s.ArtifactID)
	}
	s.ArtifactID = artifactID
	if artifactID != "" {
		l.artifacts[artifactID] = id
	}
	l.mu.Unlock()

	l.persist(ctx)
	return nil
}

// SubjectByArtifact maps a rendered message back to its subject.
func (l *Ledger) SubjectByArtifact(artifactID string) (models.SubjectID, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.artifacts[artifactID]
	return id, ok
}

func (l *Ledger) lookup(id models.SubjectID) (*models.Subject, bool) {
	s, ok := l.polls[id.PollID][id.DateKey]
	return s, ok
}

func (l *Ledger) subjectLock(id models.SubjectID) *sync.Mutex {
	l.locksMu.Lock()
	defer l.locksMu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// persist writes the whole votes table. Failures are logged; the in-memory
// state stays authoritative until the next successful save.
func (l *Ledger) persist(ctx context.Context) {
	l.saveMu.Lock()
	defer l.saveMu.Unlock()

	l.mu.RLock()
	err := l.store.Save(ctx, db.TableVotes, l.polls)
	l.mu.RUnlock()

	if err != nil {
		slog.Error("failed to save votes", "error", err)
	}
}

func view(s *models.Subject) models.SubjectView {
	v := models.SubjectView{
		SubjectID:  s.ID,
		Counts:     make(map[models.Bucket]int, len(models.Buckets)),
		Members:    make(map[models.Bucket][]string, len(models.Buckets)),
		ArtifactID: s.ArtifactID,
	}
	for _, b := range models.Buckets {
		names := make([]string, 0, len(s.Votes[b]))
		for _, voter := range s.Votes[b] {
			names = append(names, voter.Name)
		}
		v.Counts[b] = len(names)
		v.Members[b] = names
	}
	return v
}

func emptyBuckets() map[models.Bucket][]models.Voter {
	votes := make(map[models.Bucket][]models.Voter, len(models.Buckets))
	for _, b := range models.Buckets {
		votes[b] = []models.Voter{}
	}
	return votes
}

func indexOf(voters []models.Voter, id string) int {
	for i, v := range voters {
		if v.ID == id {
			return i
		}
	}
	return -1
}

func remove(voters []models.Voter, id string) []models.Voter {
	out := voters[:0]
	for _, v := range voters {
		if v.ID != id {
			out = append(out, v)
		}
	}
	return out
}
