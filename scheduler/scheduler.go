// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/rollcall/calendar"
	"github.com/danielhkuo/rollcall/db"
	"github.com/danielhkuo/rollcall/messaging"
	"github.com/danielhkuo/rollcall/models"
)

var (
	ErrUnknownScope = errors.New("scope is not configured")
	ErrPollNotFound = errors.New("poll not found")
)

// pollNamespace scopes the name-based poll ids.
var pollNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("rollcall/polls"))

// Ledger is the slice of the vote ledger the stages use.
type Ledger interface {
	CreateSubject(ctx context.Context, pollID, dateKey string) (bool, error)
	SubjectView(id models.SubjectID) (models.SubjectView, error)
	Subjects(pollID string) []models.SubjectView
	UnvotedAmong(id models.SubjectID, candidates []string) ([]string, error)
	SetArtifact(ctx context.Context, id models.SubjectID, artifactID string) error
}

type Privileges interface {
	IsPrivileged(actorID string) bool
}

type Config struct {
	Location   *time.Location
	WeeksAhead int

	// Weekly Stage 1 trigger; Stages 2 and 3 run at the same clock time.
	SlateDay    time.Weekday
	SlateHour   int
	SlateMinute int

	RemindWeeksBefore   int
	EscalateWeeksBefore int

	// Polls maps each scope to its rendering target.
	Polls map[string]string
}

// Deps are the scheduler's collaborators. Roster and Privileges may be nil.
type Deps struct {
	Store      *db.Store
	Ledger     Ledger
	Messenger  messaging.Messenger
	Roster     RosterSource
	Privileges Privileges
}

type Scheduler struct {
	cfg    Config
	deps   Deps
	now    func() time.Time
	timers *Timers

	// runMu serializes stage runs.
	runMu sync.Mutex

	saveMu sync.Mutex

	mu      sync.RWMutex
	polls   map[string]*models.Poll
	baseCtx context.Context
}

func New(cfg Config, deps Deps) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Scheduler{
		cfg:    cfg,
		deps:   deps,
		now:    time.Now,
		timers: NewTimers(),
		polls:  make(map[string]*models.Poll),
	}
}

// PollID is the deterministic id of the poll for scope and window start.
func PollID(scope string, windowStart time.Time) string {
	name := scope + "|" + windowStart.Format("2006-01-02")
	return uuid.NewSHA1(pollNamespace, []byte(name)).String()
}

// Load replaces the in-memory polls with the persisted polls table.
func (s *Scheduler) Load(ctx context.Context) error {
	loaded := make(map[string]*models.Poll)
	if _, err := s.deps.Store.Load(ctx, db.TablePolls, &loaded); err != nil {
		return err
	}
	for id, poll := range loaded {
		poll.ID = id
		if poll.Stage == "" {
			poll.Stage = models.StagePending
		}
	}
	s.mu.Lock()
	s.polls = loaded
	s.mu.Unlock()
	return nil
}

// Poll returns a copy of the stored poll.
func (s *Scheduler) Poll(id string) (models.Poll, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	poll, ok := s.polls[id]
	if !ok {
		return models.Poll{}, false
	}
	return copyPoll(poll), true
}

// Polls returns every stored poll, newest window first.
func (s *Scheduler) Polls() []models.Poll {
	s.mu.RLock()
	defer s.mu.RUnlock()
	polls := make([]models.Poll, 0, len(s.polls))
	for _, poll := range s.polls {
		polls = append(polls, copyPoll(poll))
	}
	sort.Slice(polls, func(i, j int) bool {
		if !polls[i].WindowStart.Equal(polls[j].WindowStart) {
			return polls[i].WindowStart.After(polls[j].WindowStart)
		}
		return polls[i].Scope < polls[j].Scope
	})
	return polls
}

// Timers exposes the stage timer registry.
func (s *Scheduler) Timers() *Timers { return s.timers }

// CreateSlate is Stage 1 for one scope: it creates the poll for the window
// WeeksAhead weeks after now, one subject per date, and renders every
// subject that has not been rendered yet. Re-running it is harmless.
func (s *Scheduler) CreateSlate(ctx context.Context, scope string, now time.Time) (models.Poll, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.createSlate(ctx, scope, now)
}

func (s *Scheduler) createSlate(ctx context.Context, scope string, now time.Time) (models.Poll, error) {
	target, ok := s.cfg.Polls[scope]
	if !ok {
		return models.Poll{}, fmt.Errorf("%w: %q", ErrUnknownScope, scope)
	}

	start := calendar.WindowStart(now.In(s.cfg.Location), s.cfg.WeeksAhead)
	id := PollID(scope, start)

	s.mu.Lock()
	poll, exists := s.polls[id]
	if !exists {
		dates := calendar.WeekDates(start)
		keys := make([]string, 0, len(dates))
		for _, d := range dates {
			keys = append(keys, calendar.DateKey(d))
		}
		poll = &models.Poll{
			ID:          id,
			Scope:       scope,
			Target:      target,
			Label:       calendar.WeekLabel(start),
			WindowStart: start,
			DateKeys:    keys,
			Stage:       models.StagePending,
			CreatedAt:   now,
			StageAt:     make(map[models.Stage]time.Time),
		}
		s.polls[id] = poll
	}
	snapshot := copyPoll(poll)
	s.mu.Unlock()

	if !exists {
		s.persist(ctx)
		slog.Info("poll created", "poll", id, "scope", scope, "window", start.Format("2006-01-02"), "label", snapshot.Label)
	}

	for _, subject := range snapshot.SubjectIDs() {
		if _, err := s.deps.Ledger.CreateSubject(ctx, subject.PollID, subject.DateKey); err != nil {
			slog.Error("failed to create subject", "subject", subject.String(), "error", err)
			continue
		}
		view, err := s.deps.Ledger.SubjectView(subject)
		if err != nil {
			slog.Error("failed to read subject", "subject", subject.String(), "error", err)
			continue
		}
		if view.ArtifactID != "" {
			continue
		}
		artifact, err := s.deps.Messenger.RenderSubject(ctx, snapshot, view)
		if err != nil {
			slog.Error("failed to render subject", "subject", subject.String(), "target", snapshot.Target, "error", err)
		}
		if artifact == "" {
			continue
		}
		if err := s.deps.Ledger.SetArtifact(ctx, subject, artifact); err != nil {
			slog.Error("failed to record artifact", "subject", subject.String(), "error", err)
		}
	}

	snapshot = s.advance(ctx, id, models.StageSlateCreated, now)
	s.schedulePollStages(snapshot)
	return snapshot, nil
}

// Remind is Stage 2: one read-only digest of every subject in the poll.
func (s *Scheduler) Remind(ctx context.Context, pollID string) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.remind(ctx, pollID)
}

func (s *Scheduler) remind(ctx context.Context, pollID string) error {
	poll, ok := s.Poll(pollID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPollNotFound, pollID)
	}

	views := s.deps.Ledger.Subjects(pollID)
	if err := s.deps.Messenger.RenderDigest(ctx, poll, views); err != nil {
		slog.Error("failed to render digest", "poll", pollID, "target", poll.Target, "error", err)
	}

	s.advance(ctx, pollID, models.StageRemindedOnce, s.now())
	slog.Info("digest sent", "poll", pollID, "subjects", len(views))
	return nil
}

// Escalate is Stage 3: mention the roster members that have not voted on a
// date. When nobody is missing anywhere a single acknowledgment is sent
// instead. Privileged members are never mentioned.
func (s *Scheduler) Escalate(ctx context.Context, pollID string) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.escalate(ctx, pollID)
}

func (s *Scheduler) escalate(ctx context.Context, pollID string) error {
	poll, ok := s.Poll(pollID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPollNotFound, pollID)
	}

	members, err := s.candidates(ctx, poll)
	if err != nil {
		return fmt.Errorf("roster for poll %s: %w", pollID, err)
	}
	byID := make(map[string]models.Member, len(members))
	ids := make([]string, 0, len(members))
	for _, m := range members {
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}

	type nag struct {
		subject  models.SubjectID
		mentions []models.Member
	}
	var (
		nags      []nag
		unchecked int
	)
	for _, subject := range poll.SubjectIDs() {
		unvoted, err := s.deps.Ledger.UnvotedAmong(subject, ids)
		if err != nil {
			slog.Error("failed to compute non-voters", "subject", subject.String(), "error", err)
			unchecked++
			continue
		}
		if len(unvoted) == 0 {
			continue
		}
		mentions := make([]models.Member, 0, len(unvoted))
		for _, id := range unvoted {
			mentions = append(mentions, byID[id])
		}
		nags = append(nags, nag{subject: subject, mentions: mentions})
	}

	switch {
	case len(nags) == 0 && unchecked > 0:
		// Unchecked dates may still have non-voters.
		slog.Warn("skipping all-voted acknowledgment", "poll", pollID, "unchecked", unchecked)
	case len(nags) == 0:
		if err := s.deps.Messenger.RenderAllVoted(ctx, poll); err != nil {
			slog.Error("failed to render all-voted", "poll", pollID, "error", err)
		}
		slog.Info("everyone voted", "poll", pollID, "roster", len(ids))
	default:
		for _, n := range nags {
			if err := s.deps.Messenger.RenderEscalation(ctx, poll, n.subject, n.mentions); err != nil {
				slog.Error("failed to render escalation", "subject", n.subject.String(), "error", err)
			}
		}
		slog.Info("escalation sent", "poll", pollID, "dates", len(nags))
	}

	s.advance(ctx, pollID, models.StageEscalated, s.now())
	return nil
}

// candidates is the poll's roster without privileged members, deduplicated.
func (s *Scheduler) candidates(ctx context.Context, poll models.Poll) ([]models.Member, error) {
	if s.deps.Roster == nil {
		slog.Warn("no roster configured, escalation has nobody to mention", "poll", poll.ID)
		return nil, nil
	}
	members, err := s.deps.Roster.Members(ctx, poll)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	out := make([]models.Member, 0, len(members))
	for _, m := range members {
		m.ID = strings.TrimSpace(m.ID)
		if m.ID == "" || seen[m.ID] {
			continue
		}
		if s.deps.Privileges != nil && s.deps.Privileges.IsPrivileged(m.ID) {
			continue
		}
		if m.Name == "" {
			m.Name = m.ID
		}
		seen[m.ID] = true
		out = append(out, m)
	}
	return out, nil
}

// RunStage runs a stage across every configured scope (create-slate) or
// every active poll (remind, escalate). Without force, polls already at or
// past the stage are skipped. It returns the ids of the polls it ran for.
func (s *Scheduler) RunStage(ctx context.Context, stage models.StageName, force bool) ([]string, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	now := s.now()
	ran := []string{}
	var errs []error

	switch stage {
	case models.StageCreateSlate:
		for _, scope := range s.scopes() {
			poll, err := s.createSlate(ctx, scope, now)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			ran = append(ran, poll.ID)
		}
	case models.StageRemind, models.StageEscalate:
		reached := stageReached(stage)
		for _, poll := range s.Polls() {
			if !s.active(poll, now) {
				continue
			}
			if !force && poll.Stage.Reached(reached) {
				continue
			}
			if err := s.runPoll(ctx, poll.ID, stage); err != nil {
				errs = append(errs, err)
				continue
			}
			ran = append(ran, poll.ID)
		}
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidStage, stage)
	}

	slog.Info("stage run", "stage", stage, "force", force, "polls", len(ran))
	return ran, errors.Join(errs...)
}

func (s *Scheduler) runPoll(ctx context.Context, pollID string, stage models.StageName) error {
	if stage == models.StageRemind {
		return s.remind(ctx, pollID)
	}
	return s.escalate(ctx, pollID)
}

// active reports whether the poll's week has not ended yet.
func (s *Scheduler) active(poll models.Poll, now time.Time) bool {
	return now.Before(poll.WindowStart.AddDate(0, 0, 7))
}

func (s *Scheduler) scopes() []string {
	scopes := make([]string, 0, len(s.cfg.Polls))
	for scope := range s.cfg.Polls {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	return scopes
}

// Start registers the weekly Stage 1 job and the Stage 2 and 3 jobs of every
// active persisted poll. Jobs run with ctx until Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	s.scheduleSlate()
	for _, poll := range s.Polls() {
		s.schedulePollStages(poll)
	}
	slog.Info("scheduler started", "pending", s.timers.Pending())
}

func (s *Scheduler) Stop() {
	s.timers.Stop()
}

func (s *Scheduler) scheduleSlate() {
	ctx := s.context()
	if ctx == nil {
		return
	}
	at := calendar.NextWeekly(s.now().In(s.cfg.Location), s.cfg.SlateDay, s.cfg.SlateHour, s.cfg.SlateMinute)
	s.timers.ScheduleAt(string(models.StageCreateSlate), at, func() {
		if _, err := s.RunStage(ctx, models.StageCreateSlate, false); err != nil {
			slog.Error("scheduled slate failed", "error", err)
		}
		s.scheduleSlate()
	})
}

// schedulePollStages registers the poll's remaining stages. Nothing is
// registered before Start or for polls whose week is over.
func (s *Scheduler) schedulePollStages(poll models.Poll) {
	ctx := s.context()
	if ctx == nil || !s.active(poll, s.now()) {
		return
	}

	stages := []struct {
		name        models.StageName
		reached     models.Stage
		weeksBefore int
	}{
		{models.StageRemind, models.StageRemindedOnce, s.cfg.RemindWeeksBefore},
		{models.StageEscalate, models.StageEscalated, s.cfg.EscalateWeeksBefore},
	}
	for _, st := range stages {
		if poll.Stage.Reached(st.reached) {
			continue
		}
		name, pollID, reached := st.name, poll.ID, st.reached
		s.timers.ScheduleAt(TimerID(name, pollID), s.StageTime(poll, st.weeksBefore), func() {
			s.runMu.Lock()
			defer s.runMu.Unlock()
			current, ok := s.Poll(pollID)
			if !ok || current.Stage.Reached(reached) {
				return
			}
			if err := s.runPoll(ctx, pollID, name); err != nil {
				slog.Error("scheduled stage failed", "stage", name, "poll", pollID, "error", err)
			}
		})
	}
}

// TimerID names the timer of a per-poll stage.
func TimerID(stage models.StageName, pollID string) string {
	return string(stage) + ":" + pollID
}

// StageTime is when a per-poll stage is due: weeksBefore weeks before the
// poll's window, at the slate clock time.
func (s *Scheduler) StageTime(poll models.Poll, weeksBefore int) time.Time {
	day := poll.WindowStart.In(s.cfg.Location).AddDate(0, 0, -7*weeksBefore)
	return calendar.AtClock(day, s.cfg.SlateHour, s.cfg.SlateMinute)
}

func (s *Scheduler) context() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseCtx
}

// advance moves the poll forward to stage. Stages never move backwards.
func (s *Scheduler) advance(ctx context.Context, pollID string, stage models.Stage, at time.Time) models.Poll {
	s.mu.Lock()
	poll, ok := s.polls[pollID]
	if !ok {
		s.mu.Unlock()
		return models.Poll{}
	}
	if poll.StageAt == nil {
		poll.StageAt = make(map[models.Stage]time.Time)
	}
	poll.StageAt[stage] = at
	if !poll.Stage.Reached(stage) {
		poll.Stage = stage
	}
	snapshot := copyPoll(poll)
	s.mu.Unlock()

	s.persist(ctx)
	return snapshot
}

func (s *Scheduler) persist(ctx context.Context) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	err := s.deps.Store.Save(ctx, db.TablePolls, s.polls)
	s.mu.RUnlock()
	if err != nil {
		slog.Error("failed to save polls", "error", err)
	}
}

func stageReached(stage models.StageName) models.Stage {
	switch stage {
	case models.StageCreateSlate:
		return models.StageSlateCreated
	case models.StageRemind:
		return models.StageRemindedOnce
	case models.StageEscalate:
		return models.StageEscalated
	}
	return models.StagePending
}

func copyPoll(p *models.Poll) models.Poll {
	out := *p
	out.DateKeys = append([]string{}, p.DateKeys...)
	out.StageAt = make(map[models.Stage]time.Time, len(p.StageAt))
	for k, v := range p.StageAt {
		out.StageAt[k] = v
	}
	return out
}
