// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/rollcall/auth"
	"github.com/danielhkuo/rollcall/db"
	"github.com/danielhkuo/rollcall/ledger"
	"github.com/danielhkuo/rollcall/messaging"
	"github.com/danielhkuo/rollcall/models"
	"github.com/danielhkuo/rollcall/testutil"
)

// 2025-11-19 is a Wednesday; the slate three weeks ahead starts 2025-12-07.
var testNow = time.Date(2025, 11, 19, 10, 0, 0, 0, time.UTC)

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (f *fakeTimer) Stop() bool {
	was := !f.stopped
	f.stopped = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) afterFunc(d time.Duration, fn func()) stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{delay: d, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) last() *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers[len(c.timers)-1]
}

type fixture struct {
	sched     *Scheduler
	ledger    *ledger.Ledger
	messenger *testutil.Messenger
	store     *db.Store
	clock     *fakeClock
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store, _ := testutil.NewStore(t)
	f := &fixture{
		ledger:    ledger.New(store),
		messenger: testutil.NewMessenger(),
		store:     store,
		clock:     &fakeClock{},
	}
	f.sched = New(Config{
		Location:            time.UTC,
		WeeksAhead:          3,
		SlateDay:            time.Sunday,
		SlateHour:           9,
		RemindWeeksBefore:   2,
		EscalateWeeksBefore: 1,
		Polls:               map[string]string{"beginner": "chat-beginner", "intermediate": "chat-intermediate"},
	}, Deps{
		Store:     store,
		Ledger:    f.ledger,
		Messenger: f.messenger,
		Roster: StaticRoster{
			"beginner": {
				{ID: "A", Name: "Ann"},
				{ID: "B", Name: "Ben"},
				{ID: "coach1", Name: "Coach"},
				{ID: "A", Name: "Ann again"},
			},
		},
		Privileges: auth.NewPrivileges([]string{"coach1"}),
	})
	f.sched.now = func() time.Time { return testNow }
	f.sched.timers.now = func() time.Time { return testNow }
	f.sched.timers.afterFunc = f.clock.afterFunc
	return f
}

func (f *fixture) slate(t *testing.T, scope string) models.Poll {
	t.Helper()
	poll, err := f.sched.CreateSlate(context.Background(), scope, testNow)
	if err != nil {
		t.Fatalf("CreateSlate(%s): %v", scope, err)
	}
	return poll
}

func (f *fixture) voteAll(t *testing.T, poll models.Poll, voter string) {
	t.Helper()
	for _, id := range poll.SubjectIDs() {
		if _, err := f.ledger.ToggleVote(context.Background(), id, voter, voter, models.BucketRemoteOK); err != nil {
			t.Fatalf("ToggleVote: %v", err)
		}
	}
}

func TestPollID(t *testing.T) {
	start := time.Date(2025, 12, 7, 0, 0, 0, 0, time.UTC)

	if PollID("beginner", start) != PollID("beginner", start) {
		t.Error("PollID is not deterministic")
	}
	if PollID("beginner", start) == PollID("intermediate", start) {
		t.Error("PollID should differ per scope")
	}
	if PollID("beginner", start) == PollID("beginner", start.AddDate(0, 0, 7)) {
		t.Error("PollID should differ per window")
	}
}

func TestCreateSlate(t *testing.T) {
	f := setup(t)
	poll := f.slate(t, "beginner")

	if !poll.WindowStart.Equal(time.Date(2025, 12, 7, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected window 2025-12-07, got %s", poll.WindowStart)
	}
	if len(poll.DateKeys) != 7 || poll.DateKeys[0] != "2025-12-07 (Sun)" || poll.DateKeys[6] != "2025-12-13 (Sat)" {
		t.Errorf("Unexpected date keys: %v", poll.DateKeys)
	}
	if poll.Label != "12 month, week 1" {
		t.Errorf("Unexpected label %q", poll.Label)
	}
	if poll.Target != "chat-beginner" || poll.Scope != "beginner" {
		t.Errorf("Unexpected target/scope: %s %s", poll.Target, poll.Scope)
	}
	if poll.Stage != models.StageSlateCreated {
		t.Errorf("Expected slate_created, got %s", poll.Stage)
	}
	if got := len(f.messenger.Subjects()); got != 7 {
		t.Errorf("Expected 7 rendered subjects, got %d", got)
	}

	for _, view := range f.ledger.Subjects(poll.ID) {
		if view.ArtifactID == "" {
			t.Errorf("Expected artifact recorded for %s", view.SubjectID)
		}
		if _, ok := f.ledger.SubjectByArtifact(view.ArtifactID); !ok {
			t.Errorf("Expected artifact lookup for %s", view.ArtifactID)
		}
	}
}

func TestCreateSlateIsIdempotent(t *testing.T) {
	f := setup(t)
	first := f.slate(t, "beginner")
	f.ledger.ToggleVote(context.Background(), first.SubjectIDs()[0], "A", "Ann", models.BucketAttending)

	second := f.slate(t, "beginner")
	if first.ID != second.ID {
		t.Errorf("Expected same poll id, got %s and %s", first.ID, second.ID)
	}
	if got := len(f.messenger.Subjects()); got != 7 {
		t.Errorf("Expected no re-render, got %d renders", got)
	}
	if got := len(f.ledger.Subjects(first.ID)); got != 7 {
		t.Errorf("Expected 7 subjects, got %d", got)
	}
	view, _ := f.ledger.SubjectView(first.SubjectIDs()[0])
	if view.Counts[models.BucketAttending] != 1 {
		t.Error("Expected re-run to keep existing votes")
	}
	if got := len(f.sched.Polls()); got != 1 {
		t.Errorf("Expected one poll, got %d", got)
	}
}

func TestCreateSlateRenderFailureContinues(t *testing.T) {
	f := setup(t)
	f.messenger.FailDate("2025-12-09 (Tue)")

	poll := f.slate(t, "beginner")
	if got := len(f.messenger.Subjects()); got != 6 {
		t.Fatalf("Expected 6 renders with one failing date, got %d", got)
	}

	// The failed date is retried on the next run; the others are not.
	f.messenger = testutil.NewMessenger()
	f.sched.deps.Messenger = f.messenger
	f.slate(t, "beginner")
	subjects := f.messenger.Subjects()
	if len(subjects) != 1 || subjects[0].SubjectID.DateKey != "2025-12-09 (Tue)" {
		t.Errorf("Expected only the failed date to be re-rendered, got %v", subjects)
	}
	if poll.Stage != models.StageSlateCreated {
		t.Errorf("Expected slate_created despite failure, got %s", poll.Stage)
	}
}

// primaryDown fails every vote post, like a chat platform that is unreachable.
type primaryDown struct{ messaging.LogMessenger }

func (primaryDown) RenderSubject(context.Context, models.Poll, models.SubjectView) (string, error) {
	return "", messaging.ErrTargetNotFound
}

func TestCreateSlateRetriesWhenOnlyTheLogCopySucceeded(t *testing.T) {
	f := setup(t)
	f.sched.deps.Messenger = messaging.Fanout{primaryDown{}, messaging.LogMessenger{}}

	poll := f.slate(t, "beginner")
	for _, view := range f.ledger.Subjects(poll.ID) {
		if view.ArtifactID != "" {
			t.Fatalf("Expected no artifact after a failed post, got %q for %s", view.ArtifactID, view.SubjectID)
		}
	}

	f.sched.deps.Messenger = messaging.Fanout{f.messenger, messaging.LogMessenger{}}
	f.slate(t, "beginner")

	if got := len(f.messenger.Subjects()); got != 7 {
		t.Fatalf("Expected all 7 dates to be posted on the re-run, got %d", got)
	}
	for _, view := range f.ledger.Subjects(poll.ID) {
		if !strings.HasPrefix(view.ArtifactID, "msg:") {
			t.Errorf("Expected the chat artifact to be recorded, got %q", view.ArtifactID)
		}
	}
}

func TestCreateSlateUnknownScope(t *testing.T) {
	f := setup(t)
	if _, err := f.sched.CreateSlate(context.Background(), "advanced", testNow); !errors.Is(err, ErrUnknownScope) {
		t.Errorf("Expected ErrUnknownScope, got %v", err)
	}
}

func TestRemind(t *testing.T) {
	f := setup(t)
	poll := f.slate(t, "beginner")
	before := f.ledger.Subjects(poll.ID)

	if err := f.sched.Remind(context.Background(), poll.ID); err != nil {
		t.Fatalf("Remind: %v", err)
	}
	if got := f.messenger.Digests(poll.ID); got != 1 {
		t.Errorf("Expected one digest, got %d", got)
	}
	after := f.ledger.Subjects(poll.ID)
	for i := range before {
		if before[i].Counts[models.BucketAttending] != after[i].Counts[models.BucketAttending] {
			t.Error("Remind must not mutate the ledger")
		}
	}
	if p, _ := f.sched.Poll(poll.ID); p.Stage != models.StageRemindedOnce {
		t.Errorf("Expected reminded_once, got %s", p.Stage)
	}

	if err := f.sched.Remind(context.Background(), "missing"); !errors.Is(err, ErrPollNotFound) {
		t.Errorf("Expected ErrPollNotFound, got %v", err)
	}
}

func TestEscalateMentionsNonVoters(t *testing.T) {
	f := setup(t)
	poll := f.slate(t, "beginner")
	f.voteAll(t, poll, "A")

	if err := f.sched.Escalate(context.Background(), poll.ID); err != nil {
		t.Fatalf("Escalate: %v", err)
	}

	escalations := f.messenger.Escalations()
	if len(escalations) != 7 {
		t.Fatalf("Expected one escalation per date, got %d", len(escalations))
	}
	for _, e := range escalations {
		if len(e.Mentions) != 1 || e.Mentions[0].ID != "B" || e.Mentions[0].Name != "Ben" {
			t.Errorf("Expected only Ben mentioned, got %v", e.Mentions)
		}
	}
	if len(f.messenger.AllVoted()) != 0 {
		t.Error("Expected no all-voted message while someone is missing")
	}
	if p, _ := f.sched.Poll(poll.ID); p.Stage != models.StageEscalated {
		t.Errorf("Expected escalated, got %s", p.Stage)
	}
}

func TestEscalateAllVoted(t *testing.T) {
	f := setup(t)
	poll := f.slate(t, "beginner")
	f.voteAll(t, poll, "A")
	f.voteAll(t, poll, "B")

	if err := f.sched.Escalate(context.Background(), poll.ID); err != nil {
		t.Fatalf("Escalate: %v", err)
	}
	if got := f.messenger.AllVoted(); len(got) != 1 || got[0] != poll.ID {
		t.Errorf("Expected one all-voted message, got %v", got)
	}
	if got := len(f.messenger.Escalations()); got != 0 {
		t.Errorf("Expected no per-date escalation, got %d", got)
	}
}

func TestEscalateFailureContinues(t *testing.T) {
	f := setup(t)
	poll := f.slate(t, "beginner")
	f.messenger.FailDate("2025-12-07 (Sun)")

	if err := f.sched.Escalate(context.Background(), poll.ID); err != nil {
		t.Fatalf("Escalate: %v", err)
	}
	if got := len(f.messenger.Escalations()); got != 6 {
		t.Errorf("Expected the other 6 dates to be escalated, got %d", got)
	}
}

func TestEscalateUncheckedDatesSuppressAllVoted(t *testing.T) {
	f := setup(t)
	poll := f.slate(t, "beginner")

	// A ledger that has never seen the poll cannot answer for any date.
	store, _ := testutil.NewStore(t)
	f.sched.deps.Ledger = ledger.New(store)

	if err := f.sched.Escalate(context.Background(), poll.ID); err != nil {
		t.Fatalf("Escalate: %v", err)
	}
	if got := f.messenger.AllVoted(); len(got) != 0 {
		t.Errorf("Expected no all-voted message when dates could not be checked, got %v", got)
	}
	if got := len(f.messenger.Escalations()); got != 0 {
		t.Errorf("Expected no escalation, got %d", got)
	}
}

func TestRunStage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ids, err := f.sched.RunStage(ctx, models.StageCreateSlate, false)
	if err != nil {
		t.Fatalf("RunStage create-slate: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("Expected a poll per scope, got %v", ids)
	}

	ids, _ = f.sched.RunStage(ctx, models.StageRemind, false)
	if len(ids) != 2 {
		t.Errorf("Expected remind for both polls, got %v", ids)
	}
	ids, _ = f.sched.RunStage(ctx, models.StageRemind, false)
	if len(ids) != 0 {
		t.Errorf("Expected scheduled re-run to skip reminded polls, got %v", ids)
	}
	ids, _ = f.sched.RunStage(ctx, models.StageRemind, true)
	if len(ids) != 2 {
		t.Errorf("Expected forced re-run to resend, got %v", ids)
	}
	for _, id := range ids {
		if got := f.messenger.Digests(id); got != 2 {
			t.Errorf("Expected 2 digests for %s, got %d", id, got)
		}
	}

	if _, err := f.sched.RunStage(ctx, models.StageName("step4"), false); !errors.Is(err, models.ErrInvalidStage) {
		t.Errorf("Expected ErrInvalidStage, got %v", err)
	}
}

func TestRunStageSkipsFinishedWeeks(t *testing.T) {
	f := setup(t)
	poll := f.slate(t, "beginner")

	f.sched.now = func() time.Time { return poll.WindowStart.AddDate(0, 0, 8) }
	ids, err := f.sched.RunStage(context.Background(), models.StageEscalate, true)
	if err != nil {
		t.Fatalf("RunStage: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("Expected finished week to be skipped, got %v", ids)
	}
}

func TestTimersReplaceAndFireImmediately(t *testing.T) {
	clock := &fakeClock{}
	timers := NewTimers()
	timers.now = func() time.Time { return testNow }
	timers.afterFunc = clock.afterFunc

	var fired []string
	timers.ScheduleAt("remind:p1", testNow.Add(time.Hour), func() { fired = append(fired, "first") })
	first := clock.last()
	timers.ScheduleAt("remind:p1", testNow.Add(-time.Hour), func() { fired = append(fired, "second") })
	second := clock.last()

	if !first.stopped {
		t.Error("Expected prior timer with the same id to be stopped")
	}
	if second.delay != 0 {
		t.Errorf("Expected past instant to fire immediately, got delay %s", second.delay)
	}
	if got := timers.Pending(); len(got) != 1 {
		t.Errorf("Expected one pending timer, got %v", got)
	}

	// A superseded timer that fires anyway must not run.
	first.fn()
	second.fn()
	if strings.Join(fired, ",") != "second" {
		t.Errorf("Expected only the replacement to run, got %v", fired)
	}
	if len(timers.Pending()) != 0 {
		t.Error("Expected fired timer to leave the registry")
	}

	timers.ScheduleAt("escalate:p1", testNow.Add(time.Hour), func() {})
	if !timers.Cancel("escalate:p1") || timers.Cancel("escalate:p1") {
		t.Error("Expected Cancel to report the pending timer once")
	}
}

func TestStartRegistersStages(t *testing.T) {
	f := setup(t)
	poll := f.slate(t, "beginner")

	f.sched.Start(context.Background())
	defer f.sched.Stop()

	pending := strings.Join(f.sched.Timers().Pending(), ",")
	for _, want := range []string{"create-slate", TimerID(models.StageRemind, poll.ID), TimerID(models.StageEscalate, poll.ID)} {
		if !strings.Contains(pending, want) {
			t.Errorf("Expected timer %s, got %s", want, pending)
		}
	}

	slateAt, _ := f.sched.Timers().When("create-slate")
	if want := time.Date(2025, 11, 23, 9, 0, 0, 0, time.UTC); !slateAt.Equal(want) {
		t.Errorf("Expected next slate at %s, got %s", want, slateAt)
	}
	remindAt, _ := f.sched.Timers().When(TimerID(models.StageRemind, poll.ID))
	if want := time.Date(2025, 11, 23, 9, 0, 0, 0, time.UTC); !remindAt.Equal(want) {
		t.Errorf("Expected remind at %s, got %s", want, remindAt)
	}
	escalateAt, _ := f.sched.Timers().When(TimerID(models.StageEscalate, poll.ID))
	if want := time.Date(2025, 11, 30, 9, 0, 0, 0, time.UTC); !escalateAt.Equal(want) {
		t.Errorf("Expected escalate at %s, got %s", want, escalateAt)
	}
}

func TestScheduledStageSkipsPollPastStage(t *testing.T) {
	f := setup(t)
	f.sched.Start(context.Background())
	defer f.sched.Stop()

	poll := f.slate(t, "beginner")
	// The remind timer is the second-to-last registration.
	f.clock.mu.Lock()
	remind := f.clock.timers[len(f.clock.timers)-2]
	f.clock.mu.Unlock()

	if err := f.sched.Remind(context.Background(), poll.ID); err != nil {
		t.Fatalf("Remind: %v", err)
	}
	remind.fn()

	if got := f.messenger.Digests(poll.ID); got != 1 {
		t.Errorf("Expected the scheduled run to be skipped, got %d digests", got)
	}
}

func TestPollsPersistAndReload(t *testing.T) {
	f := setup(t)
	poll := f.slate(t, "beginner")
	f.sched.Remind(context.Background(), poll.ID)

	reloaded := New(f.sched.cfg, Deps{Store: f.store, Ledger: f.ledger, Messenger: f.messenger})
	if err := reloaded.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, ok := reloaded.Poll(poll.ID)
	if !ok {
		t.Fatal("Expected poll after reload")
	}
	if got.Stage != models.StageRemindedOnce || got.Target != "chat-beginner" || len(got.DateKeys) != 7 {
		t.Errorf("Unexpected reloaded poll: %+v", got)
	}
	if _, ok := got.StageAt[models.StageRemindedOnce]; !ok {
		t.Error("Expected stage timestamp to survive reload")
	}
}

func TestLoadRoster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.json")
	data := `{"beginner": [{"id": "1", "name": "Ann"}], "": [{"id": "9", "name": "Zed"}]}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	roster, err := LoadRoster(path)
	if err != nil {
		t.Fatalf("LoadRoster: %v", err)
	}

	members, _ := roster.Members(context.Background(), models.Poll{Scope: "beginner"})
	if len(members) != 1 || members[0].Name != "Ann" {
		t.Errorf("Unexpected beginner roster: %v", members)
	}
	members, _ = roster.Members(context.Background(), models.Poll{Scope: "advanced"})
	if len(members) != 1 || members[0].Name != "Zed" {
		t.Errorf("Expected fallback roster, got %v", members)
	}

	if _, err := LoadRoster(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing roster file")
	}
}
