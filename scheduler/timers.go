// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scheduler

import (
	"sort"
	"sync"
	"time"
)

type stopper interface {
	Stop() bool
}

// Timers runs one-shot jobs at wall-clock instants. Ids are unique: a job
// registered under an id that is already pending replaces it.
type Timers struct {
	now       func() time.Time
	afterFunc func(time.Duration, func()) stopper

	mu      sync.Mutex
	seq     uint64
	pending map[string]timerEntry
}

type timerEntry struct {
	seq   uint64
	at    time.Time
	timer stopper
}

func NewTimers() *Timers {
	return &Timers{
		now: time.Now,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		pending: make(map[string]timerEntry),
	}
}

// ScheduleAt runs fn at or after at. Instants in the past fire immediately.
func (t *Timers) ScheduleAt(id string, at time.Time, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.pending[id]; ok {
		old.timer.Stop()
		delete(t.pending, id)
	}

	t.seq++
	seq := t.seq
	delay := at.Sub(t.now())
	if delay < 0 {
		delay = 0
	}
	timer := t.afterFunc(delay, func() {
		t.mu.Lock()
		if entry, ok := t.pending[id]; !ok || entry.seq != seq {
			t.mu.Unlock()
			return
		}
		delete(t.pending, id)
		t.mu.Unlock()
		fn()
	})
	t.pending[id] = timerEntry{seq: seq, at: at, timer: timer}
}

// Cancel removes a pending job. It reports whether one was pending.
func (t *Timers) Cancel(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.pending[id]
	if ok {
		entry.timer.Stop()
		delete(t.pending, id)
	}
	return ok
}

// Pending returns the ids of jobs not yet fired, sorted.
func (t *Timers) Pending() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.pending))
	for id := range t.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// When returns the instant a pending job is due.
func (t *Timers) When(id string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.pending[id]
	return entry.at, ok
}

// Stop cancels every pending job.
func (t *Timers) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, entry := range t.pending {
		entry.timer.Stop()
		delete(t.pending, id)
	}
}
