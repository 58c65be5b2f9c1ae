// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/danielhkuo/rollcall/models"
)

var ErrNotAwaiting = errors.New("no resolution is waiting for an attachment")

// Attachment is the one-shot reply to an attachment prompt. Skip means the
// resolver chose to go without one.
type Attachment struct {
	URL  string
	Skip bool
}

// Mailbox hands an attachment from whoever supplies it to the resolution
// waiting for it. At most one waiter per subject.
type Mailbox struct {
	mu      sync.Mutex
	waiting map[models.SubjectID]chan Attachment
}

func NewMailbox() *Mailbox {
	return &Mailbox{waiting: make(map[models.SubjectID]chan Attachment)}
}

// Deliver passes a to the resolution waiting on id.
func (m *Mailbox) Deliver(id models.SubjectID, a Attachment) error {
	a.URL = strings.TrimSpace(a.URL)

	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.waiting[id]
	if !ok {
		return ErrNotAwaiting
	}
	select {
	case ch <- a:
		return nil
	default:
		// Already answered.
		return ErrNotAwaiting
	}
}

// Await blocks until an attachment for id is delivered, timeout expires or
// ctx is done. Expiry and skip both yield "".
func (m *Mailbox) Await(ctx context.Context, id models.SubjectID, timeout time.Duration) string {
	ch := make(chan Attachment, 1)
	m.mu.Lock()
	m.waiting[id] = ch
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.waiting[id] == ch {
			delete(m.waiting, id)
		}
		m.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case a := <-ch:
		if a.Skip {
			return ""
		}
		return a.URL
	case <-timer.C:
		return ""
	case <-ctx.Done():
		return ""
	}
}

// Awaiting reports whether a resolution is currently waiting on id.
func (m *Mailbox) Awaiting(id models.SubjectID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.waiting[id]
	return ok
}
