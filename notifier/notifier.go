// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/danielhkuo/rollcall/db"
	"github.com/danielhkuo/rollcall/messaging"
	"github.com/danielhkuo/rollcall/models"
)

const (
	DefaultThreshold         = 3
	DefaultAttachmentTimeout = 5 * time.Minute
)

var (
	ErrNotPrivileged   = errors.New("actor is not privileged")
	ErrNotRequested    = errors.New("no confirmation has been requested for this subject")
	ErrAlreadyResolved = errors.New("subject already resolved")
	ErrUnknownLocation = errors.New("location is not registered for this scope")
)

// VoteReader is the slice of the ledger the notifier reads.
type VoteReader interface {
	SubjectView(id models.SubjectID) (models.SubjectView, error)
}

// PollLookup maps a poll id to its stored poll (target, scope).
type PollLookup interface {
	Poll(id string) (models.Poll, bool)
}

type Privileges interface {
	IsPrivileged(actorID string) bool
}

type LocationChecker interface {
	Contains(scope, name string) bool
}

type Config struct {
	Threshold int
	// NotifyOnce false lets a declined subject fire once more when the
	// threshold is met again.
	NotifyOnce        bool
	AttachmentTimeout time.Duration
	// ConfirmTargets routes a scope's confirmation requests away from the
	// voters' chat. Scopes without an entry use the poll's target.
	ConfirmTargets map[string]string
}

// Deps are the notifier's collaborators. Polls and Locations may be nil.
type Deps struct {
	Store      *db.Store
	Votes      VoteReader
	Messenger  messaging.Messenger
	Privileges Privileges
	Polls      PollLookup
	Locations  LocationChecker
	Mailbox    *Mailbox
}

// Extra is what the resolver picks along with the outcome.
type Extra struct {
	Location        string
	AttachmentURL   string
	AwaitAttachment bool
}

type Notifier struct {
	cfg  Config
	deps Deps
	now  func() time.Time

	saveMu sync.Mutex

	mu        sync.Mutex
	records   map[string]*models.NotificationRecord
	resolving map[string]bool
}

func New(cfg Config, deps Deps) *Notifier {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.AttachmentTimeout <= 0 {
		cfg.AttachmentTimeout = DefaultAttachmentTimeout
	}
	if deps.Mailbox == nil {
		deps.Mailbox = NewMailbox()
	}
	return &Notifier{
		cfg:       cfg,
		deps:      deps,
		now:       time.Now,
		records:   make(map[string]*models.NotificationRecord),
		resolving: make(map[string]bool),
	}
}

func (n *Notifier) Mailbox() *Mailbox { return n.deps.Mailbox }

func (n *Notifier) Threshold() int { return n.cfg.Threshold }

// Load replaces the in-memory records with the persisted notifications table.
func (n *Notifier) Load(ctx context.Context) error {
	loaded := make(map[string]*models.NotificationRecord)
	if _, err := n.deps.Store.Load(ctx, db.TableNotifications, &loaded); err != nil {
		return err
	}
	for key, rec := range loaded {
		id, err := models.ParseSubjectID(key)
		if err != nil {
			return fmt.Errorf("notifications table: %w", err)
		}
		rec.SubjectID = id
		if rec.Resolution == "" {
			rec.Resolution = models.ResolutionPending
		}
	}

	n.mu.Lock()
	n.records = loaded
	n.mu.Unlock()
	return nil
}

// OnVoteChanged fires the confirmation request the first time the attending
// count reaches the threshold. Fired is never cleared.
func (n *Notifier) OnVoteChanged(ctx context.Context, id models.SubjectID) {
	view, err := n.deps.Votes.SubjectView(id)
	if err != nil {
		slog.Error("notifier could not read subject", "subject", id.String(), "error", err)
		return
	}
	if view.Counts[models.BucketAttending] < n.cfg.Threshold {
		return
	}

	key := id.String()
	n.mu.Lock()
	rec, ok := n.records[key]
	if ok && rec.Fired && !n.rearmable(rec) {
		n.mu.Unlock()
		return
	}
	if !ok {
		rec = &models.NotificationRecord{SubjectID: id}
		n.records[key] = rec
	} else if rec.Fired {
		rec.Rearmed++
		rec.ResolvedBy = ""
		rec.ResolvedAt = nil
		rec.Location = ""
		rec.AttachmentURL = ""
	}

	rec.Fired = true
	rec.FiredAt = n.now()
	rec.Participants = append([]string{}, view.Members[models.BucketAttending]...)
	rec.Resolution = models.ResolutionPending
	poll := n.poll(id.PollID)
	rec.SourceTarget = poll.Target
	event := models.ConfirmationRequested{
		SubjectID:    id,
		SourceTarget: rec.SourceTarget,
		Target:       n.confirmTarget(poll),
		Roster:       append([]string{}, rec.Participants...),
		RequestedAt:  rec.FiredAt,
	}
	n.mu.Unlock()

	n.persist(ctx)
	slog.Info("confirmation requested", "subject", key, "attending", len(event.Roster), "target", event.Target)

	if err := n.deps.Messenger.RenderConfirmationRequest(ctx, event); err != nil {
		slog.Error("failed to render confirmation request", "subject", key, "error", err)
	}
}

func (n *Notifier) rearmable(rec *models.NotificationRecord) bool {
	return !n.cfg.NotifyOnce && rec.Resolution == models.ResolutionDeclined
}

// Resolve records a privileged actor's answer to a confirmation request and
// announces it with the roster frozen at fire time. A subject resolves once.
func (n *Notifier) Resolve(ctx context.Context, id models.SubjectID, outcome models.Resolution, actorID string, extra Extra) (models.NotificationRecord, error) {
	if outcome != models.ResolutionConfirmed && outcome != models.ResolutionDeclined {
		return models.NotificationRecord{}, fmt.Errorf("%w: %q", models.ErrInvalidOutcome, outcome)
	}
	if n.deps.Privileges == nil || !n.deps.Privileges.IsPrivileged(actorID) {
		return models.NotificationRecord{}, ErrNotPrivileged
	}

	extra.Location = strings.TrimSpace(extra.Location)
	extra.AttachmentURL = strings.TrimSpace(extra.AttachmentURL)
	if outcome == models.ResolutionDeclined {
		extra = Extra{}
	}
	if extra.Location != "" && n.deps.Locations != nil {
		scope := ""
		if n.deps.Polls != nil {
			if poll, ok := n.deps.Polls.Poll(id.PollID); ok {
				scope = poll.Scope
			}
		}
		if !n.deps.Locations.Contains(scope, extra.Location) {
			return models.NotificationRecord{}, fmt.Errorf("%w: %q", ErrUnknownLocation, extra.Location)
		}
	}

	key := id.String()
	n.mu.Lock()
	rec, ok := n.records[key]
	switch {
	case !ok || !rec.Fired:
		n.mu.Unlock()
		return models.NotificationRecord{}, fmt.Errorf("%w: %s", ErrNotRequested, key)
	case rec.Resolved() || n.resolving[key]:
		n.mu.Unlock()
		return models.NotificationRecord{}, fmt.Errorf("%w: %s", ErrAlreadyResolved, key)
	}
	n.resolving[key] = true
	n.mu.Unlock()

	if extra.AwaitAttachment && extra.AttachmentURL == "" {
		slog.Info("waiting for attachment", "subject", key, "timeout", n.cfg.AttachmentTimeout)
		extra.AttachmentURL = n.deps.Mailbox.Await(ctx, id, n.cfg.AttachmentTimeout)
	}
	// Past this point the resolution is committed; the caller going away
	// must not stop it from being saved and announced.
	ctx = context.WithoutCancel(ctx)

	n.mu.Lock()
	resolvedAt := n.now()
	rec.Resolution = outcome
	rec.ResolvedBy = actorID
	rec.ResolvedAt = &resolvedAt
	rec.Location = extra.Location
	rec.AttachmentURL = extra.AttachmentURL
	delete(n.resolving, key)
	result := copyRecord(rec)
	n.mu.Unlock()

	n.persist(ctx)
	slog.Info("subject resolved", "subject", key, "outcome", outcome, "by", actorID, "location", extra.Location)

	ann := models.ResolutionAnnounced{
		SubjectID:     id,
		SourceTarget:  result.SourceTarget,
		Outcome:       outcome,
		Roster:        append([]string{}, result.Participants...),
		ResolvedBy:    actorID,
		Location:      result.Location,
		AttachmentURL: result.AttachmentURL,
	}
	if err := n.deps.Messenger.RenderResolution(ctx, ann); err != nil {
		slog.Error("failed to render resolution", "subject", key, "error", err)
	}
	return result, nil
}

// Record returns the notification record for id.
func (n *Notifier) Record(id models.SubjectID) (models.NotificationRecord, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	rec, ok := n.records[id.String()]
	if !ok {
		return models.NotificationRecord{}, false
	}
	return copyRecord(rec), true
}

func (n *Notifier) poll(pollID string) models.Poll {
	if n.deps.Polls == nil {
		return models.Poll{ID: pollID}
	}
	poll, ok := n.deps.Polls.Poll(pollID)
	if !ok {
		slog.Warn("no poll for subject, confirmation has no target", "poll", pollID)
		return models.Poll{ID: pollID}
	}
	return poll
}

func (n *Notifier) confirmTarget(poll models.Poll) string {
	if target := strings.TrimSpace(n.cfg.ConfirmTargets[poll.Scope]); target != "" {
		return target
	}
	return poll.Target
}

// persist writes the whole notifications table. Failures are logged.
func (n *Notifier) persist(ctx context.Context) {
	n.saveMu.Lock()
	defer n.saveMu.Unlock()

	n.mu.Lock()
	err := n.deps.Store.Save(ctx, db.TableNotifications, n.records)
	n.mu.Unlock()
	if err != nil {
		slog.Error("failed to save notifications", "error", err)
	}
}

func copyRecord(rec *models.NotificationRecord) models.NotificationRecord {
	out := *rec
	out.Participants = append([]string{}, rec.Participants...)
	if rec.ResolvedAt != nil {
		at := *rec.ResolvedAt
		out.ResolvedAt = &at
	}
	return out
}
