// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package messaging defines the rendering port and its platform-neutral text.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/rollcall/models"
)

// ErrTargetNotFound is returned when a rendering target (chat, channel)
// does not exist. Callers skip the target and carry on.
var ErrTargetNotFound = errors.New("target not found")

// Messenger renders core events on a chat platform. Every call is best
// effort; callers log failures and continue.
type Messenger interface {
	// RenderSubject posts the interactive vote artifact for one subject and
	// returns its handle.
	RenderSubject(ctx context.Context, poll models.Poll, view models.SubjectView) (string, error)
	RenderDigest(ctx context.Context, poll models.Poll, views []models.SubjectView) error
	RenderEscalation(ctx context.Context, poll models.Poll, subject models.SubjectID, mentions []models.Member) error
	RenderAllVoted(ctx context.Context, poll models.Poll) error
	RenderConfirmationRequest(ctx context.Context, req models.ConfirmationRequested) error
	RenderResolution(ctx context.Context, ann models.ResolutionAnnounced) error
}

// LogMessenger writes every rendering to slog. Used when no chat platform is
// configured.
type LogMessenger struct {
	Logger *slog.Logger
}

func (m LogMessenger) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func (m LogMessenger) RenderSubject(_ context.Context, poll models.Poll, view models.SubjectView) (string, error) {
	m.logger().Info("render subject", "target", poll.Target, "text", SubjectText(poll, view))
	return "log:" + view.SubjectID.String(), nil
}

func (m LogMessenger) RenderDigest(_ context.Context, poll models.Poll, views []models.SubjectView) error {
	m.logger().Info("render digest", "target", poll.Target, "text", DigestText(poll, views, time.Now()))
	return nil
}

func (m LogMessenger) RenderEscalation(_ context.Context, poll models.Poll, subject models.SubjectID, mentions []models.Member) error {
	m.logger().Info("render escalation", "target", poll.Target, "text", EscalationText(subject, mentions))
	return nil
}

func (m LogMessenger) RenderAllVoted(_ context.Context, poll models.Poll) error {
	m.logger().Info("render all voted", "target", poll.Target, "text", AllVotedText(poll))
	return nil
}

func (m LogMessenger) RenderConfirmationRequest(_ context.Context, req models.ConfirmationRequested) error {
	m.logger().Info("render confirmation request", "target", req.Target, "subject", req.SubjectID.String(), "text", ConfirmationText(req))
	return nil
}

func (m LogMessenger) RenderResolution(_ context.Context, ann models.ResolutionAnnounced) error {
	m.logger().Info("render resolution", "target", ann.SourceTarget, "text", ResolutionText(ann))
	return nil
}

// Fanout sends every rendering to all messengers. The first messenger is
// the primary: only its artifact handle is returned, so a subject whose
// primary post failed stays unrendered and is posted again on the next
// slate run. Errors are joined.
type Fanout []Messenger

func (f Fanout) RenderSubject(ctx context.Context, poll models.Poll, view models.SubjectView) (string, error) {
	var (
		artifact string
		errs     []error
	)
	for i, m := range f {
		id, err := m.RenderSubject(ctx, poll, view)
		if err != nil {
			errs = append(errs, fmt.Errorf("messenger %d: %w", i, err))
			continue
		}
		if i == 0 {
			artifact = id
		}
	}
	return artifact, errors.Join(errs...)
}

func (f Fanout) RenderDigest(ctx context.Context, poll models.Poll, views []models.SubjectView) error {
	return f.each(func(m Messenger) error { return m.RenderDigest(ctx, poll, views) })
}

func (f Fanout) RenderEscalation(ctx context.Context, poll models.Poll, subject models.SubjectID, mentions []models.Member) error {
	return f.each(func(m Messenger) error { return m.RenderEscalation(ctx, poll, subject, mentions) })
}

func (f Fanout) RenderAllVoted(ctx context.Context, poll models.Poll) error {
	return f.each(func(m Messenger) error { return m.RenderAllVoted(ctx, poll) })
}

func (f Fanout) RenderConfirmationRequest(ctx context.Context, req models.ConfirmationRequested) error {
	return f.each(func(m Messenger) error { return m.RenderConfirmationRequest(ctx, req) })
}

func (f Fanout) RenderResolution(ctx context.Context, ann models.ResolutionAnnounced) error {
	return f.each(func(m Messenger) error { return m.RenderResolution(ctx, ann) })
}

func (f Fanout) each(call func(Messenger) error) error {
	var errs []error
	for i, m := range f {
		if err := call(m); err != nil {
			errs = append(errs, fmt.Errorf("messenger %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
