// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package messaging

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/danielhkuo/rollcall/models"
)

var (
	testPoll = models.Poll{
		ID:          "poll-1",
		Scope:       "beginner",
		Target:      "chat-1",
		Label:       "12 month, week 1",
		WindowStart: time.Date(2025, 12, 7, 0, 0, 0, 0, time.UTC),
	}
	testSubject = models.SubjectID{PollID: "poll-1", DateKey: "2025-12-07 (Sun)"}
)

func testView() models.SubjectView {
	return models.SubjectView{
		SubjectID: testSubject,
		Counts: map[models.Bucket]int{
			models.BucketAttending:   3,
			models.BucketRemoteOK:    0,
			models.BucketUnavailable: 1,
		},
		Members: map[models.Bucket][]string{
			models.BucketAttending:   {"A", "B", "C"},
			models.BucketUnavailable: {"D"},
		},
	}
}

func TestSubjectText(t *testing.T) {
	text := SubjectText(testPoll, testView())

	for _, want := range []string{
		"12 month, week 1 · beginner",
		"2025-12-07 (Sun)",
		"Attending (3): A, B and C",
		"Remote OK (0): -",
		"Unavailable (1): D",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in:\n%s", want, text)
		}
	}
}

func TestDigestTextHidesUnavailableNames(t *testing.T) {
	now := testPoll.WindowStart.AddDate(0, 0, -14)
	text := DigestText(testPoll, []models.SubjectView{testView()}, now)

	if !strings.Contains(text, "2 weeks from now") {
		t.Errorf("Expected relative start time, got:\n%s", text)
	}
	if !strings.Contains(text, "Attending 3 (A, B and C)") {
		t.Errorf("Expected attending names, got:\n%s", text)
	}
	if strings.Contains(text, "(D)") {
		t.Errorf("Expected unavailable names to be hidden, got:\n%s", text)
	}
	if !strings.Contains(text, "Unavailable 1") {
		t.Errorf("Expected unavailable count, got:\n%s", text)
	}
}

func TestConfirmationAndResolutionText(t *testing.T) {
	req := models.ConfirmationRequested{SubjectID: testSubject, Roster: []string{"A", "B", "C"}}
	if text := ConfirmationText(req); !strings.Contains(text, "3 people attending (A, B and C)") {
		t.Errorf("Unexpected confirmation text: %s", text)
	}

	confirmed := models.ResolutionAnnounced{
		SubjectID:     testSubject,
		Outcome:       models.ResolutionConfirmed,
		Roster:        []string{"A", "B"},
		Location:      "StudioX",
		AttachmentURL: "https://example.com/map.png",
	}
	text := ResolutionText(confirmed)
	for _, want := range []string{"confirmed at StudioX", "A and B", "https://example.com/map.png"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in %q", want, text)
		}
	}

	declined := models.ResolutionAnnounced{SubjectID: testSubject, Outcome: models.ResolutionDeclined}
	if text := ResolutionText(declined); !strings.Contains(text, "will not take place") {
		t.Errorf("Unexpected decline text: %s", text)
	}
}

func TestEscalationText(t *testing.T) {
	text := EscalationText(testSubject, []models.Member{{ID: "1", Name: "Ann"}, {ID: "2", Name: "Ben"}})
	if text != "Reminder for 2025-12-07 (Sun): Ann and Ben, please vote." {
		t.Errorf("Unexpected escalation text: %s", text)
	}
}

type failingMessenger struct{ LogMessenger }

func (failingMessenger) RenderSubject(context.Context, models.Poll, models.SubjectView) (string, error) {
	return "", ErrTargetNotFound
}

func (failingMessenger) RenderDigest(context.Context, models.Poll, []models.SubjectView) error {
	return ErrTargetNotFound
}

func TestFanout(t *testing.T) {
	f := Fanout{failingMessenger{}, LogMessenger{}}
	ctx := context.Background()

	// A failed primary yields no handle even though the log copy succeeded.
	artifact, err := f.RenderSubject(ctx, testPoll, testView())
	if artifact != "" {
		t.Errorf("Expected no artifact when the primary fails, got %q", artifact)
	}
	if !errors.Is(err, ErrTargetNotFound) {
		t.Errorf("Expected joined ErrTargetNotFound, got %v", err)
	}

	healthy := Fanout{LogMessenger{}, failingMessenger{}}
	artifact, err = healthy.RenderSubject(ctx, testPoll, testView())
	if artifact != "log:"+testSubject.String() {
		t.Errorf("Expected the primary's artifact, got %q", artifact)
	}
	if !errors.Is(err, ErrTargetNotFound) {
		t.Errorf("Expected the mirror's error to be reported, got %v", err)
	}

	if err := f.RenderDigest(ctx, testPoll, nil); !errors.Is(err, ErrTargetNotFound) {
		t.Errorf("Expected joined ErrTargetNotFound, got %v", err)
	}
	if err := f.RenderAllVoted(ctx, testPoll); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}
