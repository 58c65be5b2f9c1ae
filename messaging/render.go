// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package messaging

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"github.com/danielhkuo/rollcall/models"
)

// Title is the heading shared by every message about a poll.
func Title(poll models.Poll) string {
	if poll.Scope == "" {
		return poll.Label
	}
	return poll.Label + " · " + poll.Scope
}

func SubjectText(poll models.Poll, view models.SubjectView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n", Title(poll), view.SubjectID.DateKey)
	for _, bucket := range models.Buckets {
		fmt.Fprintf(&b, "%s (%d): %s\n", bucket.Label(), view.Counts[bucket], names(view.Members[bucket]))
	}
	return strings.TrimRight(b.String(), "\n")
}

// DigestText summarizes every subject of a poll. Unavailable voters are
// counted but not named.
func DigestText(poll models.Poll, views []models.SubjectView, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Vote status for %s (starts %s)\n", Title(poll), humanize.RelTime(poll.WindowStart, now, "ago", "from now"))
	for _, v := range views {
		fmt.Fprintf(&b, "%s: %s %s, %s %s, %s %d\n",
			v.SubjectID.DateKey,
			models.BucketAttending.Label(), countedNames(v, models.BucketAttending),
			models.BucketRemoteOK.Label(), countedNames(v, models.BucketRemoteOK),
			models.BucketUnavailable.Label(), v.Counts[models.BucketUnavailable],
		)
	}
	return strings.TrimRight(b.String(), "\n")
}

func EscalationText(subject models.SubjectID, mentions []models.Member) string {
	who := make([]string, 0, len(mentions))
	for _, m := range mentions {
		who = append(who, m.Name)
	}
	return fmt.Sprintf("Reminder for %s: %s, please vote.", subject.DateKey, english.WordSeries(who, "and"))
}

func AllVotedText(poll models.Poll) string {
	return fmt.Sprintf("Everyone has voted on every date of %s. Thank you!", Title(poll))
}

func ConfirmationText(req models.ConfirmationRequested) string {
	return fmt.Sprintf("Confirmation needed for %s: %s attending (%s). Confirm or decline.",
		req.SubjectID.DateKey,
		english.Plural(len(req.Roster), "person", "people"),
		names(req.Roster),
	)
}

func ResolutionText(ann models.ResolutionAnnounced) string {
	if ann.Outcome == models.ResolutionDeclined {
		return fmt.Sprintf("%s will not take place.", ann.SubjectID.DateKey)
	}
	text := fmt.Sprintf("%s is confirmed", ann.SubjectID.DateKey)
	if ann.Location != "" {
		text += " at " + ann.Location
	}
	text += fmt.Sprintf(". Participants: %s.", names(ann.Roster))
	if ann.AttachmentURL != "" {
		text += "\n" + ann.AttachmentURL
	}
	return text
}

func countedNames(v models.SubjectView, bucket models.Bucket) string {
	return fmt.Sprintf("%d (%s)", v.Counts[bucket], names(v.Members[bucket]))
}

func names(list []string) string {
	if len(list) == 0 {
		return "-"
	}
	return english.WordSeries(list, "and")
}
