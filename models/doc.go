// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines domain, event, request, and response types.

# Domain Types

  - Subject: one votable (poll, date) pair, keyed by SubjectID
  - Voter: an entry inside a bucket (stable id + display name)
  - SubjectView / VoteSnapshot: read projections with counts and members
  - NotificationRecord: confirmation workflow state for a subject
  - Poll: one slate of seven subjects for a scope and week
  - Member: roster entry used by escalation

# Buckets

A voter holds at most one bucket per subject:

	BucketAttending   = "attending"
	BucketRemoteOK    = "remote_ok"
	BucketUnavailable = "unavailable"

# Poll Stages

Polls only move forward:

	pending → slate_created → reminded_once → escalated

Manual stage triggers use the names create-slate, remind and escalate.

# Resolutions

	ResolutionPending   = "pending"
	ResolutionConfirmed = "confirmed"
	ResolutionDeclined  = "declined"

# Events

  - ConfirmationRequested: the attending roster crossed the threshold
  - ResolutionAnnounced: a privileged user confirmed or declined
*/
package models
