// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidBucket    = errors.New("invalid bucket")
	ErrInvalidSubjectID = errors.New("invalid subject id")
	ErrInvalidOutcome   = errors.New("invalid outcome")
	ErrInvalidStage     = errors.New("invalid stage")
)

// Bucket is one of the mutually exclusive vote categories.
type Bucket string

const (
	BucketAttending   Bucket = "attending"
	BucketRemoteOK    Bucket = "remote_ok"
	BucketUnavailable Bucket = "unavailable"
)

// Buckets lists every bucket in display order.
var Buckets = []Bucket{BucketAttending, BucketRemoteOK, BucketUnavailable}

func ParseBucket(s string) (Bucket, error) {
	b := Bucket(strings.TrimSpace(strings.ToLower(s)))
	if !b.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidBucket, s)
	}
	return b, nil
}

func (b Bucket) Valid() bool {
	for _, known := range Buckets {
		if b == known {
			return true
		}
	}
	return false
}

// Label is the human-facing button and heading text.
func (b Bucket) Label() string {
	switch b {
	case BucketAttending:
		return "Attending"
	case BucketRemoteOK:
		return "Remote OK"
	case BucketUnavailable:
		return "Unavailable"
	}
	return string(b)
}

// SubjectID identifies one votable date inside a poll.
type SubjectID struct {
	PollID  string `json:"poll_id"`
	DateKey string `json:"date_key"`
}

func (id SubjectID) String() string {
	return id.PollID + "|" + id.DateKey
}

func ParseSubjectID(s string) (SubjectID, error) {
	pollID, dateKey, ok := strings.Cut(s, "|")
	if !ok || pollID == "" || dateKey == "" {
		return SubjectID{}, fmt.Errorf("%w: %q", ErrInvalidSubjectID, s)
	}
	return SubjectID{PollID: pollID, DateKey: dateKey}, nil
}

// Voter is one entry in a bucket. Entries keep insertion order.
type Voter struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Subject is a votable (poll, date) pair with its three buckets.
type Subject struct {
	ID         SubjectID          `json:"id"`
	Votes      map[Bucket][]Voter `json:"votes"`
	ArtifactID string             `json:"artifact_id,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// SubjectView is the read projection of a subject.
type SubjectView struct {
	SubjectID  SubjectID           `json:"subject_id"`
	Counts     map[Bucket]int      `json:"counts"`
	Members    map[Bucket][]string `json:"members"`
	ArtifactID string              `json:"artifact_id,omitempty"`
}

// VoteSnapshot is returned by a toggle. Current is empty when the toggle
// removed the voter's vote.
type VoteSnapshot struct {
	SubjectView
	VoterID string `json:"voter_id"`
	Current Bucket `json:"current,omitempty"`
}

// Member is a roster entry considered for escalation.
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Resolution states of a notification record
type Resolution string

const (
	ResolutionPending   Resolution = "pending"
	ResolutionConfirmed Resolution = "confirmed"
	ResolutionDeclined  Resolution = "declined"
)

func ParseOutcome(s string) (Resolution, error) {
	switch r := Resolution(strings.TrimSpace(strings.ToLower(s))); r {
	case ResolutionConfirmed, ResolutionDeclined:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOutcome, s)
}

// NotificationRecord tracks the confirmation workflow of one subject.
// Fired is never reset once set.
type NotificationRecord struct {
	SubjectID     SubjectID  `json:"subject_id"`
	Fired         bool       `json:"fired"`
	FiredAt       time.Time  `json:"fired_at"`
	Participants  []string   `json:"participants"`
	SourceTarget  string     `json:"source_target,omitempty"`
	Resolution    Resolution `json:"resolution"`
	ResolvedBy    string     `json:"resolved_by,omitempty"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	Location      string     `json:"location,omitempty"`
	AttachmentURL string     `json:"attachment_url,omitempty"`
	Rearmed       int        `json:"rearmed,omitempty"`
}

func (r NotificationRecord) Resolved() bool {
	return r.Resolution == ResolutionConfirmed || r.Resolution == ResolutionDeclined
}

// Stage is the position of a poll in the scheduling pipeline.
type Stage string

const (
	StagePending      Stage = "pending"
	StageSlateCreated Stage = "slate_created"
	StageRemindedOnce Stage = "reminded_once"
	StageEscalated    Stage = "escalated"
)

var stageOrder = map[Stage]int{
	StagePending:      0,
	StageSlateCreated: 1,
	StageRemindedOnce: 2,
	StageEscalated:    3,
}

// Reached reports whether s is at or past other.
func (s Stage) Reached(other Stage) bool {
	return stageOrder[s] >= stageOrder[other]
}

// StageName is the externally triggerable stage identifier.
type StageName string

const (
	StageCreateSlate StageName = "create-slate"
	StageRemind      StageName = "remind"
	StageEscalate    StageName = "escalate"
)

func ParseStageName(s string) (StageName, error) {
	switch n := StageName(strings.TrimSpace(strings.ToLower(s))); n {
	case StageCreateSlate, StageRemind, StageEscalate:
		return n, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStage, s)
}

// Poll groups the subjects created together for one scope and week.
type Poll struct {
	ID          string              `json:"id"`
	Scope       string              `json:"scope"`
	Target      string              `json:"target"`
	Label       string              `json:"label"`
	WindowStart time.Time           `json:"window_start"`
	DateKeys    []string            `json:"date_keys"`
	Stage       Stage               `json:"stage"`
	CreatedAt   time.Time           `json:"created_at"`
	StageAt     map[Stage]time.Time `json:"stage_at,omitempty"`
}

func (p Poll) SubjectIDs() []SubjectID {
	ids := make([]SubjectID, 0, len(p.DateKeys))
	for _, key := range p.DateKeys {
		ids = append(ids, SubjectID{PollID: p.ID, DateKey: key})
	}
	return ids
}

// Events emitted by the notifier

// ConfirmationRequested is posted to Target, which is the poll's own target
// unless the scope routes confirmations elsewhere.
type ConfirmationRequested struct {
	SubjectID    SubjectID `json:"subject_id"`
	SourceTarget string    `json:"source_target"`
	Target       string    `json:"target"`
	Roster       []string  `json:"roster"`
	RequestedAt  time.Time `json:"requested_at"`
}

type ResolutionAnnounced struct {
	SubjectID     SubjectID  `json:"subject_id"`
	SourceTarget  string     `json:"source_target"`
	Outcome       Resolution `json:"outcome"`
	Roster        []string   `json:"roster"`
	ResolvedBy    string     `json:"resolved_by"`
	Location      string     `json:"location,omitempty"`
	AttachmentURL string     `json:"attachment_url,omitempty"`
}

// Request types

type ToggleVoteRequest struct {
	VoterID   string `json:"voter_id"`
	VoterName string `json:"voter_name"`
	Bucket    string `json:"bucket"`
}

type ResolveRequest struct {
	Outcome         string `json:"outcome"`
	Location        string `json:"location"`
	AttachmentURL   string `json:"attachment_url"`
	AwaitAttachment bool   `json:"await_attachment"`
}

type AttachmentRequest struct {
	URL  string `json:"url"`
	Skip bool   `json:"skip"`
}

type LocationRequest struct {
	Scope string `json:"scope"`
	Name  string `json:"name"`
}

// Response types

type PollDetailResponse struct {
	Poll     Poll          `json:"poll"`
	Subjects []SubjectView `json:"subjects"`
}

type LocationsResponse struct {
	Scope     string   `json:"scope"`
	Locations []string `json:"locations"`
}

type StageRunResponse struct {
	Stage   StageName `json:"stage"`
	Force   bool      `json:"force"`
	PollIDs []string  `json:"poll_ids"`
	Errors  []string  `json:"errors,omitempty"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
