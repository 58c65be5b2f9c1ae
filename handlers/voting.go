// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielhkuo/rollcall/cliparse"
	"github.com/danielhkuo/rollcall/ledger"
	"github.com/danielhkuo/rollcall/middleware"
	"github.com/danielhkuo/rollcall/models"
)

type VotingHandler struct {
	svc Services
	cfg cliparse.Config
}

func NewVotingHandler(svc Services, cfg cliparse.Config) *VotingHandler {
	return &VotingHandler{svc: svc, cfg: cfg}
}

// ToggleVote handles POST /polls/{poll}/dates/{date}/votes
//
// The voter is the authenticated actor. Selecting the bucket the voter
// already holds clears the vote.
func (h *VotingHandler) ToggleVote(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r, h.cfg)
	if err != nil {
		writeActorError(w, err)
		return
	}

	id, err := subjectFromPath(r, h.cfg)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var req models.ToggleVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.VoterID != "" && strings.TrimSpace(req.VoterID) != actor {
		middleware.ErrorResponse(w, http.StatusForbidden, "voter_id must match the actor")
		return
	}

	bucket, err := models.ParseBucket(req.Bucket)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	snapshot, err := h.svc.Ledger.ToggleVote(r.Context(), id, actor, req.VoterName, bucket)
	switch {
	case errors.Is(err, ledger.ErrSubjectNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, "Subject not found")
		return
	case errors.Is(err, ledger.ErrInvalidVoter), errors.Is(err, models.ErrInvalidBucket):
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("failed to toggle vote", "subject", id.String(), "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record vote")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, snapshot)
}
