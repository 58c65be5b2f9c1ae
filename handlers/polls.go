// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/rollcall/cliparse"
	"github.com/danielhkuo/rollcall/ledger"
	"github.com/danielhkuo/rollcall/middleware"
	"github.com/danielhkuo/rollcall/models"
)

type PollHandler struct {
	svc Services
	cfg cliparse.Config
}

func NewPollHandler(svc Services, cfg cliparse.Config) *PollHandler {
	return &PollHandler{svc: svc, cfg: cfg}
}

// ListPolls handles GET /polls
func (h *PollHandler) ListPolls(w http.ResponseWriter, r *http.Request) {
	middleware.JSONResponse(w, http.StatusOK, h.svc.Scheduler.Polls())
}

// GetPoll handles GET /polls/{poll}
func (h *PollHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("poll")
	poll, ok := h.svc.Scheduler.Poll(pollID)
	if !ok {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.PollDetailResponse{
		Poll:     poll,
		Subjects: h.svc.Ledger.Subjects(pollID),
	})
}

// GetSubject handles GET /polls/{poll}/dates/{date}
func (h *PollHandler) GetSubject(w http.ResponseWriter, r *http.Request) {
	id, err := subjectFromPath(r, h.cfg)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.svc.Ledger.SubjectView(id)
	if errors.Is(err, ledger.ErrSubjectNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Subject not found")
		return
	}
	if err != nil {
		slog.Error("failed to read subject", "subject", id.String(), "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to read subject")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, view)
}
