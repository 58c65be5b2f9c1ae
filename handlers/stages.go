// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/danielhkuo/rollcall/cliparse"
	"github.com/danielhkuo/rollcall/middleware"
	"github.com/danielhkuo/rollcall/models"
)

type StageHandler struct {
	svc Services
	cfg cliparse.Config
}

func NewStageHandler(svc Services, cfg cliparse.Config) *StageHandler {
	return &StageHandler{svc: svc, cfg: cfg}
}

// RunStage handles POST /stages/{stage}?force=true
//
// Manual runs are forced by default so an operator can re-send a stage.
func (h *StageHandler) RunStage(w http.ResponseWriter, r *http.Request) {
	actor, err := privilegedActor(r, h.cfg, h.svc.Privileges)
	if err != nil {
		writeActorError(w, err)
		return
	}

	stage, err := models.ParseStageName(r.PathValue("stage"))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	force := true
	if raw := r.URL.Query().Get("force"); raw != "" {
		force, err = strconv.ParseBool(raw)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "force must be a boolean")
			return
		}
	}

	slog.Info("manual stage run", "stage", stage, "actor", actor, "force", force)
	ids, err := h.svc.Scheduler.RunStage(r.Context(), stage, force)
	if errors.Is(err, models.ErrInvalidStage) {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := models.StageRunResponse{Stage: stage, Force: force, PollIDs: ids}
	if err != nil {
		slog.Error("stage run had failures", "stage", stage, "error", err)
		resp.Errors = splitJoined(err)
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// splitJoined flattens an errors.Join result into messages.
func splitJoined(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var msgs []string
		for _, e := range joined.Unwrap() {
			msgs = append(msgs, e.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}
