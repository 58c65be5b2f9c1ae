// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/rollcall/cliparse"
	"github.com/danielhkuo/rollcall/middleware"
	"github.com/danielhkuo/rollcall/models"
	"github.com/danielhkuo/rollcall/notifier"
)

type ResolutionHandler struct {
	svc Services
	cfg cliparse.Config
}

func NewResolutionHandler(svc Services, cfg cliparse.Config) *ResolutionHandler {
	return &ResolutionHandler{svc: svc, cfg: cfg}
}

// GetNotification handles GET /polls/{poll}/dates/{date}/notification
func (h *ResolutionHandler) GetNotification(w http.ResponseWriter, r *http.Request) {
	id, err := subjectFromPath(r, h.cfg)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, ok := h.svc.Notifier.Record(id)
	if !ok {
		middleware.ErrorResponse(w, http.StatusNotFound, "No confirmation requested yet")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, rec)
}

// Resolve handles POST /polls/{poll}/dates/{date}/resolution
//
// With await_attachment set and no attachment_url, the request waits for
// POST .../attachment (or the attachment timeout) before answering.
func (h *ResolutionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
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

	var req models.ResolveRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	outcome, err := models.ParseOutcome(req.Outcome)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.svc.Notifier.Resolve(r.Context(), id, outcome, actor, notifier.Extra{
		Location:        req.Location,
		AttachmentURL:   req.AttachmentURL,
		AwaitAttachment: req.AwaitAttachment,
	})
	switch {
	case errors.Is(err, notifier.ErrNotPrivileged):
		middleware.ErrorResponse(w, http.StatusForbidden, "Privileged actor required")
		return
	case errors.Is(err, notifier.ErrNotRequested), errors.Is(err, notifier.ErrAlreadyResolved):
		middleware.ErrorResponse(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, notifier.ErrUnknownLocation), errors.Is(err, models.ErrInvalidOutcome):
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("failed to resolve", "subject", id.String(), "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to resolve")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, rec)
}

// SubmitAttachment handles POST /polls/{poll}/dates/{date}/attachment
func (h *ResolutionHandler) SubmitAttachment(w http.ResponseWriter, r *http.Request) {
	if _, err := privilegedActor(r, h.cfg, h.svc.Privileges); err != nil {
		writeActorError(w, err)
		return
	}

	id, err := subjectFromPath(r, h.cfg)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var req models.AttachmentRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.URL == "" && !req.Skip {
		middleware.ErrorResponse(w, http.StatusBadRequest, "url or skip is required")
		return
	}

	err = h.svc.Notifier.Mailbox().Deliver(id, notifier.Attachment{URL: req.URL, Skip: req.Skip})
	if errors.Is(err, notifier.ErrNotAwaiting) {
		middleware.ErrorResponse(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		slog.Error("failed to deliver attachment", "subject", id.String(), "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to deliver attachment")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
