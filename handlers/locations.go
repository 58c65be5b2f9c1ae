// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"net/http"

	"github.com/danielhkuo/rollcall/catalog"
	"github.com/danielhkuo/rollcall/cliparse"
	"github.com/danielhkuo/rollcall/middleware"
	"github.com/danielhkuo/rollcall/models"
)

type LocationHandler struct {
	svc Services
	cfg cliparse.Config
}

func NewLocationHandler(svc Services, cfg cliparse.Config) *LocationHandler {
	return &LocationHandler{svc: svc, cfg: cfg}
}

// ListLocations handles GET /locations?scope=
// It returns the venues selectable for the scope, common venues included.
func (h *LocationHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	middleware.JSONResponse(w, http.StatusOK, models.LocationsResponse{
		Scope:     scope,
		Locations: h.svc.Catalog.Options(scope),
	})
}

// AddLocation handles POST /locations
func (h *LocationHandler) AddLocation(w http.ResponseWriter, r *http.Request) {
	if _, err := privilegedActor(r, h.cfg, h.svc.Privileges); err != nil {
		writeActorError(w, err)
		return
	}

	var req models.LocationRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	err := h.svc.Catalog.Add(r.Context(), req.Scope, req.Name)
	switch {
	case errors.Is(err, catalog.ErrEmptyName):
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	case errors.Is(err, catalog.ErrDuplicate):
		middleware.ErrorResponse(w, http.StatusConflict, "Location already registered")
		return
	case err != nil:
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to add location")
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.LocationsResponse{
		Scope:     req.Scope,
		Locations: h.svc.Catalog.List(req.Scope),
	})
}

// RemoveLocation handles DELETE /locations?scope=&name=
func (h *LocationHandler) RemoveLocation(w http.ResponseWriter, r *http.Request) {
	if _, err := privilegedActor(r, h.cfg, h.svc.Privileges); err != nil {
		writeActorError(w, err)
		return
	}

	q := r.URL.Query()
	err := h.svc.Catalog.Remove(r.Context(), q.Get("scope"), q.Get("name"))
	switch {
	case errors.Is(err, catalog.ErrEmptyName):
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	case errors.Is(err, catalog.ErrNotRegistered):
		middleware.ErrorResponse(w, http.StatusNotFound, "Location not registered")
		return
	case err != nil:
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to remove location")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
