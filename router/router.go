// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/rollcall/cliparse"
	"github.com/danielhkuo/rollcall/handlers"
	"github.com/danielhkuo/rollcall/middleware"
)

func NewRouter(svc handlers.Services, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	pollHandler := handlers.NewPollHandler(svc, cfg)
	votingHandler := handlers.NewVotingHandler(svc, cfg)
	resolutionHandler := handlers.NewResolutionHandler(svc, cfg)
	stageHandler := handlers.NewStageHandler(svc, cfg)
	locationHandler := handlers.NewLocationHandler(svc, cfg)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Polls and subjects (public)
	mux.HandleFunc("GET /polls", middleware.WithLogging(pollHandler.ListPolls))
	mux.HandleFunc("GET /polls/{poll}", middleware.WithLogging(pollHandler.GetPoll))
	mux.HandleFunc("GET /polls/{poll}/dates/{date}", middleware.WithLogging(pollHandler.GetSubject))

	// Voting (actor)
	mux.HandleFunc("POST /polls/{poll}/dates/{date}/votes", middleware.WithLogging(votingHandler.ToggleVote))

	// Confirmation workflow (privileged actor)
	mux.HandleFunc("GET /polls/{poll}/dates/{date}/notification", middleware.WithLogging(resolutionHandler.GetNotification))
	mux.HandleFunc("POST /polls/{poll}/dates/{date}/resolution", middleware.WithLogging(resolutionHandler.Resolve))
	mux.HandleFunc("POST /polls/{poll}/dates/{date}/attachment", middleware.WithLogging(resolutionHandler.SubmitAttachment))

	// Manual stage triggers (privileged actor)
	mux.HandleFunc("POST /stages/{stage}", middleware.WithLogging(stageHandler.RunStage))

	// Location catalog
	mux.HandleFunc("GET /locations", middleware.WithLogging(locationHandler.ListLocations))
	mux.HandleFunc("POST /locations", middleware.WithLogging(locationHandler.AddLocation))
	mux.HandleFunc("DELETE /locations", middleware.WithLogging(locationHandler.RemoveLocation))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("rollcall API v1"))
	})

	return mux
}
