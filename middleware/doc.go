// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start (method, path, client IP, actor) and completion
(status, duration_ms).

# CORS Middleware

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

Allows methods GET, POST, DELETE, OPTIONS with headers
Content-Type, X-Actor-ID, X-Actor-Key.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

	var req models.ToggleVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
*/
package middleware
