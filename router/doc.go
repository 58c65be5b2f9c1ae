// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the rollcall API.

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(services, cfg)

# Endpoints

Health:

	GET /health

Polls (public):

	GET /polls                          - Polls, newest first
	GET /polls/{poll}                   - Poll with every date's tallies
	GET /polls/{poll}/dates/{date}      - One date's tallies

Voting (requires X-Actor-ID and X-Actor-Key):

	POST /polls/{poll}/dates/{date}/votes - Toggle the actor's vote

Confirmation (resolution and attachment require a privileged actor):

	GET  /polls/{poll}/dates/{date}/notification
	POST /polls/{poll}/dates/{date}/resolution
	POST /polls/{poll}/dates/{date}/attachment

Stages (privileged):

	POST /stages/{stage}?force=false   - create-slate, remind or escalate

Locations:

	GET    /locations?scope=
	POST   /locations                  - privileged
	DELETE /locations?scope=&name=     - privileged

{date} accepts either a date key such as "2025-12-07 (Sun)" (URL-escaped)
or a plain "2025-12-07".
*/
package router
