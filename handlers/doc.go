// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains the HTTP adapter for rollcall.

# Handler Types

Each handler is a struct holding the shared Services and the Config:

  - PollHandler: polls and per-date tallies
  - VotingHandler: vote toggling
  - ResolutionHandler: confirmation records, resolution and attachments
  - StageHandler: manual stage runs
  - LocationHandler: the location catalog

Handlers are created via constructor functions:

	pollHandler := handlers.NewPollHandler(svc, cfg)

# Actors

Callers identify with X-Actor-ID and X-Actor-Key, where the key is the
HMAC of the id under ACTOR_KEY_SALT (see auth.GenerateActorKey). Voting
requires any valid actor. Resolving, delivering attachments, running
stages and editing locations require a privileged actor.

# Dates

The {date} path segment takes either the date key form used by the ledger,
"2025-12-07 (Sun)", or a plain ISO date. A key whose weekday label does not
match the date is rejected.

# Attachments

A resolution posted with await_attachment and no attachment_url blocks
until POST .../attachment delivers a URL (or skip), the attachment timeout
passes, or the client goes away. Only one resolution per date can be in
flight; a concurrent one gets 409.
*/
package handlers
