// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the rollcall server.

rollcall runs recurring group-availability polls. Every week it opens a
slate of seven dates a few weeks ahead for each configured scope, lets
members mark each date attending, remote OK or unavailable, sends a digest
and calls out non-voters as the week approaches, and asks a privileged
member to confirm a date once enough people are attending.

# Starting the Server

	ACTOR_KEY_SALT=... go run .

Or with flags:

	go run . -p 3318 -t sqlite -d rollcall.db -actor-salt ... -poll beginner=-1001234

# Configuration

Required settings:

  - ACTOR_KEY_SALT (-actor-salt): Secret for actor key HMAC

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - STORE_TYPE (-t), STORE_URL (-d): file, sqlite, postgres or memory
  - TIMEZONE (-tz): IANA zone the calendar runs in (default: UTC)
  - POLLS (-poll): scope=target pairs, one slate per scope
  - THRESHOLD, NOTIFY_ONCE, ATTACHMENT_TIMEOUT: confirmation workflow
  - WEEKS_AHEAD, SLATE_WEEKDAY, SLATE_TIME, REMIND_WEEKS_BEFORE,
    ESCALATE_WEEKS_BEFORE: stage timing
  - ROSTER_FILE (-roster): JSON scope -> members used for escalation
  - PRIVILEGED_ACTORS (-privileged): comma separated actor ids
  - TELEGRAM_BOT_TOKEN (-telegram-token): render polls in Telegram

A .env file (or the file named by ENV_FILE) is read first when present.

# Architecture

  - calendar: week windows, date keys and labels
  - ledger: toggle votes per (poll, date)
  - notifier: threshold confirmation requests and their resolution
  - scheduler: the three weekly stages and their timers
  - catalog: venue names a confirmation may pick
  - db: table persistence (file, sqlite, postgres, memory)
  - messaging, telegram: rendering adapters
  - handlers, router, middleware: HTTP API
  - auth, cliparse, models: actor keys, configuration, shared types
*/
package main
