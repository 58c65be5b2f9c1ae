// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

Values are read in three layers, later layers winning:

 1. an optional env file (ENV_FILE, default .env), loaded with godotenv
    without overriding variables already set
 2. environment variables, parsed with caarlos0/env
 3. CLI flags

# Environment Variables

	PORT                   → -p                  (default 3318)
	STORE_TYPE             → -t                  (file, sqlite, postgres, memory)
	STORE_URL              → -d                  (default data)
	TIMEZONE               → -tz                 (default UTC)
	THRESHOLD              → -threshold          (default 3)
	NOTIFY_ONCE            → -notify-once        (default true)
	ATTACHMENT_TIMEOUT     → -attachment-timeout (default 5m)
	WEEKS_AHEAD            → -weeks-ahead        (default 3)
	SLATE_WEEKDAY          → -slate-weekday      (default sunday)
	SLATE_TIME             → -slate-time         (default 09:00)
	REMIND_WEEKS_BEFORE    → -remind-weeks       (default 2)
	ESCALATE_WEEKS_BEFORE  → -escalate-weeks     (default 1)
	POLLS                  → -poll               (scope=target[,scope=target...])
	ROSTER_FILE            → -roster
	PRIVILEGED_ACTORS      → -privileged
	ACTOR_KEY_SALT         → -actor-salt
	TELEGRAM_BOT_TOKEN     → -telegram-token

# Validation

ParseFlags returns an error if:

  - ACTOR_KEY_SALT is missing
  - the store type, timezone, slate weekday or slate time is invalid
  - no poll scope is configured
  - threshold is below 1 or a week offset is negative
*/
package cliparse
