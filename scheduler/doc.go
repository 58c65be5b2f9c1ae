// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package scheduler drives the weekly poll pipeline.

# Stages

Each configured scope gets one poll per week:

	create-slate  weekly on SLATE_WEEKDAY at SLATE_TIME
	remind        REMIND_WEEKS_BEFORE weeks before the polled week
	escalate      ESCALATE_WEEKS_BEFORE weeks before the polled week

create-slate opens the week that starts WeeksAhead weeks from now. The
poll id is a name-based UUID of the scope and window start, so running the
stage again for the same week finds the same poll and only renders dates
that have no artifact yet.

remind posts one digest of every date. escalate mentions roster members who
have not voted on a date, or acknowledges that everyone voted. Privileged
members are never mentioned.

A poll's stage only moves forward. Timed runs skip polls already at or past
their stage; RunStage with force re-sends. Polls whose week is over are
left alone.

# Timers

Timers is a registry of one-shot timers keyed by name. Scheduling a name
again replaces the previous timer, and an instant already in the past fires
immediately, so a restart after a missed stage runs it once.

	s.Start(ctx)
	defer s.Stop()
*/
package scheduler
