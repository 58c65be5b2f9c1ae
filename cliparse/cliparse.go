// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port      int    `env:"PORT"       envDefault:"3318"`
	StoreType string `env:"STORE_TYPE" envDefault:"file"`
	StoreURL  string `env:"STORE_URL"  envDefault:"data"`
	Timezone  string `env:"TIMEZONE"   envDefault:"UTC"`

	Threshold         int           `env:"THRESHOLD"          envDefault:"3"`
	NotifyOnce        bool          `env:"NOTIFY_ONCE"        envDefault:"true"`
	AttachmentTimeout time.Duration `env:"ATTACHMENT_TIMEOUT" envDefault:"5m"`

	WeeksAhead          int    `env:"WEEKS_AHEAD"           envDefault:"3"`
	SlateWeekday        string `env:"SLATE_WEEKDAY"         envDefault:"sunday"`
	SlateTime           string `env:"SLATE_TIME"            envDefault:"09:00"`
	RemindWeeksBefore   int    `env:"REMIND_WEEKS_BEFORE"   envDefault:"2"`
	EscalateWeeksBefore int    `env:"ESCALATE_WEEKS_BEFORE" envDefault:"1"`

	// Polls maps a scope to the messenger target its slate is rendered in.
	Polls      map[string]string `env:"POLLS"       envDefault:"general=general" envSeparator:"," envKeyValSeparator:"="`
	RosterFile string            `env:"ROSTER_FILE"`
	// ConfirmTargets optionally posts a scope's confirmation requests to a
	// different target, such as a chat only privileged actors read.
	ConfirmTargets map[string]string `env:"CONFIRM_TARGETS" envSeparator:"," envKeyValSeparator:"="`

	PrivilegedActors []string `env:"PRIVILEGED_ACTORS" envSeparator:","`
	ActorKeySalt     string   `env:"ACTOR_KEY_SALT"`

	TelegramToken string `env:"TELEGRAM_BOT_TOKEN"`

	// Resolved from the fields above by ParseFlags.
	Location    *time.Location `env:"-"`
	SlateDay    time.Weekday   `env:"-"`
	SlateHour   int            `env:"-"`
	SlateMinute int            `env:"-"`
}

var storeTypes = []string{"file", "sqlite", "postgres", "memory"}

// ParseFlags builds the Config: .env file, then environment, then flags.
// CLI flags take precedence over environment variables.
func ParseFlags(args []string) (Config, error) {
	loadDotEnv()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("rollcall", flag.ContinueOnError)

	fs.IntVar(&cfg.Port, "p", cfg.Port, "Server port")
	fs.StringVar(&cfg.StoreType, "t", cfg.StoreType, "Store type (file, sqlite, postgres or memory)")
	fs.StringVar(&cfg.StoreURL, "d", cfg.StoreURL, "Store location (directory, sqlite path or postgres URL)")
	fs.StringVar(&cfg.Timezone, "tz", cfg.Timezone, "IANA timezone for the calendar")

	fs.IntVar(&cfg.Threshold, "threshold", cfg.Threshold, "Attending count that triggers a confirmation request")
	fs.BoolVar(&cfg.NotifyOnce, "notify-once", cfg.NotifyOnce, "Never fire a confirmation request twice for a date")
	fs.DurationVar(&cfg.AttachmentTimeout, "attachment-timeout", cfg.AttachmentTimeout, "How long a resolution waits for an attachment")

	fs.IntVar(&cfg.WeeksAhead, "weeks-ahead", cfg.WeeksAhead, "Weeks between the slate and the polled week")
	fs.StringVar(&cfg.SlateWeekday, "slate-weekday", cfg.SlateWeekday, "Weekday the slate is created on")
	fs.StringVar(&cfg.SlateTime, "slate-time", cfg.SlateTime, "Clock time (HH:MM) stages run at")
	fs.IntVar(&cfg.RemindWeeksBefore, "remind-weeks", cfg.RemindWeeksBefore, "Weeks before the polled week the digest is sent")
	fs.IntVar(&cfg.EscalateWeeksBefore, "escalate-weeks", cfg.EscalateWeeksBefore, "Weeks before the polled week non-voters are called out")

	pollsFromCLI := false
	fs.Func("poll", "scope=target, repeatable (replaces POLLS)", func(value string) error {
		scope, target, ok := strings.Cut(value, "=")
		if !ok || strings.TrimSpace(scope) == "" || strings.TrimSpace(target) == "" {
			return fmt.Errorf("invalid poll %q, want scope=target", value)
		}
		if !pollsFromCLI {
			cfg.Polls = make(map[string]string)
			pollsFromCLI = true
		}
		cfg.Polls[strings.TrimSpace(scope)] = strings.TrimSpace(target)
		return nil
	})
	confirmFromCLI := false
	fs.Func("confirm-target", "scope=target, repeatable (replaces CONFIRM_TARGETS)", func(value string) error {
		scope, target, ok := strings.Cut(value, "=")
		if !ok || strings.TrimSpace(scope) == "" || strings.TrimSpace(target) == "" {
			return fmt.Errorf("invalid confirm target %q, want scope=target", value)
		}
		if !confirmFromCLI {
			cfg.ConfirmTargets = make(map[string]string)
			confirmFromCLI = true
		}
		cfg.ConfirmTargets[strings.TrimSpace(scope)] = strings.TrimSpace(target)
		return nil
	})
	fs.StringVar(&cfg.RosterFile, "roster", cfg.RosterFile, "JSON roster file used for escalation")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.ActorKeySalt, "actor-salt", cfg.ActorKeySalt, "Actor key salt (prefer env)")
	fs.StringVar(&cfg.TelegramToken, "telegram-token", cfg.TelegramToken, "Telegram bot token (prefer env)")
	fs.Func("privileged", "Comma-separated privileged actor ids (replaces PRIVILEGED_ACTORS)", func(value string) error {
		cfg.PrivilegedActors = splitList(value)
		return nil
	})

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.resolve(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) resolve() error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return errors.New("invalid port")
	}

	cfg.StoreType = strings.ToLower(strings.TrimSpace(cfg.StoreType))
	known := false
	for _, t := range storeTypes {
		known = known || cfg.StoreType == t
	}
	if !known {
		return fmt.Errorf("unknown store type %q", cfg.StoreType)
	}
	if cfg.StoreType != "memory" && strings.TrimSpace(cfg.StoreURL) == "" {
		return errors.New("store location required (use -d or STORE_URL env)")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}
	cfg.Location = loc

	if cfg.Threshold < 1 {
		return errors.New("threshold must be at least 1")
	}
	if cfg.AttachmentTimeout <= 0 {
		return errors.New("attachment timeout must be positive")
	}
	if cfg.WeeksAhead < 0 || cfg.RemindWeeksBefore < 0 || cfg.EscalateWeeksBefore < 0 {
		return errors.New("week offsets must not be negative")
	}

	day, ok := weekdays[strings.ToLower(strings.TrimSpace(cfg.SlateWeekday))]
	if !ok {
		return fmt.Errorf("invalid slate weekday %q", cfg.SlateWeekday)
	}
	cfg.SlateDay = day

	clock, err := time.Parse("15:04", strings.TrimSpace(cfg.SlateTime))
	if err != nil {
		return fmt.Errorf("invalid slate time %q, want HH:MM", cfg.SlateTime)
	}
	cfg.SlateHour, cfg.SlateMinute = clock.Hour(), clock.Minute()

	if len(cfg.Polls) == 0 {
		return errors.New("at least one poll required (use -poll or POLLS env)")
	}
	for scope := range cfg.ConfirmTargets {
		if _, ok := cfg.Polls[scope]; !ok {
			return fmt.Errorf("confirm target for unknown scope %q", scope)
		}
	}

	// Secrets - MUST be provided
	if cfg.ActorKeySalt == "" {
		return errors.New("ACTOR_KEY_SALT required")
	}
	return nil
}

// Scopes returns the configured poll scopes in sorted order.
func (cfg Config) Scopes() []string {
	scopes := make([]string, 0, len(cfg.Polls))
	for scope := range cfg.Polls {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	return scopes
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// loadDotEnv reads ENV_FILE (default .env) into the environment without
// overriding variables that are already set.
func loadDotEnv() {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		slog.Warn("could not load env file", "path", path, "error", err)
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
