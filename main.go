// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
	_ "time/tzdata"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/danielhkuo/rollcall/auth"
	"github.com/danielhkuo/rollcall/catalog"
	"github.com/danielhkuo/rollcall/cliparse"
	"github.com/danielhkuo/rollcall/db"
	"github.com/danielhkuo/rollcall/handlers"
	"github.com/danielhkuo/rollcall/ledger"
	"github.com/danielhkuo/rollcall/messaging"
	"github.com/danielhkuo/rollcall/middleware"
	"github.com/danielhkuo/rollcall/notifier"
	"github.com/danielhkuo/rollcall/router"
	"github.com/danielhkuo/rollcall/scheduler"
	"github.com/danielhkuo/rollcall/telegram"
)

func main() {
	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(cfg.StoreType, cfg.StoreURL)
	if err != nil {
		slog.Error("store open failed", "type", cfg.StoreType, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Store ready", "type", cfg.StoreType)

	// Messaging: always log, and post to Telegram when a token is configured
	var bot *tgbotapi.BotAPI
	var messenger messaging.Messenger = messaging.LogMessenger{}
	if cfg.TelegramToken != "" {
		bot, err = tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			slog.Error("telegram login failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Telegram bot ready", "username", bot.Self.UserName)
		messenger = messaging.Fanout{telegram.NewMessenger(bot), messaging.LogMessenger{}}
	}

	var roster scheduler.RosterSource
	if cfg.RosterFile != "" {
		static, err := scheduler.LoadRoster(cfg.RosterFile)
		if err != nil {
			slog.Error("roster load failed", "path", cfg.RosterFile, "error", err)
			os.Exit(1)
		}
		roster = static
	}

	privileges := auth.NewPrivileges(cfg.PrivilegedActors)
	votes := ledger.New(store)
	locations := catalog.New(store)
	sched := scheduler.New(scheduler.Config{
		Location:            cfg.Location,
		WeeksAhead:          cfg.WeeksAhead,
		SlateDay:            cfg.SlateDay,
		SlateHour:           cfg.SlateHour,
		SlateMinute:         cfg.SlateMinute,
		RemindWeeksBefore:   cfg.RemindWeeksBefore,
		EscalateWeeksBefore: cfg.EscalateWeeksBefore,
		Polls:               cfg.Polls,
	}, scheduler.Deps{
		Store:      store,
		Ledger:     votes,
		Messenger:  messenger,
		Roster:     roster,
		Privileges: privileges,
	})
	confirmations := notifier.New(notifier.Config{
		Threshold:         cfg.Threshold,
		NotifyOnce:        cfg.NotifyOnce,
		AttachmentTimeout: cfg.AttachmentTimeout,
		ConfirmTargets:    cfg.ConfirmTargets,
	}, notifier.Deps{
		Store:      store,
		Votes:      votes,
		Messenger:  messenger,
		Privileges: privileges,
		Polls:      sched,
		Locations:  locations,
	})
	votes.Observe(confirmations)

	// A store that cannot be read is fatal; starting empty would overwrite it.
	loaders := []struct {
		name string
		load func(context.Context) error
	}{
		{"votes", votes.Load},
		{"notifications", confirmations.Load},
		{"locations", locations.Load},
		{"polls", sched.Load},
	}
	for _, l := range loaders {
		if err := l.load(ctx); err != nil {
			slog.Error("state load failed", "table", l.name, "error", err)
			os.Exit(1)
		}
	}

	sched.Start(ctx)
	defer sched.Stop()

	if bot != nil {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		listener := telegram.NewListener(bot, votes, sched)
		go listener.Run(ctx, bot.GetUpdatesChan(u))
		defer bot.StopReceivingUpdates()
	}

	// Create router
	mux := router.NewRouter(handlers.Services{
		Ledger:     votes,
		Notifier:   confirmations,
		Catalog:    locations,
		Scheduler:  sched,
		Privileges: privileges,
	}, cfg)

	server := http.Server{
		Handler: middleware.CORS(mux),
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	slog.Info("Listening", "port", cfg.Port, "timezone", cfg.Timezone, "scopes", cfg.Scopes(), "threshold", confirmations.Threshold())
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}
