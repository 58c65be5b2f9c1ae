// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/danielhkuo/rollcall/messaging"
	"github.com/danielhkuo/rollcall/models"
)

type Voter interface {
	ToggleVote(ctx context.Context, id models.SubjectID, voterID, voterName string, bucket models.Bucket) (models.VoteSnapshot, error)
	SubjectByArtifact(artifactID string) (models.SubjectID, bool)
}

type PollLookup interface {
	Poll(id string) (models.Poll, bool)
}

// Listener applies vote-button presses to the ledger and refreshes the
// pressed message.
type Listener struct {
	bot   Sender
	votes Voter
	polls PollLookup
}

func NewListener(bot Sender, votes Voter, polls PollLookup) *Listener {
	return &Listener{bot: bot, votes: votes, polls: polls}
}

// Run handles updates until ctx is done or the channel closes.
func (l *Listener) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.CallbackQuery != nil {
				l.HandleCallback(ctx, update.CallbackQuery)
			}
		}
	}
}

func (l *Listener) HandleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if !strings.HasPrefix(cq.Data, votePrefix) || cq.Message == nil || cq.Message.Chat == nil || cq.From == nil {
		l.answer(cq.ID, "")
		return
	}

	bucket, err := models.ParseBucket(strings.TrimPrefix(cq.Data, votePrefix))
	if err != nil {
		l.answer(cq.ID, "Unknown choice")
		return
	}

	chatID, messageID := cq.Message.Chat.ID, cq.Message.MessageID
	subject, ok := l.votes.SubjectByArtifact(ArtifactID(chatID, messageID))
	if !ok {
		slog.Warn("vote on unknown message", "chat", chatID, "message", messageID)
		l.answer(cq.ID, "This vote is no longer open")
		return
	}

	snapshot, err := l.votes.ToggleVote(ctx, subject, strconv.FormatInt(cq.From.ID, 10), displayName(cq.From), bucket)
	if err != nil {
		slog.Error("telegram vote failed", "subject", subject.String(), "error", err)
		l.answer(cq.ID, "Vote failed, please try again")
		return
	}

	if poll, ok := l.polls.Poll(subject.PollID); ok {
		edit := tgbotapi.NewEditMessageText(chatID, messageID, messaging.SubjectText(poll, snapshot.SubjectView))
		keyboard := VoteKeyboard()
		edit.ReplyMarkup = &keyboard
		if _, err := l.bot.Send(edit); err != nil {
			slog.Error("failed to refresh vote message", "subject", subject.String(), "error", err)
		}
	}

	if snapshot.Current == "" {
		l.answer(cq.ID, "Vote removed")
		return
	}
	l.answer(cq.ID, snapshot.Current.Label())
}

func (l *Listener) answer(callbackID, text string) {
	if _, err := l.bot.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		slog.Debug("failed to answer callback", "error", err)
	}
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}
