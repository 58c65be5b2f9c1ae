// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package telegram renders polls in Telegram chats and turns vote-button
// presses back into ledger toggles. Poll targets are chat ids.
package telegram

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/danielhkuo/rollcall/messaging"
	"github.com/danielhkuo/rollcall/models"
)

const votePrefix = "v|"

// Sender is the part of *tgbotapi.BotAPI the adapter uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Messenger struct {
	bot Sender
	now func() time.Time
}

var _ messaging.Messenger = (*Messenger)(nil)

func NewMessenger(bot Sender) *Messenger {
	return &Messenger{bot: bot, now: time.Now}
}

// ArtifactID is the handle of a vote message: "tg:<chat>:<message>".
func ArtifactID(chatID int64, messageID int) string {
	return fmt.Sprintf("tg:%d:%d", chatID, messageID)
}

// VoteKeyboard is the one-row keyboard attached to every vote message.
func VoteKeyboard() tgbotapi.InlineKeyboardMarkup {
	buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(models.Buckets))
	for _, b := range models.Buckets {
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label(), votePrefix+string(b)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(buttons...))
}

func (m *Messenger) RenderSubject(_ context.Context, poll models.Poll, view models.SubjectView) (string, error) {
	chatID, err := chatTarget(poll.Target)
	if err != nil {
		return "", err
	}
	msg := tgbotapi.NewMessage(chatID, messaging.SubjectText(poll, view))
	msg.ReplyMarkup = VoteKeyboard()
	sent, err := m.bot.Send(msg)
	if err != nil {
		return "", fmt.Errorf("send vote message: %w", err)
	}
	return ArtifactID(chatID, sent.MessageID), nil
}

func (m *Messenger) RenderDigest(_ context.Context, poll models.Poll, views []models.SubjectView) error {
	return m.send(poll.Target, messaging.DigestText(poll, views, m.now()), "")
}

func (m *Messenger) RenderEscalation(_ context.Context, poll models.Poll, subject models.SubjectID, mentions []models.Member) error {
	links := make([]string, 0, len(mentions))
	for _, member := range mentions {
		links = append(links, mention(member))
	}
	text := fmt.Sprintf("Reminder for %s: %s, please vote.", html.EscapeString(subject.DateKey), strings.Join(links, ", "))
	return m.send(poll.Target, text, tgbotapi.ModeHTML)
}

func (m *Messenger) RenderAllVoted(_ context.Context, poll models.Poll) error {
	return m.send(poll.Target, messaging.AllVotedText(poll), "")
}

func (m *Messenger) RenderConfirmationRequest(_ context.Context, req models.ConfirmationRequested) error {
	return m.send(req.Target, messaging.ConfirmationText(req), "")
}

func (m *Messenger) RenderResolution(_ context.Context, ann models.ResolutionAnnounced) error {
	return m.send(ann.SourceTarget, messaging.ResolutionText(ann), "")
}

func (m *Messenger) send(target, text, parseMode string) error {
	chatID, err := chatTarget(target)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode
	if _, err := m.bot.Send(msg); err != nil {
		return fmt.Errorf("send to chat %d: %w", chatID, err)
	}
	return nil
}

// mention links a member by numeric user id when it has one.
func mention(member models.Member) string {
	name := html.EscapeString(member.Name)
	if _, err := strconv.ParseInt(member.ID, 10, 64); err != nil {
		return name
	}
	return fmt.Sprintf(`<a href="tg://user?id=%s">%s</a>`, member.ID, name)
}

func chatTarget(target string) (int64, error) {
	chatID, err := strconv.ParseInt(strings.TrimSpace(target), 10, 64)
	if err != nil || chatID == 0 {
		return 0, fmt.Errorf("%w: chat %q", messaging.ErrTargetNotFound, target)
	}
	return chatID, nil
}
