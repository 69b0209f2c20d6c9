// Package telegram is the outbound messaging gateway for the bot.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/angelmondragon/courierbot-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/courierbot-backend/pkg/errors"
)

const parseModeHTML = "HTML"

// Sender is the subset of the bot API used by the gateway.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Messenger is what the domain layer depends on.
type Messenger interface {
	Send(ctx context.Context, recipient int64, text string, keyboard Keyboard) error
	Edit(ctx context.Context, recipient int64, messageID int, text string, keyboard Keyboard) error
	Delete(ctx context.Context, recipient int64, messageID int) error
	Answer(ctx context.Context, callbackID string) error
	Render(ctx context.Context, target RenderTarget, text string, keyboard Keyboard) error
}

// RenderTarget says where a reply goes. A non-zero MessageID means the reply
// replaces the message the actor pressed a button on.
type RenderTarget struct {
	ChatID    int64
	MessageID int
}

// Fresh returns a target that always sends a new message.
func (t RenderTarget) Fresh() RenderTarget {
	return RenderTarget{ChatID: t.ChatID}
}

// Gateway sends messages through the Telegram bot API.
type Gateway struct {
	sender Sender
}

// New builds a gateway backed by a live bot API client.
func New(cfg config.TelegramConfig) (*Gateway, error) {
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, errors.New("telegram bot token is required")
	}
	client := &http.Client{Timeout: cfg.Timeout}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, cfg.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return NewWithSender(api), nil
}

// NewWithSender wraps an existing sender.
func NewWithSender(sender Sender) *Gateway {
	return &Gateway{sender: sender}
}

func (g *Gateway) Send(ctx context.Context, recipient int64, text string, keyboard Keyboard) error {
	msg := tgbotapi.NewMessage(recipient, text)
	msg.ParseMode = parseModeHTML
	if markup := keyboard.markup(); markup != nil {
		msg.ReplyMarkup = *markup
	}
	if _, err := g.sender.Send(msg); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "telegram send message")
	}
	return nil
}

func (g *Gateway) Edit(ctx context.Context, recipient int64, messageID int, text string, keyboard Keyboard) error {
	edit := tgbotapi.NewEditMessageText(recipient, messageID, text)
	edit.ParseMode = parseModeHTML
	edit.ReplyMarkup = keyboard.markup()
	if _, err := g.sender.Request(edit); err != nil {
		if isNotModified(err) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "telegram edit message")
	}
	return nil
}

func (g *Gateway) Delete(ctx context.Context, recipient int64, messageID int) error {
	if _, err := g.sender.Request(tgbotapi.NewDeleteMessage(recipient, messageID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "telegram delete message")
	}
	return nil
}

// Answer acknowledges a callback query so the client stops its spinner.
func (g *Gateway) Answer(ctx context.Context, callbackID string) error {
	if callbackID == "" {
		return nil
	}
	if _, err := g.sender.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "telegram answer callback")
	}
	return nil
}

// Render edits the target message when one is set and sends otherwise. A failed
// edit (message too old, deleted) falls back to a fresh send.
func (g *Gateway) Render(ctx context.Context, target RenderTarget, text string, keyboard Keyboard) error {
	if target.MessageID == 0 {
		return g.Send(ctx, target.ChatID, text, keyboard)
	}
	if err := g.Edit(ctx, target.ChatID, target.MessageID, text, keyboard); err != nil {
		return g.Send(ctx, target.ChatID, text, keyboard)
	}
	return nil
}

func isNotModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}
