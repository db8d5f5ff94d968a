// Package telegram adapts the Telegram Bot API to the dialog engine's
// transport interfaces.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/elektromontazh/orderbot/internal/dialog"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot wraps the Telegram client. It implements dialog.Sender and
// dialog.FileFetcher for the engine, and the commit package's Notifier
// and Reporter for the operator channel.
type Bot struct {
	api     *tgbotapi.BotAPI
	adminID int64
	client  *http.Client
}

// New connects to the Telegram Bot API. adminID is the fixed operator
// chat that receives bundles and issue reports.
func New(token string, adminID int64) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	slog.Info("Telegram bot authorized", "username", api.Self.UserName)

	return &Bot{
		api:     api,
		adminID: adminID,
		client:  http.DefaultClient,
	}, nil
}

// Run consumes the long-poll update stream until ctx is done. Each update
// is handled on its own goroutine; per-user ordering is enforced by the
// engine's session locks, and a slow commit for one user never stalls
// message handling for others.
func (b *Bot) Run(ctx context.Context, engine *dialog.Engine) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			ev, ok := eventFromUpdate(update)
			if !ok {
				continue
			}
			go engine.Handle(ctx, ev)
		}
	}
}

// eventFromUpdate normalizes a Telegram update into a dialog event.
func eventFromUpdate(update tgbotapi.Update) (dialog.Event, bool) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return dialog.Event{}, false
	}

	ev := dialog.Event{
		UserID:      msg.From.ID,
		ChatID:      msg.Chat.ID,
		DisplayName: msg.From.UserName,
	}

	switch {
	case msg.IsCommand():
		switch msg.Command() {
		case "start":
			ev.Kind = dialog.EventStart
		case "cancel":
			ev.Kind = dialog.EventCancel
		case "done":
			ev.Kind = dialog.EventDone
		default:
			return dialog.Event{}, false
		}
	case len(msg.Photo) > 0:
		ev.Kind = dialog.EventPhoto
		// Telegram lists photo sizes smallest first; take the largest.
		ev.PhotoRef = msg.Photo[len(msg.Photo)-1].FileID
	case msg.Text != "":
		ev.Kind = dialog.EventText
		ev.Text = msg.Text
	default:
		return dialog.Event{}, false
	}

	return ev, true
}

// SendPrompt delivers a prompt, rendering choices as a one-time reply
// keyboard.
func (b *Bot) SendPrompt(ctx context.Context, chatID int64, p dialog.Prompt) error {
	msg := tgbotapi.NewMessage(chatID, p.Text)
	switch {
	case len(p.Choices) > 0:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(p.Choices))
		for _, choice := range p.Choices {
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(choice)))
		}
		keyboard := tgbotapi.NewReplyKeyboard(rows...)
		keyboard.OneTimeKeyboard = true
		keyboard.ResizeKeyboard = true
		msg.ReplyMarkup = keyboard
	case p.RemoveKeyboard:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	}

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send message to chat %d: %w", chatID, err)
	}
	return nil
}

// Download fetches an attachment's content into destPath.
func (b *Bot) Download(ctx context.Context, fileRef, destPath string) error {
	url, err := b.api.GetFileDirectURL(fileRef)
	if err != nil {
		return fmt.Errorf("resolve file %s: %w", fileRef, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("download file %s: %w", fileRef, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download file %s: unexpected status %s", fileRef, resp.Status)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create file %s: %w", destPath, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(destPath)
		return fmt.Errorf("write file %s: %w", destPath, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close file %s: %w", destPath, err)
	}
	return nil
}

// NotifyOrder sends the bundle with its caption to the operator chat.
func (b *Bot) NotifyOrder(ctx context.Context, bundlePath, caption string) error {
	doc := tgbotapi.NewDocument(b.adminID, tgbotapi.FilePath(bundlePath))
	doc.Caption = caption
	if _, err := b.api.Send(doc); err != nil {
		return fmt.Errorf("send bundle to operator: %w", err)
	}
	return nil
}

// ReportIssue sends an operator-facing issue report. Reports are
// best-effort: a failed send is logged, never propagated.
func (b *Bot) ReportIssue(ctx context.Context, text string) {
	msg := tgbotapi.NewMessage(b.adminID, text)
	if _, err := b.api.Send(msg); err != nil {
		slog.Error("Failed to deliver operator report", "error", err, "report", text)
	}
}
