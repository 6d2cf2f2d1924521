package notify

import (
	"context"
	"errors"
	"fmt"
	"io"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender posts notifications to the admin chat(s).
type TelegramSender struct {
	bot     *tgbotapi.BotAPI
	chatIDs []int64
}

// NewTelegramSender connects to the bot API.
func NewTelegramSender(token string, chatIDs []int64) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &TelegramSender{bot: bot, chatIDs: chatIDs}, nil
}

func (t *TelegramSender) Name() string { return "telegram" }

// Send posts the message to every configured chat. Telegram API errors
// are translated so the dispatcher can honor retry-after hints.
func (t *TelegramSender) Send(ctx context.Context, msg Message) error {
	text := fmt.Sprintf("%s\n\n%s", msg.Subject, msg.Body)

	for _, chatID := range t.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		out := tgbotapi.NewMessage(chatID, text)
		if _, err := t.bot.Send(out); err != nil {
			var tgErr *tgbotapi.Error
			if errors.As(err, &tgErr) {
				se := &SendError{Code: tgErr.Code, Message: tgErr.Message}
				if tgErr.ResponseParameters.RetryAfter > 0 {
					se.RetryAfter = tgErr.ResponseParameters.RetryAfter
				}
				return se
			}
			return fmt.Errorf("telegram send to %d: %w", chatID, err)
		}
	}
	return nil
}

// SendDocument uploads a file to every configured chat. Satisfies the
// audit report notifier.
func (t *TelegramSender) SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error {
	content, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	for _, chatID := range t.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: content})
		doc.Caption = caption
		if _, err := t.bot.Send(doc); err != nil {
			return fmt.Errorf("telegram document to %d: %w", chatID, err)
		}
	}
	return nil
}
