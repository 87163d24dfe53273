package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"memberbot/internal/domain"
	"memberbot/internal/messaging"
)

// UserPrefix distingue los usuarios de Telegram de los de LINE en la tabla members.
const UserPrefix = "tg:"

// botAPI es el subconjunto de *tgbotapi.BotAPI que usamos.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Client implementa messaging.Gateway sobre la Bot API de Telegram.
type Client struct {
	bot    botAPI
	http   *http.Client
	logger *zap.Logger
}

var _ messaging.Gateway = (*Client)(nil)

func NewClient(bot *tgbotapi.BotAPI, timeout time.Duration, logger *zap.Logger) *Client {
	return newClient(bot, timeout, logger)
}

func newClient(bot botAPI, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{bot: bot, http: &http.Client{Timeout: timeout}, logger: logger}
}

// RegisterWebhook apunta el bot a nuestro endpoint de webhook.
func RegisterWebhook(bot *tgbotapi.BotAPI, url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}
	if _, err := bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

func (c *Client) Profile(_ context.Context, userID string) (messaging.Profile, error) {
	chatID, err := ParseChatID(userID)
	if err != nil {
		return messaging.Profile{}, err
	}
	chat, err := c.bot.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: chatID}})
	if err != nil {
		return messaging.Profile{}, err
	}
	return messaging.Profile{DisplayName: fullName(chat.FirstName, chat.LastName)}, nil
}

// Reply envia al chat del evento; en Telegram el reply token es el chat id.
func (c *Client) Reply(ctx context.Context, replyToken string, msgs []domain.Message) error {
	return c.send(ctx, replyToken, msgs)
}

func (c *Client) Push(ctx context.Context, userID string, msgs []domain.Message) error {
	return c.send(ctx, userID, msgs)
}

func (c *Client) Media(ctx context.Context, mediaID string) (io.ReadCloser, error) {
	fileURL, err := c.bot.GetFileDirectURL(mediaID)
	if err != nil {
		return nil, fmt.Errorf("resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("telegram file error: status=%d", resp.StatusCode)
	}
	return resp.Body, nil
}

// AckCallback cierra el spinner del boton inline pulsado.
func (c *Client) AckCallback(callbackID string) {
	if callbackID == "" {
		return
	}
	if _, err := c.bot.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		c.logger.Warn("telegram callback ack failed", zap.Error(err))
	}
}

func (c *Client) send(ctx context.Context, target string, msgs []domain.Message) error {
	chatID, err := ParseChatID(target)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := c.bot.Send(toChattable(chatID, m)); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
	}
	return nil
}

// ParseChatID acepta "tg:123" o "123".
func ParseChatID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, UserPrefix), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q: %w", s, err)
	}
	return id, nil
}

func toChattable(chatID int64, m domain.Message) tgbotapi.Chattable {
	switch m.Type {
	case domain.MessageImage:
		return tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(m.OriginalURL))
	case domain.MessageCard:
		if m.Card == nil {
			break
		}
		keyboard := keyboardFor(m.Card.Buttons)
		if m.Card.ImageURL != "" {
			photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(m.Card.ImageURL))
			photo.Caption = m.PlainText()
			if keyboard != nil {
				photo.ReplyMarkup = *keyboard
			}
			return photo
		}
		msg := tgbotapi.NewMessage(chatID, m.PlainText())
		if keyboard != nil {
			msg.ReplyMarkup = *keyboard
		}
		return msg
	case domain.MessageConfirm:
		if m.Confirm == nil {
			break
		}
		msg := tgbotapi.NewMessage(chatID, m.Confirm.Text)
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(button(m.Confirm.Yes), button(m.Confirm.No)),
		)
		return msg
	}
	return tgbotapi.NewMessage(chatID, m.PlainText())
}

func keyboardFor(buttons []domain.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button(b)))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func button(b domain.Button) tgbotapi.InlineKeyboardButton {
	if b.URI != "" {
		return tgbotapi.NewInlineKeyboardButtonURL(b.Label, b.URI)
	}
	return tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Action.PostbackData())
}

func fullName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}
