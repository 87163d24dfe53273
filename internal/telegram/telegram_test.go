package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"memberbot/internal/domain"
)

type fakeBot struct {
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	chat     tgbotapi.Chat
	sendErr  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeBot) GetChat(tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error) {
	return f.chat, nil
}

func (f *fakeBot) GetFileDirectURL(fileID string) (string, error) {
	return "", errors.New("not used")
}

func TestClassifyStartCommand(t *testing.T) {
	update := tgbotapi.Update{
		UpdateID: 10,
		Message: &tgbotapi.Message{
			From:     &tgbotapi.User{ID: 42, FirstName: "Ana", LastName: "Lin"},
			Chat:     &tgbotapi.Chat{ID: 42},
			Text:     "/start",
			Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}},
		},
	}
	ev := Classify(update)
	assert.Equal(t, domain.EventFollow, ev.Kind)
	assert.Equal(t, "tg:42", ev.UserID)
	assert.Equal(t, "Ana Lin", ev.DisplayName)
	assert.Equal(t, "42", ev.ReplyToken)
	assert.Equal(t, "tg:10", ev.EventID)
	assert.Equal(t, domain.PlatformTelegram, ev.Platform)
}

func TestClassifyPhotoUsesLargestSize(t *testing.T) {
	update := tgbotapi.Update{
		UpdateID: 11,
		Message: &tgbotapi.Message{
			From:  &tgbotapi.User{ID: 42},
			Chat:  &tgbotapi.Chat{ID: 42},
			Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}},
		},
	}
	ev := Classify(update)
	assert.Equal(t, domain.EventImage, ev.Kind)
	assert.Equal(t, "large", ev.MediaID)
}

func TestClassifyTextAndCallback(t *testing.T) {
	text := Classify(tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 7},
		Chat: &tgbotapi.Chat{ID: 7},
		Text: " 0912345678 ",
	}})
	assert.Equal(t, domain.EventText, text.Kind)
	assert.Equal(t, "0912345678", text.Text)

	cb := Classify(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: 7},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 99}},
		Data:    "action=confirm_phone_no",
	}})
	assert.Equal(t, domain.EventPostback, cb.Kind)
	assert.Equal(t, domain.ActionConfirmPhoneNo, cb.Action)
	assert.Equal(t, "99", cb.ReplyToken)

	unknown := Classify(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		From: &tgbotapi.User{ID: 7},
		Data: "bogus",
	}})
	assert.Equal(t, domain.EventUnhandled, unknown.Kind)

	assert.Equal(t, domain.EventUnhandled, Classify(tgbotapi.Update{}).Kind)
}

func TestClientSendConvertsMessages(t *testing.T) {
	bot := &fakeBot{}
	c := newClient(bot, time.Second, zap.NewNop())

	err := c.Reply(context.Background(), "42", []domain.Message{
		domain.TextMessage("hola"),
		domain.ImageMessage("https://cdn.example.com/qr.png"),
		domain.ConfirmMessage(domain.Confirm{
			Text: "ok?",
			Yes:  domain.Button{Label: "yes", Action: domain.ActionConfirmPhoneYes},
			No:   domain.Button{Label: "no", Action: domain.ActionConfirmPhoneNo},
		}),
	})
	require.NoError(t, err)
	require.Len(t, bot.sent, 3)

	_, isText := bot.sent[0].(tgbotapi.MessageConfig)
	assert.True(t, isText)
	_, isPhoto := bot.sent[1].(tgbotapi.PhotoConfig)
	assert.True(t, isPhoto)
	confirm, ok := bot.sent[2].(tgbotapi.MessageConfig)
	require.True(t, ok)
	kb, ok := confirm.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 1)
	require.Len(t, kb.InlineKeyboard[0], 2)
	require.NotNil(t, kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "action=confirm_phone_yes", *kb.InlineKeyboard[0][0].CallbackData)
}

func TestClientPushRejectsInvalidTarget(t *testing.T) {
	c := newClient(&fakeBot{}, time.Second, zap.NewNop())
	err := c.Push(context.Background(), "U-line-user", []domain.Message{domain.TextMessage("x")})
	assert.Error(t, err)
}

func TestClientProfile(t *testing.T) {
	bot := &fakeBot{chat: tgbotapi.Chat{FirstName: "Ana", LastName: ""}}
	c := newClient(bot, time.Second, zap.NewNop())
	p, err := c.Profile(context.Background(), "tg:42")
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.DisplayName)
}

func TestAckCallback(t *testing.T) {
	bot := &fakeBot{}
	c := newClient(bot, time.Second, zap.NewNop())
	c.AckCallback("")
	c.AckCallback("cb1")
	assert.Len(t, bot.requests, 1)
}
