package telegram

import (
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"memberbot/internal/domain"
)

// Classify proyecta un Update de Telegram a domain.Event sin tocar storage.
// /start cumple el rol del evento follow de LINE.
func Classify(update tgbotapi.Update) domain.Event {
	var ev domain.Event

	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		if cq.From == nil {
			return domain.Event{Kind: domain.EventUnhandled}
		}
		action, ok := domain.ParsePostbackAction(cq.Data)
		if !ok {
			return domain.Event{Kind: domain.EventUnhandled}
		}
		ev = domain.PostbackEvent(userKey(cq.From.ID), action)
		ev.ReplyToken = strconv.FormatInt(cq.From.ID, 10)
		if cq.Message != nil && cq.Message.Chat != nil {
			ev.ReplyToken = strconv.FormatInt(cq.Message.Chat.ID, 10)
		}
	case update.Message != nil:
		msg := update.Message
		if msg.From == nil || msg.Chat == nil {
			return domain.Event{Kind: domain.EventUnhandled}
		}
		userID := userKey(msg.From.ID)
		switch {
		case msg.IsCommand() && msg.Command() == "start":
			ev = domain.FollowEvent(userID, fullName(msg.From.FirstName, msg.From.LastName))
		case len(msg.Photo) > 0:
			// Telegram envia varias resoluciones; la ultima es la mas grande.
			ev = domain.ImageEvent(userID, msg.Photo[len(msg.Photo)-1].FileID)
		case msg.Text != "":
			ev = domain.TextEvent(userID, msg.Text)
		default:
			return domain.Event{Kind: domain.EventUnhandled}
		}
		ev.ReplyToken = strconv.FormatInt(msg.Chat.ID, 10)
	default:
		return domain.Event{Kind: domain.EventUnhandled}
	}

	ev.Platform = domain.PlatformTelegram
	ev.EventID = UserPrefix + strconv.Itoa(update.UpdateID)
	return ev
}

func userKey(id int64) string {
	return UserPrefix + strconv.FormatInt(id, 10)
}
