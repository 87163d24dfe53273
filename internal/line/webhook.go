package line

import (
	"encoding/json"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"memberbot/internal/domain"
)

// ParseWebhook decodifica el cuerpo del webhook con los tipos del SDK. No
// verifica la firma X-Line-Signature.
func ParseWebhook(body []byte) (webhook.CallbackRequest, error) {
	var req webhook.CallbackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return webhook.CallbackRequest{}, fmt.Errorf("unmarshal webhook: %w", err)
	}
	return req, nil
}

// Classify proyecta un evento de LINE a domain.Event. Es puro: el display
// name del Follow lo completa el servicio via Gateway.Profile.
func Classify(raw webhook.EventInterface) domain.Event {
	var (
		ev         domain.Event
		eventID    string
		replyToken string
	)

	switch e := raw.(type) {
	case webhook.FollowEvent:
		ev = domain.FollowEvent(sourceUserID(e.Source), "")
		eventID, replyToken = e.WebhookEventId, e.ReplyToken
	case webhook.MessageEvent:
		userID := sourceUserID(e.Source)
		switch msg := e.Message.(type) {
		case webhook.TextMessageContent:
			ev = domain.TextEvent(userID, msg.Text)
		case webhook.ImageMessageContent:
			ev = domain.ImageEvent(userID, msg.Id)
		default:
			return domain.Event{Kind: domain.EventUnhandled}
		}
		eventID, replyToken = e.WebhookEventId, e.ReplyToken
	case webhook.PostbackEvent:
		if e.Postback == nil {
			return domain.Event{Kind: domain.EventUnhandled}
		}
		action, ok := domain.ParsePostbackAction(e.Postback.Data)
		if !ok {
			return domain.Event{Kind: domain.EventUnhandled}
		}
		ev = domain.PostbackEvent(sourceUserID(e.Source), action)
		eventID, replyToken = e.WebhookEventId, e.ReplyToken
	default:
		return domain.Event{Kind: domain.EventUnhandled}
	}

	if ev.UserID == "" {
		return domain.Event{Kind: domain.EventUnhandled}
	}
	ev.Platform = domain.PlatformLINE
	ev.EventID = eventID
	ev.ReplyToken = replyToken
	return ev
}

func sourceUserID(src webhook.SourceInterface) string {
	switch s := src.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	}
	return ""
}
