package line

import (
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"memberbot/internal/domain"
)

func toLINEMessages(msgs []domain.Message) []messaging_api.MessageInterface {
	out := make([]messaging_api.MessageInterface, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toLINEMessage(m))
	}
	return out
}

func toLINEMessage(m domain.Message) messaging_api.MessageInterface {
	switch m.Type {
	case domain.MessageImage:
		preview := m.PreviewURL
		if preview == "" {
			preview = m.OriginalURL
		}
		return &messaging_api.ImageMessage{OriginalContentUrl: m.OriginalURL, PreviewImageUrl: preview}
	case domain.MessageConfirm:
		if m.Confirm == nil {
			break
		}
		return &messaging_api.TemplateMessage{
			AltText: m.Confirm.Text,
			Template: &messaging_api.ConfirmTemplate{
				Text:    m.Confirm.Text,
				Actions: []messaging_api.ActionInterface{toAction(m.Confirm.Yes), toAction(m.Confirm.No)},
			},
		}
	case domain.MessageCard:
		if m.Card == nil {
			break
		}
		return toFlex(*m.Card)
	}
	return &messaging_api.TextMessage{Text: m.PlainText()}
}

func toAction(b domain.Button) messaging_api.ActionInterface {
	if b.URI != "" {
		return &messaging_api.UriAction{Label: b.Label, Uri: b.URI}
	}
	return &messaging_api.PostbackAction{Label: b.Label, Data: b.Action.PostbackData(), DisplayText: b.Label}
}

func toFlex(card domain.Card) *messaging_api.FlexMessage {
	bubble := &messaging_api.FlexBubble{}
	if card.ImageURL != "" {
		bubble.Hero = &messaging_api.FlexImage{
			Url:        card.ImageURL,
			Size:       "full",
			AspectMode: messaging_api.FlexImageASPECT_MODE_COVER,
		}
	}

	body := &messaging_api.FlexBox{Layout: messaging_api.FlexBoxLAYOUT_VERTICAL, Spacing: "sm"}
	body.Contents = append(body.Contents, &messaging_api.FlexText{
		Text:   card.Title,
		Weight: messaging_api.FlexTextWEIGHT_BOLD,
		Size:   "lg",
		Wrap:   true,
	})
	for _, row := range card.Rows {
		value := row.Value
		if value == "" {
			value = "-"
		}
		body.Contents = append(body.Contents, &messaging_api.FlexBox{
			Layout: messaging_api.FlexBoxLAYOUT_BASELINE,
			Margin: "md",
			Contents: []messaging_api.FlexComponentInterface{
				&messaging_api.FlexText{Text: row.Label, Color: "#aaaaaa", Size: "sm"},
				&messaging_api.FlexText{Text: value, Size: "sm", Wrap: true},
			},
		})
	}
	bubble.Body = body

	if len(card.Buttons) > 0 {
		footer := &messaging_api.FlexBox{Layout: messaging_api.FlexBoxLAYOUT_VERTICAL, Spacing: "sm"}
		for _, b := range card.Buttons {
			footer.Contents = append(footer.Contents, &messaging_api.FlexButton{
				Style:  messaging_api.FlexButtonSTYLE_LINK,
				Action: toAction(b),
			})
		}
		bubble.Footer = footer
	}

	alt := card.AltText
	if alt == "" {
		alt = card.Title
	}
	return &messaging_api.FlexMessage{AltText: alt, Contents: bubble}
}
