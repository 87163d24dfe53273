package domain

type MessageType string

const (
	MessageText    MessageType = "text"
	MessageImage   MessageType = "image"
	MessageCard    MessageType = "card"
	MessageConfirm MessageType = "confirm"
)

// Message es un mensaje saliente independiente de la plataforma.
type Message struct {
	Type MessageType `json:"type"`
	Text string      `json:"text,omitempty"`

	OriginalURL string `json:"original_url,omitempty"`
	PreviewURL  string `json:"preview_url,omitempty"`

	Card    *Card    `json:"card,omitempty"`
	Confirm *Confirm `json:"confirm,omitempty"`
}

type Card struct {
	AltText  string    `json:"alt_text"`
	Title    string    `json:"title"`
	ImageURL string    `json:"image_url,omitempty"`
	Rows     []CardRow `json:"rows,omitempty"`
	Buttons  []Button  `json:"buttons,omitempty"`
}

type CardRow struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Button dispara un postback o abre una URI; solo uno de los dos.
type Button struct {
	Label  string         `json:"label"`
	Action PostbackAction `json:"action,omitempty"`
	URI    string         `json:"uri,omitempty"`
}

type Confirm struct {
	Text string `json:"text"`
	Yes  Button `json:"yes"`
	No   Button `json:"no"`
}

func TextMessage(text string) Message {
	return Message{Type: MessageText, Text: text}
}

func ImageMessage(url string) Message {
	return Message{Type: MessageImage, OriginalURL: url, PreviewURL: url}
}

func CardMessage(card Card) Message {
	return Message{Type: MessageCard, Card: &card}
}

func ConfirmMessage(c Confirm) Message {
	return Message{Type: MessageConfirm, Confirm: &c}
}

// PlainText aplana cualquier mensaje a texto, para plataformas sin layouts.
func (m Message) PlainText() string {
	switch m.Type {
	case MessageCard:
		if m.Card == nil {
			return ""
		}
		out := m.Card.Title
		for _, row := range m.Card.Rows {
			out += "\n" + row.Label + ": " + row.Value
		}
		return out
	case MessageConfirm:
		if m.Confirm == nil {
			return ""
		}
		return m.Confirm.Text
	case MessageImage:
		return m.OriginalURL
	}
	return m.Text
}
