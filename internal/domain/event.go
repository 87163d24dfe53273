package domain

import "strings"

// Platform identifica la plataforma de chat que origino un evento.
type Platform string

const (
	PlatformLINE     Platform = "line"
	PlatformTelegram Platform = "telegram"
)

type EventKind int

const (
	EventUnhandled EventKind = iota
	EventFollow
	EventText
	EventImage
	EventPostback
)

func (k EventKind) String() string {
	switch k {
	case EventFollow:
		return "follow"
	case EventText:
		return "text"
	case EventImage:
		return "image"
	case EventPostback:
		return "postback"
	}
	return "unhandled"
}

// PostbackAction es el conjunto cerrado de acciones de botones del bot.
type PostbackAction string

const (
	ActionMyQR            PostbackAction = "my_qr"
	ActionMyInfo          PostbackAction = "my_info"
	ActionEditInfo        PostbackAction = "edit_info"
	ActionEditPhone       PostbackAction = "edit_phone"
	ActionEditCard        PostbackAction = "edit_card"
	ActionEditPhoto       PostbackAction = "edit_photo"
	ActionConfirmPhoneYes PostbackAction = "confirm_phone_yes"
	ActionConfirmPhoneNo  PostbackAction = "confirm_phone_no"
)

// PostbackData es el payload que viaja en los botones, por ejemplo "action=my_qr".
func (a PostbackAction) PostbackData() string {
	return "action=" + string(a)
}

// ParsePostbackAction acepta "action=my_qr" o "my_qr".
func ParsePostbackAction(data string) (PostbackAction, bool) {
	data = strings.TrimSpace(data)
	for _, part := range strings.Split(data, "&") {
		if v, ok := strings.CutPrefix(part, "action="); ok {
			data = v
			break
		}
	}
	switch a := PostbackAction(data); a {
	case ActionMyQR, ActionMyInfo, ActionEditInfo, ActionEditPhone, ActionEditCard,
		ActionEditPhoto, ActionConfirmPhoneYes, ActionConfirmPhoneNo:
		return a, true
	}
	return "", false
}

// Event es un evento de plataforma ya normalizado.
type Event struct {
	Kind       EventKind
	Platform   Platform
	EventID    string
	UserID     string
	ReplyToken string

	DisplayName string
	Text        string
	MediaID     string
	Action      PostbackAction
}

func FollowEvent(userID, displayName string) Event {
	return Event{Kind: EventFollow, UserID: userID, DisplayName: strings.TrimSpace(displayName)}
}

func TextEvent(userID, content string) Event {
	return Event{Kind: EventText, UserID: userID, Text: strings.TrimSpace(content)}
}

func ImageEvent(userID, mediaID string) Event {
	return Event{Kind: EventImage, UserID: userID, MediaID: mediaID}
}

func PostbackEvent(userID string, action PostbackAction) Event {
	return Event{Kind: EventPostback, UserID: userID, Action: action}
}

func (e Event) Handled() bool {
	return e.Kind != EventUnhandled && e.UserID != ""
}
