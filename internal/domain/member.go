package domain

import (
	"fmt"
	"regexp"
	"time"
)

// State es el paso del flujo de registro/edicion en el que esta un miembro.
// Los valores numericos son los que se persisten.
type State int

const (
	StateRegistered    State = 0
	StateAwaitingPhone State = 1
	StateAwaitingCard  State = 2
	StateAwaitingPhoto State = 3
	StateEditMenu      State = 10
	StateEditPhone     State = 11
	StateEditCard      State = 12
	StateEditPhoto     State = 13
)

func (s State) Valid() bool {
	switch s {
	case StateRegistered, StateAwaitingPhone, StateAwaitingCard, StateAwaitingPhoto,
		StateEditMenu, StateEditPhone, StateEditCard, StateEditPhoto:
		return true
	}
	return false
}

// Onboarding indica si el estado pertenece al registro inicial en curso.
func (s State) Onboarding() bool {
	return s == StateAwaitingPhone || s == StateAwaitingCard || s == StateAwaitingPhoto
}

func (s State) Editing() bool {
	return s == StateEditMenu || s == StateEditPhone || s == StateEditCard || s == StateEditPhoto
}

func (s State) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateAwaitingPhone:
		return "awaiting_phone"
	case StateAwaitingCard:
		return "awaiting_card"
	case StateAwaitingPhoto:
		return "awaiting_photo"
	case StateEditMenu:
		return "edit_menu"
	case StateEditPhone:
		return "edit_phone"
	case StateEditCard:
		return "edit_card"
	case StateEditPhoto:
		return "edit_photo"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Status combina el estado con la confirmacion de telefono pendiente.
// Un telefono pendiente solo existe junto a StateRegistered o StateEditMenu.
type Status struct {
	State        State  `json:"state"`
	PendingPhone string `json:"pending_phone,omitempty"`
}

// At devuelve un Status sin confirmacion pendiente.
func At(state State) Status {
	return Status{State: state}
}

// ConfirmingPhone devuelve el sub-estado de confirmacion sobre base.
func ConfirmingPhone(base State, phone string) (Status, error) {
	if base != StateRegistered && base != StateEditMenu {
		return Status{}, fmt.Errorf("phone confirmation not allowed in %s", base)
	}
	if phone == "" {
		return Status{}, fmt.Errorf("phone confirmation requires a phone")
	}
	return Status{State: base, PendingPhone: phone}, nil
}

func (s Status) PhoneConfirmPending() bool {
	return s.PendingPhone != ""
}

// Validate verifica que el Status persistido sea coherente.
func (s Status) Validate() error {
	if !s.State.Valid() {
		return fmt.Errorf("invalid member state %d", int(s.State))
	}
	if s.PendingPhone != "" && s.State != StateRegistered && s.State != StateEditMenu {
		return fmt.Errorf("pending phone set in %s", s.State)
	}
	return nil
}

type Member struct {
	ID             int64     `json:"id"`
	ExternalUserID string    `json:"external_user_id"`
	DisplayName    string    `json:"display_name,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	CardNumber     string    `json:"card_number,omitempty"`
	PhotoURL       string    `json:"photo_url,omitempty"`
	QRCodeURL      string    `json:"qr_code_url,omitempty"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	LastActiveAt   time.Time `json:"last_active_at"`
}

// Registered indica si el miembro completo el registro inicial.
func (m Member) Registered() bool {
	return m.Status.State == StateRegistered
}

// PublicIdentity es lo que ve la herramienta de verificacion al escanear el QR.
type PublicIdentity struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	CardNumber  string `json:"card_number"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

func (m Member) PublicIdentity() PublicIdentity {
	return PublicIdentity{
		ID:          m.ID,
		DisplayName: m.DisplayName,
		CardNumber:  m.CardNumber,
		PhotoURL:    m.PhotoURL,
	}
}

var (
	phonePattern = regexp.MustCompile(`^09\d{8}$`)
	cardPattern  = regexp.MustCompile(`^[A-Za-z0-9]{5,}$`)
)

// ValidPhone acepta exactamente 10 digitos empezando por 09.
func ValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// ValidCardNumber acepta 5 o mas caracteres alfanumericos.
func ValidCardNumber(s string) bool {
	return cardPattern.MatchString(s)
}
