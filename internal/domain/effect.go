package domain

type EffectKind int

const (
	// EffectCreateMember inserta el miembro nuevo y le asigna ID.
	EffectCreateMember EffectKind = iota + 1
	// EffectStorePhoto descarga la imagen del usuario y la sube como foto del miembro.
	EffectStorePhoto
	// EffectEnsureQRCode genera y sube el QR solo si el miembro aun no tiene uno.
	EffectEnsureQRCode
	// EffectSaveMember persiste el snapshot actual del miembro.
	EffectSaveMember
	// EffectReply envia mensajes al usuario.
	EffectReply
)

func (k EffectKind) String() string {
	switch k {
	case EffectCreateMember:
		return "create_member"
	case EffectStorePhoto:
		return "store_photo"
	case EffectEnsureQRCode:
		return "ensure_qr_code"
	case EffectSaveMember:
		return "save_member"
	case EffectReply:
		return "reply"
	}
	return "unknown"
}

type Effect struct {
	Kind     EffectKind
	MediaID  string
	Messages []Message
	// Compose arma los mensajes con el miembro ya persistido, para respuestas
	// que dependen de URLs generadas en el mismo evento.
	Compose func(Member) []Message
}

// Render devuelve los mensajes del efecto para el miembro dado.
func (e Effect) Render(m Member) []Message {
	if e.Compose != nil {
		return e.Compose(m)
	}
	return e.Messages
}

// Messaging indica si el efecto es un envio al usuario.
func (e Effect) Messaging() bool {
	return e.Kind == EffectReply
}

func CreateMember() Effect { return Effect{Kind: EffectCreateMember} }

func StorePhoto(mediaID string) Effect { return Effect{Kind: EffectStorePhoto, MediaID: mediaID} }

func EnsureQRCode() Effect { return Effect{Kind: EffectEnsureQRCode} }

func SaveMember() Effect { return Effect{Kind: EffectSaveMember} }

func Reply(msgs ...Message) Effect { return Effect{Kind: EffectReply, Messages: msgs} }

func ReplyWith(compose func(Member) []Message) Effect {
	return Effect{Kind: EffectReply, Compose: compose}
}
