package service

import (
	"strings"
	"time"

	"memberbot/internal/domain"
)

// MachineOptions activa las variantes del flujo sin duplicar la maquina.
type MachineOptions struct {
	SkipPhotoStep    bool
	SkipPhoneConfirm bool
}

// OnboardingMachine decide la transicion y los efectos para un evento.
// No llama a ningun colaborador.
type OnboardingMachine struct {
	opts MachineOptions
}

func NewOnboardingMachine(opts MachineOptions) OnboardingMachine {
	return OnboardingMachine{opts: opts}
}

// Decision es el snapshot siguiente del miembro mas los efectos a ejecutar,
// en orden.
type Decision struct {
	Member  domain.Member
	From    domain.State
	Created bool
	Effects []domain.Effect
}

func (d Decision) Empty() bool {
	return len(d.Effects) == 0
}

func (d Decision) StateChanged() bool {
	return d.Created || d.From != d.Member.Status.State
}

// Decide aplica ev a member. member nil significa que no existe registro;
// solo un Follow crea uno, cualquier otro evento se descarta.
func (m OnboardingMachine) Decide(member *domain.Member, ev domain.Event, now time.Time) Decision {
	if !ev.Handled() {
		return Decision{}
	}
	if member == nil {
		if ev.Kind != domain.EventFollow {
			return Decision{}
		}
		created := domain.Member{
			ExternalUserID: ev.UserID,
			DisplayName:    ev.DisplayName,
			Status:         domain.At(domain.StateAwaitingPhone),
			CreatedAt:      now,
			LastActiveAt:   now,
		}
		return Decision{
			Member:  created,
			Created: true,
			Effects: []domain.Effect{domain.CreateMember(), domain.Reply(welcomeReply()...)},
		}
	}

	from := member.Status.State
	next := *member
	next.LastActiveAt = now

	var t transition
	switch {
	case ev.Kind == domain.EventText && isRestart(ev.Text):
		t = m.restart(next)
	case ev.Kind == domain.EventFollow:
		if ev.DisplayName != "" {
			next.DisplayName = ev.DisplayName
		}
		t = stay(next, stepReply(next)...)
	case ev.Kind == domain.EventPostback:
		t = m.onPostback(next, ev.Action)
	case ev.Kind == domain.EventText:
		t = m.onText(next, ev.Text)
	case ev.Kind == domain.EventImage:
		t = m.onImage(next, ev.MediaID)
	default:
		return Decision{}
	}
	return t.decision(from)
}

// Reclaim devuelve el reinicio silencioso de un registro abandonado.
// Registered y Edit* nunca se tocan.
func (m OnboardingMachine) Reclaim(member domain.Member, cutoff time.Time) (Decision, bool) {
	from := member.Status.State
	if !from.Onboarding() || !member.LastActiveAt.Before(cutoff) {
		return Decision{}, false
	}
	if from == domain.StateAwaitingPhone {
		return Decision{}, false
	}
	member.Status = domain.At(domain.StateAwaitingPhone)
	return Decision{
		Member:  member,
		From:    from,
		Effects: []domain.Effect{domain.SaveMember()},
	}, true
}

func (m OnboardingMachine) restart(mem domain.Member) transition {
	mem.Phone = ""
	mem.CardNumber = ""
	mem.PhotoURL = ""
	mem.QRCodeURL = ""
	return moveTo(mem, domain.StateAwaitingPhone, restartReply()...)
}

func (m OnboardingMachine) onText(mem domain.Member, input string) transition {
	if mem.Status.PhoneConfirmPending() {
		if isCancel(input) {
			return moveTo(mem, domain.StateRegistered, text(msgPhoneKept)...)
		}
		return stay(mem, confirmPhoneReply(mem.Phone, mem.Status.PendingPhone)...)
	}

	switch mem.Status.State {
	case domain.StateAwaitingPhone:
		if !domain.ValidPhone(input) {
			return stay(mem, text(msgPhoneInvalid)...)
		}
		mem.Phone = input
		return moveTo(mem, domain.StateAwaitingCard, text(msgCardPrompt)...)

	case domain.StateAwaitingCard:
		if !domain.ValidCardNumber(input) {
			return stay(mem, text(msgCardInvalid)...)
		}
		mem.CardNumber = input
		if m.opts.SkipPhotoStep {
			return complete(mem, "")
		}
		return moveTo(mem, domain.StateAwaitingPhoto, text(msgPhotoPrompt)...)

	case domain.StateAwaitingPhoto:
		return stay(mem, text(msgPhotoRequired)...)

	case domain.StateEditMenu:
		if isCancel(input) {
			return leaveEdit(mem)
		}
		target, ok := editTarget(input)
		if !ok {
			return stay(mem, editMenuReply()...)
		}
		return moveTo(mem, target, editPrompt(target)...)

	case domain.StateEditPhone:
		if isCancel(input) {
			return leaveEdit(mem)
		}
		if !domain.ValidPhone(input) {
			return stay(mem, text(msgPhoneInvalid)...)
		}
		return m.changePhone(mem, input)

	case domain.StateEditCard:
		if isCancel(input) {
			return leaveEdit(mem)
		}
		if !domain.ValidCardNumber(input) {
			return stay(mem, text(msgCardInvalid)...)
		}
		mem.CardNumber = input
		mem.Status = domain.At(domain.StateRegistered)
		return stay(mem, domain.TextMessage(msgCardUpdated), menuCard(mem))

	case domain.StateEditPhoto:
		if isCancel(input) {
			return leaveEdit(mem)
		}
		return stay(mem, text(msgEditPhotoPrompt)...)
	}

	return stay(mem, stepReply(mem)...)
}

func (m OnboardingMachine) onImage(mem domain.Member, mediaID string) transition {
	if mem.Status.PhoneConfirmPending() {
		return stay(mem, stepReply(mem)...)
	}
	switch mem.Status.State {
	case domain.StateAwaitingPhoto:
		return complete(mem, mediaID)
	case domain.StateEditPhoto:
		mem.Status = domain.At(domain.StateRegistered)
		return transition{
			member:  mem,
			effects: []domain.Effect{domain.StorePhoto(mediaID)},
			reply:   domain.ReplyWith(photoUpdatedReply),
		}
	}
	return stay(mem, stepReply(mem)...)
}

func (m OnboardingMachine) onPostback(mem domain.Member, action domain.PostbackAction) transition {
	state := mem.Status.State
	switch action {
	case domain.ActionConfirmPhoneYes:
		if !mem.Status.PhoneConfirmPending() {
			return stay(mem, text(msgNoPendingChange)...)
		}
		mem.Phone = mem.Status.PendingPhone
		mem.Status = domain.At(domain.StateRegistered)
		return stay(mem, domain.TextMessage(msgPhoneUpdated), menuCard(mem))

	case domain.ActionConfirmPhoneNo:
		if !mem.Status.PhoneConfirmPending() {
			return stay(mem, text(msgNoPendingChange)...)
		}
		return moveTo(mem, domain.StateRegistered, text(msgPhoneKept)...)

	case domain.ActionMyQR:
		return stay(mem, qrReply(mem)...)

	case domain.ActionMyInfo:
		if state.Onboarding() {
			return stay(mem, text(msgNotComplete)...)
		}
		if mem.Phone == "" {
			return moveTo(mem, domain.StateEditPhone, infoCard(mem), domain.TextMessage(msgMissingPhone))
		}
		return stay(mem, infoCard(mem))

	case domain.ActionEditInfo:
		if state.Onboarding() {
			return stay(mem, text(msgNotComplete)...)
		}
		return moveTo(mem, domain.StateEditMenu, editMenuReply()...)

	case domain.ActionEditPhone, domain.ActionEditCard, domain.ActionEditPhoto:
		if state.Onboarding() {
			return stay(mem, text(msgNotComplete)...)
		}
		target := editStates[action]
		return moveTo(mem, target, editPrompt(target)...)
	}
	return stay(mem, stepReply(mem)...)
}

// changePhone aplica o deja pendiente un telefono ya validado.
func (m OnboardingMachine) changePhone(mem domain.Member, phone string) transition {
	if phone == mem.Phone {
		mem.Status = domain.At(domain.StateRegistered)
		return stay(mem, domain.TextMessage(msgPhoneUnchanged), menuCard(mem))
	}
	if mem.Phone == "" || m.opts.SkipPhoneConfirm {
		mem.Phone = phone
		mem.Status = domain.At(domain.StateRegistered)
		return stay(mem, domain.TextMessage(msgPhoneUpdated), menuCard(mem))
	}
	status, err := domain.ConfirmingPhone(domain.StateRegistered, phone)
	if err != nil {
		return stay(mem, text(msgPhoneInvalid)...)
	}
	mem.Status = status
	return stay(mem, confirmPhoneReply(mem.Phone, phone)...)
}

// complete cierra el registro inicial: foto (si hay), QR y menu.
func complete(mem domain.Member, mediaID string) transition {
	mem.Status = domain.At(domain.StateRegistered)
	effects := make([]domain.Effect, 0, 2)
	if mediaID != "" {
		effects = append(effects, domain.StorePhoto(mediaID))
	}
	effects = append(effects, domain.EnsureQRCode())
	return transition{
		member:  mem,
		effects: effects,
		reply:   domain.ReplyWith(registeredReply),
	}
}

func leaveEdit(mem domain.Member) transition {
	mem.Status = domain.At(domain.StateRegistered)
	return stay(mem, domain.TextMessage(msgEditCancelled), menuCard(mem))
}

// transition es el resultado intermedio antes de armar la Decision:
// efectos previos al guardado, el guardado y la respuesta.
type transition struct {
	member  domain.Member
	effects []domain.Effect
	reply   domain.Effect
}

func (t transition) decision(from domain.State) Decision {
	effects := make([]domain.Effect, 0, len(t.effects)+2)
	effects = append(effects, t.effects...)
	effects = append(effects, domain.SaveMember(), t.reply)
	return Decision{Member: t.member, From: from, Effects: effects}
}

func stay(mem domain.Member, msgs ...domain.Message) transition {
	return transition{member: mem, reply: domain.Reply(msgs...)}
}

func moveTo(mem domain.Member, state domain.State, msgs ...domain.Message) transition {
	mem.Status = domain.At(state)
	return stay(mem, msgs...)
}

var editStates = map[domain.PostbackAction]domain.State{
	domain.ActionEditPhone: domain.StateEditPhone,
	domain.ActionEditCard:  domain.StateEditCard,
	domain.ActionEditPhoto: domain.StateEditPhoto,
}

func editPrompt(state domain.State) []domain.Message {
	switch state {
	case domain.StateEditPhone:
		return text(msgEditPhonePrompt)
	case domain.StateEditCard:
		return text(msgEditCardPrompt)
	}
	return text(msgEditPhotoPrompt)
}

func editTarget(input string) (domain.State, bool) {
	s := strings.ToLower(input)
	switch {
	case mentions(s, "電話", "手機", "phone"):
		return domain.StateEditPhone, true
	case mentions(s, "卡號", "card"):
		return domain.StateEditCard, true
	case mentions(s, "照片", "photo"):
		return domain.StateEditPhoto, true
	}
	return 0, false
}

func isRestart(input string) bool {
	s := strings.ToLower(strings.TrimSpace(input))
	return s == "重新註冊" || s == "re-register"
}

func isCancel(input string) bool {
	s := strings.ToLower(strings.TrimSpace(input))
	return s == "取消" || s == "cancel"
}

func mentions(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
