package service

import (
	"fmt"

	"memberbot/internal/domain"
)

// Textos del bot. El publico es de habla china tradicional.
const (
	msgWelcome         = "歡迎加入會員！完成註冊只需要三個步驟。"
	msgPhonePrompt     = "請輸入您的手機號碼（10 碼，09 開頭，例如 0912345678）。"
	msgPhoneInvalid    = "手機號碼格式錯誤，請輸入 10 碼且以 09 開頭的號碼，例如 0912345678。"
	msgCardPrompt      = "請輸入您的會員卡號（至少 5 碼英文或數字）。"
	msgCardInvalid     = "會員卡號格式錯誤，請輸入至少 5 碼的英文或數字。"
	msgPhotoPrompt     = "請上傳一張您的大頭照，用於現場身分核對。"
	msgPhotoRequired   = "請直接傳送一張照片以完成註冊。"
	msgRegistered      = "註冊完成！您可以隨時出示 QR Code 進行身分核對。"
	msgRegisteredHint  = "您已完成註冊，請使用下方選單查看 QR Code 或會員資料。"
	msgQRNotReady      = "您的 QR Code 尚未產生，請先完成註冊。"
	msgNotComplete     = "您尚未完成註冊，請依照指示完成註冊流程。"
	msgMissingPhone    = "系統查無您的手機號碼，請輸入手機號碼（09 開頭共 10 碼）。"
	msgEditMenu        = "請問要修改哪一項資料？請輸入「電話」、「卡號」或「照片」，輸入「取消」離開。"
	msgEditPhonePrompt = "請輸入新的手機號碼（10 碼，09 開頭）。輸入「取消」離開。"
	msgEditCardPrompt  = "請輸入新的會員卡號（至少 5 碼英文或數字）。輸入「取消」離開。"
	msgEditPhotoPrompt = "請上傳新的大頭照。輸入「取消」離開。"
	msgPhoneUpdated    = "手機號碼已更新。"
	msgPhoneUnchanged  = "新號碼與目前的號碼相同，未做任何修改。"
	msgPhoneKept       = "已取消修改，手機號碼維持不變。"
	msgNoPendingChange = "目前沒有待確認的修改。"
	msgCardUpdated     = "會員卡號已更新。"
	msgPhotoUpdated    = "大頭照已更新。"
	msgEditCancelled   = "已離開修改模式。"
	msgRestart         = "已清除您的註冊資料，我們重新開始。"
	msgConfirmPrompt   = "確定要將手機號碼從 %s 改為 %s 嗎？"
	msgStepRemind      = "您的註冊尚未完成。"
	labelMyQR          = "我的 QR Code"
	labelMyInfo        = "會員資料"
	labelEditInfo      = "修改資料"
	labelOpenQR        = "開啟 QR Code"
	labelEditPhone     = "電話"
	labelEditCard      = "卡號"
	labelEditPhoto     = "照片"
	labelConfirmYes    = "是"
	labelConfirmNo     = "否"
	labelName          = "姓名"
	labelPhone         = "電話"
	labelCard          = "卡號"
	titleMenu          = "會員選單"
	titleInfo          = "會員資料"
	titleEdit          = "修改資料"
	altMenu            = "會員選單"
	altInfo            = "會員資料"
	altEdit            = "請選擇要修改的項目"
)

func welcomeReply() []domain.Message {
	return []domain.Message{
		domain.TextMessage(msgWelcome),
		domain.TextMessage(msgPhonePrompt),
	}
}

func restartReply() []domain.Message {
	return []domain.Message{
		domain.TextMessage(msgRestart),
		domain.TextMessage(msgPhonePrompt),
	}
}

// menuCard es el menu funcional; incluye el enlace al QR cuando existe.
func menuCard(m domain.Member) domain.Message {
	buttons := make([]domain.Button, 0, 4)
	if m.QRCodeURL != "" {
		buttons = append(buttons, domain.Button{Label: labelOpenQR, URI: m.QRCodeURL})
	}
	buttons = append(buttons,
		domain.Button{Label: labelMyQR, Action: domain.ActionMyQR},
		domain.Button{Label: labelMyInfo, Action: domain.ActionMyInfo},
		domain.Button{Label: labelEditInfo, Action: domain.ActionEditInfo},
	)
	return domain.CardMessage(domain.Card{
		AltText:  altMenu,
		Title:    titleMenu,
		ImageURL: m.PhotoURL,
		Buttons:  buttons,
	})
}

func infoCard(m domain.Member) domain.Message {
	return domain.CardMessage(domain.Card{
		AltText:  altInfo,
		Title:    titleInfo,
		ImageURL: m.PhotoURL,
		Rows: []domain.CardRow{
			{Label: labelName, Value: m.DisplayName},
			{Label: labelPhone, Value: m.Phone},
			{Label: labelCard, Value: m.CardNumber},
		},
		Buttons: []domain.Button{
			{Label: labelMyQR, Action: domain.ActionMyQR},
			{Label: labelEditInfo, Action: domain.ActionEditInfo},
		},
	})
}

func editMenuReply() []domain.Message {
	return []domain.Message{
		domain.TextMessage(msgEditMenu),
		domain.CardMessage(domain.Card{
			AltText: altEdit,
			Title:   titleEdit,
			Buttons: []domain.Button{
				{Label: labelEditPhone, Action: domain.ActionEditPhone},
				{Label: labelEditCard, Action: domain.ActionEditCard},
				{Label: labelEditPhoto, Action: domain.ActionEditPhoto},
			},
		}),
	}
}

func confirmPhoneReply(current, pending string) []domain.Message {
	return []domain.Message{domain.ConfirmMessage(domain.Confirm{
		Text: fmt.Sprintf(msgConfirmPrompt, current, pending),
		Yes:  domain.Button{Label: labelConfirmYes, Action: domain.ActionConfirmPhoneYes},
		No:   domain.Button{Label: labelConfirmNo, Action: domain.ActionConfirmPhoneNo},
	})}
}

func qrReply(m domain.Member) []domain.Message {
	if m.QRCodeURL == "" {
		return text(msgQRNotReady)
	}
	return []domain.Message{domain.ImageMessage(m.QRCodeURL)}
}

// registeredReply se arma despues de subir foto y QR.
func registeredReply(m domain.Member) []domain.Message {
	return []domain.Message{domain.TextMessage(msgRegistered), menuCard(m)}
}

func photoUpdatedReply(m domain.Member) []domain.Message {
	return []domain.Message{domain.TextMessage(msgPhotoUpdated), infoCard(m)}
}

// stepReply recuerda al usuario que se espera de el en su estado actual.
func stepReply(m domain.Member) []domain.Message {
	if m.Status.PhoneConfirmPending() {
		return confirmPhoneReply(m.Phone, m.Status.PendingPhone)
	}
	switch m.Status.State {
	case domain.StateAwaitingPhone:
		return text(msgStepRemind, msgPhonePrompt)
	case domain.StateAwaitingCard:
		return text(msgStepRemind, msgCardPrompt)
	case domain.StateAwaitingPhoto:
		return text(msgStepRemind, msgPhotoPrompt)
	case domain.StateEditMenu:
		return editMenuReply()
	case domain.StateEditPhone:
		return text(msgEditPhonePrompt)
	case domain.StateEditCard:
		return text(msgEditCardPrompt)
	case domain.StateEditPhoto:
		return text(msgEditPhotoPrompt)
	}
	return []domain.Message{domain.TextMessage(msgRegisteredHint), menuCard(m)}
}

func text(lines ...string) []domain.Message {
	out := make([]domain.Message, 0, len(lines))
	for _, l := range lines {
		out = append(out, domain.TextMessage(l))
	}
	return out
}
