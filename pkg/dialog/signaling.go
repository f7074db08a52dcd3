package dialog

import (
	"strings"

	"github.com/emiago/sipgo/sip"
	"github.com/pion/sdp/v3"
)

// SignalingState представляет состояние offer/answer обмена (RFC 3264)
type SignalingState string

const (
	// SignalingStable обмен offer/answer завершен или не начинался
	SignalingStable SignalingState = "stable"
	// SignalingHaveLocalOffer наш offer отправлен, ждем answer
	SignalingHaveLocalOffer SignalingState = "have_local_offer"
	// SignalingHaveRemoteOffer получен удаленный offer, answer за нами
	SignalingHaveRemoteOffer SignalingState = "have_remote_offer"
	// SignalingClosed диалог завершен
	SignalingClosed SignalingState = "closed"
)

// transitionSignaling обновляет offer/answer состояние диалога из ответа.
//
// SDP тела парсятся через pion/sdp для проверки корректности и сохранения
// удаленного описания сессии; остальные типы содержимого проходят как
// непрозрачные данные и состояние не меняют. Вызывается под d.mu.
func (d *Dialog) transitionSignaling(res *sip.Response) {
	body := res.Body()
	if len(body) == 0 {
		return
	}

	ct := res.GetHeader("Content-Type")
	if ct == nil || !strings.EqualFold(ct.Value(), SDPContentType) {
		// Непрозрачное тело, offer/answer не затрагивает
		return
	}

	sd := sdp.SessionDescription{}
	if err := sd.Unmarshal(body); err != nil {
		d.log.WithError(err).Debug("failed to parse SDP body, ignoring")
		return
	}

	switch d.signaling {
	case SignalingHaveLocalOffer:
		// Получен answer на наш offer
		d.remoteSDP = append([]byte(nil), body...)
		d.signaling = SignalingStable
	case SignalingStable:
		// INVITE шел без offer — SDP ответа является удаленным offer,
		// answer поедет в ACK/PRACK
		d.remoteSDP = append([]byte(nil), body...)
		d.signaling = SignalingHaveRemoteOffer
	case SignalingHaveRemoteOffer, SignalingClosed:
		// Повтор offer либо поздний ответ, состояние не двигаем
	}
}

// Signaling возвращает текущее offer/answer состояние
func (d *Dialog) Signaling() SignalingState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.signaling
}

// RemoteSDP возвращает последнее принятое удаленное описание сессии
func (d *Dialog) RemoteSDP() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.remoteSDP
}
