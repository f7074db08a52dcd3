package invite

import (
	"github.com/emiago/sipgo/sip"

	"github.com/akratov/softcall/pkg/dialog"
)

// Session — непрозрачный хэндл диалога, передаваемый делегату.
//
// Хэндл не дает владения диалогом: учет диалогов остается за диспетчером.
// Ack и Prack привязаны к конкретному диалогу (форку), для которого
// сработал хук.
type Session interface {
	// Key возвращает ключ диалога
	Key() dialog.Key
	// State возвращает текущее состояние диалога
	State() dialog.State
	// Ack строит ACK для успешного ответа, кэширует его под ключом
	// диалога и возвращает. Повторный вызов перестраивает и замещает
	// кэшированный ACK.
	Ack(opts ...dialog.RequestOpt) (*sip.Request, error)
	// Prack строит PRACK для последнего надежного предварительного ответа
	Prack(opts ...dialog.RequestOpt) (*sip.Request, error)
}

// Delegate содержит хуки уведомлений о семантических событиях вызова.
//
// Все хуки опциональны, каждый вызывается не более одного раза на
// применимое событие. Протокольные аномалии (повторы, нарушение порядка)
// до делегата не доходят — он наблюдает только успешные события.
//
// Хуки выполняются под мьютексом диспетчера. Синхронный вызов из хука
// методов Dispatcher (Cancel, Close, DeliverResponse, счетчики диалогов)
// приведет к взаимоблокировке; такие вызовы нужно выносить в отдельную
// горутину. Session.Ack и Session.Prack безопасны для вызова из хука —
// кэш ACK защищен отдельным мьютексом.
type Delegate struct {
	// OnTrying вызывается на 100 Trying, без диалога
	OnTrying func(res *sip.Response)

	// OnProgress вызывается на предварительный ответ, образовавший или
	// обновивший ранний диалог. Через sess можно построить PRACK.
	OnProgress func(res *sip.Response, sess Session)

	// OnAccept вызывается на первый 2xx каждого форка. Делегат сам решает,
	// чем и как подтверждать; если хук не задан, диспетчер немедленно
	// строит и кэширует ACK без тела (RFC 3261 §13.2.2.4).
	OnAccept func(res *sip.Response, sess Session)

	// OnRedirect вызывается ровно один раз на 3xx
	OnRedirect func(res *sip.Response)

	// OnReject вызывается ровно один раз на 4xx–6xx
	OnReject func(res *sip.Response)
}
