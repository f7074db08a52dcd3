package invite

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/emiago/sipgo/sip"
	"github.com/sirupsen/logrus"

	"github.com/akratov/softcall/pkg/dialog"
)

// ErrAlreadyAccepted вызов уже принят, отменять нечего
var ErrAlreadyAccepted = errors.New("вызов уже принят")

// Dispatcher интерпретирует ответы на один исходящий INVITE и ведет
// состояние диалогов по форкам (RFC 3261 §13.2.2).
//
// Dispatcher владеет тремя коллекциями с ключом-идентичностью диалога:
// ранние диалоги, подтвержденные диалоги и кэш построенных ACK. Ответы
// обрабатываются строго по одному: один мьютекс охватывает весь вызов
// DeliverResponse, поэтому перенос диалога из ранних в подтвержденные
// атомарен относительно других ответов. Кэш ACK защищен отдельным
// мьютексом, чтобы делегат мог подтверждать вызов из своего хука или
// позже из другой горутины.
type Dispatcher struct {
	mu sync.Mutex

	req      *sip.Request
	tx       Transaction
	guard    Guard
	delegate Delegate

	// Коллекции диалогов по идентичности
	early     map[dialog.Key]*dialog.Dialog
	confirmed map[dialog.Key]*dialog.Dialog

	// Кэш исходящих ACK по идентичности
	ackMu sync.Mutex
	acks  map[dialog.Key]*sip.Request

	closed bool
	log    *logrus.Entry
}

// Option настраивает диспетчер при создании
type Option func(*Dispatcher)

// WithGuard устанавливает охранник аутентификации
func WithGuard(g Guard) Option {
	return func(d *Dispatcher) {
		d.guard = g
	}
}

// WithLogger устанавливает логгер диспетчера
func WithLogger(log *logrus.Entry) Option {
	return func(d *Dispatcher) {
		d.log = log
	}
}

// NewDispatcher создает диспетчер ответов для исходящего INVITE.
//
// tx — клиентская транзакция этого INVITE, delegate — хуки уведомлений
// (все опциональны).
func NewDispatcher(tx Transaction, delegate Delegate, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		req:       tx.Request(),
		tx:        tx,
		delegate:  delegate,
		early:     make(map[dialog.Key]*dialog.Dialog),
		confirmed: make(map[dialog.Key]*dialog.Dialog),
		acks:      make(map[dialog.Key]*sip.Request),
		log:       logrus.WithField("component", "invite_dispatcher"),
	}

	for _, opt := range opts {
		opt(d)
	}

	if callID := d.req.CallID(); callID != nil {
		d.log = d.log.WithField("call_id", callID.Value())
	}

	return d
}

// DeliverResponse обрабатывает один входящий ответ на INVITE.
//
// Все исходы сообщаются через хуки делегата; ошибка возвращается только
// при нарушенном предусловии со стороны транспорта (отсутствующий или
// недопустимый код ответа). Протокольные аномалии — предварительный ответ
// без удаленного тега, нарушение порядка надежных 1xx, ретрансмиссия 2xx
// без кэшированного ACK — поглощаются молча.
func (d *Dispatcher) DeliverResponse(res *sip.Response) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		droppedTotal.WithLabelValues(dropClosed).Inc()
		d.log.Debug("response after dispatcher close, dropping")
		return nil
	}

	if d.guard != nil && d.guard.Handle(res) {
		guardHandled.Inc()
		return nil
	}

	class, err := classifyStatus(res.StatusCode)
	if err != nil {
		return fmt.Errorf("ошибка классификации ответа: %w", err)
	}
	responsesTotal.WithLabelValues(class.String()).Inc()

	switch class {
	case classTrying:
		if d.delegate.OnTrying != nil {
			d.delegate.OnTrying(res)
		}
		return nil
	case classProvisional:
		return d.handleProvisional(res)
	case classSuccess:
		return d.handleSuccess(res)
	case classRedirect:
		return d.handleFinalFailure(res, true)
	case classFailure:
		return d.handleFinalFailure(res, false)
	}

	return nil
}

// handleProvisional обрабатывает 1xx ответы кроме 100 Trying.
//
// Ответ без удаленного тега диалог образовать не может и отбрасывается.
// Для каждого нового удаленного тега (форка) создается ровно один ранний
// диалог; последующие 1xx того же форка обновляют его.
func (d *Dispatcher) handleProvisional(res *sip.Response) error {
	key, err := dialog.KeyFromResponse(res)
	if err != nil {
		droppedTotal.WithLabelValues(dropNoToTag).Inc()
		d.log.WithError(err).Debug("provisional response cannot establish dialog, dropping")
		return nil
	}

	dlg, ok := d.early[key]
	if !ok {
		dlg, err = dialog.NewUAC(d.req, res)
		if err != nil {
			return fmt.Errorf("ошибка создания раннего диалога: %w", err)
		}
		d.early[key] = dlg
		earlyDialogsActive.Inc()
		d.log.WithField("dialog_id", key.String()).Debug("early dialog created")
	}

	if !dlg.GuardRSeq(res) {
		droppedTotal.WithLabelValues(dropOutOfOrder).Inc()
		return nil
	}

	dlg.TransitionSignaling(res)

	if d.delegate.OnProgress != nil {
		d.delegate.OnProgress(res, &session{disp: d, dlg: dlg})
	}

	return nil
}

// handleSuccess обрабатывает 2xx ответы с учетом форков.
//
// Повтор 2xx для уже подтвержденной идентичности — ретрансмиссия: если ACK
// уже построен, он повторно доставляется напрямую в транспорт; иначе
// ретрансмиссия молча отбрасывается. Делегат о ретрансмиссиях не
// уведомляется.
func (d *Dispatcher) handleSuccess(res *sip.Response) error {
	key, err := dialog.KeyFromResponse(res)
	if err != nil {
		// 2xx обязан нести удаленный тег; его отсутствие — нарушение
		// предусловия транспорта
		return fmt.Errorf("ошибка вычисления идентичности 2xx: %w", err)
	}

	if _, ok := d.confirmed[key]; ok {
		d.redeliverAck(key)
		return nil
	}

	dlg, ok := d.early[key]
	if ok {
		// Продвигаем ранний диалог: перенос между коллекциями атомарен
		// в рамках обработки этого ответа
		delete(d.early, key)
		earlyDialogsActive.Dec()
		if err := dlg.Confirm(res); err != nil {
			return fmt.Errorf("ошибка подтверждения диалога %s: %w", key, err)
		}
	} else {
		// 2xx без предшествующих 1xx — строим подтвержденный диалог сразу
		dlg, err = dialog.NewUAC(d.req, res)
		if err != nil {
			return fmt.Errorf("ошибка создания подтвержденного диалога: %w", err)
		}
	}
	d.confirmed[key] = dlg

	dlg.TransitionSignaling(res)

	sess := &session{disp: d, dlg: dlg}
	if d.delegate.OnAccept != nil {
		d.delegate.OnAccept(res, sess)
		return nil
	}

	// Без хука успешный ответ все равно должен быть подтвержден ровно
	// один раз (RFC 3261 §13.2.2.4) — строим ACK без тела сами
	if _, err := sess.Ack(); err != nil {
		return fmt.Errorf("ошибка построения ACK по умолчанию: %w", err)
	}

	return nil
}

// redeliverAck повторно доставляет кэшированный ACK для ретрансмиссии 2xx
func (d *Dispatcher) redeliverAck(key dialog.Key) {
	d.ackMu.Lock()
	ack, ok := d.acks[key]
	d.ackMu.Unlock()

	if !ok {
		// Вызывающая сторона еще не подтвердила — молча отбрасываем
		droppedTotal.WithLabelValues(dropUnackedRetrans).Inc()
		d.log.WithField("dialog_id", key.String()).Debug("2xx retransmission before ACK was built, dropping")
		return
	}

	if err := d.tx.WriteAck(ack); err != nil {
		d.log.WithError(err).WithField("dialog_id", key.String()).Warn("failed to redeliver cached ACK")
		return
	}
	ackRedeliveries.Inc()
}

// handleFinalFailure обрабатывает 3xx и 4xx–6xx ответы одинаково.
//
// Финальный неуспешный ответ завершает все ранние диалоги по всем форкам,
// независимо от того, по какому форку он пришел. Подтвержденные диалоги не
// затрагиваются — ими после принятия владеет вызывающая сторона.
func (d *Dispatcher) handleFinalFailure(res *sip.Response, redirect bool) error {
	d.disposeEarly()

	if redirect {
		if d.delegate.OnRedirect != nil {
			d.delegate.OnRedirect(res)
		}
		return nil
	}

	if d.delegate.OnReject != nil {
		d.delegate.OnReject(res)
	}
	return nil
}

// disposeEarly завершает все ранние диалоги и очищает коллекцию.
// Вызывается под d.mu.
func (d *Dispatcher) disposeEarly() {
	for key, dlg := range d.early {
		if err := dlg.Close(); err != nil {
			d.log.WithError(err).WithField("dialog_id", key.String()).Warn("failed to close early dialog")
		}
		delete(d.early, key)
		earlyDialogsActive.Dec()
	}
}

// storeAck кэширует построенный ACK под идентичностью диалога.
// Последний построенный ACK замещает предыдущий.
func (d *Dispatcher) storeAck(key dialog.Key, ack *sip.Request) {
	d.ackMu.Lock()
	defer d.ackMu.Unlock()
	d.acks[key] = ack
}

// EarlyDialogCount возвращает текущее количество ранних диалогов (форков)
func (d *Dispatcher) EarlyDialogCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.early)
}

// ConfirmedDialogCount возвращает количество подтвержденных диалогов
func (d *Dispatcher) ConfirmedDialogCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.confirmed)
}

// ConfirmedDialog возвращает подтвержденный диалог по идентичности
func (d *Dispatcher) ConfirmedDialog(key dialog.Key) (*dialog.Dialog, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dlg, ok := d.confirmed[key]
	return dlg, ok
}

// Cancel отменяет исходящий INVITE.
//
// Отмена сериализована с обработкой ответов на одном мьютексе: либо
// CANCEL уходит до обработки 2xx, либо 2xx успевает первым и отмена
// возвращает ErrAlreadyAccepted — гонки подтверждения с отменой нет.
func (d *Dispatcher) Cancel() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.confirmed) > 0 {
		return ErrAlreadyAccepted
	}

	return d.tx.Cancel()
}

// Run читает ответы транзакции до ее завершения или отмены контекста.
//
// Удобная обертка: транзакционный слой и так доставляет ответы по одному,
// DeliverResponse можно вызывать и напрямую.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res, ok := <-d.tx.Responses():
			if !ok {
				return nil
			}
			if err := d.DeliverResponse(res); err != nil {
				return err
			}
		}
	}
}

// Close освобождает диспетчер: завершает оставшиеся ранние диалоги и
// передает остальную очистку транзакции. Подтвержденные диалоги не
// закрываются — ими владеет вызывающая сторона.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	d.disposeEarly()
	d.tx.Terminate()

	return nil
}
