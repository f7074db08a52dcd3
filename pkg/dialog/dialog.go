package dialog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/emiago/sipgo/sip"
	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotEstablishing ответ с таким кодом не может образовать диалог
	ErrNotEstablishing = errors.New("ответ не образует диалог")
	// ErrNotEarly операция допустима только для раннего диалога
	ErrNotEarly = errors.New("диалог не в состоянии early")
	// ErrNotConfirmed операция допустима только для подтвержденного диалога
	ErrNotConfirmed = errors.New("диалог не в состоянии confirmed")
	// ErrNoReliableResponse не было надежного предварительного ответа,
	// PRACK строить не из чего
	ErrNoReliableResponse = errors.New("нет надежного предварительного ответа")
)

// Dialog представляет UAC сторону SIP диалога, образованного ответом
// на исходящий INVITE.
//
// Dialog управляет:
//   - Состоянием диалога (early -> confirmed -> terminated)
//   - Route set и remote target для маршрутизации внутридиалоговых запросов
//   - Порядком надежных предварительных ответов (RFC 3262)
//   - Построением ACK и PRACK запросов
type Dialog struct {
	mu  sync.RWMutex
	key Key

	// Исходный INVITE и его CSeq
	inviteReq  *sip.Request
	inviteCSeq uint32

	// Маршрутизация
	remoteTarget sip.Uri
	routeSet     []sip.RouteHeader

	// Последовательности
	localSeq uint32
	lastRSeq uint32

	// Offer/answer состояние
	signaling SignalingState
	remoteSDP []byte

	// FSM для управления состояниями
	stateMachine *fsm.FSM

	// Обработчик изменения состояния
	stateHandler StateChangeHandler

	closed    bool
	createdAt time.Time
	log       *logrus.Entry
}

// NewUAC создает диалог из исходящего INVITE и первого подходящего ответа.
//
// Предварительный ответ (1xx) дает ранний диалог, успешный (2xx) — сразу
// подтвержденный (случай, когда 2xx пришел без предшествующих 1xx).
// Ответы остальных классов диалог не образуют.
func NewUAC(req *sip.Request, res *sip.Response) (*Dialog, error) {
	key, err := KeyFromResponse(res)
	if err != nil {
		return nil, fmt.Errorf("ошибка вычисления ключа диалога: %w", err)
	}

	var initial State
	switch {
	case res.StatusCode >= 101 && res.StatusCode < 200:
		initial = StateEarly
	case res.StatusCode >= 200 && res.StatusCode < 300:
		initial = StateConfirmed
	default:
		return nil, fmt.Errorf("%w: код %d", ErrNotEstablishing, res.StatusCode)
	}

	cseq := req.CSeq()
	if cseq == nil {
		return nil, fmt.Errorf("в INVITE отсутствует заголовок CSeq")
	}

	d := &Dialog{
		key:        key,
		inviteReq:  req,
		inviteCSeq: cseq.SeqNo,
		localSeq:   cseq.SeqNo,
		signaling:  SignalingStable,
		createdAt:  time.Now(),
		log: logrus.WithFields(logrus.Fields{
			"call_id":   key.CallID,
			"dialog_id": key.String(),
		}),
	}

	// INVITE с телом означает, что offer уже отправлен нами
	if len(req.Body()) > 0 {
		d.signaling = SignalingHaveLocalOffer
	}

	// Remote target из Contact ответа, иначе из Request-URI INVITE
	if uri := extractContactURI(res); uri != nil {
		d.remoteTarget = *uri
	} else {
		d.remoteTarget = req.Recipient
	}

	// Route set можно собрать уже из предварительного ответа (RFC 3261 §12.1.2),
	// при подтверждении он будет пересчитан из 2xx
	d.routeSet = extractRecordRoutes(res)

	d.initStateMachine(initial)

	return d, nil
}

// initStateMachine инициализирует конечный автомат состояний
func (d *Dialog) initStateMachine(initial State) {
	d.stateMachine = fsm.NewFSM(
		string(initial),
		fsm.Events{
			// Подтверждение раннего диалога успешным ответом
			{Name: eventConfirm, Src: []string{string(StateEarly)}, Dst: string(StateConfirmed)},
			// Завершение диалога из любого состояния
			{Name: eventTerminate, Src: []string{string(StateEarly), string(StateConfirmed)}, Dst: string(StateTerminated)},
		},
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				d.notifyStateChange(State(e.Dst))
			},
		},
	)
}

// notifyStateChange уведомляет обработчик об изменении состояния
func (d *Dialog) notifyStateChange(state State) {
	d.mu.RLock()
	handler := d.stateHandler
	d.mu.RUnlock()

	if handler != nil {
		handler(state)
	}
}

// Key возвращает ключ диалога
func (d *Dialog) Key() Key {
	return d.key
}

// State возвращает текущее состояние диалога
func (d *Dialog) State() State {
	return State(d.stateMachine.Current())
}

// LocalTag возвращает локальный тег
func (d *Dialog) LocalTag() string {
	return d.key.LocalTag
}

// RemoteTag возвращает удаленный тег
func (d *Dialog) RemoteTag() string {
	return d.key.RemoteTag
}

// RouteSet возвращает текущий набор маршрутов
func (d *Dialog) RouteSet() []sip.RouteHeader {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.routeSet
}

// RemoteTarget возвращает удаленный Contact URI
func (d *Dialog) RemoteTarget() sip.Uri {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.remoteTarget
}

// CreatedAt возвращает время создания диалога
func (d *Dialog) CreatedAt() time.Time {
	return d.createdAt
}

// OnStateChange устанавливает обработчик изменения состояния
func (d *Dialog) OnStateChange(handler StateChangeHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stateHandler = handler
}

// GuardRSeq применяет контроль порядка надежных предварительных ответов
// (RFC 3262 §4).
//
// Ответ без RSeq не является надежным и проходит без изменения счетчика.
// Ответ с RSeq принимается только если номер строго больше последнего
// принятого; тогда номер запоминается. Нарушение порядка ничего в диалоге
// не меняет, вызывающая сторона должна молча отбросить ответ.
func (d *Dialog) GuardRSeq(res *sip.Response) bool {
	rseqHdr := res.GetHeader("RSeq")
	if rseqHdr == nil {
		return true
	}

	rseq, err := strconv.ParseUint(rseqHdr.Value(), 10, 32)
	if err != nil {
		d.log.WithError(err).Debug("malformed RSeq header, dropping response")
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if uint32(rseq) <= d.lastRSeq {
		d.log.WithFields(logrus.Fields{
			"rseq":      rseq,
			"last_rseq": d.lastRSeq,
		}).Debug("out of order reliable provisional response")
		return false
	}

	d.lastRSeq = uint32(rseq)
	return true
}

// TransitionSignaling обновляет offer/answer состояние диалога из ответа
func (d *Dialog) TransitionSignaling(res *sip.Response) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transitionSignaling(res)
}

// Confirm подтверждает ранний диалог успешным ответом.
//
// Route set пересчитывается из Record-Route 2xx ответа, remote target
// обновляется из его Contact.
func (d *Dialog) Confirm(res *sip.Response) error {
	if err := d.stateMachine.Event(context.Background(), eventConfirm); err != nil {
		return fmt.Errorf("%w: %s", ErrNotEarly, d.stateMachine.Current())
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.routeSet = extractRecordRoutes(res)
	if uri := extractContactURI(res); uri != nil {
		d.remoteTarget = *uri
	}

	return nil
}

// BuildAck строит ACK для успешного ответа в рамках диалога.
//
// Согласно RFC 3261 §13.2.2.4 ACK на 2xx образует отдельную транзакцию:
// CSeq берется от исходного INVITE, Request-URI — remote target диалога,
// route set применяется как есть. Тело и дополнительные заголовки задаются
// через opts.
func (d *Dialog) BuildAck(opts ...RequestOpt) (*sip.Request, error) {
	if d.State() != StateConfirmed {
		return nil, ErrNotConfirmed
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	req := d.makeRequest(sip.ACK, d.inviteCSeq)

	for _, opt := range opts {
		opt(req)
	}

	return req, nil
}

// BuildPrack строит PRACK для последнего принятого надежного
// предварительного ответа (RFC 3262 §4).
func (d *Dialog) BuildPrack(opts ...RequestOpt) (*sip.Request, error) {
	if d.State() != StateEarly {
		return nil, ErrNotEarly
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lastRSeq == 0 {
		return nil, ErrNoReliableResponse
	}

	d.localSeq++
	req := d.makeRequest(sip.PRACK, d.localSeq)

	// RAck: RSeq подтверждаемого ответа + CSeq исходного INVITE
	rack := fmt.Sprintf("%d %d %s", d.lastRSeq, d.inviteCSeq, sip.INVITE)
	req.AppendHeader(sip.NewHeader("RAck", rack))

	for _, opt := range opts {
		opt(req)
	}

	return req, nil
}

// makeRequest строит внутридиалоговый запрос. Вызывается под d.mu.
// Via не добавляется — его формирует клиентский транспорт при отправке.
func (d *Dialog) makeRequest(method sip.RequestMethod, seqNo uint32) *sip.Request {
	req := sip.NewRequest(method, d.remoteTarget)

	// From с локальным тегом переносим из INVITE
	if from := d.inviteReq.From(); from != nil {
		req.AppendHeader(sip.HeaderClone(from))
	}

	// To с удаленным тегом диалога
	if to := d.inviteReq.To(); to != nil {
		toHeader := sip.ToHeader{
			DisplayName: to.DisplayName,
			Address:     to.Address,
			Params:      sip.NewParams().Add("tag", d.key.RemoteTag),
		}
		req.AppendHeader(&toHeader)
	}

	if callID := d.inviteReq.CallID(); callID != nil {
		req.AppendHeader(sip.HeaderClone(callID))
	}

	req.AppendHeader(&sip.CSeqHeader{SeqNo: seqNo, MethodName: method})

	maxForwards := sip.MaxForwardsHeader(70)
	req.AppendHeader(&maxForwards)

	if contact := d.inviteReq.GetHeader("Contact"); contact != nil {
		req.AppendHeader(sip.HeaderClone(contact))
	}

	for _, route := range d.routeSet {
		r := route
		req.AppendHeader(&r)
	}

	return req
}

// Close завершает диалог и освобождает ресурсы. Повторные вызовы
// игнорируются, обработчик состояния срабатывает ровно один раз.
func (d *Dialog) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.signaling = SignalingClosed
	d.mu.Unlock()

	if err := d.stateMachine.Event(context.Background(), eventTerminate); err != nil {
		// Диалог уже был в terminated
		return nil
	}

	return nil
}
