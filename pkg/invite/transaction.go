package invite

import (
	"context"
	"fmt"

	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"
)

// Transaction представляет клиентскую INVITE транзакцию для диспетчера.
//
// Диспетчер не владеет таймерами и ретрансмиссиями — это забота
// транзакционного слоя. От транзакции нужны только доставка ответов,
// отмена и прямая повторная отправка ACK в транспорт для ретрансмиссий
// 2xx (обмен с точки зрения транзакции уже завершен, обычный путь
// запроса не используется).
type Transaction interface {
	// Request возвращает исходный INVITE запрос
	Request() *sip.Request
	// Responses возвращает канал входящих ответов
	Responses() <-chan *sip.Response
	// Cancel отменяет транзакцию (CANCEL)
	Cancel() error
	// Terminate завершает транзакцию и освобождает ее ресурсы
	Terminate()
	// WriteAck повторно доставляет кэшированный ACK напрямую в транспорт
	WriteAck(ack *sip.Request) error
}

// ClientTx адаптирует sipgo клиентскую транзакцию к интерфейсу Transaction
type ClientTx struct {
	req    *sip.Request
	tx     sip.ClientTransaction
	client *sipgo.Client
}

// NewClientTx создает адаптер поверх sipgo транзакции.
// client используется для прямой отправки ACK мимо транзакции.
func NewClientTx(client *sipgo.Client, req *sip.Request, tx sip.ClientTransaction) *ClientTx {
	return &ClientTx{
		req:    req,
		tx:     tx,
		client: client,
	}
}

// Request возвращает исходный INVITE запрос
func (c *ClientTx) Request() *sip.Request {
	return c.req
}

// Responses возвращает канал входящих ответов транзакции
func (c *ClientTx) Responses() <-chan *sip.Response {
	return c.tx.Responses()
}

// Cancel отменяет транзакцию: строит CANCEL по исходному INVITE
// (RFC 3261 §9.1) и отправляет его отдельной транзакцией.
func (c *ClientTx) Cancel() error {
	cancel := buildCancel(c.req)

	if _, err := c.client.TransactionRequest(context.Background(), cancel); err != nil {
		return fmt.Errorf("ошибка отправки CANCEL: %w", err)
	}

	return nil
}

// buildCancel строит CANCEL для исходящего запроса. Согласно RFC 3261 §9.1
// CANCEL повторяет Request-URI, Via, From, To, Call-ID и номер CSeq
// отменяемого запроса, меняется только метод в CSeq.
func buildCancel(req *sip.Request) *sip.Request {
	cancel := sip.NewRequest(sip.CANCEL, req.Recipient)
	cancel.SipVersion = req.SipVersion

	if via := req.Via(); via != nil {
		cancel.AppendHeader(via.Clone())
	}

	sip.CopyHeaders("Route", req, cancel)

	maxForwards := sip.MaxForwardsHeader(70)
	cancel.AppendHeader(&maxForwards)

	if h := req.From(); h != nil {
		cancel.AppendHeader(sip.HeaderClone(h))
	}
	if h := req.To(); h != nil {
		cancel.AppendHeader(sip.HeaderClone(h))
	}
	if h := req.CallID(); h != nil {
		cancel.AppendHeader(sip.HeaderClone(h))
	}
	if h := req.CSeq(); h != nil {
		cseq := sip.HeaderClone(h).(*sip.CSeqHeader)
		cseq.MethodName = sip.CANCEL
		cancel.AppendHeader(cseq)
	}

	cancel.SetTransport(req.Transport())
	cancel.SetSource(req.Source())
	cancel.SetDestination(req.Destination())

	return cancel
}

// Terminate завершает транзакцию
func (c *ClientTx) Terminate() {
	c.tx.Terminate()
}

// WriteAck отправляет ACK напрямую через клиентский транспорт
func (c *ClientTx) WriteAck(ack *sip.Request) error {
	return c.client.WriteRequest(ack, sipgo.ClientRequestAddVia)
}
