package dialog

import (
	"github.com/emiago/sipgo/sip"
)

// RequestOpt определяет функцию для настройки исходящего запроса диалога.
//
// Используется в BuildAck и BuildPrack для добавления заголовков и тела.
type RequestOpt func(req *sip.Request)

// WithHeader добавляет произвольный заголовок к запросу
func WithHeader(h sip.Header) RequestOpt {
	return func(req *sip.Request) {
		req.AppendHeader(h)
	}
}

// WithSDP задает тело запроса с типом содержимого по умолчанию
// (application/sdp). Строка трактуется как готовое описание сессии.
func WithSDP(sdp string) RequestOpt {
	return func(req *sip.Request) {
		ct := sip.ContentTypeHeader(SDPContentType)
		req.AppendHeader(&ct)
		req.SetBody([]byte(sdp))
	}
}

// WithBody задает тело запроса со своим типом содержимого.
// Тип содержимого переносится в заголовок Content-Type без изменений.
func WithBody(body Body) RequestOpt {
	return func(req *sip.Request) {
		ct := sip.ContentTypeHeader(body.ContentType())
		req.AppendHeader(&ct)
		req.SetBody(body.Content())
	}
}
