package invite

import (
	"github.com/emiago/sipgo/sip"
	"github.com/icholy/digest"
	"github.com/sirupsen/logrus"
)

// Guard — охранник аутентификации, применяемый к ответу до классификации.
//
// Если Handle возвращает true, ответ считается обработанным охранником
// (например, запрос перевыставлен с учетными данными) и диспетчеризация
// на этом останавливается.
type Guard interface {
	Handle(res *sip.Response) bool
}

// RequestSender отправляет перевыставленный запрос. Обычно это обертка
// над sipgo клиентом, создающая новую клиентскую транзакцию.
type RequestSender func(req *sip.Request) error

// DigestGuard отвечает на 401/407 повторной отправкой INVITE с digest
// учетными данными (RFC 3261 §22). Вторая подряд попытка не делается:
// повторный 401/407 уходит делегату как обычный отказ.
type DigestGuard struct {
	req      *sip.Request
	username string
	password string
	send     RequestSender

	attempted bool
	log       *logrus.Entry
}

// NewDigestGuard создает охранник для исходного INVITE запроса
func NewDigestGuard(req *sip.Request, username, password string, send RequestSender) *DigestGuard {
	return &DigestGuard{
		req:      req,
		username: username,
		password: password,
		send:     send,
		log:      logrus.WithField("component", "digest_guard"),
	}
}

// Handle обрабатывает вызов аутентификации.
//
// Возвращает true если запрос был перевыставлен и ответ дальше
// обрабатывать не нужно.
func (g *DigestGuard) Handle(res *sip.Response) bool {
	var challengeHeader, authHeader string
	switch res.StatusCode {
	case sip.StatusUnauthorized:
		challengeHeader, authHeader = "WWW-Authenticate", "Authorization"
	case sip.StatusProxyAuthRequired:
		challengeHeader, authHeader = "Proxy-Authenticate", "Proxy-Authorization"
	default:
		return false
	}

	if g.attempted {
		g.log.Debug("repeated authentication challenge, giving up")
		return false
	}

	hdr := res.GetHeader(challengeHeader)
	if hdr == nil {
		g.log.Warn("challenge response without challenge header")
		return false
	}

	chal, err := digest.ParseChallenge(hdr.Value())
	if err != nil {
		g.log.WithError(err).Warn("failed to parse digest challenge")
		return false
	}

	cred, err := digest.Digest(chal, digest.Options{
		Method:   string(sip.INVITE),
		URI:      g.req.Recipient.String(),
		Username: g.username,
		Password: g.password,
	})
	if err != nil {
		g.log.WithError(err).Warn("failed to compute digest credentials")
		return false
	}

	// Перевыставляем INVITE: новый CSeq, прежние заголовки диалога
	retry := g.req.Clone()
	if cseq := retry.CSeq(); cseq != nil {
		cseq.SeqNo++
	}
	retry.AppendHeader(sip.NewHeader(authHeader, cred.String()))

	if err := g.send(retry); err != nil {
		g.log.WithError(err).Error("failed to resend authenticated request")
		return false
	}

	g.attempted = true
	return true
}
