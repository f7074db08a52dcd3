package dialog

import (
	"errors"
	"fmt"

	"github.com/emiago/sipgo/sip"
)

// Key представляет уникальный ключ SIP диалога.
//
// Ключ состоит из трех компонентов согласно RFC 3261 §12:
//   - Call-ID: уникальный идентификатор вызова
//   - LocalTag: локальный тег (from-tag для UAC)
//   - RemoteTag: удаленный тег (to-tag для UAC)
//
// Два ответа дают один и тот же ключ тогда и только тогда, когда они
// относятся к одному форку одного и того же INVITE.
type Key struct {
	// CallID уникальный идентификатор вызова из заголовка Call-ID
	CallID string
	// LocalTag локальный тег данного UA
	LocalTag string
	// RemoteTag удаленный тег партнера
	RemoteTag string
}

// String возвращает строковое представление ключа диалога
func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.CallID, k.LocalTag, k.RemoteTag)
}

var (
	// ErrMissingCallID ответ не содержит заголовок Call-ID
	ErrMissingCallID = errors.New("отсутствует заголовок Call-ID")
	// ErrMissingFromTag в From нет тега
	ErrMissingFromTag = errors.New("отсутствует тег в заголовке From")
	// ErrMissingToTag в To нет тега — ответ не может образовать диалог
	ErrMissingToTag = errors.New("отсутствует тег в заголовке To")
)

// KeyFromResponse вычисляет ключ диалога из ответа для UAC стороны.
//
// Для UAC локальный тег берется из From, удаленный из To. Ключ
// неизменяем после вычисления и используется во всех коллекциях диалогов.
func KeyFromResponse(res *sip.Response) (Key, error) {
	callID := res.CallID()
	if callID == nil {
		return Key{}, ErrMissingCallID
	}

	from := res.From()
	if from == nil {
		return Key{}, ErrMissingFromTag
	}
	localTag, ok := from.Params.Get("tag")
	if !ok || localTag == "" {
		return Key{}, ErrMissingFromTag
	}

	to := res.To()
	if to == nil {
		return Key{}, ErrMissingToTag
	}
	remoteTag, ok := to.Params.Get("tag")
	if !ok || remoteTag == "" {
		return Key{}, ErrMissingToTag
	}

	return Key{
		CallID:    callID.Value(),
		LocalTag:  localTag,
		RemoteTag: remoteTag,
	}, nil
}
