package dialog_test

import (
	"testing"

	"github.com/emiago/sipgo/sip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akratov/softcall/pkg/dialog"
)

// TestKeyFromResponse проверяет детерминированное вычисление ключа диалога
func TestKeyFromResponse(t *testing.T) {
	req := makeInvite(t)

	res1 := makeResponse(t, req, 180, "Ringing", "remote-a")
	key1, err := dialog.KeyFromResponse(res1)
	require.NoError(t, err, "Should compute key from tagged response")

	assert.Equal(t, "call-123@example.com", key1.CallID)
	assert.Equal(t, "from-tag-1", key1.LocalTag)
	assert.Equal(t, "remote-a", key1.RemoteTag)

	// Повторный ответ того же форка дает тот же ключ
	res2 := makeResponse(t, req, 183, "Session Progress", "remote-a")
	key2, err := dialog.KeyFromResponse(res2)
	require.NoError(t, err)
	assert.Equal(t, key1, key2, "Same fork must produce same key")

	// Другой удаленный тег — другой форк, другой ключ
	res3 := makeResponse(t, req, 180, "Ringing", "remote-b")
	key3, err := dialog.KeyFromResponse(res3)
	require.NoError(t, err)
	assert.NotEqual(t, key1, key3, "Distinct remote tags must produce distinct keys")
}

// TestKeyFromResponseWithoutToTag проверяет, что ответ без удаленного тега
// ключ не образует
func TestKeyFromResponseWithoutToTag(t *testing.T) {
	req := makeInvite(t)
	res := makeResponse(t, req, 180, "Ringing", "")

	_, err := dialog.KeyFromResponse(res)
	require.Error(t, err)
	assert.ErrorIs(t, err, dialog.ErrMissingToTag)
}

// TestKeyString проверяет строковое представление ключа
func TestKeyString(t *testing.T) {
	key := dialog.Key{CallID: "abc", LocalTag: "l", RemoteTag: "r"}
	assert.Equal(t, "abc:l:r", key.String())
}

// makeInvite строит исходящий INVITE для тестов
func makeInvite(t *testing.T) *sip.Request {
	t.Helper()

	var target sip.Uri
	require.NoError(t, sip.ParseUri("sip:bob@example.com:5060", &target))

	req := sip.NewRequest(sip.INVITE, target)

	var fromURI sip.Uri
	require.NoError(t, sip.ParseUri("sip:alice@example.com", &fromURI))
	req.AppendHeader(&sip.FromHeader{
		Address: fromURI,
		Params:  sip.NewParams().Add("tag", "from-tag-1"),
	})
	req.AppendHeader(&sip.ToHeader{Address: target, Params: sip.NewParams()})

	callID := sip.CallIDHeader("call-123@example.com")
	req.AppendHeader(&callID)

	req.AppendHeader(&sip.CSeqHeader{SeqNo: 1, MethodName: sip.INVITE})

	maxForwards := sip.MaxForwardsHeader(70)
	req.AppendHeader(&maxForwards)

	req.AppendHeader(sip.NewHeader("Contact", "<sip:alice@10.0.0.1:5060>"))

	return req
}

// makeResponse строит ответ на запрос с заданным удаленным тегом в To.
// Пустой toTag означает ответ без тега: автоматический тег,
// проставленный sipgo, убирается.
func makeResponse(t *testing.T, req *sip.Request, code int, reason, toTag string) *sip.Response {
	t.Helper()

	res := sip.NewResponseFromRequest(req, code, reason, nil)
	if toTag != "" {
		res.To().Params = sip.NewParams().Add("tag", toTag)
	} else {
		res.To().Params = sip.NewParams()
	}
	return res
}
