package invite

import (
	"testing"

	"github.com/emiago/sipgo/sip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCancel(t *testing.T) {
	target := sip.Uri{User: "bob", Host: "example.com", Port: 5060}
	req := sip.NewRequest(sip.INVITE, target)

	req.AppendHeader(&sip.ViaHeader{
		ProtocolName:    "SIP",
		ProtocolVersion: "2.0",
		Transport:       "UDP",
		Host:            "10.0.0.1",
		Port:            5060,
		Params:          sip.NewParams().Add("branch", "z9hG4bK-cancel-test"),
	})
	req.AppendHeader(&sip.FromHeader{
		Address: sip.Uri{User: "alice", Host: "example.com"},
		Params:  sip.NewParams().Add("tag", "from-tag-1"),
	})
	req.AppendHeader(&sip.ToHeader{Address: target, Params: sip.NewParams()})

	callID := sip.CallIDHeader("cancel-call@example.com")
	req.AppendHeader(&callID)
	req.AppendHeader(&sip.CSeqHeader{SeqNo: 7, MethodName: sip.INVITE})
	req.AppendHeader(sip.NewHeader("Route", "<sip:proxy.example.com;lr>"))

	cancel := buildCancel(req)

	assert.Equal(t, sip.CANCEL, cancel.Method, "метод должен быть CANCEL")
	assert.Equal(t, target, cancel.Recipient, "Request-URI должен совпадать с INVITE")

	// Via с той же branch, что и у отменяемого запроса
	via := cancel.Via()
	require.NotNil(t, via, "Via должен быть скопирован")
	branch, _ := via.Params.Get("branch")
	assert.Equal(t, "z9hG4bK-cancel-test", branch)

	// Номер CSeq сохраняется, меняется только метод
	cseq := cancel.CSeq()
	require.NotNil(t, cseq)
	assert.Equal(t, uint32(7), cseq.SeqNo)
	assert.Equal(t, sip.CANCEL, cseq.MethodName)

	require.NotNil(t, cancel.From())
	fromTag, _ := cancel.From().Params.Get("tag")
	assert.Equal(t, "from-tag-1", fromTag)

	require.NotNil(t, cancel.CallID())
	assert.Equal(t, "cancel-call@example.com", cancel.CallID().Value())

	assert.NotNil(t, cancel.GetHeader("Route"), "Route должен быть скопирован")

	// Исходный запрос не изменился
	assert.Equal(t, sip.INVITE, req.CSeq().MethodName)
}
