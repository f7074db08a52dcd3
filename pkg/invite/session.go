package invite

import (
	"github.com/emiago/sipgo/sip"

	"github.com/akratov/softcall/pkg/dialog"
)

// session реализует Session поверх диалога и кэша ACK диспетчера
type session struct {
	disp *Dispatcher
	dlg  *dialog.Dialog
}

func (s *session) Key() dialog.Key {
	return s.dlg.Key()
}

func (s *session) State() dialog.State {
	return s.dlg.State()
}

// Ack строит ACK через диалог и кэширует его под ключом диалога.
// Кэш защищен отдельным мьютексом, поэтому подтверждать можно как из
// хука OnAccept, так и позже из другой горутины.
func (s *session) Ack(opts ...dialog.RequestOpt) (*sip.Request, error) {
	ack, err := s.dlg.BuildAck(opts...)
	if err != nil {
		return nil, err
	}

	s.disp.storeAck(s.dlg.Key(), ack)
	return ack, nil
}

func (s *session) Prack(opts ...dialog.RequestOpt) (*sip.Request, error) {
	return s.dlg.BuildPrack(opts...)
}
