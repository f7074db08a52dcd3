// Package dialog реализует UAC сторону SIP диалога (RFC 3261 §12).
//
// Диалог создается из исходящего INVITE и образующего его ответа,
// отслеживает route set, remote target, состояние offer/answer и порядок
// надежных предварительных ответов, строит внутридиалоговые ACK и PRACK.
//
// Пример: подтверждение диалога и построение ACK
//
//	dlg, err := dialog.NewUAC(inviteReq, provisionalRes)
//	if err != nil {
//		return err
//	}
//
//	if err := dlg.Confirm(successRes); err != nil {
//		return err
//	}
//
//	ack, err := dlg.BuildAck(dialog.WithSDP(answer))
//	if err != nil {
//		return err
//	}
package dialog
