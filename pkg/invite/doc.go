// Package invite реализует UAC сторону обработки ответов на исходящий
// INVITE согласно RFC 3261 §13.2.2 и RFC 3262.
//
// Центральный объект — Dispatcher. Он получает ответы от клиентской
// транзакции строго по одному, классифицирует код ответа в закрытое
// множество классов (100, остальные 1xx, 2xx, 3xx, 4xx–6xx) и ведет
// состояние диалогов по форкам: несколько конечных точек могут отвечать
// на одно приглашение, форки различаются удаленным тегом.
//
// Семантические события вызова доставляются делегату ровно по одному разу:
//
//	disp := invite.NewDispatcher(tx, invite.Delegate{
//		OnProgress: func(res *sip.Response, sess invite.Session) {
//			// ранний диалог, при необходимости sess.Prack()
//		},
//		OnAccept: func(res *sip.Response, sess invite.Session) {
//			ack, _ := sess.Ack()
//			// отправить ack клиентом
//		},
//		OnReject: func(res *sip.Response) {
//			// вызов отклонен
//		},
//	})
//	go disp.Run(ctx)
//
// Ретрансмиссии 2xx повторно доставляют кэшированный ACK напрямую в
// транспорт; финальный неуспешный ответ завершает все ранние диалоги.
// Аномалии протокола (1xx без тега, нарушение порядка надежных 1xx)
// поглощаются внутри и до делегата не доходят.
package invite
