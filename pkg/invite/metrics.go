package invite

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики диспетчера ответов на INVITE
var (
	responsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "softcall",
		Subsystem: "invite",
		Name:      "responses_total",
		Help:      "Количество обработанных ответов по классам",
	}, []string{"class"})

	droppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "softcall",
		Subsystem: "invite",
		Name:      "dropped_responses_total",
		Help:      "Количество молча отброшенных ответов по причинам",
	}, []string{"reason"})

	ackRedeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "softcall",
		Subsystem: "invite",
		Name:      "ack_redeliveries_total",
		Help:      "Количество повторных доставок кэшированного ACK на ретрансмиссии 2xx",
	})

	guardHandled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "softcall",
		Subsystem: "invite",
		Name:      "auth_challenges_total",
		Help:      "Количество ответов, обработанных охранником аутентификации",
	})

	earlyDialogsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "softcall",
		Subsystem: "invite",
		Name:      "early_dialogs_active",
		Help:      "Текущее количество ранних диалогов (форков)",
	})
)

// Причины отбрасывания ответов для метрики dropped_responses_total
const (
	dropNoToTag        = "no_to_tag"
	dropOutOfOrder     = "out_of_order_rseq"
	dropUnackedRetrans = "unacked_retransmission"
	dropClosed         = "dispatcher_closed"
)
