// Package metrics объявляет prometheus-метрики кредитного журнала.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "credit_ledger"

// LedgerOperations считает операции журнала по виду и исходу.
var LedgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "operations_total",
	Help:      "Ledger operations by kind and outcome.",
}, []string{"operation", "outcome"})

// CreditsMoved сумма кредитов, прошедших через журнал, по виду записи.
var CreditsMoved = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "credits_total",
	Help:      "Absolute credit amount recorded, by entry kind.",
}, []string{"kind"})

// PurchaseConfirmations исходы подтверждения покупок.
var PurchaseConfirmations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "purchase",
	Name:      "confirmations_total",
	Help:      "Purchase confirmation outcomes.",
}, []string{"outcome"})

// GatewayLatency время ответа платёжного шлюза.
var GatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "gateway",
	Name:      "request_duration_seconds",
	Help:      "Payment gateway request latency.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "status"})

// SlotDecisions решения аллокатора слотов по пулу.
var SlotDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "slots",
	Name:      "decisions_total",
	Help:      "Slot admission decisions by tier.",
}, []string{"tier", "decision"})

// RefundAttempts попытки компенсирующих возвратов.
var RefundAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "refund",
	Name:      "attempts_total",
	Help:      "Compensating refund attempts by outcome.",
}, []string{"outcome"})

// RefundsPending число возвратов, ожидающих повтора.
var RefundsPending = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "refund",
	Name:      "pending",
	Help:      "Refund journal rows awaiting retry at the last sweep.",
})

// Outcome нормализует ошибку в метку исхода.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
