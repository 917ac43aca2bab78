package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	offlineFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketclient_offline_fallbacks_total",
			Help: "Offline identities minted because the backend was unreachable",
		},
		[]string{"flow"},
	)

	cartSyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketclient_cart_syncs_total",
			Help: "Cart fetches by result",
		},
		[]string{"result"},
	)

	checkoutPayments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketclient_checkout_payments_total",
			Help: "Checkout payment submissions by outcome",
		},
		[]string{"provider", "outcome"},
	)

	operatorLogsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketclient_operator_logs_submitted_total",
			Help: "Operator log submissions by result",
		},
		[]string{"result"},
	)
)

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
