package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caixa_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "caixa_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	PurchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caixa_purchases_total",
			Help: "Total number of purchase attempts by outcome",
		},
		[]string{"status", "account_mode"},
	)

	IdempotentReplaysTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caixa_purchase_idempotent_replays_total",
			Help: "Purchases answered from a previously completed audit record",
		},
	)

	InsufficientFundsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caixa_purchase_insufficient_funds_total",
			Help: "Purchase attempts rejected for insufficient balance",
		},
	)

	BoxesOpenedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caixa_boxes_opened_total",
			Help: "Total number of individual box openings (draws)",
		},
		[]string{"box_id"},
	)

	PrizeValueCreditedCents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caixa_prize_value_credited_cents_total",
			Help: "Total prize value credited to users, in cents",
		},
	)

	PurchaseDebitedCents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caixa_purchase_debited_cents_total",
			Help: "Total value debited for purchases, in cents",
		},
	)

	PurchaseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "caixa_purchase_duration_seconds",
			Help:    "Duration of the purchase transaction",
			Buckets: prometheus.DefBuckets,
		},
	)

	DepositsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caixa_wallet_deposits_total",
			Help: "Total number of wallet deposits",
		},
	)

	WithdrawalsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caixa_wallet_withdrawals_total",
			Help: "Total number of wallet withdrawals",
		},
	)

	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caixa_notifications_sent_total",
			Help: "Total number of notification emails sent",
		},
		[]string{"type", "status"},
	)

	NotificationQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "caixa_notification_queue_length",
			Help: "Current length of the notification queue",
		},
	)

	CatalogCacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caixa_catalog_cache_requests_total",
			Help: "Catalog pool cache lookups by result",
		},
		[]string{"result"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordPurchase(status, accountMode string, duration float64) {
	PurchasesTotal.WithLabelValues(status, accountMode).Inc()
	PurchaseDuration.Observe(duration)
}

func RecordIdempotentReplay() {
	IdempotentReplaysTotal.Inc()
}

func RecordInsufficientFunds() {
	InsufficientFundsTotal.Inc()
}

func RecordBoxOpened(boxID string) {
	BoxesOpenedTotal.WithLabelValues(boxID).Inc()
}

func RecordMoneyFlow(debitedCents, creditedCents int64) {
	PurchaseDebitedCents.Add(float64(debitedCents))
	PrizeValueCreditedCents.Add(float64(creditedCents))
}

func RecordDeposit() {
	DepositsTotal.Inc()
}

func RecordWithdrawal() {
	WithdrawalsTotal.Inc()
}

func RecordNotification(notifType, status string) {
	NotificationsSentTotal.WithLabelValues(notifType, status).Inc()
}

func RecordCatalogCache(result string) {
	CatalogCacheHitsTotal.WithLabelValues(result).Inc()
}
