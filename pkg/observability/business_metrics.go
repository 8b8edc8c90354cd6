package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	purchaseIntentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_purchase_intents_total",
		Help: "Total number of slot purchase intents",
	}, []string{
		"slot_type", // admin, member
		"status",    // created, gateway_error, rejected
	})

	reconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_reconciliations_total",
		Help: "Total reconciliation attempts by trigger and outcome",
	}, []string{
		"source",  // webhook, verify
		"outcome", // completed, already_processed, ignored, or an error code
	})

	reconciliationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billing_reconciliation_duration_seconds",
		Help:    "Time spent in a reconciliation attempt, gateway calls included",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"source"})

	slotsCreditedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_slots_credited_total",
		Help: "Total slots credited to companies",
	}, []string{"slot_type"})

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_notifications_total",
		Help: "Payment receipt notifications by channel and status",
	}, []string{
		"channel", // email, push
		"status",  // sent, failed
	})

	notificationBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "billing_notification_backlog",
		Help: "Paid records found without a delivered notification on the last sweep",
	})
)

// RecordPurchaseIntent counts a purchase intent attempt
func RecordPurchaseIntent(slotType, status string) {
	purchaseIntentsTotal.WithLabelValues(slotType, status).Inc()
}

// RecordReconciliation counts a reconciliation attempt and observes its duration
func RecordReconciliation(source, outcome string, durationSeconds float64) {
	reconciliationsTotal.WithLabelValues(source, outcome).Inc()
	reconciliationDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordSlotsCredited counts slots granted by a completed payment
func RecordSlotsCredited(slotType string, quantity int) {
	slotsCreditedTotal.WithLabelValues(slotType).Add(float64(quantity))
}

// RecordNotification counts a notification attempt on one channel
func RecordNotification(channel, status string) {
	notificationsTotal.WithLabelValues(channel, status).Inc()
}

// SetNotificationBacklog publishes the size of the last sweep batch
func SetNotificationBacklog(n int) {
	notificationBacklog.Set(float64(n))
}
