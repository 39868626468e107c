package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookEventsTotal counts Stripe webhook events by type and outcome.
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "racephotos",
		Subsystem: "payments",
		Name:      "webhook_events_total",
		Help:      "Stripe webhook events by event type and outcome.",
	}, []string{"event_type", "outcome"})

	// WebhookDuration tracks webhook reconciliation latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "racephotos",
		Subsystem: "payments",
		Name:      "webhook_duration_seconds",
		Help:      "Stripe webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	CheckoutSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "racephotos",
		Subsystem: "payments",
		Name:      "checkout_sessions_total",
		Help:      "Checkout session attempts by outcome.",
	}, []string{"outcome"})

	// PhotosUnlockedTotal counts photos unlocked by completed payments.
	PhotosUnlockedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "racephotos",
		Subsystem: "access",
		Name:      "photos_unlocked_total",
		Help:      "Photos unlocked by completed payments.",
	})

	DownloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "racephotos",
		Subsystem: "access",
		Name:      "downloads_total",
		Help:      "Photo downloads by kind (single, zip) and outcome.",
	}, []string{"kind", "outcome"})

	EmailDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "racephotos",
		Subsystem: "email",
		Name:      "deliveries_total",
		Help:      "Delivery emails by outcome.",
	}, []string{"outcome"})

	URLRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "racephotos",
		Subsystem: "storage",
		Name:      "signed_url_refreshes_total",
		Help:      "Signed URL refreshes by outcome.",
	}, []string{"outcome"})
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)
