package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wa_http_requests_total", Help: "HTTP requests"},
		[]string{"route", "status"},
	)
	SendOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wa_send_total", Help: "Provider send outcomes"},
		[]string{"provider", "result"},
	)
	SendLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "wa_send_latency_seconds", Help: "Provider send latency"},
	)
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wa_webhook_events_total", Help: "Delivery status callbacks"},
		[]string{"provider", "status"},
	)
	CallbacksDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wa_callbacks_dropped_total", Help: "Callbacks ignored by the reconciler"},
		[]string{"reason"},
	)
	InboundMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wa_inbound_total", Help: "Inbound message handling"},
		[]string{"action"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(HTTPRequests, SendOutcomes, SendLatency, WebhookEvents, CallbacksDropped, InboundMessages)
}
