package metrics

import "github.com/prometheus/client_golang/prometheus"

// BotMetrics exposes counters/histograms for the event pipeline.
type BotMetrics struct {
	eventsTotal       *prometheus.CounterVec
	sendsTotal        *prometheus.CounterVec
	directoryRequests *prometheus.CounterVec
	eventDuration     *prometheus.HistogramVec
}

func NewBotMetrics(reg prometheus.Registerer) *BotMetrics {
	m := &BotMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchbot",
			Name:      "events_total",
			Help:      "Total inbound events by type and final status",
		}, []string{"type", "status"}),
		sendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchbot",
			Name:      "sends_total",
			Help:      "Total outbound message sends",
		}, []string{"status"}),
		directoryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchbot",
			Name:      "directory_requests_total",
			Help:      "Total directory API calls by method",
		}, []string{"method", "status"}),
		eventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "matchbot",
			Name:      "event_duration_seconds",
			Help:      "End-to-end event handling duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.eventsTotal, m.sendsTotal, m.directoryRequests, m.eventDuration)
	return m
}

func (m *BotMetrics) ObserveEvent(eventType, status string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(eventType, status).Inc()
}

func (m *BotMetrics) ObserveSend(status string) {
	if m == nil {
		return
	}
	m.sendsTotal.WithLabelValues(status).Inc()
}

func (m *BotMetrics) ObserveDirectoryRequest(method, status string) {
	if m == nil {
		return
	}
	m.directoryRequests.WithLabelValues(method, status).Inc()
}

func (m *BotMetrics) ObserveEventDuration(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.eventDuration.WithLabelValues(eventType).Observe(seconds)
}
