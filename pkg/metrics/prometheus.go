package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusObserver maps pipeline events onto Prometheus collectors.
type PrometheusObserver struct {
	registry *prometheus.Registry

	ClassifyTotal    *prometheus.CounterVec
	ClassifyDuration *prometheus.HistogramVec
	BreakerState     *prometheus.GaugeVec
	CommandRequests  *prometheus.CounterVec
	SessionsActive   prometheus.Gauge
	PhaseTransitions *prometheus.CounterVec
	TurnsRejected    *prometheus.CounterVec
	PlaybackCancels  prometheus.Counter
	RemoteErrors     *prometheus.CounterVec
	TurnLatency      prometheus.Histogram
}

// NewPrometheusObserver registers all collectors on a private registry.
func NewPrometheusObserver(namespace string) *PrometheusObserver {
	if namespace == "" {
		namespace = "vira"
	}
	registry := prometheus.NewRegistry()

	o := &PrometheusObserver{
		registry: registry,
		ClassifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classify_total",
			Help:      "Classifier calls by outcome and reason",
		}, []string{TagOutcome, TagReason, TagKind}),
		ClassifyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classify_duration_seconds",
			Help:      "Classifier call latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		}, []string{TagOutcome}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "classifier_breaker_state",
			Help:      "1 for the current breaker state",
		}, []string{TagState}),
		CommandRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_requests_total",
			Help:      "Command channel requests by HTTP status",
		}, []string{TagStatus}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live voice sessions",
		}),
		PhaseTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_phase_transitions_total",
			Help:      "Voice session phase transitions",
		}, []string{TagFrom, TagTo, TagReason}),
		TurnsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_rejected_total",
			Help:      "Start requests rejected by the single-flight guard",
		}, []string{TagState}),
		PlaybackCancels: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_cancels_total",
			Help:      "Playback cancelled by barge-in, stop or teardown",
		}),
		RemoteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_protocol_errors_total",
			Help:      "Malformed or unexpected remote engine messages",
		}, []string{TagReason}),
		TurnLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_seconds",
			Help:      "Time from end of capture to start of the spoken reply",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		o.ClassifyTotal,
		o.ClassifyDuration,
		o.BreakerState,
		o.CommandRequests,
		o.SessionsActive,
		o.PhaseTransitions,
		o.TurnsRejected,
		o.PlaybackCancels,
		o.RemoteErrors,
		o.TurnLatency,
	)
	return o
}

func (o *PrometheusObserver) RecordEvent(ev MetricsEvent) {
	switch ev.Name {
	case EventClassify:
		outcome := ev.Tags[TagOutcome]
		o.ClassifyTotal.WithLabelValues(outcome, ev.Tags[TagReason], ev.Tags[TagKind]).Inc()
		o.ClassifyDuration.WithLabelValues(outcome).Observe(ev.Value)
	case EventBreakerState:
		o.BreakerState.Reset()
		o.BreakerState.WithLabelValues(ev.Tags[TagState]).Set(1)
	case EventCommandRequest:
		o.CommandRequests.WithLabelValues(ev.Tags[TagStatus]).Inc()
	case EventSessionOpened:
		o.SessionsActive.Inc()
	case EventSessionClosed:
		o.SessionsActive.Dec()
	case EventSessionPhase:
		o.PhaseTransitions.WithLabelValues(ev.Tags[TagFrom], ev.Tags[TagTo], ev.Tags[TagReason]).Inc()
	case EventTurnRejected:
		o.TurnsRejected.WithLabelValues(ev.Tags[TagState]).Inc()
	case EventPlaybackCancel:
		o.PlaybackCancels.Inc()
	case EventTurnLatency:
		o.TurnLatency.Observe(ev.Value)
	case EventRemoteProtocol:
		o.RemoteErrors.WithLabelValues(ev.Tags[TagReason]).Inc()
	}
}

// Registry exposes the private registry for gathering in tests.
func (o *PrometheusObserver) Registry() *prometheus.Registry {
	return o.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (o *PrometheusObserver) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}
