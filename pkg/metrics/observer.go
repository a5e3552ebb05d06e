package metrics

import "time"

// Event names emitted by the pipeline.
const (
	EventClassify       = "classify"
	EventBreakerState   = "classifier_breaker_state"
	EventCommandRequest = "command_request"
	EventSessionOpened  = "session_opened"
	EventSessionClosed  = "session_closed"
	EventSessionPhase   = "session_phase"
	EventTurnRejected   = "turn_rejected"
	EventPlaybackCancel = "playback_cancel"
	EventRemoteProtocol = "remote_protocol_error"
	EventTurnLatency    = "turn_latency"
)

// Common tag keys.
const (
	TagOutcome = "outcome"
	TagReason  = "reason"
	TagKind    = "kind"
	TagFrom    = "from"
	TagTo      = "to"
	TagStatus  = "status"
	TagState   = "state"
	TagSession = "session_id"
)

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// NewEvent stamps an event with the current time.
func NewEvent(name string, value float64, tags map[string]string) MetricsEvent {
	return MetricsEvent{Name: name, Time: time.Now(), Value: value, Tags: tags}
}

// Multi fans an event out to several observers.
type Multi []Observer

func (m Multi) RecordEvent(ev MetricsEvent) {
	for _, o := range m {
		if o != nil {
			o.RecordEvent(ev)
		}
	}
}

// OrNoop returns obs, or a NoopObserver when obs is nil.
func OrNoop(obs Observer) Observer {
	if obs == nil {
		return NoopObserver{}
	}
	return obs
}
