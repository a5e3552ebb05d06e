package metrics

import (
	"log/slog"
	"sync"
	"time"
)

// LatencyObserver follows session phase events and reports, per turn, how
// long capture took and how long the user waited between the end of capture
// and the start of the spoken reply.
type LatencyObserver struct {
	mu     sync.Mutex
	traces map[string]*turnTrace
	log    *slog.Logger
	next   Observer
}

type turnTrace struct {
	captureStart time.Time
	transcript   time.Time
}

// NewLatencyObserver logs each completed turn and forwards an
// EventTurnLatency to next.
func NewLatencyObserver(log *slog.Logger, next Observer) *LatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LatencyObserver{
		traces: make(map[string]*turnTrace),
		log:    log,
		next:   OrNoop(next),
	}
}

func (o *LatencyObserver) RecordEvent(ev MetricsEvent) {
	id := ev.Tags[TagSession]
	if id == "" {
		return
	}
	switch ev.Name {
	case EventSessionClosed:
		o.mu.Lock()
		delete(o.traces, id)
		o.mu.Unlock()
		return
	case EventSessionPhase:
	default:
		return
	}

	o.mu.Lock()
	var done *turnTrace
	switch ev.Tags[TagTo] {
	case "CAPTURING":
		o.traces[id] = &turnTrace{captureStart: ev.Time}
	case "DISPATCHING":
		if t := o.traces[id]; t != nil {
			t.transcript = ev.Time
		}
	case "SPEAKING":
		if t := o.traces[id]; t != nil && !t.transcript.IsZero() {
			done = t
		}
		delete(o.traces, id)
	case "IDLE":
		delete(o.traces, id)
	}
	o.mu.Unlock()

	if done == nil {
		return
	}
	captureMS := durationMs(done.captureStart, done.transcript)
	thinking := ev.Time.Sub(done.transcript)
	o.log.Info("turn_latency",
		"session_id", id,
		"capture_ms", captureMS,
		"thinking_ms", thinking.Milliseconds(),
	)
	o.next.RecordEvent(MetricsEvent{
		Name:  EventTurnLatency,
		Time:  ev.Time,
		Value: thinking.Seconds(),
		Tags:  map[string]string{TagSession: id},
	})
}

func durationMs(a, b time.Time) int64 {
	if a.IsZero() || b.IsZero() {
		return -1
	}
	return b.Sub(a).Milliseconds()
}
