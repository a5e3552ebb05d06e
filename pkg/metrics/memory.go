package metrics

import "sync"

// MemoryObserver keeps every event in memory. Used by tests and the debug endpoint.
type MemoryObserver struct {
	mu     sync.Mutex
	Events []MetricsEvent
}

func NewMemoryObserver() *MemoryObserver {
	return &MemoryObserver{}
}

func (m *MemoryObserver) RecordEvent(ev MetricsEvent) {
	m.mu.Lock()
	m.Events = append(m.Events, ev)
	m.mu.Unlock()
}

// Named returns a copy of the events recorded under name.
func (m *MemoryObserver) Named(name string) []MetricsEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MetricsEvent
	for _, ev := range m.Events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// Count returns how many events named name carry every tag in match.
func (m *MemoryObserver) Count(name string, match map[string]string) int {
	n := 0
	for _, ev := range m.Named(name) {
		ok := true
		for k, v := range match {
			if ev.Tags[k] != v {
				ok = false
				break
			}
		}
		if ok {
			n++
		}
	}
	return n
}
