package session

import (
	"sync"
	"time"

	"github.com/harunnryd/vira/pkg/intent"
)

// Snapshot is what the UI renders: phase, last transcript and last reply.
type Snapshot struct {
	SessionID  string         `json:"sessionId"`
	Seq        uint64         `json:"seq"`
	Phase      State          `json:"phase"`
	Transcript string         `json:"transcript"`
	Reply      string         `json:"reply"`
	Status     string         `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	Intent     *intent.Intent `json:"intent,omitempty"`
	At         time.Time      `json:"at"`
}

type subscriber struct {
	ch   chan Snapshot
	once sync.Once
}

func newSubscriber(buffer int) *subscriber {
	return &subscriber{ch: make(chan Snapshot, buffer)}
}

// offer delivers snap without blocking. When the buffer is full the oldest
// pending snapshot is dropped so the latest one always gets through.
// Only the session loop calls offer.
func (s *subscriber) offer(snap Snapshot) {
	select {
	case s.ch <- snap:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- snap:
	default:
	}
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}
