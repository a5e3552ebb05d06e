package mock

import (
	"context"
	"sync"
)

// PlaybackEngine is a controllable speech synthesizer. Speak blocks until the
// test calls Finish or Fail, or the context is cancelled. With AutoFinish set
// it returns immediately.
type PlaybackEngine struct {
	AutoFinish bool

	mu      sync.Mutex
	spoken  []string
	cancels int
	active  int

	started chan string
	done    chan error
}

func NewPlaybackEngine() *PlaybackEngine {
	return &PlaybackEngine{
		started: make(chan string, 64),
		done:    make(chan error, 1),
	}
}

func (p *PlaybackEngine) Speak(ctx context.Context, text string) error {
	p.mu.Lock()
	p.spoken = append(p.spoken, text)
	p.active++
	auto := p.AutoFinish
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}()

	select {
	case p.started <- text:
	default:
	}
	if auto {
		return nil
	}
	select {
	case err := <-p.done:
		return err
	case <-ctx.Done():
		p.mu.Lock()
		p.cancels++
		p.mu.Unlock()
		return ctx.Err()
	}
}

// Started receives the text of every Speak call.
func (p *PlaybackEngine) Started() <-chan string { return p.started }

// Finish lets the pending playback complete naturally.
func (p *PlaybackEngine) Finish() { p.done <- nil }

// Fail ends the pending playback with an engine error.
func (p *PlaybackEngine) Fail(err error) { p.done <- err }

func (p *PlaybackEngine) Spoken() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.spoken))
	copy(out, p.spoken)
	return out
}

// Cancels counts playbacks that ended through context cancellation.
func (p *PlaybackEngine) Cancels() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancels
}

func (p *PlaybackEngine) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}
