package mock

import (
	"context"
	"sync"
)

type captureResult struct {
	text string
	err  error
}

// CaptureEngine is a controllable single-shot speech capture.
// Each Capture call blocks until the test delivers a result or the context ends,
// unless Transcripts were scripted, in which case they are returned immediately.
type CaptureEngine struct {
	mu          sync.Mutex
	transcripts []string
	calls       int
	cancels     int
	active      int

	started chan struct{}
	results chan captureResult
}

func NewCaptureEngine(transcripts ...string) *CaptureEngine {
	return &CaptureEngine{
		transcripts: transcripts,
		started:     make(chan struct{}, 64),
		results:     make(chan captureResult, 1),
	}
}

func (e *CaptureEngine) Capture(ctx context.Context) (string, error) {
	e.mu.Lock()
	e.calls++
	var scripted *string
	if len(e.transcripts) > 0 {
		t := e.transcripts[0]
		e.transcripts = e.transcripts[1:]
		scripted = &t
	}
	e.active++
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.active--
		e.mu.Unlock()
	}()

	select {
	case e.started <- struct{}{}:
	default:
	}
	if scripted != nil {
		return *scripted, nil
	}
	select {
	case r := <-e.results:
		return r.text, r.err
	case <-ctx.Done():
		e.mu.Lock()
		e.cancels++
		e.mu.Unlock()
		return "", ctx.Err()
	}
}

// Started signals once per Capture call.
func (e *CaptureEngine) Started() <-chan struct{} { return e.started }

// Deliver completes the pending capture with a transcript.
func (e *CaptureEngine) Deliver(text string) { e.results <- captureResult{text: text} }

// Fail completes the pending capture with an engine error.
func (e *CaptureEngine) Fail(err error) { e.results <- captureResult{err: err} }

func (e *CaptureEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Cancels counts captures that ended through context cancellation.
func (e *CaptureEngine) Cancels() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancels
}

// Active counts captures currently in flight.
func (e *CaptureEngine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}
