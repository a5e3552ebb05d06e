package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/vira/pkg/session"
)

// typedCapture treats a typed line as the recognised utterance.
type typedCapture struct {
	queue chan string
}

func newTypedCapture() *typedCapture {
	return &typedCapture{queue: make(chan string, 1)}
}

// Offer queues text for the next capture, replacing anything not yet taken.
func (c *typedCapture) Offer(text string) {
	select {
	case <-c.queue:
	default:
	}
	c.queue <- text
}

func (c *typedCapture) Capture(ctx context.Context) (string, error) {
	select {
	case text := <-c.queue:
		return text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// printedPlayback writes the reply and holds for roughly the time it would
// take to say it, so barge-in and stop behave like real audio.
type printedPlayback struct {
	out     io.Writer
	mu      *sync.Mutex
	perWord time.Duration
	name    string
}

func (p *printedPlayback) Speak(ctx context.Context, text string) error {
	p.println(fmt.Sprintf("%s: %s", p.name, text))
	words := len(strings.Fields(text))
	timer := time.NewTimer(time.Duration(words) * p.perWord)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		p.println("  (interrupted)")
		return ctx.Err()
	}
}

func (p *printedPlayback) println(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}

// statusPrinter prints the status line whenever the phase changes.
type statusPrinter struct {
	out  io.Writer
	mu   *sync.Mutex
	last session.State
	seen bool
}

func (s *statusPrinter) OnState(snap session.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen && snap.Phase == s.last {
		return
	}
	s.seen = true
	s.last = snap.Phase
	line := "[" + snap.Status + "]"
	if snap.Phase == session.StateIdle && snap.Reason != "" && snap.Reason != "playback_complete" && snap.Reason != "open" {
		line += " (" + snap.Reason + ")"
	}
	if snap.Phase == session.StateSpeaking && snap.Intent != nil {
		line += " kind=" + string(snap.Intent.Kind)
		if site := snap.Intent.Site(); site != "" {
			line += " site=" + site
		}
	}
	fmt.Fprintln(s.out, line)
}
