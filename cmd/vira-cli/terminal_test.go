package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/vira/pkg/intent"
	"github.com/harunnryd/vira/pkg/session"
)

func TestTypedCaptureKeepsLatestLine(t *testing.T) {
	c := newTypedCapture()
	c.Offer("first")
	c.Offer("second")
	got, err := c.Capture(context.Background())
	if err != nil || got != "second" {
		t.Fatalf("expected latest line, got %q err=%v", got, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Capture(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestPrintedPlaybackInterrupt(t *testing.T) {
	var out bytes.Buffer
	p := &printedPlayback{out: &out, mu: &sync.Mutex{}, perWord: time.Second, name: "Vira"}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := p.Speak(ctx, "a long reply indeed"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected interruption, got %v", err)
	}
	if !strings.Contains(out.String(), "Vira: a long reply indeed") || !strings.Contains(out.String(), "(interrupted)") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestStatusPrinterPrintsPhaseChanges(t *testing.T) {
	var out bytes.Buffer
	s := &statusPrinter{out: &out, mu: &sync.Mutex{}}
	s.OnState(session.Snapshot{Phase: session.StateIdle, Status: "Tap the mic to speak", Reason: "open"})
	s.OnState(session.Snapshot{Phase: session.StateIdle, Status: "Tap the mic to speak"})
	in := intent.Intent{Kind: intent.KindSiteOpen, NormalizedInput: "youtube.com", SpokenReply: "Opening."}
	s.OnState(session.Snapshot{Phase: session.StateSpeaking, Status: "Vira is speaking...", Intent: &in})
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %q", out.String())
	}
	if lines[1] != "[Vira is speaking...] kind=site-open site=youtube" {
		t.Fatalf("unexpected speaking line %q", lines[1])
	}
}

func TestWithQuery(t *testing.T) {
	got, err := withQuery("ws://localhost:8080/ws/session", "Vira", "Sam")
	if err != nil {
		t.Fatalf("withQuery: %v", err)
	}
	if got != "ws://localhost:8080/ws/session?assistant=Vira&creator=Sam" {
		t.Fatalf("unexpected url %q", got)
	}
}
