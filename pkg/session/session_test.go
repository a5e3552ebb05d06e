package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/vira/pkg/errorsx"
	"github.com/harunnryd/vira/pkg/intent"
	"github.com/harunnryd/vira/pkg/metrics"
	"github.com/harunnryd/vira/pkg/providers/mock"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitPhase(t *testing.T, s *Session, want State) Snapshot {
	t.Helper()
	waitFor(t, "phase "+want.String(), func() bool { return s.Snapshot().Phase == want })
	return s.Snapshot()
}

func waitStarted(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("capture never started")
	}
}

func waitSpoken(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case text := <-ch:
		return text
	case <-time.After(2 * time.Second):
		t.Fatalf("playback never started")
	}
	return ""
}

type cancelCounter struct {
	mu      sync.Mutex
	reasons []string
}

func (c *cancelCounter) hook(reason string) {
	c.mu.Lock()
	c.reasons = append(c.reasons, reason)
	c.mu.Unlock()
}

func (c *cancelCounter) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.reasons...)
}

func TestSessionStartsIdle(t *testing.T) {
	s := New(mock.NewCaptureEngine(), mock.NewPlaybackEngine(), &mock.Dispatcher{}, Config{AssistantName: "Vira"})
	defer s.Close()

	snap := s.Snapshot()
	if snap.Phase != StateIdle {
		t.Fatalf("expected idle, got %s", snap.Phase)
	}
	if snap.Status != "Tap the mic to speak" {
		t.Fatalf("unexpected status %q", snap.Status)
	}
	if snap.SessionID == "" || snap.SessionID != s.ID() {
		t.Fatalf("snapshot id %q does not match session %q", snap.SessionID, s.ID())
	}
}

func TestFullTurnReturnsToIdleWithoutRearm(t *testing.T) {
	capture := mock.NewCaptureEngine()
	playback := mock.NewPlaybackEngine()
	dispatcher := &mock.Dispatcher{Intent: intent.Intent{
		Kind:            intent.KindGeneral,
		NormalizedInput: "what do butterflies eat",
		SpokenReply:     "Butterflies mostly drink nectar from flowers.",
	}}
	s := New(capture, playback, dispatcher, Config{AssistantName: "Vira"})
	defer s.Close()

	if err := s.StartTurn(); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitStarted(t, capture.Started())
	if got := s.Snapshot().Status; got != "Listening..." {
		t.Fatalf("unexpected status while capturing: %q", got)
	}
	capture.Deliver("  what do butterflies eat ")

	spoken := waitSpoken(t, playback.Started())
	if spoken != "Butterflies mostly drink nectar from flowers." {
		t.Fatalf("unexpected spoken reply %q", spoken)
	}
	snap := s.Snapshot()
	if snap.Phase != StateSpeaking || snap.Status != "Vira is speaking..." {
		t.Fatalf("unexpected speaking snapshot %+v", snap)
	}
	if snap.Transcript != "what do butterflies eat" {
		t.Fatalf("transcript not trimmed: %q", snap.Transcript)
	}
	if snap.Intent == nil || snap.Intent.Kind != intent.KindGeneral {
		t.Fatalf("expected intent on snapshot, got %+v", snap.Intent)
	}

	playback.Finish()
	snap = waitPhase(t, s, StateIdle)
	if snap.Reply != "Butterflies mostly drink nectar from flowers." {
		t.Fatalf("reply should stay visible after playback, got %q", snap.Reply)
	}
	time.Sleep(20 * time.Millisecond)
	if capture.Calls() != 1 {
		t.Fatalf("expected no automatic re-arm, got %d captures", capture.Calls())
	}
	if got := dispatcher.Transcripts(); len(got) != 1 || got[0] != "what do butterflies eat" {
		t.Fatalf("unexpected dispatched transcripts %v", got)
	}
}

func TestStartWhileCapturingIsRejected(t *testing.T) {
	capture := mock.NewCaptureEngine()
	obs := metrics.NewMemoryObserver()
	s := New(capture, mock.NewPlaybackEngine(), &mock.Dispatcher{}, Config{}, WithObserver(obs))
	defer s.Close()

	if err := s.StartTurn(); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitStarted(t, capture.Started())
	before := s.Snapshot()
	if err := s.StartTurn(); !errors.Is(err, ErrTurnInFlight) {
		t.Fatalf("expected ErrTurnInFlight, got %v", err)
	}
	after := s.Snapshot()
	if after.Seq != before.Seq || after.Phase != StateCapturing {
		t.Fatalf("rejected start must not change state: %+v -> %+v", before, after)
	}
	if capture.Calls() != 1 {
		t.Fatalf("expected single capture, got %d", capture.Calls())
	}
	if obs.Count(metrics.EventTurnRejected, nil) != 1 {
		t.Fatalf("expected one turn_rejected event")
	}
}

func TestStartWhileDispatchingIsRejected(t *testing.T) {
	capture := mock.NewCaptureEngine()
	gate := make(chan struct{})
	dispatcher := &mock.Dispatcher{Gate: gate}
	playback := mock.NewPlaybackEngine()
	s := New(capture, playback, dispatcher, Config{})
	defer s.Close()

	_ = s.StartTurn()
	waitStarted(t, capture.Started())
	capture.Deliver("hello")
	waitPhase(t, s, StateDispatching)

	for i := 0; i < 3; i++ {
		if err := s.StartTurn(); !errors.Is(err, ErrTurnInFlight) {
			t.Fatalf("expected ErrTurnInFlight, got %v", err)
		}
	}
	if err := s.StopTurn(); err != nil {
		t.Fatalf("stop during dispatch should be a no-op, got %v", err)
	}
	if s.Snapshot().Phase != StateDispatching {
		t.Fatalf("stop must not leave dispatching")
	}
	close(gate)
	waitSpoken(t, playback.Started())
	if dispatcher.MaxInFlight() != 1 {
		t.Fatalf("expected one classify call in flight, got %d", dispatcher.MaxInFlight())
	}
	if capture.Calls() != 1 {
		t.Fatalf("expected one capture, got %d", capture.Calls())
	}
}

func TestBargeInCancelsPlaybackOnce(t *testing.T) {
	capture := mock.NewCaptureEngine()
	playback := mock.NewPlaybackEngine()
	cancels := &cancelCounter{}
	s := New(capture, playback, &mock.Dispatcher{}, Config{}, WithHooks(Hooks{OnPlaybackCancel: cancels.hook}))
	defer s.Close()

	_ = s.StartTurn()
	waitStarted(t, capture.Started())
	capture.Deliver("tell me a story")
	waitSpoken(t, playback.Started())

	if err := s.StartTurn(); err != nil {
		t.Fatalf("barge-in start: %v", err)
	}
	waitStarted(t, capture.Started())
	snap := s.Snapshot()
	if snap.Phase != StateCapturing {
		t.Fatalf("expected capturing after barge-in, got %s", snap.Phase)
	}
	if snap.Reply != "ok" {
		t.Fatalf("barge-in should keep the previous reply, got %q", snap.Reply)
	}
	if snap.Transcript != "" {
		t.Fatalf("barge-in should clear the transcript, got %q", snap.Transcript)
	}
	waitFor(t, "playback cancelled", func() bool { return playback.Cancels() == 1 })
	if got := cancels.get(); len(got) != 1 || got[0] != "barge_in" {
		t.Fatalf("expected one barge_in cancel, got %v", got)
	}
}

func TestNewTurnFromIdleClearsTexts(t *testing.T) {
	capture := mock.NewCaptureEngine()
	playback := mock.NewPlaybackEngine()
	playback.AutoFinish = true
	s := New(capture, playback, &mock.Dispatcher{}, Config{})
	defer s.Close()

	_ = s.StartTurn()
	waitStarted(t, capture.Started())
	capture.Deliver("first")
	waitFor(t, "reply", func() bool {
		snap := s.Snapshot()
		return snap.Phase == StateIdle && snap.Reply == "ok"
	})

	_ = s.StartTurn()
	waitStarted(t, capture.Started())
	snap := s.Snapshot()
	if snap.Transcript != "" || snap.Reply != "" || snap.Intent != nil {
		t.Fatalf("expected cleared snapshot, got %+v", snap)
	}
}

func TestCaptureErrorReturnsToIdle(t *testing.T) {
	capture := mock.NewCaptureEngine()
	dispatcher := &mock.Dispatcher{}
	s := New(capture, mock.NewPlaybackEngine(), dispatcher, Config{})
	defer s.Close()

	_ = s.StartTurn()
	waitStarted(t, capture.Started())
	capture.Fail(errors.New("mic unavailable"))

	snap := waitPhase(t, s, StateIdle)
	if snap.Reason != string(errorsx.ReasonCaptureFailed) {
		t.Fatalf("unexpected reason %q", snap.Reason)
	}
	if len(dispatcher.Transcripts()) != 0 {
		t.Fatalf("no classify call expected after capture error")
	}
}

func TestCaptureTimeout(t *testing.T) {
	capture := mock.NewCaptureEngine()
	s := New(capture, mock.NewPlaybackEngine(), &mock.Dispatcher{}, Config{MaxCapture: 20 * time.Millisecond})
	defer s.Close()

	_ = s.StartTurn()
	waitStarted(t, capture.Started())
	snap := waitPhase(t, s, StateIdle)
	if snap.Reason != string(errorsx.ReasonCaptureTimeout) {
		t.Fatalf("unexpected reason %q", snap.Reason)
	}
	if capture.Active() != 0 {
		t.Fatalf("capture still active after timeout")
	}
}

func TestDispatchErrorSpeaksFallback(t *testing.T) {
	capture := mock.NewCaptureEngine()
	playback := mock.NewPlaybackEngine()
	s := New(capture, playback, &mock.Dispatcher{Err: errors.New("down")}, Config{})
	defer s.Close()

	_ = s.StartTurn()
	waitStarted(t, capture.Started())
	capture.Deliver("open youtube")
	if got := waitSpoken(t, playback.Started()); got != intent.FallbackReply {
		t.Fatalf("expected fallback reply, got %q", got)
	}
	snap := s.Snapshot()
	if snap.Intent == nil || snap.Intent.Kind != intent.KindGeneral || snap.Intent.NormalizedInput != "open youtube" {
		t.Fatalf("unexpected fallback intent %+v", snap.Intent)
	}
}

func TestInvalidIntentFromDispatcherFallsBack(t *testing.T) {
	capture := mock.NewCaptureEngine()
	playback := mock.NewPlaybackEngine()
	s := New(capture, playback, &mock.Dispatcher{Intent: intent.Intent{Kind: "dance", NormalizedInput: "x", SpokenReply: "y"}}, Config{})
	defer s.Close()

	_ = s.StartTurn()
	waitStarted(t, capture.Started())
	capture.Deliver("dance for me")
	if got := waitSpoken(t, playback.Started()); got != intent.FallbackReply {
		t.Fatalf("expected fallback reply, got %q", got)
	}
}

func TestPlaybackErrorKeepsReply(t *testing.T) {
	capture := mock.NewCaptureEngine()
	playback := mock.NewPlaybackEngine()
	s := New(capture, playback, &mock.Dispatcher{}, Config{})
	defer s.Close()

	_ = s.StartTurn()
	waitStarted(t, capture.Started())
	capture.Deliver("hi")
	waitSpoken(t, playback.Started())
	playback.Fail(errors.New("audio device lost"))

	snap := waitPhase(t, s, StateIdle)
	if snap.Reply != "ok" {
		t.Fatalf("reply should stay visible, got %q", snap.Reply)
	}
	if snap.Reason != "playback_error" {
		t.Fatalf("unexpected reason %q", snap.Reason)
	}
}

func TestStopDuringCaptureCancels(t *testing.T) {
	capture := mock.NewCaptureEngine()
	dispatcher := &mock.Dispatcher{}
	s := New(capture, mock.NewPlaybackEngine(), dispatcher, Config{})
	defer s.Close()

	_ = s.StartTurn()
	waitStarted(t, capture.Started())
	if err := s.StopTurn(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if s.Snapshot().Phase != StateIdle {
		t.Fatalf("expected idle after stop")
	}
	waitFor(t, "capture cancelled", func() bool { return capture.Cancels() == 1 })
	if len(dispatcher.Transcripts()) != 0 {
		t.Fatalf("cancelled capture must not dispatch")
	}
}

func TestStopInIdleIsNoop(t *testing.T) {
	s := New(mock.NewCaptureEngine(), mock.NewPlaybackEngine(), &mock.Dispatcher{}, Config{})
	defer s.Close()
	before := s.Snapshot()
	if err := s.StopTurn(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if s.Snapshot().Seq != before.Seq {
		t.Fatalf("stop in idle must not publish")
	}
}

func TestStopDuringSpeakingCancelsPlayback(t *testing.T) {
	capture := mock.NewCaptureEngine()
	playback := mock.NewPlaybackEngine()
	cancels := &cancelCounter{}
	s := New(capture, playback, &mock.Dispatcher{}, Config{}, WithHooks(Hooks{OnPlaybackCancel: cancels.hook}))
	defer s.Close()

	_ = s.StartTurn()
	waitStarted(t, capture.Started())
	capture.Deliver("hi")
	waitSpoken(t, playback.Started())
	_ = s.StopTurn()
	waitPhase(t, s, StateIdle)
	waitFor(t, "playback cancelled", func() bool { return playback.Cancels() == 1 })
	if got := cancels.get(); len(got) != 1 || got[0] != "user_stop" {
		t.Fatalf("expected one user_stop cancel, got %v", got)
	}
}

func TestCloseTearsDownEverything(t *testing.T) {
	capture := mock.NewCaptureEngine()
	playback := mock.NewPlaybackEngine()
	cancels := &cancelCounter{}
	s := New(capture, playback, &mock.Dispatcher{}, Config{}, WithHooks(Hooks{OnPlaybackCancel: cancels.hook}))

	updates, _ := s.Subscribe()
	_ = s.StartTurn()
	waitStarted(t, capture.Started())
	capture.Deliver("hi")
	waitSpoken(t, playback.Started())

	s.Close()
	s.Close()
	if playback.Active() != 0 || capture.Active() != 0 {
		t.Fatalf("engines still active after close")
	}
	if got := cancels.get(); len(got) != 1 || got[0] != "teardown" {
		t.Fatalf("expected one teardown cancel, got %v", got)
	}
	if s.Snapshot().Phase != StateIdle {
		t.Fatalf("expected idle after close")
	}
	if err := s.StartTurn(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	for range updates {
	}
}

func TestSubscribeReceivesCurrentAndUpdates(t *testing.T) {
	capture := mock.NewCaptureEngine()
	s := New(capture, mock.NewPlaybackEngine(), &mock.Dispatcher{}, Config{})
	defer s.Close()

	updates, unsubscribe := s.Subscribe()
	first := <-updates
	if first.Phase != StateIdle {
		t.Fatalf("expected initial idle snapshot, got %s", first.Phase)
	}
	_ = s.StartTurn()
	select {
	case snap := <-updates:
		if snap.Phase != StateCapturing {
			t.Fatalf("expected capturing update, got %s", snap.Phase)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no update after start")
	}
	unsubscribe()
	for range updates {
	}
}

func TestSubscriberDropsOldest(t *testing.T) {
	sub := newSubscriber(2)
	for i := uint64(1); i <= 5; i++ {
		sub.offer(Snapshot{Seq: i})
	}
	a, b := <-sub.ch, <-sub.ch
	if a.Seq != 4 || b.Seq != 5 {
		t.Fatalf("expected latest snapshots 4,5 got %d,%d", a.Seq, b.Seq)
	}
}

func TestTransitionHookSeesEveryChange(t *testing.T) {
	capture := mock.NewCaptureEngine()
	playback := mock.NewPlaybackEngine()
	playback.AutoFinish = true
	var mu sync.Mutex
	var seen []State
	s := New(capture, playback, &mock.Dispatcher{}, Config{}, WithHooks(Hooks{OnTransition: func(c StateChange) {
		mu.Lock()
		seen = append(seen, c.ToState)
		mu.Unlock()
	}}))
	defer s.Close()

	_ = s.StartTurn()
	waitStarted(t, capture.Started())
	capture.Deliver("hi")
	waitFor(t, "turn complete", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 4
	})
	mu.Lock()
	defer mu.Unlock()
	want := []State{StateCapturing, StateDispatching, StateSpeaking, StateIdle}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transition %d: want %s got %s", i, want[i], seen[i])
		}
	}
}
