package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/harunnryd/vira/pkg/errorsx"
	"github.com/harunnryd/vira/pkg/intent"
	"github.com/harunnryd/vira/pkg/logging"
	"github.com/harunnryd/vira/pkg/metrics"
	"github.com/harunnryd/vira/pkg/redact"
)

var (
	// ErrTurnInFlight rejects a start while a capture or classify call is outstanding.
	ErrTurnInFlight = errors.New("session: turn already in flight")
	// ErrClosed is returned once the session has been torn down.
	ErrClosed = errors.New("session: closed")
)

const (
	statusIdle          = "Tap the mic to speak"
	statusListening     = "Listening..."
	statusThinking      = "Thinking..."
	statusCaptureFailed = "Sorry, I didn't catch that. Tap the mic to try again."
	statusPlaybackError = "I couldn't say that out loud."
)

// Config tunes a session. Zero values pick defaults.
type Config struct {
	AssistantName string
	// MaxCapture bounds a single capture so a silent input cannot hold the mic.
	MaxCapture time.Duration
	// DispatchTimeout bounds one classify round trip.
	DispatchTimeout  time.Duration
	SubscriberBuffer int
}

func (c Config) withDefaults() Config {
	if c.AssistantName == "" {
		c.AssistantName = "Assistant"
	}
	if c.MaxCapture <= 0 {
		c.MaxCapture = 15 * time.Second
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = 20 * time.Second
	}
	if c.SubscriberBuffer <= 0 {
		c.SubscriberBuffer = 16
	}
	return c
}

// Hooks are invoked on the session loop. They must not call StartTurn,
// StopTurn, Subscribe or Close.
type Hooks struct {
	OnTransition func(StateChange)
	// OnPlaybackCancel fires exactly once for every playback cut short by
	// barge-in, stop or teardown.
	OnPlaybackCancel func(reason string)
}

type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.baseLogger = l }
}

func WithObserver(obs metrics.Observer) Option {
	return func(s *Session) { s.obs = metrics.OrNoop(obs) }
}

func WithHooks(h Hooks) Option {
	return func(s *Session) { s.hooks = h }
}

// WithID overrides the generated session id.
func WithID(id string) Option {
	return func(s *Session) {
		if strings.TrimSpace(id) != "" {
			s.id = id
		}
	}
}

type eventKind int

const (
	evStart eventKind = iota
	evStop
	evCaptureDone
	evDispatchDone
	evPlaybackDone
	evSubscribe
	evUnsubscribe
)

type event struct {
	kind   eventKind
	turn   uint64
	text   string
	intent intent.Intent
	err    error
	reply  chan error
	sub    *subscriber
}

// Session is one voice interaction loop. All phase state is owned by a single
// goroutine; public methods talk to it through a channel, so the phase check
// before each capture or classify call is the only mutual exclusion needed.
type Session struct {
	id         string
	cfg        Config
	capture    CaptureEngine
	playback   PlaybackEngine
	dispatcher Dispatcher
	hooks      Hooks
	baseLogger *slog.Logger
	logger     *slog.Logger
	obs        metrics.Observer

	events    chan event
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	workers   sync.WaitGroup
	published atomic.Pointer[Snapshot]

	// Loop-owned.
	state       State
	transcript  string
	reply       string
	status      string
	lastIntent  *intent.Intent
	turn        uint64
	seq         uint64
	cancelOp    context.CancelFunc
	subscribers map[*subscriber]struct{}
}

// New starts a session in Idle. Close must be called to release it.
func New(capture CaptureEngine, playback PlaybackEngine, dispatcher Dispatcher, cfg Config, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:          uuid.NewString(),
		cfg:         cfg.withDefaults(),
		capture:     capture,
		playback:    playback,
		dispatcher:  dispatcher,
		obs:         metrics.NoopObserver{},
		events:      make(chan event),
		done:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		state:       StateIdle,
		status:      statusIdle,
		subscribers: make(map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.baseLogger, "session").With("session_id", s.id)
	s.publish("open")
	s.obs.RecordEvent(metrics.NewEvent(metrics.EventSessionOpened, 1, map[string]string{metrics.TagSession: s.id}))
	go s.run()
	return s
}

func (s *Session) ID() string { return s.id }

// Snapshot returns the latest published state.
func (s *Session) Snapshot() Snapshot {
	return *s.published.Load()
}

// StartTurn begins a capture. While Speaking it interrupts playback first
// (barge-in). While Capturing or Dispatching it returns ErrTurnInFlight and
// changes nothing.
func (s *Session) StartTurn() error {
	return s.request(evStart)
}

// StopTurn ends a capture that has no result yet, or cuts playback short.
// It is a no-op in Idle and Dispatching.
func (s *Session) StopTurn() error {
	return s.request(evStop)
}

// Subscribe returns a snapshot stream starting with the current state, and a
// function that ends the subscription. The channel is closed on Close.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	sub := newSubscriber(s.cfg.SubscriberBuffer)
	if !s.send(event{kind: evSubscribe, sub: sub}) {
		sub.close()
		return sub.ch, func() {}
	}
	return sub.ch, func() {
		if !s.send(event{kind: evUnsubscribe, sub: sub}) {
			sub.close()
		}
	}
}

// Close cancels any in-flight capture, classify call and playback, waits for
// the engines to return and closes every subscription. Safe to call twice.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
		s.workers.Wait()
	})
}

// Done is closed once the session loop has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) request(kind eventKind) error {
	reply := make(chan error, 1)
	if !s.send(event{kind: kind, reply: reply}) {
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrClosed
		}
	}
}

func (s *Session) send(ev event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) run() {
	defer s.teardown()
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

func (s *Session) handle(ev event) {
	switch ev.kind {
	case evStart:
		ev.reply <- s.onStart()
	case evStop:
		ev.reply <- s.onStop()
	case evCaptureDone:
		s.onCaptureDone(ev)
	case evDispatchDone:
		s.onDispatchDone(ev)
	case evPlaybackDone:
		s.onPlaybackDone(ev)
	case evSubscribe:
		s.subscribers[ev.sub] = struct{}{}
		ev.sub.offer(s.Snapshot())
	case evUnsubscribe:
		if _, ok := s.subscribers[ev.sub]; ok {
			delete(s.subscribers, ev.sub)
			ev.sub.close()
		}
	}
}

func (s *Session) onStart() error {
	from := s.state
	if _, ok := Next(from, TriggerStart); !ok {
		s.obs.RecordEvent(metrics.NewEvent(metrics.EventTurnRejected, 1, map[string]string{
			metrics.TagState: from.String(),
		}))
		s.logger.Debug("turn_rejected", "state", from.String())
		return ErrTurnInFlight
	}
	reason := "user_start"
	if from == StateSpeaking {
		reason = "barge_in"
		s.cancelPlayback(reason)
		// The interrupted reply stays visible until a new transcript arrives.
		s.transcript = ""
	} else {
		s.transcript = ""
		s.reply = ""
		s.lastIntent = nil
	}
	s.beginCapture(reason)
	return nil
}

func (s *Session) onStop() error {
	switch s.state {
	case StateCapturing:
		s.cancelCurrent()
		s.status = statusIdle
		s.apply(TriggerStop, "user_stop")
	case StateSpeaking:
		s.cancelPlayback("user_stop")
		s.status = statusIdle
		s.apply(TriggerStop, "user_stop")
	}
	return nil
}

func (s *Session) beginCapture(reason string) {
	s.turn++
	turn := s.turn
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.MaxCapture)
	s.cancelOp = cancel
	s.status = statusListening
	s.apply(TriggerStart, reason)

	s.spawn(func() {
		text, err := s.capture.Capture(ctx)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				err = errorsx.ReasonedError{Err: fmt.Errorf("capture exceeded %s: %w", s.cfg.MaxCapture, err), Reason: errorsx.ReasonCaptureTimeout}
			} else {
				err = errorsx.Wrap(err, errorsx.ReasonCaptureFailed)
			}
		}
		s.send(event{kind: evCaptureDone, turn: turn, text: text, err: err})
	})
}

func (s *Session) onCaptureDone(ev event) {
	if ev.turn != s.turn || s.state != StateCapturing {
		return
	}
	s.cancelCurrent()
	if ev.err != nil {
		s.logger.Info("capture_failed", "reason", string(errorsx.Reason(ev.err)), "error", ev.err)
		s.status = statusCaptureFailed
		s.apply(TriggerCaptureError, string(errorsx.Reason(ev.err)))
		return
	}
	s.transcript = strings.TrimSpace(ev.text)
	s.status = statusThinking
	s.apply(TriggerTranscript, "transcript")
	s.beginDispatch(s.transcript)
}

func (s *Session) beginDispatch(transcript string) {
	turn := s.turn
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.DispatchTimeout)
	s.cancelOp = cancel

	s.spawn(func() {
		in, err := s.dispatcher.Dispatch(ctx, transcript)
		if err == nil {
			err = intent.Check(in)
		}
		if err != nil {
			s.logger.Warn("dispatch_failed",
				"reason", string(errorsx.Reason(errorsx.Wrap(err, errorsx.ReasonCommandDispatch))),
				"error", err,
				"transcript", redact.Text(transcript),
			)
			in = intent.Fallback(transcript)
		}
		s.send(event{kind: evDispatchDone, turn: turn, intent: in})
	})
}

func (s *Session) onDispatchDone(ev event) {
	if ev.turn != s.turn || s.state != StateDispatching {
		return
	}
	s.cancelCurrent()
	in := ev.intent
	s.lastIntent = &in
	s.reply = in.SpokenReply
	s.status = s.cfg.AssistantName + " is speaking..."
	s.apply(TriggerIntent, string(in.Kind))
	s.beginPlayback(in.SpokenReply)
}

func (s *Session) beginPlayback(text string) {
	turn := s.turn
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelOp = cancel

	s.spawn(func() {
		err := s.playback.Speak(ctx, text)
		if err != nil {
			err = errorsx.Wrap(err, errorsx.ReasonPlaybackFailed)
		}
		s.send(event{kind: evPlaybackDone, turn: turn, err: err})
	})
}

func (s *Session) onPlaybackDone(ev event) {
	if ev.turn != s.turn || s.state != StateSpeaking {
		return
	}
	s.cancelCurrent()
	if ev.err != nil {
		s.logger.Info("playback_failed", "error", ev.err)
		s.status = statusPlaybackError
		s.apply(TriggerPlaybackError, "playback_error")
		return
	}
	// No automatic re-arm: the next turn needs an explicit StartTurn.
	s.status = statusIdle
	s.apply(TriggerPlaybackEnd, "playback_complete")
}

// cancelPlayback stops the current playback. It runs only while Speaking and
// the state leaves Speaking right after, so the late completion is dropped as
// stale and the hook fires once per playback.
func (s *Session) cancelPlayback(reason string) {
	s.cancelCurrent()
	s.obs.RecordEvent(metrics.NewEvent(metrics.EventPlaybackCancel, 1, map[string]string{
		metrics.TagReason: reason,
	}))
	if s.hooks.OnPlaybackCancel != nil {
		s.hooks.OnPlaybackCancel(reason)
	}
}

func (s *Session) cancelCurrent() {
	if s.cancelOp != nil {
		s.cancelOp()
		s.cancelOp = nil
	}
}

func (s *Session) apply(t Trigger, reason string) {
	from := s.state
	to, ok := Next(from, t)
	if !ok {
		s.logger.Error("invalid_transition", "error", &InvalidTransitionError{From: from, Trigger: t})
		return
	}
	s.state = to
	change := StateChange{FromState: from, ToState: to, Trigger: t, Timestamp: time.Now(), Reason: reason}
	s.logger.Debug("phase", "from", from.String(), "to", to.String(), "reason", reason)
	s.obs.RecordEvent(metrics.NewEvent(metrics.EventSessionPhase, 1, map[string]string{
		metrics.TagFrom:    from.String(),
		metrics.TagTo:      to.String(),
		metrics.TagReason:  t.String(),
		metrics.TagSession: s.id,
	}))
	if s.hooks.OnTransition != nil {
		s.hooks.OnTransition(change)
	}
	s.publish(reason)
}

func (s *Session) publish(reason string) {
	s.seq++
	snap := Snapshot{
		SessionID:  s.id,
		Seq:        s.seq,
		Phase:      s.state,
		Transcript: s.transcript,
		Reply:      s.reply,
		Status:     s.status,
		Reason:     reason,
		At:         time.Now(),
	}
	if s.lastIntent != nil {
		in := *s.lastIntent
		snap.Intent = &in
	}
	s.published.Store(&snap)
	for sub := range s.subscribers {
		sub.offer(snap)
	}
}

func (s *Session) spawn(fn func()) {
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		fn()
	}()
}

func (s *Session) teardown() {
	if s.state == StateSpeaking {
		s.cancelPlayback("teardown")
	}
	s.cancelCurrent()
	if s.state != StateIdle {
		s.status = statusIdle
		s.apply(TriggerTeardown, "teardown")
	}
	for sub := range s.subscribers {
		sub.close()
		delete(s.subscribers, sub)
	}
	s.obs.RecordEvent(metrics.NewEvent(metrics.EventSessionClosed, 1, map[string]string{metrics.TagSession: s.id}))
	s.logger.Debug("session_closed")
	close(s.done)
}
