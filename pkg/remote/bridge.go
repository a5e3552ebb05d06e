package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/harunnryd/vira/pkg/errorsx"
	"github.com/harunnryd/vira/pkg/logging"
	"github.com/harunnryd/vira/pkg/metrics"
	"github.com/harunnryd/vira/pkg/session"
)

// ErrDisconnected ends pending captures and playbacks when the client goes away.
var ErrDisconnected = errors.New("remote: client disconnected")

// ClientError is a failure the remote capture or playback host reported.
type ClientError struct {
	Op      string
	Message string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("remote %s failed: %s", e.Op, e.Message)
}

// Controller is the session surface driven by client turn messages.
type Controller interface {
	StartTurn() error
	StopTurn() error
}

type outcome struct {
	text string
	err  error
}

type pendingOp struct {
	kind string
	ch   chan outcome
}

// Bridge is a capture and playback engine hosted by the remote client.
// Requests go out with a fresh id; answers are matched by id and answers for
// ids no longer pending are dropped.
type Bridge struct {
	conn   Conn
	logger *slog.Logger
	obs    metrics.Observer

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]pendingOp
	closed  bool
}

type BridgeOption func(*Bridge)

func WithBridgeLogger(l *slog.Logger) BridgeOption {
	return func(b *Bridge) { b.logger = logging.NewComponentLogger(l, "remote") }
}

func WithBridgeObserver(obs metrics.Observer) BridgeOption {
	return func(b *Bridge) { b.obs = metrics.OrNoop(obs) }
}

func NewBridge(conn Conn, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		conn:    conn,
		logger:  logging.NewComponentLogger(nil, "remote"),
		obs:     metrics.NoopObserver{},
		pending: make(map[string]pendingOp),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bridge) Capture(ctx context.Context) (string, error) {
	return b.request(ctx, Message{Type: TypeCaptureStart}, TypeCaptureCancel)
}

func (b *Bridge) Speak(ctx context.Context, text string) error {
	_, err := b.request(ctx, Message{Type: TypeSpeak, Text: text}, TypeSpeakCancel)
	return err
}

func (b *Bridge) request(ctx context.Context, msg Message, cancelType string) (string, error) {
	msg.ID = uuid.NewString()
	ch := make(chan outcome, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return "", ErrDisconnected
	}
	b.pending[msg.ID] = pendingOp{kind: msg.Type, ch: ch}
	b.mu.Unlock()

	if err := b.Send(msg); err != nil {
		b.forget(msg.ID)
		return "", err
	}

	select {
	case out := <-ch:
		return out.text, out.err
	case <-ctx.Done():
		if b.forget(msg.ID) {
			if err := b.Send(Message{Type: cancelType, ID: msg.ID}); err != nil {
				b.logger.Debug("cancel_not_sent", "id", msg.ID, "error", err)
			}
		}
		return "", ctx.Err()
	}
}

// forget drops a pending id and reports whether it was still pending.
func (b *Bridge) forget(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pending[id]; !ok {
		return false
	}
	delete(b.pending, id)
	return true
}

func (b *Bridge) resolve(id, kind string, out outcome) bool {
	b.mu.Lock()
	op, ok := b.pending[id]
	if ok && op.kind == kind {
		delete(b.pending, id)
	}
	b.mu.Unlock()
	if !ok || op.kind != kind {
		return false
	}
	op.ch <- out
	return true
}

// Send writes one message. Safe for concurrent use.
func (b *Bridge) Send(msg Message) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := b.conn.WriteJSON(msg); err != nil {
		return errorsx.Errorf(errorsx.ReasonRemoteSend, "send %s: %w", msg.Type, err)
	}
	return nil
}

// Serve reads client messages until the connection fails or ctx ends, driving
// ctrl with turn messages and completing pending engine calls.
func (b *Bridge) Serve(ctx context.Context, ctrl Controller) error {
	defer b.shutdown()
	stopCloser := closeOnDone(ctx, b.conn)
	defer stopCloser()
	for {
		var msg Message
		if err := b.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		b.handle(msg, ctrl)
	}
}

func (b *Bridge) handle(msg Message, ctrl Controller) {
	switch msg.Type {
	case TypeTurnStart:
		if err := ctrl.StartTurn(); err != nil {
			b.reply(Message{Type: TypeError, Error: err.Error()})
		}
	case TypeTurnStop:
		if err := ctrl.StopTurn(); err != nil {
			b.reply(Message{Type: TypeError, Error: err.Error()})
		}
	case TypeCaptureResult:
		b.complete(msg, TypeCaptureStart, outcome{text: msg.Text})
	case TypeCaptureError:
		b.complete(msg, TypeCaptureStart, outcome{err: errorsx.Wrap(&ClientError{Op: "capture", Message: msg.Error}, errorsx.ReasonRemoteClientErr)})
	case TypeSpeakEnd:
		b.complete(msg, TypeSpeak, outcome{})
	case TypeSpeakError:
		b.complete(msg, TypeSpeak, outcome{err: errorsx.Wrap(&ClientError{Op: "speak", Message: msg.Error}, errorsx.ReasonRemoteClientErr)})
	default:
		b.protocolError("unknown_type", msg)
		b.reply(Message{Type: TypeError, Error: fmt.Sprintf("unknown message type %q", msg.Type)})
	}
}

func (b *Bridge) complete(msg Message, kind string, out outcome) {
	if !b.resolve(msg.ID, kind, out) {
		b.protocolError("stale_id", msg)
	}
}

func (b *Bridge) protocolError(reason string, msg Message) {
	b.logger.Debug("protocol_error", "reason", reason, "type", msg.Type, "id", msg.ID)
	b.obs.RecordEvent(metrics.NewEvent(metrics.EventRemoteProtocol, 1, map[string]string{
		metrics.TagReason: reason,
	}))
}

func (b *Bridge) reply(msg Message) {
	if err := b.Send(msg); err != nil {
		b.logger.Debug("reply_failed", "type", msg.Type, "error", err)
	}
}

// ForwardSnapshots streams session snapshots to the client until the
// subscription closes.
func (b *Bridge) ForwardSnapshots(updates <-chan session.Snapshot) {
	for snap := range updates {
		if err := b.Send(Message{Type: TypeState, State: &snap}); err != nil {
			b.logger.Debug("state_not_sent", "error", err)
		}
	}
}

func (b *Bridge) shutdown() {
	b.mu.Lock()
	b.closed = true
	pending := b.pending
	b.pending = make(map[string]pendingOp)
	b.mu.Unlock()
	for _, op := range pending {
		op.ch <- outcome{err: ErrDisconnected}
	}
}

// closeOnDone closes conn when ctx ends. The returned function stops the
// watcher and waits for it, so conn is never touched after the caller's
// read loop has returned it to its owner.
func closeOnDone(ctx context.Context, conn Conn) func() {
	stop := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()
	return func() {
		close(stop)
		<-exited
	}
}
