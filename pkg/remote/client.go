package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/harunnryd/vira/pkg/errorsx"
	"github.com/harunnryd/vira/pkg/logging"
	"github.com/harunnryd/vira/pkg/session"
)

// Host runs the engines on the client side of the protocol.
type Host struct {
	Capture  session.CaptureEngine
	Playback session.PlaybackEngine
	// OnState receives every session snapshot pushed by the server.
	OnState func(session.Snapshot)
	// OnError receives server error messages such as a rejected turn.
	OnError func(string)
}

// Client is the engine host end of a session connection.
type Client struct {
	conn   Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	running map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// Dial connects to a session endpoint such as ws://host:8080/ws/session.
// A non-empty token is sent as a Bearer header.
func Dial(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewClient(conn, logger), nil
}

func NewClient(conn Conn, logger *slog.Logger) *Client {
	return &Client{
		conn:    conn,
		logger:  logging.NewComponentLogger(logger, "remote_client"),
		running: make(map[string]context.CancelFunc),
	}
}

func (c *Client) StartTurn() error { return c.send(Message{Type: TypeTurnStart}) }

func (c *Client) StopTurn() error { return c.send(Message{Type: TypeTurnStop}) }

func (c *Client) Close() error {
	err := c.conn.Close()
	c.cancelAll()
	c.wg.Wait()
	return err
}

func (c *Client) send(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		return errorsx.Errorf(errorsx.ReasonRemoteSend, "send %s: %w", msg.Type, err)
	}
	return nil
}

// Run serves server requests with host until the connection closes or ctx ends.
func (c *Client) Run(ctx context.Context, host Host) error {
	defer c.cancelAll()
	stopCloser := closeOnDone(ctx, c.conn)
	defer stopCloser()
	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		switch msg.Type {
		case TypeCaptureStart:
			c.start(ctx, msg.ID, func(opCtx context.Context) Message {
				text, err := host.Capture.Capture(opCtx)
				if err != nil {
					return Message{Type: TypeCaptureError, ID: msg.ID, Error: err.Error()}
				}
				return Message{Type: TypeCaptureResult, ID: msg.ID, Text: text}
			})
		case TypeSpeak:
			text := msg.Text
			c.start(ctx, msg.ID, func(opCtx context.Context) Message {
				if err := host.Playback.Speak(opCtx, text); err != nil {
					return Message{Type: TypeSpeakError, ID: msg.ID, Error: err.Error()}
				}
				return Message{Type: TypeSpeakEnd, ID: msg.ID}
			})
		case TypeCaptureCancel, TypeSpeakCancel:
			c.cancel(msg.ID)
		case TypeState:
			if host.OnState != nil && msg.State != nil {
				host.OnState(*msg.State)
			}
		case TypeError:
			if host.OnError != nil {
				host.OnError(msg.Error)
			}
		default:
			c.logger.Debug("unknown_message", "type", msg.Type)
		}
	}
}

func (c *Client) start(ctx context.Context, id string, op func(context.Context) Message) {
	opCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.running[id] = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		reply := op(opCtx)
		c.mu.Lock()
		_, live := c.running[id]
		delete(c.running, id)
		c.mu.Unlock()
		cancel()
		// The server has already given up on cancelled ids.
		if !live {
			return
		}
		if err := c.send(reply); err != nil {
			c.logger.Debug("reply_failed", "type", reply.Type, "error", err)
		}
	}()
}

func (c *Client) cancel(id string) {
	c.mu.Lock()
	cancel, ok := c.running[id]
	delete(c.running, id)
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

func (c *Client) cancelAll() {
	c.mu.Lock()
	running := c.running
	c.running = make(map[string]context.CancelFunc)
	c.mu.Unlock()
	for _, cancel := range running {
		cancel()
	}
}
