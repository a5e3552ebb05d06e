package remote

import "github.com/harunnryd/vira/pkg/session"

// Message types. Server to client:
const (
	TypeCaptureStart  = "capture.start"
	TypeCaptureCancel = "capture.cancel"
	TypeSpeak         = "speak"
	TypeSpeakCancel   = "speak.cancel"
	TypeState         = "state"
	TypeError         = "error"
)

// Client to server:
const (
	TypeTurnStart     = "turn.start"
	TypeTurnStop      = "turn.stop"
	TypeCaptureResult = "capture.result"
	TypeCaptureError  = "capture.error"
	TypeSpeakEnd      = "speak.end"
	TypeSpeakError    = "speak.error"
)

// Message is the single JSON frame used in both directions.
type Message struct {
	Type  string            `json:"type"`
	ID    string            `json:"id,omitempty"`
	Text  string            `json:"text,omitempty"`
	Error string            `json:"error,omitempty"`
	State *session.Snapshot `json:"state,omitempty"`
}

// Conn is a JSON message connection. Both gorilla and fiber websocket
// connections satisfy it.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}
