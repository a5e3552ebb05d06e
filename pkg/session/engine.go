package session

import (
	"context"

	"github.com/harunnryd/vira/pkg/intent"
)

// CaptureEngine converts one spoken utterance to text. Capture returns when
// the engine detects end of speech, fails, or ctx is cancelled.
type CaptureEngine interface {
	Capture(ctx context.Context) (string, error)
}

// PlaybackEngine speaks text. Speak returns after playback ends naturally,
// fails, or ctx is cancelled; cancellation must stop audio immediately.
type PlaybackEngine interface {
	Speak(ctx context.Context, text string) error
}

// Dispatcher sends a transcript to the command channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, transcript string) (intent.Intent, error)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, transcript string) (intent.Intent, error)

func (f DispatcherFunc) Dispatch(ctx context.Context, transcript string) (intent.Intent, error) {
	return f(ctx, transcript)
}
