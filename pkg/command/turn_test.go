package command

import (
	"testing"
	"time"

	"github.com/harunnryd/vira/pkg/classifier"
	"github.com/harunnryd/vira/pkg/intent"
	"github.com/harunnryd/vira/pkg/logging"
	"github.com/harunnryd/vira/pkg/providers/mock"
	"github.com/harunnryd/vira/pkg/session"
)

func TestVoiceTurnThroughChannel(t *testing.T) {
	adapter := mock.NewLLMAdapter(mock.LLMConfig{
		ResponseText: "```json\n{\"kind\":\"web-search\",\"normalizedInput\":\"butterflies\",\"spokenReply\":\"Here are search results for butterflies\"}\n```",
	})
	cls := classifier.New(adapter, classifier.Config{Timeout: time.Second}, classifier.WithLogger(logging.Discard()))
	ch := NewChannel(cls, WithChannelLogger(logging.Discard()))

	playback := mock.NewPlaybackEngine()
	playback.AutoFinish = true
	sess := session.New(mock.NewCaptureEngine("search for butterflies"), playback, ch.Dispatcher("Vira", "Ana"),
		session.Config{AssistantName: "Vira"}, session.WithLogger(logging.Discard()))
	defer sess.Close()

	updates, unsubscribe := sess.Subscribe()
	defer unsubscribe()
	if err := sess.StartTurn(); err != nil {
		t.Fatalf("start: %v", err)
	}

	timeout := time.After(3 * time.Second)
	var phases []session.State
	for {
		select {
		case snap := <-updates:
			phases = append(phases, snap.Phase)
			if snap.Phase != session.StateIdle || snap.Reason != "playback_complete" {
				continue
			}
			if snap.Transcript != "search for butterflies" {
				t.Fatalf("unexpected transcript %q", snap.Transcript)
			}
			if snap.Reply != "Here are search results for butterflies" {
				t.Fatalf("unexpected reply %q", snap.Reply)
			}
			if snap.Intent == nil || snap.Intent.Kind != intent.KindWebSearch || snap.Intent.NormalizedInput != "butterflies" {
				t.Fatalf("unexpected intent %+v", snap.Intent)
			}
			if got := playback.Spoken(); len(got) != 1 || got[0] != snap.Reply {
				t.Fatalf("unexpected playback %v", got)
			}
			if adapter.Calls() != 1 {
				t.Fatalf("expected one classify call, got %d", adapter.Calls())
			}
			return
		case <-timeout:
			t.Fatalf("turn did not finish; phases seen %v", phases)
		}
	}
}
