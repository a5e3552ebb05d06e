package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/vira/pkg/intent"
)

// Dispatcher answers transcripts with a fixed intent. With Gate set, each
// call waits for a value on Gate before answering.
type Dispatcher struct {
	Intent intent.Intent
	Err    error
	Gate   chan struct{}

	mu          sync.Mutex
	transcripts []string
	inFlight    int
	maxInFlight int
}

func (d *Dispatcher) Dispatch(ctx context.Context, transcript string) (intent.Intent, error) {
	d.mu.Lock()
	d.transcripts = append(d.transcripts, transcript)
	d.inFlight++
	if d.inFlight > d.maxInFlight {
		d.maxInFlight = d.inFlight
	}
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.inFlight--
		d.mu.Unlock()
	}()

	if d.Gate != nil {
		select {
		case <-d.Gate:
		case <-ctx.Done():
			return intent.Intent{}, ctx.Err()
		}
	}
	if d.Err != nil {
		return intent.Intent{}, d.Err
	}
	if d.Intent.Kind == "" {
		return intent.Intent{Kind: intent.KindGeneral, NormalizedInput: transcript, SpokenReply: "ok"}, nil
	}
	return d.Intent, nil
}

func (d *Dispatcher) Transcripts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.transcripts))
	copy(out, d.transcripts)
	return out
}

// MaxInFlight is the highest number of concurrent Dispatch calls observed.
func (d *Dispatcher) MaxInFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxInFlight
}
