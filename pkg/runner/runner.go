package runner

import (
	"bytes"
	"context"
	"io"

	"github.com/dimiro1/banner"
)

type State int

const (
	StateNew State = iota
	StateStarting
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type Runner interface {
	Run(ctx context.Context) error
	Stop() error
	State() State
}

// Hooks run on the runner goroutine. A failing OnStart aborts Run.
type Hooks struct {
	OnStart func() error
	OnStop  func()
}

// Drainer releases live work (sessions, listeners) on shutdown.
type Drainer interface {
	Drain() error
}

// DrainFunc adapts a function to Drainer.
type DrainFunc func() error

func (f DrainFunc) Drain() error { return f() }

var Version = "dev"

// PrintBanner writes the startup banner to w.
func PrintBanner(w io.Writer, color bool) {
	if w == nil {
		return
	}
	tpl := "{{ .Title \"VIRA\" \"\" 0 }}\nVersion: " + Version + "\n{{ .Now \"Monday, 2 Jan 2006\" }}\n"
	banner.Init(w, true, color, bytes.NewBufferString(tpl))
}
