package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"

	"github.com/harunnryd/vira/pkg/remote"
)

const usage = `Type a sentence and press Enter to talk. While the assistant speaks, typing
again interrupts it. Commands: /stop, /quit`

func main() {
	server := cli.StringP("url", "u", "ws://localhost:8080/ws/session", "Session endpoint")
	token := cli.StringP("token", "t", os.Getenv("VIRA_TOKEN"), "Bearer token")
	assistant := cli.StringP("assistant", "n", "", "Assistant name, defaults to the server's")
	creator := cli.String("creator", "", "Creator name, defaults to the server's")
	wordDelay := cli.Duration("word-delay", 250*time.Millisecond, "Simulated speaking time per word")
	logLevel := cli.StringP("log", "l", "warn", "Log level")
	cli.Parse()

	level := slog.LevelWarn
	_ = level.UnmarshalText([]byte(*logLevel))
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level}))

	endpoint, err := withQuery(*server, *assistant, *creator)
	if err != nil {
		logger.Error("invalid url", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	client, err := remote.Dial(dialCtx, endpoint, *token, logger)
	cancel()
	if err != nil {
		logger.Error("connect failed", "err", err)
		os.Exit(1)
	}
	defer client.Close()

	name := *assistant
	if name == "" {
		name = "Assistant"
	}
	var outMu sync.Mutex
	capture := newTypedCapture()
	status := &statusPrinter{out: os.Stdout, mu: &outMu}
	host := remote.Host{
		Capture:  capture,
		Playback: &printedPlayback{out: os.Stdout, mu: &outMu, perWord: *wordDelay, name: name},
		OnState:  status.OnState,
		OnError: func(msg string) {
			outMu.Lock()
			fmt.Fprintf(os.Stdout, "! %s\n", msg)
			outMu.Unlock()
		},
	}

	fmt.Println(usage)
	go func() {
		if err := client.Run(ctx, host); err != nil {
			logger.Error("connection closed", "err", err)
		}
		stop()
	}()
	go readInput(ctx, client, capture, stop)

	<-ctx.Done()
}

func readInput(ctx context.Context, client *remote.Client, capture *typedCapture, quit func()) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		var err error
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			quit()
			return
		case "/stop":
			err = client.StopTurn()
		default:
			capture.Offer(line)
			err = client.StartTurn()
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
		}
	}
	quit()
}

func withQuery(raw, assistant, creator string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if assistant != "" {
		q.Set("assistant", assistant)
	}
	if creator != "" {
		q.Set("creator", creator)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
