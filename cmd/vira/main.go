package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/spf13/pflag"

	"github.com/harunnryd/vira/pkg/command"
	"github.com/harunnryd/vira/pkg/logging"
	"github.com/harunnryd/vira/pkg/runner"
	"github.com/harunnryd/vira/pkg/vira"
)

func main() {
	configPath := cli.StringP("config", "c", "", "Config file path (yaml, json or toml)")
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	addr := cli.StringP("addr", "a", "", "Listen address, overrides server.addr")
	logLevel := cli.StringP("log", "l", "", "Log level, overrides log_level")
	issueToken := cli.String("issue-token", "", "Print a signed token for this subject and exit")
	cli.Parse()

	if err := vira.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := vira.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := logging.InitLogger(logging.Options{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: os.Stderr,
	})
	slog.SetDefault(logger)

	if *issueToken != "" {
		if cfg.Auth.JWTSecret == "" {
			logger.Error("auth.jwt_secret is not set")
			os.Exit(1)
		}
		token, err := command.NewJWTAuthenticator(cfg.Auth.JWTSecret, cfg.TokenTTL()).IssueToken(*issueToken)
		if err != nil {
			logger.Error("issue token failed", "err", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	engine, err := vira.NewEngine(vira.EngineOptions{Config: cfg, Logger: logger})
	if err != nil {
		logger.Error("engine init failed", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := runner.NewLifecycleRunner(engine, runner.Hooks{
		OnStart: func() error {
			errc, err := engine.Start()
			if err != nil {
				return err
			}
			go func() {
				if err := <-errc; err != nil {
					stop()
				}
			}()
			return nil
		},
	}, cfg.DrainTimeout()+time.Second, runner.WithLogger(logger), runner.WithBanner(os.Stdout))

	if err := r.Run(ctx); err != nil {
		logger.Error("shutdown", "err", err)
		os.Exit(1)
	}
}
