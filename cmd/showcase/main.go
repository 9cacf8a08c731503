// Package main runs the Triod showcase process: the independent aggregation
// service maintaining a per-date running-mean temperature index. See
// internal/showcase for the implementation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dreamware/triod/internal/broker"
	"github.com/dreamware/triod/internal/config"
	"github.com/dreamware/triod/internal/showcase"
	"github.com/dreamware/triod/internal/telemetry"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	telemetry.Init(telemetry.Config{Level: telemetry.InfoLevel})
	log := telemetry.WithComponent("showcase")

	conn, err := broker.Dial(cfg.BrokerURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("showcase: failed to connect to broker")
	}
	defer conn.Close()

	svc := showcase.NewService(conn, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("showcase: shutting down")
		cancel()
	case err := <-done:
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("showcase: run loop exited")
		}
	}
}

func loadConfig() (config.Config, error) {
	path := getenv("TRIOD_CONFIG", "config/triod.example.yaml")
	if _, err := os.Stat(path); err != nil {
		return config.Default(), nil
	}
	return config.Load(path)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
