// Package main runs a single Triod storage process. See internal/storagenode
// for the implementation. One process owns exactly one storage id, set via
// STORAGE_ID, mirroring the teacher's NODE_ID convention (cmd/node/main.go).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dreamware/triod/internal/broker"
	"github.com/dreamware/triod/internal/config"
	"github.com/dreamware/triod/internal/storagenode"
	"github.com/dreamware/triod/internal/telemetry"
)

func main() {
	id := mustGetenv("STORAGE_ID")

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	telemetry.Init(telemetry.Config{Level: telemetry.InfoLevel})
	log := telemetry.WithNodeID(id)

	conn, err := broker.Dial(cfg.BrokerURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("storage: failed to connect to broker")
	}
	defer conn.Close()

	node := storagenode.New(id, conn, log, cfg.PrintEveryChunk)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- node.Run(ctx, cfg.Durability > 0) }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("storage: shutting down")
		cancel()
	case err := <-done:
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("storage: run loop exited")
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

func mustGetenv(k string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	fmt.Fprintf(os.Stderr, "missing env %s\n", k)
	os.Exit(1)
	return ""
}
