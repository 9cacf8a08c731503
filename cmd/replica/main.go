// Package main runs a single Triod replica process. See internal/replicanode
// for the implementation. One process mirrors exactly one storage id, set
// via STORAGE_ID; the process self-terminates once it completes a RELOCATE.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dreamware/triod/internal/broker"
	"github.com/dreamware/triod/internal/config"
	"github.com/dreamware/triod/internal/replicanode"
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
		log.Fatal().Err(err).Msg("replica: failed to connect to broker")
	}
	defer conn.Close()

	node := replicanode.New(id, conn, log, cfg.ChunkSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- node.Run(ctx, cfg.Durability > 0) }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("replica: shutting down")
		cancel()
	case err := <-done:
		if err != nil && ctx.Err() == nil {
			log.Info().Err(err).Msg("replica: run loop exited")
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
