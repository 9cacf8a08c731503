// Package main runs the Triod manager process: the cluster's front door,
// hash ring owner, and liveness detector. See internal/manager for the
// implementation; this file only wires configuration, logging, and
// graceful shutdown, mirroring the teacher's cmd/coordinator/main.go.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dreamware/triod/internal/broker"
	"github.com/dreamware/triod/internal/config"
	"github.com/dreamware/triod/internal/manager"
	"github.com/dreamware/triod/internal/telemetry"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	telemetry.Init(telemetry.Config{Level: telemetry.InfoLevel})
	log := telemetry.WithComponent("manager")

	conn, err := broker.Dial(cfg.BrokerURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("manager: failed to connect to broker")
	}
	defer conn.Close()

	storageIDs := make([]string, cfg.NumStorages)
	for i := range storageIDs {
		storageIDs[i] = fmt.Sprintf("%d", i)
	}

	m := manager.New(conn, log, storageIDs, cfg.HashPrefix, cfg.PingInterval(), cfg.MaxRetries, cfg.Durability > 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := m.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("manager: run loop exited")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("manager: shutting down")
	cancel()
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
