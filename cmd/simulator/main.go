// Package main is the entry point for the inbox simulator.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-sync/internal/config"
	"github.com/capitalize-ai/inbox-sync/internal/simulator"
	"github.com/capitalize-ai/inbox-sync/pkg/logger"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting inbox simulator", zap.String("port", cfg.SimulatorPort))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := simulator.NewStore()
	hub := simulator.NewHub(log.Named("hub"))

	// Optional NATS event mirror.
	mirror, err := simulator.ConnectMirror(simulator.NATSConfig{
		URL:   cfg.NATSURL,
		Token: cfg.NATSToken,
	}, log.Named("nats"))
	if err != nil {
		log.Error("failed to connect NATS mirror", zap.Error(err))
		os.Exit(1)
	}
	if mirror != nil {
		defer mirror.Close()
		hub.SetMirror(mirror)
	}

	srv := simulator.NewServer(store, hub, cfg.SimulatorSecret, log.Named("http"))

	if cfg.SimulatorTraffic {
		generator := simulator.NewTrafficGenerator(store, hub, cfg.SimulatorInterval, log.Named("traffic"))
		go generator.Run(ctx)
	}

	server := &http.Server{
		Addr:         ":" + cfg.SimulatorPort,
		Handler:      srv.Router(cfg.RateLimitRequests, cfg.RateLimitWindow),
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	if err := simulator.ListenAndServe(ctx, server, log); err != nil {
		log.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	log.Info("simulator stopped")
}
