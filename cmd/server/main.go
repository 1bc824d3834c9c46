// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

// Package main is the entry point for the ConfWatch server.
//
// ConfWatch consumes Security Configuration Assessment events published
// by monitored agents, reconciles them against each agent's persistent
// store, and requests full policy dumps when the stored state drifts from
// what the agent reports.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: defaults, optional YAML file, environment variables
//     (Koanf v2)
//  2. Logging: zerolog global logger
//  3. Store client: unix socket client for the per-agent store, wrapped
//     in a circuit breaker
//  4. Dump channel: unix datagram sender for policy dump requests
//  5. NATS: embedded JetStream server (default) or external broker
//  6. Consumer: durable subscription feeding events through the decoder,
//     with a badger-backed dead-letter store for unparseable payloads
//  7. HTTP server: health and Prometheus metrics endpoints
//
// Components 6 and 7 run under a suture supervision tree and restart
// independently on failure.
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the consumer
// stops pulling messages, in-flight events finish decoding, and the
// dead-letter store and sockets close.
//
// # Example Usage
//
// Standalone with the embedded broker:
//
//	export STORE_SOCKET=/var/run/confwatch/store.sock
//	export DUMP_SOCKET=/var/run/confwatch/requests.sock
//	./confwatch
//
// Against an external NATS cluster:
//
//	export NATS_EMBEDDED=false
//	export NATS_URL=nats://broker:4222
//	./confwatch
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/confwatch/confwatch/internal/config"
	"github.com/confwatch/confwatch/internal/dumpsock"
	"github.com/confwatch/confwatch/internal/logging"
	"github.com/confwatch/confwatch/internal/sca"
	"github.com/confwatch/confwatch/internal/server"
	"github.com/confwatch/confwatch/internal/storedb"
	"github.com/confwatch/confwatch/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Msg("Starting ConfWatch")

	// Store client, optionally behind a circuit breaker.
	storeClient := storedb.NewClient(storedb.Config{
		SocketPath: cfg.Store.SocketPath,
		Timeout:    cfg.Store.Timeout,
	})
	var store sca.StoreClient = storeClient
	if cfg.Store.BreakerEnabled {
		store = storedb.NewBreakerClient(storeClient)
		logging.Info().Msg("Store circuit breaker enabled")
	}
	defer func() {
		if err := storeClient.Close(); err != nil {
			logging.Error().Err(err).Msg("Closing store client failed")
		}
	}()

	dumpChannel := dumpsock.New(cfg.Dump.SocketPath)
	defer dumpChannel.Disconnect()

	decoder, err := sca.NewDecoder(sca.DecoderConfig{
		SourcePath:      cfg.Decoder.SourcePath,
		AgentIDPath:     cfg.Decoder.AgentIDPath,
		TargetField:     cfg.Decoder.TargetField,
		DestPath:        cfg.Decoder.DestPath,
		DumpMinInterval: cfg.Dump.MinInterval,
		Store:           store,
		Dump:            dumpChannel,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create decoder")
	}

	// NATS transport, consumer pipeline, dead-letter store.
	nats, err := initNATS(cfg, decoder)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize NATS")
	}
	defer nats.Shutdown(context.Background())

	// HTTP surface for health and metrics.
	httpServer := server.New(cfg.Server)
	httpServer.RegisterReadyCheck("nats", nats.IsRunning)

	// Supervision tree.
	tree := supervisor.NewTree(
		slog.New(slog.NewJSONHandler(os.Stderr, nil)),
		supervisor.DefaultTreeConfig(),
	)
	tree.AddIngestService(nats.Consumer)
	tree.AddOpsService(httpServer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Received shutdown signal")
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor terminated with error")
		}
	case err := <-errCh:
		if err != nil {
			logging.Error().Err(err).Msg("Supervisor terminated")
		}
	}

	stop()
	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
		}
	}

	logging.Info().Msg("ConfWatch stopped")
}
