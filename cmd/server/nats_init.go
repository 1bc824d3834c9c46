// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/confwatch/confwatch/internal/config"
	"github.com/confwatch/confwatch/internal/consumer"
	"github.com/confwatch/confwatch/internal/logging"
	"github.com/confwatch/confwatch/internal/sca"
)

// natsComponents holds all NATS-related components for lifecycle
// management.
type natsComponents struct {
	server     *consumer.EmbeddedServer
	subscriber *consumer.Subscriber
	publisher  *consumer.Publisher
	dlq        *consumer.DLQStore

	// Consumer is the supervised pipeline service.
	Consumer *consumer.Consumer

	mu      sync.Mutex
	running bool
}

// initNATS brings up the event transport and the consumer pipeline.
func initNATS(cfg *config.Config, decoder *sca.Decoder) (*natsComponents, error) {
	components := &natsComponents{}

	var natsURL string
	if cfg.NATS.EmbeddedServer {
		serverCfg := consumer.ServerConfig{
			Host:              "127.0.0.1",
			Port:              4222,
			StoreDir:          cfg.NATS.StoreDir,
			JetStreamMaxMem:   cfg.NATS.MaxMemory,
			JetStreamMaxStore: cfg.NATS.MaxStore,
		}
		srv, err := consumer.NewEmbeddedServer(&serverCfg)
		if err != nil {
			return nil, err
		}
		components.server = srv
		natsURL = srv.ClientURL()
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server started")
	} else {
		natsURL = cfg.NATS.URL
		logging.Info().Str("url", natsURL).Msg("Using external NATS server")
	}

	subscriberCfg := consumer.DefaultSubscriberConfig(natsURL)
	subscriberCfg.DurableName = cfg.NATS.DurableName
	subscriberCfg.QueueGroup = cfg.NATS.QueueGroup
	subscriberCfg.SubscribersCount = cfg.NATS.SubscribersCount
	subscriberCfg.AckWaitTimeout = cfg.NATS.AckWaitTimeout
	subscriberCfg.MaxDeliver = cfg.NATS.MaxDeliver

	sub, err := consumer.NewSubscriber(&subscriberCfg, nil)
	if err != nil {
		components.Shutdown(context.Background())
		return nil, fmt.Errorf("create subscriber: %w", err)
	}
	components.subscriber = sub

	var pub *consumer.Publisher
	if cfg.NATS.OutputTopic != "" {
		pub, err = consumer.NewPublisher(consumer.DefaultPublisherConfig(natsURL), nil)
		if err != nil {
			components.Shutdown(context.Background())
			return nil, fmt.Errorf("create publisher: %w", err)
		}
		components.publisher = pub
	}

	dlq, err := consumer.OpenDLQStore(consumer.DLQConfig{
		Path:          cfg.DLQ.Path,
		RetentionTime: cfg.DLQ.RetentionTime,
		SyncWrites:    cfg.DLQ.SyncWrites,
	})
	if err != nil {
		components.Shutdown(context.Background())
		return nil, fmt.Errorf("open dead-letter store: %w", err)
	}
	components.dlq = dlq

	pipeline, err := consumer.New(consumer.Config{
		Topic:       cfg.NATS.Topic,
		OutputTopic: cfg.NATS.OutputTopic,
	}, sub, pub, dlq, decoder)
	if err != nil {
		components.Shutdown(context.Background())
		return nil, fmt.Errorf("create consumer: %w", err)
	}
	components.Consumer = pipeline

	components.mu.Lock()
	components.running = true
	components.mu.Unlock()

	logging.Info().
		Str("topic", cfg.NATS.Topic).
		Str("durable", cfg.NATS.DurableName).
		Msg("Event processing initialized")
	return components, nil
}

// IsRunning reports whether the transport is up. Used by the readiness
// endpoint.
func (c *natsComponents) IsRunning() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return false
	}
	if c.server != nil {
		return c.server.IsRunning()
	}
	return true
}

// Shutdown stops all NATS components.
//
// Order matters: subscriber first so no new messages arrive, then the
// publisher, the dead-letter store, and the embedded server last.
func (c *natsComponents) Shutdown(ctx context.Context) {
	if c == nil {
		return
	}

	c.mu.Lock()
	wasRunning := c.running
	c.running = false
	c.mu.Unlock()

	if wasRunning {
		logging.Info().Msg("Shutting down NATS components...")
	}

	if c.subscriber != nil {
		if err := c.subscriber.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing subscriber")
		}
	}
	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing publisher")
		}
	}
	if c.dlq != nil {
		if err := c.dlq.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing dead-letter store")
		}
	}
	if c.server != nil {
		if err := c.server.Shutdown(ctx); err != nil {
			logging.Error().Err(err).Msg("Error shutting down NATS server")
		}
	}
}
