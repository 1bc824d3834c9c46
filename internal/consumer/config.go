// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

package consumer

import (
	"errors"
	"time"
)

// SubscriberConfig holds JetStream subscriber settings.
type SubscriberConfig struct {
	// URL is the NATS server address.
	URL string

	// DurableName is the durable consumer name prefix. Restarts resume from
	// the last acked message.
	DurableName string

	// QueueGroup enables load balancing across multiple instances.
	QueueGroup string

	// SubscribersCount is the number of concurrent pull loops.
	SubscribersCount int

	// AckWaitTimeout is how long JetStream waits for an ack before redelivery.
	AckWaitTimeout time.Duration

	// MaxDeliver caps redelivery attempts per message.
	MaxDeliver int

	// MaxAckPending caps unacked messages in flight.
	MaxAckPending int

	// CloseTimeout bounds subscriber shutdown.
	CloseTimeout time.Duration

	// MaxReconnects and ReconnectWait control NATS connection retry.
	// MaxReconnects of -1 retries forever.
	MaxReconnects int
	ReconnectWait time.Duration

	// StreamName binds to an existing stream instead of auto-provisioning.
	// Required for wildcard topics.
	StreamName string
}

// DefaultSubscriberConfig returns production settings for the given URL.
func DefaultSubscriberConfig(url string) SubscriberConfig {
	return SubscriberConfig{
		URL:              url,
		DurableName:      "confwatch-sca",
		QueueGroup:       "confwatch-sca",
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		MaxDeliver:       5,
		MaxAckPending:    1000,
		CloseTimeout:     10 * time.Second,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
	}
}

// Validate checks subscriber configuration.
func (c *SubscriberConfig) Validate() error {
	if c.URL == "" {
		return errors.New("subscriber URL is required")
	}
	if c.DurableName == "" {
		return errors.New("subscriber durable name is required")
	}
	if c.SubscribersCount < 1 {
		return errors.New("subscribers count must be at least 1")
	}
	return nil
}

// PublisherConfig holds JetStream publisher settings.
type PublisherConfig struct {
	// URL is the NATS server address.
	URL string

	// MaxReconnects and ReconnectWait control NATS connection retry.
	MaxReconnects int
	ReconnectWait time.Duration

	// ReconnectBuffer is the bytes buffered while disconnected.
	ReconnectBuffer int

	// EnableTrackMsgID sets Nats-Msg-Id headers for broker-side
	// deduplication.
	EnableTrackMsgID bool
}

// DefaultPublisherConfig returns production settings for the given URL.
func DefaultPublisherConfig(url string) PublisherConfig {
	return PublisherConfig{
		URL:              url,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
		ReconnectBuffer:  8 * 1024 * 1024,
		EnableTrackMsgID: true,
	}
}

// ServerConfig holds embedded NATS server settings.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// DLQConfig holds dead-letter store settings.
type DLQConfig struct {
	// Path is the badger database directory.
	Path string

	// RetentionTime bounds how long dead-lettered payloads are kept.
	RetentionTime time.Duration

	// SyncWrites forces an fsync per write. Slower but crash safe.
	SyncWrites bool
}

// DefaultDLQConfig returns production settings rooted at dir.
func DefaultDLQConfig(dir string) DLQConfig {
	return DLQConfig{
		Path:          dir,
		RetentionTime: 7 * 24 * time.Hour,
		SyncWrites:    true,
	}
}
