// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

// Package config holds application configuration loaded from defaults, an
// optional YAML file, and environment variables, in that order of
// precedence (env highest).
//
// Config is immutable after Load and safe for concurrent reads.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration.
type Config struct {
	NATS    NATSConfig    `koanf:"nats"`
	Store   StoreConfig   `koanf:"store"`
	Dump    DumpConfig    `koanf:"dump"`
	Decoder DecoderConfig `koanf:"decoder"`
	DLQ     DLQConfig     `koanf:"dlq"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
}

// NATSConfig holds event transport settings.
//
// Environment Variables:
//   - NATS_URL: External NATS server URL
//   - NATS_EMBEDDED: Run an embedded JetStream server (default: true)
//   - NATS_STORE_DIR: JetStream storage directory for the embedded server
type NATSConfig struct {
	// URL of the NATS server. Ignored when EmbeddedServer is true.
	URL string `koanf:"url" validate:"required"`

	// EmbeddedServer runs a self-contained JetStream instance.
	EmbeddedServer bool `koanf:"embedded_server"`

	// StoreDir is the embedded server's JetStream storage directory.
	StoreDir string `koanf:"store_dir"`

	// MaxMemory and MaxStore bound embedded JetStream resources.
	MaxMemory int64 `koanf:"max_memory"`
	MaxStore  int64 `koanf:"max_store"`

	// Topic carries raw agent events; OutputTopic carries decoded ones.
	Topic       string `koanf:"topic" validate:"required"`
	OutputTopic string `koanf:"output_topic"`

	// DurableName and QueueGroup identify this consumer group.
	DurableName string `koanf:"durable_name" validate:"required"`
	QueueGroup  string `koanf:"queue_group"`

	// SubscribersCount is the number of concurrent subscription loops.
	SubscribersCount int `koanf:"subscribers_count" validate:"min=1"`

	// AckWaitTimeout is how long JetStream waits for an ack before
	// redelivering.
	AckWaitTimeout time.Duration `koanf:"ack_wait_timeout"`

	// MaxDeliver caps redelivery attempts per message.
	MaxDeliver int `koanf:"max_deliver"`
}

// StoreConfig holds per-agent store connection settings.
//
// Environment Variables:
//   - STORE_SOCKET: Unix socket path of the store daemon
//   - STORE_TIMEOUT: Per-query round-trip timeout
type StoreConfig struct {
	// SocketPath is the unix stream socket the store daemon listens on.
	SocketPath string `koanf:"socket_path" validate:"required"`

	// Timeout bounds one query round trip.
	Timeout time.Duration `koanf:"timeout" validate:"min=0"`

	// BreakerEnabled wraps the client in a circuit breaker.
	BreakerEnabled bool `koanf:"breaker_enabled"`
}

// DumpConfig holds dump-request channel settings.
//
// Environment Variables:
//   - DUMP_SOCKET: Unix datagram socket receiving dump requests
//   - DUMP_MIN_INTERVAL: Minimum spacing between dump requests per
//     (agent, policy); 0 disables suppression
type DumpConfig struct {
	// SocketPath is the unix datagram socket dump requests are sent to.
	SocketPath string `koanf:"socket_path" validate:"required"`

	// MinInterval suppresses repeat dump requests for the same
	// (agent, policy) within the window. Zero disables suppression.
	MinInterval time.Duration `koanf:"min_interval" validate:"min=0"`
}

// DecoderConfig holds event document layout settings.
type DecoderConfig struct {
	// SourcePath is the path of the raw SCA sub-object on incoming events.
	SourcePath string `koanf:"source_path" validate:"required"`

	// AgentIDPath is the path of the originating agent's id.
	AgentIDPath string `koanf:"agent_id_path" validate:"required"`

	// TargetField is the boolean outcome field written on every event.
	TargetField string `koanf:"target_field" validate:"required"`

	// DestPath is the root of the normalized output sub-object.
	DestPath string `koanf:"dest_path"`
}

// DLQConfig holds dead-letter store settings.
type DLQConfig struct {
	// Path is the badger database directory.
	Path string `koanf:"path" validate:"required"`

	// RetentionTime bounds how long dead-lettered payloads are kept.
	RetentionTime time.Duration `koanf:"retention_time" validate:"min=0"`

	// SyncWrites forces an fsync per write.
	SyncWrites bool `koanf:"sync_writes"`
}

// ServerConfig holds HTTP server settings for health and metrics
// endpoints.
type ServerConfig struct {
	Host    string        `koanf:"host" validate:"required"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout" validate:"min=0"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	// Level is the minimum log level.
	Level string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`

	// Format is json or console.
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller includes caller file and line in log output.
	Caller bool `koanf:"caller"`
}

// Validate checks the configuration for structural errors.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("config field %s failed %q validation", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("config validation: %w", err)
	}

	if c.NATS.EmbeddedServer && c.NATS.StoreDir == "" {
		return fmt.Errorf("nats.store_dir is required with the embedded server")
	}

	return nil
}
