// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in priority
// order. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/confwatch/config.yaml",
	"/etc/confwatch/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults filled in. Defaults
// apply first, then the config file, then environment variables.
func defaultConfig() *Config {
	return &Config{
		NATS: NATSConfig{
			URL:              "nats://127.0.0.1:4222",
			EmbeddedServer:   true,
			StoreDir:         "/data/nats/jetstream",
			MaxMemory:        1 << 30,
			MaxStore:         10 << 30,
			Topic:            "sca.events",
			OutputTopic:      "sca.decoded",
			DurableName:      "confwatch-sca",
			QueueGroup:       "confwatch-sca",
			SubscribersCount: 1,
			AckWaitTimeout:   30 * time.Second,
			MaxDeliver:       5,
		},
		Store: StoreConfig{
			SocketPath:     "/var/run/confwatch/store.sock",
			Timeout:        10 * time.Second,
			BreakerEnabled: true,
		},
		Dump: DumpConfig{
			SocketPath:  "/var/run/confwatch/requests.sock",
			MinInterval: 5 * time.Minute,
		},
		Decoder: DecoderConfig{
			SourcePath:  "/event/original",
			AgentIDPath: "/agent/id",
			TargetField: "/sca_decoded",
			DestPath:    "/sca",
		},
		DLQ: DLQConfig{
			Path:          "/data/confwatch/dlq",
			RetentionTime: 7 * 24 * time.Hour,
			SyncWrites:    true,
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8087,
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds configuration with Koanf v2 layered sources:
//  1. Defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - NATS_URL -> nats.url
//   - STORE_SOCKET -> store.socket_path
//   - LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// NATS mappings
		"nats_url":               "nats.url",
		"nats_embedded":          "nats.embedded_server",
		"nats_store_dir":         "nats.store_dir",
		"nats_max_memory":        "nats.max_memory",
		"nats_max_store":         "nats.max_store",
		"nats_topic":             "nats.topic",
		"nats_output_topic":      "nats.output_topic",
		"nats_durable_name":      "nats.durable_name",
		"nats_queue_group":       "nats.queue_group",
		"nats_subscribers":       "nats.subscribers_count",
		"nats_ack_wait_timeout":  "nats.ack_wait_timeout",
		"nats_max_deliver":       "nats.max_deliver",

		// Store mappings
		"store_socket":          "store.socket_path",
		"store_timeout":         "store.timeout",
		"store_breaker_enabled": "store.breaker_enabled",

		// Dump channel mappings
		"dump_socket":       "dump.socket_path",
		"dump_min_interval": "dump.min_interval",

		// Decoder mappings
		"decoder_source_path":   "decoder.source_path",
		"decoder_agent_id_path": "decoder.agent_id_path",
		"decoder_target_field":  "decoder.target_field",
		"decoder_dest_path":     "decoder.dest_path",

		// Dead-letter store mappings
		"dlq_path":        "dlq.path",
		"dlq_retention":   "dlq.retention_time",
		"dlq_sync_writes": "dlq.sync_writes",

		// Server mappings
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped so random environment variables do not
	// pollute the config.
	return ""
}

// WatchConfigFile sets up a file watcher for hot reload. The caller is
// responsible for mutex protection when swapping configuration.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
