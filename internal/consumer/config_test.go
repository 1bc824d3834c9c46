// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

package consumer

import "testing"

func TestSubscriberConfigValidate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		cfg := DefaultSubscriberConfig("nats://127.0.0.1:4222")
		if err := cfg.Validate(); err != nil {
			t.Errorf("default config invalid: %v", err)
		}
	})

	t.Run("missing URL", func(t *testing.T) {
		cfg := DefaultSubscriberConfig("")
		if err := cfg.Validate(); err == nil {
			t.Error("empty URL accepted")
		}
	})

	t.Run("missing durable name", func(t *testing.T) {
		cfg := DefaultSubscriberConfig("nats://127.0.0.1:4222")
		cfg.DurableName = ""
		if err := cfg.Validate(); err == nil {
			t.Error("empty durable name accepted")
		}
	})

	t.Run("zero subscribers", func(t *testing.T) {
		cfg := DefaultSubscriberConfig("nats://127.0.0.1:4222")
		cfg.SubscribersCount = 0
		if err := cfg.Validate(); err == nil {
			t.Error("zero subscribers accepted")
		}
	})
}

func TestDefaultConfigs(t *testing.T) {
	sub := DefaultSubscriberConfig("nats://host:4222")
	if sub.MaxReconnects != -1 {
		t.Errorf("MaxReconnects = %d, want unlimited", sub.MaxReconnects)
	}
	if sub.MaxDeliver != 5 {
		t.Errorf("MaxDeliver = %d", sub.MaxDeliver)
	}

	pub := DefaultPublisherConfig("nats://host:4222")
	if !pub.EnableTrackMsgID {
		t.Error("deduplication headers disabled by default")
	}

	dlq := DefaultDLQConfig("/tmp/dlq")
	if dlq.RetentionTime <= 0 {
		t.Error("retention must be positive by default")
	}
	if !dlq.SyncWrites {
		t.Error("sync writes disabled by default")
	}
}
