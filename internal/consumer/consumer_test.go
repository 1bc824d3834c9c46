// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/confwatch/confwatch/internal/sca"
)

// stubStore answers every query with "not found" so decode paths run
// without a real store process.
type stubStore struct{}

func (stubStore) Query(ctx context.Context, query string) (sca.StoreResult, error) {
	return sca.StoreResult{OK: true, Payload: "not found"}, nil
}

type stubDump struct{}

func (stubDump) IsConnected() bool { return true }

func (stubDump) Connect() error { return nil }

func (stubDump) Send(string) sca.SendStatus { return sca.SendSuccess }

func (stubDump) Disconnect() {}

func newTestDecoder(t *testing.T) *sca.Decoder {
	t.Helper()

	d, err := sca.NewDecoder(sca.DecoderConfig{
		SourcePath:  "/event/original",
		AgentIDPath: "/agent/id",
		TargetField: "/sca_decoded",
		Store:       stubStore{},
		Dump:        stubDump{},
	})
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}
	return d
}

func waitAcked(t *testing.T, msg *message.Message) {
	t.Helper()

	select {
	case <-msg.Acked():
	case <-msg.Nacked():
		t.Fatal("message nacked, want acked")
	case <-time.After(time.Second):
		t.Fatal("message neither acked nor nacked")
	}
}

func TestNewValidation(t *testing.T) {
	decoder := newTestDecoder(t)
	sub := &Subscriber{}

	if _, err := New(Config{}, sub, nil, nil, decoder); err == nil {
		t.Error("missing topic accepted")
	}
	if _, err := New(Config{Topic: "sca.events"}, nil, nil, nil, decoder); err == nil {
		t.Error("missing subscriber accepted")
	}
	if _, err := New(Config{Topic: "sca.events"}, sub, nil, nil, nil); err == nil {
		t.Error("missing decoder accepted")
	}
}

func TestHandleMessageDecodes(t *testing.T) {
	c, err := New(Config{Topic: "sca.events"}, &Subscriber{}, nil, nil, newTestDecoder(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	payload := []byte(`{"agent":{"id":"007"},"event":{"original":{
		"type":"check","id":1,"policy":"p","policy_id":"pid",
		"check":{"id":2,"title":"t","result":"passed"}}}`)
	msg := message.NewMessage("uuid-1", payload)

	c.handleMessage(context.Background(), msg)
	waitAcked(t, msg)
}

func TestHandleMessageFlaggedEventStillAcked(t *testing.T) {
	c, err := New(Config{Topic: "sca.events"}, &Subscriber{}, nil, nil, newTestDecoder(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// Valid JSON but an unknown event type: flagged, not dead-lettered.
	msg := message.NewMessage("uuid-2", []byte(`{"agent":{"id":"007"},"event":{"original":{"type":"bogus"}}}`))

	c.handleMessage(context.Background(), msg)
	waitAcked(t, msg)
}

func TestHandleMessageDeadLettersPoison(t *testing.T) {
	dlq := openTestDLQ(t)
	c, err := New(Config{Topic: "sca.events"}, &Subscriber{}, nil, dlq, newTestDecoder(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()

	msg := message.NewMessage("poison-1", []byte("not json"))
	c.handleMessage(ctx, msg)
	waitAcked(t, msg)

	entry, err := dlq.Get(ctx, "poison-1")
	if err != nil {
		t.Fatalf("dead-letter entry missing: %v", err)
	}
	if string(entry.Payload) != "not json" || entry.Topic != "sca.events" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", entry.RetryCount)
	}
}

func TestHandleMessageDeadLetterRedelivery(t *testing.T) {
	dlq := openTestDLQ(t)
	c, err := New(Config{Topic: "sca.events"}, &Subscriber{}, nil, dlq, newTestDecoder(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()

	first := message.NewMessage("poison-2", []byte("still not json"))
	c.handleMessage(ctx, first)
	waitAcked(t, first)

	entry, err := dlq.Get(ctx, "poison-2")
	if err != nil {
		t.Fatalf("entry missing after first delivery: %v", err)
	}
	firstFailure := entry.FirstFailure

	redelivered := message.NewMessage("poison-2", []byte("still not json"))
	c.handleMessage(ctx, redelivered)
	waitAcked(t, redelivered)

	entry, err = dlq.Get(ctx, "poison-2")
	if err != nil {
		t.Fatalf("entry missing after redelivery: %v", err)
	}
	if entry.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", entry.RetryCount)
	}
	if !entry.FirstFailure.Equal(firstFailure) {
		t.Errorf("FirstFailure moved: %v -> %v", firstFailure, entry.FirstFailure)
	}
}

func TestHandleMessageWithoutDLQ(t *testing.T) {
	c, err := New(Config{Topic: "sca.events"}, &Subscriber{}, nil, nil, newTestDecoder(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// No dead-letter store configured: poison is logged and acked anyway.
	msg := message.NewMessage("poison-3", []byte("not json"))
	c.handleMessage(context.Background(), msg)
	waitAcked(t, msg)
}
