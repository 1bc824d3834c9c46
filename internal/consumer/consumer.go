// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

// Package consumer runs the ingestion pipeline: a durable JetStream
// subscription feeding agent events through the SCA decoder, a publisher
// for the decoded output topic, and a badger-backed dead-letter store for
// payloads that cannot be parsed at all.
//
// Decode failures are not dead-lettered. The decoder flags the event and
// the flagged document still flows downstream; only messages that are not
// valid JSON documents stop here.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/confwatch/confwatch/internal/logging"
	"github.com/confwatch/confwatch/internal/metrics"
	"github.com/confwatch/confwatch/internal/sca"
)

// Config holds consumer pipeline settings.
type Config struct {
	// Topic is the subject agent events arrive on.
	Topic string

	// OutputTopic receives decoded events. Empty disables publishing, in
	// which case events are decoded for their store side effects only.
	OutputTopic string
}

// Consumer consumes agent events, decodes them, and republishes the
// decoded documents. It implements suture.Service via Serve.
type Consumer struct {
	cfg        Config
	subscriber *Subscriber
	publisher  *Publisher
	dlq        *DLQStore
	decoder    *sca.Decoder
}

// New assembles a consumer. Publisher and dlq may be nil; decoding
// proceeds without them.
func New(cfg Config, sub *Subscriber, pub *Publisher, dlq *DLQStore, decoder *sca.Decoder) (*Consumer, error) {
	if cfg.Topic == "" {
		return nil, errors.New("consumer topic is required")
	}
	if sub == nil {
		return nil, errors.New("subscriber is required")
	}
	if decoder == nil {
		return nil, errors.New("decoder is required")
	}

	return &Consumer{
		cfg:        cfg,
		subscriber: sub,
		publisher:  pub,
		dlq:        dlq,
		decoder:    decoder,
	}, nil
}

// Serve consumes messages until the context is canceled. Messages are
// acked once handled; a failed downstream publish nacks for redelivery.
func (c *Consumer) Serve(ctx context.Context) error {
	messages, err := c.subscriber.Subscribe(ctx, c.cfg.Topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.cfg.Topic, err)
	}

	logging.Info().
		Str("topic", c.cfg.Topic).
		Str("output_topic", c.cfg.OutputTopic).
		Msg("Consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return errors.New("subscription channel closed")
			}
			c.handleMessage(ctx, msg)
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg *message.Message) {
	event, err := sca.ParseEvent(msg.Payload)
	if err != nil {
		c.deadLetter(ctx, msg, err)
		metrics.ConsumerMessages.WithLabelValues("dead_lettered").Inc()
		// Poison payloads never become parseable; redelivery is pointless.
		msg.Ack()
		return
	}

	if err := c.decoder.Decode(ctx, event); err != nil {
		logging.Warn().
			Err(err).
			Str("message_uuid", msg.UUID).
			Msg("Event flagged by decoder")
		metrics.ConsumerMessages.WithLabelValues("flagged").Inc()
	} else {
		metrics.ConsumerMessages.WithLabelValues("decoded").Inc()
	}

	// Flagged or not, the event leaves the pipeline intact with its
	// outcome field set.
	if c.publisher != nil && c.cfg.OutputTopic != "" {
		if err := c.publishDecoded(msg, event); err != nil {
			logging.Error().
				Err(err).
				Str("message_uuid", msg.UUID).
				Msg("Publishing decoded event failed")
			msg.Nack()
			return
		}
	}

	msg.Ack()
}

func (c *Consumer) publishDecoded(src *message.Message, event *sca.Event) error {
	payload, err := event.Bytes()
	if err != nil {
		return fmt.Errorf("marshal decoded event: %w", err)
	}

	out := message.NewMessage(uuid.NewString(), payload)
	out.Metadata.Set("source_uuid", src.UUID)

	return c.publisher.Publish(c.cfg.OutputTopic, out)
}

func (c *Consumer) deadLetter(ctx context.Context, msg *message.Message, cause error) {
	logging.Warn().
		Err(cause).
		Str("message_uuid", msg.UUID).
		Msg("Dead-lettering unparseable message")

	if c.dlq == nil {
		return
	}

	now := time.Now().UTC()
	entry := &DLQEntry{
		MessageID:    msg.UUID,
		Topic:        c.cfg.Topic,
		Payload:      append([]byte(nil), msg.Payload...),
		Error:        cause.Error(),
		RetryCount:   1,
		FirstFailure: now,
		LastFailure:  now,
	}

	if prev, err := c.dlq.Get(ctx, msg.UUID); err == nil {
		entry.RetryCount = prev.RetryCount + 1
		entry.FirstFailure = prev.FirstFailure
	}

	if err := c.dlq.Save(ctx, entry); err != nil {
		logging.Error().
			Err(err).
			Str("message_uuid", msg.UUID).
			Msg("Persisting dead-letter entry failed")
	}
}
