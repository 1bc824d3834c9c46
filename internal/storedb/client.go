// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

// Package storedb implements the textual query protocol against the
// per-agent persistent store over a unix stream socket.
//
// Each query is a single request/response round trip. Frames are
// length-prefixed with a 4-byte little-endian header. Responses start with
// a result code token ("ok", "due", "err", "ign") followed by an optional
// payload.
package storedb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/confwatch/confwatch/internal/logging"
	"github.com/confwatch/confwatch/internal/metrics"
	"github.com/confwatch/confwatch/internal/sca"
)

// maxFrameSize bounds a single protocol frame; larger responses indicate a
// corrupt stream.
const maxFrameSize = 64 * 1024 * 1024

// ErrFrameTooLarge is returned when a response frame exceeds maxFrameSize.
var ErrFrameTooLarge = errors.New("storedb: response frame too large")

// Config holds store client settings.
type Config struct {
	// SocketPath is the unix socket the store listens on.
	SocketPath string
	// Timeout bounds one full query round trip. Zero means no deadline
	// beyond the caller's context.
	Timeout time.Duration
}

// Client is a store client over a unix stream socket. It connects lazily
// and reconnects after transport errors. The internal mutex serializes
// queries, so a Client may be shared across goroutines; requests are
// strictly sequential on the wire either way.
type Client struct {
	cfg Config

	mu   sync.Mutex
	conn net.Conn
}

// NewClient creates a client for the store socket at path.
func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// Query sends one textual query and returns the parsed result. A transport
// failure closes the connection so the next call dials afresh.
func (c *Client) Query(ctx context.Context, query string) (sca.StoreResult, error) {
	verb := queryVerb(query)
	start := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	payload, err := c.roundTrip(ctx, query)
	metrics.StoreQueryDuration.WithLabelValues(verb).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StoreQueryErrors.WithLabelValues(verb).Inc()
		c.closeLocked()
		return sca.StoreResult{}, err
	}

	result := parseResponse(payload)
	if !result.OK {
		metrics.StoreQueryErrors.WithLabelValues(verb).Inc()
	}
	return result, nil
}

// Close shuts down the connection. The client may still be used afterwards;
// the next query reconnects.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

func (c *Client) closeLocked() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			logging.Debug().Err(err).Msg("store socket close failed")
		}
		c.conn = nil
	}
}

func (c *Client) roundTrip(ctx context.Context, query string) (string, error) {
	if c.conn == nil {
		dialer := net.Dialer{}
		conn, err := dialer.DialContext(ctx, "unix", c.cfg.SocketPath)
		if err != nil {
			return "", fmt.Errorf("dial store socket: %w", err)
		}
		c.conn = conn
	}

	deadline, ok := ctx.Deadline()
	if c.cfg.Timeout > 0 {
		d := time.Now().Add(c.cfg.Timeout)
		if !ok || d.Before(deadline) {
			deadline = d
		}
		ok = true
	}
	if ok {
		if err := c.conn.SetDeadline(deadline); err != nil {
			return "", fmt.Errorf("set store socket deadline: %w", err)
		}
	}

	if err := writeFrame(c.conn, []byte(query)); err != nil {
		return "", fmt.Errorf("send store query: %w", err)
	}

	resp, err := readFrame(c.conn)
	if err != nil {
		return "", fmt.Errorf("read store response: %w", err)
	}
	return string(resp), nil
}

func writeFrame(w io.Writer, payload []byte) error {
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(header[:])
	if size > maxFrameSize {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// parseResponse splits the leading result code token off the response.
// Only "ok" counts as success; "due", "err", "ign" and anything else are
// carried through as non-OK with their payload intact for logging.
func parseResponse(resp string) sca.StoreResult {
	code, payload, _ := strings.Cut(resp, " ")
	return sca.StoreResult{
		OK:      code == "ok",
		Payload: payload,
	}
}

// queryVerb extracts the protocol verb from "agent {id} sca {verb} ..."
// for metric labels.
func queryVerb(query string) string {
	fields := strings.SplitN(query, " ", 5)
	if len(fields) >= 4 && fields[0] == "agent" && fields[2] == "sca" {
		return fields[3]
	}
	return "unknown"
}
