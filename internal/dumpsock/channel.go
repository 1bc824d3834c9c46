// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

// Package dumpsock implements the dump-request channel over a unix
// datagram socket. The channel connects on demand and reconnects after
// errors; the sca package decides when to disconnect.
package dumpsock

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"

	"github.com/confwatch/confwatch/internal/logging"
	"github.com/confwatch/confwatch/internal/sca"
)

// Channel is a reconnect-capable unix datagram sender implementing
// sca.DumpChannel. The internal mutex makes it safe to share, though the
// decoder only ever uses it sequentially.
type Channel struct {
	path string

	mu   sync.Mutex
	conn net.Conn
}

// New creates a channel that sends to the unix datagram socket at path.
// No connection is attempted until the first send.
func New(path string) *Channel {
	return &Channel{path: path}
}

// IsConnected reports whether the channel currently holds a connection.
func (c *Channel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connect dials the datagram socket. Calling Connect on a connected
// channel is a no-op.
func (c *Channel) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	conn, err := net.Dial("unixgram", c.path)
	if err != nil {
		return fmt.Errorf("dial dump socket: %w", err)
	}
	c.conn = conn
	return nil
}

// Send writes one datagram. An EMSGSIZE from the kernel classifies as
// MessageTooLong; any other failure is a generic channel error.
func (c *Channel) Send(msg string) sca.SendStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return sca.SendError
	}

	if _, err := c.conn.Write([]byte(msg)); err != nil {
		if errors.Is(err, syscall.EMSGSIZE) {
			return sca.SendMessageTooLong
		}
		logging.Debug().Err(err).Msg("dump socket send failed")
		return sca.SendError
	}
	return sca.SendSuccess
}

// Disconnect drops the connection so the next Connect dials afresh.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			logging.Debug().Err(err).Msg("dump socket close failed")
		}
		c.conn = nil
	}
}
