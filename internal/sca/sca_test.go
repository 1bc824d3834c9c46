// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

package sca

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const (
	testSourceRoot = "/event/original"
	testDestRoot   = "/sca"
	testAgentID    = "007"
)

// storeReply scripts one response for a protocol verb.
type storeReply struct {
	ok      bool
	payload string
	err     error
}

// fakeStore is a scripted StoreClient. Responses are keyed by protocol
// verb; unscripted verbs answer "ok not found". Every query is recorded
// in order.
type fakeStore struct {
	replies map[string]storeReply
	queries []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{replies: make(map[string]storeReply)}
}

func (s *fakeStore) reply(verb string, ok bool, payload string) {
	s.replies[verb] = storeReply{ok: ok, payload: payload}
}

func (s *fakeStore) fail(verb string) {
	s.replies[verb] = storeReply{err: errors.New("store down")}
}

func (s *fakeStore) Query(ctx context.Context, query string) (StoreResult, error) {
	s.queries = append(s.queries, query)

	verb := "unknown"
	if fields := strings.SplitN(query, " ", 5); len(fields) >= 4 {
		verb = fields[3]
	}

	if r, ok := s.replies[verb]; ok {
		if r.err != nil {
			return StoreResult{}, r.err
		}
		return StoreResult{OK: r.ok, Payload: r.payload}, nil
	}
	return StoreResult{OK: true, Payload: "not found"}, nil
}

// queriesWithVerb returns the recorded queries using the given verb.
func (s *fakeStore) queriesWithVerb(verb string) []string {
	var out []string
	for _, q := range s.queries {
		if fields := strings.SplitN(q, " ", 5); len(fields) >= 4 && fields[3] == verb {
			out = append(out, q)
		}
	}
	return out
}

// fakeDump is a scripted DumpChannel recording every sent message.
type fakeDump struct {
	connected   bool
	connectErr  error
	sendStatus  SendStatus
	sent        []string
	disconnects int
}

func (d *fakeDump) IsConnected() bool { return d.connected }

func (d *fakeDump) Connect() error {
	if d.connectErr != nil {
		return d.connectErr
	}
	d.connected = true
	return nil
}

func (d *fakeDump) Send(msg string) SendStatus {
	d.sent = append(d.sent, msg)
	return d.sendStatus
}

func (d *fakeDump) Disconnect() {
	d.connected = false
	d.disconnects++
}

// newTestContext parses doc as the full event document and wraps it in a
// DecodeContext against the given fakes.
func newTestContext(t *testing.T, doc string, store StoreClient, dump DumpChannel) *DecodeContext {
	t.Helper()

	event, err := ParseEvent([]byte(doc))
	if err != nil {
		t.Fatalf("ParseEvent(%q) failed: %v", doc, err)
	}

	return &DecodeContext{
		Event:   event,
		AgentID: testAgentID,
		Store:   store,
		Dump:    dump,
		Paths:   NewPathTable(testSourceRoot, testDestRoot),
		limiter: newDumpLimiter(0),
	}
}

// wrapSCA nests the given SCA object JSON under the test source root.
func wrapSCA(scaObject string) string {
	return `{"event":{"original":` + scaObject + `}}`
}
