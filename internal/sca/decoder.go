// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

package sca

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/confwatch/confwatch/internal/metrics"
)

// Event kind discriminator values carried in the source type field.
const (
	TypeCheck    = "check"
	TypeSummary  = "summary"
	TypePolicies = "policies"
	TypeDumpEnd  = "dump_end"
)

// ErrSourceNotFound is returned when the source SCA object or the agent-id
// field is missing, or the agent id is not a string.
var ErrSourceNotFound = errors.New("source field not found")

// ErrUnknownType is returned when the type discriminator holds an
// unrecognized value.
var ErrUnknownType = errors.New("unknown event type")

// DecoderConfig describes where a decoder reads and writes on the event
// document and how it reaches its collaborators.
type DecoderConfig struct {
	// SourcePath is the path of the raw SCA sub-object on incoming events.
	SourcePath string
	// AgentIDPath is the path of the originating agent's id field.
	AgentIDPath string
	// TargetField is the boolean outcome field written on every event.
	TargetField string
	// DestPath is the root of the normalized output sub-object.
	// Defaults to "/sca".
	DestPath string
	// DumpMinInterval is the minimum spacing between dump requests for the
	// same (agent, policy). Zero disables suppression.
	DumpMinInterval time.Duration

	Store StoreClient
	Dump  DumpChannel
}

// Decoder classifies incoming SCA events and reconciles them against the
// per-agent store. The store and dump-channel handles it holds are shared
// across invocations and are not synchronized here: the caller must
// guarantee at most one in-flight Decode per Decoder instance, or wrap the
// handles in its own synchronization before sharing an instance.
type Decoder struct {
	sourcePath  string
	agentIDPath string
	targetField string
	paths       *PathTable
	store       StoreClient
	dump        DumpChannel
	limiter     *dumpLimiter
}

// NewDecoder builds a decoder from the given configuration.
func NewDecoder(cfg DecoderConfig) (*Decoder, error) {
	if cfg.SourcePath == "" {
		return nil, errors.New("sca: source path is required")
	}
	if cfg.AgentIDPath == "" {
		return nil, errors.New("sca: agent id path is required")
	}
	if cfg.TargetField == "" {
		return nil, errors.New("sca: target field is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("sca: store client is required")
	}
	if cfg.Dump == nil {
		return nil, errors.New("sca: dump channel is required")
	}

	destPath := cfg.DestPath
	if destPath == "" {
		destPath = "/sca"
	}

	return &Decoder{
		sourcePath:  cfg.SourcePath,
		agentIDPath: cfg.AgentIDPath,
		targetField: cfg.TargetField,
		paths:       NewPathTable(cfg.SourcePath, destPath),
		store:       cfg.Store,
		dump:        cfg.Dump,
		limiter:     newDumpLimiter(cfg.DumpMinInterval),
	}, nil
}

// Decode processes one event: classify its kind, dispatch to the matching
// handler, and record the outcome as a boolean field on the event itself.
// The returned error mirrors the outcome flag; the event is never discarded
// from the surrounding pipeline, only flagged.
func (d *Decoder) Decode(ctx context.Context, event *Event) error {
	err := d.decode(ctx, event)
	event.SetBool(d.targetField, err == nil)
	return err
}

func (d *Decoder) decode(ctx context.Context, event *Event) error {
	agentID, ok := event.GetString(d.agentIDPath)
	if !event.Exists(d.sourcePath) || !ok {
		metrics.EventsDecoded.WithLabelValues("unknown", "failure").Inc()
		return fmt.Errorf("%w: %s", ErrSourceNotFound, d.sourcePath)
	}

	dc := &DecodeContext{
		Event:   event,
		AgentID: agentID,
		Store:   d.store,
		Dump:    d.dump,
		Paths:   d.paths,
		limiter: d.limiter,
	}

	eventType, ok := event.GetString(d.paths.Source(FieldType))
	if !ok {
		metrics.EventsDecoded.WithLabelValues("unknown", "failure").Inc()
		return fmt.Errorf("%w: %s/type", ErrSourceNotFound, d.sourcePath)
	}

	var err error
	switch eventType {
	case TypeCheck:
		err = handleCheckEvent(ctx, dc)
	case TypeSummary:
		err = handleScanInfo(ctx, dc)
	case TypePolicies:
		err = handlePoliciesInfo(ctx, dc)
	case TypeDumpEnd:
		err = handleDumpEnd(ctx, dc)
	default:
		metrics.EventsDecoded.WithLabelValues("unknown", "failure").Inc()
		return fmt.Errorf("%w: %q", ErrUnknownType, eventType)
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.EventsDecoded.WithLabelValues(eventType, outcome).Inc()

	return err
}
