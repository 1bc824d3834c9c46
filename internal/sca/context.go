// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

package sca

import "strings"

// DecodeContext bundles everything a handler needs for one decoder
// invocation: the event being decoded, the originating agent, the shared
// store and dump-channel handles, and the field path tables.
//
// A context is created fresh per event and discarded afterwards; it owns no
// long-lived state. The Store and Dump handles are shared across many
// contexts (one per decoder instance) and must only see sequential use;
// the hosting pipeline guarantees at most one in-flight invocation per
// decoder instance, see Decoder.
type DecodeContext struct {
	Event   *Event
	AgentID string
	Store   StoreClient
	Dump    DumpChannel
	Paths   *PathTable

	limiter *dumpLimiter
}

// ExistsSrc reports whether the field is present on the source side.
func (dc *DecodeContext) ExistsSrc(f Field) bool {
	return dc.Event.Exists(dc.Paths.Source(f))
}

// SrcString reads a string field from the source side.
func (dc *DecodeContext) SrcString(f Field) (string, bool) {
	return dc.Event.GetString(dc.Paths.Source(f))
}

// SrcStringOr reads a string field from the source side, returning def
// when the field is absent or mistyped.
func (dc *DecodeContext) SrcStringOr(f Field, def string) string {
	if s, ok := dc.SrcString(f); ok {
		return s
	}
	return def
}

// SrcInt reads an integer field from the source side.
func (dc *DecodeContext) SrcInt(f Field) (int, bool) {
	return dc.Event.GetInt(dc.Paths.Source(f))
}

// SrcIntOr reads an integer field from the source side with a default.
func (dc *DecodeContext) SrcIntOr(f Field, def int) int {
	if n, ok := dc.SrcInt(f); ok {
		return n
	}
	return def
}

// SrcArray reads an array field from the source side.
func (dc *DecodeContext) SrcArray(f Field) ([]interface{}, bool) {
	return dc.Event.GetArray(dc.Paths.Source(f))
}

// SrcObject reads an object field from the source side.
func (dc *DecodeContext) SrcObject(f Field) (map[string]interface{}, bool) {
	return dc.Event.GetObject(dc.Paths.Source(f))
}

// copyIfExists copies a field from the source side to the destination side
// when it is present.
func (dc *DecodeContext) copyIfExists(f Field) {
	if dc.ExistsSrc(f) {
		dc.Event.Copy(dc.Paths.Dest(f), dc.Paths.Source(f))
	}
}

// csvToArrayIfExists splits a comma-separated source string field into a
// destination array, item by item. Order is preserved and items are not
// deduplicated or trimmed.
func (dc *DecodeContext) csvToArrayIfExists(f Field) {
	csv, ok := dc.SrcString(f)
	if !ok {
		return
	}

	dst := dc.Paths.Dest(f)
	dc.Event.SetArray(dst)
	for _, item := range strings.Split(csv, ",") {
		dc.Event.AppendString(dst, item)
	}
}
