// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

package sca

import "testing"

const validCheckObject = `{
	"type": "check",
	"id": 1858,
	"policy": "CIS Debian Benchmark",
	"policy_id": "cis_debian",
	"check": {
		"id": 42,
		"title": "Ensure SSH root login is disabled",
		"result": "failed"
	}
}`

const validSummaryObject = `{
	"type": "summary",
	"policy_id": "cis_debian",
	"scan_id": 17,
	"start_time": 100,
	"end_time": 200,
	"passed": 10,
	"failed": 2,
	"invalid": 1,
	"total_checks": 13,
	"score": 77,
	"hash": "abc123",
	"hash_file": "def456",
	"file": "cis_debian.yml",
	"name": "CIS Debian Benchmark"
}`

func TestCheckRules(t *testing.T) {
	tests := []struct {
		name  string
		event string
		valid bool
	}{
		{
			name:  "valid with result",
			event: validCheckObject,
			valid: true,
		},
		{
			name: "valid with status and reason",
			event: `{"type":"check","id":1,"policy":"p","policy_id":"pid",
				"check":{"id":2,"title":"t","status":"Not applicable","reason":"no ssh"}}`,
			valid: true,
		},
		{
			name: "missing check id",
			event: `{"type":"check","id":1,"policy":"p","policy_id":"pid",
				"check":{"title":"t","result":"passed"}}`,
			valid: false,
		},
		{
			name: "missing title",
			event: `{"type":"check","id":1,"policy":"p","policy_id":"pid",
				"check":{"id":2,"result":"passed"}}`,
			valid: false,
		},
		{
			name: "check id wrong type",
			event: `{"type":"check","id":1,"policy":"p","policy_id":"pid",
				"check":{"id":"42","title":"t","result":"passed"}}`,
			valid: false,
		},
		{
			name: "neither result nor status",
			event: `{"type":"check","id":1,"policy":"p","policy_id":"pid",
				"check":{"id":2,"title":"t"}}`,
			valid: false,
		},
		{
			name: "status without reason",
			event: `{"type":"check","id":1,"policy":"p","policy_id":"pid",
				"check":{"id":2,"title":"t","status":"Not applicable"}}`,
			valid: false,
		},
		{
			name: "optional field wrong type",
			event: `{"type":"check","id":1,"policy":"p","policy_id":"pid",
				"check":{"id":2,"title":"t","result":"passed","file":123}}`,
			valid: false,
		},
		{
			name: "rules must be an array",
			event: `{"type":"check","id":1,"policy":"p","policy_id":"pid",
				"check":{"id":2,"title":"t","result":"passed","rules":"f:x"}}`,
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dc := newTestContext(t, wrapSCA(tt.event), newFakeStore(), &fakeDump{})
			if got := isValidCheckEvent(dc); got != tt.valid {
				t.Errorf("isValidCheckEvent = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestSummaryRules(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		dc := newTestContext(t, wrapSCA(validSummaryObject), newFakeStore(), &fakeDump{})
		if !dc.isValid(summaryRules) {
			t.Error("valid summary rejected")
		}
	})

	t.Run("missing hash", func(t *testing.T) {
		dc := newTestContext(t, wrapSCA(`{"type":"summary","policy_id":"p","scan_id":1,
			"start_time":1,"end_time":2,"passed":0,"failed":0,"invalid":0,
			"total_checks":0,"score":0,"hash_file":"h","file":"f","name":"n"}`),
			newFakeStore(), &fakeDump{})
		if dc.isValid(summaryRules) {
			t.Error("summary without hash accepted")
		}
	})

	t.Run("score wrong type", func(t *testing.T) {
		dc := newTestContext(t, wrapSCA(`{"type":"summary","policy_id":"p","scan_id":1,
			"start_time":1,"end_time":2,"passed":0,"failed":0,"invalid":0,
			"total_checks":0,"score":"high","hash":"h","hash_file":"hf","file":"f","name":"n"}`),
			newFakeStore(), &fakeDump{})
		if dc.isValid(summaryRules) {
			t.Error("summary with non-integer score accepted")
		}
	})

	t.Run("optional description may be absent", func(t *testing.T) {
		dc := newTestContext(t, wrapSCA(validSummaryObject), newFakeStore(), &fakeDump{})
		if !dc.isValid(summaryRules) {
			t.Error("summary without description rejected")
		}
	})
}

func TestPoliciesAndDumpEndRules(t *testing.T) {
	t.Run("policies requires array", func(t *testing.T) {
		dc := newTestContext(t, wrapSCA(`{"type":"policies","policies":"cis"}`), newFakeStore(), &fakeDump{})
		if dc.isValid(policiesRules) {
			t.Error("non-array policies accepted")
		}
	})

	t.Run("dump end requires all three fields", func(t *testing.T) {
		dc := newTestContext(t, wrapSCA(`{"type":"dump_end","policy_id":"p","scan_id":1}`), newFakeStore(), &fakeDump{})
		if dc.isValid(dumpEndRules) {
			t.Error("dump end without elements_sent accepted")
		}

		dc = newTestContext(t, wrapSCA(`{"type":"dump_end","elements_sent":3,"policy_id":"p","scan_id":1}`), newFakeStore(), &fakeDump{})
		if !dc.isValid(dumpEndRules) {
			t.Error("valid dump end rejected")
		}
	})
}
