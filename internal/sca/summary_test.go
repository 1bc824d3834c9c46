// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

package sca

import (
	"context"
	"errors"
	"testing"
)

func TestHandleScanInfoInvalid(t *testing.T) {
	store := newFakeStore()
	dc := newTestContext(t, wrapSCA(`{"type":"summary","policy_id":"p"}`), store, &fakeDump{})

	err := handleScanInfo(context.Background(), dc)
	if !errors.Is(err, ErrInvalidSummaryEvent) {
		t.Fatalf("err = %v, want ErrInvalidSummaryEvent", err)
	}
	if len(store.queries) != 0 {
		t.Errorf("invalid event reached the store: %v", store.queries)
	}
}

func TestHandleScanInfoFirstSeen(t *testing.T) {
	store := newFakeStore()
	dump := &fakeDump{}
	dc := newTestContext(t, wrapSCA(validSummaryObject), store, dump)

	if err := handleScanInfo(context.Background(), dc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("inserts the scan row", func(t *testing.T) {
		inserts := store.queriesWithVerb("insert_scan_info")
		want := "agent 007 sca insert_scan_info 100|200|17|cis_debian|10|2|1|13|77|abc123"
		if len(inserts) != 1 || inserts[0] != want {
			t.Errorf("insert queries = %v", inserts)
		}
		if len(store.queriesWithVerb("update_scan_info_start")) != 0 {
			t.Errorf("unexpected update: %v", store.queries)
		}
	})

	t.Run("normalizes with name renamed to policy", func(t *testing.T) {
		if typ, _ := dc.Event.GetString("/sca/type"); typ != "summary" {
			t.Errorf("dest type = %q", typ)
		}
		if policy, _ := dc.Event.GetString("/sca/policy"); policy != "CIS Debian Benchmark" {
			t.Errorf("dest policy = %q", policy)
		}
		if score, ok := dc.Event.GetInt("/sca/score"); !ok || score != 77 {
			t.Errorf("dest score = %d, %v", score, ok)
		}
	})

	t.Run("inserts policy metadata with NULL defaults", func(t *testing.T) {
		inserts := store.queriesWithVerb("insert_policy")
		want := "agent 007 sca insert_policy CIS Debian Benchmark|cis_debian.yml|cis_debian|NULL|NULL|def456"
		if len(inserts) != 1 || inserts[0] != want {
			t.Errorf("insert_policy queries = %v", inserts)
		}
	})

	t.Run("empty local state requests a dump", func(t *testing.T) {
		if len(dump.sent) != 1 || dump.sent[0] != "007:sca-dump:cis_debian:0" {
			t.Errorf("dump messages = %v", dump.sent)
		}
	})
}

func TestHandleScanInfoFirstScanFlag(t *testing.T) {
	store := newFakeStore()
	dump := &fakeDump{}

	event := `{
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
		"name": "CIS Debian Benchmark",
		"first_scan": true
	}`
	dc := newTestContext(t, wrapSCA(event), store, dump)

	if err := handleScanInfo(context.Background(), dc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dump.sent) == 0 {
		t.Fatal("first scan of a new policy requested no dump")
	}
	if dump.sent[0] != "007:sca-dump:cis_debian:1" {
		t.Errorf("dump message = %q, want first-scan flag", dump.sent[0])
	}
}

func TestHandleScanInfoUnchanged(t *testing.T) {
	store := newFakeStore()
	store.reply("query_scan", true, "found abc123 17")
	store.reply("query_results", true, "found abc123")
	store.reply("query_policy", true, "found cis_debian")
	store.reply("query_policy_sha256", true, "found def456")
	dump := &fakeDump{}

	dc := newTestContext(t, wrapSCA(validSummaryObject), store, dump)

	if err := handleScanInfo(context.Background(), dc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updates := store.queriesWithVerb("update_scan_info_start")
	want := "agent 007 sca update_scan_info_start cis_debian|100|200|17|10|2|1|13|77|abc123"
	if len(updates) != 1 || updates[0] != want {
		t.Errorf("update queries = %v", updates)
	}

	if dc.Event.Exists("/sca/type") {
		t.Error("unchanged hash should not normalize the event")
	}
	if len(dump.sent) != 0 {
		t.Errorf("unchanged state requested dumps: %v", dump.sent)
	}
	if len(store.queriesWithVerb("delete_policy")) != 0 {
		t.Errorf("unchanged policy hash triggered a delete: %v", store.queries)
	}
}

func TestHandleScanInfoHashChanged(t *testing.T) {
	store := newFakeStore()
	store.reply("query_scan", true, "found oldhash 16")
	store.reply("query_results", true, "found oldhash")
	store.reply("query_policy", true, "found cis_debian")
	store.reply("query_policy_sha256", true, "found def456")
	dump := &fakeDump{}

	dc := newTestContext(t, wrapSCA(validSummaryObject), store, dump)

	if err := handleScanInfo(context.Background(), dc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if typ, _ := dc.Event.GetString("/sca/type"); typ != "summary" {
		t.Error("changed hash should normalize the event")
	}
	if len(dump.sent) != 1 || dump.sent[0] != "007:sca-dump:cis_debian:0" {
		t.Errorf("dump messages = %v", dump.sent)
	}
}

func TestHandleScanInfoForceAlert(t *testing.T) {
	store := newFakeStore()
	store.reply("query_scan", true, "found abc123 17")
	store.reply("query_results", true, "found abc123")
	store.reply("query_policy", true, "found cis_debian")
	store.reply("query_policy_sha256", true, "found def456")

	event := `{
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
		"name": "CIS Debian Benchmark",
		"force_alert": "1"
	}`
	dc := newTestContext(t, wrapSCA(event), store, &fakeDump{})

	if err := handleScanInfo(context.Background(), dc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if typ, _ := dc.Event.GetString("/sca/type"); typ != "summary" {
		t.Error("force_alert should normalize even with an unchanged hash")
	}
}

func TestHandleScanInfoPolicyFileChanged(t *testing.T) {
	store := newFakeStore()
	store.reply("query_scan", true, "found abc123 17")
	store.reply("query_results", true, "found abc123")
	store.reply("query_policy", true, "found cis_debian")
	store.reply("query_policy_sha256", true, "found stalehash")
	dump := &fakeDump{}

	dc := newTestContext(t, wrapSCA(validSummaryObject), store, dump)

	if err := handleScanInfo(context.Background(), dc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deletes := store.queriesWithVerb("delete_policy")
	if len(deletes) != 1 || deletes[0] != "agent 007 sca delete_policy cis_debian" {
		t.Errorf("delete_policy queries = %v", deletes)
	}
	checkDeletes := store.queriesWithVerb("delete_check")
	if len(checkDeletes) != 1 || checkDeletes[0] != "agent 007 sca delete_check cis_debian" {
		t.Errorf("delete_check queries = %v", checkDeletes)
	}
	if len(dump.sent) != 1 || dump.sent[0] != "007:sca-dump:cis_debian:1" {
		t.Errorf("dump messages = %v", dump.sent)
	}
}

func TestHandleScanInfoQueryErrorSkipsSave(t *testing.T) {
	store := newFakeStore()
	store.fail("query_scan")
	dump := &fakeDump{}

	dc := newTestContext(t, wrapSCA(validSummaryObject), store, dump)

	if err := handleScanInfo(context.Background(), dc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := len(store.queriesWithVerb("insert_scan_info")) + len(store.queriesWithVerb("update_scan_info_start")); n != 0 {
		t.Errorf("scan row saved despite query error: %v", store.queries)
	}
	if dc.Event.Exists("/sca/type") {
		t.Error("event normalized despite skipped save")
	}

	// Policy metadata sync still runs.
	if len(store.queriesWithVerb("insert_policy")) != 1 {
		t.Errorf("policy metadata not synced: %v", store.queries)
	}
}
