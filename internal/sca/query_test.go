// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

package sca

import "testing"

// The store protocol is positional and pipe-delimited; argument order is
// part of the wire contract and must never drift.
func TestQueryBuilder(t *testing.T) {
	qb := queryBuilder{agentID: "007"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "query check",
			got:  qb.queryCheck(42),
			want: "agent 007 sca query 42",
		},
		{
			name: "update check",
			got:  qb.updateCheck(42, "failed", "", "", 1858),
			want: "agent 007 sca update 42|failed|||1858",
		},
		{
			name: "insert check",
			got:  qb.insertCheck(`{"check":{"id":42}}`),
			want: `agent 007 sca insert {"check":{"id":42}}`,
		},
		{
			name: "insert compliance",
			got:  qb.insertCompliance(42, "cis", "1.1.1"),
			want: "agent 007 sca insert_compliance 42|cis|1.1.1",
		},
		{
			name: "insert rule",
			got:  qb.insertRule(42, "file", "f:/etc/ssh/sshd_config"),
			want: "agent 007 sca insert_rules 42|file|f:/etc/ssh/sshd_config",
		},
		{
			name: "query scan",
			got:  qb.queryScan("cis_debian"),
			want: "agent 007 sca query_scan cis_debian",
		},
		{
			name: "update scan info puts policy id first",
			got:  qb.updateScanInfo("cis_debian", 100, 200, 17, 10, 2, 1, 13, 77, "abc"),
			want: "agent 007 sca update_scan_info_start cis_debian|100|200|17|10|2|1|13|77|abc",
		},
		{
			name: "insert scan info puts policy id fourth",
			got:  qb.insertScanInfo(100, 200, 17, "cis_debian", 10, 2, 1, 13, 77, "abc"),
			want: "agent 007 sca insert_scan_info 100|200|17|cis_debian|10|2|1|13|77|abc",
		},
		{
			name: "query policy",
			got:  qb.queryPolicy("cis_debian"),
			want: "agent 007 sca query_policy cis_debian",
		},
		{
			name: "insert policy",
			got:  qb.insertPolicy("CIS Debian", "cis.yml", "cis_debian", "desc", "refs", "hash"),
			want: "agent 007 sca insert_policy CIS Debian|cis.yml|cis_debian|desc|refs|hash",
		},
		{
			name: "query policy sha256",
			got:  qb.queryPolicySHA256("cis_debian"),
			want: "agent 007 sca query_policy_sha256 cis_debian",
		},
		{
			name: "delete policy",
			got:  qb.deletePolicy("cis_debian"),
			want: "agent 007 sca delete_policy cis_debian",
		},
		{
			name: "delete check",
			got:  qb.deleteCheck("cis_debian"),
			want: "agent 007 sca delete_check cis_debian",
		},
		{
			name: "query policies keeps trailing space",
			got:  qb.queryPolicies(),
			want: "agent 007 sca query_policies ",
		},
		{
			name: "query results",
			got:  qb.queryResults("cis_debian"),
			want: "agent 007 sca query_results cis_debian",
		},
		{
			name: "delete check distinct",
			got:  qb.deleteCheckDistinct("cis_debian", 17),
			want: "agent 007 sca delete_check_distinct cis_debian|17",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q\nwant %q", tt.got, tt.want)
			}
		})
	}
}
