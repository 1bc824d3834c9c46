// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

package sca

import "fmt"

// queryBuilder assembles the textual store protocol requests for one agent.
// Every verb gets its own method so call sites cannot mismatch the
// positional, pipe-delimited argument orders the protocol requires.
type queryBuilder struct {
	agentID string
}

// queryCheck looks up the previous result of a check.
func (q queryBuilder) queryCheck(checkID int) string {
	return fmt.Sprintf("agent %s sca query %d", q.agentID, checkID)
}

// updateCheck updates a previously seen check result.
func (q queryBuilder) updateCheck(checkID int, result, status, reason string, id int) string {
	return fmt.Sprintf("agent %s sca update %d|%s|%s|%s|%d",
		q.agentID, checkID, result, status, reason, id)
}

// insertCheck stores a first-seen check; the payload is the raw source
// event object serialized as JSON.
func (q queryBuilder) insertCheck(rawEvent string) string {
	return fmt.Sprintf("agent %s sca insert %s", q.agentID, rawEvent)
}

// insertCompliance stores one compliance key/value pair for a check.
func (q queryBuilder) insertCompliance(checkID int, key, value string) string {
	return fmt.Sprintf("agent %s sca insert_compliance %d|%s|%s",
		q.agentID, checkID, key, value)
}

// insertRule stores one rule association for a check.
func (q queryBuilder) insertRule(checkID int, ruleType, rule string) string {
	return fmt.Sprintf("agent %s sca insert_rules %d|%s|%s",
		q.agentID, checkID, ruleType, rule)
}

// queryScan looks up the stored scan summary for a policy.
func (q queryBuilder) queryScan(policyID string) string {
	return fmt.Sprintf("agent %s sca query_scan %s", q.agentID, policyID)
}

// updateScanInfo updates the stored scan summary. Argument order is fixed
// by the protocol: policy id first, then the numeric scan fields, hash last.
func (q queryBuilder) updateScanInfo(policyID string, startTime, endTime, scanID, passed, failed, invalid, totalChecks, score int, hash string) string {
	return fmt.Sprintf("agent %s sca update_scan_info_start %s|%d|%d|%d|%d|%d|%d|%d|%d|%s",
		q.agentID, policyID, startTime, endTime, scanID, passed, failed, invalid, totalChecks, score, hash)
}

// insertScanInfo stores a first-seen scan summary. Unlike updateScanInfo
// the policy id sits after the scan id.
func (q queryBuilder) insertScanInfo(startTime, endTime, scanID int, policyID string, passed, failed, invalid, totalChecks, score int, hash string) string {
	return fmt.Sprintf("agent %s sca insert_scan_info %d|%d|%d|%s|%d|%d|%d|%d|%d|%s",
		q.agentID, startTime, endTime, scanID, policyID, passed, failed, invalid, totalChecks, score, hash)
}

// queryPolicy checks whether policy metadata exists.
func (q queryBuilder) queryPolicy(policyID string) string {
	return fmt.Sprintf("agent %s sca query_policy %s", q.agentID, policyID)
}

// insertPolicy stores policy metadata.
func (q queryBuilder) insertPolicy(name, file, policyID, description, references, hashFile string) string {
	return fmt.Sprintf("agent %s sca insert_policy %s|%s|%s|%s|%s|%s",
		q.agentID, name, file, policyID, description, references, hashFile)
}

// queryPolicySHA256 looks up the stored content hash of a policy file.
func (q queryBuilder) queryPolicySHA256(policyID string) string {
	return fmt.Sprintf("agent %s sca query_policy_sha256 %s", q.agentID, policyID)
}

// deletePolicy removes policy metadata.
func (q queryBuilder) deletePolicy(policyID string) string {
	return fmt.Sprintf("agent %s sca delete_policy %s", q.agentID, policyID)
}

// deleteCheck removes the checks belonging to a policy.
func (q queryBuilder) deleteCheck(policyID string) string {
	return fmt.Sprintf("agent %s sca delete_check %s", q.agentID, policyID)
}

// queryPolicies retrieves the comma-separated policy ids known for the
// agent. The verb takes no argument; the trailing space is part of the
// wire format.
func (q queryBuilder) queryPolicies() string {
	return fmt.Sprintf("agent %s sca query_policies ", q.agentID)
}

// queryResults looks up the stored check-results hash for a policy.
func (q queryBuilder) queryResults(policyID string) string {
	return fmt.Sprintf("agent %s sca query_results %s", q.agentID, policyID)
}

// deleteCheckDistinct removes check rows for a policy whose scan id differs
// from the given one, stale leftovers of a previous, possibly aborted dump.
func (q queryBuilder) deleteCheckDistinct(policyID string, scanID int) string {
	return fmt.Sprintf("agent %s sca delete_check_distinct %s|%d", q.agentID, policyID, scanID)
}
