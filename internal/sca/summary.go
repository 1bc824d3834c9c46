// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

package sca

import (
	"context"
	"errors"
	"strings"

	"github.com/confwatch/confwatch/internal/logging"
)

// ErrInvalidSummaryEvent is returned when a Summary event fails validation.
var ErrInvalidSummaryEvent = errors.New("invalid summary event")

// saveScanInfo persists the scan summary, as an update when the policy's
// scan row already exists and as an insert otherwise. All thirteen
// mandatory fields were validated before this point.
func saveScanInfo(ctx context.Context, dc *DecodeContext, update bool) bool {
	startTime, _ := dc.SrcInt(FieldStartTime)
	endTime, _ := dc.SrcInt(FieldEndTime)
	scanID, _ := dc.SrcInt(FieldScanID)
	passed, _ := dc.SrcInt(FieldPassed)
	failed, _ := dc.SrcInt(FieldFailed)
	invalid, _ := dc.SrcInt(FieldInvalid)
	totalChecks, _ := dc.SrcInt(FieldTotalChecks)
	score, _ := dc.SrcInt(FieldScore)
	hash, _ := dc.SrcString(FieldHash)
	policyID, _ := dc.SrcString(FieldPolicyID)

	qb := queryBuilder{agentID: dc.AgentID}
	var query string
	if update {
		query = qb.updateScanInfo(policyID, startTime, endTime, scanID, passed, failed, invalid, totalChecks, score, hash)
	} else {
		query = qb.insertScanInfo(startTime, endTime, scanID, policyID, passed, failed, invalid, totalChecks, score, hash)
	}

	if res, err := dc.Store.Query(ctx, query); err != nil || !res.OK {
		logging.Warn().
			Str("agent_id", dc.AgentID).
			Str("policy_id", policyID).
			Msg("SCA error saving scan info")
		return false
	}
	return true
}

// insertPolicyInfo stores the policy metadata carried by the summary.
// Absent optional fields are stored as the literal NULL the protocol uses.
func insertPolicyInfo(ctx context.Context, dc *DecodeContext) {
	qb := queryBuilder{agentID: dc.AgentID}
	query := qb.insertPolicy(
		dc.SrcStringOr(FieldName, "NULL"),
		dc.SrcStringOr(FieldFile, "NULL"),
		dc.SrcStringOr(FieldPolicyID, "NULL"),
		dc.SrcStringOr(FieldDescription, "NULL"),
		dc.SrcStringOr(FieldReferences, "NULL"),
		dc.SrcStringOr(FieldHashFile, "NULL"),
	)

	if res, err := dc.Store.Query(ctx, query); err != nil || !res.OK {
		logging.Warn().Str("agent_id", dc.AgentID).Msg("SCA error saving policy info")
	}
}

// reconcilePolicyInfo handles a policy whose metadata row already exists:
// when the stored file hash no longer matches the event's, the policy
// content changed on the agent: drop the policy and its checks and
// request a full first-scan dump.
func reconcilePolicyInfo(ctx context.Context, dc *DecodeContext, policyID string) {
	qb := queryBuilder{agentID: dc.AgentID}
	outcome, storedHashFile := search(ctx, dc.Store, qb.queryPolicySHA256(policyID), true)

	switch outcome {
	case Found:
		eventHashFile, _ := dc.SrcString(FieldHashFile)
		if storedHashFile != eventHashFile {
			if deletePolicyAndChecks(ctx, dc, policyID) {
				pushDumpRequest(dc, policyID, true)
			}
		} else {
			logging.Debug().
				Str("agent_id", dc.AgentID).
				Str("policy_id", policyID).
				Msg("SCA policy file hash unchanged")
		}
	case NotFound:
		// Nothing on record to reconcile against.
	case SearchError:
		logging.Warn().
			Str("agent_id", dc.AgentID).
			Str("policy_id", policyID).
			Msg("SCA error querying policy sha256")
	}
}

// deletePolicyAndChecks removes a policy and cascades to its checks. The
// policy delete gates the cascade; a failed check delete is logged but the
// operation still counts as done.
func deletePolicyAndChecks(ctx context.Context, dc *DecodeContext, policyID string) bool {
	qb := queryBuilder{agentID: dc.AgentID}

	if res, err := dc.Store.Query(ctx, qb.deletePolicy(policyID)); err != nil || !res.OK {
		logging.Warn().
			Str("agent_id", dc.AgentID).
			Str("policy_id", policyID).
			Msg("SCA error deleting policy")
		return false
	}

	if res, err := dc.Store.Query(ctx, qb.deleteCheck(policyID)); err != nil || !res.OK {
		logging.Warn().
			Str("agent_id", dc.AgentID).
			Str("policy_id", policyID).
			Msg("SCA error deleting checks for policy")
	}

	return true
}

// checkResultsAndDump runs the integrity check: compare the stored
// check-results hash against the summary's hash and request a resync dump
// when they diverge or when the store has nothing for this policy.
func checkResultsAndDump(ctx context.Context, dc *DecodeContext, policyID string, firstScan bool, eventHash string) {
	qb := queryBuilder{agentID: dc.AgentID}
	outcome, storedHash := search(ctx, dc.Store, qb.queryResults(policyID), true)

	requestDump := false
	switch outcome {
	case Found:
		if storedHash != eventHash {
			requestDump = true
			logging.Debug().
				Str("agent_id", dc.AgentID).
				Str("policy_id", policyID).
				Str("stored_hash", storedHash).
				Str("event_hash", eventHash).
				Msg("SCA scan result integrity failed, requesting dump")
		}
	case NotFound:
		// Empty local state for this policy.
		requestDump = true
		logging.Debug().
			Str("agent_id", dc.AgentID).
			Str("policy_id", policyID).
			Msg("SCA check results empty, requesting dump")
	case SearchError:
		logging.Warn().
			Str("agent_id", dc.AgentID).
			Str("policy_id", policyID).
			Msg("SCA error querying check results")
	}

	if requestDump {
		pushDumpRequest(dc, policyID, firstScan)
	}
}

// fillScanInfo writes the normalized summary fields onto the destination
// side. The source "name" field is renamed to "policy".
func fillScanInfo(dc *DecodeContext) {
	dc.Event.SetString(dc.Paths.Dest(FieldType), "summary")
	dc.Event.Copy(dc.Paths.Dest(FieldPolicy), dc.Paths.Source(FieldName))

	dc.copyIfExists(FieldScanID)
	dc.copyIfExists(FieldDescription)
	dc.copyIfExists(FieldPolicyID)
	dc.copyIfExists(FieldPassed)
	dc.copyIfExists(FieldFailed)
	dc.copyIfExists(FieldInvalid)
	dc.copyIfExists(FieldTotalChecks)
	dc.copyIfExists(FieldScore)
	dc.copyIfExists(FieldFile)
}

// handleScanInfo reconciles a Summary (scan info) event: persist the scan
// row, decide whether to normalize, keep the policy metadata in sync, and
// run the results integrity check.
func handleScanInfo(ctx context.Context, dc *DecodeContext) error {
	if !dc.isValid(summaryRules) {
		return ErrInvalidSummaryEvent
	}

	policyID, _ := dc.SrcString(FieldPolicyID)
	eventHash, _ := dc.SrcString(FieldHash)
	firstScan := dc.ExistsSrc(FieldFirstScan)

	qb := queryBuilder{agentID: dc.AgentID}
	outcome, scanInfo := search(ctx, dc.Store, qb.queryScan(policyID), true)

	normalize := false
	update := false
	switch outcome {
	case Found:
		update = true
		// The stored payload is "<hash>[ <scan_id>...]"; only the hash
		// matters here.
		storedHash := strings.SplitN(scanInfo, " ", 2)[0]
		differentHash := storedHash != eventHash
		newHash := differentHash && !firstScan
		forceAlert := dc.ExistsSrc(FieldForceAlert)
		normalize = newHash || forceAlert
	case NotFound:
		update = false
		normalize = true
	case SearchError:
		// Without knowing the stored state there is no safe insert/update
		// choice; skip the save entirely.
		logging.Warn().
			Str("agent_id", dc.AgentID).
			Str("policy_id", policyID).
			Msg("SCA error querying scan info")
	}

	if outcome != SearchError && saveScanInfo(ctx, dc, update) {
		if normalize {
			fillScanInfo(dc)
		}
		// A brand-new policy on its first scan gets a full resync so the
		// store catches up with every individual check.
		if !update && firstScan {
			pushDumpRequest(dc, policyID, true)
		}
	}

	// Policy metadata sync is independent of the scan row above.
	polOutcome, _ := search(ctx, dc.Store, qb.queryPolicy(policyID), false)
	switch polOutcome {
	case Found:
		reconcilePolicyInfo(ctx, dc, policyID)
	case NotFound:
		insertPolicyInfo(ctx, dc)
	case SearchError:
		logging.Warn().
			Str("agent_id", dc.AgentID).
			Str("policy_id", policyID).
			Msg("SCA error querying policy info")
	}

	checkResultsAndDump(ctx, dc, policyID, firstScan, eventHash)

	return nil
}
