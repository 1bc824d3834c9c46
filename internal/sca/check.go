// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

package sca

import (
	"context"
	"errors"

	"github.com/confwatch/confwatch/internal/logging"
)

// ErrInvalidCheckEvent is returned when a Check event fails validation.
var ErrInvalidCheckEvent = errors.New("invalid check event")

// ErrCheckQuery is returned when the previous-result lookup fails; without
// it there is no safe way to choose between insert and update.
var ErrCheckQuery = errors.New("error querying check state")

// isValidCheckEvent applies the Check ruleset plus the cross-field rules:
// at least one of result/status must be present, and status requires a
// reason alongside it.
func isValidCheckEvent(dc *DecodeContext) bool {
	if !dc.isValid(checkRules) {
		return false
	}

	hasResult := dc.ExistsSrc(FieldCheckResult)
	hasStatus := dc.ExistsSrc(FieldCheckStatus)
	hasReason := dc.ExistsSrc(FieldCheckReason)

	if !hasResult && !hasStatus {
		return false
	}
	if hasStatus && !hasReason {
		return false
	}
	return true
}

// fillCheckEvent writes the normalized check fields onto the destination
// side: the type tag, the previous result on record, the identity and
// detail fields, and the result (or status/reason pair) verbatim. The
// comma-separated detail lists are expanded into arrays.
func fillCheckEvent(dc *DecodeContext, previousResult string) {
	dc.Event.SetString(dc.Paths.Dest(FieldType), "check")

	if previousResult != "" {
		dc.Event.SetString(dc.Paths.Dest(FieldCheckPreviousResult), previousResult)
	}

	dc.copyIfExists(FieldID)
	dc.copyIfExists(FieldPolicy)
	dc.copyIfExists(FieldPolicyID)

	dc.copyIfExists(FieldCheckID)
	dc.copyIfExists(FieldCheckTitle)
	dc.copyIfExists(FieldCheckDescription)
	dc.copyIfExists(FieldCheckRationale)
	dc.copyIfExists(FieldCheckRemediation)
	dc.copyIfExists(FieldCheckCompliance)
	dc.copyIfExists(FieldCheckReferences)

	dc.csvToArrayIfExists(FieldCheckFile)
	dc.csvToArrayIfExists(FieldCheckDirectory)
	dc.csvToArrayIfExists(FieldCheckRegistry)
	dc.csvToArrayIfExists(FieldCheckProcess)
	dc.csvToArrayIfExists(FieldCheckCommand)

	if dc.ExistsSrc(FieldCheckResult) {
		dc.Event.Copy(dc.Paths.Dest(FieldCheckResult), dc.Paths.Source(FieldCheckResult))
	} else {
		dc.copyIfExists(FieldCheckStatus)
		dc.copyIfExists(FieldCheckReason)
	}
}

// insertCompliance persists the compliance key/value pairs of a first-seen
// check. Each pair is independent and best-effort; a failed insert is
// logged and does not abort its siblings.
func insertCompliance(ctx context.Context, dc *DecodeContext, checkID int) {
	compliance, ok := dc.SrcObject(FieldCheckCompliance)
	if !ok {
		return
	}

	qb := queryBuilder{agentID: dc.AgentID}
	for key, raw := range compliance {
		value, ok := raw.(string)
		if !ok {
			logging.Warn().
				Str("agent_id", dc.AgentID).
				Str("key", key).
				Msg("SCA compliance item is not a string, skipping")
			continue
		}

		res, err := dc.Store.Query(ctx, qb.insertCompliance(checkID, key, value))
		if err != nil || !res.OK {
			logging.Warn().
				Str("agent_id", dc.AgentID).
				Int("check_id", checkID).
				Str("key", key).
				Msg("SCA failed to insert compliance entry")
		}
	}
}

// ruleTypeFor maps a rule's leading character to its type name.
func ruleTypeFor(r byte) (string, bool) {
	switch r {
	case 'f':
		return "file", true
	case 'd':
		return "directory", true
	case 'r':
		return "registry", true
	case 'c':
		return "command", true
	case 'p':
		return "process", true
	case 'n':
		return "numeric", true
	default:
		return "", false
	}
}

// insertRules persists the rule associations of a first-seen check.
// Rules with an unmapped leading character are skipped with a warning.
// Best-effort, like insertCompliance.
func insertRules(ctx context.Context, dc *DecodeContext, checkID int) {
	rules, ok := dc.SrcArray(FieldCheckRules)
	if !ok {
		return
	}

	qb := queryBuilder{agentID: dc.AgentID}
	for _, raw := range rules {
		ruleStr, ok := raw.(string)
		if !ok {
			logging.Warn().
				Str("agent_id", dc.AgentID).
				Int("check_id", checkID).
				Msg("SCA rule is not a string, skipping")
			continue
		}
		if ruleStr == "" {
			logging.Warn().
				Str("agent_id", dc.AgentID).
				Int("check_id", checkID).
				Msg("SCA rule is empty, skipping")
			continue
		}

		ruleType, ok := ruleTypeFor(ruleStr[0])
		if !ok {
			logging.Warn().
				Str("agent_id", dc.AgentID).
				Str("rule", ruleStr).
				Msg("SCA invalid rule type, skipping")
			continue
		}

		res, err := dc.Store.Query(ctx, qb.insertRule(checkID, ruleType, ruleStr))
		if err != nil || !res.OK {
			logging.Warn().
				Str("agent_id", dc.AgentID).
				Int("check_id", checkID).
				Str("rule", ruleStr).
				Msg("SCA failed to insert rule")
		}
	}
}

// handleCheckEvent reconciles a single check result against the store:
// validate, look up the previous result, insert or update accordingly,
// persist compliance/rules on first sight, and normalize when the result
// changed.
func handleCheckEvent(ctx context.Context, dc *DecodeContext) error {
	if !isValidCheckEvent(dc) {
		logging.Warn().Str("agent_id", dc.AgentID).Msg("SCA invalid check event, discarding")
		return ErrInvalidCheckEvent
	}

	// Mandatory per the ruleset; the optional trio defaults to empty.
	checkID, _ := dc.SrcInt(FieldCheckID)
	result := dc.SrcStringOr(FieldCheckResult, "")
	status := dc.SrcStringOr(FieldCheckStatus, "")
	reason := dc.SrcStringOr(FieldCheckReason, "")

	qb := queryBuilder{agentID: dc.AgentID}
	prevOutcome, previousResult := search(ctx, dc.Store, qb.queryCheck(checkID), true)

	var saveQuery string
	switch prevOutcome {
	case Found:
		id := dc.SrcIntOr(FieldID, -1)
		saveQuery = qb.updateCheck(checkID, result, status, reason, id)
	case NotFound:
		raw, ok := dc.Event.RawJSON(dc.Paths.Source(FieldRoot))
		if !ok {
			raw = "{}"
		}
		saveQuery = qb.insertCheck(raw)
	case SearchError:
		logging.Warn().
			Str("agent_id", dc.AgentID).
			Int("check_id", checkID).
			Msg("SCA error querying check state")
		return ErrCheckQuery
	}

	// Best-effort persistence: a failed save is logged but the event is
	// still normalized from what we know.
	if res, err := dc.Store.Query(ctx, saveQuery); err != nil || !res.OK {
		logging.Warn().
			Str("agent_id", dc.AgentID).
			Int("check_id", checkID).
			Msg("SCA error saving check state")
	}

	// First time this check is seen: persist its compliance entries and
	// rule associations too.
	if prevOutcome == NotFound {
		insertCompliance(ctx, dc, checkID)
		insertRules(ctx, dc, checkID)
	}

	var normalize bool
	if result != "" {
		normalize = previousResult != result
	} else if status != "" {
		normalize = previousResult != status
	}

	if normalize {
		fillCheckEvent(dc, previousResult)
	}

	return nil
}
