// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

package sca

// ValueKind is the expected runtime kind of a field's JSON value.
type ValueKind int

const (
	KindString ValueKind = iota
	KindInt
	KindBool
	KindArray
	KindObject
)

// rule is one validation condition: the field must have the given kind, and
// when mandatory it must be present. All rules of a ruleset are independent
// conjuncts; ordering only affects which failure is hit first.
type rule struct {
	field     Field
	kind      ValueKind
	mandatory bool
}

// isValid checks a ruleset against the source side of the event. A present
// field must match its declared kind exactly (no coercion); an absent field
// fails only when mandatory.
func (dc *DecodeContext) isValid(rules []rule) bool {
	for _, r := range rules {
		path := dc.Paths.Source(r.field)
		if !dc.Event.Exists(path) {
			if r.mandatory {
				return false
			}
			continue
		}
		if !dc.hasKind(path, r.kind) {
			return false
		}
	}
	return true
}

func (dc *DecodeContext) hasKind(path string, kind ValueKind) bool {
	switch kind {
	case KindString:
		_, ok := dc.Event.GetString(path)
		return ok
	case KindInt:
		_, ok := dc.Event.GetInt(path)
		return ok
	case KindBool:
		_, ok := dc.Event.GetBool(path)
		return ok
	case KindArray:
		_, ok := dc.Event.GetArray(path)
		return ok
	case KindObject:
		_, ok := dc.Event.GetObject(path)
		return ok
	default:
		return false
	}
}

// checkRules validates Check events. The check object, its id and title, the
// row id, and the policy identity are mandatory; detail fields are optional
// but must be well-typed when present.
var checkRules = []rule{
	{FieldCheckCommand, KindString, false},
	{FieldCheckCompliance, KindObject, false},
	{FieldCheckCondition, KindString, false},
	{FieldCheckDescription, KindString, false},
	{FieldCheckDirectory, KindString, false},
	{FieldCheckFile, KindString, false},
	{FieldCheckID, KindInt, true},
	{FieldCheckProcess, KindString, false},
	{FieldCheckRationale, KindString, false},
	{FieldCheckReason, KindString, false},
	{FieldCheckReferences, KindString, false},
	{FieldCheckRegistry, KindString, false},
	{FieldCheckRemediation, KindString, false},
	{FieldCheckResult, KindString, false},
	{FieldCheckRules, KindArray, false},
	{FieldCheckTitle, KindString, true},
	{FieldCheck, KindObject, true},
	{FieldID, KindInt, true},
	{FieldPolicyID, KindString, true},
	{FieldPolicy, KindString, true},
}

// summaryRules validates Summary (scan info) events. first_scan and
// force_alert are presence-only flags: their value is never inspected, so
// they carry no rule here.
var summaryRules = []rule{
	{FieldPolicyID, KindString, true},
	{FieldScanID, KindInt, true},
	{FieldStartTime, KindInt, true},
	{FieldEndTime, KindInt, true},
	{FieldPassed, KindInt, true},
	{FieldFailed, KindInt, true},
	{FieldInvalid, KindInt, true},
	{FieldTotalChecks, KindInt, true},
	{FieldScore, KindInt, true},
	{FieldHash, KindString, true},
	{FieldHashFile, KindString, true},
	{FieldFile, KindString, true},
	{FieldDescription, KindString, false},
	{FieldReferences, KindString, false},
	{FieldName, KindString, true},
}

// policiesRules validates Policies events.
var policiesRules = []rule{
	{FieldPolicies, KindArray, true},
}

// dumpEndRules validates DumpEnd events.
var dumpEndRules = []rule{
	{FieldElementsSent, KindInt, true},
	{FieldPolicyID, KindString, true},
	{FieldScanID, KindInt, true},
}
