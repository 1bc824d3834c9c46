// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

package sca

import (
	"fmt"
	"strings"
)

// Field identifies one logical field of an SCA event. The set is closed:
// every field carries a fixed relative path on both the source (raw agent
// payload) and destination (normalized output) sides of the document.
type Field int

const (
	FieldRoot Field = iota
	FieldID
	FieldScanID
	FieldDescription
	FieldReferences
	FieldStartTime
	FieldEndTime
	FieldPassed
	FieldFailed
	FieldInvalid
	FieldTotalChecks
	FieldScore
	FieldHash
	FieldHashFile
	FieldFile
	FieldName
	FieldFirstScan
	FieldForceAlert
	FieldPolicy
	FieldPolicyID
	FieldPolicies
	FieldCheck
	FieldCheckID
	FieldCheckTitle
	FieldCheckDescription
	FieldCheckRationale
	FieldCheckRemediation
	FieldCheckReferences
	FieldCheckCompliance
	FieldCheckCondition
	FieldCheckDirectory
	FieldCheckProcess
	FieldCheckRegistry
	FieldCheckCommand
	FieldCheckRules
	FieldCheckStatus
	FieldCheckReason
	FieldCheckResult
	FieldCheckFile
	FieldElementsSent
	FieldType
	FieldCheckPreviousResult

	fieldCount
)

// relativePath returns the field's path relative to the SCA sub-object.
// An unknown field is a programming error, not a runtime condition.
func (f Field) relativePath() string {
	switch f {
	case FieldRoot:
		return ""
	case FieldID:
		return "/id"
	case FieldScanID:
		return "/scan_id"
	case FieldDescription:
		return "/description"
	case FieldReferences:
		return "/references"
	case FieldStartTime:
		return "/start_time"
	case FieldEndTime:
		return "/end_time"
	case FieldPassed:
		return "/passed"
	case FieldFailed:
		return "/failed"
	case FieldInvalid:
		return "/invalid"
	case FieldTotalChecks:
		return "/total_checks"
	case FieldScore:
		return "/score"
	case FieldHash:
		return "/hash"
	case FieldHashFile:
		return "/hash_file"
	case FieldFile:
		return "/file"
	case FieldName:
		return "/name"
	case FieldFirstScan:
		return "/first_scan"
	case FieldForceAlert:
		return "/force_alert"
	case FieldPolicy:
		return "/policy"
	case FieldPolicyID:
		return "/policy_id"
	case FieldPolicies:
		return "/policies"
	case FieldCheck:
		return "/check"
	case FieldCheckID:
		return "/check/id"
	case FieldCheckTitle:
		return "/check/title"
	case FieldCheckDescription:
		return "/check/description"
	case FieldCheckRationale:
		return "/check/rationale"
	case FieldCheckRemediation:
		return "/check/remediation"
	case FieldCheckReferences:
		return "/check/references"
	case FieldCheckCompliance:
		return "/check/compliance"
	case FieldCheckCondition:
		return "/check/condition"
	case FieldCheckDirectory:
		return "/check/directory"
	case FieldCheckProcess:
		return "/check/process"
	case FieldCheckRegistry:
		return "/check/registry"
	case FieldCheckCommand:
		return "/check/command"
	case FieldCheckRules:
		return "/check/rules"
	case FieldCheckStatus:
		return "/check/status"
	case FieldCheckReason:
		return "/check/reason"
	case FieldCheckResult:
		return "/check/result"
	case FieldCheckFile:
		return "/check/file"
	case FieldElementsSent:
		return "/elements_sent"
	case FieldType:
		return "/type"
	case FieldCheckPreviousResult:
		return "/check/previous_result"
	default:
		panic(fmt.Sprintf("sca: unknown field %d", int(f)))
	}
}

// PathTable is the static bidirectional mapping from logical fields to
// absolute document paths. Source paths sit under the raw SCA sub-object,
// destination paths under the normalized output sub-object. The table is
// total over the closed field set and immutable once built.
type PathTable struct {
	source [fieldCount]string
	dest   [fieldCount]string
}

// NewPathTable builds a path table rooted at the given source and
// destination sub-object paths (for example "/event/original" and "/sca").
func NewPathTable(sourceRoot, destRoot string) *PathTable {
	sourceRoot = strings.TrimSuffix(sourceRoot, "/")
	destRoot = strings.TrimSuffix(destRoot, "/")

	t := &PathTable{}
	for f := Field(0); f < fieldCount; f++ {
		rel := f.relativePath()
		t.source[f] = sourceRoot + rel
		t.dest[f] = destRoot + rel
	}
	return t
}

// Source returns the absolute source path of a field.
func (t *PathTable) Source(f Field) string {
	if f < 0 || f >= fieldCount {
		panic(fmt.Sprintf("sca: source path for unknown field %d", int(f)))
	}
	return t.source[f]
}

// Dest returns the absolute destination path of a field.
func (t *PathTable) Dest(f Field) string {
	if f < 0 || f >= fieldCount {
		panic(fmt.Sprintf("sca: dest path for unknown field %d", int(f)))
	}
	return t.dest[f]
}
