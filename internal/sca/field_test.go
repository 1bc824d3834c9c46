// ConfWatch - Security Configuration Assessment Event Processing
// Copyright 2026 ConfWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/confwatch/confwatch

package sca

import "testing"

func TestPathTable(t *testing.T) {
	paths := NewPathTable("/event/original", "/sca")

	t.Run("source and dest share relative paths", func(t *testing.T) {
		if got := paths.Source(FieldCheckID); got != "/event/original/check/id" {
			t.Errorf("Source(FieldCheckID) = %q", got)
		}
		if got := paths.Dest(FieldCheckID); got != "/sca/check/id" {
			t.Errorf("Dest(FieldCheckID) = %q", got)
		}
	})

	t.Run("root maps to the sub-object itself", func(t *testing.T) {
		if got := paths.Source(FieldRoot); got != "/event/original" {
			t.Errorf("Source(FieldRoot) = %q", got)
		}
	})

	t.Run("trailing slash on roots is trimmed", func(t *testing.T) {
		p := NewPathTable("/src/", "/dst/")
		if got := p.Source(FieldType); got != "/src/type" {
			t.Errorf("Source(FieldType) = %q", got)
		}
	})

	t.Run("every field has a path", func(t *testing.T) {
		for f := Field(0); f < fieldCount; f++ {
			src := paths.Source(f)
			if f != FieldRoot && src == "/event/original" {
				t.Errorf("field %d has empty relative path", int(f))
			}
		}
	})
}
