// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package stringutils holds string helpers shared by the crawler and search:
// interning of repeated folder and uploader names, and cached name folding.
package stringutils

import (
	"strings"
	"unique"
)

// Intern returns a canonical copy of s. Identical strings share memory.
func Intern(s string) string {
	if s == "" {
		return ""
	}
	return unique.Make(s).Value()
}

// InternTrimmed interns s with surrounding whitespace removed.
func InternTrimmed(s string) string {
	return Intern(strings.TrimSpace(s))
}
