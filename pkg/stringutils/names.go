// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package stringutils

import (
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var nameFolder = NewNormalizer(defaultNormalizerTTL, foldName)

// foldName composes to NFC, lowercases and collapses whitespace. Group file
// names arrive from different clients in both composed and decomposed forms.
func foldName(s string) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(strings.TrimSpace(s))
	return Intern(strings.Join(strings.Fields(s), " "))
}

// FoldName returns the cached comparison form of a file name.
//   - "Résumé.PDF" → "résumé.pdf"
//   - "  my   notes.txt " → "my notes.txt"
func FoldName(s string) string {
	return nameFolder.Normalize(s)
}

// BaseName strips the last extension. Names without a dot, and dot files, are
// returned unchanged.
func BaseName(name string) string {
	ext := path.Ext(name)
	if ext == "" || ext == name {
		return name
	}
	return strings.TrimSuffix(name, ext)
}
