// Package pathutil provides normalization and comparison for folder paths.
// Every cache and registry in the core keys on a normalized folder path, so
// two spellings of the same directory (trailing separator, different case,
// decomposed Unicode) must always normalize identically.
package pathutil

import (
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// separators holds every rune treated as a directory separator. On Unix the
// two entries coincide; keeping both makes the trim correct for paths that
// arrive with foreign separators (e.g. from a config file written on Windows).
const separators = "/" + string(os.PathSeparator)

// Normalize canonicalizes a folder path: NFC Unicode normalization plus
// stripping of trailing directory separators. Empty input is returned
// unchanged. Idempotent: Normalize(Normalize(p)) == Normalize(p).
//
// NFC matters because fsnotify reports paths as the kernel spells them
// (decomposed on macOS), while user input and config files are typically
// precomposed; without it the same directory would occupy two cache slots.
func Normalize(p string) string {
	if p == "" {
		return p
	}

	p = norm.NFC.String(p)

	// Keep at least one character so the filesystem root survives.
	for len(p) > 1 && strings.ContainsRune(separators, rune(p[len(p)-1])) {
		p = p[:len(p)-1]
	}

	return p
}

// Fold returns the normalized, case-folded form of p, suitable as a map key.
// Case-insensitive ordinal comparison mirrors the behavior of the
// case-insensitive filesystems the paths come from.
func Fold(p string) string {
	return strings.ToLower(Normalize(p))
}

// Equal reports whether a and b denote the same directory after
// normalization, compared case-insensitively. Two empty paths are equal;
// an empty path never equals a non-empty one.
func Equal(a, b string) bool {
	return strings.EqualFold(Normalize(a), Normalize(b))
}

// IsWithin reports whether child is parent itself or a descendant of parent.
// An empty parent contains nothing.
func IsWithin(parent, child string) bool {
	pf := Fold(parent)
	if pf == "" {
		return false
	}

	cf := Fold(child)
	if cf == pf {
		return true
	}

	if !strings.ContainsRune(separators, rune(pf[len(pf)-1])) {
		pf += string(os.PathSeparator)
	}

	return strings.HasPrefix(cf, pf)
}
