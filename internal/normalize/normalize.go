// Package normalize provides the canonical forms used for tag, category and creator identity.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Tag converts a free-text tag name to its canonical form.
// It applies Unicode NFC composition, trims, lower-cases and collapses
// every run of whitespace to a single space:
//
//	"  Cat  Tag " -> "cat tag"
//	"Café"        -> "café"
//
// Tag is total and idempotent: Tag(Tag(x)) == Tag(x).
func Tag(raw string) string {
	return strings.ToLower(Name(raw))
}

// Tags normalizes every entry, drops entries that normalize to empty and
// removes duplicates while keeping first-seen order.
// The result is never nil.
func Tags(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		t := Tag(r)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Name trims and collapses whitespace but keeps case.
// Used for category and creator names, where display case matters.
func Name(raw string) string {
	s := norm.NFC.String(sanitizeString(raw))

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SplitCreators splits a legacy comma-joined creator string into trimmed names.
// Empty segments are dropped.
func SplitCreators(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := Name(p); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// sanitizeString removes null bytes, which break SQLite text columns and
// some JSON consumers. Browser-extension captures occasionally include them.
func sanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		return r
	}, s)
}
