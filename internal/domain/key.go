package domain

import "strings"

// KeyKind says which attribute a canonical key was derived from.
type KeyKind int

const (
	// KeyNone marks an article with neither a DOI nor a usable title.
	// Such articles cannot be deduplicated safely.
	KeyNone KeyKind = iota
	KeyDOI
	KeyTitle
)

// CanonicalKey is the deduplication identity of an article: the DOI when
// present, otherwise the normalized title.
type CanonicalKey struct {
	Kind  KeyKind
	Value string
}

// KeyFor derives the canonical key for a doi/title pair. Titles are
// trimmed, casefolded and whitespace-collapsed before use, since the
// upstream listing and the indexed copy of the same article often differ
// in incidental whitespace.
func KeyFor(doi, title string) CanonicalKey {
	if d := strings.TrimSpace(doi); d != "" {
		return CanonicalKey{Kind: KeyDOI, Value: d}
	}
	if t := normalizeTitle(title); t != "" {
		return CanonicalKey{Kind: KeyTitle, Value: t}
	}
	return CanonicalKey{Kind: KeyNone}
}

func normalizeTitle(title string) string {
	fields := strings.Fields(strings.ToLower(title))
	return strings.Join(fields, " ")
}
