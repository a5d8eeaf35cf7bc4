package contract

import "strings"

// Child ids are the parent id plus an alphabetic suffix. Suffixes follow the
// spreadsheet-column sequence A..Z, AA..AZ, BA..., giving siblings a total
// order and the tree an implicit encoding by prefix.

// SuffixFor returns the alphabetic suffix for a zero-based child ordinal.
func SuffixFor(ordinal int) string {
	var b strings.Builder
	n := ordinal
	for {
		b.WriteByte(byte('A' + n%26))
		n = n/26 - 1
		if n < 0 {
			break
		}
	}
	// digits were produced least-significant first
	s := []byte(b.String())
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
	return string(s)
}

// ChildID returns the id for the next child of parentID given the ids of all
// existing children. The suffix is the first unused one in sequence, so two
// allocations against the same sibling set always differ.
func ChildID(parentID string, existing []string) string {
	taken := make(map[string]bool, len(existing))
	for _, id := range existing {
		if suffix, ok := strings.CutPrefix(id, parentID); ok && suffix != "" {
			taken[suffix] = true
		}
	}
	for i := 0; ; i++ {
		suffix := SuffixFor(i)
		if !taken[suffix] {
			return parentID + suffix
		}
	}
}

// IsChildOf reports whether id names a direct or transitive child of parentID.
func IsChildOf(id, parentID string) bool {
	suffix, ok := strings.CutPrefix(id, parentID)
	if !ok || suffix == "" {
		return false
	}
	for i := 0; i < len(suffix); i++ {
		if suffix[i] < 'A' || suffix[i] > 'Z' {
			return false
		}
	}
	return true
}
