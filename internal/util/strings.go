package util

import "strings"

// NormalizeCodes trims whitespace, removes empty strings, and deduplicates codes
// while preserving order of first occurrence.
func NormalizeCodes(ss []string) []string {
	seen := make(map[string]struct{}, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// CollapseSpace lowercases s and folds every run of whitespace into a single
// space. Used before substring matching of page messages.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
