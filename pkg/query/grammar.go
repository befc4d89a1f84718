package query

import "strings"

const (
	// Placeholder is the user-facing wildcard.
	Placeholder = '?'
	// Wildcard is the store's multi-character wildcard.
	Wildcard = "%"
)

// isHan reports whether r is in the CJK Unified Ideographs block.
func isHan(r rune) bool {
	return r >= 0x4E00 && r <= 0x9FFF
}

func isPinyinRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// ContainsHan reports whether s holds at least one CJK ideograph.
func ContainsHan(s string) bool {
	for _, r := range s {
		if isHan(r) {
			return true
		}
	}
	return false
}

// IsLiteral reports whether s is a plain word: one or more CJK ideographs and
// nothing else.
func IsLiteral(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isHan(r) {
			return false
		}
	}
	return true
}

// trimPlaceholders strips at most one placeholder from each end of rs.
func trimPlaceholders(rs []rune) []rune {
	if len(rs) > 0 && rs[0] == Placeholder {
		rs = rs[1:]
	}
	if len(rs) > 0 && rs[len(rs)-1] == Placeholder {
		rs = rs[:len(rs)-1]
	}
	return rs
}

// ValidLiteralPattern accepts an optional placeholder, one or more CJK
// ideographs, and an optional placeholder.
func ValidLiteralPattern(s string) bool {
	core := trimPlaceholders([]rune(s))
	if len(core) == 0 {
		return false
	}
	for _, r := range core {
		if !isHan(r) {
			return false
		}
	}
	return true
}

// ValidPinyinPattern checks a space-joined syllable list. Each segment is an
// optional placeholder, any run of [a-z0-9], and an optional placeholder.
// Segments are separated by exactly one space.
func ValidPinyinPattern(s string) bool {
	for _, seg := range strings.Split(s, " ") {
		for _, r := range trimPlaceholders([]rune(seg)) {
			if !isPinyinRune(r) {
				return false
			}
		}
	}
	return true
}

// ValidFuzzyTerm checks a must-contain term: lowercase letters followed by at
// most one digit.
func ValidFuzzyTerm(s string) bool {
	n := len(s)
	if n > 0 && s[n-1] >= '0' && s[n-1] <= '9' {
		n--
	}
	for i := 0; i < n; i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return false
		}
	}
	return true
}

// ToStorePattern replaces every placeholder with the store wildcard. Only
// call it on validated input.
func ToStorePattern(s string) string {
	return strings.ReplaceAll(s, string(Placeholder), Wildcard)
}

// FromStorePattern is the inverse of ToStorePattern for validated patterns.
func FromStorePattern(s string) string {
	return strings.ReplaceAll(s, Wildcard, string(Placeholder))
}
