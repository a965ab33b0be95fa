package store

import "strings"

// EscapeSegment makes a user-controlled value safe to embed between ':'
// delimiters. '_' becomes "__" first, then ':' becomes "_c", so distinct
// inputs always produce distinct segments.
func EscapeSegment(s string) string {
	if !strings.ContainsAny(s, "_:") {
		return s
	}
	s = strings.ReplaceAll(s, "_", "__")
	return strings.ReplaceAll(s, ":", "_c")
}

// UnescapeSegment reverses [EscapeSegment].
func UnescapeSegment(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '_' && i+1 < len(s) {
			switch s[i+1] {
			case '_':
				b.WriteByte('_')
				i++
				continue
			case 'c':
				b.WriteByte(':')
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
