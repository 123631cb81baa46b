package content

import "strings"

// splitQName divides a raw qualified name into its prefix and local parts
// (spec §3's QName triple, built incrementally as the prefix is only
// resolvable once the whole start tag — and its xmlns attributes — has
// been seen).
func splitQName(raw string) (prefix, local string) {
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		return raw[:i], raw[i+1:]
	}
	return "", raw
}
