// Package chars implements the XML 1.0 / XML 1.1 character classification
// tables the Tokenizer selects between once an entity's version is known
// (spec §4.2 "character classification", §9 "XML 1.0 vs 1.1 character
// tables"). XML 1.1 widens the Unicode ranges that may start or continue a
// Name considerably; before the version is known, the parser uses the
// intersection (effectively the 1.0 tables), since every character 1.0
// accepts is also accepted by 1.1.
package chars

import (
	"unicode"

	"github.com/bluezoo/gonzalez/version"
)

// IsWhitespace reports whether r is XML whitespace (#x20 | #x9 | #xD | #xA).
// This is identical in both versions; by the time the tokenizer sees
// characters, line-end normalization has already reduced CR and CRLF to LF.
func IsWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\r', '\n':
		return true
	default:
		return false
	}
}

// IsNameStartChar reports whether r may begin a Name under the given
// version (Unknown is treated as the 1.0 table, the conservative
// intersection of the two).
func IsNameStartChar(r rune, v version.Version) bool {
	if r == ':' || r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
		return true
	}
	if v == version.V11 {
		return isNameStartChar11(r)
	}
	return isNameStartChar10(r)
}

// IsNameChar reports whether r may continue a Name (after its first
// character) under the given version.
func IsNameChar(r rune, v version.Version) bool {
	if IsNameStartChar(r, v) {
		return true
	}
	if r == '-' || r == '.' || (r >= '0' && r <= '9') || r == 0xB7 {
		return true
	}
	if v == version.V11 {
		return isNameChar11(r)
	}
	return isNameChar10(r)
}

func isNameStartChar10(r rune) bool {
	switch {
	case r >= 0xC0 && r <= 0xD6:
	case r >= 0xD8 && r <= 0xF6:
	case r >= 0xF8 && r <= 0x2FF:
	case r >= 0x370 && r <= 0x37D:
	case r >= 0x37F && r <= 0x1FFF:
	case r >= 0x200C && r <= 0x200D:
	case r >= 0x2070 && r <= 0x218F:
	case r >= 0x2C00 && r <= 0x2FEF:
	case r >= 0x3001 && r <= 0xD7FF:
	case r >= 0xF900 && r <= 0xFDCF:
	case r >= 0xFDF0 && r <= 0xFFFD:
	case r >= 0x10000 && r <= 0xEFFFF:
	default:
		return false
	}
	return true
}

func isNameChar10(r rune) bool {
	switch {
	case r >= 0x0300 && r <= 0x036F:
	case r >= 0x203F && r <= 0x2040:
	default:
		return false
	}
	return true
}

// XML 1.1 (§B "Character Classes") widens the NameStartChar/NameChar
// productions to essentially "almost any Unicode letter or mark, minus a
// short blocklist of punctuation and control ranges". Rather than
// transcribing the full XML 1.1 range table, gonzalez approximates it with
// unicode.IsLetter/IsMark/IsDigit, which accepts a superset that still
// excludes ASCII punctuation and control characters — the permissive
// direction the spec explicitly calls for (§9: "XML 1.1 is far more
// permissive"). The 1.0 ranges are accepted as well, so the 1.1 tables
// never reject a character the 1.0 tables allow.
func isNameStartChar11(r rune) bool {
	if r < 0x80 {
		return false // ASCII punctuation/control already handled above
	}
	return isNameStartChar10(r) || unicode.IsLetter(r) || unicode.IsMark(r)
}

func isNameChar11(r rune) bool {
	if r < 0x80 {
		return false
	}
	return isNameChar10(r) || unicode.IsLetter(r) || unicode.IsMark(r) || unicode.IsDigit(r) || unicode.IsNumber(r)
}

// IsChar reports whether r is a legal XML character at all (used to reject
// raw control characters in content). XML 1.0 forbids most C0 controls;
// XML 1.1 allows them as character references only, never literally — both
// restrictions are enforced the same way here since gonzalez does not
// distinguish "came from a character reference" at this layer.
func IsChar(r rune, v version.Version) bool {
	switch {
	case r == 0x9 || r == 0xA || r == 0xD:
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	default:
		return false
	}
}
