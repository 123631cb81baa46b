package writer

import (
	"strconv"
	"strings"

	"github.com/bluezoo/gonzalez/internal/chars"
	"github.com/bluezoo/gonzalez/version"
)

// charRef renders r as a character reference (spec §6.5: decimal under XML
// 1.0, hex under XML 1.1), used both for characters illegal to write
// literally and, in escapeAttr, for the whitespace characters that must
// survive attribute-value normalization on re-parse.
func charRef(r rune, v version.Version) string {
	if v == version.V11 {
		return "&#x" + strconv.FormatInt(int64(r), 16) + ";"
	}
	return "&#" + strconv.FormatInt(int64(r), 10) + ";"
}

// escapeRunes walks s once, copying runs verbatim and substituting escape(r)
// wherever special(r) is true or r is illegal in v (spec §6.5's "XML 1.0
// decimal / XML 1.1 hex character references for unrepresentable
// characters" applies uniformly, regardless of which context's escape
// policy is in effect).
func escapeRunes(s string, v version.Version, special func(r rune) (string, bool)) string {
	var b strings.Builder
	for _, r := range s {
		if esc, ok := special(r); ok {
			b.WriteString(esc)
			continue
		}
		if !chars.IsChar(r, v) {
			b.WriteString(charRef(r, v))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// escapeText implements spec §6.5's text escape policy: `<`, `>`, `&`.
func escapeText(s string, v version.Version) string {
	return escapeRunes(s, v, func(r rune) (string, bool) {
		switch r {
		case '<':
			return "&lt;", true
		case '>':
			return "&gt;", true
		case '&':
			return "&amp;", true
		default:
			return "", false
		}
	})
}

// escapeAttr implements spec §6.5's attribute escape policy: `<`, `>`, `&`,
// `"`, and whitespace (tab/LF/CR) as a character reference so the value
// survives attribute-value normalization unchanged on re-parse.
func escapeAttr(s string, v version.Version) string {
	return escapeRunes(s, v, func(r rune) (string, bool) {
		switch r {
		case '<':
			return "&lt;", true
		case '>':
			return "&gt;", true
		case '&':
			return "&amp;", true
		case '"':
			return "&quot;", true
		case '\t', '\n', '\r':
			return charRef(r, v), true
		default:
			return "", false
		}
	})
}

// escapeEntityValue implements spec §6.5's entity-value escape policy:
// `&`, `%`, `"` — the three characters a quoted EntityValue literal cannot
// contain unescaped (spec.md §4.4's own literal grammar).
func escapeEntityValue(s string, v version.Version) string {
	return escapeRunes(s, v, func(r rune) (string, bool) {
		switch r {
		case '&':
			return "&amp;", true
		case '%':
			return "&#37;", true
		case '"':
			return "&quot;", true
		default:
			return "", false
		}
	})
}

// escapeComment implements spec §6.5's comment sanitization: a comment may
// not contain "--" or end in "-" (XML's own grammar), so every pair of
// adjacent dashes has a space spliced between them, and a trailing
// dash gets a trailing space — preserving the visible text while keeping
// the written form well-formed.
func escapeComment(s string) string {
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "- -")
	}
	if strings.HasSuffix(s, "-") {
		s += " "
	}
	return s
}

// escapePI implements spec §6.5's PI sanitization: a processing
// instruction's data may not contain "?>", the sequence splices a space in
// between.
func escapePI(s string) string {
	return strings.ReplaceAll(s, "?>", "? >")
}

// escapeCDATASections implements spec §6.5's CDATA validation: "]]>" cannot
// appear inside a CDATA section verbatim, so it is split across two
// sections at the boundary (closing the first right after "]]", opening a
// new one starting with ">"), the standard workaround rather than falling
// back to an escaped text run (which would change whether the content
// round-trips as CDATA at all).
func escapeCDATASections(s string) string {
	return strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>")
}

// quoteLiteral picks a quote character for a system/public identifier that
// does not itself appear in id (spec §6.5: "sanitize \""), falling back to
// double quotes with the character reference substituted in the rare case
// both quote characters are present (an identifier is never supposed to
// contain either, per XML's own grammar, so this is a last resort rather
// than the common path).
func quoteLiteral(id string) (quote byte, body string) {
	if !strings.ContainsRune(id, '"') {
		return '"', id
	}
	if !strings.ContainsRune(id, '\'') {
		return '\'', id
	}
	return '"', strings.ReplaceAll(id, `"`, "&#34;")
}
