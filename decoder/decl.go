package decoder

import (
	"strings"

	"github.com/bluezoo/gonzalez/result"
	"github.com/bluezoo/gonzalez/version"
)

// declaration is the parsed form of an XML declaration (document entity) or
// text declaration (external parsed entity), spec §4.1.
type declaration struct {
	Version       version.Version
	Encoding      string
	Standalone    bool
	HasStandalone bool
}

// parseDeclaration looks for "<?xml" ... "?>" at the very start of text (a
// charset-decoded prefix of the entity). It returns the parsed declaration,
// how many bytes of text it covers, and a result.Result: OK (found),
// Failure (text is definitely not a declaration, or violates one of the
// grammar constraints in spec §4.1 — both are non-fatal, the caller treats
// the declaration as absent), or Underflow (text is a valid-so-far prefix
// of a declaration and more bytes are needed before a verdict is possible).
func parseDeclaration(text string, atEOF bool) (declaration, int, result.Result) {
	const prefix = "<?xml"

	if len(text) < len(prefix) {
		if strings.HasPrefix(prefix, text) {
			if atEOF {
				return declaration{}, 0, result.Failure
			}
			return declaration{}, 0, result.Underflow
		}
		return declaration{}, 0, result.Failure
	}
	if text[:len(prefix)] != prefix {
		return declaration{}, 0, result.Failure
	}
	if len(text) == len(prefix) {
		if atEOF {
			return declaration{}, 0, result.Failure
		}
		return declaration{}, 0, result.Underflow
	}
	// Reject "<?xml-stylesheet" and similar: a real declaration's PITarget
	// is exactly "xml", so it must be followed by whitespace or '?'.
	switch text[len(prefix)] {
	case ' ', '\t', '\r', '\n', '?':
	default:
		return declaration{}, 0, result.Failure
	}

	idx := strings.Index(text, "?>")
	if idx < 0 {
		if atEOF {
			return declaration{}, 0, result.Failure
		}
		return declaration{}, 0, result.Underflow
	}

	attrs, ok := parseDeclAttrs(text[len(prefix):idx])
	if !ok {
		return declaration{}, 0, result.Failure
	}

	rawVersion, ok := attrs["version"]
	if !ok {
		return declaration{}, 0, result.Failure
	}
	v, ok := version.Parse(rawVersion)
	if !ok {
		return declaration{}, 0, result.Failure
	}

	d := declaration{Version: v}
	if enc, ok := attrs["encoding"]; ok {
		d.Encoding = enc
	}
	if sa, ok := attrs["standalone"]; ok {
		if sa != "yes" && sa != "no" {
			return declaration{}, 0, result.Failure
		}
		d.HasStandalone = true
		d.Standalone = sa == "yes"
	}
	return d, idx + 2, result.OK
}

// parseDeclAttrs parses the zero or more `Name S? '=' S? ('"' Value '"' |
// "'" Value "'")` pairs, separated by mandatory whitespace, that make up a
// declaration's body (spec §4.1).
func parseDeclAttrs(body string) (map[string]string, bool) {
	attrs := make(map[string]string)
	i := 0
	n := len(body)
	for {
		for i < n && isDeclSpace(body[i]) {
			i++
		}
		if i == n {
			return attrs, true
		}
		start := i
		for i < n && isDeclNameChar(body[i]) {
			i++
		}
		if i == start {
			return nil, false
		}
		name := body[start:i]
		for i < n && isDeclSpace(body[i]) {
			i++
		}
		if i == n || body[i] != '=' {
			return nil, false
		}
		i++
		for i < n && isDeclSpace(body[i]) {
			i++
		}
		if i == n || (body[i] != '"' && body[i] != '\'') {
			return nil, false
		}
		quote := body[i]
		i++
		start = i
		for i < n && body[i] != quote {
			i++
		}
		if i == n {
			return nil, false
		}
		value := body[start:i]
		i++ // skip closing quote
		if i < n && !isDeclSpace(body[i]) {
			return nil, false
		}
		if _, dup := attrs[name]; dup {
			return nil, false
		}
		attrs[name] = value
	}
}

func isDeclSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

func isDeclNameChar(b byte) bool {
	return b == '_' || b == '-' || b == '.' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
