package content

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/bluezoo/gonzalez/dtd"
)

// builtins are the five entities every well-formed XML document may
// reference without a declaration (spec §3).
var builtins = map[string]string{
	"lt":   "<",
	"gt":   ">",
	"amp":  "&",
	"apos": "'",
	"quot": "\"",
}

// maxEntityDepth bounds general-entity expansion so a self- or mutually-
// referencing entity chain fails cleanly instead of recursing forever.
const maxEntityDepth = 20

// resolveCharRef decodes a numeric character reference's digits: decimal
// for &#N;, hexadecimal for &#xN;.
func resolveCharRef(hex bool, digits string) (string, error) {
	base := 10
	if hex {
		base = 16
	}
	n, err := strconv.ParseInt(digits, base, 32)
	if err != nil {
		return "", errors.Errorf("content: malformed character reference %q", digits)
	}
	return string(rune(n)), nil
}

// resolveGeneralEntity returns name's replacement text, with any character
// and general-entity references nested inside it already expanded (spec
// §4.4 notes that dtd leaves a general entity's own value un-expanded,
// "for the ContentParser to expand at document use" — this is that
// expansion). ok is false when name is neither a built-in nor declared,
// which the caller distinguishes from a hard error (undefined references
// are sometimes recoverable, per spec §4.3/§7).
func resolveGeneralEntity(d *dtd.DTD, name string, depth int) (value string, ok bool, err error) {
	if v, isBuiltin := builtins[name]; isBuiltin {
		return v, true, nil
	}
	if d == nil {
		return "", false, nil
	}
	ent, declared := d.General[name]
	if !declared {
		return "", false, nil
	}
	if ent.NDATA != "" || ent.External {
		return "", false, errors.Errorf("content: entity %q is unparsed or external and cannot appear here", name)
	}
	if depth >= maxEntityDepth {
		return "", false, errors.Errorf("content: entity %q exceeds the maximum expansion depth", name)
	}
	expanded, err := expandEntityText(d, ent.Value, depth+1)
	if err != nil {
		return "", false, err
	}
	return expanded, true, nil
}

// expandEntityText resolves every &name; / &#N; / &#xN; reference within a
// general entity's already-stored replacement text. The text is a plain
// string rather than a token stream at this point (dtd/literal.go already
// extracted it from its own declaration), so references are found by a
// simple byte scan rather than re-driving the Tokenizer.
func expandEntityText(d *dtd.DTD, text string, depth int) (string, error) {
	if !strings.ContainsRune(text, '&') {
		return text, nil
	}
	var out strings.Builder
	out.Grow(len(text))
	i := 0
	for i < len(text) {
		if text[i] != '&' {
			out.WriteByte(text[i])
			i++
			continue
		}
		end := strings.IndexByte(text[i:], ';')
		if end < 0 {
			return "", errors.New("content: unterminated entity or character reference")
		}
		ref := text[i+1 : i+end]
		i += end + 1
		switch {
		case strings.HasPrefix(ref, "#x") || strings.HasPrefix(ref, "#X"):
			s, err := resolveCharRef(true, ref[2:])
			if err != nil {
				return "", err
			}
			out.WriteString(s)
		case strings.HasPrefix(ref, "#"):
			s, err := resolveCharRef(false, ref[1:])
			if err != nil {
				return "", err
			}
			out.WriteString(s)
		default:
			v, ok, err := resolveGeneralEntity(d, ref, depth)
			if err != nil {
				return "", err
			}
			if !ok {
				return "", errors.Errorf("content: reference to undefined entity %q", ref)
			}
			out.WriteString(v)
		}
	}
	return out.String(), nil
}
