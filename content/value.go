package content

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/bluezoo/gonzalez/dtd"
	"github.com/bluezoo/gonzalez/token"
)

// refBuilder accumulates an attribute value's text token by token,
// resolving character references and general entity references inline and
// normalizing literal whitespace to a single space (spec §3.3.3's
// attribute-value normalization). Grounded on dtd's literalBuilder, but
// generalized to resolve general-entity references immediately rather than
// leaving them for a later consumer — an attribute value must be fully
// expanded before it ever reaches a sink.
type refBuilder struct {
	quote token.Type
	dtd   *dtd.DTD

	out strings.Builder

	refKind token.Type // token.Invalid when not mid-reference
	refName strings.Builder
}

func newRefBuilder(quote token.Type, d *dtd.DTD) *refBuilder {
	return &refBuilder{quote: quote, dtd: d, refKind: token.Invalid}
}

// Receive consumes one token of the value's body, reporting true once the
// matching closing quote has been seen.
func (rb *refBuilder) Receive(tok token.Token) (bool, error) {
	if tok.Type == rb.quote {
		return true, nil
	}
	if rb.refKind != token.Invalid {
		return false, rb.receiveRefToken(tok)
	}
	switch tok.Type {
	case token.CHARDATA:
		rb.out.WriteString(normalizeLiteralWhitespace(tok.Text))
		return false, nil
	case token.AMP, token.HASH, token.HASH_X:
		rb.refKind = tok.Type
		rb.refName.Reset()
		return false, nil
	case token.SEMI:
		rb.out.WriteByte(';')
		return false, nil
	default:
		return false, errors.Errorf("content: unexpected %s inside an attribute value", tok.Type)
	}
}

func (rb *refBuilder) receiveRefToken(tok token.Token) error {
	if tok.Type == token.SEMI {
		err := rb.closeRef()
		rb.refKind = token.Invalid
		return err
	}
	if tok.Type != token.CHARDATA {
		return errors.Errorf("content: malformed reference inside an attribute value (unexpected %s)", tok.Type)
	}
	rb.refName.WriteString(tok.Text)
	return nil
}

func (rb *refBuilder) closeRef() error {
	name := rb.refName.String()
	switch rb.refKind {
	case token.HASH:
		s, err := resolveCharRef(false, name)
		if err != nil {
			return err
		}
		rb.out.WriteString(s)
	case token.HASH_X:
		s, err := resolveCharRef(true, name)
		if err != nil {
			return err
		}
		rb.out.WriteString(s)
	case token.AMP:
		v, ok, err := resolveGeneralEntity(rb.dtd, name, 0)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Errorf("content: reference to undefined entity %q in an attribute value", name)
		}
		rb.out.WriteString(v)
	}
	return nil
}

// normalizeLiteralWhitespace replaces each literal tab/newline/carriage
// return inside an attribute value with a single space (XML §3.3.3, step
// one of attribute-value normalization). Characters arriving via a
// reference are never passed through here, so they are exempt by
// construction rather than by a special case.
func normalizeLiteralWhitespace(s string) string {
	if !strings.ContainsAny(s, "\t\n\r") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\t', '\n', '\r':
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// collapseInternalWhitespace applies XML §3.3.3's second normalization
// pass, used for every declared attribute type except CDATA: discard
// leading and trailing whitespace entirely and collapse each internal run
// to one space.
func collapseInternalWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
