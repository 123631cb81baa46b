package dtd

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/bluezoo/gonzalez/token"
)

// literalBuilder accumulates a quoted literal's text token by token: a
// SYSTEM/PUBLIC identifier (raw: no reference is resolved, '&' sequences
// are kept verbatim), or an entity value / attribute default (character references
// resolved, parameter-entity references expanded inline using the
// already-resolved value recorded at the referenced entity's own
// declaration, general entity references left untouched for the
// ContentParser to expand at document use, per spec §4.4).
type literalBuilder struct {
	p     *Parser
	quote token.Type // the QUOTE_DOUBLE/QUOTE_SINGLE token that opened it
	raw   bool

	out strings.Builder

	refKind token.Type // token.Invalid when not mid-reference
	refName strings.Builder
}

// Receive consumes one token of the literal's body, reporting true once the
// matching closing quote has been consumed.
func (lb *literalBuilder) Receive(tok token.Token) (bool, error) {
	if tok.Type == lb.quote {
		return true, nil
	}
	if lb.refKind != token.Invalid {
		return false, lb.receiveRefToken(tok)
	}
	switch tok.Type {
	case token.CHARDATA:
		lb.out.WriteString(tok.Text)
		return false, nil
	case token.AMP, token.HASH, token.HASH_X:
		if lb.raw {
			lb.out.WriteString(tok.Text)
			return false, nil
		}
		lb.refKind = tok.Type
		lb.refName.Reset()
		return false, nil
	case token.PERCENT:
		if lb.raw {
			return false, errors.New("dtd: '%' is not allowed in a SYSTEM or PUBLIC literal")
		}
		lb.refKind = token.PERCENT
		lb.refName.Reset()
		return false, nil
	case token.SEMI:
		lb.out.WriteString(";")
		return false, nil
	default:
		return false, errors.Errorf("dtd: unexpected %s inside a literal", tok.Type)
	}
}

func (lb *literalBuilder) receiveRefToken(tok token.Token) error {
	if tok.Type == token.SEMI {
		err := lb.closeRef()
		lb.refKind = token.Invalid
		return err
	}
	if tok.Type != token.CHARDATA {
		return errors.Errorf("dtd: malformed reference inside a literal (unexpected %s)", tok.Type)
	}
	lb.refName.WriteString(tok.Text)
	return nil
}

func (lb *literalBuilder) closeRef() error {
	name := lb.refName.String()
	switch lb.refKind {
	case token.AMP:
		lb.out.WriteString("&" + name + ";")
	case token.HASH:
		n, err := strconv.Atoi(name)
		if err != nil {
			return errors.Errorf("dtd: malformed character reference &#%s;", name)
		}
		lb.out.WriteRune(rune(n))
	case token.HASH_X:
		n, err := strconv.ParseInt(name, 16, 32)
		if err != nil {
			return errors.Errorf("dtd: malformed character reference &#x%s;", name)
		}
		lb.out.WriteRune(rune(n))
	case token.PERCENT:
		text, err := lb.p.expandParameterEntityValue(name)
		if err != nil {
			return err
		}
		lb.out.WriteString(text)
	}
	return nil
}

// expandParameterEntityValue resolves a parameter-entity reference
// appearing inside another literal. Because parameter entities are
// processed in declaration order and each one's own Value was already
// fully expanded when it was declared, this lookup is non-recursive in
// practice; the shared peStack guard still catches a genuine
// self-reference (dtd.Parameter not yet populated for the entity being
// declared reports as "undefined" rather than a stack overflow).
func (p *Parser) expandParameterEntityValue(name string) (string, error) {
	ent, ok := p.dtd.Parameter[name]
	if !ok {
		return "", errors.Errorf("dtd: reference to undefined parameter entity %%%s;", name)
	}
	if err := p.pushPE(name); err != nil {
		return "", err
	}
	defer p.popPE()
	return ent.Value, nil
}
