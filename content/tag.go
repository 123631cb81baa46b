package content

import (
	"github.com/pkg/errors"

	"github.com/bluezoo/gonzalez/token"
)

// tstate is a start or end tag's own small grammar, entered on LT/LT_SLASH
// and left on GT/SLASH_GT.
type tstate int

const (
	tName tstate = iota
	tAfterName
	tAttrEq
	tBeforeValue
	tValue
)

// tagBuild is the in-progress start or end tag Parser is currently
// collecting tokens for.
type tagBuild struct {
	closing  bool
	state    tstate
	qname    string
	attrName string
	attrs    []rawAttr
	value    *refBuilder
}

func (t *tagBuild) reset(closing bool) {
	*t = tagBuild{closing: closing, state: tName}
}

// receiveTag drives tagBuild's grammar one token at a time: Name, then zero
// or more (Name Eq AttValue) pairs, closed by '>' or (start tags only)
// '/>'. An end tag's Name is matched against the open-element stack once
// the tag closes; attributes on an end tag are rejected here rather than
// silently accepted.
func (p *Parser) receiveTag(tok token.Token) error {
	t := &p.tag
	switch t.state {
	case tName:
		if tok.Type != token.NAME {
			return p.fatalf(tok, "expected an element name")
		}
		t.qname = tok.Text
		t.state = tAfterName
		return nil
	case tAfterName:
		switch tok.Type {
		case token.S:
			return nil
		case token.NAME:
			if t.closing {
				return p.fatalf(tok, "an end tag takes no attributes")
			}
			t.attrName = tok.Text
			t.state = tAttrEq
			return nil
		case token.GT:
			return p.finishTag()
		case token.SLASH_GT:
			if t.closing {
				return p.fatalf(tok, "'/>' is not valid on an end tag")
			}
			return p.finishSelfClosingTag()
		default:
			return p.fatalf(tok, "in a tag")
		}
	case tAttrEq:
		if tok.Type != token.EQ {
			return p.fatalf(tok, "expected '=' after an attribute name")
		}
		t.state = tBeforeValue
		return nil
	case tBeforeValue:
		switch tok.Type {
		case token.QUOTE_DOUBLE, token.QUOTE_SINGLE:
			t.value = newRefBuilder(tok.Type, p.dtd)
			t.state = tValue
			return nil
		default:
			return p.fatalf(tok, "expected a quoted attribute value")
		}
	case tValue:
		done, err := t.value.Receive(tok)
		if err != nil {
			return p.fail(err)
		}
		if !done {
			return nil
		}
		for _, a := range t.attrs {
			if a.qname == t.attrName {
				return p.fail(errors.Errorf("content: duplicate attribute %q", t.attrName))
			}
		}
		t.attrs = append(t.attrs, rawAttr{qname: t.attrName, value: t.value.out.String()})
		t.value = nil
		t.attrName = ""
		t.state = tAfterName
		return nil
	}
	return p.fail(errors.Errorf("content: unhandled tag state %d", t.state))
}

func (p *Parser) finishTag() error {
	if p.tag.closing {
		return p.finishEndTag(p.tag.qname)
	}
	return p.finishStartTag(p.tag.qname, p.tag.attrs, false)
}

func (p *Parser) finishSelfClosingTag() error {
	return p.finishStartTag(p.tag.qname, p.tag.attrs, true)
}
