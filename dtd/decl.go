package dtd

import (
	"github.com/pkg/errors"

	"github.com/bluezoo/gonzalez/sax"
	"github.com/bluezoo/gonzalez/token"
)

// cur walks a buffered declaration's tokens, skipping S (insignificant
// whitespace) by default; rawNext is used inside a literal, where every
// token (there is never a genuine S among them — see literalBuilder) must
// be seen.
type cur struct {
	buf []token.Token
	i   int
}

func (c *cur) peek() (token.Token, bool) {
	for i := c.i; i < len(c.buf); i++ {
		if c.buf[i].Type != token.S {
			return c.buf[i], true
		}
	}
	return token.Token{}, false
}

func (c *cur) next() (token.Token, bool) {
	for c.i < len(c.buf) {
		t := c.buf[c.i]
		c.i++
		if t.Type != token.S {
			return t, true
		}
	}
	return token.Token{}, false
}

func (c *cur) rawNext() (token.Token, bool) {
	if c.i >= len(c.buf) {
		return token.Token{}, false
	}
	t := c.buf[c.i]
	c.i++
	return t, true
}

// --- <!ELEMENT> --------------------------------------------------------

func (p *Parser) parseElementDecl(buf []token.Token) error {
	c := &cur{buf: buf}
	nameTok, ok := c.next()
	if !ok || nameTok.Type != token.NAME {
		return errors.New("dtd: malformed <!ELEMENT declaration")
	}
	name := nameTok.Text
	model, err := parseContentSpec(c)
	if err != nil {
		return errors.Wrapf(err, "dtd: <!ELEMENT %s>", name)
	}
	if _, ok := c.next(); ok {
		return errors.Errorf("dtd: trailing tokens in <!ELEMENT %s>", name)
	}
	if _, dup := p.dtd.Elements[name]; !dup {
		p.dtd.Elements[name] = &ElementDecl{Name: name, Content: model}
	}
	return sax.Dispatch(p.sink, func(h sax.DeclHandler) error {
		return h.ElementDecl(name, model.String())
	})
}

func parseContentSpec(c *cur) (*ContentModel, error) {
	t, ok := c.next()
	if !ok {
		return nil, errors.New("missing content specification")
	}
	switch {
	case t.Type == token.NAME && t.Text == "EMPTY":
		return &ContentModel{Kind: ModelEmpty}, nil
	case t.Type == token.NAME && t.Text == "ANY":
		return &ContentModel{Kind: ModelAny}, nil
	case t.Type == token.LPAREN:
		return parseGroup(c)
	default:
		return nil, errors.Errorf("unexpected %s in a content specification", t.Type)
	}
}

func parseGroup(c *cur) (*ContentModel, error) {
	t, ok := c.peek()
	if ok && t.Type == token.NAME && t.Text == "#PCDATA" {
		c.next()
		return parseMixed(c)
	}
	return parseChildren(c)
}

func parseMixed(c *cur) (*ContentModel, error) {
	var names []string
	for {
		t, ok := c.next()
		if !ok {
			return nil, errors.New("unterminated mixed-content model")
		}
		switch t.Type {
		case token.RPAREN:
			mult := MultNone
			if len(names) > 0 {
				if mt, ok := c.peek(); ok && mt.Type == token.STAR {
					c.next()
					mult = MultZeroOrMore
				}
			}
			return &ContentModel{Kind: ModelPCDATA, Mixed: names, Mult: mult}, nil
		case token.PIPE:
			nt, ok := c.next()
			if !ok || nt.Type != token.NAME {
				return nil, errors.New("expected a name after '|' in mixed content")
			}
			names = append(names, nt.Text)
		default:
			return nil, errors.Errorf("unexpected %s in mixed content", t.Type)
		}
	}
}

// parseChildren parses a parenthesized content-particle group, having
// already consumed its opening '(' (spec §4.4's children/cp production).
func parseChildren(c *cur) (*ContentModel, error) {
	first, err := parseCP(c)
	if err != nil {
		return nil, err
	}
	t, ok := c.peek()
	if !ok {
		return nil, errors.New("unterminated content-model group")
	}
	if t.Type == token.RPAREN {
		c.next()
		g := &ContentModel{Kind: ModelSequence, Children: []*ContentModel{first}}
		g.Mult = readMult(c)
		return g, nil
	}
	var kind ModelKind
	var sep token.Type
	switch t.Type {
	case token.PIPE:
		kind, sep = ModelChoice, token.PIPE
	case token.COMMA:
		kind, sep = ModelSequence, token.COMMA
	default:
		return nil, errors.Errorf("unexpected %s in a content-model group", t.Type)
	}
	children := []*ContentModel{first}
	for {
		st, ok := c.next()
		if !ok || st.Type != sep {
			return nil, errors.New("inconsistent separators in a content-model group")
		}
		cp, err := parseCP(c)
		if err != nil {
			return nil, err
		}
		children = append(children, cp)
		nt, ok := c.peek()
		if !ok {
			return nil, errors.New("unterminated content-model group")
		}
		if nt.Type == token.RPAREN {
			c.next()
			break
		}
	}
	g := &ContentModel{Kind: kind, Children: children}
	g.Mult = readMult(c)
	return g, nil
}

func parseCP(c *cur) (*ContentModel, error) {
	t, ok := c.next()
	if !ok {
		return nil, errors.New("expected a content-particle")
	}
	switch t.Type {
	case token.NAME:
		return &ContentModel{Kind: ModelElement, Name: t.Text, Mult: readMult(c)}, nil
	case token.LPAREN:
		return parseChildren(c)
	default:
		return nil, errors.Errorf("unexpected %s in a content model", t.Type)
	}
}

func readMult(c *cur) Multiplicity {
	t, ok := c.peek()
	if !ok {
		return MultNone
	}
	switch t.Type {
	case token.QUESTION:
		c.next()
		return MultOptional
	case token.STAR:
		c.next()
		return MultZeroOrMore
	case token.PLUS:
		c.next()
		return MultOneOrMore
	}
	return MultNone
}

// --- <!ATTLIST> ----------------------------------------------------------

func (p *Parser) parseAttlistDecl(buf []token.Token) error {
	c := &cur{buf: buf}
	elemTok, ok := c.next()
	if !ok || elemTok.Type != token.NAME {
		return errors.New("dtd: malformed <!ATTLIST declaration")
	}
	element := elemTok.Text
	for {
		t, ok := c.peek()
		if !ok {
			return nil
		}
		if t.Type != token.NAME {
			return errors.Errorf("dtd: unexpected %s in <!ATTLIST %s>", t.Type, element)
		}
		c.next()
		name := t.Text
		typ, enum, err := parseAttType(c)
		if err != nil {
			return errors.Wrapf(err, "dtd: <!ATTLIST %s %s>", element, name)
		}
		mode, value, err := p.parseDefaultDecl(c)
		if err != nil {
			return errors.Wrapf(err, "dtd: <!ATTLIST %s %s>", element, name)
		}
		a := &AttDecl{Element: element, Name: name, Type: typ, Enum: enum, Default: mode, Value: value}
		p.dtd.addAttlist(a)
		if err := sax.Dispatch(p.sink, func(h sax.DeclHandler) error {
			return h.AttributeDecl(element, name, typ.String(), defaultModeString(mode), value)
		}); err != nil {
			return err
		}
	}
}

func defaultModeString(m DefaultMode) string {
	switch m {
	case DefaultRequired:
		return "#REQUIRED"
	case DefaultImplied:
		return "#IMPLIED"
	case DefaultFixed:
		return "#FIXED"
	default:
		return ""
	}
}

func parseAttType(c *cur) (AttrType, []string, error) {
	t, ok := c.next()
	if !ok {
		return 0, nil, errors.New("expected an attribute type")
	}
	switch t.Type {
	case token.NAME:
		switch t.Text {
		case "CDATA":
			return AttrCDATA, nil, nil
		case "ID":
			return AttrID, nil, nil
		case "IDREF":
			return AttrIDREF, nil, nil
		case "IDREFS":
			return AttrIDREFS, nil, nil
		case "ENTITY":
			return AttrENTITY, nil, nil
		case "ENTITIES":
			return AttrENTITIES, nil, nil
		case "NMTOKEN":
			return AttrNMTOKEN, nil, nil
		case "NMTOKENS":
			return AttrNMTOKENS, nil, nil
		case "NOTATION":
			names, err := parseParenNameList(c)
			return AttrNOTATION, names, err
		default:
			return 0, nil, errors.Errorf("unknown attribute type %q", t.Text)
		}
	case token.LPAREN:
		names, err := parseNameListBody(c)
		return AttrEnumeration, names, err
	default:
		return 0, nil, errors.Errorf("unexpected %s in an attribute type", t.Type)
	}
}

func parseParenNameList(c *cur) ([]string, error) {
	t, ok := c.next()
	if !ok || t.Type != token.LPAREN {
		return nil, errors.New("expected '(' to open a name list")
	}
	return parseNameListBody(c)
}

func parseNameListBody(c *cur) ([]string, error) {
	var names []string
	for {
		t, ok := c.next()
		if !ok {
			return nil, errors.New("unterminated name list")
		}
		if t.Type != token.NAME {
			return nil, errors.Errorf("expected a name in a name list, got %s", t.Type)
		}
		names = append(names, t.Text)
		nt, ok := c.next()
		if !ok {
			return nil, errors.New("unterminated name list")
		}
		if nt.Type == token.RPAREN {
			return names, nil
		}
		if nt.Type != token.PIPE {
			return nil, errors.Errorf("expected '|' or ')' in a name list, got %s", nt.Type)
		}
	}
}

func (p *Parser) parseDefaultDecl(c *cur) (DefaultMode, string, error) {
	t, ok := c.next()
	if !ok {
		return 0, "", errors.New("expected a default declaration")
	}
	if t.Type == token.NAME {
		switch t.Text {
		case "#REQUIRED":
			return DefaultRequired, "", nil
		case "#IMPLIED":
			return DefaultImplied, "", nil
		case "#FIXED":
			val, err := p.readQuotedFromCursor(c, false)
			return DefaultFixed, val, err
		}
	}
	if t.Type == token.QUOTE_DOUBLE || t.Type == token.QUOTE_SINGLE {
		val, err := readLiteralBodyFromCursor(c, t.Type, p, false)
		return DefaultLiteral, val, err
	}
	return 0, "", errors.Errorf("unexpected %s in a default declaration", t.Type)
}

// --- <!ENTITY> -------------------------------------------------------------

func (p *Parser) parseEntityDecl(buf []token.Token) error {
	c := &cur{buf: buf}
	parameter := false
	if t, ok := c.peek(); ok && t.Type == token.PERCENT {
		c.next()
		parameter = true
	}
	nameTok, ok := c.next()
	if !ok || nameTok.Type != token.NAME {
		return errors.New("dtd: malformed <!ENTITY declaration")
	}
	name := nameTok.Text

	nt, ok := c.peek()
	if !ok {
		return errors.Errorf("dtd: malformed <!ENTITY %s declaration", name)
	}

	var ent *Entity
	if nt.Type == token.QUOTE_DOUBLE || nt.Type == token.QUOTE_SINGLE {
		c.next()
		val, err := readLiteralBodyFromCursor(c, nt.Type, p, false)
		if err != nil {
			return errors.Wrapf(err, "dtd: <!ENTITY %s>", name)
		}
		ent = &Entity{Name: name, Parameter: parameter, Value: val}
	} else {
		publicID, systemID, err := p.parseExternalID(c)
		if err != nil {
			return errors.Wrapf(err, "dtd: <!ENTITY %s>", name)
		}
		ndata := ""
		if !parameter {
			if nd, ok := c.peek(); ok && nd.Type == token.NDATA {
				c.next()
				ndNameTok, ok := c.next()
				if !ok || ndNameTok.Type != token.NAME {
					return errors.Errorf("dtd: malformed NDATA declaration on <!ENTITY %s>", name)
				}
				ndata = ndNameTok.Text
			}
		}
		ent = &Entity{Name: name, Parameter: parameter, External: true, PublicID: publicID, SystemID: systemID, NDATA: ndata}
	}
	if _, ok := c.next(); ok {
		return errors.Errorf("dtd: trailing tokens in <!ENTITY %s>", name)
	}

	target := p.dtd.General
	if parameter {
		target = p.dtd.Parameter
	}
	if _, dup := target[name]; !dup {
		target[name] = ent
	}

	if ent.External {
		if ent.NDATA != "" {
			return sax.Dispatch(p.sink, func(h sax.DTDHandler) error {
				return h.UnparsedEntityDecl(name, ent.PublicID, ent.SystemID, ent.NDATA)
			})
		}
		return sax.Dispatch(p.sink, func(h sax.DeclHandler) error {
			return h.ExternalEntityDecl(name, ent.PublicID, ent.SystemID)
		})
	}
	return sax.Dispatch(p.sink, func(h sax.DeclHandler) error {
		return h.InternalEntityDecl(name, ent.Value)
	})
}

// --- <!NOTATION> -----------------------------------------------------------

func (p *Parser) parseNotationDecl(buf []token.Token) error {
	c := &cur{buf: buf}
	nameTok, ok := c.next()
	if !ok || nameTok.Type != token.NAME {
		return errors.New("dtd: malformed <!NOTATION declaration")
	}
	name := nameTok.Text
	t, ok := c.next()
	if !ok {
		return errors.Errorf("dtd: malformed <!NOTATION %s declaration", name)
	}
	var publicID, systemID string
	var err error
	switch t.Type {
	case token.SYSTEM:
		systemID, err = p.readQuotedFromCursor(c, true)
	case token.PUBLIC:
		publicID, err = p.readQuotedFromCursor(c, true)
		if err == nil {
			if nt, ok := c.peek(); ok && (nt.Type == token.QUOTE_DOUBLE || nt.Type == token.QUOTE_SINGLE) {
				c.next()
				systemID, err = readLiteralBodyFromCursor(c, nt.Type, p, true)
			}
		}
	default:
		return errors.Errorf("dtd: expected SYSTEM or PUBLIC in <!NOTATION %s>", name)
	}
	if err != nil {
		return errors.Wrapf(err, "dtd: <!NOTATION %s>", name)
	}
	if _, ok := c.next(); ok {
		return errors.Errorf("dtd: trailing tokens in <!NOTATION %s>", name)
	}
	if _, dup := p.dtd.Notations[name]; !dup {
		p.dtd.Notations[name] = &Notation{Name: name, PublicID: publicID, SystemID: systemID}
	}
	return sax.Dispatch(p.sink, func(h sax.DTDHandler) error {
		return h.NotationDecl(name, publicID, systemID)
	})
}

// --- shared external-identifier / literal helpers ---------------------------

func (p *Parser) parseExternalID(c *cur) (publicID, systemID string, err error) {
	t, ok := c.next()
	if !ok {
		return "", "", errors.New("expected SYSTEM or PUBLIC")
	}
	switch t.Type {
	case token.SYSTEM:
		systemID, err = p.readQuotedFromCursor(c, true)
		return "", systemID, err
	case token.PUBLIC:
		publicID, err = p.readQuotedFromCursor(c, true)
		if err != nil {
			return "", "", err
		}
		systemID, err = p.readQuotedFromCursor(c, true)
		return publicID, systemID, err
	default:
		return "", "", errors.Errorf("expected SYSTEM or PUBLIC, got %s", t.Type)
	}
}

func (p *Parser) readQuotedFromCursor(c *cur, raw bool) (string, error) {
	t, ok := c.next()
	if !ok || (t.Type != token.QUOTE_DOUBLE && t.Type != token.QUOTE_SINGLE) {
		return "", errors.New("expected a quoted literal")
	}
	return readLiteralBodyFromCursor(c, t.Type, p, raw)
}

func readLiteralBodyFromCursor(c *cur, quote token.Type, p *Parser, raw bool) (string, error) {
	lb := &literalBuilder{p: p, quote: quote, raw: raw}
	for {
		t, ok := c.rawNext()
		if !ok {
			return "", errors.New("unterminated literal")
		}
		done, err := lb.Receive(t)
		if err != nil {
			return "", err
		}
		if done {
			return lb.out.String(), nil
		}
	}
}
