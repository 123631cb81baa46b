package dtd

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/bluezoo/gonzalez/decoder"
	"github.com/bluezoo/gonzalez/internal/chars"
	"github.com/bluezoo/gonzalez/sax"
	"github.com/bluezoo/gonzalez/token"
	"github.com/bluezoo/gonzalez/tokenizer"
	"github.com/bluezoo/gonzalez/version"
)

// subset consumes the markupdecl* production shared by a DOCTYPE's internal
// subset and an external subset's top level (spec §4.4): <!ELEMENT>,
// <!ATTLIST>, <!ENTITY>, <!NOTATION>, comments, processing instructions,
// conditional sections, and markup-level parameter-entity references.
type subset struct {
	p        *Parser
	tz       *tokenizer.Tokenizer
	internal bool // true: a bare ']' ends it; false: it runs to the entity's own EOF

	collecting token.Type // token.Invalid when idle, else the opening token of the declaration being buffered
	buf        []token.Token

	peAwait int // 0 idle, 1 saw '%' (awaiting the entity name), 2 saw the name (awaiting ';')
	peName  strings.Builder

	condState int        // 0 idle, 1 saw "<![" (awaiting INCLUDE/IGNORE), 2 saw the keyword (awaiting '[')
	condKind  token.Type // token.INCLUDE or token.IGNORE once known

	inLiteral   bool       // true while buffering a quoted literal's own tokens
	litQuote    token.Type // the quote that opened it
	declPctPend bool       // true: saw a bare '%' mid-declaration, awaiting the next token to disambiguate
	declPctTok  token.Token
}

func (s *subset) Receive(tok token.Token) error {
	if s.peAwait != 0 {
		return s.receivePE(tok)
	}
	if s.condState != 0 {
		return s.receiveCond(tok)
	}
	if s.collecting != token.Invalid {
		return s.receiveDeclToken(tok)
	}
	switch tok.Type {
	case token.S:
		return nil
	case token.CHARDATA:
		if strings.TrimFunc(tok.Text, isSubsetSpace) != "" {
			return s.p.fatalf(tok, "in a DTD subset")
		}
		return nil
	case token.RBRACKET:
		if !s.internal {
			return s.p.fatalf(tok, "unexpected ']' in an external subset")
		}
		return s.p.closeInternalSubset()
	case token.PERCENT:
		s.peAwait = 1
		s.peName.Reset()
		return nil
	case token.LT_BANG_ELEMENT, token.LT_BANG_ATTLIST, token.LT_BANG_ENTITY, token.LT_BANG_NOTATION,
		token.LT_BANG_DASH_DASH, token.LT_QUESTION:
		s.collecting = tok.Type
		s.buf = s.buf[:0]
		return nil
	case token.LT_BANG_LBRACKET:
		return s.beginConditional()
	case token.CDATA_TEXT, token.CDATA_END:
		// An IGNORE section's skipped content, or the "]]>" closing either
		// kind of conditional section: nothing to record.
		return nil
	default:
		return s.p.fatalf(tok, "in a DTD subset")
	}
}

func isSubsetSpace(r rune) bool { return chars.IsWhitespace(r) }

func (s *subset) receivePE(tok token.Token) error {
	switch s.peAwait {
	case 1:
		if tok.Type != token.CHARDATA {
			return s.p.fatalf(tok, "malformed parameter-entity reference")
		}
		s.peName.WriteString(tok.Text)
		s.peAwait = 2
		return nil
	default:
		if tok.Type != token.SEMI {
			return s.p.fatalf(tok, "parameter-entity reference missing ';'")
		}
		name := s.peName.String()
		s.peAwait = 0
		return s.expandMarkupPE(name)
	}
}

// expandMarkupPE splices a parameter entity's replacement text back through
// the Tokenizer, padded with leading and trailing spaces to guarantee it
// cannot accidentally splice two tokens together at its boundary (spec
// §4.4). The resulting tokens flow back into s.Receive exactly like any
// other token, landing in whichever of idle/collecting was active when the
// reference was seen.
func (s *subset) expandMarkupPE(name string) error {
	ent, ok := s.p.dtd.Parameter[name]
	if !ok {
		return errors.Errorf("dtd: reference to undefined parameter entity %%%s;", name)
	}
	if ent.External {
		return errors.Errorf("dtd: markup-level expansion of an external parameter entity (%%%s;) is not supported", name)
	}
	if err := s.p.pushPE(name); err != nil {
		return err
	}
	defer s.p.popPE()
	padded := " " + ent.Value + " "
	n, err := s.tz.Scan([]byte(padded), true)
	if err != nil {
		return err
	}
	if n != len(padded) {
		return errors.Errorf("dtd: incomplete parameter-entity expansion for %%%s;", name)
	}
	return nil
}

func (s *subset) beginConditional() error {
	if s.internal {
		return errors.New("dtd: conditional sections are only allowed in an external subset")
	}
	s.condState = 1
	return nil
}

func (s *subset) receiveCond(tok token.Token) error {
	switch s.condState {
	case 1:
		switch tok.Type {
		case token.S:
			return nil
		case token.INCLUDE, token.IGNORE:
			s.condKind = tok.Type
			s.condState = 2
			return nil
		default:
			return s.p.fatalf(tok, "expected INCLUDE or IGNORE after '<!['")
		}
	default:
		switch tok.Type {
		case token.S:
			return nil
		case token.LBRACKET:
			s.condState = 0
			if s.condKind == token.INCLUDE {
				s.tz.EnterConditionalInclude()
			} else {
				s.tz.EnterIgnoreSection()
			}
			return nil
		default:
			return s.p.fatalf(tok, "expected '[' to open a conditional section body")
		}
	}
}

// receiveDeclToken buffers one token of the declaration currently being
// collected. A '%' occurring here is ambiguous in exactly the way XML's own
// grammar is: "<!ENTITY % name ..." declares a parameter entity (the '%' is
// always followed by S before the name), while "%name;" elsewhere in the
// declaration is a live reference to expand (spec §4.4). The token
// immediately following '%' disambiguates the two; a '%' inside an already-
// open quoted literal is never live-expanded here at all — it is buffered
// raw, for literalBuilder to resolve once the literal's whole span is
// extracted from the buffer.
func (s *subset) receiveDeclToken(tok token.Token) error {
	if s.declPctPend {
		s.declPctPend = false
		if tok.Type == token.S {
			s.buf = append(s.buf, s.declPctTok, tok)
			return nil
		}
		if tok.Type != token.NAME {
			return s.p.fatalf(tok, "malformed parameter-entity reference")
		}
		s.peName.Reset()
		s.peName.WriteString(tok.Text)
		s.peAwait = 2
		return nil
	}
	if s.inLiteral {
		if tok.Type == s.litQuote {
			s.inLiteral = false
		}
		s.buf = append(s.buf, tok)
		return nil
	}
	if tok.Type == token.PERCENT {
		s.declPctPend = true
		s.declPctTok = tok
		return nil
	}
	if tok.Type == token.QUOTE_DOUBLE || tok.Type == token.QUOTE_SINGLE {
		s.inLiteral = true
		s.litQuote = tok.Type
		s.buf = append(s.buf, tok)
		return nil
	}
	if declTerminator(s.collecting, tok.Type) {
		buf := s.buf
		kind := s.collecting
		s.collecting = token.Invalid
		s.buf = nil
		return s.p.finishDeclaration(kind, buf)
	}
	s.buf = append(s.buf, tok)
	return nil
}

func declTerminator(collecting, tt token.Type) bool {
	switch collecting {
	case token.LT_BANG_ELEMENT, token.LT_BANG_ATTLIST, token.LT_BANG_ENTITY, token.LT_BANG_NOTATION:
		return tt == token.GT
	case token.LT_BANG_DASH_DASH:
		return tt == token.DASH_DASH_GT
	case token.LT_QUESTION:
		return tt == token.QUESTION_GT
	}
	return false
}

// finishDeclaration dispatches a fully buffered declaration (everything
// between its opening keyword and terminator, exclusive of both) to the
// grammar appropriate to its kind.
func (p *Parser) finishDeclaration(kind token.Type, buf []token.Token) error {
	switch kind {
	case token.LT_BANG_ELEMENT:
		return p.parseElementDecl(buf)
	case token.LT_BANG_ATTLIST:
		return p.parseAttlistDecl(buf)
	case token.LT_BANG_ENTITY:
		return p.parseEntityDecl(buf)
	case token.LT_BANG_NOTATION:
		return p.parseNotationDecl(buf)
	case token.LT_BANG_DASH_DASH:
		return p.parseComment(buf)
	case token.LT_QUESTION:
		return p.parsePI(buf)
	}
	return errors.Errorf("dtd: unhandled declaration kind %s", kind)
}

func (p *Parser) parseComment(buf []token.Token) error {
	var text strings.Builder
	for _, t := range buf {
		if t.Type == token.COMMENT_TEXT {
			text.WriteString(t.Text)
		}
	}
	return sax.Dispatch(p.sink, func(h sax.LexicalHandler) error {
		return h.Comment(text.String())
	})
}

func (p *Parser) parsePI(buf []token.Token) error {
	var target, data string
	for _, t := range buf {
		switch t.Type {
		case token.PI_TARGET:
			target = t.Text
		case token.PI_DATA:
			data = t.Text
			if len(data) > 0 && isSubsetSpace(rune(data[0])) {
				data = data[1:]
			}
		}
	}
	return sax.Dispatch(p.sink, func(h sax.ContentHandler) error {
		return h.ProcessingInstruction(target, data)
	})
}

// parseExternalSubset drives a fresh, nested decoder+tokenizer pair over an
// external subset's own bytes, sharing this Parser's *DTD model and
// parameter-entity recursion guard but none of its header state. It runs to
// completion synchronously: resolver results are already-fetched byte
// slices, not a stream, so a single Scan call with atEOF=true either
// consumes everything or reports a fatal error.
func (p *Parser) parseExternalSubset(data []byte, encodingHint string) error {
	nsub := &subset{internal: false, collecting: token.Invalid}
	ntz := tokenizer.New(nsub)
	nsub.p, nsub.tz = p, ntz
	ntz.SetVersion(version.V10)
	ntz.EnterExternalSubset()

	// parentVersion is left version.Unknown: nothing upstream of this
	// Parser threads the host document's declared version down to here, so
	// spec §4.1's "a 1.0 document may not include a 1.1 external entity"
	// check is skipped for a DTD's external subset specifically.
	dec := decoder.New(ntz, encodingHint, version.Unknown)
	if err := dec.Write(data, true); err != nil {
		return errors.Wrap(err, "dtd: parsing the external subset")
	}
	if nsub.collecting != token.Invalid || nsub.peAwait != 0 || nsub.condState != 0 {
		return errors.New("dtd: external subset ended with an incomplete declaration")
	}
	return nil
}
