// DTDParser: the tokenizer.Consumer that owns the Tokenizer from the token
// right after "<!DOCTYPE" through the declaration's closing '>' (spec
// §4.4). It is swapped in by whatever consumer is driving the Tokenizer
// when LT_BANG_DOCTYPE arrives, and hands control back via done once the
// closing '>' is consumed.
package dtd

import (
	"github.com/pkg/errors"

	"github.com/bluezoo/gonzalez/sax"
	"github.com/bluezoo/gonzalez/token"
	"github.com/bluezoo/gonzalez/tokenizer"
)

// hstate is the DOCTYPE header's own small state machine, entered before
// and (if there was no internal subset) after any external identifier.
type hstate int

const (
	hName hstate = iota
	hAfterName
	hExternalIDLiteral
	hAfterExternalID
	hInSubset
	hAfterSubset
	hDone
)

// Parser is the DTDParser of spec §4.4.
type Parser struct {
	tz       *tokenizer.Tokenizer
	sink     any
	resolver sax.EntityResolver
	baseURI  string
	done     func(*DTD, error)

	dtd   *DTD
	state hstate

	readingPublic bool // hExternalIDLiteral: true until the PUBLIC pubid literal closes
	publicID      string
	systemID      string
	lit           *literalBuilder // the literal currently being read, if any

	peStack []string // recursion guard shared by value-literal and markup-level expansion

	sub *subset

	extPending bool // an external ID was read; its subset is fetched after '>'
	dtdStarted bool
}

// NewParser returns a Parser ready to receive the tokens following LT_BANG_DOCTYPE.
// resolver may be nil: a document whose DOCTYPE names an external ID then
// has that subset silently skipped rather than fetched (spec §6.3's default
// EntityResolver behavior). done is called exactly once, with either the
// completed DTD or the error that stopped parsing.
func NewParser(tz *tokenizer.Tokenizer, sink any, resolver sax.EntityResolver, baseURI string, done func(*DTD, error)) *Parser {
	return &Parser{tz: tz, sink: sink, resolver: resolver, baseURI: baseURI, done: done}
}

func (p *Parser) fail(err error) error {
	p.state = hDone
	if p.done != nil {
		p.done(nil, err)
	}
	return err
}

func (p *Parser) fatalf(tok token.Token, format string, args ...any) error {
	msg := errors.Errorf(format, args...)
	return p.fail(errors.Wrapf(msg, "dtd: unexpected %s at offset %d", tok.Type, tok.Pos.Offset))
}

// Receive implements tokenizer.Consumer.
func (p *Parser) Receive(tok token.Token) error {
	switch p.state {
	case hName:
		return p.receiveName(tok)
	case hAfterName:
		return p.receiveAfterName(tok)
	case hExternalIDLiteral:
		return p.receiveExternalIDLiteral(tok)
	case hAfterExternalID:
		return p.receiveAfterExternalID(tok)
	case hInSubset:
		err := p.sub.Receive(tok)
		if err != nil && p.state != hDone {
			return p.fail(err)
		}
		return err
	case hAfterSubset:
		return p.receiveAfterSubset(tok)
	default:
		return nil
	}
}

func (p *Parser) receiveName(tok token.Token) error {
	switch tok.Type {
	case token.S:
		return nil
	case token.NAME:
		p.dtd = New(tok.Text)
		p.state = hAfterName
		return nil
	default:
		return p.fatalf(tok, "expected a document type name")
	}
}

func (p *Parser) receiveAfterName(tok token.Token) error {
	switch tok.Type {
	case token.S:
		return nil
	case token.PUBLIC:
		p.readingPublic = true
		p.state = hExternalIDLiteral
		return nil
	case token.SYSTEM:
		p.readingPublic = false
		p.state = hExternalIDLiteral
		return nil
	case token.LBRACKET:
		return p.enterSubset()
	case token.GT:
		return p.finishHeader()
	default:
		return p.fatalf(tok, "in a DOCTYPE header")
	}
}

// receiveExternalIDLiteral reads PUBLIC's two quoted literals (pubid then
// system) or SYSTEM's single one.
func (p *Parser) receiveExternalIDLiteral(tok token.Token) error {
	if p.lit != nil {
		done, err := p.lit.Receive(tok)
		if err != nil {
			return p.fail(err)
		}
		if !done {
			return nil
		}
		text := p.lit.out.String()
		p.lit = nil
		if p.readingPublic {
			p.publicID = text
			p.readingPublic = false
			return nil // next token must open the system literal
		}
		p.systemID = text
		p.dtd.PublicID = p.publicID
		p.dtd.SystemID = p.systemID
		p.extPending = true
		p.state = hAfterExternalID
		return nil
	}
	switch tok.Type {
	case token.S:
		return nil
	case token.QUOTE_DOUBLE, token.QUOTE_SINGLE:
		p.lit = &literalBuilder{p: p, quote: tok.Type, raw: true}
		return nil
	default:
		return p.fatalf(tok, "expected a quoted literal in the external identifier")
	}
}

func (p *Parser) receiveAfterExternalID(tok token.Token) error {
	switch tok.Type {
	case token.S:
		return nil
	case token.LBRACKET:
		return p.enterSubset()
	case token.GT:
		return p.finishHeader()
	default:
		return p.fatalf(tok, "after the DOCTYPE external identifier")
	}
}

func (p *Parser) enterSubset() error {
	if err := p.startDTD(); err != nil {
		return p.fail(err)
	}
	p.sub = &subset{p: p, tz: p.tz, internal: true, collecting: token.Invalid}
	p.state = hInSubset
	return nil
}

// startDTD dispatches start_dtd the first time the full external identifier
// (if any) is known, whether or not an internal subset follows — so a bare
// "<!DOCTYPE root>" with neither still gets a start_dtd/end_dtd pair.
func (p *Parser) startDTD() error {
	if p.dtdStarted {
		return nil
	}
	p.dtdStarted = true
	return sax.Dispatch(p.sink, func(h sax.LexicalHandler) error {
		return h.StartDTD(p.dtd.Name, p.publicID, p.systemID)
	})
}

func (p *Parser) closeInternalSubset() error {
	p.tz.ExitInternalSubset()
	p.sub = nil
	p.state = hAfterSubset
	return nil
}

func (p *Parser) receiveAfterSubset(tok token.Token) error {
	switch tok.Type {
	case token.S:
		return nil
	case token.GT:
		return p.finishHeader()
	default:
		return p.fatalf(tok, "expected '>' to close the DOCTYPE declaration")
	}
}

// finishHeader is reached on the DOCTYPE's own closing '>'. If an external
// identifier was read, its subset is fetched and processed now, as a
// separate synchronous sub-parse, before handover (spec §4.4: external
// subset processing happens after the internal subset, never interleaved
// with it).
func (p *Parser) finishHeader() error {
	if p.dtd == nil {
		p.dtd = New("")
	}
	if err := p.startDTD(); err != nil {
		return p.fail(err)
	}
	if !p.extPending || p.resolver == nil {
		return p.complete()
	}
	data, encodingHint, err := p.resolver.ResolveEntity(p.publicID, p.systemID, p.baseURI)
	if err != nil {
		// spec §4.4: an EntityResolver failure on the DTD's own external
		// subset is fatal, unlike a failure resolving a general entity
		// reference encountered later, mid-document.
		return p.fail(errors.Wrap(err, "dtd: resolving the external subset"))
	}
	if data == nil {
		return p.complete()
	}
	if err := sax.Dispatch(p.sink, func(h sax.LexicalHandler) error {
		return h.StartEntity("[dtd]")
	}); err != nil {
		return p.fail(err)
	}
	if err := p.parseExternalSubset(data, encodingHint); err != nil {
		return p.fail(err)
	}
	if err := sax.Dispatch(p.sink, func(h sax.LexicalHandler) error {
		return h.EndEntity("[dtd]")
	}); err != nil {
		return p.fail(err)
	}
	return p.complete()
}

func (p *Parser) complete() error {
	p.state = hDone
	err := sax.Dispatch(p.sink, func(h sax.LexicalHandler) error {
		return h.EndDTD()
	})
	if p.done != nil {
		p.done(p.dtd, err)
	}
	return err
}

func (p *Parser) pushPE(name string) error {
	for _, n := range p.peStack {
		if n == name {
			return errors.Errorf("dtd: parameter entity %%%s; is recursively self-referential", name)
		}
	}
	p.peStack = append(p.peStack, name)
	return nil
}

func (p *Parser) popPE() { p.peStack = p.peStack[:len(p.peStack)-1] }
