// Package content implements the ContentParser of spec §4.3: the
// tokenizer.Consumer that drives a document's body, from before the root
// element through the epilog, assembling namespace-qualified elements and
// attributes and dispatching the sax package's event interfaces. On
// <!DOCTYPE it hands the live Tokenizer to a dtd.Parser and takes it back
// once the declaration's closing '>' is consumed, the same handover
// dtd/parser_test.go's bootstrap type exercises directly.
package content

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/bluezoo/gonzalez/dtd"
	"github.com/bluezoo/gonzalez/internal/chars"
	"github.com/bluezoo/gonzalez/sax"
	"github.com/bluezoo/gonzalez/token"
	"github.com/bluezoo/gonzalez/tokenizer"
)

// pstate is the document-level grammar state (spec §4.3's state machine
// summary): EPILOG_AWAITING_ROOT -> IN_DOCUMENT -> ... -> EPILOG_AFTER_ROOT.
type pstate int

const (
	pProlog pstate = iota
	pTag
	pContent
	pComment
	pPI
	pCDATA
	pEpilog
	pDone
)

// frame is one open element's ElementFrame (spec §3): its resolved name,
// the namespace prefixes it declared (for end_prefix_mapping's reverse-
// order requirement), and whether its content model is element-only
// (driving characters vs ignorable_whitespace for its direct text).
type frame struct {
	uri, local, qname string
	prefixes          []string
	elementOnly       bool
}

// Parser is the ContentParser of spec §4.3.
type Parser struct {
	tz       *tokenizer.Tokenizer
	sink     any
	resolver sax.EntityResolver
	baseURI  string

	// Standalone mirrors the XML declaration's standalone pseudo-attribute
	// (spec §4.1/§7: "undefined general entity reference is fatal in
	// standalone documents, recoverable elsewhere"). It defaults to false
	// (the permissive, "try to recover" reading) and is set by the owning
	// gonzalez.Parser from decoder.Decoder.Standalone() once the document
	// entity's declaration has been sniffed and only when HasStandalone()
	// is also true.
	Standalone bool

	dtd *dtd.DTD
	ns  *nsStack

	stack []frame

	state   pstate
	resume  pstate // state to return to after a comment/PI/CDATA interlude
	sawRoot bool

	text         strings.Builder
	textHasEntity bool // true once an entity/char reference contributed to text, ruling out ignorable_whitespace

	delim    strings.Builder // comment/CDATA/PI_DATA text, possibly spanning several tokens
	piTarget string

	refKind token.Type // token.Invalid when not inside an in-content entity reference
	refName strings.Builder

	tag tagBuild
}

// New returns a Parser ready to drive tz as its Consumer from the very
// first token of a document. resolver may be nil, in which case a DOCTYPE
// naming an external subset has that subset silently skipped (spec §6.3).
func New(tz *tokenizer.Tokenizer, sink any, resolver sax.EntityResolver, baseURI string) *Parser {
	return &Parser{
		tz:       tz,
		sink:     sink,
		resolver: resolver,
		baseURI:  baseURI,
		ns:       newNSStack(),
		state:    pProlog,
		refKind:  token.Invalid,
	}
}

// SetTokenizer binds the live Tokenizer this Parser drives. It is separate
// from New because the two are mutually referential at construction time:
// the Tokenizer is built from its Consumer (this Parser), so the Parser
// cannot also take the Tokenizer as a constructor argument. Must be called
// once, before the first Receive.
func (p *Parser) SetTokenizer(tz *tokenizer.Tokenizer) { p.tz = tz }

// Start dispatches start_document. It is separate from New so the caller
// can finish wiring the Parser (SetTokenizer, Standalone) before the first
// event fires.
func (p *Parser) Start() error {
	return sax.Dispatch(p.sink, func(h sax.ContentHandler) error {
		return h.StartDocument()
	})
}

// Close finalizes the document once the underlying byte stream is
// exhausted, verifying the open-element stack is empty exactly when the
// document is (spec §3's invariant) before dispatching end_document.
func (p *Parser) Close() error {
	if err := p.flushText(); err != nil {
		return err
	}
	if len(p.stack) > 0 {
		return errors.Errorf("content: document ended with %d element(s) still open", len(p.stack))
	}
	if !p.sawRoot {
		return errors.New("content: document has no root element")
	}
	if p.state != pEpilog {
		return errors.Errorf("content: document ended unexpectedly before its epilog")
	}
	p.state = pDone
	return sax.Dispatch(p.sink, func(h sax.ContentHandler) error {
		return h.EndDocument()
	})
}

func (p *Parser) fail(err error) error {
	p.state = pDone
	return err
}

func (p *Parser) fatalf(tok token.Token, format string, args ...any) error {
	msg := errors.Errorf(format, args...)
	return p.fail(errors.Wrapf(msg, "content: unexpected %s at offset %d", tok.Type, tok.Pos.Offset))
}

// Receive implements tokenizer.Consumer.
func (p *Parser) Receive(tok token.Token) error {
	switch p.state {
	case pProlog:
		return p.receiveProlog(tok)
	case pTag:
		return p.receiveTag(tok)
	case pContent:
		return p.receiveContent(tok)
	case pComment:
		return p.receiveCommentText(tok)
	case pPI:
		return p.receivePI(tok)
	case pCDATA:
		return p.receiveCDATAText(tok)
	case pEpilog:
		return p.receiveEpilog(tok)
	default: // pDone
		return p.fatalf(tok, "content beyond the end of the document")
	}
}

func isMiscSpace(r rune) bool { return chars.IsWhitespace(r) }

// --- prolog / epilog --------------------------------------------------

func (p *Parser) receiveProlog(tok token.Token) error {
	switch tok.Type {
	case token.CHARDATA:
		if strings.TrimFunc(tok.Text, isMiscSpace) != "" {
			return p.fatalf(tok, "non-whitespace character data before the root element")
		}
		return nil
	case token.LT_BANG_DASH_DASH:
		return p.beginComment(pProlog)
	case token.LT_QUESTION:
		return p.beginPI(pProlog)
	case token.LT_BANG_DOCTYPE:
		if p.dtd != nil {
			return p.fatalf(tok, "a document may declare at most one DOCTYPE")
		}
		return p.beginDoctype()
	case token.LT:
		p.tag.reset(false)
		p.state = pTag
		return nil
	default:
		return p.fatalf(tok, "before the root element")
	}
}

func (p *Parser) receiveEpilog(tok token.Token) error {
	switch tok.Type {
	case token.CHARDATA:
		if strings.TrimFunc(tok.Text, isMiscSpace) != "" {
			return p.fatalf(tok, "non-whitespace character data after the root element")
		}
		return nil
	case token.LT_BANG_DASH_DASH:
		return p.beginComment(pEpilog)
	case token.LT_QUESTION:
		return p.beginPI(pEpilog)
	default:
		return p.fatalf(tok, "after the root element")
	}
}

// beginDoctype swaps the live Tokenizer to a dtd.Parser, reclaiming it once
// the declaration's own closing '>' is consumed (spec §4.4's handover).
// If dp's own Receive call ever returns an error, it is returned directly
// from that call without ever reaching this Parser's Receive again, so the
// done callback itself never needs to carry an error back out.
func (p *Parser) beginDoctype() error {
	dp := dtd.NewParser(p.tz, p.sink, p.resolver, p.baseURI, func(d *dtd.DTD, err error) {
		if d == nil {
			d = dtd.New("")
		}
		p.dtd = d
		p.tz.SetConsumer(p)
	})
	p.tz.SetConsumer(dp)
	return nil
}

// --- comments / processing instructions / CDATA -----------------------

func (p *Parser) beginComment(resume pstate) error {
	p.delim.Reset()
	p.state = pComment
	p.resume = resume
	return nil
}

func (p *Parser) receiveCommentText(tok token.Token) error {
	switch tok.Type {
	case token.COMMENT_TEXT:
		p.delim.WriteString(tok.Text)
		return nil
	case token.DASH_DASH_GT:
		text := p.delim.String()
		p.delim.Reset()
		p.state = p.resume
		return sax.Dispatch(p.sink, func(h sax.LexicalHandler) error {
			return h.Comment(text)
		})
	default:
		return p.fatalf(tok, "inside a comment")
	}
}

func (p *Parser) beginPI(resume pstate) error {
	p.delim.Reset()
	p.piTarget = ""
	p.state = pPI
	p.resume = resume
	return nil
}

func (p *Parser) receivePI(tok token.Token) error {
	switch tok.Type {
	case token.PI_TARGET:
		p.piTarget = tok.Text
		return nil
	case token.PI_DATA:
		p.delim.WriteString(tok.Text)
		return nil
	case token.QUESTION_GT:
		data := p.delim.String()
		if len(data) > 0 && isMiscSpace(rune(data[0])) {
			data = data[1:]
		}
		target := p.piTarget
		p.delim.Reset()
		p.piTarget = ""
		p.state = p.resume
		return sax.Dispatch(p.sink, func(h sax.ContentHandler) error {
			return h.ProcessingInstruction(target, data)
		})
	default:
		return p.fatalf(tok, "inside a processing instruction")
	}
}

func (p *Parser) receiveCDATAText(tok token.Token) error {
	switch tok.Type {
	case token.CDATA_TEXT:
		p.delim.WriteString(tok.Text)
		return nil
	case token.CDATA_END:
		text := p.delim.String()
		p.delim.Reset()
		p.state = p.resume
		if err := sax.Dispatch(p.sink, func(h sax.ContentHandler) error {
			return h.Characters(text)
		}); err != nil {
			return err
		}
		return sax.Dispatch(p.sink, func(h sax.LexicalHandler) error {
			return h.EndCDATA()
		})
	default:
		return p.fatalf(tok, "inside a CDATA section")
	}
}

// --- element content -----------------------------------------------------

func (p *Parser) receiveContent(tok token.Token) error {
	if p.refKind != token.Invalid {
		return p.receiveContentRef(tok)
	}
	switch tok.Type {
	case token.CHARDATA:
		p.text.WriteString(tok.Text)
		return nil
	case token.SEMI:
		p.text.WriteByte(';')
		return nil
	case token.AMP, token.HASH, token.HASH_X:
		p.refKind = tok.Type
		p.refName.Reset()
		return nil
	case token.LT:
		if err := p.flushText(); err != nil {
			return err
		}
		p.tag.reset(false)
		p.state = pTag
		return nil
	case token.LT_SLASH:
		if err := p.flushText(); err != nil {
			return err
		}
		p.tag.reset(true)
		p.state = pTag
		return nil
	case token.LT_BANG_DASH_DASH:
		if err := p.flushText(); err != nil {
			return err
		}
		return p.beginComment(pContent)
	case token.LT_QUESTION:
		if err := p.flushText(); err != nil {
			return err
		}
		return p.beginPI(pContent)
	case token.LT_BANG_CDATA:
		if err := p.flushText(); err != nil {
			return err
		}
		p.delim.Reset()
		p.state = pCDATA
		p.resume = pContent
		return sax.Dispatch(p.sink, func(h sax.LexicalHandler) error {
			return h.StartCDATA()
		})
	default:
		return p.fatalf(tok, "in element content")
	}
}

func (p *Parser) receiveContentRef(tok token.Token) error {
	if tok.Type == token.SEMI {
		name := p.refName.String()
		kind := p.refKind
		p.refKind = token.Invalid
		return p.resolveContentRef(kind, name)
	}
	if tok.Type != token.CHARDATA {
		return p.fatalf(tok, "malformed reference in element content")
	}
	p.refName.WriteString(tok.Text)
	return nil
}

func (p *Parser) resolveContentRef(kind token.Type, name string) error {
	switch kind {
	case token.HASH:
		s, err := resolveCharRef(false, name)
		if err != nil {
			return p.fail(err)
		}
		p.text.WriteString(s)
		p.textHasEntity = true
		return nil
	case token.HASH_X:
		s, err := resolveCharRef(true, name)
		if err != nil {
			return p.fail(err)
		}
		p.text.WriteString(s)
		p.textHasEntity = true
		return nil
	}

	v, ok, err := resolveGeneralEntity(p.dtd, name, 0)
	if err != nil {
		return p.fail(err)
	}
	if !ok {
		if p.Standalone {
			return p.fail(errors.Errorf("content: reference to undefined entity %q", name))
		}
		if err := p.flushText(); err != nil {
			return err
		}
		return sax.Dispatch(p.sink, func(h sax.ContentHandler) error {
			return h.SkippedEntity(name)
		})
	}
	if err := sax.Dispatch(p.sink, func(h sax.LexicalHandler) error {
		return h.StartEntity(name)
	}); err != nil {
		return err
	}
	p.text.WriteString(v)
	p.textHasEntity = true
	return sax.Dispatch(p.sink, func(h sax.LexicalHandler) error {
		return h.EndEntity(name)
	})
}

// flushText dispatches whatever character data has accumulated since the
// last structural event, as characters or (spec §4.3: only for an
// element-only content model's inter-child whitespace) ignorable_whitespace.
func (p *Parser) flushText() error {
	if p.text.Len() == 0 {
		p.textHasEntity = false
		return nil
	}
	text := p.text.String()
	p.text.Reset()
	hadEntity := p.textHasEntity
	p.textHasEntity = false

	if !hadEntity && len(p.stack) > 0 && p.stack[len(p.stack)-1].elementOnly && strings.TrimFunc(text, isMiscSpace) == "" {
		return sax.Dispatch(p.sink, func(h sax.ContentHandler) error {
			return h.IgnorableWhitespace(text)
		})
	}
	return sax.Dispatch(p.sink, func(h sax.ContentHandler) error {
		return h.Characters(text)
	})
}

// --- start / end tag completion -----------------------------------------

func (p *Parser) finishEndTag(qname string) error {
	if len(p.stack) == 0 {
		return p.fail(errors.Errorf("content: unmatched end tag </%s>", qname))
	}
	top := p.stack[len(p.stack)-1]
	if top.qname != qname {
		return p.fail(errors.Errorf("content: end tag </%s> does not match open element <%s>", qname, top.qname))
	}
	return p.popElement(top)
}

// popElement emits end_element then end_prefix_mapping in the reverse of
// the element's own declaration order (spec §4.3), pops its namespace
// scope, and moves the document state machine along: back to in-element
// content if an ancestor remains open, otherwise into the epilog.
func (p *Parser) popElement(f frame) error {
	p.stack = p.stack[:len(p.stack)-1]
	if err := sax.Dispatch(p.sink, func(h sax.ContentHandler) error {
		return h.EndElement(f.uri, f.local, f.qname)
	}); err != nil {
		return p.fail(err)
	}
	for i := len(f.prefixes) - 1; i >= 0; i-- {
		prefix := f.prefixes[i]
		if err := sax.Dispatch(p.sink, func(h sax.ContentHandler) error {
			return h.EndPrefixMapping(prefix)
		}); err != nil {
			return p.fail(err)
		}
	}
	p.ns.pop()
	if len(p.stack) == 0 {
		p.state = pEpilog
	} else {
		p.state = pContent
	}
	return nil
}

func (p *Parser) finishStartTag(qname string, raw []rawAttr, selfClosing bool) error {
	uri, local, attrs, bindings, err := p.resolveStartTag(qname, raw)
	if err != nil {
		return p.fail(err)
	}
	for _, b := range bindings {
		if err := sax.Dispatch(p.sink, func(h sax.ContentHandler) error {
			return h.StartPrefixMapping(b.prefix, b.uri)
		}); err != nil {
			return p.fail(err)
		}
	}
	if err := sax.Dispatch(p.sink, func(h sax.ContentHandler) error {
		return h.StartElement(uri, local, qname, attrs)
	}); err != nil {
		return p.fail(err)
	}

	prefixes := make([]string, len(bindings))
	for i, b := range bindings {
		prefixes[i] = b.prefix
	}
	f := frame{uri: uri, local: local, qname: qname, prefixes: prefixes, elementOnly: p.isElementOnly(qname)}
	p.sawRoot = true

	if selfClosing {
		return p.popElement(f)
	}
	p.stack = append(p.stack, f)
	p.state = pContent
	return nil
}

// isElementOnly reports whether qname's declared content model admits only
// child elements (never character data), the condition under which
// whitespace between its children is ignorable rather than significant
// (spec §4.3). Without a DTD nothing is known to be element-only, so text
// is always reported as characters, the safe non-validating default.
func (p *Parser) isElementOnly(qname string) bool {
	if p.dtd == nil {
		return false
	}
	decl, ok := p.dtd.Elements[qname]
	if !ok || decl.Content == nil {
		return false
	}
	switch decl.Content.Kind {
	case dtd.ModelSequence, dtd.ModelChoice:
		return true
	default:
		return false
	}
}
