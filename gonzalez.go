// Package gonzalez implements the host-facing Parser of spec §6.1: a
// push-driven, non-blocking XML 1.0/1.1 parser. A caller constructs a
// Parser against an event sink, optionally configures it (system/public ID,
// entity resolver, initial charset hint), then feeds it bytes via Receive
// as they arrive and calls Close once the stream is exhausted.
//
// Internally a Parser wires buffer.CompositeByteBuffer (inside decoder) →
// decoder.Decoder → tokenizer.Tokenizer → content.Parser, which hands the
// live Tokenizer to a dtd.Parser for the span of a DOCTYPE declaration and
// reclaims it afterward (spec §4.4).
package gonzalez

import (
	"github.com/pkg/errors"

	"github.com/bluezoo/gonzalez/content"
	"github.com/bluezoo/gonzalez/decoder"
	"github.com/bluezoo/gonzalez/locator"
	"github.com/bluezoo/gonzalez/sax"
	"github.com/bluezoo/gonzalez/tokenizer"
	"github.com/bluezoo/gonzalez/version"
)

// Parser is the host-facing API of spec §6.1.
type Parser struct {
	sink     any
	resolver sax.EntityResolver
	systemID string
	publicID string
	charset  string

	tz  *tokenizer.Tokenizer
	dec *decoder.Decoder
	cp  *content.Parser
	loc *locator.Locator

	started bool
	closed  bool
}

// New returns a Parser delivering events to sink. sink is polymorphic over
// the capability set sax lists (spec §4.3/§6.2): implement only the
// handler interfaces relevant to the caller.
func New(sink any) *Parser {
	return &Parser{sink: sink}
}

// SetSystemId and SetPublicId record the document entity's own identifiers,
// used for locator reporting and as the base URI external entities resolve
// against. Call before the first Receive.
func (p *Parser) SetSystemId(uri string) {
	p.systemID = uri
	if p.loc != nil {
		p.loc.SetSystemID(uri)
	}
}

func (p *Parser) SetPublicId(id string) {
	p.publicID = id
	if p.loc != nil {
		p.loc.SetPublicID(id)
	}
}

// SetEntityResolver installs the callback used to fetch external entities
// (spec §6.3). Call before the first Receive; nil (the default) means a
// DOCTYPE naming an external subset has that subset silently skipped.
func (p *Parser) SetEntityResolver(r sax.EntityResolver) { p.resolver = r }

// SetInitialCharset records a caller-supplied charset hint, used before a
// BOM or XML declaration is seen (spec §6.1). Call before the first
// Receive; "" (the default) means UTF-8 absent other evidence.
func (p *Parser) SetInitialCharset(name string) { p.charset = name }

// ensureStarted builds the buffer → decoder → tokenizer → content pipeline
// on the first Receive/Close call, once every Set* configuration call has
// had the chance to run (spec §6.1 lists them before receive/close in its
// own usage order).
func (p *Parser) ensureStarted() error {
	if p.started {
		return nil
	}
	p.started = true

	cp := content.New(nil, p.sink, p.resolver, p.systemID)
	tz := tokenizer.New(cp)
	cp.SetTokenizer(tz)

	p.tz = tz
	p.cp = cp
	p.dec = decoder.New(tz, p.charset, version.Unknown)

	p.loc = locator.New(tz)
	p.loc.SetDecoder(p.dec)
	p.loc.SetSystemID(p.systemID)
	p.loc.SetPublicID(p.publicID)

	return cp.Start()
}

// syncStandalone propagates the document entity's XML declaration
// standalone pseudo-attribute into the ContentParser (see DESIGN.md:
// decoder.go parses it but content.Parser is the one that needs it, for
// spec §4.1/§7's "undefined entity is fatal in a standalone document"
// rule). Safe to call repeatedly; a no-op once HasStandalone first reports
// true since the declaration is only ever seen once per document.
func (p *Parser) syncStandalone() {
	if p.dec.HasStandalone() {
		p.cp.Standalone = p.dec.Standalone()
	}
}

// Receive pushes the next chunk of the document entity's raw bytes,
// synchronously emitting any events it completes (spec §6.1).
func (p *Parser) Receive(data []byte) error {
	if p.closed {
		return errors.New("gonzalez: Receive called after Close")
	}
	if err := p.ensureStarted(); err != nil {
		return p.fail(err)
	}
	if err := p.dec.Write(data, false); err != nil {
		return p.fail(err)
	}
	p.syncStandalone()
	return nil
}

// Close signals the end of input, flushing the decoder's final partial
// state and emitting end_document if the stream was well-formed up to this
// point (spec §6.1). Subsequent Receive/Close calls are rejected.
func (p *Parser) Close() error {
	if p.closed {
		return errors.New("gonzalez: Close called more than once")
	}
	if err := p.ensureStarted(); err != nil {
		p.closed = true
		return p.fail(err)
	}
	if err := p.dec.Write(nil, true); err != nil {
		return p.fail(err)
	}
	p.syncStandalone()
	if err := p.cp.Close(); err != nil {
		return p.fail(err)
	}
	p.closed = true
	return nil
}

// fail reports err to the sink's ErrorHandler (if any) with the current
// locator, marks the Parser closed (spec §7: a fatal error terminates
// Receive and rejects further calls), and returns err.
func (p *Parser) fail(err error) error {
	p.closed = true
	label := classify(err)
	_ = sax.Dispatch(p.sink, func(h sax.ErrorHandler) error {
		return h.Error(sax.Fatal, p.loc, label+": "+err.Error())
	})
	return err
}

// Reset re-initializes every stateful component (decoder, tokenizer,
// content/DTD parsers) so this Parser can be reused for another document
// (spec §6.1). Configuration set via SetSystemId/SetPublicId/
// SetEntityResolver/SetInitialCharset is retained across Reset; only the
// in-progress document's state is discarded.
func (p *Parser) Reset() {
	p.tz = nil
	p.dec = nil
	p.cp = nil
	p.loc = nil
	p.started = false
	p.closed = false
}
