// Package locator implements the Locator of spec §6.4: the current
// line/column/byte-offset plus the enclosing entity's system ID, public ID,
// charset label, and XML version, handed to sax.ErrorHandler alongside every
// reported error. ContentHandler callbacks are not given a Locator.
package locator

import (
	"github.com/bluezoo/gonzalez/decoder"
	"github.com/bluezoo/gonzalez/tokenizer"
)

// Locator is the sax.Locator of spec §6.4. Position comes straight from the
// live Tokenizer; charset and version come from the Decoder given to
// SetDecoder. SystemID/PublicID are plain fields, set by the root Parser
// for the document entity; reading an external subset changes none of
// these, so they keep describing the document entity.
type Locator struct {
	tz  *tokenizer.Tokenizer
	dec *decoder.Decoder

	systemID, publicID string
}

// New returns a Locator reporting tz's position. SetDecoder must be called
// once a Decoder exists for the entity currently being read; until then,
// Charset and Version report the empty string.
func New(tz *tokenizer.Tokenizer) *Locator {
	return &Locator{tz: tz}
}

// SetDecoder points the Locator at dec for Charset/Version reporting. The
// root Parser calls it once, with the document entity's Decoder.
func (l *Locator) SetDecoder(dec *decoder.Decoder) { l.dec = dec }

// SetSystemID and SetPublicID record the currently-open entity's identity.
func (l *Locator) SetSystemID(id string) { l.systemID = id }
func (l *Locator) SetPublicID(id string) { l.publicID = id }

func (l *Locator) Line() int   { return l.tz.Position().Line }
func (l *Locator) Column() int { return l.tz.Position().Column }
func (l *Locator) Offset() int { return l.tz.Position().Offset }

func (l *Locator) SystemID() string { return l.systemID }
func (l *Locator) PublicID() string { return l.publicID }

func (l *Locator) Charset() string {
	if l.dec == nil {
		return ""
	}
	return l.dec.Charset()
}

func (l *Locator) Version() string {
	if l.dec == nil {
		return ""
	}
	return l.dec.Version().String()
}
