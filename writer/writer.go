// Package writer implements the serializer collaborator of spec §6.5: a
// sax sink that re-renders the same event vocabulary the parser produces
// as bytes, letting the round-trip property of spec §8 be exercised
// directly rather than merely asserted.
package writer

import (
	"fmt"
	"io"
	"strings"

	"github.com/bluezoo/gonzalez/sax"
	"github.com/bluezoo/gonzalez/version"
)

// elemFrame is one open element's bookkeeping: whether its start tag is
// still waiting to see if anything follows before committing to "<a>" vs
// the empty-element form "<a/>" (spec §6.5's empty-element optimization).
type elemFrame struct {
	qname string
	open  bool // start tag's '>' not yet written
}

// Writer is the serializer of spec §6.5. It implements enough of sax's
// handler interfaces (ContentHandler, LexicalHandler, DTDHandler,
// DeclHandler) to consume a full event stream and is typically driven
// directly as the sink of a gonzalez.Parser.
type Writer struct {
	w   io.Writer
	err error

	indent     string // per-depth indentation unit; "" disables indentation
	standalone bool   // spec §6.5: inline all DTD declarations, omit external identifiers
	ver        version.Version

	stack    []elemFrame
	inCDATA  bool
	inDTD    bool
	dtdName  string
	dtdPub   string
	dtdSys   string
	dtdDecls strings.Builder
}

// New returns a Writer rendering onto w. Output is UTF-8; the charset
// package in this module carries decoders only, no encoder, so there is
// no output-charset parameter to thread
// through — see DESIGN.md.
func New(w io.Writer) *Writer {
	return &Writer{w: w, ver: version.V10}
}

// SetIndent sets the indentation unit written per nesting depth ("" or
// unset disables indentation, the default).
func (wr *Writer) SetIndent(unit string) { wr.indent = unit }

// SetStandalone selects spec §6.5's standalone DOCTYPE mode: external
// identifiers are omitted and every declaration is written into the
// internal subset instead.
func (wr *Writer) SetStandalone(standalone bool) { wr.standalone = standalone }

// SetVersion selects XML 1.0 decimal vs XML 1.1 hex character references
// for characters that cannot be written literally.
func (wr *Writer) SetVersion(v version.Version) { wr.ver = v }

// Err returns the first write error encountered, if any. Every handler
// method below keeps running after a write error (so a partially-failed
// write doesn't panic on a nil-dereference further down the stack) but
// simply stops writing; Err is how a caller learns the output is
// incomplete.
func (wr *Writer) Err() error { return wr.err }

func (wr *Writer) writeString(s string) {
	if wr.err != nil {
		return
	}
	_, wr.err = io.WriteString(wr.w, s)
}

func (wr *Writer) writef(format string, args ...any) {
	wr.writeString(fmt.Sprintf(format, args...))
}

// closeStartTagIfOpen finishes a still-open start tag with plain '>',
// called the moment any event proves the element is not empty.
func (wr *Writer) closeStartTagIfOpen() {
	if len(wr.stack) == 0 {
		return
	}
	top := &wr.stack[len(wr.stack)-1]
	if top.open {
		wr.writeString(">")
		top.open = false
	}
}

func (wr *Writer) writeIndent() {
	if wr.indent == "" {
		return
	}
	if len(wr.stack) == 0 {
		return
	}
	wr.writeString("\n" + strings.Repeat(wr.indent, len(wr.stack)))
}

// --- sax.ContentHandler ---------------------------------------------------

func (wr *Writer) StartDocument() error { return nil }
func (wr *Writer) EndDocument() error   { return nil }

func (wr *Writer) StartPrefixMapping(prefix, uri string) error { return nil }
func (wr *Writer) EndPrefixMapping(prefix string) error        { return nil }

// StartElement writes the open angle bracket, qname, and attributes, but
// withholds the closing '>' until it is known whether the element is
// empty (spec §6.5's empty-element optimization): the next event either
// closes it as "/>"  (a matching EndElement with nothing in between) or
// as plain '>' (closeStartTagIfOpen, called by every other event).
func (wr *Writer) StartElement(uri, local, qname string, attrs []sax.Attribute) error {
	wr.closeStartTagIfOpen()
	wr.writeIndent()
	wr.stack = append(wr.stack, elemFrame{qname: qname, open: true})
	wr.writeString("<" + qname)
	for _, a := range attrs {
		wr.writeString(" " + a.QName + `="` + escapeAttr(a.Value, wr.ver) + `"`)
	}
	return wr.err
}

func (wr *Writer) EndElement(uri, local, qname string) error {
	top := wr.stack[len(wr.stack)-1]
	wr.stack = wr.stack[:len(wr.stack)-1]
	if top.open {
		wr.writeString("/>")
		return wr.err
	}
	wr.writeIndent()
	wr.writeString("</" + qname + ">")
	return wr.err
}

func (wr *Writer) Characters(text string) error {
	wr.closeStartTagIfOpen()
	if wr.inCDATA {
		wr.writeString(escapeCDATASections(text))
		return wr.err
	}
	wr.writeString(escapeText(text, wr.ver))
	return wr.err
}

func (wr *Writer) IgnorableWhitespace(text string) error {
	wr.closeStartTagIfOpen()
	wr.writeString(text)
	return wr.err
}

func (wr *Writer) ProcessingInstruction(target, data string) error {
	wr.closeStartTagIfOpen()
	wr.writeIndent()
	if data == "" {
		wr.writef("<?%s?>", target)
		return wr.err
	}
	wr.writef("<?%s %s?>", target, escapePI(data))
	return wr.err
}

// SkippedEntity has no textual form of its own to re-emit: the entity was
// never expanded in the first place, so there is nothing to write.
func (wr *Writer) SkippedEntity(name string) error { return nil }

// --- sax.LexicalHandler ----------------------------------------------------

func (wr *Writer) Comment(text string) error {
	wr.closeStartTagIfOpen()
	wr.writeIndent()
	wr.writeString("<!--" + escapeComment(text) + "-->")
	return wr.err
}

func (wr *Writer) StartCDATA() error {
	wr.closeStartTagIfOpen()
	wr.inCDATA = true
	wr.writeString("<![CDATA[")
	return wr.err
}

func (wr *Writer) EndCDATA() error {
	wr.inCDATA = false
	wr.writeString("]]>")
	return wr.err
}

// StartDTD begins buffering declarations (ElementDecl, AttributeDecl, …)
// into the internal subset; EndDTD flushes the whole `<!DOCTYPE …>`.
func (wr *Writer) StartDTD(name, publicID, systemID string) error {
	wr.inDTD = true
	wr.dtdName, wr.dtdPub, wr.dtdSys = name, publicID, systemID
	wr.dtdDecls.Reset()
	return nil
}

func (wr *Writer) EndDTD() error {
	wr.inDTD = false
	wr.writeString("<!DOCTYPE " + wr.dtdName)
	if !wr.standalone {
		switch {
		case wr.dtdPub != "":
			pq, pb := quoteLiteral(wr.dtdPub)
			sq, sb := quoteLiteral(wr.dtdSys)
			wr.writef(" PUBLIC %c%s%c %c%s%c", pq, pb, pq, sq, sb, sq)
		case wr.dtdSys != "":
			sq, sb := quoteLiteral(wr.dtdSys)
			wr.writef(" SYSTEM %c%s%c", sq, sb, sq)
		}
	}
	if decls := wr.dtdDecls.String(); decls != "" {
		wr.writeString(" [\n" + decls + "]")
	}
	wr.writeString(">")
	wr.dtdDecls.Reset()
	return wr.err
}

// StartEntity and EndEntity bracket a reference the parser already
// resolved into Characters events; there is nothing distinct to write for
// the reference itself, matching spec §4.3's entity boundary events being
// purely informational once expansion has happened.
func (wr *Writer) StartEntity(name string) error { return nil }
func (wr *Writer) EndEntity(name string) error   { return nil }

// --- sax.DTDHandler ---------------------------------------------------------

func (wr *Writer) NotationDecl(name, publicID, systemID string) error {
	wr.dtdDecls.WriteString("<!NOTATION " + name + externalID(publicID, systemID) + ">\n")
	return nil
}

func (wr *Writer) UnparsedEntityDecl(name, publicID, systemID, notation string) error {
	wr.dtdDecls.WriteString("<!ENTITY " + name + externalID(publicID, systemID) + " NDATA " + notation + ">\n")
	return nil
}

// --- sax.DeclHandler ---------------------------------------------------------

func (wr *Writer) ElementDecl(name, model string) error {
	wr.dtdDecls.WriteString("<!ELEMENT " + name + " " + model + ">\n")
	return nil
}

func (wr *Writer) AttributeDecl(element, attr, typ, mode, value string) error {
	wr.dtdDecls.WriteString("<!ATTLIST " + element + " " + attr + " " + typ + " " + attDefault(mode, value, wr.ver) + ">\n")
	return nil
}

func (wr *Writer) InternalEntityDecl(name, value string) error {
	wr.dtdDecls.WriteString(`<!ENTITY ` + name + ` "` + escapeEntityValue(value, wr.ver) + `">` + "\n")
	return nil
}

func (wr *Writer) ExternalEntityDecl(name, publicID, systemID string) error {
	wr.dtdDecls.WriteString("<!ENTITY " + name + externalID(publicID, systemID) + ">\n")
	return nil
}

// externalID renders the shared `PUBLIC "…" "…"` / `SYSTEM "…"` form used
// by notation, unparsed-entity, and external-entity declarations.
func externalID(publicID, systemID string) string {
	switch {
	case publicID != "":
		pq, pb := quoteLiteral(publicID)
		if systemID == "" {
			return fmt.Sprintf(" PUBLIC %c%s%c", pq, pb, pq)
		}
		sq, sb := quoteLiteral(systemID)
		return fmt.Sprintf(" PUBLIC %c%s%c %c%s%c", pq, pb, pq, sq, sb, sq)
	case systemID != "":
		sq, sb := quoteLiteral(systemID)
		return fmt.Sprintf(" SYSTEM %c%s%c", sq, sb, sq)
	default:
		return ""
	}
}

// attDefault renders an ATTLIST declaration's DefaultDecl (spec.md §4.4):
// mode is one of "#REQUIRED", "#IMPLIED", "#FIXED", or "" (a plain literal
// default); value is the literal's content, present only for "#FIXED" and
// "", escaped the same as an ordinary attribute value.
func attDefault(mode, value string, v version.Version) string {
	switch mode {
	case "#REQUIRED":
		return "#REQUIRED"
	case "#IMPLIED":
		return "#IMPLIED"
	case "#FIXED":
		return `#FIXED "` + escapeAttr(value, v) + `"`
	default:
		return `"` + escapeAttr(value, v) + `"`
	}
}
