// Package decoder implements the ExternalEntityDecoder of spec §4.1: it
// turns the raw byte stream of one entity into the normalized character
// stream the Tokenizer consumes, sniffing a BOM and then an XML/text
// declaration to settle on a charset before falling into steady-state
// content decoding, with line-end normalization applied throughout.
//
// The state-machine shape (INIT / SEEN_BOM / CONTENT) is new — the teacher
// has no charset layer at all, decoding straight from a Go string — but the
// push/underflow discipline follows the same pattern tokenizer.Tokenizer
// uses: Write is called with whatever bytes are currently available, never
// blocks, and retains an unconsumed byte suffix across calls via
// buffer.CompositeByteBuffer's put/flip/compact cycle.
package decoder

import (
	"github.com/pkg/errors"

	"github.com/bluezoo/gonzalez/buffer"
	"github.com/bluezoo/gonzalez/charset"
	"github.com/bluezoo/gonzalez/result"
	"github.com/bluezoo/gonzalez/tokenizer"
	"github.com/bluezoo/gonzalez/version"
)

// state is the ExternalEntityDecoder's position in spec §4.1's BOM →
// declaration → content progression.
type state int

const (
	stateInit state = iota
	stateSeenBOM
	stateContent
)

// maxDeclPeek bounds how many raw bytes sniffDeclaration will look at before
// giving up and treating a declaration as absent — real declarations are
// well under 100 bytes; this just stops a pathological "<?xml" with no
// closing "?>" from buffering the entire entity in memory.
const maxDeclPeek = 4096

// Decoder is the ExternalEntityDecoder of spec §4.1, one instance per
// entity (each external entity gets its own charset, version, and
// line-ending carry state).
type Decoder struct {
	tz  *tokenizer.Tokenizer
	raw *buffer.CompositeByteBuffer

	state state
	cs    charset.Charset
	dec   charset.Decoder

	version       version.Version
	parentVersion version.Version // Unknown for the document entity itself

	standalone    bool
	hasStandalone bool

	lineEnd lineEndState
	carry   []byte // normalized characters the Tokenizer left unconsumed
}

// New returns a Decoder feeding tz. initialCharsetName is the caller-supplied
// hint (Parser.SetInitialCharset); pass "" to default to UTF-8 absent a BOM
// or declaration. parentVersion is the enclosing document's declared version
// (version.Unknown for the document entity itself), used to enforce spec
// §4.1's "an XML 1.0 document may not include an XML 1.1 external entity".
func New(tz *tokenizer.Tokenizer, initialCharsetName string, parentVersion version.Version) *Decoder {
	cs := charset.Default()
	if initialCharsetName != "" {
		if c, err := charset.Lookup(initialCharsetName); err == nil {
			cs = c
		}
	}
	return &Decoder{
		tz:            tz,
		raw:           buffer.New(),
		cs:            cs,
		dec:           cs.NewDecoder(),
		parentVersion: parentVersion,
	}
}

// Charset is the charset settled on (after BOM/declaration sniffing).
func (d *Decoder) Charset() string { return d.cs.Name }

// Version is the entity's declared XML version, or version.Unknown if none
// was ever seen.
func (d *Decoder) Version() version.Version { return d.version }

// Standalone and HasStandalone report the document entity's XML declaration
// standalone pseudo-attribute (spec §4.1): HasStandalone is false when the
// declaration omitted it (or there was no declaration at all), in which case
// Standalone is meaningless and the document must be treated as non-standalone.
func (d *Decoder) Standalone() bool    { return d.standalone }
func (d *Decoder) HasStandalone() bool { return d.hasStandalone }

// Write feeds the next chunk of raw bytes for this entity. atEOF must be
// true only on the final call (spec §4.1 CONTENT: "preserving byte
// underflow" applies to every call before that).
func (d *Decoder) Write(data []byte, atEOF bool) error {
	d.raw.Put(data)
	d.raw.Flip()
	defer d.raw.Compact()

	for {
		switch d.state {
		case stateInit:
			ok, err := d.sniffBOM(atEOF)
			if err != nil || !ok {
				return err
			}
		case stateSeenBOM:
			ok, err := d.sniffDeclaration(atEOF)
			if err != nil || !ok {
				return err
			}
		case stateContent:
			return d.decodeContent(atEOF)
		default:
			return errors.Errorf("decoder: unknown state %d", d.state)
		}
	}
}

// sniffBOM implements spec §4.1's INIT state.
func (d *Decoder) sniffBOM(atEOF bool) (bool, error) {
	avail := d.raw.Bytes()
	switch {
	case len(avail) >= 3 && avail[0] == 0xEF && avail[1] == 0xBB && avail[2] == 0xBF:
		d.setCharset("UTF-8")
		d.raw.Advance(3)
	case len(avail) >= 2 && avail[0] == 0xFE && avail[1] == 0xFF:
		d.setCharset("UTF-16BE")
		d.raw.Advance(2)
	case len(avail) >= 2 && avail[0] == 0xFF && avail[1] == 0xFE:
		d.setCharset("UTF-16LE")
		d.raw.Advance(2)
	case len(avail) >= 2 && avail[0] == 0xEF && avail[1] == 0xBB:
		if atEOF {
			break // truncated UTF-8 BOM prefix at true EOF: no BOM
		}
		return false, nil // need a 3rd byte to be sure
	case len(avail) < 2:
		if atEOF {
			break // fewer than 2 bytes ever arriving: no BOM possible
		}
		return false, nil
	}
	d.state = stateSeenBOM
	return true, nil
}

func (d *Decoder) setCharset(name string) {
	cs, err := charset.Lookup(name)
	if err != nil {
		return
	}
	d.cs = cs
	d.dec = cs.NewDecoder()
}

// sniffDeclaration implements spec §4.1's SEEN_BOM state. Rather than
// decoding however much of the entity happens to be available (which would
// fail the moment content past the declaration contains a byte invalid in
// the pre-declaration charset — precisely the case an encoding declaration
// exists to handle), it first locates "<?xml" ... "?>" by raw-byte pattern
// match — every byte a declaration can contain is ASCII, so the pattern is
// just that literal widened to the current charset's code-unit width — and
// only then decodes that bounded, self-contained span. Declaration absent
// or malformed leaves the raw buffer untouched; CONTENT re-decodes the same
// bytes as ordinary content.
func (d *Decoder) sniffDeclaration(atEOF bool) (bool, error) {
	width, bigEndian := d.codeUnitWidth()
	avail := d.raw.Bytes()

	startLit := widen("<?xml", width, bigEndian)
	if len(avail) < len(startLit) {
		if atEOF {
			return d.finishDeclaration(declaration{}, 0, result.Failure)
		}
		return false, nil
	}
	for i, b := range startLit {
		if avail[i] != b {
			return d.finishDeclaration(declaration{}, 0, result.Failure)
		}
	}

	endLit := widen("?>", width, bigEndian)
	limit := len(avail)
	capped := false
	if limit > maxDeclPeek {
		limit = maxDeclPeek
		capped = true
	}
	end := -1
	for i := len(startLit); i+len(endLit) <= limit; i += width {
		if matchAt(avail, i, endLit) {
			end = i + len(endLit)
			break
		}
	}
	if end < 0 {
		if atEOF || capped {
			return d.finishDeclaration(declaration{}, 0, result.Failure)
		}
		return false, nil
	}

	dst := make([]byte, 0, end+4)
	nSrc, outcome, decoded := d.dec.Decode(dst, avail[:end], true)
	if outcome != charset.OK || nSrc != end {
		// A "<?xml...?>"-shaped byte span that isn't actually valid under
		// the guessed charset: treat it as absent, same as spec §9's
		// MALFORMED-during-sniffing trade-off.
		return d.finishDeclaration(declaration{}, 0, result.Failure)
	}
	decl, n, res := parseDeclaration(string(decoded), true)
	if res != result.OK || n != len(decoded) {
		return d.finishDeclaration(declaration{}, 0, result.Failure)
	}
	return d.finishDeclaration(decl, end, result.OK)
}

func (d *Decoder) finishDeclaration(decl declaration, rawLen int, res result.Result) (bool, error) {
	if res != result.OK {
		d.state = stateContent
		return true, nil
	}

	d.raw.Advance(rawLen)
	d.version = decl.Version
	d.hasStandalone = decl.HasStandalone
	d.standalone = decl.Standalone

	if d.parentVersion == version.V10 && decl.Version == version.V11 {
		return false, errors.New("decoder: an XML 1.0 document may not include an XML 1.1 external entity")
	}
	if d.tz != nil {
		d.tz.SetVersion(decl.Version)
	}

	if decl.Encoding != "" {
		if cs, err := charset.Lookup(decl.Encoding); err == nil && cs.Name != d.cs.Name {
			d.cs = cs
			d.dec = cs.NewDecoder()
		}
	}

	d.state = stateContent
	return true, nil
}

// codeUnitWidth reports how many raw bytes the current (pre-declaration)
// charset spends per ASCII character, and its byte order — both fixed
// properties of the charset, known before any declaration is read.
func (d *Decoder) codeUnitWidth() (width int, bigEndian bool) {
	switch d.cs.Name {
	case "UTF-16LE":
		return 2, false
	case "UTF-16BE", "UTF-16":
		return 2, true
	default:
		return 1, false
	}
}

func widen(lit string, width int, bigEndian bool) []byte {
	out := make([]byte, 0, len(lit)*width)
	for i := 0; i < len(lit); i++ {
		b := lit[i]
		switch {
		case width == 1:
			out = append(out, b)
		case bigEndian:
			out = append(out, 0, b)
		default:
			out = append(out, b, 0)
		}
	}
	return out
}

func matchAt(data []byte, at int, lit []byte) bool {
	if at+len(lit) > len(data) {
		return false
	}
	for i, b := range lit {
		if data[at+i] != b {
			return false
		}
	}
	return true
}

// decodeContent implements spec §4.1's CONTENT state: decode whatever raw
// bytes are available, normalize line endings, and forward the result to
// the Tokenizer, repeating until the available bytes are exhausted or a
// genuine underflow (an incomplete trailing sequence) is reached.
func (d *Decoder) decodeContent(atEOF bool) error {
	for {
		avail := d.raw.Bytes()
		if len(avail) == 0 {
			if atEOF {
				return d.flushPendingCR()
			}
			return nil
		}

		dst := make([]byte, 0, len(avail)*2+4)
		nSrc, outcome, decoded := d.dec.Decode(dst, avail, atEOF)

		switch outcome {
		case charset.Underflow:
			if nSrc > 0 {
				d.raw.Advance(nSrc)
			}
			if atEOF {
				return errors.New("decoder: truncated multi-byte sequence at end of entity")
			}
			if err := d.forward(decoded, false); err != nil {
				return err
			}
			return nil
		case charset.Malformed:
			return errors.New("decoder: malformed byte sequence for the current charset")
		case charset.Unmappable:
			return errors.New("decoder: byte sequence has no mapping in the current charset")
		}

		d.raw.Advance(nSrc)
		lastChunk := atEOF && d.raw.Remaining() == 0
		if err := d.forward(decoded, lastChunk); err != nil {
			return err
		}
		if lastChunk {
			return nil
		}
		if nSrc == 0 {
			// No progress and no underflow reported: nothing left to do.
			return nil
		}
	}
}

func (d *Decoder) forward(decoded []byte, atEOF bool) error {
	normalized, state := normalizeLineEnds(decoded, d.lineEnd, d.version, atEOF)
	d.lineEnd = state
	normalized = append(d.carry, normalized...)
	if len(normalized) == 0 {
		return nil
	}
	n, err := d.tz.Scan(normalized, atEOF)
	d.carry = append([]byte(nil), normalized[n:]...)
	return err
}

// flushPendingCR resolves a line-end carried across the final Write(nil,
// true) call when no new raw bytes arrived to complete it: a lone
// trailing CR becomes a LF (spec §4.1); a lone trailing NEL/LS UTF-8
// prefix (XML 1.1 only) is passed through unchanged, since the charset
// decoder guarantees decoded chunks never actually split a multi-byte
// character, so a prefix still pending at this point did not start one.
// Any characters the Tokenizer left unconsumed are re-presented first.
func (d *Decoder) flushPendingCR() error {
	if !d.lineEnd.pendingCR && len(d.lineEnd.pendingMB) == 0 && len(d.carry) == 0 {
		return nil
	}
	var out []byte
	if d.lineEnd.pendingCR {
		out = []byte{'\n'}
	} else {
		out = d.lineEnd.pendingMB
	}
	d.lineEnd = lineEndState{}
	out = append(d.carry, out...)
	d.carry = nil
	_, err := d.tz.Scan(out, true)
	return err
}
