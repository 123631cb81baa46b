// Package charset provides the decoder abstraction the external entity
// decoder drives: a label plus a decoder capable of consuming bytes and
// producing characters with explicit Malformed, Unmappable, Underflow, and
// OK outcomes (spec §3).
//
// UTF-8 decodes straight off unicode/utf8, matching how the teacher's own
// lexer decodes runes (internal/lexer/lexer.go's Next/Backup). Every other
// charset is backed by golang.org/x/text, whose encoding.Decoder already
// exposes the same underflow/malformed distinction through
// transform.ErrShortSrc and the standard "replacement byte" behavior, so
// Decoder.Decode is a thin adapter rather than a reimplementation.
package charset

import (
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Outcome is the result of a single Decode call.
type Outcome int

const (
	// OK means at least one character was produced.
	OK Outcome = iota
	// Underflow means the tail of src is an incomplete sequence; the
	// caller should retain it and retry once more bytes arrive.
	Underflow
	// Malformed means src contains a byte sequence invalid for the
	// charset.
	Malformed
	// Unmappable means src contains a validly-encoded byte sequence with
	// no corresponding Unicode code point in this charset.
	Unmappable
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "OK"
	case Underflow:
		return "UNDERFLOW"
	case Malformed:
		return "MALFORMED"
	case Unmappable:
		return "UNMAPPABLE"
	default:
		return "UNKNOWN"
	}
}

// ErrUnknownCharset is returned by Lookup for a name not in the registry.
var ErrUnknownCharset = errors.New("charset: unknown encoding")

// Decoder converts bytes to UTF-8 text, incrementally. Implementations must
// be resumable: a call that returns Underflow leaves src's unconsumed tail
// as the prefix the next call will see (prepended to whatever new bytes
// arrived), and must not have written partial output for the incomplete
// sequence at the tail.
type Decoder interface {
	// Decode consumes a prefix of src and appends its UTF-8 translation to
	// dst, returning the number of src bytes consumed and the outcome.
	// atEOF indicates no more bytes will ever follow src; in that case an
	// incomplete trailing sequence is Malformed rather than Underflow.
	Decode(dst []byte, src []byte, atEOF bool) (nSrc int, out Outcome, dstOut []byte)
}

// Charset names a character encoding and how to construct a fresh Decoder
// for it. Decoders carry internal state (e.g. UTF-16 surrogate pairs
// spanning a chunk boundary) so each entity gets its own instance.
type Charset struct {
	// Name is the canonical label reported through the Locator.
	Name string
	// NewDecoder returns a fresh, stateful Decoder for one entity.
	NewDecoder func() Decoder
}

var registry = map[string]Charset{}

func register(c Charset, aliases ...string) {
	registry[normalize(c.Name)] = c
	for _, a := range aliases {
		registry[normalize(a)] = c
	}
}

func normalize(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z':
			out = append(out, c-'A'+'a')
		case c == '_':
			out = append(out, '-')
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

func init() {
	register(Charset{Name: "UTF-8", NewDecoder: newUTF8Decoder}, "UTF8")
	register(Charset{Name: "UTF-16LE", NewDecoder: newUnicodeDecoder(unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM))})
	register(Charset{Name: "UTF-16BE", NewDecoder: newUnicodeDecoder(unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM))})
	register(Charset{Name: "UTF-16", NewDecoder: newUnicodeDecoder(unicode.UTF16(unicode.BigEndian, unicode.UseBOM))})
	register(Charset{Name: "ISO-8859-1", NewDecoder: newCharmapDecoder(charmap.ISO8859_1)}, "Latin1", "ISO-8859_1")
	register(Charset{Name: "US-ASCII", NewDecoder: newASCIIDecoder}, "ASCII")
}

// Lookup resolves a charset label (as would appear in an encoding
// declaration, case-insensitively, with '_' treated as '-') to a Charset.
func Lookup(name string) (Charset, error) {
	if c, ok := registry[normalize(name)]; ok {
		return c, nil
	}
	return Charset{}, errors.Wrapf(ErrUnknownCharset, "charset %q", name)
}

// Default is the charset assumed absent a BOM, declaration, or host hint.
func Default() Charset {
	c, _ := Lookup("UTF-8")
	return c
}

// --- UTF-8 --------------------------------------------------------------

type utf8Decoder struct{}

func newUTF8Decoder() Decoder { return utf8Decoder{} }

func (utf8Decoder) Decode(dst, src []byte, atEOF bool) (int, Outcome, []byte) {
	n := 0
	for n < len(src) {
		r, size := utf8.DecodeRune(src[n:])
		if r == utf8.RuneError && size <= 1 {
			if !atEOF && isIncompleteUTF8(src[n:]) {
				return n, Underflow, dst
			}
			return n, Malformed, dst
		}
		dst = append(dst, src[n:n+size]...)
		n += size
	}
	return n, OK, dst
}

// isIncompleteUTF8 reports whether src could be the valid prefix of a
// multibyte UTF-8 sequence that was simply cut short by a chunk boundary.
func isIncompleteUTF8(src []byte) bool {
	if len(src) == 0 {
		return false
	}
	b := src[0]
	var want int
	switch {
	case b&0x80 == 0x00:
		want = 1
	case b&0xE0 == 0xC0:
		want = 2
	case b&0xF0 == 0xE0:
		want = 3
	case b&0xF8 == 0xF0:
		want = 4
	default:
		return false
	}
	return len(src) < want
}

// --- ASCII ----------------------------------------------------------------

type asciiDecoder struct{}

func newASCIIDecoder() Decoder { return asciiDecoder{} }

func (asciiDecoder) Decode(dst, src []byte, atEOF bool) (int, Outcome, []byte) {
	n := 0
	for n < len(src) {
		if src[n] > 0x7F {
			return n, Malformed, dst
		}
		dst = append(dst, src[n])
		n++
	}
	return n, OK, dst
}

// --- golang.org/x/text/encoding-backed decoders ---------------------------

// xtextDecoder adapts an x/text encoding.Decoder (a transform.Transformer)
// to the Decoder interface.
type xtextDecoder struct {
	t transform.Transformer
}

func newCharmapDecoder(cm *charmap.Charmap) func() Decoder {
	return func() Decoder { return &xtextDecoder{t: cm.NewDecoder()} }
}

func newUnicodeDecoder(enc encoding.Encoding) func() Decoder {
	return func() Decoder { return &xtextDecoder{t: enc.NewDecoder()} }
}

func (d *xtextDecoder) Decode(dst, src []byte, atEOF bool) (int, Outcome, []byte) {
	out := make([]byte, 0, len(src)*2+utf8.UTFMax)
	nDst, nSrc, err := d.t.Transform(out[:cap(out)], src, atEOF)
	out = out[:nDst]
	dst = append(dst, out...)

	switch {
	case err == nil:
		return nSrc, OK, dst
	case err == transform.ErrShortSrc:
		if nSrc == 0 && nDst == 0 {
			return nSrc, Underflow, dst
		}
		return nSrc, OK, dst
	case err == transform.ErrShortDst:
		// Our scratch buffer should always be large enough; treat as a
		// partial success and let the caller call Decode again.
		return nSrc, OK, dst
	default:
		return nSrc, Malformed, dst
	}
}
