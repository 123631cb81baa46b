package decoder

import "github.com/bluezoo/gonzalez/version"

// UTF-8 encodings of the two extra XML 1.1 line-end characters (spec §4.1):
// NEL is U+0085 (C2 85), LINE SEPARATOR is U+2028 (E2 80 A8). CR and CRLF
// are normalized for both versions; these two are XML 1.1 only.
const (
	nel1, nel2    = 0xC2, 0x85
	ls1, ls2, ls3 = 0xE2, 0x80, 0xA8
)

// lineEndState carries line-end normalization state across chunk
// boundaries: a trailing CR that might still turn out to be the first half
// of a split CRLF pair, and (XML 1.1 only) a trailing partial UTF-8 prefix
// of a NEL or LINE SEPARATOR sequence that might similarly complete once
// more bytes arrive. At most one of the two is ever set, since the last
// byte of a chunk can only be the start of one or the other.
type lineEndState struct {
	pendingCR bool
	pendingMB []byte // 0, 1, or 2 bytes: a prefix of nel1 or ls1/ls1,ls2
}

// normalizeLineEnds rewrites every CR and CRLF pair in data to a single LF,
// per XML's line-end normalization rule (spec §3's "Updated after line-end
// normalization" and the idempotence invariant of spec §9): once normalized,
// renormalizing is a no-op since no LF survives as part of a CRLF pair.
//
// In XML 1.1 (v == version.V11), it additionally folds NEL (U+0085) and
// LINE SEPARATOR (U+2028) to LF (spec §4.1); XML 1.0 leaves both characters
// alone, so v gates this half of the rule.
//
// state carries a CR or a partial NEL/LS prefix seen at the very end of a
// previous call that might still complete into a single line ending;
// atEOF forces both to be resolved instead of held back indefinitely.
func normalizeLineEnds(data []byte, state lineEndState, v version.Version, atEOF bool) ([]byte, lineEndState) {
	if len(state.pendingMB) > 0 {
		data = append(append(make([]byte, 0, len(state.pendingMB)+len(data)), state.pendingMB...), data...)
		state.pendingMB = nil
	}

	out := make([]byte, 0, len(data)+1)
	i := 0
	if state.pendingCR {
		if len(data) > 0 && data[0] == '\n' {
			i = 1
		}
		out = append(out, '\n')
		state.pendingCR = false
	}

	for i < len(data) {
		b := data[i]

		if b == '\r' {
			if i == len(data)-1 {
				if atEOF {
					out = append(out, '\n')
				} else {
					state.pendingCR = true
				}
				i++
				continue
			}
			out = append(out, '\n')
			if data[i+1] == '\n' {
				i += 2
			} else {
				i++
			}
			continue
		}

		if v == version.V11 {
			if b == nel1 {
				if i+1 >= len(data) {
					if atEOF {
						out = append(out, b)
					} else {
						state.pendingMB = append(state.pendingMB, b)
					}
					i++
					continue
				}
				if data[i+1] == nel2 {
					out = append(out, '\n')
					i += 2
					continue
				}
			}

			if b == ls1 {
				if i+2 >= len(data) {
					if atEOF {
						out = append(out, data[i:]...)
					} else {
						state.pendingMB = append(state.pendingMB, data[i:]...)
					}
					i = len(data)
					continue
				}
				if data[i+1] == ls2 && data[i+2] == ls3 {
					out = append(out, '\n')
					i += 3
					continue
				}
			}
		}

		out = append(out, b)
		i++
	}

	return out, state
}
