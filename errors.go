package gonzalez

import "strings"

// classify labels an internal package error with spec §7's error taxonomy
// for the message handed to the sink's ErrorHandler. None of
// decoder/tokenizer/dtd/content currently carry a structured error kind of
// their own (every one of them just wraps a package-prefixed message with
// github.com/pkg/errors), so this is a pragmatic heuristic over that prefix
// and a handful of message substrings rather than a type switch — every
// classified error still reaches the sink as sax.Fatal (well-formedness,
// encoding, and structural errors are all fatal per §7), so the label is
// for a caller's own logging, not a branch anything here takes. Anything
// not recognized below defaults to well-formedness, the catch-all the
// spec lists first.
func classify(err error) (label string) {
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "decoder:") && hasAny(msg, "byte sequence", "multi-byte", "mapping", "charset"):
		return "encoding"
	case hasAny(msg,
		"document ended with", "document has no root", "ended unexpectedly",
		"beyond the end of the document", "second DOCTYPE", "after the root element",
		"before the root element", "DOCTYPE after"):
		return "structural"
	default:
		return "well-formedness"
	}
}

func hasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
