// Command gonzalez reads an XML document from stdin and re-serializes it to
// stdout, exercising the round-trip property of spec §8 end to end: a
// gonzalez.Parser feeding a writer.Writer sink directly, the way
// ucarion/c14n's cmd/c14n/main.go wires a decoder straight into
// c14n.Canonicalize and prints the result. No CLI framework: a document
// this small a tool only needs the two flags below, which stdlib flag
// covers without pulling in anything heavier.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/bluezoo/gonzalez"
	"github.com/bluezoo/gonzalez/sax"
	"github.com/bluezoo/gonzalez/writer"
)

type errHandler struct{}

func (errHandler) Error(kind sax.ErrorKind, loc sax.Locator, message string) error {
	fmt.Fprintf(os.Stderr, "gonzalez: %s:%d:%d: %s\n", loc.SystemID(), loc.Line(), loc.Column(), message)
	return nil
}

// sink bundles a writer.Writer with an ErrorHandler so the one value
// satisfies both sax.ContentHandler (via embedding) and sax.ErrorHandler.
type sink struct {
	*writer.Writer
	errHandler
}

func main() {
	indent := flag.String("indent", "", "indentation unit per nesting depth (default: none)")
	standalone := flag.Bool("standalone", false, "inline the DOCTYPE internal subset and omit external identifiers")
	flag.Parse()

	wr := writer.New(os.Stdout)
	wr.SetIndent(*indent)
	wr.SetStandalone(*standalone)

	p := gonzalez.New(&sink{Writer: wr})

	buf := make([]byte, 32*1024)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			if recvErr := p.Receive(buf[:n]); recvErr != nil {
				fmt.Fprintln(os.Stderr, "gonzalez:", recvErr)
				os.Exit(1)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "gonzalez:", err)
			os.Exit(1)
		}
	}

	if err := p.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "gonzalez:", err)
		os.Exit(1)
	}
	if err := wr.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "gonzalez:", err)
		os.Exit(1)
	}
}
