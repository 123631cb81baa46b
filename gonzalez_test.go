package gonzalez_test

import (
	"testing"

	"github.com/bluezoo/gonzalez"
	"github.com/bluezoo/gonzalez/sax"
)

type recorder struct {
	trace  []string
	errors []string
}

func (r *recorder) log(s string) { r.trace = append(r.trace, s) }

func (r *recorder) StartDocument() error { r.log("start_document"); return nil }
func (r *recorder) EndDocument() error   { r.log("end_document"); return nil }
func (r *recorder) StartPrefixMapping(prefix, uri string) error { return nil }
func (r *recorder) EndPrefixMapping(prefix string) error        { return nil }
func (r *recorder) StartElement(uri, local, qname string, attrs []sax.Attribute) error {
	r.log("start_element:" + qname)
	return nil
}
func (r *recorder) EndElement(uri, local, qname string) error {
	r.log("end_element:" + qname)
	return nil
}
func (r *recorder) Characters(text string) error           { r.log("characters:" + text); return nil }
func (r *recorder) IgnorableWhitespace(text string) error   { return nil }
func (r *recorder) ProcessingInstruction(t, d string) error { return nil }
func (r *recorder) SkippedEntity(name string) error         { return nil }

func (r *recorder) Error(kind sax.ErrorKind, loc sax.Locator, message string) error {
	r.errors = append(r.errors, message)
	return nil
}

func Test_SimpleDocumentEndToEnd(t *testing.T) {
	rec := &recorder{}
	p := gonzalez.New(rec)

	if err := p.Receive([]byte(`<root>`)); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if err := p.Receive([]byte(`hello</root>`)); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := []string{"start_document", "start_element:root", "characters:hello", "end_element:root", "end_document"}
	if len(rec.trace) != len(want) {
		t.Fatalf("trace = %v, want %v", rec.trace, want)
	}
	for i := range want {
		if rec.trace[i] != want[i] {
			t.Fatalf("trace[%d] = %q, want %q (full trace %v)", i, rec.trace[i], want[i], rec.trace)
		}
	}
}

func Test_ReceiveAfterCloseIsRejected(t *testing.T) {
	rec := &recorder{}
	p := gonzalez.New(rec)
	if err := p.Receive([]byte(`<r/>`)); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Receive([]byte(`<r/>`)); err == nil {
		t.Fatalf("expected an error receiving after Close")
	}
}

func Test_FatalErrorReportedToErrorHandlerAndRejectsFurtherUse(t *testing.T) {
	rec := &recorder{}
	p := gonzalez.New(rec)

	if err := p.Receive([]byte(`<a></b>`)); err == nil {
		t.Fatalf("expected a well-formedness error for the mismatched end tag")
	}
	if len(rec.errors) != 1 {
		t.Fatalf("expected exactly one reported error, got %v", rec.errors)
	}
	if err := p.Receive([]byte(`<r/>`)); err == nil {
		t.Fatalf("expected Receive to keep rejecting input after a fatal error")
	}
}

func Test_ResetAllowsReuseForAnotherDocument(t *testing.T) {
	rec := &recorder{}
	p := gonzalez.New(rec)

	if err := p.Receive([]byte(`<a/>`)); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	p.Reset()
	rec.trace = nil

	if err := p.Receive([]byte(`<b/>`)); err != nil {
		t.Fatalf("Receive after Reset: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close after Reset: %v", err)
	}
	if len(rec.trace) == 0 || rec.trace[1] != "start_element:b" {
		t.Fatalf("expected a fresh document to parse after Reset, got %v", rec.trace)
	}
}
