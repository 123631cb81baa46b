package content_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bluezoo/gonzalez/content"
	"github.com/bluezoo/gonzalez/sax"
	"github.com/bluezoo/gonzalez/tokenizer"
)

// recorder implements enough of sax's handler interfaces to assert
// against: every event is appended to a flat trace so tests can check
// ordering as well as content.
type recorder struct {
	trace []string
	attrs map[string][]sax.Attribute // qname -> attrs, keyed by the most recent start_element for that name
}

func (r *recorder) log(s string) { r.trace = append(r.trace, s) }

func (r *recorder) StartDocument() error { r.log("start_document"); return nil }
func (r *recorder) EndDocument() error   { r.log("end_document"); return nil }
func (r *recorder) StartPrefixMapping(prefix, uri string) error {
	r.log("start_prefix:" + prefix + "=" + uri)
	return nil
}
func (r *recorder) EndPrefixMapping(prefix string) error {
	r.log("end_prefix:" + prefix)
	return nil
}
func (r *recorder) StartElement(uri, local, qname string, attrs []sax.Attribute) error {
	r.log("start_element:" + uri + "|" + local + "|" + qname)
	if r.attrs == nil {
		r.attrs = map[string][]sax.Attribute{}
	}
	r.attrs[qname] = attrs
	return nil
}
func (r *recorder) EndElement(uri, local, qname string) error {
	r.log("end_element:" + qname)
	return nil
}
func (r *recorder) Characters(text string) error {
	r.log("characters:" + text)
	return nil
}
func (r *recorder) IgnorableWhitespace(text string) error {
	r.log("ignorable:" + text)
	return nil
}
func (r *recorder) ProcessingInstruction(target, data string) error {
	r.log("pi:" + target + "|" + data)
	return nil
}
func (r *recorder) SkippedEntity(name string) error {
	r.log("skipped:" + name)
	return nil
}

func (r *recorder) Comment(text string) error { r.log("comment:" + text); return nil }
func (r *recorder) StartCDATA() error          { r.log("start_cdata"); return nil }
func (r *recorder) EndCDATA() error            { r.log("end_cdata"); return nil }
func (r *recorder) StartDTD(name, publicID, systemID string) error {
	r.log("start_dtd:" + name)
	return nil
}
func (r *recorder) EndDTD() error                 { r.log("end_dtd"); return nil }
func (r *recorder) StartEntity(name string) error { r.log("start_entity:" + name); return nil }
func (r *recorder) EndEntity(name string) error   { r.log("end_entity:" + name); return nil }

func run(t *testing.T, input string, resolver sax.EntityResolver) *recorder {
	t.Helper()
	rec := &recorder{}
	cp := content.New(nil, rec, resolver, "")
	tz := tokenizer.New(cp)
	cp.SetTokenizer(tz)

	if err := cp.Start(); err != nil {
		t.Fatalf("Start(): unexpected error: %v", err)
	}
	n, err := tz.Scan([]byte(input), true)
	if err != nil {
		t.Fatalf("Scan(%q): unexpected error: %v", input, err)
	}
	if n != len(input) {
		t.Fatalf("Scan(%q): consumed %d of %d bytes", input, n, len(input))
	}
	if err := cp.Close(); err != nil {
		t.Fatalf("Close(): unexpected error: %v", err)
	}
	return rec
}

func contains(trace []string, s string) bool {
	for _, t := range trace {
		if t == s {
			return true
		}
	}
	return false
}

func Test_SimpleElementWithText(t *testing.T) {
	rec := run(t, `<root>hello</root>`, nil)
	want := []string{"start_document", "start_element:|root|root", "characters:hello", "end_element:root", "end_document"}
	if len(rec.trace) != len(want) {
		t.Fatalf("trace = %v, want %v", rec.trace, want)
	}
	for i := range want {
		if rec.trace[i] != want[i] {
			t.Fatalf("trace[%d] = %q, want %q (full trace %v)", i, rec.trace[i], want[i], rec.trace)
		}
	}
}

func Test_SelfClosingElementWithAttribute(t *testing.T) {
	rec := run(t, `<r a="v"/>`, nil)
	if !contains(rec.trace, "start_element:|r|r") || !contains(rec.trace, "end_element:r") {
		t.Fatalf("unexpected trace: %v", rec.trace)
	}
	attrs := rec.attrs["r"]
	if len(attrs) != 1 || attrs[0].QName != "a" || attrs[0].Value != "v" || !attrs[0].Specified {
		t.Fatalf("unexpected attrs: %+v", attrs)
	}
}

func Test_DuplicateAttributeIsFatal(t *testing.T) {
	rec := &recorder{}
	cp := content.New(nil, rec, nil, "")
	tz := tokenizer.New(cp)
	cp.SetTokenizer(tz)
	if err := cp.Start(); err != nil {
		t.Fatalf("Start(): %v", err)
	}
	_, err := tz.Scan([]byte(`<r a="1" a="2"/>`), true)
	if err == nil {
		t.Fatalf("expected a duplicate-attribute error")
	}
}

func Test_NamespacePrefixAndDefault(t *testing.T) {
	rec := run(t, `<a:root xmlns:a="urn:example:a" xmlns="urn:example:default"><child/></a:root>`, nil)
	if !contains(rec.trace, "start_prefix:a=urn:example:a") {
		t.Fatalf("missing start_prefix_mapping for 'a': %v", rec.trace)
	}
	if !contains(rec.trace, "start_element:urn:example:a|root|a:root") {
		t.Fatalf("root element not resolved against its prefix: %v", rec.trace)
	}
	if !contains(rec.trace, "start_element:urn:example:default|child|child") {
		t.Fatalf("child element not resolved against the inherited default namespace: %v", rec.trace)
	}
}

func Test_NamespacePrefixShadowedThenRestoredOnPop(t *testing.T) {
	rec := run(t, `<a xmlns:p="u1"><b xmlns:p="u2"><p:e/></b><p:f/></a>`, nil)
	if !contains(rec.trace, "start_element:u2|e|p:e") {
		t.Fatalf("p:e should resolve against the inner shadowing binding u2: %v", rec.trace)
	}
	if !contains(rec.trace, "start_element:u1|f|p:f") {
		t.Fatalf("p:f should resolve against the outer binding u1, restored once </b> popped the shadow: %v", rec.trace)
	}
}

func Test_ResolvedAttributeSetMatchesStructurally(t *testing.T) {
	rec := run(t, `<a:root xmlns:a="urn:example:a" a:x="1" y="2"/>`, nil)
	got := rec.attrs["a:root"]
	want := []sax.Attribute{
		{URI: "urn:example:a", Local: "x", QName: "a:x", Value: "1", Type: "CDATA", Specified: true},
		{Local: "y", QName: "y", Value: "2", Type: "CDATA", Specified: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("resolved attributes mismatch (-want +got):\n%s", diff)
	}
}

func Test_UnboundPrefixIsFatal(t *testing.T) {
	rec := &recorder{}
	cp := content.New(nil, rec, nil, "")
	tz := tokenizer.New(cp)
	cp.SetTokenizer(tz)
	if err := cp.Start(); err != nil {
		t.Fatalf("Start(): %v", err)
	}
	_, err := tz.Scan([]byte(`<unbound:root/>`), true)
	if err == nil {
		t.Fatalf("expected an unbound-prefix error")
	}
}

func Test_CDATASectionReportedAsCharacters(t *testing.T) {
	rec := run(t, `<r><![CDATA[<not-a-tag>&amp;]]></r>`, nil)
	if !contains(rec.trace, "start_cdata") || !contains(rec.trace, "end_cdata") {
		t.Fatalf("missing CDATA boundary events: %v", rec.trace)
	}
	if !contains(rec.trace, "characters:<not-a-tag>&amp;") {
		t.Fatalf("CDATA content was not reported verbatim: %v", rec.trace)
	}
}

func Test_CommentAndPIAroundRoot(t *testing.T) {
	rec := run(t, "<!-- before -->\n<?app data?>\n<r/>\n<!-- after -->", nil)
	if !contains(rec.trace, "comment: before ") || !contains(rec.trace, "comment: after ") {
		t.Fatalf("missing prolog/epilog comments: %v", rec.trace)
	}
	if !contains(rec.trace, "pi:app|data") {
		t.Fatalf("missing prolog PI: %v", rec.trace)
	}
}

func Test_DoctypeAttributeDefaulting(t *testing.T) {
	rec := run(t, `<!DOCTYPE r [<!ATTLIST r id CDATA "fallback">]><r/>`, nil)
	if !contains(rec.trace, "start_dtd:r") || !contains(rec.trace, "end_dtd") {
		t.Fatalf("missing StartDTD/EndDTD: %v", rec.trace)
	}
	attrs := rec.attrs["r"]
	if len(attrs) != 1 || attrs[0].QName != "id" || attrs[0].Value != "fallback" || attrs[0].Specified {
		t.Fatalf("expected an unspecified, defaulted 'id' attribute, got %+v", attrs)
	}
}

func Test_InternalGeneralEntityExpansion(t *testing.T) {
	rec := run(t, `<!DOCTYPE r [<!ENTITY hi "hello">]><r>&hi;</r>`, nil)
	if !contains(rec.trace, "start_entity:hi") || !contains(rec.trace, "end_entity:hi") {
		t.Fatalf("missing StartEntity/EndEntity around the reference: %v", rec.trace)
	}
	if !contains(rec.trace, "characters:hello") {
		t.Fatalf("entity was not expanded into character content: %v", rec.trace)
	}
}

func Test_BuiltinEntityExpansion(t *testing.T) {
	rec := run(t, `<r>a &amp; b &lt; c</r>`, nil)
	if !contains(rec.trace, "characters:a & b < c") {
		t.Fatalf("built-in entities were not expanded: %v", rec.trace)
	}
}

func Test_UndefinedEntityIsSkippedWhenNotStandalone(t *testing.T) {
	rec := run(t, `<r>&mystery;</r>`, nil)
	if !contains(rec.trace, "skipped:mystery") {
		t.Fatalf("expected a skipped_entity event, got %v", rec.trace)
	}
}

func Test_UndefinedEntityIsFatalWhenStandalone(t *testing.T) {
	rec := &recorder{}
	cp := content.New(nil, rec, nil, "")
	tz := tokenizer.New(cp)
	cp.SetTokenizer(tz)
	cp.Standalone = true
	if err := cp.Start(); err != nil {
		t.Fatalf("Start(): %v", err)
	}
	_, err := tz.Scan([]byte(`<r>&mystery;</r>`), true)
	if err == nil {
		t.Fatalf("expected a fatal error for an undefined entity in a standalone document")
	}
}

func Test_CharacterReference(t *testing.T) {
	rec := run(t, `<r>&#65;&#x42;</r>`, nil)
	if !contains(rec.trace, "characters:AB") {
		t.Fatalf("character references were not decoded: %v", rec.trace)
	}
}

func Test_MismatchedEndTagIsFatal(t *testing.T) {
	rec := &recorder{}
	cp := content.New(nil, rec, nil, "")
	tz := tokenizer.New(cp)
	cp.SetTokenizer(tz)
	if err := cp.Start(); err != nil {
		t.Fatalf("Start(): %v", err)
	}
	_, err := tz.Scan([]byte(`<a></b>`), true)
	if err == nil {
		t.Fatalf("expected a mismatched end tag error")
	}
}
