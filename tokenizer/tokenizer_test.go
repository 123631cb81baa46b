package tokenizer_test

import (
	"testing"

	"github.com/bluezoo/gonzalez/token"
	"github.com/bluezoo/gonzalez/tokenizer"
)

// recorder is a Consumer that just appends every token it receives, used to
// assert against an expected token stream.
type recorder struct {
	toks []token.Token
}

func (r *recorder) Receive(tok token.Token) error {
	r.toks = append(r.toks, tok)
	return nil
}

func scanAll(t *testing.T, tz *tokenizer.Tokenizer, input string) {
	t.Helper()
	n, err := tz.Scan([]byte(input), true)
	if err != nil {
		t.Fatalf("Scan(%q): unexpected error %v", input, err)
	}
	if n != len(input) {
		t.Fatalf("Scan(%q): consumed %d of %d bytes", input, n, len(input))
	}
}

func checkTokens(t *testing.T, got []token.Token, want []token.Type) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d tokens but got %d: %v", len(want), len(got), got)
		return
	}
	for i, tt := range want {
		if got[i].Type != tt {
			t.Errorf("token %d: expected %v but got %v (%q)", i, tt, got[i].Type, got[i].Text)
			return
		}
	}
}

func Test_StartTagWithAttribute(t *testing.T) {
	r := &recorder{}
	tz := tokenizer.New(r)
	scanAll(t, tz, `<a b="c"/>`)

	checkTokens(t, r.toks, []token.Type{
		token.LT, token.NAME, token.S, token.NAME, token.EQ,
		token.QUOTE_DOUBLE, token.CHARDATA, token.QUOTE_DOUBLE,
		token.SLASH_GT,
	})
}

func Test_EndTag(t *testing.T) {
	r := &recorder{}
	tz := tokenizer.New(r)
	scanAll(t, tz, `</a>`)

	checkTokens(t, r.toks, []token.Type{token.LT_SLASH, token.NAME, token.GT})
}

func Test_CharacterData(t *testing.T) {
	r := &recorder{}
	tz := tokenizer.New(r)
	scanAll(t, tz, "hello world")

	checkTokens(t, r.toks, []token.Type{token.CHARDATA})
	if r.toks[0].Text != "hello world" {
		t.Errorf("Expected %q but got %q", "hello world", r.toks[0].Text)
	}
}

func Test_Comment(t *testing.T) {
	r := &recorder{}
	tz := tokenizer.New(r)
	scanAll(t, tz, "<!-- a comment -->")

	checkTokens(t, r.toks, []token.Type{
		token.LT_BANG_DASH_DASH, token.COMMENT_TEXT, token.DASH_DASH_GT,
	})
	if r.toks[1].Text != " a comment " {
		t.Errorf("Expected %q but got %q", " a comment ", r.toks[1].Text)
	}
}

func Test_CDATASection(t *testing.T) {
	r := &recorder{}
	tz := tokenizer.New(r)
	scanAll(t, tz, "<![CDATA[<not a tag>]]>")

	checkTokens(t, r.toks, []token.Type{
		token.LT_BANG_CDATA, token.CDATA_TEXT, token.CDATA_END,
	})
	if r.toks[1].Text != "<not a tag>" {
		t.Errorf("Expected %q but got %q", "<not a tag>", r.toks[1].Text)
	}
}

func Test_ProcessingInstruction(t *testing.T) {
	r := &recorder{}
	tz := tokenizer.New(r)
	scanAll(t, tz, "<?xml-stylesheet type=\"text/xsl\"?>")

	checkTokens(t, r.toks, []token.Type{
		token.LT_QUESTION, token.PI_TARGET, token.PI_DATA, token.QUESTION_GT,
	})
	if r.toks[1].Text != "xml-stylesheet" {
		t.Errorf("expected PI target %q, got %q", "xml-stylesheet", r.toks[1].Text)
	}
}

func Test_CharacterReferences(t *testing.T) {
	r := &recorder{}
	tz := tokenizer.New(r)
	scanAll(t, tz, "&amp; &#65; &#x41;")

	// Referenced names/digits come through as CHARDATA, not NAME: the
	// reference opener (AMP/HASH/HASH_X) and the closing SEMI are the only
	// structured tokens here, matching how attribute-value references are
	// decomposed in ModeValue.
	checkTokens(t, r.toks, []token.Type{
		token.AMP, token.CHARDATA, token.SEMI, token.CHARDATA,
		token.HASH, token.CHARDATA, token.SEMI, token.CHARDATA,
		token.HASH_X, token.CHARDATA, token.SEMI,
	})
	if r.toks[1].Text != "amp" {
		t.Errorf("expected entity name %q, got %q", "amp", r.toks[1].Text)
	}
}

// subsetConsumer stands in for the DTDParser just enough to exercise the
// Tokenizer/consumer handover at the internal subset's boundaries: it calls
// ExitInternalSubset the moment it sees the ']' that closes the subset,
// exactly as the real DTDParser does once it recognizes that production.
type subsetConsumer struct {
	recorder
	tz *tokenizer.Tokenizer
}

func (c *subsetConsumer) Receive(tok token.Token) error {
	if err := c.recorder.Receive(tok); err != nil {
		return err
	}
	if tok.Type == token.RBRACKET {
		c.tz.ExitInternalSubset()
	}
	return nil
}

func Test_DoctypeWithInternalSubset(t *testing.T) {
	c := &subsetConsumer{}
	tz := tokenizer.New(c)
	c.tz = tz
	r := &c.recorder
	scanAll(t, tz, "<!DOCTYPE greeting [<!ELEMENT greeting (#PCDATA)>]>")

	if r.toks[0].Type != token.LT_BANG_DOCTYPE {
		t.Fatalf("expected LT_BANG_DOCTYPE first, got %v", r.toks[0].Type)
	}

	var sawElement, sawRBracket, sawFinalGT bool
	for i, tok := range r.toks {
		switch tok.Type {
		case token.LT_BANG_ELEMENT:
			sawElement = true
		case token.RBRACKET:
			sawRBracket = true
		case token.GT:
			if i == len(r.toks)-1 {
				sawFinalGT = true
			}
		}
	}
	if !sawElement {
		t.Errorf("expected an ELEMENT declaration inside the internal subset")
	}
	if !sawRBracket {
		t.Errorf("expected a ']' closing the internal subset")
	}
	if !sawFinalGT {
		t.Errorf("expected the DOCTYPE's own '>' as the last token")
	}
}

func Test_IncompleteInputUnderflows(t *testing.T) {
	r := &recorder{}
	tz := tokenizer.New(r)

	// "na" is a valid-so-far prefix of a longer Name; the Tokenizer must not
	// commit to it until either a non-Name character or atEOF confirms it's
	// complete.
	n, err := tz.Scan([]byte("<na"), false)
	if err != nil {
		t.Fatalf("unexpected error on partial input: %v", err)
	}
	if n != 1 {
		t.Errorf("expected only the '<' to be consumed, got %d bytes", n)
	}

	// The caller re-presents the unconsumed suffix ("na") compacted together
	// with newly arrived bytes, exactly as CompositeByteBuffer does.
	if _, err := tz.Scan([]byte("name/>"), true); err != nil {
		t.Fatalf("unexpected error completing the tag: %v", err)
	}

	checkTokens(t, r.toks, []token.Type{
		token.LT, token.NAME, token.SLASH_GT,
	})
	if r.toks[1].Text != "name" {
		t.Errorf("expected the completed name %q, got %q", "name", r.toks[1].Text)
	}
}

func Test_TruncatedMarkupAtEOFIsAnError(t *testing.T) {
	r := &recorder{}
	tz := tokenizer.New(r)

	if _, err := tz.Scan([]byte("<"), true); err == nil {
		t.Errorf("expected an error for a lone '<' at true end of input")
	}
}

func Test_IllegalCharacterInAttributeValue(t *testing.T) {
	r := &recorder{}
	tz := tokenizer.New(r)

	if _, err := tz.Scan([]byte(`<a b="<"`), true); err == nil {
		t.Errorf("expected an error for '<' inside an attribute value")
	}
}
