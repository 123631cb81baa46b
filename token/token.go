// Package token defines the lexical token vocabulary the Tokenizer emits
// (spec §3, §4.2): a Type tag plus the character range that backs it,
// following the teacher's own Token{Type, Value}/TokenType.String()
// shape in internal/lexer/token.go, generalized from a single open-ended
// TokenName map to the fixed XML lexical grammar.
package token

import "strconv"

// Type identifies the lexical kind of a Token.
type Type int

const (
	// Invalid is the zero value; a Token of this type is never emitted.
	Invalid Type = iota

	NAME               // a Name production: NameStartChar NameChar*
	S                  // whitespace
	CHARDATA           // a run of character data, not containing '<' or '&'
	LT                 // <
	LT_SLASH           // </
	GT                 // >
	SLASH_GT           // />
	EQ                 // =
	QUOTE_DOUBLE       // "
	QUOTE_SINGLE       // '
	LT_BANG_DASH_DASH  // <!--
	DASH_DASH_GT       // -->
	LT_BANG_CDATA      // <![CDATA[
	CDATA_END          // ]]>
	LT_QUESTION        // <?
	QUESTION_GT        // ?>
	AMP                // &
	HASH               // &#
	HASH_X             // &#x
	SEMI               // ;
	PERCENT            // %
	LT_BANG_DOCTYPE    // <!DOCTYPE
	LT_BANG_ELEMENT    // <!ELEMENT
	LT_BANG_ATTLIST    // <!ATTLIST
	LT_BANG_ENTITY     // <!ENTITY
	LT_BANG_NOTATION   // <!NOTATION
	LBRACKET           // [
	RBRACKET           // ]
	LPAREN             // (
	RPAREN             // )
	PIPE               // |
	COMMA              // ,
	STAR               // *
	PLUS               // +
	QUESTION           // ?
	PUBLIC             // the literal keyword PUBLIC
	SYSTEM             // the literal keyword SYSTEM
	NDATA              // the literal keyword NDATA
	INCLUDE            // the literal keyword INCLUDE
	IGNORE             // the literal keyword IGNORE
	LT_BANG_LBRACKET   // <![ (conditional section open)
	COMMENT_TEXT       // the content between <!-- and -->
	CDATA_TEXT         // the content between <![CDATA[ and ]]>
	PI_TARGET          // the Name after <?
	PI_DATA            // the content between the PI target and ?>
	EOF                // end of input reached (not end-of-chunk: a true close())
)

var names = map[Type]string{
	Invalid:            "INVALID",
	NAME:               "NAME",
	S:                  "S",
	CHARDATA:           "CHARDATA",
	LT:                 "LT",
	LT_SLASH:           "LT_SLASH",
	GT:                 "GT",
	SLASH_GT:           "SLASH_GT",
	EQ:                 "EQ",
	QUOTE_DOUBLE:       "QUOTE_DOUBLE",
	QUOTE_SINGLE:       "QUOTE_SINGLE",
	LT_BANG_DASH_DASH:  "LT_BANG_DASH_DASH",
	DASH_DASH_GT:       "DASH_DASH_GT",
	LT_BANG_CDATA:      "LT_BANG_CDATA",
	CDATA_END:          "CDATA_END",
	LT_QUESTION:        "LT_QUESTION",
	QUESTION_GT:        "QUESTION_GT",
	AMP:                "AMP",
	HASH:               "HASH",
	HASH_X:             "HASH_X",
	SEMI:               "SEMI",
	PERCENT:            "PERCENT",
	LT_BANG_DOCTYPE:    "LT_BANG_DOCTYPE",
	LT_BANG_ELEMENT:    "LT_BANG_ELEMENT",
	LT_BANG_ATTLIST:    "LT_BANG_ATTLIST",
	LT_BANG_ENTITY:     "LT_BANG_ENTITY",
	LT_BANG_NOTATION:   "LT_BANG_NOTATION",
	LBRACKET:           "LBRACKET",
	RBRACKET:           "RBRACKET",
	LPAREN:             "LPAREN",
	RPAREN:             "RPAREN",
	PIPE:               "PIPE",
	COMMA:              "COMMA",
	STAR:               "STAR",
	PLUS:               "PLUS",
	QUESTION:           "QUESTION",
	PUBLIC:             "PUBLIC",
	SYSTEM:             "SYSTEM",
	NDATA:              "NDATA",
	INCLUDE:            "INCLUDE",
	IGNORE:             "IGNORE",
	LT_BANG_LBRACKET:   "LT_BANG_LBRACKET",
	COMMENT_TEXT:       "COMMENT_TEXT",
	CDATA_TEXT:         "CDATA_TEXT",
	PI_TARGET:          "PI_TARGET",
	PI_DATA:            "PI_DATA",
	EOF:                "EOF",
}

func (t Type) String() string {
	if s, ok := names[t]; ok {
		return s
	}
	return "tok_" + strconv.Itoa(int(t))
}

// Position is the (byte offset, line, column) triple of spec §3, taken
// post line-end-normalization.
type Position struct {
	Offset int
	Line   int
	Column int
}

// Token is a lexeme produced by the Tokenizer: a Type, the text it covers,
// and the position of its first character.
//
// Text is a copy, not a slice into the decoder's character buffer: the
// buffer is compacted between Tokenizer.Scan calls, so anything a consumer
// needs to retain past the current call must already have been copied out
// (spec §3's "character data is never buffered past a single characters
// event" invariant applies transitively to tokens too).
type Token struct {
	Type Type
	Text string
	Pos  Position
}

func (t Token) String() string {
	return t.Type.String() + " " + strconv.Quote(t.Text)
}
