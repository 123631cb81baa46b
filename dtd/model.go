// Package dtd implements the DTD model and the DTDParser token consumer of
// spec §4.4: it owns the Tokenizer's output from "<!DOCTYPE" through the
// declaration's closing '>', recording element, attribute-list, entity, and
// notation declarations for later use by the ContentParser (attribute
// defaulting/typing, entity expansion) and returns control once done.
//
// The content-model tree (ContentModel) and the attribute occurrence shape
// (DefaultMode) are generalized from the teacher's internal/parser/element.go and
// attribute.go — same tree-of-nodes and default-declaration-enum idea,
// retargeted from the teacher's DTDX indentation mini-grammar onto the real
// XML DTD grammar.
package dtd

import "strings"

// ModelKind identifies the shape of a ContentModel node.
type ModelKind int

const (
	ModelEmpty    ModelKind = iota // EMPTY
	ModelAny                       // ANY
	ModelPCDATA                    // (#PCDATA) or mixed (#PCDATA|a|b)*
	ModelElement                   // a child element name
	ModelSequence                  // (a, b, c)
	ModelChoice                    // (a | b | c)
)

// Multiplicity is the occurrence suffix on a content-model node or group.
type Multiplicity byte

const (
	MultNone       Multiplicity = 0
	MultOptional   Multiplicity = '?'
	MultZeroOrMore Multiplicity = '*'
	MultOneOrMore  Multiplicity = '+'
)

// ContentModel is a node in an element declaration's content model tree
// (spec §4.4: "stored as a tree for later content-model enforcement").
type ContentModel struct {
	Kind     ModelKind
	Name     string          // ModelElement: child element name
	Mixed    []string        // ModelPCDATA: the "| name" alternatives, if any
	Children []*ContentModel // ModelSequence / ModelChoice
	Mult     Multiplicity
}

func (c *ContentModel) String() string {
	if c == nil {
		return "EMPTY"
	}
	if c.Mult == MultNone {
		return c.base()
	}
	return c.base() + string(byte(c.Mult))
}

func (c *ContentModel) base() string {
	switch c.Kind {
	case ModelEmpty:
		return "EMPTY"
	case ModelAny:
		return "ANY"
	case ModelElement:
		return c.Name
	case ModelPCDATA:
		if len(c.Mixed) == 0 {
			return "(#PCDATA)"
		}
		return "(#PCDATA|" + strings.Join(c.Mixed, "|") + ")"
	case ModelSequence, ModelChoice:
		sep := ", "
		if c.Kind == ModelChoice {
			sep = " | "
		}
		parts := make([]string, len(c.Children))
		for i, ch := range c.Children {
			parts[i] = ch.String()
		}
		return "(" + strings.Join(parts, sep) + ")"
	}
	return "EMPTY"
}

// ElementDecl is a <!ELEMENT> declaration (spec §4.4).
type ElementDecl struct {
	Name    string
	Content *ContentModel
}

// AttrType is the declared type of an ATTLIST attribute.
type AttrType int

const (
	AttrCDATA AttrType = iota
	AttrID
	AttrIDREF
	AttrIDREFS
	AttrENTITY
	AttrENTITIES
	AttrNMTOKEN
	AttrNMTOKENS
	AttrNOTATION
	AttrEnumeration
)

func (t AttrType) String() string {
	switch t {
	case AttrID:
		return "ID"
	case AttrIDREF:
		return "IDREF"
	case AttrIDREFS:
		return "IDREFS"
	case AttrENTITY:
		return "ENTITY"
	case AttrENTITIES:
		return "ENTITIES"
	case AttrNMTOKEN:
		return "NMTOKEN"
	case AttrNMTOKENS:
		return "NMTOKENS"
	case AttrNOTATION:
		return "NOTATION"
	case AttrEnumeration:
		return "ENUMERATION"
	default:
		return "CDATA"
	}
}

// DefaultMode is an ATTLIST attribute's default-declaration kind.
type DefaultMode int

const (
	DefaultLiteral  DefaultMode = iota // a plain default value
	DefaultRequired                    // #REQUIRED
	DefaultImplied                     // #IMPLIED
	DefaultFixed                       // #FIXED literal
)

// AttDecl is one attribute of an <!ATTLIST> declaration.
type AttDecl struct {
	Element string
	Name    string
	Type    AttrType
	Enum    []string // NOTATION(n1|n2) or (v1|v2) alternatives
	Default DefaultMode
	Value   string // literal, meaningful when Default is DefaultLiteral/DefaultFixed
}

// Entity is a general or parameter entity declaration (spec §4.4).
type Entity struct {
	Name      string
	Parameter bool // declared with '%' (parameter) vs plain (general)
	External  bool
	Value     string // internal entities: the replacement text
	PublicID  string
	SystemID  string
	NDATA     string // non-empty for an unparsed (NDATA) general entity
}

// Notation is a <!NOTATION> declaration.
type Notation struct {
	Name     string
	PublicID string
	SystemID string
}

// DTD is the accumulated model of everything a DOCTYPE declares, shared
// between internal- and external-subset processing and consulted
// afterwards by the ContentParser.
type DTD struct {
	Name     string
	PublicID string
	SystemID string

	Elements  map[string]*ElementDecl
	Attlists  map[string]map[string]*AttDecl
	General   map[string]*Entity
	Parameter map[string]*Entity
	Notations map[string]*Notation
}

// New returns an empty DTD model for the given document type name.
func New(name string) *DTD {
	return &DTD{
		Name:      name,
		Elements:  make(map[string]*ElementDecl),
		Attlists:  make(map[string]map[string]*AttDecl),
		General:   make(map[string]*Entity),
		Parameter: make(map[string]*Entity),
		Notations: make(map[string]*Notation),
	}
}

// AttrDecl looks up a declared attribute of element, reporting whether one
// was declared (the ContentParser uses this for defaulting and typing).
func (d *DTD) AttrDecl(element, name string) (*AttDecl, bool) {
	attrs, ok := d.Attlists[element]
	if !ok {
		return nil, false
	}
	a, ok := attrs[name]
	return a, ok
}

// addAttlist records a (element, attribute) declaration, ignoring a repeat
// declaration of the same attribute on the same element — XML's rule that
// the first ATTLIST declaration for a given (element, attribute) pair wins.
func (d *DTD) addAttlist(a *AttDecl) {
	m, ok := d.Attlists[a.Element]
	if !ok {
		m = make(map[string]*AttDecl)
		d.Attlists[a.Element] = m
	}
	if _, dup := m[a.Name]; !dup {
		m[a.Name] = a
	}
}
