package content

import (
	"github.com/pkg/errors"

	"github.com/bluezoo/gonzalez/dtd"
	"github.com/bluezoo/gonzalez/sax"
)

// rawAttr is one attribute exactly as written on a start tag, before any
// namespace processing (spec §4.3: "collect qname and raw value first").
type rawAttr struct {
	qname string
	value string
}

// nsBinding is one xmlns/xmlns:prefix declaration found on a start tag,
// recorded in document order so start_prefix_mapping/end_prefix_mapping
// can be emitted (and reversed) in that same order.
type nsBinding struct {
	prefix, uri string
}

// resolveStartTag turns a start tag's raw attributes into the element's own
// resolved (uri, local) pair, the namespace bindings it declares, and its
// resolved, defaulted, typed attribute list (spec §4.3's start-element
// assembly: xmlns declarations first, then prefix resolution, then DTD
// defaulting/typing and duplicate detection by expanded name).
func (p *Parser) resolveStartTag(elemQName string, raw []rawAttr) (uri, local string, attrs []sax.Attribute, bindings []nsBinding, err error) {
	p.ns.push()

	for _, a := range raw {
		prefix, name := splitQName(a.qname)
		switch {
		case a.qname == "xmlns":
			if err := p.ns.declare(p.tz.Version(), "", a.value); err != nil {
				return "", "", nil, nil, err
			}
			bindings = append(bindings, nsBinding{"", a.value})
		case prefix == "xmlns":
			if name == "" {
				return "", "", nil, nil, errors.New("content: malformed 'xmlns:' declaration")
			}
			if err := p.ns.declare(p.tz.Version(), name, a.value); err != nil {
				return "", "", nil, nil, err
			}
			bindings = append(bindings, nsBinding{name, a.value})
		}
	}

	ePrefix, eLocal := splitQName(elemQName)
	euri := ""
	if ePrefix != "" {
		u, bound := p.ns.resolve(ePrefix)
		if !bound {
			return "", "", nil, nil, errors.Errorf("content: element prefix %q is not bound", ePrefix)
		}
		euri = u
	} else {
		euri, _ = p.ns.resolve("")
	}

	type expanded struct{ uri, local string }
	seenQName := make(map[string]bool, len(raw))
	seenExpanded := make(map[expanded]bool, len(raw))

	for _, a := range raw {
		if seenQName[a.qname] {
			return "", "", nil, nil, errors.Errorf("content: duplicate attribute %q", a.qname)
		}
		seenQName[a.qname] = true

		prefix, aLocal := splitQName(a.qname)
		if a.qname == "xmlns" || prefix == "xmlns" {
			continue // namespace declarations are not reported as attributes
		}

		auri := ""
		if prefix != "" {
			u, bound := p.ns.resolve(prefix)
			if !bound {
				return "", "", nil, nil, errors.Errorf("content: attribute prefix %q is not bound", prefix)
			}
			auri = u
		}

		if prefix != "" {
			k := expanded{auri, aLocal}
			if seenExpanded[k] {
				return "", "", nil, nil, errors.Errorf("content: duplicate attribute {%s}%s", auri, aLocal)
			}
			seenExpanded[k] = true
		}

		typ, declared, value := "CDATA", false, a.value
		if p.dtd != nil {
			if decl, ok := p.dtd.AttrDecl(elemQName, a.qname); ok {
				declared = true
				typ = decl.Type.String()
				if decl.Type != dtd.AttrCDATA {
					value = collapseInternalWhitespace(value)
				}
			}
		}

		attrs = append(attrs, sax.Attribute{
			URI: auri, Local: aLocal, QName: a.qname,
			Value: value, Type: typ, Specified: true, Declared: declared,
		})
	}

	if p.dtd != nil {
		if declared, ok := p.dtd.Attlists[elemQName]; ok {
			for name, decl := range declared {
				if seenQName[name] {
					continue
				}
				if decl.Default != dtd.DefaultLiteral && decl.Default != dtd.DefaultFixed {
					continue // #REQUIRED/#IMPLIED with no value supplied: nothing to report
				}
				prefix, aLocal := splitQName(name)
				auri := ""
				if prefix != "" {
					auri, _ = p.ns.resolve(prefix)
				}
				attrs = append(attrs, sax.Attribute{
					URI: auri, Local: aLocal, QName: name,
					Value: decl.Value, Type: decl.Type.String(),
					Specified: false, Declared: true,
				})
			}
		}
	}

	return euri, eLocal, attrs, bindings, nil
}
