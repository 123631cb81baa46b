package content

import (
	"github.com/pkg/errors"

	"github.com/bluezoo/gonzalez/version"
)

// Reserved namespace bindings (spec §3's NamespaceScope: "the xml prefix is
// always bound ... and xmlns is reserved").
const (
	xmlURI   = "http://www.w3.org/XML/1998/namespace"
	xmlnsURI = "http://www.w3.org/2000/xmlns/"
)

// nsScope is the set of prefix->URI bindings declared directly on one
// element. A zero-value nsScope (no bindings) is cheap to push for the
// common element that declares no namespaces.
type nsScope struct {
	bindings map[string]string // "" is the default-namespace binding
}

// nsStack is the namespace scope stack of spec §3 ("NamespaceScope"):
// lookup walks from the top down, and a prefix redeclared on an inner
// element shadows the outer binding for that element's whole subtree —
// the same top-down Get walk as ucarion/c14n's internal/stack.Stack,
// generalized from "is this name visibly used" canonicalization
// bookkeeping to full prefix resolution, including the built-in xml/xmlns
// bindings and XML 1.1's undeclaring form.
type nsStack struct {
	scopes []nsScope
}

func newNSStack() *nsStack {
	return &nsStack{}
}

func (s *nsStack) push() { s.scopes = append(s.scopes, nsScope{}) }

func (s *nsStack) pop() { s.scopes = s.scopes[:len(s.scopes)-1] }

// declare records one xmlns/xmlns:prefix binding on the current (topmost)
// scope. v == version.V10 rejects an empty URI for a non-default prefix
// (spec §3: "XML 1.0 requires non-empty URIs for declared prefixes; XML
// 1.1 permits undeclaring via xmlns:p=\"\"").
func (s *nsStack) declare(v version.Version, prefix, uri string) error {
	if prefix != "" && uri == "" && v != version.V11 {
		return errors.Errorf("the prefix %q cannot be bound to an empty URI outside XML 1.1", prefix)
	}
	top := &s.scopes[len(s.scopes)-1]
	if top.bindings == nil {
		top.bindings = map[string]string{}
	}
	top.bindings[prefix] = uri
	return nil
}

// resolve returns prefix's bound URI, and whether prefix is currently
// bound at all. The built-in xml/xmlns prefixes resolve without
// consulting the stack. An undeclared non-default prefix (xmlns:p=""
// under XML 1.1) shadows any outer binding and reports unbound, rather
// than falling through to an ancestor's binding.
func (s *nsStack) resolve(prefix string) (uri string, bound bool) {
	switch prefix {
	case "xml":
		return xmlURI, true
	case "xmlns":
		return xmlnsURI, true
	}
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if v, ok := s.scopes[i].bindings[prefix]; ok {
			if prefix == "" {
				return v, true // "" always resolves, even to "no default namespace"
			}
			return v, v != ""
		}
	}
	return "", prefix == ""
}
