// Package value classifies template values into the forms the renderer
// understands: plain literals, reference-attributes, all-inclusions and
// derive-from markers.
package value

import "strings"

// Kind identifies the form a value takes.
type Kind int

const (
	// Literal is any value that is not one of the reference forms. Mappings
	// and sequences are Literals too; the renderer descends into them.
	Literal Kind = iota
	// RefAttr is "<ref>.$.<attr>".
	RefAttr
	// AllInclusion is "<ref>.*".
	AllInclusion
	// DeriveFrom is "derivefrom.[<ref>]".
	DeriveFrom
)

func (k Kind) String() string {
	switch k {
	case Literal:
		return "literal"
	case RefAttr:
		return "reference-attribute"
	case AllInclusion:
		return "all-inclusion"
	case DeriveFrom:
		return "derive-from"
	default:
		return "unknown"
	}
}

const (
	// RefAttrMarker separates a reference from its attribute.
	RefAttrMarker = ".$."
	// AllInclusionSuffix marks a whole-reference substitution.
	AllInclusionSuffix = ".*"
	// DeriveFromPrefix and DeriveFromSuffix enclose the reference a mapping
	// derives from.
	DeriveFromPrefix = "derivefrom.["
	DeriveFromSuffix = "]"
)

// Parsed is the classification of a single value.
type Parsed struct {
	Kind Kind
	// Reference is set for every kind except Literal.
	Reference string
	// Attribute is only set for RefAttr.
	Attribute string
}

// IsReference reports whether the value needs resolving.
func (p Parsed) IsReference() bool { return p.Kind != Literal }

type rule struct {
	kind  Kind
	match func(s string) (Parsed, bool)
}

// rules are tried in order and the first match wins. A string such as
// "a.$.b.*" is both a reference-attribute and an all-inclusion; the
// all-inclusion reading takes precedence.
var rules = []rule{
	{AllInclusion, matchAllInclusion},
	{DeriveFrom, matchDeriveFrom},
	{RefAttr, matchRefAttr},
}

// Parse classifies v. Only strings are inspected; everything else is a
// Literal.
func Parse(v any) Parsed {
	s, ok := v.(string)
	if !ok {
		return Parsed{Kind: Literal}
	}
	for _, r := range rules {
		if p, ok := r.match(s); ok {
			return p
		}
	}
	return Parsed{Kind: Literal}
}

// IsReference reports whether v parses as anything other than a Literal.
func IsReference(v any) bool {
	return Parse(v).IsReference()
}

func matchRefAttr(s string) (Parsed, bool) {
	i := strings.LastIndex(s, RefAttrMarker)
	if i <= 0 {
		return Parsed{}, false
	}
	ref, attr := s[:i], s[i+len(RefAttrMarker):]
	if attr == "" {
		return Parsed{}, false
	}
	return Parsed{Kind: RefAttr, Reference: ref, Attribute: attr}, true
}

func matchAllInclusion(s string) (Parsed, bool) {
	ref, ok := strings.CutSuffix(s, AllInclusionSuffix)
	if !ok || ref == "" {
		return Parsed{}, false
	}
	return Parsed{Kind: AllInclusion, Reference: ref}, true
}

func matchDeriveFrom(s string) (Parsed, bool) {
	rest, ok := strings.CutPrefix(s, DeriveFromPrefix)
	if !ok {
		return Parsed{}, false
	}
	ref, ok := strings.CutSuffix(rest, DeriveFromSuffix)
	if !ok || ref == "" {
		return Parsed{}, false
	}
	return Parsed{Kind: DeriveFrom, Reference: ref}, true
}

// RefAttrString formats a reference-attribute value.
func RefAttrString(reference, attribute string) string {
	return reference + RefAttrMarker + attribute
}

// AllInclusionString formats an all-inclusion value.
func AllInclusionString(reference string) string {
	return reference + AllInclusionSuffix
}

// DeriveFromString formats a derive-from marker.
func DeriveFromString(reference string) string {
	return DeriveFromPrefix + reference + DeriveFromSuffix
}

// ContainsMarker reports whether s contains any part of the reference
// grammar, which makes it unusable as a reference name.
func ContainsMarker(s string) bool {
	return strings.Contains(s, RefAttrMarker) ||
		strings.HasSuffix(s, AllInclusionSuffix) ||
		strings.HasPrefix(s, DeriveFromPrefix)
}
