// Package sanitize strips markup and script vectors from untrusted input.
//
// Values are modelled as a tagged union so a request body of any shape can be
// cleaned by structural recursion: strings are cleaned, lists and maps are
// walked, and every other scalar passes through unchanged.
package sanitize

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	scriptBlock = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	anyTag      = regexp.MustCompile(`<[^>]*>`)
	jsScheme    = regexp.MustCompile(`(?i)javascript:`)
	eventAttr   = regexp.MustCompile(`(?i)\bon\w+\s*=`)
)

// String cleans one string. Script blocks go first, then any remaining tags.
// The scheme and event-handler removals repeat until nothing changes, since
// removing one occurrence can join the pieces of another. The result is
// trimmed, and String(String(s)) == String(s).
func String(s string) string {
	s = scriptBlock.ReplaceAllString(s, "")
	s = anyTag.ReplaceAllString(s, "")
	for {
		next := eventAttr.ReplaceAllString(jsScheme.ReplaceAllString(s, ""), "")
		if next == s {
			break
		}
		s = next
	}
	return strings.TrimSpace(s)
}

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindScalar Kind = iota
	KindString
	KindList
	KindMap
)

// Value is a sanitizable value. Exactly one of the payload fields is
// meaningful, selected by Kind.
type Value struct {
	Kind   Kind
	Str    string
	List   []Value
	Map    map[string]Value
	Scalar interface{}
}

// FromAny converts a decoded JSON document into a Value.
func FromAny(v interface{}) Value {
	switch t := v.(type) {
	case string:
		return Value{Kind: KindString, Str: t}
	case []interface{}:
		list := make([]Value, len(t))
		for i, item := range t {
			list[i] = FromAny(item)
		}
		return Value{Kind: KindList, List: list}
	case map[string]interface{}:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[k] = FromAny(item)
		}
		return Value{Kind: KindMap, Map: m}
	default:
		return Value{Kind: KindScalar, Scalar: v}
	}
}

// Any converts v back into the plain Go representation used by encoding/json.
func (v Value) Any() interface{} {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindList:
		out := make([]interface{}, len(v.List))
		for i, item := range v.List {
			out[i] = item.Any()
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(v.Map))
		for k, item := range v.Map {
			out[k] = item.Any()
		}
		return out
	default:
		return v.Scalar
	}
}

// Clean returns a copy of v with every string cleaned. Map keys are kept.
func Clean(v Value) Value {
	switch v.Kind {
	case KindString:
		return Value{Kind: KindString, Str: String(v.Str)}
	case KindList:
		list := make([]Value, len(v.List))
		for i, item := range v.List {
			list[i] = Clean(item)
		}
		return Value{Kind: KindList, List: list}
	case KindMap:
		m := make(map[string]Value, len(v.Map))
		for k, item := range v.Map {
			m[k] = Clean(item)
		}
		return Value{Kind: KindMap, Map: m}
	default:
		return v
	}
}

// Any cleans a decoded JSON document.
func Any(v interface{}) interface{} {
	return Clean(FromAny(v)).Any()
}

// Values cleans every entry of vals in place.
func Values(vals url.Values) {
	for k, vs := range vals {
		for i := range vs {
			vs[i] = String(vs[i])
		}
		vals[k] = vs
	}
}
