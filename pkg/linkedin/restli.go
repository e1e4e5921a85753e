package linkedin

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// Vars is a Rest.li record: encoded as (k1:v1,k2:v2) with keys sorted.
// Values may be strings, integers, booleans, nested Vars, or List.
type Vars map[string]any

// List is a Rest.li array: encoded as List(a,b).
type List []any

// Encode renders v in Rest.li 2.0 URL form. Reserved characters inside
// string values are percent-encoded; structural characters are left raw.
func (v Vars) Encode() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, escapeRestli(k)+":"+encodeRestliValue(v[k]))
	}
	return "(" + strings.Join(parts, ",") + ")"
}

func encodeRestliValue(val any) string {
	switch t := val.(type) {
	case Vars:
		return t.Encode()
	case map[string]any:
		return Vars(t).Encode()
	case List:
		items := make([]string, 0, len(t))
		for _, item := range t {
			items = append(items, encodeRestliValue(item))
		}
		return "List(" + strings.Join(items, ",") + ")"
	case string:
		return escapeRestli(t)
	default:
		return escapeRestli(fmt.Sprint(t))
	}
}

// escapeRestli percent-encodes a scalar. url.QueryEscape already escapes the
// Rest.li structural characters ( ) , : '; only its "+" for space is swapped.
func escapeRestli(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
