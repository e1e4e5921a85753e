// Package jsonscan walks arbitrary decoded JSON looking for count-shaped fields.
package jsonscan

import (
	"bytes"
	"encoding/json"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/orgmetrics/internal/model"
)

// Keys is a lowercase key allowlist. Matching is case-insensitive.
type Keys map[string]struct{}

// NewKeys builds a Keys table from names in any case.
func NewKeys(names ...string) Keys {
	k := make(Keys, len(names))
	for _, n := range names {
		k[strings.ToLower(n)] = struct{}{}
	}
	return k
}

// Has reports whether key is in the table.
func (k Keys) Has(key string) bool {
	_, ok := k[strings.ToLower(key)]
	return ok
}

// Union returns a new table holding the keys of k and others.
func (k Keys) Union(others ...Keys) Keys {
	out := make(Keys, len(k))
	for name := range k {
		out[name] = struct{}{}
	}
	for _, o := range others {
		for name := range o {
			out[name] = struct{}{}
		}
	}
	return out
}

// GenericTotalKeys are the total-shaped keys shared by every metric.
var GenericTotalKeys = NewKeys("total", "totalResults", "totalHits", "numResults", "totalResultCount", "resultCount")

// metricKeys holds the metric-specific additions to GenericTotalKeys.
var metricKeys = map[model.MetricKind]Keys{
	model.MetricEmployeeCount: NewKeys("staffCount", "employeeCount", "totalEmployees", "employeesCount", "memberCount", "associatedMembers", "headcount", "totalHeadcount"),
	model.MetricJobCount:      NewKeys("jobCount", "totalJobs", "jobPostingCount", "numJobs", "openJobs", "totalJobCount"),
}

// KeysFor returns the key table used for a metric.
func KeysFor(kind model.MetricKind) Keys {
	return GenericTotalKeys.Union(metricKeys[kind])
}

// Decode parses raw JSON into a generic value, keeping numbers exact.
func Decode(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, eris.Wrap(err, "jsonscan: decode")
	}
	return v, nil
}

// DeepFindTotals returns every non-negative integer found under an allowlisted
// key at any depth of v. Object keys are visited in sorted order.
func DeepFindTotals(v any, keys Keys) []int64 {
	var out []int64
	walk(v, func(key string, val any) {
		if !keys.Has(key) {
			return
		}
		if n, ok := asInt(val); ok {
			out = append(out, n)
		}
	})
	return out
}

// DeepFindTotalsRaw decodes raw JSON and runs DeepFindTotals on it.
func DeepFindTotalsRaw(raw []byte, keys Keys) ([]int64, error) {
	v, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return DeepFindTotals(v, keys), nil
}

// Max returns the largest value in totals and false when totals is empty.
func Max(totals []int64) (int64, bool) {
	if len(totals) == 0 {
		return 0, false
	}
	best := totals[0]
	for _, t := range totals[1:] {
		if t > best {
			best = t
		}
	}
	return best, true
}

// FindObjects returns every object stored under key (case-insensitive).
func FindObjects(v any, key string) []map[string]any {
	var out []map[string]any
	walk(v, func(k string, val any) {
		if !strings.EqualFold(k, key) {
			return
		}
		if obj, ok := val.(map[string]any); ok {
			out = append(out, obj)
		}
	})
	return out
}

// FindString returns the first string stored under key at any depth.
func FindString(v any, key string) (string, bool) {
	var (
		found string
		ok    bool
	)
	walk(v, func(k string, val any) {
		if ok || !strings.EqualFold(k, key) {
			return
		}
		if s, isStr := val.(string); isStr && s != "" {
			found, ok = s, true
		}
	})
	return found, ok
}

// FindInt returns the first integer stored under key at any depth.
func FindInt(v any, key string) (int64, bool) {
	var (
		found int64
		ok    bool
	)
	walk(v, func(k string, val any) {
		if ok || !strings.EqualFold(k, key) {
			return
		}
		found, ok = asInt(val)
	})
	return found, ok
}

// Objects returns every object in v, depth-first, v itself included.
func Objects(v any) []map[string]any {
	var out []map[string]any
	if obj, ok := v.(map[string]any); ok {
		out = append(out, obj)
	}
	walk(v, func(_ string, val any) {
		if obj, ok := val.(map[string]any); ok {
			out = append(out, obj)
		}
	})
	return out
}

func walk(v any, visit func(key string, val any)) {
	switch t := v.(type) {
	case map[string]any:
		// Sorted keys keep "first match" lookups deterministic.
		for _, k := range slices.Sorted(maps.Keys(t)) {
			visit(k, t[k])
			walk(t[k], visit)
		}
	case []any:
		for _, val := range t {
			walk(val, visit)
		}
	}
}

// Int converts a decoded JSON scalar to a non-negative integer.
func Int(v any) (int64, bool) {
	return asInt(v)
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, i >= 0
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	case float64:
		return floatToInt(n)
	case int:
		return int64(n), n >= 0
	case int64:
		return n, n >= 0
	}
	return 0, false
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(math.Round(f)), true
}
