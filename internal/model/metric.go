package model

// MetricKind identifies one of the two resolved metrics.
type MetricKind string

const (
	MetricEmployeeCount MetricKind = "employee_count"
	MetricJobCount      MetricKind = "job_count"
)

// AllMetrics returns the metric kinds in merge order.
func AllMetrics() []MetricKind {
	return []MetricKind{MetricEmployeeCount, MetricJobCount}
}

// Confidence is an ordinal ranking of how trustworthy a candidate is.
// Higher values win during merge.
type Confidence int

const (
	ConfidenceNone Confidence = iota
	// ConfidenceApproximate is a count of rendered result nodes.
	ConfidenceApproximate
	// ConfidenceRange is a range-only estimate such as "201-500".
	ConfidenceRange
	// ConfidenceSearchTotal is a total taken from a broader search query.
	ConfidenceSearchTotal
	// ConfidenceExact is an organization-scoped figure: associated members,
	// typed staff count, or an org-scoped people total.
	ConfidenceExact
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceApproximate:
		return "approximate"
	case ConfidenceRange:
		return "range"
	case ConfidenceSearchTotal:
		return "search_total"
	case ConfidenceExact:
		return "exact"
	default:
		return "none"
	}
}

// MetricCandidate is one strategy's proposed value for a metric.
type MetricCandidate struct {
	Kind       MetricKind `json:"kind"`
	Value      *int64     `json:"value"`
	Range      string     `json:"range,omitempty"`
	Source     string     `json:"source"`
	Confidence Confidence `json:"confidence"`
	Detail     string     `json:"detail,omitempty"` // endpoint, query, or pattern that produced it
}

// HasValue reports whether the candidate carries an exact integer.
func (c MetricCandidate) HasValue() bool {
	return c.Value != nil
}

// Usable reports whether the candidate carries either a value or a range.
func (c MetricCandidate) Usable() bool {
	return c.Value != nil || c.Range != ""
}

// ValueCandidate builds a candidate carrying an integer value.
func ValueCandidate(kind MetricKind, source string, v int64, conf Confidence, detail string) MetricCandidate {
	return MetricCandidate{Kind: kind, Value: &v, Source: source, Confidence: conf, Detail: detail}
}

// RangeCandidate builds a range-only candidate.
func RangeCandidate(kind MetricKind, source, rng, detail string) MetricCandidate {
	return MetricCandidate{Kind: kind, Range: rng, Source: source, Confidence: ConfidenceRange, Detail: detail}
}
