// Package extract turns rendered page text and markup into metric candidates
// using ordered pattern tables.
package extract

import (
	"regexp"
	"strings"

	"github.com/sells-group/orgmetrics/internal/model"
	"github.com/sells-group/orgmetrics/internal/numeric"
)

// Rule is one entry in an ordered pattern table. The first capture group holds
// the count (or the range when Range is set).
type Rule struct {
	Name       string
	Pattern    *regexp.Regexp
	Confidence model.Confidence
	Range      bool
}

// Match is the outcome of a successful rule evaluation.
type Match struct {
	Rule  string
	Text  string
	Value *int64
	Range string
	Conf  model.Confidence
}

// Candidate converts the match into a metric candidate.
func (m Match) Candidate(kind model.MetricKind, source string) model.MetricCandidate {
	if m.Value != nil {
		return model.ValueCandidate(kind, source, *m.Value, m.Conf, m.Rule)
	}
	return model.RangeCandidate(kind, source, m.Range, m.Rule)
}

// Accept filters parsed values. A nil Accept takes everything.
type Accept func(v int64) bool

const num = `(\d[\d,.\x{00A0}\x{202F}\x{2009}]*(?:\s?[kKmM])?\+?)`

// EmployeeRules is evaluated in order against rendered text for headcount.
var EmployeeRules = []Rule{
	{Name: "associated_members", Pattern: regexp.MustCompile(`(?i)` + num + `\s+associated\s+members?`), Confidence: model.ConfidenceExact},
	{Name: "see_all_employees", Pattern: regexp.MustCompile(`(?i)see\s+all\s+` + num + `\s+employees?\s+on\s+linkedin`), Confidence: model.ConfidenceExact},
	{Name: "employees_on_linkedin", Pattern: regexp.MustCompile(`(?i)` + num + `\s+employees?\s+on\s+linkedin`), Confidence: model.ConfidenceExact},
	{Name: "company_size", Pattern: regexp.MustCompile(`(?i)company\s+size\s*:?\s*(\d[\d,]*\s?[-–]\s?\d[\d,]*|\d[\d,]*\+)\s+employees`), Confidence: model.ConfidenceRange, Range: true},
	{Name: "employee_range", Pattern: regexp.MustCompile(`(?i)\b(\d[\d,]*\s?[-–]\s?\d[\d,]*|\d[\d,]*\+)\s+employees\b`), Confidence: model.ConfidenceRange, Range: true},
}

// JobRules is evaluated in order against rendered text for open postings.
var JobRules = []Rule{
	{Name: "job_openings", Pattern: regexp.MustCompile(`(?i)has\s+` + num + `\s+(?:open\s+)?jobs?(?:\s+openings?)?`), Confidence: model.ConfidenceExact},
	{Name: "job_openings_count", Pattern: regexp.MustCompile(`(?i)` + num + `\s+(?:open\s+)?job\s+openings?`), Confidence: model.ConfidenceExact},
	{Name: "jobs_results", Pattern: regexp.MustCompile(`(?i)` + num + `\s+(?:jobs?\s+)?results?\b`), Confidence: model.ConfidenceSearchTotal},
}

// SearchRules reads the result total shown on a filtered search page.
var SearchRules = []Rule{
	{Name: "search_results", Pattern: regexp.MustCompile(`(?i)(?:about\s+)?` + num + `\s+results?\b`), Confidence: model.ConfidenceSearchTotal},
}

// RulesFor returns the pattern table for a metric.
func RulesFor(kind model.MetricKind) []Rule {
	if kind == model.MetricJobCount {
		return JobRules
	}
	return EmployeeRules
}

// FirstMatch evaluates rules in order and returns the first one whose capture
// normalizes to a usable value. Range rules yield a normalized range string.
func FirstMatch(text string, rules []Rule, accept Accept) (Match, bool) {
	for _, r := range rules {
		for _, sub := range r.Pattern.FindAllStringSubmatch(text, -1) {
			if len(sub) < 2 {
				continue
			}
			raw := strings.TrimSpace(sub[1])
			if r.Range {
				if rng := normalizeRange(raw); rng != "" {
					return Match{Rule: r.Name, Text: sub[0], Range: rng, Conf: r.Confidence}, true
				}
				continue
			}
			v, ok := numeric.Parse(raw)
			if !ok || (accept != nil && !accept(v)) {
				continue
			}
			return Match{Rule: r.Name, Text: sub[0], Value: &v, Conf: r.Confidence}, true
		}
	}
	return Match{}, false
}

var rangeSepRe = regexp.MustCompile(`\s?[-–]\s?`)

// normalizeRange rewrites "1,001 – 5,000" as "1001-5000" and "10,001+" as
// "10001+". Anything that does not parse yields "".
func normalizeRange(raw string) string {
	if strings.HasSuffix(raw, "+") {
		v, ok := numeric.Parse(strings.TrimSuffix(raw, "+"))
		if !ok {
			return ""
		}
		return formatInt(v) + "+"
	}
	parts := rangeSepRe.Split(raw, 2)
	if len(parts) != 2 {
		return ""
	}
	lo, okLo := numeric.Parse(parts[0])
	hi, okHi := numeric.Parse(parts[1])
	if !okLo || !okHi || hi < lo {
		return ""
	}
	return formatInt(lo) + "-" + formatInt(hi)
}
