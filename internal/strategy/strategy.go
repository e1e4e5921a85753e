// Package strategy implements the three acquisition strategies the resolver
// cascades through: the structured GraphQL catalogue, semi-structured JSON
// endpoints, and a rendered browser session.
package strategy

import (
	"context"
	"time"

	"github.com/sells-group/orgmetrics/internal/model"
	"github.com/sells-group/orgmetrics/internal/policy"
)

// Strategy names, in default priority order.
const (
	NameStructured     = "structured"
	NameSemiStructured = "semi_structured"
	NameRendered       = "rendered"
)

// Target is the resolved company a strategy collects metrics for.
type Target struct {
	Reference model.CompanyReference
	Identity  model.OrganizationIdentity
}

// Result is what one strategy produced for one metric.
type Result struct {
	Candidates []model.MetricCandidate
	// Facts is set when the strategy read the organization record.
	Facts *model.OrganizationFacts
}

// Best returns the highest-confidence usable candidate, first wins on ties.
func (r Result) Best() (model.MetricCandidate, bool) {
	var (
		best  model.MetricCandidate
		found bool
	)
	for _, c := range r.Candidates {
		if !c.Usable() {
			continue
		}
		if !found || c.Confidence > best.Confidence {
			best, found = c, true
		}
	}
	return best, found
}

// HasExact reports whether any candidate is an organization-scoped value.
func (r Result) HasExact() bool {
	for _, c := range r.Candidates {
		if c.HasValue() && c.Confidence == model.ConfidenceExact {
			return true
		}
	}
	return false
}

func (r Result) hasValue() bool {
	for _, c := range r.Candidates {
		if c.HasValue() {
			return true
		}
	}
	return false
}

// Strategy collects candidates for one metric. Sub-steps are appended to log.
type Strategy interface {
	Name() string
	// Available reports whether the strategy can run at all right now.
	Available(ctx context.Context) bool
	Collect(ctx context.Context, target Target, kind model.MetricKind, log *model.AttemptLog) (Result, error)
}

// recordStep appends one sub-step attempt.
func recordStep(log *model.AttemptLog, strategy string, kind model.MetricKind, step string, started time.Time, err error) {
	if log == nil {
		return
	}
	log.Append(model.NewAttempt(strategy, kind, step, started, err))
}

// stopsStrategy reports whether err ends the current strategy: the upstream
// throttled or blocked us, or rejected the session every later call would use.
func stopsStrategy(err error) bool {
	return model.TerminalDataSource(err) != "" || model.IsAuthRequired(err)
}

// acceptFor returns the policy noise filter for kind.
func acceptFor(p *policy.Policy, kind model.MetricKind) func(int64) bool {
	t := p.Threshold(kind)
	return t.Accept
}
