package resolver

import (
	"slices"

	"github.com/sells-group/orgmetrics/internal/model"
)

// Merge selects the winning candidate: highest confidence first, then the
// earlier strategy in order, then the earlier candidate. Candidates carrying
// neither a value nor a range are ignored.
func Merge(candidates []model.MetricCandidate, order []string) (model.MetricCandidate, bool) {
	rank := func(source string) int {
		if i := slices.Index(order, source); i >= 0 {
			return i
		}
		return len(order)
	}

	var (
		best  model.MetricCandidate
		found bool
	)
	for _, c := range candidates {
		if !c.Usable() {
			continue
		}
		if !found || c.Confidence > best.Confidence ||
			(c.Confidence == best.Confidence && rank(c.Source) < rank(best.Source)) {
			best, found = c, true
		}
	}
	return best, found
}

// valuesOnly drops range-only candidates; job counts have no range form.
func valuesOnly(candidates []model.MetricCandidate) []model.MetricCandidate {
	out := make([]model.MetricCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.HasValue() {
			out = append(out, c)
		}
	}
	return out
}

// resultDataSource is the employee metric's source when it has a winner,
// else the job metric's, else a terminal tag (throttling first), else none.
func resultDataSource(sources map[model.MetricKind]string) string {
	emp, jobs := sources[model.MetricEmployeeCount], sources[model.MetricJobCount]
	for _, s := range []string{emp, jobs} {
		if s != "" && !isTag(s) {
			return s
		}
	}
	for _, tag := range []string{model.DataSourceRateLimited, model.DataSourceBlocked} {
		if emp == tag || jobs == tag {
			return tag
		}
	}
	return model.DataSourceNone
}

func isTag(s string) bool {
	return s == model.DataSourceRateLimited || s == model.DataSourceBlocked || s == model.DataSourceNone
}
