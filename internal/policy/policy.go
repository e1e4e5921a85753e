// Package policy holds the tunable heuristics used by the acquisition
// strategies: query ids, noise thresholds, consent labels and selectors.
// The upstream changes these without notice, so they live in a YAML file
// rather than in code.
package policy

import (
	"os"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/orgmetrics/internal/model"
)

// Policy is the top-level heuristics configuration.
type Policy struct {
	Queries           Queries                        `yaml:"queries"`
	Thresholds        map[model.MetricKind]Threshold `yaml:"thresholds"`
	ConsentLabels     []string                       `yaml:"consent_labels"`
	ResultSelectors   []string                       `yaml:"result_selectors"`
	CountSelectors    []string                       `yaml:"count_selectors"`
	DisabledEndpoints []string                       `yaml:"disabled_endpoints"`
	SettleTime        time.Duration                  `yaml:"settle_time"`
}

// Queries maps catalogue names to the upstream's rotating GraphQL query ids.
type Queries struct {
	Organization  string `yaml:"organization"`
	Insights      string `yaml:"insights"`
	JobCount      string `yaml:"job_count"`
	CompanyLookup string `yaml:"company_lookup"`
}

// Threshold bounds the totals a strategy will accept for one metric.
type Threshold struct {
	MinTotal int64 `yaml:"min_total"`
	MaxTotal int64 `yaml:"max_total"` // 0 disables the upper bound
	MinNodes int   `yaml:"min_nodes"`
}

// Accept reports whether v passes the noise filter.
func (t Threshold) Accept(v int64) bool {
	if v < t.MinTotal {
		return false
	}
	return t.MaxTotal == 0 || v <= t.MaxTotal
}

// Default returns the built-in policy.
func Default() *Policy {
	return &Policy{
		Queries: Queries{
			Organization:  "voyagerOrganizationDashCompanies.148b1aebfadd0a455f32806df656c3c1",
			Insights:      "voyagerPremiumDashCompanyInsightsCard.9c13a7e7c8a9cbb1de5d5c0b6c6ef0a5",
			JobCount:      "voyagerJobsDashJobCards.93590893e4adb90623f00d61719b36c1",
			CompanyLookup: "voyagerOrganizationDashCompanies.b0928897b71bd00a5a7291755dcd64f0",
		},
		Thresholds: map[model.MetricKind]Threshold{
			model.MetricEmployeeCount: {MinTotal: 1, MinNodes: 1},
			model.MetricJobCount:      {MinTotal: 0, MinNodes: 1},
		},
		ConsentLabels: []string{
			"Accept", "Accept all", "Accept cookies", "Agree", "I agree", "Allow all", "Got it", "Dismiss",
		},
		ResultSelectors: []string{
			"li.reusable-search__result-container",
			"div.entity-result",
			"li.org-people-profile-card__profile-card-spacing",
			"li.jobs-search-results__list-item",
			"ul.jobs-search__results-list > li",
		},
		CountSelectors: []string{
			"h1", "h2", "h3", "h4",
			"[aria-live]",
			"[class*='results-count']",
			"[class*='result-count']",
			"[class*='results-context-header']",
			"[class*='jobs-search-results-list__subtitle']",
		},
		SettleTime: 2 * time.Second,
	}
}

// Threshold returns the threshold for kind, or a permissive default.
func (p *Policy) Threshold(kind model.MetricKind) Threshold {
	if t, ok := p.Thresholds[kind]; ok {
		return t
	}
	return Threshold{MinNodes: 1}
}

// Disabled reports whether the named endpoint candidate is switched off.
func (p *Policy) Disabled(endpoint string) bool {
	return slices.Contains(p.DisabledEndpoints, endpoint)
}

// Load reads a policy file and layers it over Default. An empty path returns
// the defaults.
func Load(path string) (*Policy, error) {
	p := Default()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "policy: read %s", path)
	}

	// The YAML has a top-level "policy" key
	wrapper := struct {
		Policy *Policy `yaml:"policy"`
	}{Policy: p}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "policy: parse")
	}

	defaults := Default()
	if p.Queries.Organization == "" {
		p.Queries.Organization = defaults.Queries.Organization
	}
	if p.Queries.Insights == "" {
		p.Queries.Insights = defaults.Queries.Insights
	}
	if p.Queries.JobCount == "" {
		p.Queries.JobCount = defaults.Queries.JobCount
	}
	if p.Queries.CompanyLookup == "" {
		p.Queries.CompanyLookup = defaults.Queries.CompanyLookup
	}
	for kind, t := range p.Thresholds {
		if t.MinNodes == 0 {
			t.MinNodes = 1
		}
		p.Thresholds[kind] = t
	}
	if len(p.ConsentLabels) == 0 {
		p.ConsentLabels = defaults.ConsentLabels
	}
	if len(p.ResultSelectors) == 0 {
		p.ResultSelectors = defaults.ResultSelectors
	}
	if len(p.CountSelectors) == 0 {
		p.CountSelectors = defaults.CountSelectors
	}
	return p, nil
}
