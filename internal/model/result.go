package model

import "time"

// Terminal data source tags used when no strategy produced a winner.
const (
	DataSourceRateLimited = "rate_limited"
	DataSourceBlocked     = "blocked"
	DataSourceNone        = "none"
)

// ResolutionResult is the terminal artifact of one resolution call.
//
// EmployeeCount and EmployeeCountRange are mutually exclusive: an exact value
// supersedes a range.
type ResolutionResult struct {
	ResolutionID       string                `json:"resolutionId"`
	OrganizationID     string                `json:"organizationId"`
	Slug               string                `json:"slug"`
	CanonicalURL       string                `json:"canonicalUrl"`
	IdentityMethod     ResolveMethod         `json:"identityMethod"`
	EmployeeCount      *int64                `json:"employeeCount"`
	EmployeeCountRange *string               `json:"employeeCountRange"`
	JobsPostedCount    *int64                `json:"jobsPostedCount"`
	DataSource         string                `json:"dataSource"`
	Sources            map[MetricKind]string `json:"sources"`
	Organization       *OrganizationFacts    `json:"organization,omitempty"`
	Attempts           []ResolutionAttempt   `json:"attempts"`
	FetchedAt          time.Time             `json:"fetchedAt"`
}

// SetEmployee applies the selected employee candidate, keeping the exact value
// and range fields mutually exclusive.
func (r *ResolutionResult) SetEmployee(c MetricCandidate) {
	r.EmployeeCount = nil
	r.EmployeeCountRange = nil
	switch {
	case c.Value != nil:
		v := *c.Value
		r.EmployeeCount = &v
	case c.Range != "":
		rng := c.Range
		r.EmployeeCountRange = &rng
	}
}

// SetJobs applies the selected job-count candidate. Range-only job candidates
// carry no value and leave the field null.
func (r *ResolutionResult) SetJobs(c MetricCandidate) {
	r.JobsPostedCount = nil
	if c.Value != nil {
		v := *c.Value
		r.JobsPostedCount = &v
	}
}
