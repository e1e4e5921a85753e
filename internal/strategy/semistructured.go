package strategy

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/orgmetrics/internal/extract"
	"github.com/sells-group/orgmetrics/internal/jsonscan"
	"github.com/sells-group/orgmetrics/internal/model"
	"github.com/sells-group/orgmetrics/internal/policy"
	"github.com/sells-group/orgmetrics/internal/resilience"
	"github.com/sells-group/orgmetrics/pkg/linkedin"
)

// Endpoint names, usable in the policy's disabled_endpoints list.
const (
	EndpointPeopleTotal        = "people_total"
	EndpointBlendedPeople      = "blended_people"
	EndpointGuidedCluster      = "guided_cluster"
	EndpointOrganizationRecord = "organization_record"
	EndpointJobsCluster        = "jobs_cluster"
	EndpointJobsSearch         = "jobs_search"
	EndpointJobsPage           = "jobs_page"
)

// totalEndpoint is a JSON endpoint whose answer is a deep-scanned total.
type totalEndpoint struct {
	name string
	conf model.Confidence
	path func(orgID string) string
}

// employeeEndpoints are tried in order; the first positive total wins.
var employeeEndpoints = []totalEndpoint{
	{
		name: EndpointPeopleTotal,
		conf: model.ConfidenceExact,
		path: func(id string) string {
			return "search/hits?q=people&count=0&origin=COMPANY_PAGE_CANNED_SEARCH&facetCurrentCompany=List(" + id + ")"
		},
	},
	{
		name: EndpointBlendedPeople,
		conf: model.ConfidenceSearchTotal,
		path: func(id string) string {
			return "search/blended?q=all&count=0&origin=COMPANY_PAGE_CANNED_SEARCH&filters=List(resultType-%3EPEOPLE,currentCompany-%3E" + id + ")"
		},
	},
	{
		name: EndpointGuidedCluster,
		conf: model.ConfidenceSearchTotal,
		path: func(id string) string {
			return "search/cluster?q=guided&count=0&guides=List(v-%3EPEOPLE,facetCurrentCompany-%3E" + id + ")"
		},
	},
}

// jobEndpoints are the two job-search parameter variants.
var jobEndpoints = []totalEndpoint{
	{
		name: EndpointJobsCluster,
		conf: model.ConfidenceExact,
		path: func(id string) string {
			return "jobs/search?q=jobSearch&count=0&start=0&query=(origin:COMPANY_PAGE_JOBS_CLUSTER_EXPANSION,locationUnion:(geoId:92000000),selectedFilters:(company:List(" + id + ")))"
		},
	},
	{
		name: EndpointJobsSearch,
		conf: model.ConfidenceExact,
		path: func(id string) string {
			return "jobs/search?q=jobSearch&count=0&start=0&query=(origin:JOB_SEARCH_PAGE_OTHER_ENTRY,selectedFilters:(company:List(" + id + ")))"
		},
	},
}

// SemiStructured reads totals out of the JSON endpoints the web client uses,
// then the public jobs listing for job counts.
type SemiStructured struct {
	client linkedin.Client
	policy *policy.Policy
	pacer  resilience.Pacer
}

// NewSemiStructured builds the strategy. pacer runs before every call.
func NewSemiStructured(client linkedin.Client, pol *policy.Policy, pacer resilience.Pacer) *SemiStructured {
	if pol == nil {
		pol = policy.Default()
	}
	return &SemiStructured{client: client, policy: pol, pacer: pacer}
}

func (s *SemiStructured) Name() string { return NameSemiStructured }

// Available is always true: the public jobs page works without a session.
func (s *SemiStructured) Available(context.Context) bool { return true }

// FetchJSON paces, then fetches one voyager path.
func (s *SemiStructured) FetchJSON(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := s.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	return s.client.GetJSON(ctx, path, params)
}

func (s *SemiStructured) Collect(ctx context.Context, target Target, kind model.MetricKind, log *model.AttemptLog) (Result, error) {
	switch kind {
	case model.MetricEmployeeCount:
		return s.collectEmployees(ctx, target, log)
	case model.MetricJobCount:
		return s.collectJobs(ctx, target, log)
	default:
		return Result{}, eris.Errorf("semi_structured: unknown metric %q", kind)
	}
}

func (s *SemiStructured) collectEmployees(ctx context.Context, target Target, log *model.AttemptLog) (Result, error) {
	kind := model.MetricEmployeeCount
	var (
		res  Result
		errs []error
	)

	for _, ep := range employeeEndpoints {
		if s.policy.Disabled(ep.name) {
			continue
		}
		started := time.Now()
		cand, err := s.total(ctx, ep, target, kind)
		recordStep(log, NameSemiStructured, kind, ep.name, started, err)
		if err != nil {
			if stopsStrategy(err) {
				return res, err
			}
			errs = append(errs, err)
			continue
		}
		res.Candidates = append(res.Candidates, cand)
		return res, nil
	}

	if !s.policy.Disabled(EndpointOrganizationRecord) {
		started := time.Now()
		rec, err := s.organizationRecord(ctx, target)
		recordStep(log, NameSemiStructured, kind, EndpointOrganizationRecord, started, err)
		if err != nil {
			if stopsStrategy(err) {
				return res, err
			}
			errs = append(errs, err)
		} else {
			res.Candidates = append(res.Candidates, rec.candidates(NameSemiStructured, EndpointOrganizationRecord, acceptFor(s.policy, kind))...)
			if !rec.Facts.IsZero() {
				facts := rec.Facts
				res.Facts = &facts
			}
		}
	}

	return s.finish(res, errs, "employee count")
}

func (s *SemiStructured) collectJobs(ctx context.Context, target Target, log *model.AttemptLog) (Result, error) {
	kind := model.MetricJobCount
	var (
		res  Result
		errs []error
	)

	for _, ep := range jobEndpoints {
		if s.policy.Disabled(ep.name) {
			continue
		}
		started := time.Now()
		cand, err := s.total(ctx, ep, target, kind)
		recordStep(log, NameSemiStructured, kind, ep.name, started, err)
		if err != nil {
			if stopsStrategy(err) {
				return res, err
			}
			errs = append(errs, err)
			continue
		}
		res.Candidates = append(res.Candidates, cand)
		return res, nil
	}

	if !s.policy.Disabled(EndpointJobsPage) {
		started := time.Now()
		cand, err := s.jobsPage(ctx, target)
		recordStep(log, NameSemiStructured, kind, EndpointJobsPage, started, err)
		if err != nil {
			if stopsStrategy(err) {
				return res, err
			}
			errs = append(errs, err)
		} else {
			res.Candidates = append(res.Candidates, cand)
		}
	}

	return s.finish(res, errs, "job count")
}

func (s *SemiStructured) finish(res Result, errs []error, what string) (Result, error) {
	if len(res.Candidates) > 0 {
		return res, nil
	}
	if len(errs) == 0 {
		return res, eris.Errorf("semi_structured: %s: every endpoint disabled", what)
	}
	return res, eris.Wrapf(errors.Join(errs...), "semi_structured: %s", what)
}

// total fetches ep and keeps the largest allowlisted total that passes the
// policy threshold.
func (s *SemiStructured) total(ctx context.Context, ep totalEndpoint, target Target, kind model.MetricKind) (model.MetricCandidate, error) {
	body, err := s.FetchJSON(ctx, ep.path(target.Identity.ID), nil)
	if err != nil {
		return model.MetricCandidate{}, err
	}
	totals, err := jsonscan.DeepFindTotalsRaw(body, jsonscan.KeysFor(kind))
	if err != nil {
		return model.MetricCandidate{}, &model.ParseFailure{What: ep.name + " response"}
	}
	best, ok := maxAccepted(totals, acceptFor(s.policy, kind))
	if !ok {
		return model.MetricCandidate{}, &model.ParseFailure{What: ep.name + " total"}
	}
	zap.L().Debug("semi_structured: total",
		zap.String("company", target.Reference.Slug),
		zap.String("endpoint", ep.name),
		zap.Int64("total", best),
		zap.Int("matches", len(totals)),
	)
	return model.ValueCandidate(kind, NameSemiStructured, best, ep.conf, ep.name), nil
}

func (s *SemiStructured) organizationRecord(ctx context.Context, target Target) (orgRecord, error) {
	params := url.Values{
		"q":             {"universalName"},
		"universalName": {target.Reference.Slug},
		"decorationId":  {"com.linkedin.voyager.deco.organization.web.WebFullCompanyMain-12"},
	}
	body, err := s.FetchJSON(ctx, "organization/companies", params)
	if err != nil {
		return orgRecord{}, err
	}
	v, err := jsonscan.Decode(body)
	if err != nil {
		return orgRecord{}, &model.ParseFailure{What: "organization record response"}
	}
	rec, ok := parseOrganization(v, target.Reference.Slug)
	if !ok || (rec.StaffCount == nil && rec.Range == "") {
		return orgRecord{}, &model.ParseFailure{What: "organization record staff count"}
	}
	return rec, nil
}

// jobsPage scans the public jobs listing filtered to the organization.
func (s *SemiStructured) jobsPage(ctx context.Context, target Target) (model.MetricCandidate, error) {
	if err := s.pacer.Wait(ctx); err != nil {
		return model.MetricCandidate{}, err
	}
	page, err := s.client.GetPage(ctx, linkedin.JobsSearchURL(target.Identity.ID))
	if err != nil {
		return model.MetricCandidate{}, err
	}
	m, ok := extract.FirstMatch(extract.Text(page.Body), extract.JobRules, acceptFor(s.policy, model.MetricJobCount))
	if !ok || m.Value == nil {
		return model.MetricCandidate{}, &model.ParseFailure{What: "job count on jobs listing"}
	}
	return m.Candidate(model.MetricJobCount, NameSemiStructured), nil
}
