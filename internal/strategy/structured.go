package strategy

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sells-group/orgmetrics/internal/credentials"
	"github.com/sells-group/orgmetrics/internal/jsonscan"
	"github.com/sells-group/orgmetrics/internal/model"
	"github.com/sells-group/orgmetrics/internal/policy"
	"github.com/sells-group/orgmetrics/internal/resilience"
	"github.com/sells-group/orgmetrics/pkg/linkedin"
)

const tracerName = "github.com/sells-group/orgmetrics/internal/strategy"

// insightsKeys are the headcount fields of the insights card. The generic
// "total" keys are left out because the card carries unrelated totals.
var insightsKeys = jsonscan.NewKeys("totalEmployees", "employeeCount", "headcount", "totalHeadcount")

// Structured runs persisted GraphQL queries from the policy catalogue. It needs
// an authenticated session.
type Structured struct {
	client linkedin.Client
	creds  credentials.Provider
	policy *policy.Policy
	pacer  resilience.Pacer
}

// NewStructured builds the structured strategy. pacer is the small random
// delay taken before every query.
func NewStructured(client linkedin.Client, creds credentials.Provider, pol *policy.Policy, pacer resilience.Pacer) *Structured {
	if pol == nil {
		pol = policy.Default()
	}
	return &Structured{client: client, creds: creds, policy: pol, pacer: pacer}
}

func (s *Structured) Name() string { return NameStructured }

func (s *Structured) Available(ctx context.Context) bool {
	return s.creds != nil && s.creds.Healthy(ctx)
}

// Execute sends one persisted query after the pacing delay.
func (s *Structured) Execute(ctx context.Context, queryID string, vars linkedin.Vars) (any, error) {
	if queryID == "" {
		return nil, eris.New("structured: query id not configured")
	}
	if err := s.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "structured.execute")
	defer span.End()
	span.SetAttributes(attribute.String("query.id", queryID))

	resp, err := s.client.GraphQL(ctx, queryID, vars)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	raw := resp.Raw
	if len(raw) == 0 {
		raw = resp.Data
	}
	return jsonscan.Decode(raw)
}

func (s *Structured) Collect(ctx context.Context, target Target, kind model.MetricKind, log *model.AttemptLog) (Result, error) {
	switch kind {
	case model.MetricEmployeeCount:
		return s.collectEmployees(ctx, target, log)
	case model.MetricJobCount:
		return s.collectJobs(ctx, target, log)
	default:
		return Result{}, eris.Errorf("structured: unknown metric %q", kind)
	}
}

// collectEmployees asks the organization query first. Insights is only
// consulted when the organization record had no exact staff count.
func (s *Structured) collectEmployees(ctx context.Context, target Target, log *model.AttemptLog) (Result, error) {
	kind := model.MetricEmployeeCount
	accept := acceptFor(s.policy, kind)
	var (
		res  Result
		errs []error
	)

	started := time.Now()
	rec, err := s.organization(ctx, target)
	recordStep(log, NameStructured, kind, "organization", started, err)
	if err != nil {
		if stopsStrategy(err) {
			return res, err
		}
		errs = append(errs, err)
	} else {
		res.Candidates = append(res.Candidates, rec.candidates(NameStructured, "organization", accept)...)
		if !rec.Facts.IsZero() {
			facts := rec.Facts
			res.Facts = &facts
		}
	}
	if res.HasExact() {
		return res, nil
	}

	started = time.Now()
	cand, err := s.insights(ctx, target, accept)
	recordStep(log, NameStructured, kind, "insights", started, err)
	if err != nil {
		if stopsStrategy(err) {
			return res, err
		}
		errs = append(errs, err)
	} else {
		res.Candidates = append(res.Candidates, cand)
	}

	if len(res.Candidates) == 0 {
		if len(errs) == 0 {
			return res, &model.ParseFailure{What: "structured employee count"}
		}
		return res, eris.Wrap(errors.Join(errs...), "structured: employee count")
	}
	return res, nil
}

func (s *Structured) organization(ctx context.Context, target Target) (orgRecord, error) {
	v, err := s.Execute(ctx, s.policy.Queries.Organization, linkedin.Vars{"universalName": target.Reference.Slug})
	if err != nil {
		return orgRecord{}, err
	}
	rec, ok := parseOrganization(v, target.Reference.Slug)
	if !ok {
		return orgRecord{}, &model.ParseFailure{What: "organization record"}
	}
	zap.L().Debug("structured: organization record",
		zap.String("company", target.Reference.Slug),
		zap.Bool("staff_count", rec.StaffCount != nil),
		zap.String("range", rec.Range),
	)
	return rec, nil
}

func (s *Structured) insights(ctx context.Context, target Target, accept func(int64) bool) (model.MetricCandidate, error) {
	v, err := s.Execute(ctx, s.policy.Queries.Insights, linkedin.Vars{"company": "urn:li:fsd_company:" + target.Identity.ID})
	if err != nil {
		return model.MetricCandidate{}, err
	}
	best, ok := maxAccepted(jsonscan.DeepFindTotals(v, insightsKeys), accept)
	if !ok {
		return model.MetricCandidate{}, &model.ParseFailure{What: "insights headcount"}
	}
	return model.ValueCandidate(model.MetricEmployeeCount, NameStructured, best, model.ConfidenceExact, "insights"), nil
}

func (s *Structured) collectJobs(ctx context.Context, target Target, log *model.AttemptLog) (Result, error) {
	kind := model.MetricJobCount
	vars := linkedin.Vars{
		"count": 0,
		"query": linkedin.Vars{
			"origin":          "COMPANY_PAGE_JOBS_CLUSTER_EXPANSION",
			"selectedFilters": linkedin.Vars{"company": linkedin.List{target.Identity.ID}},
		},
	}

	started := time.Now()
	v, err := s.Execute(ctx, s.policy.Queries.JobCount, vars)
	if err == nil {
		total, ok := pagingTotal(v, kind, acceptFor(s.policy, kind))
		if !ok {
			err = &model.ParseFailure{What: "job search total"}
		} else {
			recordStep(log, NameStructured, kind, "jobCount", started, nil)
			return Result{Candidates: []model.MetricCandidate{
				model.ValueCandidate(kind, NameStructured, total, model.ConfidenceExact, "jobCount"),
			}}, nil
		}
	}
	recordStep(log, NameStructured, kind, "jobCount", started, err)
	return Result{}, err
}

// pagingTotal reads paging.total, falling back to the metric's own keys.
func pagingTotal(v any, kind model.MetricKind, accept func(int64) bool) (int64, bool) {
	var totals []int64
	for _, paging := range jsonscan.FindObjects(v, "paging") {
		if n, ok := jsonscan.Int(paging["total"]); ok {
			totals = append(totals, n)
		}
	}
	if len(totals) == 0 {
		totals = jsonscan.DeepFindTotals(v, jsonscan.KeysFor(kind))
	}
	return maxAccepted(totals, accept)
}

// maxAccepted returns the largest total that passes accept.
func maxAccepted(totals []int64, accept func(int64) bool) (int64, bool) {
	kept := totals[:0:0]
	for _, t := range totals {
		if accept == nil || accept(t) {
			kept = append(kept, t)
		}
	}
	return jsonscan.Max(kept)
}
