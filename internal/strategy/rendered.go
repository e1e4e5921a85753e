package strategy

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sells-group/orgmetrics/internal/browser"
	"github.com/sells-group/orgmetrics/internal/extract"
	"github.com/sells-group/orgmetrics/internal/jsonscan"
	"github.com/sells-group/orgmetrics/internal/model"
	"github.com/sells-group/orgmetrics/internal/policy"
	"github.com/sells-group/orgmetrics/internal/resilience"
	"github.com/sells-group/orgmetrics/pkg/linkedin"
)

// Rendered drives the shared browser session through the company sub-pages
// and, failing those, the search UI filtered by organization.
type Rendered struct {
	browsers browser.Provider
	policy   *policy.Policy
	pacer    resilience.Pacer
	retry    resilience.RetryConfig
}

// NewRendered builds the rendered strategy. retry governs each navigation.
func NewRendered(browsers browser.Provider, pol *policy.Policy, pacer resilience.Pacer, retry resilience.RetryConfig) *Rendered {
	if pol == nil {
		pol = policy.Default()
	}
	return &Rendered{browsers: browsers, policy: pol, pacer: pacer, retry: retry}
}

func (r *Rendered) Name() string { return NameRendered }

func (r *Rendered) Available(context.Context) bool { return r.browsers != nil }

func (r *Rendered) Collect(ctx context.Context, target Target, kind model.MetricKind, log *model.AttemptLog) (Result, error) {
	return r.ScrapeMetric(ctx, target, kind, log)
}

// subPaths lists the company sub-pages scanned for kind, in order.
func subPaths(kind model.MetricKind) []string {
	if kind == model.MetricJobCount {
		return []string{"jobs"}
	}
	return []string{"people", "about"}
}

// ScrapeMetric scans the company sub-pages for kind. A page that yields a
// value ends the scan; a range is kept and the search UI is tried next.
func (r *Rendered) ScrapeMetric(ctx context.Context, target Target, kind model.MetricKind, log *model.AttemptLog) (Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "rendered.scrape")
	defer span.End()
	span.SetAttributes(attribute.String("company", target.Reference.Slug), attribute.String("metric", string(kind)))

	var res Result
	sess, err := r.browsers.Session(ctx)
	if err != nil {
		return res, err
	}
	page, err := sess.OpenPage(ctx)
	if err != nil {
		return res, eris.Wrap(err, "rendered: open page")
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			zap.L().Debug("rendered: close page", zap.Error(cerr))
		}
	}()

	rules := extract.RulesFor(kind)
	accept := acceptFor(r.policy, kind)

	for _, sub := range subPaths(kind) {
		started := time.Now()
		cand, err := r.scrapePage(ctx, page, linkedin.CompanySubURL(target.Reference.Slug, sub), kind, rules, accept)
		recordStep(log, NameRendered, kind, sub, started, err)
		if err != nil {
			if stopsRendered(err) {
				return res, err
			}
			continue
		}
		res.Candidates = append(res.Candidates, cand)
		if cand.HasValue() && cand.Confidence > model.ConfidenceApproximate {
			return res, nil
		}
	}

	started := time.Now()
	cand, err := r.searchFallback(ctx, page, target, kind, accept)
	recordStep(log, NameRendered, kind, "search", started, err)
	if err != nil {
		if len(res.Candidates) > 0 && !stopsRendered(err) {
			return res, nil
		}
		return res, err
	}
	res.Candidates = append(res.Candidates, cand)
	return res, nil
}

// stopsRendered reports whether err ends the whole strategy rather than one page.
func stopsRendered(err error) bool {
	return stopsStrategy(err) || errors.Is(err, context.Canceled)
}

// navigate loads target under the retry policy and maps login and challenge
// walls onto the model errors. It returns the URL the tab ended on.
func (r *Rendered) navigate(ctx context.Context, page browser.Page, target string) (string, error) {
	if err := r.pacer.Wait(ctx); err != nil {
		return "", err
	}
	return resilience.DoVal(ctx, r.retry, func(ctx context.Context) (string, error) {
		final, err := page.Navigate(ctx, target)
		if err != nil {
			return "", err
		}
		if u, perr := url.Parse(final); perr == nil && linkedin.IsAuthPath(u.Path) {
			return "", &model.AuthRequiredError{URL: final}
		}
		return final, nil
	})
}

// prepare dismisses consent banners and lets the page settle.
func (r *Rendered) prepare(ctx context.Context, page browser.Page) {
	clicked, err := page.ClickText(ctx, r.policy.ConsentLabels)
	if err != nil {
		zap.L().Debug("rendered: consent dismissal failed", zap.Error(err))
	} else if clicked {
		zap.L().Debug("rendered: consent banner dismissed")
	}
	_ = resilience.NewPacer(r.policy.SettleTime, r.policy.SettleTime).Wait(ctx)
}

func (r *Rendered) scrapePage(ctx context.Context, page browser.Page, target string, kind model.MetricKind, rules []extract.Rule, accept func(int64) bool) (model.MetricCandidate, error) {
	final, err := r.navigate(ctx, page, target)
	if err != nil {
		return model.MetricCandidate{}, err
	}
	r.prepare(ctx, page)

	text, err := page.Text(ctx)
	if err != nil {
		return model.MetricCandidate{}, eris.Wrapf(err, "rendered: read text of %s", target)
	}
	if m, ok := extract.FirstMatch(text, rules, accept); ok {
		return m.Candidate(kind, NameRendered), nil
	}

	markup, err := page.HTML(ctx)
	if err != nil {
		return model.MetricCandidate{}, eris.Wrapf(err, "rendered: read markup of %s", target)
	}
	if wall := linkedin.DetectWall(final, markup); wall != linkedin.WallNone {
		if wall == linkedin.WallLogin {
			return model.MetricCandidate{}, &model.AuthRequiredError{URL: final}
		}
		return model.MetricCandidate{}, &model.UpstreamBlockedError{URL: final, Reason: string(wall)}
	}
	m, ok, err := extract.DOMScan(markup, r.policy.CountSelectors, rules, accept)
	if err != nil {
		return model.MetricCandidate{}, err
	}
	if !ok {
		return model.MetricCandidate{}, &model.ParseFailure{What: "count on " + target}
	}
	return m.Candidate(kind, NameRendered), nil
}

// searchFallback opens the search UI filtered by organization while
// intercepting its JSON traffic. The largest intercepted total wins; then the
// visible result count; then a count of rendered result nodes.
func (r *Rendered) searchFallback(ctx context.Context, page browser.Page, target Target, kind model.MetricKind, accept func(int64) bool) (model.MetricCandidate, error) {
	searchURL := linkedin.PeopleSearchURL(target.Identity.ID)
	if kind == model.MetricJobCount {
		searchURL = linkedin.JobsSearchURL(target.Identity.ID)
	}

	var (
		mu    sync.Mutex
		best  int64
		found bool
	)
	keys := jsonscan.KeysFor(kind)
	stop, err := page.InterceptJSON(ctx, func(_ string, body []byte) {
		totals, err := jsonscan.DeepFindTotalsRaw(body, keys)
		if err != nil {
			return
		}
		v, ok := maxAccepted(totals, accept)
		if !ok {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if !found || v > best {
			best, found = v, true
		}
	})
	if err != nil {
		return model.MetricCandidate{}, eris.Wrap(err, "rendered: intercept")
	}

	_, navErr := r.navigate(ctx, page, searchURL)
	if navErr == nil {
		r.prepare(ctx, page)
	}
	stop()
	if navErr != nil {
		return model.MetricCandidate{}, navErr
	}

	mu.Lock()
	total, ok := best, found
	mu.Unlock()
	if ok {
		return model.ValueCandidate(kind, NameRendered, total, model.ConfidenceSearchTotal, "search_intercept"), nil
	}

	if text, err := page.Text(ctx); err == nil {
		if m, ok := extract.FirstMatch(text, extract.SearchRules, accept); ok && m.Value != nil {
			return m.Candidate(kind, NameRendered), nil
		}
	}

	markup, err := page.HTML(ctx)
	if err != nil {
		return model.MetricCandidate{}, eris.Wrap(err, "rendered: read search markup")
	}
	n, err := extract.CountNodes(markup, r.policy.ResultSelectors)
	if err != nil {
		return model.MetricCandidate{}, err
	}
	if n < r.policy.Threshold(kind).MinNodes {
		return model.MetricCandidate{}, &model.ParseFailure{What: "search results for organization " + target.Identity.ID}
	}
	return model.ValueCandidate(kind, NameRendered, int64(n), model.ConfidenceApproximate, "result_nodes"), nil
}
