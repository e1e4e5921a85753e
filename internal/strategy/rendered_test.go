package strategy

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/orgmetrics/internal/browser"
	"github.com/sells-group/orgmetrics/internal/model"
	"github.com/sells-group/orgmetrics/internal/policy"
	"github.com/sells-group/orgmetrics/internal/resilience"
	"github.com/sells-group/orgmetrics/pkg/linkedin"
)

// fakeDoc is what the fake tab shows after navigating to a URL.
type fakeDoc struct {
	final    string
	text     string
	html     string
	json     [][]byte
	failures int // navigation errors before success
}

type fakePage struct {
	mu        sync.Mutex
	docs      map[string]*fakeDoc
	current   *fakeDoc
	visited   []string
	intercept func(string, []byte)
	clicks    int
	closed    bool
}

func (p *fakePage) Navigate(_ context.Context, u string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visited = append(p.visited, u)
	doc, ok := p.docs[u]
	if !ok {
		p.current = &fakeDoc{}
		return u, nil
	}
	if doc.failures > 0 {
		doc.failures--
		return "", errors.New("net::ERR_CONNECTION_RESET")
	}
	p.current = doc
	if p.intercept != nil {
		for _, body := range doc.json {
			p.intercept("https://www.linkedin.com/voyager/api/graphql", body)
		}
	}
	if doc.final != "" {
		return doc.final, nil
	}
	return u, nil
}

func (p *fakePage) Text(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.text, nil
}

func (p *fakePage) HTML(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current.html == "" {
		return "<html><body></body></html>", nil
	}
	return p.current.html, nil
}

func (p *fakePage) ClickText(context.Context, []string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks++
	return false, nil
}

func (p *fakePage) InterceptJSON(_ context.Context, fn func(string, []byte)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intercept = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.intercept = nil
	}, nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

type fakeSession struct{ page *fakePage }

func (s *fakeSession) OpenPage(context.Context) (browser.Page, error)  { return s.page, nil }
func (s *fakeSession) HasCookie(context.Context, string) (bool, error) { return true, nil }
func (s *fakeSession) SetCookie(context.Context, *http.Cookie) error   { return nil }
func (s *fakeSession) Close() error                                    { return nil }

type fakeProvider struct{ session browser.Session }

func (f fakeProvider) Session(context.Context) (browser.Session, error) { return f.session, nil }

func newRendered(t *testing.T, docs map[string]*fakeDoc) (*Rendered, *fakePage) {
	t.Helper()
	zap.ReplaceGlobals(zap.NewNop())
	page := &fakePage{docs: docs}
	pol := policy.Default()
	pol.SettleTime = 0
	retry := resilience.NavigationRetryConfig()
	retry.InitialBackoff = time.Millisecond
	retry.MaxBackoff = 2 * time.Millisecond
	return NewRendered(fakeProvider{session: &fakeSession{page: page}}, pol, resilience.Pacer{}, retry), page
}

func TestRendered_PeoplePageExactValue(t *testing.T) {
	r, page := newRendered(t, map[string]*fakeDoc{
		linkedin.CompanySubURL("acme", "people"): {text: "Acme Corp\n1,234 associated members\nWhere they live"},
	})

	var log model.AttemptLog
	res, err := r.Collect(context.Background(), testTarget(), model.MetricEmployeeCount, &log)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, int64(1234), *res.Candidates[0].Value)
	assert.Equal(t, model.ConfidenceExact, res.Candidates[0].Confidence)
	assert.Equal(t, []string{linkedin.CompanySubURL("acme", "people")}, page.visited)
	assert.Equal(t, 1, page.clicks)
	assert.True(t, page.closed)
}

func TestRendered_RangeThenSearchIntercept(t *testing.T) {
	r, page := newRendered(t, map[string]*fakeDoc{
		linkedin.CompanySubURL("acme", "people"): {html: "<html><body><h1>People</h1></body></html>"},
		linkedin.CompanySubURL("acme", "about"):  {text: "Overview\nCompany size 201-500 employees\nHeadquarters Seattle"},
		linkedin.PeopleSearchURL("1035"): {json: [][]byte{
			[]byte(`{"data":{"paging":{"total":12}}}`),
			[]byte(`{"data":{"searchDashClustersByAll":{"metadata":{"totalResultCount":640}}}}`),
			[]byte(`not json`),
		}},
	})

	res, err := r.Collect(context.Background(), testTarget(), model.MetricEmployeeCount, nil)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "201-500", res.Candidates[0].Range)
	assert.Equal(t, int64(640), *res.Candidates[1].Value)
	assert.Equal(t, model.ConfidenceSearchTotal, res.Candidates[1].Confidence)

	best, ok := res.Best()
	require.True(t, ok)
	assert.Equal(t, "search_intercept", best.Detail)
	assert.Len(t, page.visited, 3)
	assert.Nil(t, page.intercept)
}

func TestRendered_LoginRedirectIsNotRetried(t *testing.T) {
	r, page := newRendered(t, map[string]*fakeDoc{
		linkedin.CompanySubURL("acme", "jobs"): {final: "https://www.linkedin.com/authwall?trk=gf"},
	})

	var log model.AttemptLog
	_, err := r.Collect(context.Background(), testTarget(), model.MetricJobCount, &log)
	require.Error(t, err)
	assert.True(t, model.IsAuthRequired(err))
	assert.Len(t, page.visited, 1)
	assert.Len(t, log.Failed(NameRendered), 1)
}

func TestRendered_NavigationRetried(t *testing.T) {
	r, page := newRendered(t, map[string]*fakeDoc{
		linkedin.CompanySubURL("acme", "jobs"): {failures: 2, text: "Acme has 9 open jobs"},
	})

	res, err := r.Collect(context.Background(), testTarget(), model.MetricJobCount, nil)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, int64(9), *res.Candidates[0].Value)
	assert.Len(t, page.visited, 3)
}

func TestRendered_CountsResultNodesAsLastResort(t *testing.T) {
	r, _ := newRendered(t, map[string]*fakeDoc{
		linkedin.JobsSearchURL("1035"): {html: `<ul class="jobs-search__results-list"><li>a</li><li>b</li><li>c</li></ul>`},
	})

	res, err := r.Collect(context.Background(), testTarget(), model.MetricJobCount, nil)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, int64(3), *res.Candidates[0].Value)
	assert.Equal(t, model.ConfidenceApproximate, res.Candidates[0].Confidence)
}

func TestRendered_ChallengePageBlocks(t *testing.T) {
	r, _ := newRendered(t, map[string]*fakeDoc{
		linkedin.CompanySubURL("acme", "jobs"): {html: `<html><head><title>Security Verification | LinkedIn</title></head><body></body></html>`},
	})

	_, err := r.Collect(context.Background(), testTarget(), model.MetricJobCount, nil)
	require.Error(t, err)
	assert.Equal(t, model.DataSourceBlocked, model.TerminalDataSource(err))
}

func TestRendered_NothingFound(t *testing.T) {
	r, _ := newRendered(t, map[string]*fakeDoc{})

	var log model.AttemptLog
	_, err := r.Collect(context.Background(), testTarget(), model.MetricEmployeeCount, &log)
	var parse *model.ParseFailure
	require.True(t, errors.As(err, &parse), "got %v", err)
	assert.Len(t, log.Failed(NameRendered), 3)
}

func TestRendered_ApproximateValueKeepsScanning(t *testing.T) {
	r, page := newRendered(t, map[string]*fakeDoc{
		linkedin.CompanySubURL("acme", "people"): {html: `<html><body><div aria-live="polite">812</div></body></html>`},
		linkedin.CompanySubURL("acme", "about"):  {text: "Acme Corp\n1,234 associated members"},
	})

	res, err := r.Collect(context.Background(), testTarget(), model.MetricEmployeeCount, nil)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, model.ConfidenceApproximate, res.Candidates[0].Confidence)
	assert.Equal(t, "bare_count", res.Candidates[0].Detail)

	best, ok := res.Best()
	require.True(t, ok)
	assert.Equal(t, int64(1234), *best.Value)
	assert.Equal(t, []string{
		linkedin.CompanySubURL("acme", "people"),
		linkedin.CompanySubURL("acme", "about"),
	}, page.visited)
}
