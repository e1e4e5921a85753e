// Package linkedin is a thin client for the upstream's voyager API and public
// pages. It maps throttling, blocks and login walls onto the model error kinds.
package linkedin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/orgmetrics/internal/credentials"
	"github.com/sells-group/orgmetrics/internal/model"
	"github.com/sells-group/orgmetrics/internal/resilience"
)

// DefaultBaseURL is the upstream origin.
const DefaultBaseURL = "https://www.linkedin.com"

// Client defines the upstream operations the strategies rely on.
type Client interface {
	// GraphQL runs a persisted query against the fixed GraphQL endpoint.
	GraphQL(ctx context.Context, queryID string, variables Vars) (*GraphQLResponse, error)
	// GetJSON fetches a voyager REST path (relative to /voyager/api) and
	// returns the raw body.
	GetJSON(ctx context.Context, path string, params url.Values) ([]byte, error)
	// GetPage fetches public page markup. Absolute upstream URLs and bare
	// paths are both accepted; the configured base is always used.
	GetPage(ctx context.Context, pageURL string) (*Page, error)
}

// GraphQLResponse is a successful GraphQL reply.
type GraphQLResponse struct {
	Data     json.RawMessage `json:"data"`
	Included json.RawMessage `json:"included,omitempty"`
	Raw      []byte          `json:"-"`
}

// Page is fetched markup plus the URL it ended on.
type Page struct {
	URL        string
	StatusCode int
	Body       string
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom origin (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithLimiter caps outbound requests.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

// WithTimeout sets the per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetry overrides the transient-failure retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.hc = hc
	}
}

type httpClient struct {
	baseURL string
	creds   credentials.Provider
	limiter *rate.Limiter
	timeout time.Duration
	retry   resilience.RetryConfig
	hc      *http.Client
	http    *resty.Client
}

// NewClient creates an upstream client that authenticates with creds.
func NewClient(creds credentials.Provider, opts ...Option) Client {
	c := &httpClient{
		baseURL: DefaultBaseURL,
		creds:   creds,
		limiter: rate.NewLimiter(rate.Limit(1), 2),
		timeout: 20 * time.Second,
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.OnRetry = resilience.RetryLogger("linkedin", "request")

	if c.hc != nil {
		c.http = resty.NewWithClient(c.hc)
	} else {
		c.http = resty.New()
	}
	c.http.
		SetBaseURL(c.baseURL).
		SetRetryCount(0).
		SetRedirectPolicy(authWallRedirectPolicy(10))
	instrument(c.http, "orgmetrics/linkedin")
	return c
}

// authWallRedirectPolicy refuses to follow redirects into login or challenge
// pages so the caller sees an AuthRequiredError instead of login markup.
func authWallRedirectPolicy(maxRedirects int) resty.RedirectPolicy {
	return resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
		if IsAuthPath(req.URL.Path) {
			return &model.AuthRequiredError{URL: req.URL.String()}
		}
		if len(via) >= maxRedirects {
			return eris.Errorf("linkedin: stopped after %d redirects", maxRedirects)
		}
		return nil
	})
}

// GraphQL sends queryID with Rest.li-encoded variables. A non-2xx status or a
// top-level "errors" collection is a failure.
func (c *httpClient) GraphQL(ctx context.Context, queryID string, variables Vars) (*GraphQLResponse, error) {
	raw := "/voyager/api/graphql?includeWebMetadata=true&variables=" + variables.Encode() + "&queryId=" + url.QueryEscape(queryID)

	body, err := c.fetch(ctx, raw, nil, true)
	if err != nil {
		return nil, eris.Wrapf(err, "linkedin: graphql %s", queryName(queryID))
	}

	var envelope struct {
		Data     json.RawMessage   `json:"data"`
		Included json.RawMessage   `json:"included"`
		Errors   []json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, eris.Wrapf(err, "linkedin: graphql %s: decode", queryName(queryID))
	}
	if len(envelope.Errors) > 0 {
		return nil, eris.Errorf("linkedin: graphql %s: %d errors: %s", queryName(queryID), len(envelope.Errors), truncate(string(envelope.Errors[0]), 200))
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil, &model.ParseFailure{What: "graphql " + queryName(queryID) + " data"}
	}
	return &GraphQLResponse{Data: envelope.Data, Included: envelope.Included, Raw: body}, nil
}

// GetJSON fetches a voyager REST resource.
func (c *httpClient) GetJSON(ctx context.Context, path string, params url.Values) ([]byte, error) {
	body, err := c.fetch(ctx, "/voyager/api/"+strings.TrimLeft(path, "/"), params, true)
	if err != nil {
		return nil, eris.Wrapf(err, "linkedin: get %s", path)
	}
	return body, nil
}

// GetPage fetches public markup and checks it for login and challenge walls.
func (c *httpClient) GetPage(ctx context.Context, pageURL string) (*Page, error) {
	rel, err := relativePath(pageURL)
	if err != nil {
		return nil, err
	}

	var page *Page
	err = resilience.Do(ctx, c.retry, func(ctx context.Context) error {
		resp, err := c.send(ctx, rel, nil, false)
		if err != nil {
			return err
		}
		final := resp.Request.RawRequest.URL.String()
		if resp.RawResponse != nil && resp.RawResponse.Request != nil {
			final = resp.RawResponse.Request.URL.String()
		}
		page = &Page{URL: final, StatusCode: resp.StatusCode(), Body: resp.String()}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "linkedin: get page %s", rel)
	}

	switch wall := DetectWall(page.URL, page.Body); wall {
	case WallNone:
		return page, nil
	case WallLogin:
		return nil, &model.AuthRequiredError{URL: page.URL}
	default:
		return nil, &model.UpstreamBlockedError{URL: page.URL, StatusCode: page.StatusCode, Reason: string(wall)}
	}
}

func (c *httpClient) fetch(ctx context.Context, rawPath string, params url.Values, api bool) ([]byte, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		resp, err := c.send(ctx, rawPath, params, api)
		if err != nil {
			return nil, err
		}
		return resp.Body(), nil
	})
}

// send performs one rate-limited request under the per-call timeout and maps
// the status onto the model error kinds.
func (c *httpClient) send(ctx context.Context, rawPath string, params url.Values, api bool) (*resty.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "linkedin: rate limiter")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	headers, err := c.creds.BuildAuthHeaders(ctx)
	if err != nil {
		return nil, err
	}

	req := c.http.R().SetContext(ctx)
	h := http.Header{}
	headers.Apply(h)
	for k, v := range h {
		req.SetHeader(k, v[0])
	}
	if api {
		req.SetHeader("Accept", "application/vnd.linkedin.normalized+json+2.1").
			SetHeader("X-Restli-Protocol-Version", "2.0.0").
			SetHeader("X-Li-Lang", "en_US")
	} else {
		req.SetHeader("Accept", "text/html,application/xhtml+xml")
	}
	if len(params) > 0 {
		req.SetQueryParamsFromValues(params)
	}

	resp, err := req.Get(rawPath)
	if err != nil {
		var auth *model.AuthRequiredError
		if errors.As(err, &auth) {
			return nil, auth
		}
		if ctx.Err() != nil {
			return nil, eris.Wrapf(ctx.Err(), "linkedin: %s", rawPath)
		}
		return nil, resilience.NewTransientError(eris.Wrapf(err, "linkedin: %s", rawPath), 0)
	}

	status := resp.StatusCode()
	target := resp.Request.URL
	switch {
	case status >= 200 && status < 300:
		return resp, nil
	case status == http.StatusTooManyRequests:
		zap.L().Warn("linkedin: throttled", zap.String("url", target))
		return nil, &model.UpstreamThrottledError{URL: target, StatusCode: status}
	case status == http.StatusForbidden || status == 999:
		zap.L().Warn("linkedin: blocked", zap.String("url", target), zap.Int("status", status))
		return nil, &model.UpstreamBlockedError{URL: target, StatusCode: status}
	case status == http.StatusUnauthorized:
		return nil, &model.AuthRequiredError{URL: target}
	case resilience.IsTransientHTTPStatus(status):
		return nil, resilience.NewTransientError(eris.Errorf("linkedin: %s returned %d", target, status), status)
	default:
		return nil, eris.Errorf("linkedin: %s returned %d", target, status)
	}
}

// relativePath strips the upstream origin so every page goes through the
// configured base.
func relativePath(pageURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return "", eris.Wrapf(err, "linkedin: parse page url %q", pageURL)
	}
	if u.Host != "" && !IsUpstreamHost(u.Hostname()) {
		return "", eris.Errorf("linkedin: refusing off-domain page %q", pageURL)
	}
	rel := u.EscapedPath()
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	if u.RawQuery != "" {
		rel += "?" + u.RawQuery
	}
	return rel, nil
}

// IsUpstreamHost reports whether host is linkedin.com or one of its subdomains.
func IsUpstreamHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	return host == "linkedin.com" || strings.HasSuffix(host, ".linkedin.com")
}

func queryName(queryID string) string {
	name, _, _ := strings.Cut(queryID, ".")
	return name
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
