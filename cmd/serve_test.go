package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/orgmetrics/internal/model"
	"github.com/sells-group/orgmetrics/internal/resilience"
	"github.com/sells-group/orgmetrics/internal/resolver"
)

type fakeResolver struct {
	result    *model.ResolutionResult
	err       error
	reference string
	opts      int
}

func (f *fakeResolver) Resolve(_ context.Context, reference string, opts ...resolver.CallOption) (*model.ResolutionResult, error) {
	f.reference = reference
	f.opts = len(opts)
	return f.result, f.err
}

func (f *fakeResolver) BreakerStates() map[string]resilience.CircuitState {
	return map[string]resilience.CircuitState{"structured": resilience.CircuitOpen}
}

func serve(t *testing.T, h http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestRouter_HealthEndpoint(t *testing.T) {
	h := newRouter(&fakeResolver{}, []string{"*"})

	rr := serve(t, h, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "ok", decodeBody(t, rr)["status"])
}

func TestRouter_CompanyMetrics(t *testing.T) {
	n := int64(812)
	fake := &fakeResolver{result: &model.ResolutionResult{Slug: "acme", EmployeeCount: &n, DataSource: "structured"}}
	h := newRouter(fake, []string{"*"})

	rr := serve(t, h, http.MethodGet, "/v1/companies/acme/metrics", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.EqualValues(t, 812, body["employeeCount"])
	assert.Equal(t, "acme", fake.reference)
	assert.Zero(t, fake.opts)
}

func TestRouter_EscapedURLReference(t *testing.T) {
	fake := &fakeResolver{result: &model.ResolutionResult{Slug: "acme"}}
	h := newRouter(fake, []string{"*"})

	ref := "https://www.linkedin.com/company/acme/"
	rr := serve(t, h, http.MethodGet, "/v1/companies/"+url.PathEscape(ref)+"/metrics?mode=semi-structured-only", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, ref, fake.reference)
	assert.Equal(t, 1, fake.opts)
}

func TestRouter_QueryReference(t *testing.T) {
	fake := &fakeResolver{result: &model.ResolutionResult{Slug: "acme"}}
	h := newRouter(fake, []string{"*"})

	rr := serve(t, h, http.MethodGet, "/v1/metrics?reference="+url.QueryEscape("linkedin.com/company/acme"), nil)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "linkedin.com/company/acme", fake.reference)

	rr = serve(t, h, http.MethodGet, "/v1/metrics", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target string
		want   int
	}{
		{"invalid reference", &model.InvalidReferenceError{Reference: "x", Reason: "host"}, "/v1/companies/x/metrics", http.StatusBadRequest},
		{"not resolved", &model.OrganizationNotResolvedError{Slug: "acme"}, "/v1/companies/acme/metrics", http.StatusNotFound},
		{"unexpected", errors.New("boom"), "/v1/companies/acme/metrics", http.StatusInternalServerError},
		{"bad mode", nil, "/v1/companies/acme/metrics?mode=fastest", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRouter(&fakeResolver{err: tt.err, result: &model.ResolutionResult{}}, []string{"*"})
			rr := serve(t, h, http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.want, rr.Code)
			assert.NotEmpty(t, decodeBody(t, rr)["error"])
		})
	}
}

func TestRouter_Breakers(t *testing.T) {
	h := newRouter(&fakeResolver{}, []string{"*"})

	rr := serve(t, h, http.MethodGet, "/v1/breakers", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "open", decodeBody(t, rr)["structured"])
}

func TestRouter_CORS(t *testing.T) {
	h := newRouter(&fakeResolver{}, []string{"https://app.example.com"})

	allowed := serve(t, h, http.MethodGet, "/health", http.Header{"Origin": {"https://app.example.com"}})
	assert.Equal(t, "https://app.example.com", allowed.Header().Get("Access-Control-Allow-Origin"))

	denied := serve(t, h, http.MethodGet, "/health", http.Header{"Origin": {"https://evil.example.com"}})
	assert.Empty(t, denied.Header().Get("Access-Control-Allow-Origin"))
}
