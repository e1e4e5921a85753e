package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/orgmetrics/internal/credentials"
	"github.com/sells-group/orgmetrics/internal/model"
	"github.com/sells-group/orgmetrics/internal/policy"
	"github.com/sells-group/orgmetrics/internal/resilience"
	"github.com/sells-group/orgmetrics/pkg/linkedin"
	"github.com/sells-group/orgmetrics/pkg/linkedin/mocks"
)

const orgResponse = `{
  "data": {"organizationDashCompaniesByUniversalName": {"*elements": ["urn:li:fsd_company:1035"]}},
  "included": [
    {"entityUrn": "urn:li:fsd_industry:4", "name": "Ignored"},
    {
      "entityUrn": "urn:li:fsd_company:1035",
      "universalName": "acme",
      "name": "Acme Corp",
      "staffCount": 500,
      "staffCountRange": {"start": 201, "end": 500},
      "foundedOn": {"year": 1999},
      "industry": {"localizedName": "Software Development"},
      "headquarter": {"city": "Seattle", "geographicArea": "WA", "country": "US"}
    }
  ]
}`

func testTarget() Target {
	return Target{
		Reference: model.CompanyReference{Raw: "acme", URL: linkedin.CompanyURL("acme"), Slug: "acme"},
		Identity:  model.OrganizationIdentity{ID: "1035", Method: model.ResolveMethodStructuredLookup},
	}
}

func newStructured(t *testing.T) (*Structured, *mocks.MockClient, *policy.Policy) {
	t.Helper()
	zap.ReplaceGlobals(zap.NewNop())
	client := mocks.NewMockClient(t)
	pol := policy.Default()
	return NewStructured(client, credentials.NewStatic("li-at"), pol, resilience.Pacer{}), client, pol
}

func TestStructured_OrganizationRecord(t *testing.T) {
	s, client, pol := newStructured(t)
	client.On("GraphQL", mock.Anything, pol.Queries.Organization, linkedin.Vars{"universalName": "acme"}).
		Return(&linkedin.GraphQLResponse{Raw: []byte(orgResponse)}, nil).Once()

	var log model.AttemptLog
	res, err := s.Collect(context.Background(), testTarget(), model.MetricEmployeeCount, &log)
	require.NoError(t, err)

	require.Len(t, res.Candidates, 2)
	best, ok := res.Best()
	require.True(t, ok)
	require.NotNil(t, best.Value)
	assert.Equal(t, int64(500), *best.Value)
	assert.Equal(t, model.ConfidenceExact, best.Confidence)
	assert.Equal(t, "201-500", res.Candidates[1].Range)

	require.NotNil(t, res.Facts)
	assert.Equal(t, model.OrganizationFacts{
		Name:            "Acme Corp",
		Industry:        "Software Development",
		FoundedYear:     1999,
		StaffCountRange: "201-500",
		Headquarters:    "Seattle, WA, US",
	}, *res.Facts)

	// Insights is skipped once the record carries an exact count.
	client.AssertNumberOfCalls(t, "GraphQL", 1)
	assert.Equal(t, 1, log.Len())
}

func TestStructured_FallsBackToInsights(t *testing.T) {
	s, client, pol := newStructured(t)
	client.On("GraphQL", mock.Anything, pol.Queries.Organization, mock.Anything).
		Return(nil, &model.ParseFailure{What: "graphql data"}).Once()
	client.On("GraphQL", mock.Anything, pol.Queries.Insights, linkedin.Vars{"company": "urn:li:fsd_company:1035"}).
		Return(&linkedin.GraphQLResponse{Raw: []byte(`{"data":{"card":{"totalEmployees":1234,"total":99999,"growth":{"headcount":1200}}}}`)}, nil).Once()

	var log model.AttemptLog
	res, err := s.Collect(context.Background(), testTarget(), model.MetricEmployeeCount, &log)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, int64(1234), *res.Candidates[0].Value)
	assert.Equal(t, "insights", res.Candidates[0].Detail)
	assert.Len(t, log.Failed(NameStructured), 1)
}

func TestStructured_ThrottleStopsBeforeInsights(t *testing.T) {
	s, client, pol := newStructured(t)
	client.On("GraphQL", mock.Anything, pol.Queries.Organization, mock.Anything).
		Return(nil, &model.UpstreamThrottledError{URL: "/voyager/api/graphql", StatusCode: 429}).Once()

	_, err := s.Collect(context.Background(), testTarget(), model.MetricEmployeeCount, nil)
	require.Error(t, err)
	assert.Equal(t, model.DataSourceRateLimited, model.TerminalDataSource(err))
	client.AssertNumberOfCalls(t, "GraphQL", 1)
}

func TestStructured_LoginWallSkipsInsights(t *testing.T) {
	s, client, pol := newStructured(t)
	client.On("GraphQL", mock.Anything, pol.Queries.Organization, mock.Anything).
		Return(nil, &model.AuthRequiredError{URL: "https://www.linkedin.com/authwall"}).Once()

	var log model.AttemptLog
	_, err := s.Collect(context.Background(), testTarget(), model.MetricEmployeeCount, &log)
	require.Error(t, err)
	assert.True(t, model.IsAuthRequired(err))
	assert.Empty(t, model.TerminalDataSource(err))
	client.AssertNumberOfCalls(t, "GraphQL", 1)
	assert.Equal(t, 1, log.Len())
}

func TestStructured_AllQueriesFail(t *testing.T) {
	s, client, _ := newStructured(t)
	client.On("GraphQL", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("boom")).Twice()

	var log model.AttemptLog
	_, err := s.Collect(context.Background(), testTarget(), model.MetricEmployeeCount, &log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Len(t, log.Failed(NameStructured), 2)
}

func TestStructured_JobCount(t *testing.T) {
	s, client, pol := newStructured(t)
	client.On("GraphQL", mock.Anything, pol.Queries.JobCount, mock.MatchedBy(func(v linkedin.Vars) bool {
		return v.Encode() == "(count:0,query:(origin:COMPANY_PAGE_JOBS_CLUSTER_EXPANSION,selectedFilters:(company:List(1035))))"
	})).Return(&linkedin.GraphQLResponse{Raw: []byte(`{"data":{"jobsDashJobCardsByJobSearch":{"paging":{"count":0,"start":0,"total":37}}}}`)}, nil).Once()

	res, err := s.Collect(context.Background(), testTarget(), model.MetricJobCount, nil)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, int64(37), *res.Candidates[0].Value)
	assert.Equal(t, model.ConfidenceExact, res.Candidates[0].Confidence)
}

func TestStructured_Available(t *testing.T) {
	zap.ReplaceGlobals(zap.NewNop())
	client := mocks.NewMockClient(t)

	assert.True(t, NewStructured(client, credentials.NewStatic("li-at"), nil, resilience.Pacer{}).Available(context.Background()))
	assert.False(t, NewStructured(client, credentials.NewStatic(""), nil, resilience.Pacer{}).Available(context.Background()))
	assert.False(t, NewStructured(client, nil, nil, resilience.Pacer{}).Available(context.Background()))
}

func TestStructured_MissingQueryID(t *testing.T) {
	s, _, pol := newStructured(t)
	pol.Queries.Insights = ""

	_, err := s.Execute(context.Background(), pol.Queries.Insights, linkedin.Vars{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query id not configured")
}

func TestParseOrganization_OpenEndedRangeAndFallback(t *testing.T) {
	t.Parallel()

	v := map[string]any{
		"included": []any{
			map[string]any{"name": "Other", "staffCountRange": map[string]any{"start": float64(10001)}},
		},
	}
	rec, ok := parseOrganization(v, "acme")
	require.True(t, ok)
	assert.Nil(t, rec.StaffCount)
	assert.Equal(t, "10001+", rec.Range)
	assert.Equal(t, "Other", rec.Facts.Name)

	_, ok = parseOrganization(map[string]any{"data": map[string]any{}}, "acme")
	assert.False(t, ok)
}
