package strategy

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/orgmetrics/internal/model"
	"github.com/sells-group/orgmetrics/internal/policy"
	"github.com/sells-group/orgmetrics/internal/resilience"
	"github.com/sells-group/orgmetrics/pkg/linkedin"
	"github.com/sells-group/orgmetrics/pkg/linkedin/mocks"
)

func newSemi(t *testing.T) (*SemiStructured, *mocks.MockClient, *policy.Policy) {
	t.Helper()
	zap.ReplaceGlobals(zap.NewNop())
	client := mocks.NewMockClient(t)
	pol := policy.Default()
	return NewSemiStructured(client, pol, resilience.Pacer{}), client, pol
}

func pathPrefix(prefix string) any {
	return mock.MatchedBy(func(p string) bool { return strings.HasPrefix(p, prefix) })
}

func TestSemiStructured_ThrottleShortCircuits(t *testing.T) {
	s, client, _ := newSemi(t)
	client.On("GetJSON", mock.Anything, pathPrefix("search/hits"), mock.Anything).
		Return(nil, &model.UpstreamThrottledError{URL: "/voyager/api/search/hits", StatusCode: 429}).Once()

	var log model.AttemptLog
	res, err := s.Collect(context.Background(), testTarget(), model.MetricEmployeeCount, &log)
	require.Error(t, err)
	assert.Equal(t, model.DataSourceRateLimited, model.TerminalDataSource(err))
	assert.Empty(t, res.Candidates)
	client.AssertNumberOfCalls(t, "GetJSON", 1)
	assert.Equal(t, 1, log.Len())
}

func TestSemiStructured_LoginWallSkipsRemainingEndpoints(t *testing.T) {
	for _, kind := range model.AllMetrics() {
		t.Run(string(kind), func(t *testing.T) {
			s, client, _ := newSemi(t)
			client.On("GetJSON", mock.Anything, mock.Anything, mock.Anything).
				Return(nil, &model.AuthRequiredError{URL: "https://www.linkedin.com/login"}).Once()

			var log model.AttemptLog
			res, err := s.Collect(context.Background(), testTarget(), kind, &log)
			require.Error(t, err)
			assert.True(t, model.IsAuthRequired(err))
			assert.Empty(t, res.Candidates)
			client.AssertNumberOfCalls(t, "GetJSON", 1)
			client.AssertNotCalled(t, "GetPage", mock.Anything, mock.Anything)
			assert.Equal(t, 1, log.Len())
		})
	}
}

func TestSemiStructured_FirstPositiveWins(t *testing.T) {
	s, client, _ := newSemi(t)
	// A zero total is below the employee threshold and counts as no data.
	client.On("GetJSON", mock.Anything, pathPrefix("search/hits"), mock.Anything).
		Return([]byte(`{"data":{"paging":{"total":0}}}`), nil).Once()
	client.On("GetJSON", mock.Anything, pathPrefix("search/blended"), mock.Anything).
		Return([]byte(`{"data":{"metadata":{"totalResultCount":4200},"paging":{"total":4100}}}`), nil).Once()

	var log model.AttemptLog
	res, err := s.Collect(context.Background(), testTarget(), model.MetricEmployeeCount, &log)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)

	c := res.Candidates[0]
	assert.Equal(t, int64(4200), *c.Value)
	assert.Equal(t, model.ConfidenceSearchTotal, c.Confidence)
	assert.Equal(t, EndpointBlendedPeople, c.Detail)
	assert.Equal(t, NameSemiStructured, c.Source)

	attempts := log.Snapshot()
	require.Len(t, attempts, 2)
	assert.False(t, attempts[0].Succeeded)
	assert.Equal(t, EndpointPeopleTotal, attempts[0].Step)
	assert.True(t, attempts[1].Succeeded)
}

func TestSemiStructured_OrganizationRecordRange(t *testing.T) {
	s, client, pol := newSemi(t)
	pol.DisabledEndpoints = []string{EndpointPeopleTotal, EndpointBlendedPeople, EndpointGuidedCluster}
	client.On("GetJSON", mock.Anything, "organization/companies", mock.MatchedBy(func(p url.Values) bool {
		return p.Get("universalName") == "acme" && p.Get("q") == "universalName"
	})).Return([]byte(`{"included":[{"universalName":"acme","name":"Acme","staffCountRange":{"start":1001,"end":5000}}]}`), nil).Once()

	res, err := s.Collect(context.Background(), testTarget(), model.MetricEmployeeCount, nil)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Nil(t, res.Candidates[0].Value)
	assert.Equal(t, "1001-5000", res.Candidates[0].Range)
	require.NotNil(t, res.Facts)
	assert.Equal(t, "Acme", res.Facts.Name)
}

func TestSemiStructured_EveryEndpointDisabled(t *testing.T) {
	s, _, pol := newSemi(t)
	pol.DisabledEndpoints = []string{EndpointPeopleTotal, EndpointBlendedPeople, EndpointGuidedCluster, EndpointOrganizationRecord}

	_, err := s.Collect(context.Background(), testTarget(), model.MetricEmployeeCount, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "every endpoint disabled")
}

func TestSemiStructured_JobsFallBackToListingPage(t *testing.T) {
	s, client, _ := newSemi(t)
	client.On("GetJSON", mock.Anything, pathPrefix("jobs/search"), mock.Anything).
		Return(nil, errors.New("linkedin: returned 500")).Twice()
	client.On("GetPage", mock.Anything, linkedin.JobsSearchURL("1035")).
		Return(&linkedin.Page{URL: linkedin.JobsSearchURL("1035"), StatusCode: 200, Body: `<html><body><h1>Acme has <b>12</b> job openings</h1></body></html>`}, nil).Once()

	var log model.AttemptLog
	res, err := s.Collect(context.Background(), testTarget(), model.MetricJobCount, &log)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, int64(12), *res.Candidates[0].Value)
	assert.Equal(t, "job_openings", res.Candidates[0].Detail)
	assert.Len(t, log.Failed(NameSemiStructured), 2)
}

func TestSemiStructured_JobsVariantTotal(t *testing.T) {
	s, client, _ := newSemi(t)
	client.On("GetJSON", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "COMPANY_PAGE_JOBS_CLUSTER_EXPANSION") && strings.Contains(p, "List(1035)")
	}), mock.Anything).Return([]byte(`{"data":{"paging":{"total":7},"metadata":{"jobCount":7}}}`), nil).Once()

	res, err := s.Collect(context.Background(), testTarget(), model.MetricJobCount, nil)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, int64(7), *res.Candidates[0].Value)
	assert.Equal(t, EndpointJobsCluster, res.Candidates[0].Detail)
}

func TestSemiStructured_BlockedListingPage(t *testing.T) {
	s, client, pol := newSemi(t)
	pol.DisabledEndpoints = []string{EndpointJobsCluster, EndpointJobsSearch}
	client.On("GetPage", mock.Anything, mock.Anything).
		Return(nil, &model.UpstreamBlockedError{URL: "/jobs/search/", StatusCode: 999}).Once()

	_, err := s.Collect(context.Background(), testTarget(), model.MetricJobCount, nil)
	assert.Equal(t, model.DataSourceBlocked, model.TerminalDataSource(err))
}
