// Package mocks provides test doubles for the linkedin client.
package mocks

import (
	"context"
	url "net/url"

	linkedin "github.com/sells-group/orgmetrics/pkg/linkedin"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// GraphQL provides a mock function with given fields: ctx, queryID, variables
func (_m *MockClient) GraphQL(ctx context.Context, queryID string, variables linkedin.Vars) (*linkedin.GraphQLResponse, error) {
	ret := _m.Called(ctx, queryID, variables)

	if len(ret) == 0 {
		panic("no return value specified for GraphQL")
	}

	var r0 *linkedin.GraphQLResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, linkedin.Vars) (*linkedin.GraphQLResponse, error)); ok {
		return rf(ctx, queryID, variables)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, linkedin.Vars) *linkedin.GraphQLResponse); ok {
		r0 = rf(ctx, queryID, variables)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*linkedin.GraphQLResponse)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, linkedin.Vars) error); ok {
		r1 = rf(ctx, queryID, variables)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetJSON provides a mock function with given fields: ctx, path, params
func (_m *MockClient) GetJSON(ctx context.Context, path string, params url.Values) ([]byte, error) {
	ret := _m.Called(ctx, path, params)

	if len(ret) == 0 {
		panic("no return value specified for GetJSON")
	}

	var r0 []byte
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, url.Values) ([]byte, error)); ok {
		return rf(ctx, path, params)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, url.Values) []byte); ok {
		r0 = rf(ctx, path, params)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]byte)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, url.Values) error); ok {
		r1 = rf(ctx, path, params)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetPage provides a mock function with given fields: ctx, pageURL
func (_m *MockClient) GetPage(ctx context.Context, pageURL string) (*linkedin.Page, error) {
	ret := _m.Called(ctx, pageURL)

	if len(ret) == 0 {
		panic("no return value specified for GetPage")
	}

	var r0 *linkedin.Page
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*linkedin.Page, error)); ok {
		return rf(ctx, pageURL)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *linkedin.Page); ok {
		r0 = rf(ctx, pageURL)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*linkedin.Page)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, pageURL)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
