// Package mocks provides test doubles for the prediction source.
package mocks

import (
	"context"

	prediction "github.com/sells-group/riskmap/pkg/prediction"
	mock "github.com/stretchr/testify/mock"
)

// MockSource is a mock type for the Source interface.
type MockSource struct {
	mock.Mock
}

// Prediction provides a mock function with given fields: ctx, key, model, year, cred
func (_m *MockSource) Prediction(ctx context.Context, key string, model string, year int, cred prediction.Credential) (*prediction.Prediction, error) {
	ret := _m.Called(ctx, key, model, year, cred)

	if len(ret) == 0 {
		panic("no return value specified for Prediction")
	}

	var r0 *prediction.Prediction
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, int, prediction.Credential) (*prediction.Prediction, error)); ok {
		return rf(ctx, key, model, year, cred)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, string, int, prediction.Credential) *prediction.Prediction); ok {
		r0 = rf(ctx, key, model, year, cred)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*prediction.Prediction)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, string, int, prediction.Credential) error); ok {
		r1 = rf(ctx, key, model, year, cred)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// FeatureImportance provides a mock function with given fields: ctx, model, cred
func (_m *MockSource) FeatureImportance(ctx context.Context, model string, cred prediction.Credential) (*prediction.Importance, error) {
	ret := _m.Called(ctx, model, cred)

	if len(ret) == 0 {
		panic("no return value specified for FeatureImportance")
	}

	var r0 *prediction.Importance
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, prediction.Credential) (*prediction.Importance, error)); ok {
		return rf(ctx, model, cred)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, prediction.Credential) *prediction.Importance); ok {
		r0 = rf(ctx, model, cred)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*prediction.Importance)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, prediction.Credential) error); ok {
		r1 = rf(ctx, model, cred)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockSource creates a new instance of MockSource.
func NewMockSource(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSource {
	mock := &MockSource{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
