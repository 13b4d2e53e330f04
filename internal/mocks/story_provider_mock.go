package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"portfolio-server/internal/model"
	"portfolio-server/internal/service"
)

// MockStoryProvider is a mock type for the StoryProvider type
type MockStoryProvider struct {
	mock.Mock
}

// Generate provides a mock function with given fields: ctx, encodedImage
func (_m *MockStoryProvider) Generate(ctx context.Context, encodedImage string) (model.Story, error) {
	ret := _m.Called(ctx, encodedImage)

	var r0 model.Story
	if rf, ok := ret.Get(0).(func(context.Context, string) model.Story); ok {
		r0 = rf(ctx, encodedImage)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(model.Story)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, encodedImage)
	} else {
		err := ret.Error(1)
		if err != nil {
			r1 = err
		}
	}

	return r0, r1
}

// RateLimited provides a mock function with no fields
func (_m *MockStoryProvider) RateLimited() bool {
	ret := _m.Called()

	var r0 bool
	if rf, ok := ret.Get(0).(func() bool); ok {
		r0 = rf()
	} else {
		r0 = ret.Get(0).(bool)
	}

	return r0
}

// NewMockStoryProvider creates a new instance of MockStoryProvider. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockStoryProvider(t interface {
	mock.TestingT
	Helper()
}) *MockStoryProvider {
	m := &MockStoryProvider{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ service.StoryProvider = (*MockStoryProvider)(nil)
