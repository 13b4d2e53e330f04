package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"portfolio-server/internal/service"
)

// MockAIClient is a mock type for the AIClient type
type MockAIClient struct {
	mock.Mock
}

// GenerateStoryText provides a mock function with given fields: ctx, systemPrompt, imageDataURL
func (_m *MockAIClient) GenerateStoryText(ctx context.Context, systemPrompt string, imageDataURL string) (string, error) {
	ret := _m.Called(ctx, systemPrompt, imageDataURL)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, string, string) string); ok {
		r0 = rf(ctx, systemPrompt, imageDataURL)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(string)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string, string) error); ok {
		r1 = rf(ctx, systemPrompt, imageDataURL)
	} else {
		err := ret.Error(1)
		if err != nil {
			r1 = err
		}
	}

	return r0, r1
}

// GenerateImage provides a mock function with given fields: ctx, prompt, size
func (_m *MockAIClient) GenerateImage(ctx context.Context, prompt string, size string) (string, error) {
	ret := _m.Called(ctx, prompt, size)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, string, string) string); ok {
		r0 = rf(ctx, prompt, size)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(string)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string, string) error); ok {
		r1 = rf(ctx, prompt, size)
	} else {
		err := ret.Error(1)
		if err != nil {
			r1 = err
		}
	}

	return r0, r1
}

// EditImage provides a mock function with given fields: ctx, prompt, referenceDataURL, size
func (_m *MockAIClient) EditImage(ctx context.Context, prompt string, referenceDataURL string, size string) (string, error) {
	ret := _m.Called(ctx, prompt, referenceDataURL, size)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, string, string, string) string); ok {
		r0 = rf(ctx, prompt, referenceDataURL, size)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(string)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string, string, string) error); ok {
		r1 = rf(ctx, prompt, referenceDataURL, size)
	} else {
		err := ret.Error(1)
		if err != nil {
			r1 = err
		}
	}

	return r0, r1
}

// NewMockAIClient creates a new instance of MockAIClient. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockAIClient(t interface {
	mock.TestingT
	Helper()
}) *MockAIClient {
	m := &MockAIClient{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ service.AIClient = (*MockAIClient)(nil)
