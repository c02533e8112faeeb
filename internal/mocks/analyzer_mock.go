package mocks

import (
	"context"

	"chapter-server/internal/api"
	"chapter-server/internal/model"

	"github.com/stretchr/testify/mock"
)

// MockAnalyzer is a mock type for the Analyzer type
type MockAnalyzer struct {
	mock.Mock
}

// AnalyzeTranscript provides a mock function with given fields: ctx, transcript, category, videoTitle
func (_m *MockAnalyzer) AnalyzeTranscript(ctx context.Context, transcript, category, videoTitle string) (*model.AnalysisResult, error) {
	ret := _m.Called(ctx, transcript, category, videoTitle)

	var r0 *model.AnalysisResult
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.AnalysisResult)
	}

	return r0, ret.Error(1)
}

// SuggestIdeas provides a mock function with given fields: ctx, analysis, category, keyword
func (_m *MockAnalyzer) SuggestIdeas(ctx context.Context, analysis *model.AnalysisResult, category, keyword string) ([]string, error) {
	ret := _m.Called(ctx, analysis, category, keyword)

	var r0 []string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]string)
	}

	return r0, ret.Error(1)
}

// NewMockAnalyzer creates a new instance of MockAnalyzer. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockAnalyzer(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockAnalyzer {
	m := &MockAnalyzer{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ api.Analyzer = (*MockAnalyzer)(nil)
