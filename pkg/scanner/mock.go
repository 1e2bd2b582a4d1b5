package scanner

import (
	"context"

	"github.com/glimps-re/autovt/pkg/datamodel"
)

var _ Action = &MockAction{}

type MockAction struct {
	HandleMock func(ctx context.Context, path string, outcome datamodel.Outcome, report *datamodel.Report) error
}

func (m *MockAction) Handle(ctx context.Context, path string, outcome datamodel.Outcome, report *datamodel.Report) error {
	if m.HandleMock != nil {
		return m.HandleMock(ctx, path, outcome, report)
	}
	panic("HandleMock not implemented")
}

var _ Sink = &MockSink{}

type MockSink struct {
	AppendMock func(report *datamodel.Report) error
}

func (m *MockSink) Append(report *datamodel.Report) error {
	if m.AppendMock != nil {
		return m.AppendMock(report)
	}
	panic("AppendMock not implemented")
}
