package history

import "context"

type MockRecorder struct {
	AddMock   func(ctx context.Context, entry *Entry) error
	ListMock  func(ctx context.Context, limit int) ([]Entry, error)
	LastMock  func(ctx context.Context, sha256 string) (*Entry, error)
	CloseMock func() error
}

func (m *MockRecorder) Add(ctx context.Context, entry *Entry) error {
	if m.AddMock != nil {
		return m.AddMock(ctx, entry)
	}
	panic("AddMock not implemented")
}

func (m *MockRecorder) List(ctx context.Context, limit int) ([]Entry, error) {
	if m.ListMock != nil {
		return m.ListMock(ctx, limit)
	}
	panic("ListMock not implemented")
}

func (m *MockRecorder) Last(ctx context.Context, sha256 string) (*Entry, error) {
	if m.LastMock != nil {
		return m.LastMock(ctx, sha256)
	}
	panic("LastMock not implemented")
}

func (m *MockRecorder) Close() error {
	if m.CloseMock != nil {
		return m.CloseMock()
	}
	panic("CloseMock not implemented")
}
