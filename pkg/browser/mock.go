package browser

import (
	"context"
	"time"
)

var _ Page = &MockPage{}

type MockPage struct {
	NavigateMock   func(ctx context.Context, url string) error
	ReloadMock     func(ctx context.Context) error
	StateMock      func(ctx context.Context, sel Selector) (ElementState, error)
	ClickMock      func(ctx context.Context, sel Selector) error
	SetValueMock   func(ctx context.Context, sel Selector, value string) error
	SetCheckedMock func(ctx context.Context, sel Selector, checked bool) error
	UploadFileMock func(ctx context.Context, sel Selector, path string) error
	ScreenshotMock func(ctx context.Context) ([]byte, error)
	CurrentURLMock func(ctx context.Context) (string, error)
}

func (m *MockPage) Navigate(ctx context.Context, url string) error {
	if m.NavigateMock != nil {
		return m.NavigateMock(ctx, url)
	}
	panic("Navigate not implemented")
}

func (m *MockPage) Reload(ctx context.Context) error {
	if m.ReloadMock != nil {
		return m.ReloadMock(ctx)
	}
	panic("Reload not implemented")
}

func (m *MockPage) State(ctx context.Context, sel Selector) (ElementState, error) {
	if m.StateMock != nil {
		return m.StateMock(ctx, sel)
	}
	panic("State not implemented")
}

func (m *MockPage) Click(ctx context.Context, sel Selector) error {
	if m.ClickMock != nil {
		return m.ClickMock(ctx, sel)
	}
	panic("Click not implemented")
}

func (m *MockPage) SetValue(ctx context.Context, sel Selector, value string) error {
	if m.SetValueMock != nil {
		return m.SetValueMock(ctx, sel, value)
	}
	panic("SetValue not implemented")
}

func (m *MockPage) SetChecked(ctx context.Context, sel Selector, checked bool) error {
	if m.SetCheckedMock != nil {
		return m.SetCheckedMock(ctx, sel, checked)
	}
	panic("SetChecked not implemented")
}

func (m *MockPage) UploadFile(ctx context.Context, sel Selector, path string) error {
	if m.UploadFileMock != nil {
		return m.UploadFileMock(ctx, sel, path)
	}
	panic("UploadFile not implemented")
}

func (m *MockPage) Screenshot(ctx context.Context) ([]byte, error) {
	if m.ScreenshotMock != nil {
		return m.ScreenshotMock(ctx)
	}
	panic("Screenshot not implemented")
}

func (m *MockPage) CurrentURL(ctx context.Context) (string, error) {
	if m.CurrentURLMock != nil {
		return m.CurrentURLMock(ctx)
	}
	panic("CurrentURL not implemented")
}

// FakeClock is a virtual clock: Sleep returns immediately and advances Elapsed.
type FakeClock struct {
	Elapsed time.Duration
	// OnSleep, when set, is called after each sleep with the new elapsed time.
	OnSleep func(elapsed time.Duration)
}

func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Elapsed += d
	if c.OnSleep != nil {
		c.OnSleep(c.Elapsed)
	}
	return nil
}
