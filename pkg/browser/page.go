package browser

import (
	"context"
	"log/slog"
	"os"
)

var LogLevel = &slog.LevelVar{}

var logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
	Level: LogLevel,
}))

// ElementState is a snapshot of an element, taken in a single round trip.
type ElementState struct {
	Exists  bool   `json:"exists"`
	Visible bool   `json:"visible"`
	Enabled bool   `json:"enabled"`
	Checked bool   `json:"checked"`
	Text    string `json:"text"`
	Value   string `json:"value"`
}

// Page is the browser automation surface used to drive the scanning service.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	// State never waits: an absent element is reported with Exists set to false.
	State(ctx context.Context, sel Selector) (ElementState, error)
	Click(ctx context.Context, sel Selector) error
	SetValue(ctx context.Context, sel Selector, value string) error
	SetChecked(ctx context.Context, sel Selector, checked bool) error
	UploadFile(ctx context.Context, sel Selector, path string) error
	Screenshot(ctx context.Context) ([]byte, error)
	CurrentURL(ctx context.Context) (string, error)
}
