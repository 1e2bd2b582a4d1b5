package handler

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glimps-re/autovt/pkg/alert"
	"github.com/glimps-re/autovt/pkg/auth"
	"github.com/glimps-re/autovt/pkg/browser"
	"github.com/glimps-re/autovt/pkg/config"
)

// instantService analyzes every confirmed upload at once.
func instantService(conf *config.Config, summary string) (*browser.MockPage, *[]string) {
	sel := conf.Selectors
	var attached string
	var confirmed bool
	var navigations []string
	page := &browser.MockPage{
		NavigateMock: func(ctx context.Context, url string) error {
			navigations = append(navigations, url)
			attached, confirmed = "", false
			return nil
		},
		StateMock: func(ctx context.Context, s browser.Selector) (browser.ElementState, error) {
			shown := browser.ElementState{Exists: true, Visible: true, Enabled: true}
			switch s.String() {
			case sel.UploadInput.String():
				return shown, nil
			case sel.UploadButton.String():
				if attached != "" && !confirmed {
					shown.Text = "Confirm Upload"
				}
				return shown, nil
			case sel.ReportPanel.String():
				return browser.ElementState{Exists: confirmed}, nil
			case sel.ReportSummary.String():
				shown.Text = summary
				return shown, nil
			}
			return browser.ElementState{}, nil
		},
		UploadFileMock: func(ctx context.Context, s browser.Selector, path string) error {
			attached = path
			return nil
		},
		ClickMock: func(ctx context.Context, s browser.Selector) error {
			confirmed = attached != ""
			return nil
		},
		CurrentURLMock: func(ctx context.Context) (string, error) {
			return "https://service.test/gui/file/" + filepath.Base(attached), nil
		},
		ScreenshotMock: func(ctx context.Context) ([]byte, error) {
			return []byte("png"), nil
		},
	}
	return page, &navigations
}

func useFakes(t *testing.T, page browser.Page) {
	t.Helper()
	clock := &browser.FakeClock{}
	prevPage, prevSleep := NewPage, Sleep
	NewPage = func(ctx context.Context, config browser.ChromeConfig) (browser.Page, func(), error) {
		return page, func() {}, nil
	}
	Sleep = clock.Sleep
	t.Cleanup(func() { NewPage, Sleep = prevPage, prevSleep })
}

func TestHandler_Run(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "samples")
	if err := os.MkdirAll(target, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(target, "a.txt"), []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}
	// scanned paths are resolved
	target, err := filepath.EvalSymlinks(target)
	if err != nil {
		t.Fatal(err)
	}
	conf := config.Default()
	conf.Output = filepath.Join(root, "out")
	conf.History = filepath.Join(root, "history.db")
	conf.Verbose = true
	conf.PDF = true

	page, navigations := instantService(conf, "No security vendors flagged this file as malicious")
	useFakes(t, page)
	out := &bytes.Buffer{}
	h, err := NewHandler(context.Background(), conf, target, out)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	if conf.PDF {
		t.Errorf("NewHandler() kept pdf export for markdown reports")
	}
	if err := h.Run(context.Background(), auth.Credentials{}); err != nil {
		t.Fatalf("Handler.Run() error = %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "file "+filepath.Join(target, "a.txt")+" no security vendor flagged it") {
		t.Errorf("Handler.Run() output misses clean file:\n%s", got)
	}
	if !strings.Contains(got, "report written to "+h.Session.CleanPath) {
		t.Errorf("Handler.Run() output misses report path:\n%s", got)
	}
	entries, err := h.History.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("History.List() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Filename != "a.txt" || entries[0].SessionID != h.Session.ID {
		t.Errorf("unexpected history %+v", entries)
	}
	// landing page at start, then after the file
	if len(*navigations) != 2 {
		t.Errorf("navigations = %v", *navigations)
	}
	if err := h.Close(); err != nil {
		t.Errorf("Handler.Close() error = %v", err)
	}
}

func TestNewHandler_invalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(conf *config.Config)
	}{
		{name: "max file size", modify: func(conf *config.Config) { conf.MaxFileSize = "huge" }},
		{name: "format", modify: func(conf *config.Config) { conf.Format = "docx" }},
		{name: "verdict pattern", modify: func(conf *config.Config) { conf.Texts.VerdictPattern = "no group" }},
		{name: "window size", modify: func(conf *config.Config) { conf.Browser.WindowSize = "wide" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useFakes(t, &browser.MockPage{})
			conf := config.Default()
			conf.Output = filepath.Join(t.TempDir(), "out")
			conf.History = ""
			tt.modify(conf)
			h, err := NewHandler(context.Background(), conf, t.TempDir(), nil)
			if err == nil {
				t.Errorf("NewHandler() error wanted")
			}
			if h != nil {
				t.Errorf("NewHandler() = %v, want nil on error", h)
			}
		})
	}
}

func Test_parseWindowSize(t *testing.T) {
	tests := []struct {
		in         string
		wantWidth  int
		wantHeight int
		wantErr    bool
	}{
		{in: "1280x960", wantWidth: 1280, wantHeight: 960},
		{in: "800 X 600", wantWidth: 800, wantHeight: 600},
		{in: ""},
		{in: "1280", wantErr: true},
		{in: "ax600", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			w, h, err := parseWindowSize(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseWindowSize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if w != tt.wantWidth || h != tt.wantHeight {
				t.Errorf("parseWindowSize() = %v, %v, want %v, %v", w, h, tt.wantWidth, tt.wantHeight)
			}
		})
	}
}

func TestSetLogLevel(t *testing.T) {
	t.Cleanup(func() { SetLogLevel(false) })
	SetLogLevel(true)
	for name, l := range map[string]*slog.LevelVar{"handler": LogLevel, "alert": alert.LogLevel} {
		if l.Level() != slog.LevelDebug {
			t.Errorf("SetLogLevel(true) %s level = %v", name, l.Level())
		}
	}
	SetLogLevel(false)
	if alert.LogLevel.Level() != slog.LevelInfo {
		t.Errorf("SetLogLevel(false) alert level = %v", alert.LogLevel.Level())
	}
}
