package scanner

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/glimps-re/autovt/pkg/browser"
	"github.com/glimps-re/autovt/pkg/captcha"
	"github.com/glimps-re/autovt/pkg/classifier"
)

const (
	testLanding   = "https://service.test/"
	never         = time.Duration(1<<63 - 1)
	cleanSummary  = "No security vendors flagged this file as malicious"
	flaggedFormat = "%s security vendors flagged this file as malicious"
)

var (
	testSelectors = Selectors{
		UploadInput:   browser.ByCSS("#fileSelector", "#view-container > home-view", "#uploadForm"),
		UploadButton:  browser.ByCSS("div > form > button", "#view-container > home-view", "#uploadForm"),
		ReportPanel:   browser.ByCSS("#report", "#view-container > file-view"),
		ReportSummary: browser.ByCSS("div > div.card-header > div.fw-bold", "#view-container > file-view", "#report > vt-ui-file-card"),
	}
	testCaptcha = browser.ByXPath("//*[contains(@id, 'captcha')]/*")
	testTexts   = Texts{
		ConfirmUpload: "Confirm Upload",
		Unsubmitted:   "Choose file",
		Pending:       []string{"Checking hash", "Choose file"},
	}
)

// fakeService plays the upload page of the scanning service on a virtual clock.
type fakeService struct {
	clock *browser.FakeClock

	// summaries by file name, files without summary are never analyzed
	summaries map[string]string
	// reportAfter is the analysis duration, counted from the upload confirmation
	reportAfter time.Duration
	// captcha is shown on [captchaFrom, captchaUntil) of the clock
	captchaFrom  time.Duration
	captchaUntil time.Duration
	// captchaDropsUpload makes the challenge discard the attached file
	captchaDropsUpload bool
	// stuckUntilReload keeps the button on "Checking hash" until a reload
	stuckUntilReload bool

	attached    string
	confirmed   bool
	confirmedAt time.Duration
	reloaded    bool

	uploads     []string
	navigations []string
	reloads     int
	panelChecks int
}

func (s *fakeService) captchaShown() bool {
	return s.clock.Elapsed >= s.captchaFrom && s.clock.Elapsed < s.captchaUntil
}

func (s *fakeService) reportShown() bool {
	if !s.confirmed {
		return false
	}
	if s.stuckUntilReload && !s.reloaded {
		return false
	}
	if _, ok := s.summaries[filepath.Base(s.attached)]; !ok {
		return false
	}
	return s.clock.Elapsed-s.confirmedAt >= s.reportAfter
}

func (s *fakeService) state(sel browser.Selector) browser.ElementState {
	shown := browser.ElementState{Exists: true, Visible: true, Enabled: true}
	switch sel.String() {
	case testCaptcha.String():
		if !s.captchaShown() {
			return browser.ElementState{}
		}
		if s.captchaDropsUpload {
			s.attached, s.confirmed = "", false
		}
		return shown
	case testSelectors.ReportPanel.String():
		s.panelChecks++
		if s.reportShown() {
			return shown
		}
		return browser.ElementState{}
	case testSelectors.ReportSummary.String():
		if !s.reportShown() {
			return browser.ElementState{}
		}
		shown.Text = "\n  " + s.summaries[filepath.Base(s.attached)] + "\n"
		return shown
	case testSelectors.UploadInput.String():
		if s.reportShown() {
			return browser.ElementState{}
		}
		return shown
	case testSelectors.UploadButton.String():
		if s.reportShown() {
			return browser.ElementState{}
		}
		switch {
		case s.attached == "":
			shown.Text = "Choose file"
		case !s.confirmed:
			shown.Text = "Confirm Upload"
		default:
			shown.Text = "Checking hash"
		}
		return shown
	}
	return browser.ElementState{}
}

func (s *fakeService) page() *browser.MockPage {
	return &browser.MockPage{
		StateMock: func(ctx context.Context, sel browser.Selector) (browser.ElementState, error) {
			return s.state(sel), nil
		},
		UploadFileMock: func(ctx context.Context, sel browser.Selector, path string) error {
			s.attached, s.confirmed = path, false
			s.uploads = append(s.uploads, path)
			return nil
		},
		ClickMock: func(ctx context.Context, sel browser.Selector) error {
			if sel.String() == testSelectors.UploadButton.String() && s.attached != "" {
				s.confirmed, s.confirmedAt = true, s.clock.Elapsed
			}
			return nil
		},
		ReloadMock: func(ctx context.Context) error {
			s.reloads++
			s.reloaded = true
			s.attached, s.confirmed = "", false
			return nil
		},
		NavigateMock: func(ctx context.Context, url string) error {
			s.navigations = append(s.navigations, url)
			s.attached, s.confirmed, s.reloaded = "", false, false
			return nil
		},
		CurrentURLMock: func(ctx context.Context) (string, error) {
			return "https://service.test/gui/file/" + strings.ToLower(filepath.Base(s.attached)), nil
		},
		ScreenshotMock: func(ctx context.Context) ([]byte, error) {
			return []byte("png " + filepath.Base(s.attached)), nil
		},
	}
}

func (s *fakeService) connector(action Action, outputDir string) *Connector {
	page := s.page()
	watchdog := captcha.NewWatchdog(page, nil, s.clock.Sleep, captcha.Config{
		Selector:    testCaptcha,
		RenderDelay: captcha.DefaultRenderDelay,
		Timeout:     captcha.DefaultTimeout,
	})
	return NewConnector(Config{
		LandingURL: testLanding,
		Selectors:  testSelectors,
		Texts:      testTexts,
		Timeouts: Timeouts{
			UploadSettle: DefaultUploadSettle,
		},
		OutputDir: outputDir,
	}, page, watchdog, classifier.MustNew(classifier.DefaultPattern), action, s.clock.Sleep)
}

func newFakeService() *fakeService {
	return &fakeService{
		clock:        &browser.FakeClock{},
		summaries:    map[string]string{},
		reportAfter:  5 * time.Second,
		captchaFrom:  never,
		captchaUntil: never,
	}
}
