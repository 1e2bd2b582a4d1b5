package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/units"
	"github.com/glimps-re/autovt/pkg/alert"
	"github.com/glimps-re/autovt/pkg/auth"
	"github.com/glimps-re/autovt/pkg/browser"
	"github.com/glimps-re/autovt/pkg/captcha"
	"github.com/glimps-re/autovt/pkg/classifier"
	"github.com/glimps-re/autovt/pkg/config"
	"github.com/glimps-re/autovt/pkg/datamodel"
	"github.com/glimps-re/autovt/pkg/history"
	"github.com/glimps-re/autovt/pkg/report"
	"github.com/glimps-re/autovt/pkg/scanner"
)

var LogLevel = &slog.LevelVar{}

var logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
	Level: LogLevel,
}))

// NewPage starts the browser driving the service. It returns the page and a func
// to close it.
var NewPage = func(ctx context.Context, config browser.ChromeConfig) (browser.Page, func(), error) {
	c, err := browser.NewChrome(ctx, config)
	if err != nil {
		return nil, nil, err
	}
	return c, c.Close, nil
}

// Sleep is the clock of every wait of the scan.
var Sleep browser.Sleeper = browser.Sleep

// Handler owns everything a scan session needs, from the browser to the reports.
type Handler struct {
	Conn     *scanner.Connector
	Session  *report.Session
	Writer   *report.Writer
	History  history.Recorder
	Auth     *auth.Authenticator
	Watchdog *captcha.Watchdog

	page         browser.Page
	closeBrowser func()
	conf         *config.Config
	target       string
	out          io.Writer
}

// SetLogLevel sets the level of every package logger.
func SetLogLevel(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	for _, l := range []*slog.LevelVar{
		LogLevel,
		alert.LogLevel,
		auth.LogLevel,
		browser.LogLevel,
		captcha.LogLevel,
		datamodel.LogLevel,
		history.LogLevel,
		report.LogLevel,
		scanner.LogLevel,
	} {
		l.Set(level)
	}
	logger.Debug("log level set", slog.String("level", level.String()))
}

// NewHandler prepares the output directory and the history, then starts the
// browser on the landing page. out receives the console output of the scan.
func NewHandler(ctx context.Context, conf *config.Config, target string, out io.Writer) (h *Handler, err error) {
	SetLogLevel(conf.Debug)
	if out == nil {
		out = os.Stdout
	}
	h = &Handler{conf: conf, target: target, out: out}
	defer func() {
		if err != nil {
			if e := h.Close(); e != nil {
				logger.Warn("could not close handler", slog.String("error", e.Error()))
			}
			h = nil
		}
	}()

	maxFileSize, err := units.ParseStrictBytes(conf.MaxFileSize)
	if err != nil {
		return h, fmt.Errorf("could not parse max-file-size: %w", err)
	}
	if maxFileSize <= 0 {
		logger.Warn("max file size must be greater than 0, files are not size checked", slog.String("max-file-size", conf.MaxFileSize))
		maxFileSize = 0
	}
	format, err := report.ParseFormat(conf.Format)
	if err != nil {
		return
	}
	if conf.PDF && format != report.HTML {
		logger.Warn("pdf export needs html reports, pdf disabled", slog.String("format", string(format)))
		conf.PDF = false
	}
	verdicts, err := classifier.New(conf.Texts.VerdictPattern)
	if err != nil {
		return
	}
	width, height, err := parseWindowSize(conf.Browser.WindowSize)
	if err != nil {
		return
	}

	if h.Session, err = report.NewSession(report.SessionConfig{
		Target:           target,
		OutputDir:        conf.Output,
		Format:           format,
		EmbedScreenshots: conf.EmbedScreenshots,
	}); err != nil {
		return
	}
	if h.Writer, err = report.NewWriter(h.Session); err != nil {
		return
	}
	if h.History, err = history.NewStore(conf.History); err != nil {
		return h, fmt.Errorf("could not open history: %w", err)
	}

	elementTimeout := time.Duration(conf.Browser.ElementTimeout)
	if h.page, h.closeBrowser, err = NewPage(ctx, browser.ChromeConfig{
		Headless:      conf.Browser.Headless,
		UserDataDir:   conf.Browser.UserDataDir,
		ExecPath:      conf.Browser.ExecPath,
		WindowWidth:   width,
		WindowHeight:  height,
		ActionTimeout: elementTimeout,
	}); err != nil {
		return
	}

	alerter := alert.NewMultiAlerter(
		alert.NewBellAlerter(os.Stderr),
		&alert.BannerAlerter{Out: os.Stderr},
		&alert.LogAlerter{Logger: logger},
	)
	t := conf.Timeouts
	sel := conf.Selectors
	h.Watchdog = captcha.NewWatchdog(h.page, alerter, Sleep, captcha.Config{
		Selector:    sel.Captcha,
		RenderDelay: time.Duration(t.CaptchaRender),
		Timeout:     time.Duration(t.Captcha),
		RemindEvery: time.Duration(t.CaptchaRemind),
	})
	h.Auth = auth.NewAuthenticator(h.page, h.Watchdog, alerter, Sleep, auth.Config{
		Selectors: auth.Selectors{
			SignIn:    sel.SignIn,
			Username:  sel.Username,
			Password:  sel.Password,
			Terms:     sel.Terms,
			Submit:    sel.SignInSubmit,
			MFAPrompt: sel.MFAPrompt,
			MFACode:   sel.MFACode,
		},
		ElementTimeout: elementTimeout,
		PromptDelay:    time.Duration(t.MFAPrompt),
		MFATimeout:     time.Duration(t.MFA),
	})
	action := scanner.NewAction(scanner.Actions{
		Log:        true,
		Inform:     true,
		Verbose:    conf.Verbose,
		InformDest: out,
	}, h.Writer, h.History)
	h.Conn = scanner.NewConnector(scanner.Config{
		LandingURL: conf.Browser.LandingURL,
		Selectors: scanner.Selectors{
			UploadInput:   sel.UploadInput,
			UploadButton:  sel.UploadButton,
			ReportPanel:   sel.ReportPanel,
			ReportSummary: sel.ReportSummary,
		},
		Texts: scanner.Texts{
			ConfirmUpload: conf.Texts.ConfirmUpload,
			Unsubmitted:   conf.Texts.Unsubmitted,
			Pending:       conf.Texts.Pending,
		},
		Timeouts: scanner.Timeouts{
			Report:       time.Duration(t.Report),
			Recovery:     time.Duration(t.Recovery),
			Poll:         time.Duration(t.Poll),
			UploadSettle: time.Duration(t.UploadSettle),
			Summary:      time.Duration(t.Summary),
			Element:      elementTimeout,
		},
		OutputDir:      h.Session.OutputDir,
		MaxFileSize:    maxFileSize,
		FollowSymlinks: conf.FollowSymlinks,
	}, h.page, h.Watchdog, verdicts, action, Sleep)

	if err = h.page.Navigate(ctx, conf.Browser.LandingURL); err != nil {
		return h, fmt.Errorf("could not open %s: %w", conf.Browser.LandingURL, err)
	}
	return
}

// Run signs in when creds are set, then scans the target.
func (h *Handler) Run(ctx context.Context, creds auth.Credentials) (err error) {
	if err = h.Auth.Login(ctx, creds); err != nil {
		return
	}
	// a challenge may follow the sign in
	if _, err = h.Watchdog.AwaitClearance(ctx); err != nil {
		return
	}
	if !creds.Anonymous() {
		if err = h.page.Navigate(ctx, h.conf.Browser.LandingURL); err != nil {
			return fmt.Errorf("could not open %s: %w", h.conf.Browser.LandingURL, err)
		}
	}

	logger.Info("scan started", slog.String("target", h.Session.Target), slog.String("id", h.Session.ID))
	if err = h.Conn.ScanPath(ctx, h.target); err != nil {
		return
	}
	logger.Info("scan finished", slog.String("target", h.Session.Target), slog.Duration("duration", time.Since(h.Session.Start)))

	reports := []string{h.Session.DetectionsPath, h.Session.CleanPath}
	if h.conf.PDF {
		pdfs, pdfErr := h.Session.ExportPDFs(ctx)
		if pdfErr != nil {
			logger.Error("could not export pdf reports", slog.String("error", pdfErr.Error()))
		}
		reports = append(reports, pdfs...)
	}
	for _, r := range reports {
		if _, err = fmt.Fprintf(h.out, "report written to %s\n", r); err != nil {
			return
		}
	}
	return
}

func (h *Handler) Close() (err error) {
	if h.Conn != nil {
		h.Conn.Close()
	}
	if h.closeBrowser != nil {
		h.closeBrowser()
		h.closeBrowser = nil
	}
	if h.Writer != nil {
		err = errors.Join(err, h.Writer.Close())
	}
	if h.History != nil {
		err = errors.Join(err, h.History.Close())
		h.History = nil
	}
	return
}

func parseWindowSize(size string) (width, height int, err error) {
	if size == "" {
		return
	}
	w, hgt, ok := strings.Cut(strings.ToLower(size), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid window size %q, want WIDTHxHEIGHT", size)
	}
	if width, err = strconv.Atoi(strings.TrimSpace(w)); err != nil {
		return 0, 0, fmt.Errorf("invalid window size %q: %w", size, err)
	}
	if height, err = strconv.Atoi(strings.TrimSpace(hgt)); err != nil {
		return 0, 0, fmt.Errorf("invalid window size %q: %w", size, err)
	}
	return
}
