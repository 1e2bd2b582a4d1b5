package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glimps-re/autovt/pkg/browser"
	"github.com/glimps-re/autovt/pkg/datamodel"
)

// ErrReportTimeout is returned when the service did not show a report in time.
var ErrReportTimeout = errors.New("report not found before timeout")

type Stage int

const (
	Idle Stage = iota
	Uploaded
	AwaitingReport
	Classified
	TimedOut
)

func (s Stage) String() string {
	switch s {
	case Idle:
		return "idle"
	case Uploaded:
		return "uploaded"
	case AwaitingReport:
		return "awaiting-report"
	case Classified:
		return "classified"
	case TimedOut:
		return "timed-out"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// attempt is the state of one file going through the service.
type attempt struct {
	location string
	stage    Stage
	// elapsed only counts protocol waits, time spent by the operator on a
	// challenge is not included.
	elapsed      time.Duration
	lastRecovery time.Duration
	reuploads    int
	reloads      int
}

var summaryLoaded = browser.Condition{
	Name:  "loaded",
	Match: func(s browser.ElementState) bool { return s.Exists && strings.TrimSpace(s.Text) != "" },
}

func (c *Connector) scanOne(ctx context.Context, a *attempt) (outcome datamodel.Outcome, err error) {
	sel := c.config.Selectors
	t := c.config.Timeouts
	if err = browser.WaitFor(ctx, c.page, c.sleep, sel.UploadInput, browser.Exist, t.Element); err != nil {
		return outcome, fmt.Errorf("upload form not found: %w", err)
	}
	if err = c.upload(ctx, a); err != nil {
		return
	}
	a.stage = AwaitingReport

	for {
		ready, err := browser.Has(ctx, c.page, sel.ReportPanel, browser.Exist)
		if err != nil {
			return outcome, fmt.Errorf("could not check report: %w", err)
		}
		if ready {
			break
		}
		if err = c.awaitReport(ctx, a); err != nil {
			return outcome, err
		}
		if err = c.recoverStuckPage(ctx, a); err != nil {
			return outcome, err
		}
		if a.elapsed >= t.Report {
			a.stage = TimedOut
			return outcome, fmt.Errorf("%w (%s)", ErrReportTimeout, t.Report)
		}
	}

	if err = browser.WaitFor(ctx, c.page, c.sleep, sel.ReportSummary, summaryLoaded, t.Summary); err != nil {
		return outcome, fmt.Errorf("report summary not found: %w", err)
	}
	summary, err := c.page.State(ctx, sel.ReportSummary)
	if err != nil {
		return outcome, fmt.Errorf("could not read report summary: %w", err)
	}
	if outcome, err = c.classifier.Classify(summary.Text); err != nil {
		return
	}
	a.stage = Classified
	logger.Debug("file classified", slog.String("file", a.location), slog.String("detections", outcome.Detections()), slog.Duration("waited", a.elapsed))
	return
}

// awaitReport waits one poll interval, or out a challenge. A challenge may drop
// the attached file, it is then attached again.
func (c *Connector) awaitReport(ctx context.Context, a *attempt) (err error) {
	t := c.config.Timeouts
	cleared, err := c.watchdog.AwaitClearance(ctx)
	if err != nil {
		return
	}
	if !cleared {
		if err = c.sleep(ctx, t.Poll); err != nil {
			return
		}
		a.elapsed += t.Poll
		return
	}
	if err = c.sleep(ctx, t.UploadSettle); err != nil {
		return
	}
	a.elapsed += t.UploadSettle

	inputShown, err := browser.Has(ctx, c.page, c.config.Selectors.UploadInput, browser.Exist)
	if err != nil {
		return
	}
	if !inputShown {
		return
	}
	unsubmitted, err := browser.Has(ctx, c.page, c.config.Selectors.UploadButton, browser.HasText(c.config.Texts.Unsubmitted))
	if err != nil || !unsubmitted {
		return
	}
	logger.Info("file dropped after captcha, upload it again", slog.String("file", a.location))
	a.reuploads++
	return c.upload(ctx, a)
}

// recoverStuckPage reloads the page when the upload seems stuck, at most once per
// recovery period.
func (c *Connector) recoverStuckPage(ctx context.Context, a *attempt) (err error) {
	if a.elapsed-a.lastRecovery <= c.config.Timeouts.Recovery {
		return
	}
	button, err := c.page.State(ctx, c.config.Selectors.UploadButton)
	if err != nil {
		return fmt.Errorf("could not check upload button: %w", err)
	}
	if !c.pending(button) {
		return
	}
	logger.Info("upload seems stuck, reload page", slog.String("file", a.location), slog.String("button", strings.TrimSpace(button.Text)), slog.Duration("waited", a.elapsed))
	a.lastRecovery = a.elapsed
	a.reloads++
	if err = c.page.Reload(ctx); err != nil {
		return fmt.Errorf("could not reload page: %w", err)
	}
	if _, err = c.watchdog.AwaitClearance(ctx); err != nil {
		return
	}
	if err = browser.WaitFor(ctx, c.page, c.sleep, c.config.Selectors.UploadInput, browser.Exist, c.config.Timeouts.Element); err != nil {
		return fmt.Errorf("upload form not found after reload: %w", err)
	}
	return c.upload(ctx, a)
}

func (c *Connector) pending(button browser.ElementState) bool {
	if !button.Exists {
		return false
	}
	text := strings.ToLower(button.Text)
	for _, p := range c.config.Texts.Pending {
		if p != "" && strings.Contains(text, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// upload attaches the file, lets the page settle and confirms the upload when
// the service asks to.
func (c *Connector) upload(ctx context.Context, a *attempt) (err error) {
	sel := c.config.Selectors
	if err = c.page.UploadFile(ctx, sel.UploadInput, a.location); err != nil {
		return fmt.Errorf("could not attach file: %w", err)
	}
	if err = c.sleep(ctx, c.config.Timeouts.UploadSettle); err != nil {
		return
	}
	if a.stage != Idle {
		a.elapsed += c.config.Timeouts.UploadSettle
	}
	confirm, err := browser.Has(ctx, c.page, sel.UploadButton, browser.HasText(c.config.Texts.ConfirmUpload))
	if err != nil {
		return fmt.Errorf("could not check upload button: %w", err)
	}
	if confirm {
		if err = c.page.Click(ctx, sel.UploadButton); err != nil {
			return fmt.Errorf("could not confirm upload: %w", err)
		}
	}
	if a.stage == Idle {
		a.stage = Uploaded
	}
	return
}
