package captcha

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/glimps-re/autovt/pkg/alert"
	"github.com/glimps-re/autovt/pkg/browser"
)

var LogLevel = &slog.LevelVar{}

var logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
	Level: LogLevel,
}))

// ErrCaptchaTimeout is returned when the operator did not solve the challenge in time.
var ErrCaptchaTimeout = errors.New("captcha not cleared before timeout")

const (
	DefaultRenderDelay  = 500 * time.Millisecond
	DefaultTimeout      = 10 * time.Minute
	DefaultRemindPeriod = 45 * time.Second

	checkInterval = time.Second
)

type Config struct {
	Selector browser.Selector
	// RenderDelay lets an asynchronously rendered challenge show up before the check.
	RenderDelay time.Duration
	Timeout     time.Duration
	// RemindEvery re-alerts the operator during a long wait, 0 disables reminders.
	RemindEvery time.Duration
}

type Watchdog struct {
	page    browser.Page
	alerter alert.Alerter
	sleep   browser.Sleeper
	config  Config
}

func NewWatchdog(page browser.Page, alerter alert.Alerter, sleep browser.Sleeper, config Config) *Watchdog {
	if alerter == nil {
		alerter = alert.NoAlert{}
	}
	if sleep == nil {
		sleep = browser.Sleep
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Watchdog{page: page, alerter: alerter, sleep: sleep, config: config}
}

// AwaitClearance reports whether a challenge was shown. When one is, it blocks
// until the operator solved it or the timeout expires.
func (w *Watchdog) AwaitClearance(ctx context.Context) (cleared bool, err error) {
	if err = w.sleep(ctx, w.config.RenderDelay); err != nil {
		return
	}
	present, err := browser.Has(ctx, w.page, w.config.Selector, browser.Exist)
	if err != nil {
		return false, fmt.Errorf("could not check captcha: %w", err)
	}
	if !present {
		return
	}

	logger.Info("captcha detected, waiting for operator", slog.Duration("timeout", w.config.Timeout))
	w.alerter.Alert(ctx, fmt.Sprintf("A captcha must be solved in the browser window (timeout %s)", w.config.Timeout))

	var waited, sinceAlert time.Duration
	for {
		if err = w.sleep(ctx, checkInterval); err != nil {
			return
		}
		waited += checkInterval
		sinceAlert += checkInterval

		present, err = browser.Has(ctx, w.page, w.config.Selector, browser.Exist)
		if err != nil {
			return false, fmt.Errorf("could not check captcha: %w", err)
		}
		if !present {
			logger.Info("captcha cleared", slog.Duration("waited", waited))
			return true, nil
		}
		if waited >= w.config.Timeout {
			return false, fmt.Errorf("%w (%s)", ErrCaptchaTimeout, w.config.Timeout)
		}
		if w.config.RemindEvery > 0 && sinceAlert >= w.config.RemindEvery {
			w.alerter.Alert(ctx, "A captcha is still waiting in the browser window")
			sinceAlert = 0
		}
	}
}
