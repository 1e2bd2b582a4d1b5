package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/glimps-re/autovt/pkg/alert"
	"github.com/glimps-re/autovt/pkg/browser"
)

var LogLevel = &slog.LevelVar{}

var logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
	Level: LogLevel,
}))

// ErrMFATimeout is returned when no authentication code was typed in time.
var ErrMFATimeout = errors.New("authentication code not entered before timeout")

var mfaCodePattern = regexp.MustCompile(`^[0-9]{6}$`)

const (
	DefaultElementTimeout = 30 * time.Second
	DefaultPromptDelay    = 1500 * time.Millisecond
	DefaultMFATimeout     = 5 * time.Minute
)

type Credentials struct {
	Username string
	Password string
}

// Anonymous reports whether the scan runs without an account.
func (c Credentials) Anonymous() bool {
	return c.Username == "" || c.Password == ""
}

type Selectors struct {
	SignIn    browser.Selector
	Username  browser.Selector
	Password  browser.Selector
	Terms     browser.Selector
	Submit    browser.Selector
	MFAPrompt browser.Selector
	MFACode   browser.Selector
}

type Config struct {
	Selectors      Selectors
	ElementTimeout time.Duration
	// PromptDelay gives the conditional multi-factor prompt time to render.
	PromptDelay time.Duration
	MFATimeout  time.Duration
}

// ChallengeWatcher waits out challenges shown by the service.
type ChallengeWatcher interface {
	AwaitClearance(ctx context.Context) (bool, error)
}

type Authenticator struct {
	page     browser.Page
	watchdog ChallengeWatcher
	alerter  alert.Alerter
	sleep    browser.Sleeper
	config   Config
}

func NewAuthenticator(page browser.Page, watchdog ChallengeWatcher, alerter alert.Alerter, sleep browser.Sleeper, config Config) *Authenticator {
	if alerter == nil {
		alerter = alert.NoAlert{}
	}
	if sleep == nil {
		sleep = browser.Sleep
	}
	if config.ElementTimeout <= 0 {
		config.ElementTimeout = DefaultElementTimeout
	}
	if config.MFATimeout <= 0 {
		config.MFATimeout = DefaultMFATimeout
	}
	return &Authenticator{page: page, watchdog: watchdog, alerter: alerter, sleep: sleep, config: config}
}

// Login signs in with creds. Anonymous credentials are a no-op.
func (a *Authenticator) Login(ctx context.Context, creds Credentials) (err error) {
	if creds.Anonymous() {
		logger.Debug("no credentials, scan anonymously")
		return
	}
	sel := a.config.Selectors
	if err = a.waitFor(ctx, sel.SignIn, browser.Exist, a.config.ElementTimeout); err != nil {
		return
	}
	if _, err = a.watchdog.AwaitClearance(ctx); err != nil {
		return
	}
	if err = a.page.Click(ctx, sel.SignIn); err != nil {
		return fmt.Errorf("could not open sign in form: %w", err)
	}
	if err = a.fill(ctx, sel.Username, creds.Username); err != nil {
		return
	}
	if err = a.fill(ctx, sel.Password, creds.Password); err != nil {
		return
	}
	if err = a.waitFor(ctx, sel.Terms, browser.Interactable, a.config.ElementTimeout); err != nil {
		return
	}
	if err = a.page.SetChecked(ctx, sel.Terms, true); err != nil {
		return fmt.Errorf("could not accept terms: %w", err)
	}
	if err = a.submit(ctx); err != nil {
		return
	}

	if err = a.sleep(ctx, a.config.PromptDelay); err != nil {
		return
	}
	mfa, err := browser.Has(ctx, a.page, sel.MFAPrompt, browser.Visible)
	if err != nil {
		return fmt.Errorf("could not check authentication code prompt: %w", err)
	}
	if mfa {
		logger.Info("authentication code required, waiting for operator", slog.Duration("timeout", a.config.MFATimeout))
		a.alerter.Alert(ctx, fmt.Sprintf("Type the 6-digit authentication code in the browser window (timeout %s)", a.config.MFATimeout))
		err = browser.WaitFor(ctx, a.page, a.sleep, sel.MFACode, browser.ValueMatching(mfaCodePattern), a.config.MFATimeout)
		if errors.Is(err, browser.ErrWaitTimeout) {
			return fmt.Errorf("%w (%s)", ErrMFATimeout, a.config.MFATimeout)
		}
		if err != nil {
			return
		}
		if err = a.submit(ctx); err != nil {
			return
		}
	}
	logger.Info("signed in", slog.String("username", creds.Username))
	return
}

func (a *Authenticator) waitFor(ctx context.Context, sel browser.Selector, cond browser.Condition, timeout time.Duration) error {
	if err := browser.WaitFor(ctx, a.page, a.sleep, sel, cond, timeout); err != nil {
		return fmt.Errorf("sign in failed: %w", err)
	}
	return nil
}

func (a *Authenticator) fill(ctx context.Context, sel browser.Selector, value string) (err error) {
	if err = a.waitFor(ctx, sel, browser.Interactable, a.config.ElementTimeout); err != nil {
		return
	}
	if err = a.page.SetValue(ctx, sel, value); err != nil {
		return fmt.Errorf("could not fill %s: %w", sel, err)
	}
	return
}

func (a *Authenticator) submit(ctx context.Context) (err error) {
	if err = a.waitFor(ctx, a.config.Selectors.Submit, browser.Interactable, a.config.ElementTimeout); err != nil {
		return
	}
	if err = a.page.Click(ctx, a.config.Selectors.Submit); err != nil {
		return fmt.Errorf("could not submit sign in form: %w", err)
	}
	return
}
