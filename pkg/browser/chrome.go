package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeConfig configures the Chrome instance driven through the DevTools protocol.
type ChromeConfig struct {
	// Headless hides the window. The operator has to see the window to solve
	// challenges, so it is disabled by default.
	Headless      bool
	UserDataDir   string
	ExecPath      string
	WindowWidth   int
	WindowHeight  int
	ActionTimeout time.Duration
}

const (
	defaultActionTimeout = 30 * time.Second
	closeTimeout         = 5 * time.Second
)

var _ Page = &Chrome{}

// Chrome is a Page backed by a chromedp tab.
type Chrome struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	config      ChromeConfig
}

// NewChrome starts a browser. ctx bounds the browser lifetime.
func NewChrome(ctx context.Context, config ChromeConfig) (c *Chrome, err error) {
	if config.ActionTimeout <= 0 {
		config.ActionTimeout = defaultActionTimeout
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-extensions", true),
	)
	if config.Headless {
		opts = append(opts,
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}
	if config.WindowWidth > 0 && config.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(config.WindowWidth, config.WindowHeight))
	}
	if config.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(config.UserDataDir))
	}
	if config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(config.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	c = &Chrome{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		config:      config,
	}
	// first Run starts the browser process
	if err = chromedp.Run(tabCtx); err != nil {
		c.Close()
		return nil, fmt.Errorf("could not start browser: %w", err)
	}
	return
}

// Close stops the browser, killing it when it does not exit in time.
func (c *Chrome) Close() {
	var proc *os.Process
	if cc := chromedp.FromContext(c.ctx); cc != nil && cc.Browser != nil {
		proc = cc.Browser.Process()
	}
	done := make(chan struct{})
	go func() {
		c.cancelTab()
		c.cancelAlloc()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(closeTimeout):
		if proc != nil {
			if err := proc.Kill(); err != nil {
				logger.Warn("could not kill browser", slog.String("error", err.Error()))
			}
		}
	}
}

func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(c.ctx, c.config.ActionTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	logger.Debug("navigate", slog.String("url", url))
	return c.run(ctx, chromedp.Navigate(url))
}

func (c *Chrome) Reload(ctx context.Context) error {
	logger.Debug("reload page")
	return c.run(ctx, chromedp.Reload())
}

const stateScript = `(() => {
	const el = %s;
	if (!el) { return {exists: false}; }
	const style = window.getComputedStyle(el);
	return {
		exists: true,
		visible: el.getClientRects().length > 0 && style.visibility !== "hidden" && style.display !== "none",
		enabled: !el.disabled,
		checked: !!el.checked,
		text: (el.innerText ?? el.textContent ?? "").trim(),
		value: el.value ?? el.getAttribute("value") ?? "",
	};
})()`

func (c *Chrome) State(ctx context.Context, sel Selector) (state ElementState, err error) {
	err = c.run(ctx, chromedp.Evaluate(fmt.Sprintf(stateScript, sel.JSPath()), &state))
	return
}

func (c *Chrome) Click(ctx context.Context, sel Selector) error {
	logger.Debug("click", slog.String("selector", sel.String()))
	return c.run(ctx, chromedp.Click(sel.JSPath(), chromedp.ByJSPath))
}

func (c *Chrome) SetValue(ctx context.Context, sel Selector, value string) error {
	return c.run(ctx,
		chromedp.SetValue(sel.JSPath(), "", chromedp.ByJSPath),
		chromedp.SendKeys(sel.JSPath(), value, chromedp.ByJSPath),
	)
}

func (c *Chrome) SetChecked(ctx context.Context, sel Selector, checked bool) error {
	state, err := c.State(ctx, sel)
	if err != nil {
		return err
	}
	if state.Checked == checked {
		return nil
	}
	return c.Click(ctx, sel)
}

func (c *Chrome) UploadFile(ctx context.Context, sel Selector, path string) error {
	logger.Debug("upload file", slog.String("selector", sel.String()), slog.String("file", path))
	return c.run(ctx, chromedp.SetUploadFiles(sel.JSPath(), []string{path}, chromedp.ByJSPath))
}

func (c *Chrome) Screenshot(ctx context.Context) (buf []byte, err error) {
	err = c.run(ctx, chromedp.CaptureScreenshot(&buf))
	return
}

func (c *Chrome) CurrentURL(ctx context.Context) (url string, err error) {
	err = c.run(ctx, chromedp.Location(&url))
	return
}
