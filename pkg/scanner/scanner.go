package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/glimps-re/autovt/pkg/browser"
	"github.com/glimps-re/autovt/pkg/datamodel"
)

var (
	LogLevel = &slog.LevelVar{}
	logger   = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: LogLevel}))
)

const (
	logReasonKey = "reason"
	logErrorKey  = "error"
)

var ErrConnectorStopped = errors.New("connector is stopped")

// ChallengeWatcher waits out challenges shown by the service.
type ChallengeWatcher interface {
	AwaitClearance(ctx context.Context) (bool, error)
}

type Classifier interface {
	Classify(text string) (datamodel.Outcome, error)
}

type Selectors struct {
	UploadInput   browser.Selector
	UploadButton  browser.Selector
	ReportPanel   browser.Selector
	ReportSummary browser.Selector
}

// Texts are the service wordings the protocol reacts to.
type Texts struct {
	// ConfirmUpload is shown on the upload button once a file is attached.
	ConfirmUpload string
	// Unsubmitted is shown on the upload button when no file is attached.
	Unsubmitted string
	// Pending button texts mean the page may be stuck.
	Pending []string
}

type Timeouts struct {
	Report       time.Duration
	Recovery     time.Duration
	Poll         time.Duration
	UploadSettle time.Duration
	Summary      time.Duration
	Element      time.Duration
}

type Config struct {
	LandingURL     string
	Selectors      Selectors
	Texts          Texts
	Timeouts       Timeouts
	OutputDir      string
	MaxFileSize    int64
	FollowSymlinks bool
}

const (
	DefaultReportTimeout   = 8 * time.Minute
	DefaultRecoveryTimeout = 60 * time.Second
	DefaultPollInterval    = time.Second
	DefaultUploadSettle    = 1500 * time.Millisecond
	DefaultSummaryTimeout  = 10 * time.Second
	DefaultElementTimeout  = 30 * time.Second
)

type Connector struct {
	page       browser.Page
	watchdog   ChallengeWatcher
	classifier Classifier
	action     Action
	sleep      browser.Sleeper
	config     Config

	mu      sync.Mutex
	stopped bool
	// per run walk state
	visited   map[string]struct{}
	outputDir string
}

func NewConnector(config Config, page browser.Page, watchdog ChallengeWatcher, classifier Classifier, action Action, sleep browser.Sleeper) *Connector {
	t := &config.Timeouts
	if t.Report <= 0 {
		t.Report = DefaultReportTimeout
	}
	if t.Recovery <= 0 {
		t.Recovery = DefaultRecoveryTimeout
	}
	if t.Poll <= 0 {
		t.Poll = DefaultPollInterval
	}
	if t.UploadSettle < 0 {
		t.UploadSettle = 0
	}
	if t.Summary <= 0 {
		t.Summary = DefaultSummaryTimeout
	}
	if t.Element <= 0 {
		t.Element = DefaultElementTimeout
	}
	if config.OutputDir != "" {
		if abs, err := filepath.Abs(config.OutputDir); err == nil {
			config.OutputDir = abs
		}
	}
	if action == nil {
		action = &NoAction{}
	}
	if sleep == nil {
		sleep = browser.Sleep
	}
	return &Connector{
		page:       page,
		watchdog:   watchdog,
		classifier: classifier,
		action:     action,
		sleep:      sleep,
		config:     config,
	}
}

// Close stops the connector, later scans fail with ErrConnectorStopped.
func (c *Connector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
}

func (c *Connector) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// ScanPath scans root, recursively when it is a directory. Files in the output
// directory are never scanned. The first failure aborts the walk.
func (c *Connector) ScanPath(ctx context.Context, root string) (err error) {
	if c.isStopped() {
		return ErrConnectorStopped
	}
	c.visited = make(map[string]struct{})
	c.outputDir = canonicalPath(c.config.OutputDir)
	// the root is scanned even when it is a symbolic link
	if root, err = filepath.Abs(root); err != nil {
		return
	}
	if root, err = filepath.EvalSymlinks(root); err != nil {
		return
	}
	return c.scanPath(ctx, root)
}

func (c *Connector) scanPath(ctx context.Context, input string) (err error) {
	inputLogger := logger.With(slog.String("file", input))
	if c.inOutputDir(input) {
		inputLogger.Debug("skip file", slog.String(logReasonKey, "output directory"))
		return
	}

	// Use Lstat to check if it's a symlink without following it
	linfo, err := os.Lstat(input)
	if err != nil {
		return
	}
	if linfo.Mode()&os.ModeSymlink != 0 {
		if !c.config.FollowSymlinks {
			inputLogger.Debug("skip file", slog.String(logReasonKey, "symbolic link"))
			return
		}
		resolved, err := filepath.EvalSymlinks(input)
		if err != nil {
			inputLogger.Warn("skip file", slog.String(logReasonKey, "broken symbolic link"), slog.String(logErrorKey, err.Error()))
			return nil
		}
		if c.inOutputDir(resolved) {
			inputLogger.Debug("skip file", slog.String(logReasonKey, "links to output directory"))
			return nil
		}
	}
	info, err := os.Stat(input)
	if err != nil {
		return
	}
	if info.IsDir() {
		return c.scanDir(ctx, input)
	}
	if !info.Mode().IsRegular() {
		inputLogger.Debug("skip file", slog.String(logReasonKey, "not a regular file"))
		return
	}
	return c.ScanFile(ctx, input)
}

// scanDir walks the resolved directory of input, once per run.
func (c *Connector) scanDir(ctx context.Context, input string) (err error) {
	resolved, err := filepath.EvalSymlinks(input)
	if err != nil {
		return
	}
	if _, seen := c.visited[resolved]; seen {
		logger.Debug("skip directory", slog.String("file", input), slog.String(logReasonKey, "already visited"))
		return
	}
	c.visited[resolved] = struct{}{}

	return filepath.WalkDir(resolved, func(path string, d fs.DirEntry, walkErr error) (err error) {
		if walkErr != nil {
			return walkErr
		}
		if err = ctx.Err(); err != nil {
			return
		}
		if d.IsDir() {
			if path == resolved {
				return
			}
			if c.inOutputDir(path) {
				logger.Debug("skip directory", slog.String("file", path), slog.String(logReasonKey, "output directory"))
				return filepath.SkipDir
			}
			if _, seen := c.visited[path]; seen {
				return filepath.SkipDir
			}
			c.visited[path] = struct{}{}
			return
		}
		// symlinked directories are not walked by WalkDir
		if d.Type()&fs.ModeSymlink != 0 {
			return c.scanPath(ctx, path)
		}
		if !d.Type().IsRegular() {
			return
		}
		return c.scanPath(ctx, path)
	})
}

// canonicalPath is the absolute path with symbolic links resolved. A path that
// can not be resolved yet stays absolute.
func canonicalPath(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

func (c *Connector) inOutputDir(path string) bool {
	if c.outputDir == "" {
		return false
	}
	rel, err := filepath.Rel(c.outputDir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Now timestamps scanned files.
var Now = time.Now

// ScanFile submits one file to the service and hands its outcome to the actions.
func (c *Connector) ScanFile(ctx context.Context, input string) (err error) {
	if c.isStopped() {
		return ErrConnectorStopped
	}
	inputLogger := logger.With(slog.String("file", input))
	info, err := os.Stat(input)
	if err != nil {
		return
	}
	if info.Size() == 0 {
		inputLogger.Warn("skip file", slog.String(logReasonKey, "size 0"))
		return
	}
	if c.config.MaxFileSize > 0 && info.Size() > c.config.MaxFileSize {
		inputLogger.Warn("skip file", slog.String(logReasonKey, "too large"), slog.Int64("size", info.Size()), slog.Int64("max-size", c.config.MaxFileSize))
		return
	}
	fileSHA256, err := getFileSHA256(input)
	if err != nil {
		return
	}

	a := &attempt{location: input}
	outcome, err := c.scanOne(ctx, a)
	if err != nil {
		inputLogger.Error("scan failed", slog.String("stage", a.stage.String()), slog.Duration("waited", a.elapsed), slog.String(logErrorKey, err.Error()))
		return fmt.Errorf("could not scan %s: %w", input, err)
	}

	report := &datamodel.Report{
		Filename:  filepath.Base(input),
		Location:  input,
		SHA256:    fileSHA256,
		FileSize:  info.Size(),
		ScannedAt: Now(),
		Reuploads: a.reuploads,
		Reloads:   a.reloads,
	}
	if report.ReportURL, err = c.page.CurrentURL(ctx); err != nil {
		return fmt.Errorf("could not read report url: %w", err)
	}
	if report.ScreenshotData, err = c.page.Screenshot(ctx); err != nil {
		return fmt.Errorf("could not capture report: %w", err)
	}
	if err = c.action.Handle(ctx, input, outcome, report); err != nil {
		inputLogger.Error("could not handle file action", slog.String(logErrorKey, err.Error()))
		return
	}
	if err = c.page.Navigate(ctx, c.config.LandingURL); err != nil {
		return fmt.Errorf("could not go back to upload page: %w", err)
	}
	return
}

var sha256BufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 32*1024)
		return &buf
	},
}

func getFileSHA256(location string) (fileSHA256 string, err error) {
	hash := sha256.New()
	f, err := os.Open(filepath.Clean(location))
	if err != nil {
		return
	}
	defer func() {
		if e := f.Close(); e != nil {
			logger.Warn("could not close file correctly", slog.String("file", location), slog.String(logErrorKey, e.Error()))
		}
	}()

	sha256Buf, ok := sha256BufferPool.Get().(*[]byte)
	if !ok {
		err = errors.New("error with sha256 computing, could not get correct buffer type from pool")
		return
	}
	defer sha256BufferPool.Put(sha256Buf)

	if _, err = io.CopyBuffer(hash, f, *sha256Buf); err != nil {
		return
	}
	fileSHA256 = hex.EncodeToString(hash.Sum(nil))
	return
}
