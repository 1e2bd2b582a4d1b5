// Package report bootstraps the output directory of a scan session and appends
// scanned files to its clean and detections reports.
package report

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var LogLevel = &slog.LevelVar{}

var logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
	Level: LogLevel,
}))

// Now is used to timestamp sessions.
var Now = time.Now

const (
	DefaultOutputDir   = "AutoVT_Reports"
	ScreenshotsDirName = "screenshots"
)

type Format string

const (
	Markdown Format = "md"
	HTML     Format = "html"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimPrefix(s, "."))) {
	case Markdown, "markdown", "":
		return Markdown, nil
	case HTML:
		return HTML, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want md or html)", s)
	}
}

type SessionConfig struct {
	// Target is the scanned directory (or file).
	Target           string
	OutputDir        string
	Format           Format
	EmbedScreenshots bool
}

// Session holds the paths of every artifact produced by one run.
type Session struct {
	ID               string
	Target           string
	TargetName       string
	Start            time.Time
	Format           Format
	EmbedScreenshots bool

	OutputDir      string
	ScreenshotsDir string
	DetectionsPath string
	CleanPath      string
	SummaryPath    string
}

// NewSession creates the output directories and writes the header of both
// reports, truncating reports left by an earlier run of the same day.
func NewSession(config SessionConfig) (s *Session, err error) {
	if config.OutputDir == "" {
		config.OutputDir = DefaultOutputDir
	}
	if config.Format == "" {
		config.Format = Markdown
	}
	target, err := filepath.Abs(config.Target)
	if err != nil {
		return nil, fmt.Errorf("could not resolve target %s: %w", config.Target, err)
	}
	if resolved, err := filepath.EvalSymlinks(target); err == nil {
		target = resolved
	}
	outputDir, err := filepath.Abs(config.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("could not resolve output directory %s: %w", config.OutputDir, err)
	}
	if err = os.MkdirAll(filepath.Join(outputDir, ScreenshotsDirName), 0o750); err != nil {
		return nil, fmt.Errorf("could not create reports directory: %w", err)
	}
	// walked paths are resolved, so is the output directory they are compared to
	if outputDir, err = filepath.EvalSymlinks(outputDir); err != nil {
		return nil, fmt.Errorf("could not resolve output directory %s: %w", config.OutputDir, err)
	}
	start := Now()
	name := filepath.Base(target)
	date := start.Format(time.DateOnly)
	s = &Session{
		ID:               uuid.NewString(),
		Target:           target,
		TargetName:       name,
		Start:            start,
		Format:           config.Format,
		EmbedScreenshots: config.EmbedScreenshots,
		OutputDir:        outputDir,
		ScreenshotsDir:   filepath.Join(outputDir, ScreenshotsDirName),
		DetectionsPath:   filepath.Join(outputDir, fmt.Sprintf("%s_detections_report_%s.%s", name, date, config.Format)),
		CleanPath:        filepath.Join(outputDir, fmt.Sprintf("%s_clean_report_%s.%s", name, date, config.Format)),
		SummaryPath:      filepath.Join(outputDir, fmt.Sprintf("%s_summary_%s.json", name, date)),
	}
	tmpl, err := parseTemplates(s.Format)
	if err != nil {
		return nil, err
	}
	for _, flagged := range []bool{true, false} {
		buf := &bytes.Buffer{}
		if err = tmpl.ExecuteTemplate(buf, "header", headerData{Session: s, Flagged: flagged}); err != nil {
			return nil, fmt.Errorf("could not render report header: %w", err)
		}
		path := s.CleanPath
		if flagged {
			path = s.DetectionsPath
		}
		if err = os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
			return nil, fmt.Errorf("could not initialize report: %w", err)
		}
	}
	if err = os.WriteFile(s.SummaryPath, nil, 0o600); err != nil {
		return nil, fmt.Errorf("could not initialize summary: %w", err)
	}
	logger.Info("reports initialized",
		slog.String("id", s.ID),
		slog.String("detections", s.DetectionsPath),
		slog.String("clean", s.CleanPath),
	)
	return
}

// Contains reports whether path lies in the output directory.
func (s *Session) Contains(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(s.OutputDir, abs)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
