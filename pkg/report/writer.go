package report

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/glimps-re/autovt/pkg/datamodel"
)

// Writer appends scanned files to the reports of a session.
type Writer struct {
	session *Session
	tmpl    renderer
	summary *os.File
	json    *datamodel.ReportsWriter

	mu    sync.Mutex
	shots map[string]struct{}
}

func NewWriter(session *Session) (w *Writer, err error) {
	tmpl, err := parseTemplates(session.Format)
	if err != nil {
		return
	}
	summary, err := os.OpenFile(session.SummaryPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("could not open summary: %w", err)
	}
	w = &Writer{
		session: session,
		tmpl:    tmpl,
		summary: summary,
		json:    datamodel.NewReportsWriter(summary),
		shots:   make(map[string]struct{}),
	}
	return
}

// Append stores the screenshot of r and appends r to the report matching its
// verdict, then to the json summary. r.Screenshot is set to the screenshot path
// relative to the output directory.
func (w *Writer) Append(r *datamodel.Report) (err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var sink string
	switch r.Outcome.Verdict {
	case datamodel.Flagged:
		sink = w.session.DetectionsPath
	case datamodel.Clean:
		sink = w.session.CleanPath
	default:
		return fmt.Errorf("no report for verdict %q of %s", r.Outcome.Verdict, r.Location)
	}
	r.SessionID = w.session.ID
	if len(r.ScreenshotData) > 0 && !w.session.EmbedScreenshots {
		if r.Screenshot, err = w.saveScreenshot(r); err != nil {
			return
		}
	}

	buf := &bytes.Buffer{}
	data := entryData{
		Session: w.session,
		Report:  *r,
		Embed:   w.session.EmbedScreenshots && len(r.ScreenshotData) > 0,
	}
	if err = w.tmpl.ExecuteTemplate(buf, "entry", data); err != nil {
		return fmt.Errorf("could not render report entry: %w", err)
	}
	f, err := os.OpenFile(sink, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("could not open report: %w", err)
	}
	if _, err = f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return fmt.Errorf("could not append to report: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("could not close report: %w", err)
	}
	if err = w.json.Write(*r); err != nil {
		return fmt.Errorf("could not append to summary: %w", err)
	}
	logger.Debug("report entry appended", slog.String("file", r.Location), slog.String("report", sink))
	return
}

func (w *Writer) saveScreenshot(r *datamodel.Report) (rel string, err error) {
	name := w.screenshotName(r)
	if err = os.WriteFile(filepath.Join(w.session.ScreenshotsDir, name), r.ScreenshotData, 0o600); err != nil {
		return "", fmt.Errorf("could not save screenshot: %w", err)
	}
	return ScreenshotsDirName + "/" + name, nil
}

// screenshotName is unique within the session: homonymous files get their hash
// prefix, then a counter.
func (w *Writer) screenshotName(r *datamodel.Report) string {
	candidates := []string{r.Filename}
	if len(r.SHA256) >= 8 {
		candidates = append(candidates, r.Filename+"_"+r.SHA256[:8])
	}
	base := candidates[len(candidates)-1]
	for i := 2; ; i++ {
		for _, c := range candidates {
			name := c + "_scan_screenshot.png"
			if _, taken := w.shots[name]; !taken {
				w.shots[name] = struct{}{}
				return name
			}
		}
		candidates = []string{base + "_" + strconv.Itoa(i)}
	}
}

func (w *Writer) Close() (err error) {
	if w.summary == nil {
		return
	}
	err = w.summary.Close()
	if errors.Is(err, os.ErrClosed) {
		err = nil
	}
	w.summary = nil
	return
}
