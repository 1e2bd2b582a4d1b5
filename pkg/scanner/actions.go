package scanner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/glimps-re/autovt/pkg/datamodel"
	"github.com/glimps-re/autovt/pkg/history"
)

type Actions struct {
	Log        bool
	Inform     bool
	Verbose    bool
	InformDest io.Writer
}

// Action is run on every classified file, in order, until one fails.
type Action interface {
	Handle(ctx context.Context, path string, outcome datamodel.Outcome, report *datamodel.Report) error
}

type NoAction struct{}

func (*NoAction) Handle(context.Context, string, datamodel.Outcome, *datamodel.Report) error {
	return nil
}

// Sink stores a report entry.
type Sink interface {
	Append(report *datamodel.Report) error
}

// NewAction builds the action chain of a scan: report fields, report entry,
// history, then logs and console output.
func NewAction(actions Actions, sink Sink, recorder history.Recorder) *MultiAction {
	action := NewMultiAction(&ReportAction{})
	if sink != nil {
		action.Actions = append(action.Actions, &SinkAction{Sink: sink})
	}
	if recorder != nil {
		action.Actions = append(action.Actions, &HistoryAction{Recorder: recorder})
	}
	if actions.Log {
		action.Actions = append(action.Actions, &LogAction{logger: logger})
	}
	if actions.Inform {
		action.Actions = append(action.Actions, &InformAction{Verbose: actions.Verbose, Out: actions.InformDest})
	}
	return action
}

type ReportAction struct{}

func (a *ReportAction) Handle(_ context.Context, path string, outcome datamodel.Outcome, report *datamodel.Report) (err error) {
	report.Location = path
	report.Outcome = outcome
	report.Malicious = outcome.Malicious()
	report.Detections = outcome.Detections()
	return
}

type SinkAction struct {
	Sink Sink
}

func (a *SinkAction) Handle(_ context.Context, _ string, _ datamodel.Outcome, report *datamodel.Report) error {
	return a.Sink.Append(report)
}

type HistoryAction struct {
	Recorder history.Recorder
}

func (a *HistoryAction) Handle(ctx context.Context, _ string, _ datamodel.Outcome, report *datamodel.Report) error {
	entry := history.EntryFromReport(*report)
	if err := a.Recorder.Add(ctx, &entry); err != nil {
		return fmt.Errorf("could not record scan: %w", err)
	}
	return nil
}

type LogAction struct {
	logger *slog.Logger
}

func (a *LogAction) Handle(_ context.Context, path string, outcome datamodel.Outcome, report *datamodel.Report) (err error) {
	if outcome.Malicious() {
		a.logger.Info("info scanned", slog.String("file", path), slog.String("sha256", report.SHA256), slog.Bool("malware", true), slog.String("detections", outcome.Detections()), slog.String("report-url", report.ReportURL))
	} else {
		a.logger.Debug("info scanned", slog.String("file", path), slog.String("sha256", report.SHA256), slog.Bool("malware", false))
	}
	return nil
}

type MultiAction struct {
	Actions []Action
}

func (a *MultiAction) Handle(ctx context.Context, path string, outcome datamodel.Outcome, report *datamodel.Report) (err error) {
	for _, h := range a.Actions {
		if err = h.Handle(ctx, path, outcome, report); err != nil {
			return
		}
	}
	return
}

func NewMultiAction(actions ...Action) *MultiAction {
	return &MultiAction{Actions: actions}
}

// InformAction prints one line per flagged file, and per clean file when verbose.
type InformAction struct {
	Verbose bool
	Out     io.Writer
}

func (a *InformAction) Handle(_ context.Context, path string, outcome datamodel.Outcome, report *datamodel.Report) (err error) {
	if a.Out == nil {
		a.Out = os.Stdout
	}
	switch {
	case outcome.Malicious():
		sb := strings.Builder{}
		fmt.Fprintf(&sb, "file %s flagged by %s security vendors", path, outcome.Detections())
		if report.ReportURL != "" {
			fmt.Fprintf(&sb, ", report: %s", report.ReportURL)
		}
		_, err = fmt.Fprintln(a.Out, sb.String())
	case a.Verbose:
		_, err = fmt.Fprintf(a.Out, "file %s no security vendor flagged it\n", path)
	}
	return
}
