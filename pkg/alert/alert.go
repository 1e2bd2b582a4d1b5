// Package alert notifies the operator when the scan needs a human: a challenge to
// solve or a multi-factor code to type.
package alert

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/pterm/pterm"
	"golang.org/x/term"
)

var LogLevel = &slog.LevelVar{}

var logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
	Level: LogLevel,
}))

type Alerter interface {
	Alert(ctx context.Context, msg string)
}

// BellAlerter rings the terminal bell.
type BellAlerter struct {
	Out        io.Writer
	IsTerminal func() bool
}

// NewBellAlerter rings on f, only when f is a terminal.
func NewBellAlerter(f *os.File) *BellAlerter {
	return &BellAlerter{
		Out:        f,
		IsTerminal: func() bool { return term.IsTerminal(int(f.Fd())) },
	}
}

func (a *BellAlerter) Alert(context.Context, string) {
	if a.IsTerminal != nil && !a.IsTerminal() {
		return
	}
	if _, err := io.WriteString(a.Out, "\a"); err != nil {
		logger.Debug("could not ring bell", slog.String("error", err.Error()))
	}
}

// BannerAlerter prints a warning banner.
type BannerAlerter struct {
	Out io.Writer
}

func (a *BannerAlerter) Alert(_ context.Context, msg string) {
	out := a.Out
	if out == nil {
		out = os.Stderr
	}
	pterm.Warning.WithWriter(out).Println(msg)
}

// LogAlerter logs alerts, with the package logger when Logger is nil.
type LogAlerter struct {
	Logger *slog.Logger
}

func (a *LogAlerter) Alert(ctx context.Context, msg string) {
	l := a.Logger
	if l == nil {
		l = logger
	}
	l.WarnContext(ctx, "operator action required", slog.String("reason", msg))
}

type MultiAlerter struct {
	Alerters []Alerter
}

func NewMultiAlerter(alerters ...Alerter) *MultiAlerter {
	return &MultiAlerter{Alerters: alerters}
}

func (a *MultiAlerter) Alert(ctx context.Context, msg string) {
	for _, alerter := range a.Alerters {
		alerter.Alert(ctx, msg)
	}
}

type NoAlert struct{}

func (NoAlert) Alert(context.Context, string) {}
