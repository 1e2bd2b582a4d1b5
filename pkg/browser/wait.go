package browser

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrWaitTimeout is returned by WaitFor when the condition is still not met once
// the timeout elapsed.
var ErrWaitTimeout = errors.New("condition not met before timeout")

const DefaultWaitInterval = 100 * time.Millisecond

// Sleeper blocks for d, or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the wall clock Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Condition struct {
	Name  string
	Match func(state ElementState) bool
}

var (
	Exist    = Condition{Name: "exist", Match: func(s ElementState) bool { return s.Exists }}
	NotExist = Condition{Name: "not exist", Match: func(s ElementState) bool { return !s.Exists }}
	Visible  = Condition{Name: "visible", Match: func(s ElementState) bool { return s.Exists && s.Visible }}
	// Interactable elements are displayed and not disabled.
	Interactable = Condition{Name: "interactable", Match: func(s ElementState) bool { return s.Exists && s.Visible && s.Enabled }}
)

// HasText matches elements whose text contains text, ignoring case.
func HasText(text string) Condition {
	lower := strings.ToLower(text)
	return Condition{
		Name: fmt.Sprintf("text %q", text),
		Match: func(s ElementState) bool {
			return s.Exists && strings.Contains(strings.ToLower(s.Text), lower)
		},
	}
}

// ValueMatching matches elements whose value attribute matches pattern.
func ValueMatching(pattern *regexp.Regexp) Condition {
	return Condition{
		Name: fmt.Sprintf("value matching %q", pattern.String()),
		Match: func(s ElementState) bool {
			return s.Exists && pattern.MatchString(s.Value)
		},
	}
}

// Has checks the condition once, without waiting.
func Has(ctx context.Context, page Page, sel Selector, cond Condition) (bool, error) {
	state, err := page.State(ctx, sel)
	if err != nil {
		return false, err
	}
	return cond.Match(state), nil
}

// WaitFor polls sel until cond is met. Time is accounted from the durations given
// to sleep, so a fake Sleeper makes the wait deterministic.
func WaitFor(ctx context.Context, page Page, sleep Sleeper, sel Selector, cond Condition, timeout time.Duration) (err error) {
	if sleep == nil {
		sleep = Sleep
	}
	var waited time.Duration
	for {
		ok, err := Has(ctx, page, sel, cond)
		if err != nil {
			return fmt.Errorf("could not check %s: %w", sel, err)
		}
		if ok {
			return nil
		}
		if waited >= timeout {
			return fmt.Errorf("%w: %s should be %s (waited %s)", ErrWaitTimeout, sel, cond.Name, timeout)
		}
		if err = sleep(ctx, DefaultWaitInterval); err != nil {
			return err
		}
		waited += DefaultWaitInterval
	}
}
