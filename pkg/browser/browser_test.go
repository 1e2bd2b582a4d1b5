package browser

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"
)

func TestSelector_JSPath(t *testing.T) {
	tests := []struct {
		name string
		sel  Selector
		want string
	}{
		{
			name: "id",
			sel:  ByID("userId"),
			want: `document.getElementById("userId")`,
		},
		{
			name: "xpath",
			sel:  ByXPath(`//*[contains(@id, 'captcha')]/*`),
			want: `document.evaluate("//*[contains(@id, 'captcha')]/*", document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue`,
		},
		{
			name: "css",
			sel:  ByCSS("#report"),
			want: `(document?.querySelector("#report") ?? null)`,
		},
		{
			name: "css through shadow roots",
			sel:  ByCSS("#fileSelector", "#view-container > home-view", "#uploadForm"),
			want: `(document?.querySelector("#view-container > home-view")?.shadowRoot?.querySelector("#uploadForm")?.shadowRoot?.querySelector("#fileSelector") ?? null)`,
		},
		{
			name: "quotes are escaped",
			sel:  ByCSS(`input[name="q"]`),
			want: `(document?.querySelector("input[name=\"q\"]") ?? null)`,
		},
		{
			name: "empty",
			sel:  Selector{},
			want: "null",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sel.JSPath(); got != tt.want {
				t.Errorf("Selector.JSPath() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelector_String(t *testing.T) {
	tests := []struct {
		sel  Selector
		want string
	}{
		{sel: ByID("code2fa"), want: "#code2fa"},
		{sel: ByXPath("//input"), want: "xpath://input"},
		{sel: ByCSS("#report", "#view-container > file-view"), want: "#view-container > file-view >>> #report"},
		{sel: ByCSS("div"), want: "div"},
	}
	for _, tt := range tests {
		if got := tt.sel.String(); got != tt.want {
			t.Errorf("Selector.String() = %v, want %v", got, tt.want)
		}
	}
}

func TestConditions(t *testing.T) {
	tests := []struct {
		name  string
		cond  Condition
		state ElementState
		want  bool
	}{
		{name: "exist", cond: Exist, state: ElementState{Exists: true}, want: true},
		{name: "exist absent", cond: Exist, state: ElementState{}, want: false},
		{name: "not exist", cond: NotExist, state: ElementState{}, want: true},
		{name: "visible hidden", cond: Visible, state: ElementState{Exists: true}, want: false},
		{name: "interactable disabled", cond: Interactable, state: ElementState{Exists: true, Visible: true}, want: false},
		{name: "interactable", cond: Interactable, state: ElementState{Exists: true, Visible: true, Enabled: true}, want: true},
		{name: "text ignore case", cond: HasText("confirm upload"), state: ElementState{Exists: true, Text: "Confirm Upload"}, want: true},
		{name: "text partial", cond: HasText("Choose file"), state: ElementState{Exists: true, Text: "Choose file to scan"}, want: true},
		{name: "text mismatch", cond: HasText("Confirm Upload"), state: ElementState{Exists: true, Text: "Checking hash"}, want: false},
		{name: "value matching", cond: ValueMatching(regexp.MustCompile(`^[0-9]{6}$`)), state: ElementState{Exists: true, Value: "123456"}, want: true},
		{name: "value partial code", cond: ValueMatching(regexp.MustCompile(`^[0-9]{6}$`)), state: ElementState{Exists: true, Value: "12345"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.Match(tt.state); got != tt.want {
				t.Errorf("%s.Match() = %v, want %v", tt.cond.Name, got, tt.want)
			}
		})
	}
}

func TestWaitFor(t *testing.T) {
	tests := []struct {
		name        string
		appearAfter time.Duration
		stateErr    error
		timeout     time.Duration
		wantErr     error
		wantElapsed time.Duration
	}{
		{
			name:        "already there",
			timeout:     time.Second,
			wantElapsed: 0,
		},
		{
			name:        "appears before timeout",
			appearAfter: 500 * time.Millisecond,
			timeout:     time.Second,
			wantElapsed: 500 * time.Millisecond,
		},
		{
			name:        "never appears",
			appearAfter: time.Hour,
			timeout:     time.Second,
			wantErr:     ErrWaitTimeout,
			wantElapsed: time.Second,
		},
		{
			name:     "state error",
			stateErr: errors.New("target closed"),
			timeout:  time.Second,
			wantErr:  errors.New("target closed"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &FakeClock{}
			page := &MockPage{
				StateMock: func(ctx context.Context, sel Selector) (ElementState, error) {
					if tt.stateErr != nil {
						return ElementState{}, tt.stateErr
					}
					return ElementState{Exists: clock.Elapsed >= tt.appearAfter}, nil
				},
			}
			err := WaitFor(context.Background(), page, clock.Sleep, ByID("x"), Exist, tt.timeout)
			switch {
			case tt.wantErr == nil && err != nil:
				t.Errorf("WaitFor() unexpected error = %v", err)
			case tt.wantErr != nil && err == nil:
				t.Errorf("WaitFor() error = nil, want %v", tt.wantErr)
			case errors.Is(tt.wantErr, ErrWaitTimeout) && !errors.Is(err, ErrWaitTimeout):
				t.Errorf("WaitFor() error = %v, want %v", err, tt.wantErr)
			}
			if tt.stateErr == nil && clock.Elapsed != tt.wantElapsed {
				t.Errorf("WaitFor() waited %v, want %v", clock.Elapsed, tt.wantElapsed)
			}
		})
	}
}

func TestSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep() error = %v, want %v", err, context.Canceled)
	}
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Sleep() unexpected error = %v", err)
	}
}
