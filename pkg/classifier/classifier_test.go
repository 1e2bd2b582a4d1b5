package classifier

import (
	"errors"
	"testing"

	"github.com/glimps-re/autovt/pkg/datamodel"
	"github.com/google/go-cmp/cmp"
)

func flagged(text string, detected, total int) datamodel.Outcome {
	outcome := datamodel.FlaggedOutcome(detected, total)
	outcome.Ratio.Text = text
	return outcome
}

func TestClassifier_Classify(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    datamodel.Outcome
		wantErr error
	}{
		{
			name: "no vendors",
			text: "No security vendors flagged this file as malicious",
			want: datamodel.CleanOutcome(),
		},
		{
			name: "ratio",
			text: "5/70 security vendors flagged this file as malicious",
			want: flagged("5/70", 5, 70),
		},
		{
			name: "single vendor",
			text: "1/68 security vendor flagged this file as malicious",
			want: flagged("1/68", 1, 68),
		},
		{
			name: "zero ratio is flagged",
			text: "0/64 security vendors flagged this file as malicious",
			want: flagged("0/64", 0, 64),
		},
		{
			name: "surrounding whitespace",
			text: "\n   12/70 security vendors flagged this file as malicious  \n",
			want: flagged("12/70", 12, 70),
		},
		{
			name: "leading zeros kept",
			text: "05/070 security vendors flagged this file as malicious",
			want: flagged("05/070", 5, 70),
		},
		{
			name:    "count out of range",
			text:    "99999999999999999999/70 security vendors flagged this file as malicious",
			wantErr: ErrRatioRange,
		},
		{
			name:    "unknown wording",
			text:    "This file has not been analyzed yet",
			wantErr: ErrClassification,
		},
		{
			name:    "trailing text",
			text:    "5/70 security vendors flagged this file as malicious (updated)",
			wantErr: ErrClassification,
		},
		{
			name:    "empty",
			text:    "",
			wantErr: ErrClassification,
		},
	}
	c := MustNew(DefaultPattern)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(tt.text)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Classifier.Classify() error = %v, want %v", err, tt.wantErr)
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Classifier.Classify() diff(-want +got):\n%s", diff)
			}
		})
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		wantErr bool
	}{
		{name: "default", pattern: ""},
		{name: "custom", pattern: `^(No|\d+/\d+) engines detected this file$`},
		{name: "no group", pattern: `security vendors`, wantErr: true},
		{name: "two groups", pattern: `(No|\d+)/(\d+)`, wantErr: true},
		{name: "invalid", pattern: `(No`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.pattern)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
