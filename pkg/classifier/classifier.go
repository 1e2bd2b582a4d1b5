// Package classifier turns the summary text of a service report into an outcome.
package classifier

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/glimps-re/autovt/pkg/datamodel"
)

// DefaultPattern matches the summary line of a report. Its single capture group
// is either "No" or a detection ratio.
const DefaultPattern = `(No|\d+/\d+) security vendors? flagged this file as malicious$`

// ErrClassification is returned for summary texts the pattern does not explain.
var ErrClassification = errors.New("unrecognized report summary")

// ErrRatioRange is returned when a detection count does not fit an int.
var ErrRatioRange = errors.New("detection count out of range")

type Classifier struct {
	pattern *regexp.Regexp
}

// New compiles pattern, which must have exactly one capture group.
func New(pattern string) (*Classifier, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid verdict pattern: %w", err)
	}
	if re.NumSubexp() != 1 {
		return nil, fmt.Errorf("invalid verdict pattern %q: want 1 capture group, got %d", pattern, re.NumSubexp())
	}
	return &Classifier{pattern: re}, nil
}

func MustNew(pattern string) *Classifier {
	c, err := New(pattern)
	if err != nil {
		panic(err)
	}
	return c
}

// Classify reads the detection summary. "No" is clean, any "n/m" is flagged,
// "0/m" included.
func (c *Classifier) Classify(text string) (outcome datamodel.Outcome, err error) {
	text = strings.TrimSpace(text)
	m := c.pattern.FindStringSubmatch(text)
	if m == nil {
		return outcome, fmt.Errorf("%w: %q", ErrClassification, text)
	}
	token := m[1]
	if strings.EqualFold(token, "no") {
		return datamodel.CleanOutcome(), nil
	}
	detected, total, ok := strings.Cut(token, "/")
	if !ok {
		return outcome, fmt.Errorf("%w: %q", ErrClassification, text)
	}
	ratio := datamodel.DetectionRatio{Text: token}
	if ratio.Detected, err = parseCount(detected); err != nil {
		return
	}
	if ratio.Total, err = parseCount(total); err != nil {
		return
	}
	return datamodel.Outcome{Verdict: datamodel.Flagged, Ratio: ratio}, nil
}

func parseCount(digits string) (int, error) {
	n, err := strconv.ParseUint(digits, 10, strconv.IntSize-1)
	if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("%w: %s", ErrRatioRange, digits)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrClassification, digits)
	}
	return int(n), nil
}
