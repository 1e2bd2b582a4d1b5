package datamodel

import (
	"fmt"
	"time"
)

type Verdict string

const (
	Clean   Verdict = "clean"
	Flagged Verdict = "flagged"
)

// DetectionRatio is the number of engines that flagged a file out of the engines
// that analyzed it.
type DetectionRatio struct {
	Detected int `json:"detected"`
	Total    int `json:"total"`
	// Text is the ratio as the service wrote it, when known.
	Text string `json:"text,omitempty"`
}

func (r DetectionRatio) String() string {
	if r.Text != "" {
		return r.Text
	}
	return fmt.Sprintf("%d/%d", r.Detected, r.Total)
}

// Outcome is the classified result of a scan. Failures (timeouts, unknown
// report wording) are errors, never outcomes.
type Outcome struct {
	Verdict Verdict        `json:"verdict"`
	Ratio   DetectionRatio `json:"ratio"`
}

func CleanOutcome() Outcome {
	return Outcome{Verdict: Clean}
}

func FlaggedOutcome(detected, total int) Outcome {
	return Outcome{Verdict: Flagged, Ratio: DetectionRatio{Detected: detected, Total: total}}
}

func (o Outcome) Malicious() bool {
	return o.Verdict == Flagged
}

// Detections is the detection count as written in reports: "no" or "n/m".
func (o Outcome) Detections() string {
	if !o.Malicious() {
		return "no"
	}
	return o.Ratio.String()
}

// Report is one scanned file, as appended to the reports.
type Report struct {
	Filename   string    `json:"filename"`
	Location   string    `json:"location"`
	SHA256     string    `json:"sha256"`
	FileSize   int64     `json:"size,omitempty"`
	Malicious  bool      `json:"malicious"`
	Outcome    Outcome   `json:"outcome"`
	Detections string    `json:"detections"`
	ReportURL  string    `json:"report-url,omitempty"`
	Screenshot string    `json:"screenshot,omitempty"`
	ScannedAt  time.Time `json:"scanned-at"`
	Reuploads  int       `json:"reuploads,omitempty"`
	Reloads    int       `json:"reloads,omitempty"`
	SessionID  string    `json:"session-id,omitempty"`

	// ScreenshotData is the png captured on the service report page.
	ScreenshotData []byte `json:"-"`
}
