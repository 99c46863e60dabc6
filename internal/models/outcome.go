package models

import (
	"time"
)

// Reason explains a classification verdict
type Reason string

const (
	ReasonOK               Reason = "ok"
	ReasonMultiFrame       Reason = "multi-frame"
	ReasonMotion           Reason = "motion-flagged"
	ReasonVideoSOPClass    Reason = "video-sop-class"
	ReasonStructuredReport Reason = "structured-report"
	ReasonUnreadableHeader Reason = "unreadable-header"
)

// Verdict is the classifier's decision for one input file
type Verdict struct {
	Convertible bool
	Reason      Reason

	// Detail carries the offending tag value or parse error, if any
	Detail string
}

// EnhancementProfile holds the cosmetic adjustments applied to every image
// of a run. A multiplier of 1.0 leaves the image unchanged.
type EnhancementProfile struct {
	Brightness float64 `yaml:"brightness"`
	Color      float64 `yaml:"color"`
	Contrast   float64 `yaml:"contrast"`
	Sharpness  float64 `yaml:"sharpness"`

	// BlackGamma below 1 lightens dark tones, above 1 darkens them.
	// Zero or negative values are treated as 1.0.
	BlackGamma float64 `yaml:"blackGamma"`
}

// NeutralProfile returns a profile that leaves images untouched
func NeutralProfile() EnhancementProfile {
	return EnhancementProfile{
		Brightness: 1.0,
		Color:      1.0,
		Contrast:   1.0,
		Sharpness:  1.0,
		BlackGamma: 1.0,
	}
}

// Status is the final state of one file in a batch
type Status string

const (
	StatusConverted Status = "converted"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Outcome records what happened to a single input file
type Outcome struct {
	SourceName string `json:"source_name"`

	// OutputPath is empty unless Status is StatusConverted
	OutputPath string `json:"output_path,omitempty"`

	Status Status `json:"status"`

	// Reason is set for skipped files
	Reason Reason `json:"reason,omitempty"`

	// Detail holds the error text for failed files
	Detail string `json:"error_detail,omitempty"`
}

// Summary aggregates the outcomes of one batch run
type Summary struct {
	RunID     string        `json:"run_id"`
	Outcomes  []Outcome     `json:"outcomes"`
	Converted int           `json:"converted"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Add appends o and updates the counters
func (s *Summary) Add(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Status {
	case StatusConverted:
		s.Converted++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
}

// OutputPaths returns the written files in outcome order
func (s *Summary) OutputPaths() []string {
	var paths []string
	for _, o := range s.Outcomes {
		if o.Status == StatusConverted {
			paths = append(paths, o.OutputPath)
		}
	}
	return paths
}
