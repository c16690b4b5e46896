package models

import (
	"time"
)

// Severity is the display label attached to a diagnosis. Stored values are
// free-form strings; the constants below are the ones the classifier emits.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityModerate Severity = "Moderate"
	SeverityHigh     Severity = "High"
)

// Known reports whether s is one of the severities the classifier produces
func (s Severity) Known() bool {
	switch s {
	case SeverityLow, SeverityModerate, SeverityHigh:
		return true
	}
	return false
}

// TreatmentData is the guidance attached to a disease label
type TreatmentData struct {
	Treatments []string `json:"treatments"`
	Tips       []string `json:"tips"`
	Schedule   []string `json:"schedule"`
}

// Clone returns a deep copy so callers can't alias another record's slices
func (t TreatmentData) Clone() TreatmentData {
	return TreatmentData{
		Treatments: append([]string(nil), t.Treatments...),
		Tips:       append([]string(nil), t.Tips...),
		Schedule:   append([]string(nil), t.Schedule...),
	}
}

// Diagnosis is the outcome of classifying one crop photo
type Diagnosis struct {
	Name       string   `json:"name"`
	Confidence string   `json:"confidence"` // display label, e.g. "85%"
	Severity   Severity `json:"severity"`
}

// ScanInput is what a capture produces before it is stored
type ScanInput struct {
	ImageData string    `json:"image"` // data URI or base64 payload, stored opaque
	Diagnosis Diagnosis `json:"diagnosis"`
}

// ScanRecord represents one completed scan in the history.
// Field names follow the persisted scanHistory layout.
type ScanRecord struct {
	ID         int64    `json:"id"`
	ImageData  string   `json:"image"`
	Disease    string   `json:"disease"`
	Confidence string   `json:"confidence"`
	Severity   Severity `json:"severity"`
	Timestamp  string   `json:"timestamp"`

	// Snapshot of the catalog entry at creation time. Older records may
	// not carry one.
	TreatmentData *TreatmentData `json:"treatmentData,omitempty"`
}

// CreatedAt derives the creation time from the millisecond id
func (r ScanRecord) CreatedAt() time.Time {
	return time.UnixMilli(r.ID)
}
