// Package outbreaks keeps the geotagged disease outbreak reports shown on
// the map.
package outbreaks

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Report severities
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

const dateLayout = "2006-01-02"

// Report is one pinned outbreak
type Report struct {
	ID          string `json:"id"`
	Location    string `json:"location"`
	Coords      string `json:"coords"` // "lon,lat"
	DiseaseType string `json:"diseaseType"`
	Severity    string `json:"severity"`
	Date        string `json:"date"`
	Notes       string `json:"notes"`
}

// NewReport is the form submitted when a pin is dropped
type NewReport struct {
	Coords      string `json:"coords"`
	DiseaseType string `json:"diseaseType"`
	Severity    string `json:"severity"`
	Notes       string `json:"notes"`
}

// Filter narrows the list. Disease matches a case-insensitive substring
// of the disease type, with underscores read as spaces. Empty or "All"
// fields match everything.
type Filter struct {
	Disease  string `json:"disease"`
	Severity string `json:"severity"`
}

// Map holds the reports newest first. It is safe for concurrent use.
type Map struct {
	mu      sync.RWMutex
	reports []Report
	now     func() time.Time
}

// NewMap returns a map seeded with reports, which must be newest first
func NewMap(reports []Report, now func() time.Time) *Map {
	if now == nil {
		now = time.Now
	}
	return &Map{reports: append([]Report(nil), reports...), now: now}
}

// SampleMap returns the built-in sample reports
func SampleMap(now func() time.Time) *Map {
	return NewMap([]Report{
		{ID: "1", Location: "Field A", Coords: "36.8,-1.29", DiseaseType: "Maize Rust", Severity: SeverityHigh, Date: "2025-08-25", Notes: "Spotted near river."},
		{ID: "2", Location: "Field B", Coords: "36.9,-1.30", DiseaseType: "Blight", Severity: SeverityMedium, Date: "2025-08-26", Notes: "Early signs."},
	}, now)
}

func matches(want string, ok func(string) bool) bool {
	return want == "" || want == "All" || ok(want)
}

// List returns the reports matching f, newest first
func (m *Map) List(f Filter) []Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Report{}
	for _, r := range m.reports {
		disease := matches(f.Disease, func(want string) bool {
			want = strings.ToLower(strings.ReplaceAll(want, "_", " "))
			return strings.Contains(strings.ToLower(r.DiseaseType), want)
		})
		severity := matches(f.Severity, func(want string) bool { return r.Severity == want })
		if disease && severity {
			out = append(out, r)
		}
	}
	return out
}

// Add validates the form and pins it at the top of the list dated today
func (m *Map) Add(in NewReport) (Report, error) {
	coords, err := parseCoords(in.Coords)
	if err != nil {
		return Report{}, err
	}
	disease := strings.TrimSpace(in.DiseaseType)
	if disease == "" {
		return Report{}, errors.New("disease type is required")
	}
	switch in.Severity {
	case SeverityLow, SeverityMedium, SeverityHigh:
	default:
		return Report{}, fmt.Errorf("unsupported severity: %q", in.Severity)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	id := now.UnixMilli()
	for _, r := range m.reports {
		if n, err := strconv.ParseInt(r.ID, 10, 64); err == nil && n >= id {
			id = n + 1
		}
	}

	report := Report{
		ID:          strconv.FormatInt(id, 10),
		Location:    "(" + coords + ")",
		Coords:      coords,
		DiseaseType: disease,
		Severity:    in.Severity,
		Date:        now.Format(dateLayout),
		Notes:       in.Notes,
	}
	m.reports = append([]Report{report}, m.reports...)
	return report, nil
}

// parseCoords checks a "lon,lat" pair and returns it without spaces
func parseCoords(raw string) (string, error) {
	lonRaw, latRaw, ok := strings.Cut(raw, ",")
	if !ok {
		return "", fmt.Errorf("coords must be \"lon,lat\": %q", raw)
	}
	lonRaw, latRaw = strings.TrimSpace(lonRaw), strings.TrimSpace(latRaw)
	lon, err := strconv.ParseFloat(lonRaw, 64)
	if err != nil || lon < -180 || lon > 180 {
		return "", fmt.Errorf("invalid longitude: %q", lonRaw)
	}
	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil || lat < -90 || lat > 90 {
		return "", fmt.Errorf("invalid latitude: %q", latRaw)
	}
	return lonRaw + "," + latRaw, nil
}
