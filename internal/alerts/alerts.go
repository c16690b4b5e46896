// Package alerts serves the regional disease alert feed.
package alerts

import (
	"fmt"
	"sort"
	"time"
)

// Alert severities
const (
	SeverityCritical = "Critical"
	SeverityWarning  = "Warning"
	SeverityInfo     = "Info"
)

// Alert is one regional outbreak report
type Alert struct {
	ID              int        `json:"id"`
	Title           string     `json:"title"`
	Crop            string     `json:"crop"`
	Disease         string     `json:"disease"`
	Severity        string     `json:"severity"`
	Region          string     `json:"region"`
	ReportedAt      time.Time  `json:"reportedAt"`
	Image           string     `json:"image"`
	Location        [2]float64 `json:"location"` // lon, lat
	Farmers         []string   `json:"farmers"`
	Recommendations string     `json:"recommendations"`
}

// Filter narrows the feed. Empty or "All" fields match everything.
type Filter struct {
	Crop     string `json:"crop"`
	Severity string `json:"severity"`
	Window   string `json:"window"` // "24h", "7d", "30d" or "all"
}

// Feed holds the current alerts
type Feed struct {
	alerts []Alert
	now    func() time.Time
}

// NewFeed returns a feed over alerts, newest first
func NewFeed(alerts []Alert, now func() time.Time) *Feed {
	if now == nil {
		now = time.Now
	}
	sorted := append([]Alert(nil), alerts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ReportedAt.After(sorted[j].ReportedAt) })
	return &Feed{alerts: sorted, now: now}
}

// SampleFeed returns the built-in sample alerts reported relative to now
func SampleFeed(now func() time.Time) *Feed {
	if now == nil {
		now = time.Now
	}
	t := now()
	img := func(id string) string {
		return "https://images.unsplash.com/photo-" + id + "?auto=format&fit=crop&w=80&q=80"
	}
	return NewFeed([]Alert{
		{
			ID: 1, Title: "Maize Rust Outbreak", Crop: "Maize", Disease: "Maize Rust",
			Severity: SeverityCritical, Region: "Western", ReportedAt: t.Add(-18 * time.Minute),
			Image: img("1506744038136-46273834b3fb"), Location: [2]float64{36.8, -0.9},
			Farmers:         []string{"John Doe", "Jane Smith"},
			Recommendations: "Spray with recommended fungicide. Monitor closely.",
		},
		{
			ID: 2, Title: "Wheat Rust Detected", Crop: "Wheat", Disease: "Wheat Rust",
			Severity: SeverityWarning, Region: "Rift Valley", ReportedAt: t.Add(-time.Hour),
			Image: img("1464983953574-0892a716854b"), Location: [2]float64{35.3, -0.5},
			Farmers:         []string{"Mary W.", "Paul K."},
			Recommendations: "Scout nearby fields. Early intervention advised.",
		},
		{
			ID: 3, Title: "Rice Blast Observation", Crop: "Rice", Disease: "Rice Blast",
			Severity: SeverityInfo, Region: "Central", ReportedAt: t.Add(-3 * time.Hour),
			Image: img("1506784983877-45594efa4cbe"), Location: [2]float64{37.1, -0.2},
			Farmers:         []string{"Ali M."},
			Recommendations: "Monitor for spread. No action needed yet.",
		},
		{
			ID: 4, Title: "New Maize Streak Virus", Crop: "Maize", Disease: "Maize Streak Virus",
			Severity: SeverityWarning, Region: "Central", ReportedAt: t.Add(-2 * time.Hour),
			Image: img("1519125323398-675f0ddb6308"), Location: [2]float64{36.9, -0.3},
			Farmers:         []string{"Grace N."},
			Recommendations: "Isolate affected plants. Report further spread.",
		},
		{
			ID: 5, Title: "Wheat Smut Alert", Crop: "Wheat", Disease: "Wheat Smut",
			Severity: SeverityInfo, Region: "Western", ReportedAt: t.Add(-5 * time.Hour),
			Image: img("1465101046530-73398c7f28ca"), Location: [2]float64{36.7, -1.1},
			Farmers:         []string{"Peter O."},
			Recommendations: "Monitor and report if symptoms worsen.",
		},
	}, now)
}

func windowDuration(window string) (time.Duration, bool, error) {
	switch window {
	case "", "all":
		return 0, false, nil
	case "24h":
		return 24 * time.Hour, true, nil
	case "7d":
		return 7 * 24 * time.Hour, true, nil
	case "30d":
		return 30 * 24 * time.Hour, true, nil
	}
	return 0, false, fmt.Errorf("unsupported time window: %q", window)
}

func matches(field, want string) bool {
	return want == "" || want == "All" || field == want
}

// List returns the alerts matching f, newest first
func (f *Feed) List(filter Filter) ([]Alert, error) {
	window, bounded, err := windowDuration(filter.Window)
	if err != nil {
		return nil, err
	}
	now := f.now()

	out := []Alert{}
	for _, a := range f.alerts {
		if !matches(a.Crop, filter.Crop) || !matches(a.Severity, filter.Severity) {
			continue
		}
		if bounded && now.Sub(a.ReportedAt) > window {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// LatestCritical returns the most recent critical alert, if any
func (f *Feed) LatestCritical() (Alert, bool) {
	for _, a := range f.alerts {
		if a.Severity == SeverityCritical {
			return a, true
		}
	}
	return Alert{}, false
}
