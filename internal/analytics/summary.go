// Package analytics aggregates scan history for the dashboard.
package analytics

import (
	"sort"
	"time"

	"github.com/franckalain/cropguard/internal/models"
)

// DiseaseCount is one row of the top-diseases list
type DiseaseCount struct {
	Disease string `json:"disease"`
	Count   int    `json:"count"`
}

// Summary is the aggregate view over a history
type Summary struct {
	TotalScans   int            `json:"totalScans"`
	ScansToday   int            `json:"scansToday"`
	ScansWeek    int            `json:"scansThisWeek"`
	ByDisease    map[string]int `json:"byDisease"`
	BySeverity   map[string]int `json:"bySeverity"`
	TopDiseases  []DiseaseCount `json:"topDiseases"`
	LatestScanID int64          `json:"latestScanId,omitempty"`
}

// Summarize aggregates records relative to now. Weeks start on Sunday.
func Summarize(records []models.ScanRecord, now time.Time) Summary {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfWeek := startOfDay.AddDate(0, 0, -int(now.Weekday()))

	s := Summary{
		TotalScans:  len(records),
		ByDisease:   make(map[string]int),
		BySeverity:  make(map[string]int),
		TopDiseases: []DiseaseCount{},
	}

	for _, r := range records {
		s.ByDisease[r.Disease]++
		if r.Severity != "" {
			s.BySeverity[string(r.Severity)]++
		}
		if r.ID > s.LatestScanID {
			s.LatestScanID = r.ID
		}

		created := r.CreatedAt()
		if !created.Before(startOfWeek) {
			s.ScansWeek++
			if !created.Before(startOfDay) {
				s.ScansToday++
			}
		}
	}

	for disease, n := range s.ByDisease {
		s.TopDiseases = append(s.TopDiseases, DiseaseCount{Disease: disease, Count: n})
	}
	sort.Slice(s.TopDiseases, func(i, j int) bool {
		a, b := s.TopDiseases[i], s.TopDiseases[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Disease < b.Disease
	})

	return s
}
