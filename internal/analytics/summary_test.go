package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/franckalain/cropguard/internal/models"
)

func at(t time.Time, disease string, sev models.Severity) models.ScanRecord {
	return models.ScanRecord{ID: t.UnixMilli(), Disease: disease, Severity: sev}
}

func TestSummarize(t *testing.T) {
	// Wednesday
	now := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)
	records := []models.ScanRecord{
		at(now.Add(-time.Hour), "Rust Disease", models.SeverityModerate),
		at(now.Add(-2*time.Hour), "Early Blight", models.SeverityModerate),
		at(now.AddDate(0, 0, -2), "Rust Disease", models.SeverityHigh),
		at(now.AddDate(0, 0, -10), "Powdery Mildew", models.SeverityHigh),
		at(now.AddDate(0, 0, -11), "Early Blight", ""),
	}

	s := Summarize(records, now)

	assert.Equal(t, 5, s.TotalScans)
	assert.Equal(t, 2, s.ScansToday)
	assert.Equal(t, 3, s.ScansWeek)
	assert.Equal(t, map[string]int{"Rust Disease": 2, "Early Blight": 2, "Powdery Mildew": 1}, s.ByDisease)
	assert.Equal(t, map[string]int{"Moderate": 2, "High": 2}, s.BySeverity)
	assert.Equal(t, []DiseaseCount{
		{Disease: "Early Blight", Count: 2},
		{Disease: "Rust Disease", Count: 2},
		{Disease: "Powdery Mildew", Count: 1},
	}, s.TopDiseases)
	assert.Equal(t, records[0].ID, s.LatestScanID)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, time.Now())

	assert.Zero(t, s.TotalScans)
	assert.NotNil(t, s.TopDiseases)
	assert.Empty(t, s.TopDiseases)
}
