// Package projector turns stored scan records into display payloads.
package projector

import (
	"github.com/franckalain/cropguard/internal/catalog"
	"github.com/franckalain/cropguard/internal/models"
)

// Source names where a view's guidance came from
type Source string

const (
	SourceEmbedded Source = "embedded"
	SourceCatalog  Source = "catalog"
)

// Resolution is the strategy used to obtain a record's guidance
type Resolution interface {
	resolve(c *catalog.Catalog) (models.TreatmentData, Source)
}

// UseEmbedded returns the snapshot stored with the record
type UseEmbedded struct {
	Data models.TreatmentData
}

func (u UseEmbedded) resolve(*catalog.Catalog) (models.TreatmentData, Source) {
	return u.Data.Clone(), SourceEmbedded
}

// RecomputeFromCatalog looks the label up again, for records saved before
// guidance was embedded
type RecomputeFromCatalog struct {
	Label string
}

func (r RecomputeFromCatalog) resolve(c *catalog.Catalog) (models.TreatmentData, Source) {
	return c.Resolve(r.Label), SourceCatalog
}

// ResolutionFor picks the strategy for rec
func ResolutionFor(rec models.ScanRecord) Resolution {
	if rec.TreatmentData != nil {
		return UseEmbedded{Data: *rec.TreatmentData}
	}
	return RecomputeFromCatalog{Label: rec.Disease}
}

// View is everything a detail or print view needs for one record
type View struct {
	ID              int64    `json:"id"`
	Image           string   `json:"image"`
	Disease         string   `json:"disease"`
	Confidence      string   `json:"confidence"`
	ConfidenceLabel string   `json:"confidenceLabel"`
	Severity        string   `json:"severity"`
	Date            string   `json:"date"`
	Treatments      []string `json:"treatments"`
	Tips            []string `json:"tips"`
	Schedule        []string `json:"schedule"`
	Source          Source   `json:"source"`
}

// Projector builds Views
type Projector struct {
	catalog *catalog.Catalog
}

// New returns a Projector that falls back to cat
func New(cat *catalog.Catalog) *Projector {
	return &Projector{catalog: cat}
}

// Project builds the view for rec
func (p *Projector) Project(rec models.ScanRecord) View {
	data, source := ResolutionFor(rec).resolve(p.catalog)

	v := View{
		ID:         rec.ID,
		Image:      rec.ImageData,
		Disease:    rec.Disease,
		Confidence: rec.Confidence,
		Severity:   string(rec.Severity),
		Date:       rec.Timestamp,
		Treatments: data.Treatments,
		Tips:       data.Tips,
		Schedule:   data.Schedule,
		Source:     source,
	}
	if rec.Confidence != "" {
		v.ConfidenceLabel = rec.Confidence + " Confidence"
	}
	return v
}
