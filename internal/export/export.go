// Package export writes scan history as tabular files for reporting.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/franckalain/cropguard/internal/catalog"
	"github.com/franckalain/cropguard/internal/models"
	"github.com/franckalain/cropguard/internal/projector"
)

const listSeparator = "; "

// Row is one flattened scan. Images are left out of exports.
type Row struct {
	ID         int64  `parquet:"id" json:"id"`
	Timestamp  string `parquet:"timestamp" json:"timestamp"`
	Disease    string `parquet:"disease" json:"disease"`
	Confidence string `parquet:"confidence" json:"confidence"`
	Severity   string `parquet:"severity" json:"severity"`
	Treatments string `parquet:"treatments" json:"treatments"`
	Tips       string `parquet:"tips" json:"tips"`
	Schedule   string `parquet:"schedule" json:"schedule"`
}

// Header is the CSV column order
var Header = []string{"id", "timestamp", "disease", "confidence", "severity", "treatments", "tips", "schedule"}

// Rows flattens records, filling guidance from cat for records saved
// without it
func Rows(records []models.ScanRecord, cat *catalog.Catalog) []Row {
	p := projector.New(cat)
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		v := p.Project(rec)
		rows = append(rows, Row{
			ID:         rec.ID,
			Timestamp:  rec.Timestamp,
			Disease:    rec.Disease,
			Confidence: rec.Confidence,
			Severity:   string(rec.Severity),
			Treatments: strings.Join(v.Treatments, listSeparator),
			Tips:       strings.Join(v.Tips, listSeparator),
			Schedule:   strings.Join(v.Schedule, listSeparator),
		})
	}
	return rows
}

// WriteCSV writes rows with a header line
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			strconv.FormatInt(r.ID, 10),
			r.Timestamp,
			r.Disease,
			r.Confidence,
			r.Severity,
			r.Treatments,
			r.Tips,
			r.Schedule,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteParquet writes rows as a single Parquet file
func WriteParquet(w io.Writer, rows []Row) error {
	pw := parquet.NewGenericWriter[Row](w)
	if _, err := pw.Write(rows); err != nil {
		pw.Close()
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return nil
}
