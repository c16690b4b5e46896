// Package history keeps the capped, newest-first list of completed scans.
package history

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/franckalain/cropguard/internal/apperrors"
	"github.com/franckalain/cropguard/internal/catalog"
	"github.com/franckalain/cropguard/internal/kv"
	"github.com/franckalain/cropguard/internal/logging"
	"github.com/franckalain/cropguard/internal/models"
)

const (
	// Key is the medium key holding the JSON-encoded record list
	Key = "scanHistory"
	// DefaultCapacity is the number of records kept before eviction
	DefaultCapacity = 20
	// DefaultTimestampLayout formats ScanRecord.Timestamp
	DefaultTimestampLayout = "Jan 2, 2006, 3:04:05 PM"
)

// Store persists ScanRecords in a kv.Store
type Store struct {
	kv       kv.Store
	catalog  *catalog.Catalog
	capacity int
	now      func() time.Time
	layout   string
	logger   *zap.Logger

	// Serializes read-modify-write cycles from this process. Other
	// processes sharing the medium are last-writer-wins.
	mu sync.Mutex
}

// Option configures a Store
type Option func(*Store)

// WithCapacity overrides DefaultCapacity; n <= 0 is ignored
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithTimestampLayout overrides DefaultTimestampLayout
func WithTimestampLayout(layout string) Option {
	return func(s *Store) {
		if layout != "" {
			s.layout = layout
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = logging.OrNop(l) }
}

// New creates a Store over medium, resolving guidance from cat
func New(medium kv.Store, cat *catalog.Catalog, opts ...Option) *Store {
	s := &Store{
		kv:       medium,
		catalog:  cat,
		capacity: DefaultCapacity,
		now:      time.Now,
		layout:   DefaultTimestampLayout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capacity returns the maximum number of records kept
func (s *Store) Capacity() int {
	return s.capacity
}

// Insert composes a record from in, prepends it and evicts past capacity.
// If the medium fails to read or write, the composed record is still
// returned together with an ErrStorageUnavailable error and nothing is
// written.
func (s *Store) Insert(ctx context.Context, in models.ScanInput) (*models.ScanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, loadErr := s.load(ctx)

	now := s.now()
	id := now.UnixMilli()
	for _, r := range records {
		if r.ID >= id {
			id = r.ID + 1
		}
	}

	treatment := s.catalog.Resolve(in.Diagnosis.Name)
	record := models.ScanRecord{
		ID:            id,
		ImageData:     in.ImageData,
		Disease:       in.Diagnosis.Name,
		Confidence:    in.Diagnosis.Confidence,
		Severity:      in.Diagnosis.Severity,
		Timestamp:     now.Format(s.layout),
		TreatmentData: &treatment,
	}

	// Writing on top of an unread history would replace it
	if loadErr != nil {
		if appErr, ok := apperrors.As(loadErr); ok {
			appErr.Log(s.logger)
		}
		return &record, loadErr
	}

	records = append([]models.ScanRecord{record}, records...)
	if len(records) > s.capacity {
		for _, evicted := range records[s.capacity:] {
			s.logger.Debug("Evicting scan record", zap.Int64("id", evicted.ID))
		}
		records = records[:s.capacity]
	}

	if err := s.save(ctx, records); err != nil {
		return &record, err
	}

	s.logger.Info("Saved scan record",
		zap.Int64("id", record.ID),
		zap.String("disease", record.Disease),
		zap.Int("history_len", len(records)))
	return &record, nil
}

// List returns the stored records, newest first. Missing or undecodable
// data yields an empty list.
func (s *Store) List(ctx context.Context) []models.ScanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load(ctx)
	if appErr, ok := apperrors.As(err); ok {
		appErr.Log(s.logger)
	}
	return records
}

// Get returns the record with the given id or ErrScanNotFound
func (s *Store) Get(ctx context.Context, id int64) (*models.ScanRecord, error) {
	for _, r := range s.List(ctx) {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, apperrors.ErrScanNotFound.WithContext("id", id)
}

// DeleteByID removes the record with the given id. A missing id is a no-op.
func (s *Store) DeleteByID(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return err
	}
	kept := records[:0:0]
	for _, r := range records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return nil
	}
	return s.save(ctx, kept)
}

// Clear removes all records
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, Key); err != nil {
		return apperrors.ErrStorageUnavailable.Wrap(err)
	}
	s.logger.Info("Cleared scan history")
	return nil
}

// Export returns the persisted form of the current history
func (s *Store) Export(ctx context.Context) ([]byte, error) {
	return json.Marshal(s.List(ctx))
}

// Import replaces the history with data produced by Export. Records are
// re-sorted newest first, duplicate ids keep their first occurrence and the
// result is truncated to capacity.
func (s *Store) Import(ctx context.Context, data []byte) error {
	var records []models.ScanRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return apperrors.ErrCorruptPersistedData.Wrap(err)
	}

	seen := make(map[int64]bool, len(records))
	unique := records[:0:0]
	for _, r := range records {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		unique = append(unique, r)
	}
	sort.SliceStable(unique, func(i, j int) bool { return unique[i].ID > unique[j].ID })
	if len(unique) > s.capacity {
		unique = unique[:s.capacity]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, unique)
}

// load reads the persisted list. A medium read failure is returned as
// ErrStorageUnavailable; missing or undecodable data is an empty list.
func (s *Store) load(ctx context.Context) ([]models.ScanRecord, error) {
	raw, ok, err := s.kv.Get(ctx, Key)
	if err != nil {
		return []models.ScanRecord{}, apperrors.ErrStorageUnavailable.Wrap(err)
	}
	if !ok || raw == "" {
		return []models.ScanRecord{}, nil
	}

	var records []models.ScanRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		apperrors.ErrCorruptPersistedData.Wrap(err).Log(s.logger)
		return []models.ScanRecord{}, nil
	}
	if records == nil {
		records = []models.ScanRecord{}
	}
	return records, nil
}

func (s *Store) save(ctx context.Context, records []models.ScanRecord) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return apperrors.ErrStorageUnavailable.Wrap(err)
	}
	if err := s.kv.Set(ctx, Key, string(raw)); err != nil {
		appErr := apperrors.ErrStorageUnavailable.Wrap(err)
		appErr.Log(s.logger)
		return appErr
	}
	return nil
}
