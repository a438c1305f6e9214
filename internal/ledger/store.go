package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/sales-ledger/internal/domain"
)

var (
	// ErrNotFound means no ledger has been created yet.
	ErrNotFound = errors.New("ledger not initialized")
	// ErrExists means Create was called on a store that already has a ledger.
	ErrExists = errors.New("ledger already exists")
	// ErrDuplicateFile means the source file name was already ingested.
	ErrDuplicateFile = errors.New("source file already ingested")
	// ErrInvalidBackup means an imported document is missing the id or
	// records sequence required of a ledger backup.
	ErrInvalidBackup = errors.New("backup missing id or records")
)

// SaveHook observes persisted ledger mutations. Hooks receive a deep copy
// and must not block for long; the mirror syncer registers one to schedule
// uploads.
type SaveHook func(l *domain.Ledger)

// Store owns the MasterRecord. All mutation goes through its methods, each
// of which persists the ledger synchronously to a single JSON document
// before returning. Callers never touch the file directly.
type Store struct {
	mu    sync.Mutex
	path  string
	log   zerolog.Logger
	cur   *domain.Ledger
	hooks []SaveHook
}

// Open loads the ledger document at path if one exists. A missing file is
// not an error: the store starts empty and Create sets up the ledger.
func Open(path string, log zerolog.Logger) (*Store, error) {
	s := &Store{path: path, log: log}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Open: read ledger file: %w", err)
	}

	var l domain.Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("Open: decode ledger file: %w", err)
	}
	s.cur = &l

	log.Info().
		Str("path", path).
		Str("ledger_id", l.ID).
		Int("records", len(l.Data)).
		Msg("Ledger loaded")
	return s, nil
}

// OnSave registers a hook fired after every persisted mutation. Register
// hooks during wiring, before the store sees traffic.
func (s *Store) OnSave(hook SaveHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// Create sets up the ledger once per business.
func (s *Store) Create(name string) (*domain.Ledger, error) {
	s.mu.Lock()
	if s.cur != nil {
		s.mu.Unlock()
		return nil, ErrExists
	}

	now := time.Now()
	s.cur = &domain.Ledger{
		ID:           uuid.NewString(),
		Name:         name,
		Data:         []domain.SaleRecord{},
		TotalRevenue: decimal.Zero,
		SyncedFiles:  []string{},
		CreatedAt:    now,
		LastUpdated:  now,
	}
	if err := s.persistLocked(); err != nil {
		s.cur = nil
		s.mu.Unlock()
		return nil, fmt.Errorf("Create: %w", err)
	}

	snapshot := s.cur.Clone()
	hooks := append([]SaveHook(nil), s.hooks...)
	s.mu.Unlock()

	s.log.Info().Str("ledger_id", snapshot.ID).Str("name", name).Msg("Ledger created")
	for _, hook := range hooks {
		hook(snapshot)
	}
	return snapshot, nil
}

// Current returns a deep copy of the ledger.
func (s *Store) Current() (*domain.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return nil, ErrNotFound
	}
	return s.cur.Clone(), nil
}

// HasFile reports whether sourceFile was already ingested. Used as the
// fast duplicate check before any parsing starts.
func (s *Store) HasFile(sourceFile string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return false, ErrNotFound
	}
	return s.cur.HasFile(sourceFile), nil
}

// Append concatenates records onto the ledger, rebuilds the derived
// counters, records the source file and mapping, and persists. Returns
// the number of records added.
func (s *Store) Append(records []domain.SaleRecord, mapping *domain.MappingSchema, sourceFile string) (int, error) {
	err := s.mutate(func(l *domain.Ledger) error {
		if l.HasFile(sourceFile) {
			return fmt.Errorf("%q: %w", sourceFile, ErrDuplicateFile)
		}
		l.Data = append(l.Data, records...)
		l.Recompute()
		l.SyncedFiles = append(l.SyncedFiles, sourceFile)
		if mapping != nil {
			m := *mapping
			l.MappingSchema = &m
		}
		l.LastUpdated = time.Now()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("Append: %w", err)
	}

	s.log.Info().
		Str("source_file", sourceFile).
		Int("records_added", len(records)).
		Msg("Records appended to ledger")
	return len(records), nil
}

// Reset clears all sales history, counters, sync markers, the cached
// mapping and the cached insight. Identity fields survive.
func (s *Store) Reset() error {
	err := s.mutate(func(l *domain.Ledger) error {
		l.Data = []domain.SaleRecord{}
		l.TotalSales = 0
		l.TotalRevenue = decimal.Zero
		l.SyncedFiles = []string{}
		l.MappingSchema = nil
		l.LastStrategicInsight = nil
		l.AnalysisTimestamp = nil
		l.AnalysisRange = ""
		l.LastUpdated = time.Now()
		return nil
	})
	if err != nil {
		return fmt.Errorf("Reset: %w", err)
	}

	s.log.Info().Msg("Ledger reset")
	return nil
}

// SetMapping stores an explicitly supplied field mapping.
func (s *Store) SetMapping(m domain.MappingSchema) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("SetMapping: %w", err)
	}
	err := s.mutate(func(l *domain.Ledger) error {
		l.MappingSchema = &m
		l.LastUpdated = time.Now()
		return nil
	})
	if err != nil {
		return fmt.Errorf("SetMapping: %w", err)
	}
	return nil
}

// SaveInsight caches a generated narrative together with its analysis
// time and range. LastUpdated is deliberately untouched so the fresh
// cache is not immediately invalidated.
func (s *Store) SaveInsight(ins domain.Insight, rangeKey string, at time.Time) error {
	err := s.mutate(func(l *domain.Ledger) error {
		l.LastStrategicInsight = &ins
		l.AnalysisTimestamp = &at
		l.AnalysisRange = rangeKey
		return nil
	})
	if err != nil {
		return fmt.Errorf("SaveInsight: %w", err)
	}
	return nil
}

// SetRemoteURL records the cloud mirror location. It persists without
// firing save hooks (the mirror itself calls this after an upload) and
// without touching LastUpdated.
func (s *Store) SetRemoteURL(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return ErrNotFound
	}
	if s.cur.GoogleFileURL == url {
		return nil
	}

	prev := s.cur.GoogleFileURL
	s.cur.GoogleFileURL = url
	if err := s.persistLocked(); err != nil {
		s.cur.GoogleFileURL = prev
		return fmt.Errorf("SetRemoteURL: %w", err)
	}
	return nil
}

// ExportJSON streams the persisted ledger form for manual backup.
func (s *Store) ExportJSON(w io.Writer) error {
	s.mu.Lock()
	if s.cur == nil {
		s.mu.Unlock()
		return ErrNotFound
	}
	data, err := json.MarshalIndent(s.cur, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("ExportJSON: marshal: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("ExportJSON: write: %w", err)
	}
	return nil
}

// ImportJSON restores the ledger from a backup document, replacing any
// current state. The document must carry at least an id and a records
// sequence; counters are rebuilt rather than trusted.
func (s *Store) ImportJSON(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("ImportJSON: read backup: %w", err)
	}

	var l domain.Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return fmt.Errorf("ImportJSON: decode backup: %w", err)
	}
	if l.ID == "" || l.Data == nil {
		return fmt.Errorf("ImportJSON: %w", ErrInvalidBackup)
	}
	l.Recompute()
	l.LastUpdated = time.Now()

	s.mu.Lock()
	backup := s.cur
	s.cur = &l
	if err := s.persistLocked(); err != nil {
		s.cur = backup
		s.mu.Unlock()
		return fmt.Errorf("ImportJSON: %w", err)
	}
	snapshot := s.cur.Clone()
	hooks := append([]SaveHook(nil), s.hooks...)
	s.mu.Unlock()

	s.log.Info().
		Str("ledger_id", snapshot.ID).
		Int("records", len(snapshot.Data)).
		Msg("Ledger restored from backup")
	for _, hook := range hooks {
		hook(snapshot)
	}
	return nil
}

// mutate runs fn on the ledger under the lock and persists on success.
// A failed fn or persist rolls the in-memory state back, so every mutation
// is atomic: fully applied and on disk, or not applied at all.
func (s *Store) mutate(fn func(l *domain.Ledger) error) error {
	s.mu.Lock()
	if s.cur == nil {
		s.mu.Unlock()
		return ErrNotFound
	}

	backup := s.cur.Clone()
	if err := fn(s.cur); err != nil {
		s.cur = backup
		s.mu.Unlock()
		return err
	}
	if err := s.persistLocked(); err != nil {
		s.cur = backup
		s.mu.Unlock()
		return err
	}

	snapshot := s.cur.Clone()
	hooks := append([]SaveHook(nil), s.hooks...)
	s.mu.Unlock()

	for _, hook := range hooks {
		hook(snapshot)
	}
	return nil
}

// persistLocked writes the ledger document atomically: marshal, write to a
// temp file, rename over the target. Callers hold the lock.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.cur, "", "  ")
	if err != nil {
		return fmt.Errorf("persist ledger: marshal: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("persist ledger: write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("persist ledger: rename: %w", err)
	}
	return nil
}
