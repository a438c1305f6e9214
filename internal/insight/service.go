package insight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/sales-ledger/internal/aggregate"
	"github.com/dvloznov/sales-ledger/internal/domain"
	"github.com/dvloznov/sales-ledger/internal/ledger"
)

// Freshness states reported by Status and Refresh.
const (
	// StatusEmpty means no insight has ever been generated.
	StatusEmpty = "empty"
	// StatusFresh means the cached insight matches the requested range and
	// no sales landed after it was generated.
	StatusFresh = "fresh"
	// StatusStale means the cached insight exists but is outdated or was
	// generated for a different range.
	StatusStale = "stale"
	// StatusGenerating means a generation run is in flight.
	StatusGenerating = "generating"
)

// generateTimeout bounds one generation run, including the model call.
const generateTimeout = 2 * time.Minute

// ErrNoGenerator means the service was built without an assistant, so
// insights cannot be generated (cached ones are still served).
var ErrNoGenerator = errors.New("insight generation not configured")

// Generator is the slice of the assistant the insight service needs.
type Generator interface {
	GenerateInsight(ctx context.Context, summary map[string]interface{}) (domain.Insight, error)
}

// State describes the cached insight relative to a requested range.
type State struct {
	Status      string          `json:"status"`
	Insight     *domain.Insight `json:"insight,omitempty"`
	GeneratedAt *time.Time      `json:"generatedAt,omitempty"`
	Range       string          `json:"range,omitempty"`
}

// Service owns the strategic insight cache on top of the ledger store. At
// most one generation runs at a time, and a run whose input data is
// superseded mid-flight is discarded instead of cached.
type Service struct {
	store *ledger.Store
	gen   Generator
	log   zerolog.Logger
	now   func() time.Time

	// version counts persisted ledger mutations. A generation run records
	// the version it started from and discards its result if the counter
	// moved while the model was thinking.
	version atomic.Uint64

	mu         sync.Mutex
	generating bool
}

// NewService wires the insight cache to the store. gen may be nil when no
// API key is configured; Status keeps working, Refresh reports
// ErrNoGenerator.
func NewService(store *ledger.Store, gen Generator, log zerolog.Logger) *Service {
	s := &Service{
		store: store,
		gen:   gen,
		log:   log,
		now:   time.Now,
	}
	store.OnSave(func(*domain.Ledger) {
		s.version.Add(1)
	})
	return s
}

// Status reports the cached insight's freshness for the requested range
// without triggering generation.
func (s *Service) Status(tr aggregate.TimeRange) (*State, error) {
	if err := tr.Validate(); err != nil {
		return nil, err
	}
	cur, err := s.store.Current()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	generating := s.generating
	s.mu.Unlock()

	st := &State{Range: tr.String()}
	if cur.LastStrategicInsight != nil {
		ins := *cur.LastStrategicInsight
		st.Insight = &ins
		st.GeneratedAt = cur.AnalysisTimestamp
	}

	switch {
	case generating:
		st.Status = StatusGenerating
	case cur.LastStrategicInsight == nil:
		st.Status = StatusEmpty
	case cur.InsightStale(tr.String()):
		st.Status = StatusStale
	default:
		st.Status = StatusFresh
	}
	return st, nil
}

// Refresh returns the cached insight when it is still fresh, otherwise
// kicks off background generation and reports StatusGenerating. force
// regenerates even over a fresh cache. Only one run is ever in flight;
// concurrent refreshes join it.
func (s *Service) Refresh(ctx context.Context, tr aggregate.TimeRange, force bool) (*State, error) {
	if err := tr.Validate(); err != nil {
		return nil, err
	}
	if s.gen == nil {
		return nil, ErrNoGenerator
	}

	// The version is sampled before the snapshot: if the saved result
	// passes the version check, the snapshot it came from is at least as
	// new as everything counted so far.
	start := s.version.Load()

	cur, err := s.store.Current()
	if err != nil {
		return nil, err
	}

	if !force && !cur.InsightStale(tr.String()) {
		ins := *cur.LastStrategicInsight
		return &State{
			Status:      StatusFresh,
			Insight:     &ins,
			GeneratedAt: cur.AnalysisTimestamp,
			Range:       tr.String(),
		}, nil
	}

	s.mu.Lock()
	if s.generating {
		s.mu.Unlock()
		return &State{Status: StatusGenerating, Range: tr.String()}, nil
	}
	s.generating = true
	s.mu.Unlock()

	go s.generate(tr, cur, start)

	return &State{Status: StatusGenerating, Range: tr.String()}, nil
}

// generate runs one detached generation pass: aggregate the snapshot,
// call the model, and cache the result unless the ledger moved on.
func (s *Service) generate(tr aggregate.TimeRange, snapshot *domain.Ledger, start uint64) {
	defer func() {
		s.mu.Lock()
		s.generating = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), generateTimeout)
	defer cancel()

	stats := aggregate.Compute(snapshot.Data, tr, s.now())
	summary := Summary(snapshot.Name, stats)

	ins, err := s.gen.GenerateInsight(ctx, summary)
	if err != nil {
		s.log.Error().Err(err).Str("range", tr.String()).Msg("Insight generation failed")
		return
	}

	if s.version.Load() != start {
		s.log.Info().Str("range", tr.String()).Msg("Ledger changed during generation, discarding result")
		return
	}

	if err := s.store.SaveInsight(ins, tr.String(), s.now()); err != nil {
		s.log.Error().Err(err).Str("range", tr.String()).Msg("Failed to cache insight")
		return
	}

	s.log.Info().Str("range", tr.String()).Msg("Strategic insight generated")
}
