package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/sales-ledger/internal/domain"
	"github.com/dvloznov/sales-ledger/internal/ledger"
)

const defaultDebounce = 3 * time.Second

// ErrClosed is returned by Flush after the syncer has been closed.
var ErrClosed = errors.New("mirror syncer closed")

// UploadFunc pushes a snapshot and returns its remote URL.
type UploadFunc func(ctx context.Context, data []byte) (string, error)

// Syncer mirrors the ledger to cloud storage on a debounced schedule.
// Register Notify as a save hook: each mutation restarts the quiet
// period, and when it elapses the current snapshot is uploaded once.
// Upload failures are logged and dropped; the local ledger is the
// source of truth and is never rolled back.
type Syncer struct {
	store  *ledger.Store
	upload UploadFunc
	delay  time.Duration
	log    zerolog.Logger

	mu     sync.Mutex
	timer  *time.Timer
	dirty  bool
	closed bool

	// syncMu serializes uploads so a debounced fire and an explicit
	// Flush never write the object concurrently.
	syncMu sync.Mutex
}

// NewSyncer creates a Syncer. A delay of zero or less uses the default
// quiet period of 3 seconds.
func NewSyncer(store *ledger.Store, upload UploadFunc, delay time.Duration, log zerolog.Logger) *Syncer {
	if delay <= 0 {
		delay = defaultDebounce
	}
	return &Syncer{
		store:  store,
		upload: upload,
		delay:  delay,
		log:    log,
	}
}

// Notify implements the ledger.SaveHook signature. The snapshot argument
// is ignored: the upload re-exports the store when the timer fires, so
// the last state within the quiet period is the one that ships.
func (s *Syncer) Notify(*domain.Ledger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.dirty = true
	if s.timer == nil {
		s.timer = time.AfterFunc(s.delay, s.fire)
		return
	}
	s.timer.Stop()
	s.timer.Reset(s.delay)
}

// Flush uploads the current snapshot immediately and cancels any pending
// debounced upload.
func (s *Syncer) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.dirty = false
	s.mu.Unlock()

	return s.sync(ctx)
}

// Close stops the debounce timer and discards any pending upload. An
// upload already in flight is allowed to finish first.
func (s *Syncer) Close() {
	s.mu.Lock()
	s.closed = true
	s.dirty = false
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	s.syncMu.Lock()
	defer s.syncMu.Unlock()
}

func (s *Syncer) fire() {
	s.mu.Lock()
	if s.closed || !s.dirty {
		s.mu.Unlock()
		return
	}
	s.dirty = false
	s.mu.Unlock()

	if err := s.sync(context.Background()); err != nil {
		s.log.Warn().Err(err).Msg("Mirror upload failed; will retry on next ledger change")
	}
}

func (s *Syncer) sync(ctx context.Context) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	var buf bytes.Buffer
	if err := s.store.ExportJSON(&buf); err != nil {
		return fmt.Errorf("snapshot ledger: %w", err)
	}

	url, err := s.upload(ctx, buf.Bytes())
	if err != nil {
		return fmt.Errorf("upload snapshot: %w", err)
	}

	// SetRemoteURL persists without firing save hooks, so recording the
	// mirror location cannot schedule another upload.
	if err := s.store.SetRemoteURL(url); err != nil {
		return fmt.Errorf("record mirror url: %w", err)
	}

	s.log.Info().Str("url", url).Int("bytes", buf.Len()).Msg("Ledger mirrored")
	return nil
}
