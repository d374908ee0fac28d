package flagfile

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dmitrymomot/featurekit/pkg/feature"
	"github.com/dmitrymomot/featurekit/pkg/logger"
)

// Storage is a read-only feature.Storage backed by a YAML file.
// A failed reload keeps the previous definitions.
type Storage struct {
	path     string
	debounce time.Duration
	onChange func(context.Context) error
	sink     feature.BatchTracker
	logger   *slog.Logger

	mu       sync.RWMutex
	mem      *feature.MemoryStorage
	loadedAt time.Time

	watchMu  sync.Mutex
	watcher  *fsnotify.Watcher
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

var _ feature.Storage = (*Storage)(nil)

// Open loads the flag file at path.
func Open(path string, opts ...Option) (*Storage, error) {
	if path == "" {
		return nil, ErrNoPath
	}

	s := &Storage{
		path:     filepath.Clean(path),
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("flagfile"), slog.String("path", s.path))

	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the file and swaps the definitions atomically.
func (s *Storage) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return errors.Join(ErrReadFile, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return err
	}
	mem, err := doc.storage()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.mem = mem
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("flag file loaded", logger.Count("flags", len(doc.Flags)))
	return nil
}

// LoadedAt returns when the definitions were last loaded.
func (s *Storage) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

func (s *Storage) snapshot() *feature.MemoryStorage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mem
}

// GetFlag implements feature.Storage.
func (s *Storage) GetFlag(ctx context.Context, key, orgID string) (*feature.Flag, error) {
	return s.snapshot().GetFlag(ctx, key, orgID)
}

// GetRulesForFlag implements feature.Storage. Rules live inside flag
// definitions, so this is always empty.
func (s *Storage) GetRulesForFlag(ctx context.Context, flagID string) ([]feature.Rule, error) {
	return s.snapshot().GetRulesForFlag(ctx, flagID)
}

// GetOverride implements feature.Storage.
func (s *Storage) GetOverride(ctx context.Context, flagID, userID string) (*feature.Override, error) {
	return s.snapshot().GetOverride(ctx, flagID, userID)
}

// ListFlags implements feature.Storage.
func (s *Storage) ListFlags(ctx context.Context, orgID string, filter feature.ListFilter) ([]*feature.Flag, error) {
	return s.snapshot().ListFlags(ctx, orgID, filter)
}

// TrackEvaluation implements feature.Storage.
func (s *Storage) TrackEvaluation(ctx context.Context, record feature.EvaluationRecord) error {
	return s.TrackEvaluations(ctx, []feature.EvaluationRecord{record})
}

// TrackEvaluations implements feature.BatchTracker.
func (s *Storage) TrackEvaluations(ctx context.Context, records []feature.EvaluationRecord) error {
	if s.sink != nil {
		return s.sink.TrackEvaluations(ctx, records)
	}
	for _, r := range records {
		s.logger.DebugContext(ctx, "flag evaluated",
			logger.FlagKey(r.FlagKey),
			logger.UserID(r.UserID),
			logger.Reason(string(r.Reason)),
		)
	}
	return nil
}

// Watch reloads the file whenever it changes until ctx is done or Close is
// called. The parent directory is watched so editors that replace the file
// on save are handled.
func (s *Storage) Watch(ctx context.Context) error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watcher != nil {
		return ErrAlreadyWatched
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Join(ErrWatch, err)
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return errors.Join(ErrWatch, err)
	}

	s.watcher = w
	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.watchLoop(ctx, w, s.done)
	return nil
}

func (s *Storage) watchLoop(ctx context.Context, w *fsnotify.Watcher, done <-chan struct{}) {
	defer s.wg.Done()

	timer := time.NewTimer(s.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(s.debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.WarnContext(ctx, "flag file watcher error", logger.Error(err))

		case <-timer.C:
			s.reloadAndNotify(ctx)
		}
	}
}

func (s *Storage) reloadAndNotify(ctx context.Context) {
	if err := s.Reload(); err != nil {
		s.logger.ErrorContext(ctx, "flag file reload failed, keeping previous definitions", logger.Error(err))
		return
	}
	if s.onChange == nil {
		return
	}
	if err := s.onChange(ctx); err != nil {
		s.logger.WarnContext(ctx, "flag change callback failed", logger.Error(err))
	}
}

// Close stops watching. The loaded definitions remain readable.
func (s *Storage) Close() error {
	s.watchMu.Lock()
	w, done := s.watcher, s.done
	s.watchMu.Unlock()
	if w == nil {
		return nil
	}

	var err error
	s.stopOnce.Do(func() {
		close(done)
		s.wg.Wait()
		err = w.Close()
	})
	return err
}
