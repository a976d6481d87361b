package session

import (
	"context"
	"time"

	"github.com/darabos/katana/internal/core/domain"
	"github.com/darabos/katana/internal/infra/confloader"
	"github.com/darabos/katana/internal/rdg"
	"github.com/darabos/katana/internal/storage"
	"github.com/darabos/katana/internal/telemetry/logger"
)

// staleCheckTimeout bounds the manifest read after a change event.
const staleCheckTimeout = 10 * time.Second

func (s *Session) startWatcher(log logger.Logger) error {
	if _, ok := s.store.(storage.Locator); !ok {
		return domain.ErrInvalidArgument.WithDetails("manifest watch needs a store with local files")
	}
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return domain.ErrIOFailure.WithDetails("start manifest watcher").WithCause(err)
	}
	w.OnChange(s.manifestChanged)
	w.StartAsync()
	s.watcher = w
	return nil
}

func (s *Session) manifestPath(dir string) (string, bool) {
	return s.store.(storage.Locator).LocalPath(dir, rdg.ManifestName)
}

func (s *Session) watch(dir string) error {
	path, ok := s.manifestPath(dir)
	if !ok {
		return nil
	}
	if err := s.watcher.Watch(path); err != nil {
		return domain.ErrIOFailure.WithDetailf("watch manifest of %s", dir).WithCause(err)
	}
	s.watched.Set(path, dir)
	return nil
}

func (s *Session) unwatch(dir string) {
	if s.watcher == nil {
		return
	}
	path, ok := s.manifestPath(dir)
	if !ok {
		return
	}
	s.watched.Delete(path)
	s.watcher.Unwatch(path)
}

// manifestChanged runs on the watcher goroutine.
func (s *Session) manifestChanged(path string) {
	dir, ok := s.watched.Get(path)
	if !ok {
		return
	}
	r, ok := s.rdgs.Get(dir)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), staleCheckTimeout)
	defer cancel()

	stale, err := r.Stale(ctx)
	if err != nil {
		s.logger.Warn("failed to reread changed manifest", "rdg_dir", dir, "error", err)
		stale = true
	}
	if !stale {
		return
	}
	s.logger.Info("manifest changed on disk, dropping rdg", "rdg_dir", dir)
	s.Forget(dir)
}
