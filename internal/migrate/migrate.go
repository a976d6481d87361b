package migrate

import (
	"context"
	"time"

	"github.com/apache/arrow/go/v15/arrow/memory"

	"github.com/darabos/katana/internal/core/domain"
	"github.com/darabos/katana/internal/parallel"
	"github.com/darabos/katana/internal/rdg"
	"github.com/darabos/katana/internal/storage"
	"github.com/darabos/katana/internal/telemetry/logger"
)

// Observer receives one call per applied step.
type Observer interface {
	MigrationStep(from, to rdg.FormatVersion, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) MigrationStep(rdg.FormatVersion, rdg.FormatVersion, time.Duration, error) {}

// Option configures a Migrator.
type Option func(*Migrator)

// TargetVersion stops migration at v instead of rdg.CurrentVersion.
func TargetVersion(v rdg.FormatVersion) Option {
	return func(m *Migrator) {
		m.target = v
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Migrator) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithObserver installs a metrics observer.
func WithObserver(obs Observer) Option {
	return func(m *Migrator) {
		if obs != nil {
			m.observer = obs
		}
	}
}

// WithAllocator sets the Arrow allocator used to read type columns.
func WithAllocator(mem memory.Allocator) Option {
	return func(m *Migrator) {
		if mem != nil {
			m.mem = mem
		}
	}
}

// Migrator upgrades manifests read from one blob store.
type Migrator struct {
	store    storage.BlobStore
	exec     parallel.Executor
	mem      memory.Allocator
	target   rdg.FormatVersion
	logger   logger.Logger
	observer Observer
}

// New creates a migrator. exec may be nil for serial execution.
func New(store storage.BlobStore, exec parallel.Executor, opts ...Option) *Migrator {
	if exec == nil {
		exec = parallel.Serial{}
	}
	m := &Migrator{
		store:    store,
		exec:     exec,
		mem:      memory.DefaultAllocator,
		target:   rdg.CurrentVersion,
		logger:   logger.Default(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logger.Named(m.logger, "migrate")
	return m
}

// Target returns the version Migrate upgrades to.
func (m *Migrator) Target() rdg.FormatVersion {
	return m.target
}

// Migrate returns man upgraded to the target version. man is not
// modified. A manifest already at the target is returned as a copy.
// Running Migrate on its own output is a no-op.
func (m *Migrator) Migrate(ctx context.Context, dir string, man *rdg.Manifest) (*rdg.Manifest, error) {
	if man == nil {
		return nil, domain.ErrInvalidArgument.WithDetailf("migrate %s: nil manifest", dir)
	}
	if !man.Version.Supported() {
		return nil, domain.ErrUnsupportedVersion.WithDetailf("migrate %s: storage format version %d", dir, man.Version)
	}
	if !m.target.Supported() {
		return nil, domain.ErrUnsupportedVersion.WithDetailf("migrate %s: target version %d", dir, m.target)
	}
	if man.Version > m.target {
		return nil, domain.ErrUnsupportedVersion.WithDetailf("migrate %s: cannot downgrade version %d to %d", dir, man.Version, m.target)
	}

	out := man.Clone()
	log := m.logger.With("rdg_dir", dir)
	for _, s := range steps {
		if out.Version >= m.target {
			break
		}
		if out.Version != s.from {
			continue
		}

		start := time.Now()
		err := s.apply(m, ctx, dir, out)
		elapsed := time.Since(start)
		m.observer.MigrationStep(s.from, s.to, elapsed, err)
		if err != nil {
			log.Warn("migration step failed", "from", int(s.from), "to", int(s.to), "error", err)
			return nil, err
		}
		out.Version = s.to
		log.Info("migrated manifest", "from", int(s.from), "to", int(s.to), "elapsed", elapsed)
	}
	return out, nil
}
