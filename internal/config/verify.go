package config

import (
	"strings"

	"github.com/darabos/katana/internal/core/domain"
	"github.com/darabos/katana/internal/storage"
)

// Verify validates the configuration.
func Verify(cfg *Config) error {
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyCache(&cfg.Cache); err != nil {
		return err
	}
	if cfg.Parallel.Workers < 0 {
		return invalid("parallel.workers must not be negative, got %d", cfg.Parallel.Workers)
	}
	if cfg.Session.WatchManifests && cfg.Storage.Backend != storage.BackendFile {
		return invalid("session.watch_manifests requires the %s backend", storage.BackendFile)
	}
	return verifyLog(&cfg.Log)
}

func invalid(format string, args ...any) error {
	return domain.ErrInvalidArgument.WithDetailf("config: "+format, args...)
}

func verifyStorage(cfg *StorageSection) error {
	switch cfg.Backend {
	case storage.BackendFile, storage.BackendBadger:
	default:
		return invalid("storage.backend must be %q or %q, got %q", storage.BackendFile, storage.BackendBadger, cfg.Backend)
	}
	if cfg.Dir == "" {
		return invalid("storage.dir is required")
	}
	if cfg.Backend == storage.BackendBadger {
		b := cfg.Badger
		if b.GCInterval <= 0 {
			return invalid("storage.badger.gc_interval must be positive")
		}
		if b.GCThreshold <= 0 || b.GCThreshold >= 1 {
			return invalid("storage.badger.gc_threshold must be in (0, 1), got %v", b.GCThreshold)
		}
		if b.NumMemtables < 1 {
			return invalid("storage.badger.num_memtables must be at least 1")
		}
	}
	return nil
}

func verifyCache(cfg *CacheSection) error {
	if cfg.PropertyCapacity < 1 {
		return invalid("cache.property_capacity must be at least 1, got %d", cfg.PropertyCapacity)
	}
	if cfg.ViewCapacity < 1 {
		return invalid("cache.view_capacity must be at least 1, got %d", cfg.ViewCapacity)
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text", "console":
	default:
		return invalid("log.format %q is not json or text", cfg.Format)
	}
	return nil
}
