package storage

import (
	"github.com/darabos/katana/internal/core/domain"
	"github.com/darabos/katana/internal/telemetry/logger"
)

// Backend names.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Config selects and configures a BlobStore backend.
type Config struct {
	// Backend is "file" or "badger".
	// Default: "file"
	Backend string

	// Dir is the root directory (file) or the database directory (badger).
	Dir string

	// Badger-specific configuration
	Badger BadgerConfig
}

// BadgerConfig contains Badger-specific tuning parameters.
type BadgerConfig struct {
	// GCInterval is the interval between automatic value log GC runs.
	// Default: 10m
	GCInterval string

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 64MB
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 1GB
	ValueLogFileSize int64

	// ValueThreshold is the size above which values go to the value log.
	// Property and view blobs are large, so most live there.
	// Default: 1KB
	ValueThreshold int64

	// NumMemtables is the number of memtables.
	// Default: 2
	NumMemtables int

	// SyncWrites enables fsync after each write.
	// Default: true (the manifest write is the durability boundary)
	SyncWrites bool
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Backend: BackendFile,
		Dir:     dir,
		Badger:  DefaultBadgerConfig(),
	}
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		GCInterval:       "10m",
		GCThreshold:      0.5,
		CacheSize:        64 << 20, // 64MB
		ValueLogFileSize: 1 << 30,  // 1GB
		ValueThreshold:   1 << 10,  // 1KB
		NumMemtables:     2,
		SyncWrites:       true,
	}
}

// Open creates the BlobStore selected by cfg.Backend.
func Open(cfg Config, log logger.Logger) (BlobStore, error) {
	switch cfg.Backend {
	case "", BackendFile:
		return NewFileStore(cfg.Dir, log)
	case BackendBadger:
		return NewBadgerStore(cfg.Dir, cfg.Badger, log)
	default:
		return nil, domain.ErrInvalidArgument.WithDetailf("storage: unknown backend %q", cfg.Backend)
	}
}
