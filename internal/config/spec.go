package config

import (
	"time"

	"github.com/darabos/katana/internal/storage"
	"github.com/darabos/katana/internal/telemetry/logger"
)

// Config is the root configuration.
type Config struct {
	Storage  StorageSection  `koanf:"storage" yaml:"storage" json:"storage"`
	Cache    CacheSection    `koanf:"cache" yaml:"cache" json:"cache"`
	Views    ViewsSection    `koanf:"views" yaml:"views" json:"views"`
	Parallel ParallelSection `koanf:"parallel" yaml:"parallel" json:"parallel"`
	Session  SessionSection  `koanf:"session" yaml:"session" json:"session"`
	Log      LogSection      `koanf:"log" yaml:"log" json:"log"`
}

// StorageSection selects the blob store.
type StorageSection struct {
	// Backend is "file" or "badger".
	Backend string `koanf:"backend" yaml:"backend" json:"backend"`
	// Dir is the store root: a directory tree for the file backend, the
	// database directory for badger.
	Dir    string        `koanf:"dir" yaml:"dir" json:"dir"`
	Badger BadgerSection `koanf:"badger" yaml:"badger" json:"badger"`
}

// BadgerSection tunes the badger backend.
type BadgerSection struct {
	GCInterval       time.Duration `koanf:"gc_interval" yaml:"gc_interval" json:"gc_interval"`
	GCThreshold      float64       `koanf:"gc_threshold" yaml:"gc_threshold" json:"gc_threshold"`
	CacheSize        int64         `koanf:"cache_size" yaml:"cache_size" json:"cache_size"`
	ValueLogFileSize int64         `koanf:"value_log_file_size" yaml:"value_log_file_size" json:"value_log_file_size"`
	ValueThreshold   int64         `koanf:"value_threshold" yaml:"value_threshold" json:"value_threshold"`
	NumMemtables     int           `koanf:"num_memtables" yaml:"num_memtables" json:"num_memtables"`
	SyncWrites       bool          `koanf:"sync_writes" yaml:"sync_writes" json:"sync_writes"`
}

// CacheSection sizes the caches, in entries.
type CacheSection struct {
	PropertyCapacity int `koanf:"property_capacity" yaml:"property_capacity" json:"property_capacity"`
	ViewCapacity     int `koanf:"view_capacity" yaml:"view_capacity" json:"view_capacity"`
}

// ViewsSection configures topology views.
type ViewsSection struct {
	// Persist writes built views back into their RDG so later sessions
	// load them instead of rebuilding.
	Persist bool `koanf:"persist" yaml:"persist" json:"persist"`
}

// ParallelSection configures the parallel executor.
type ParallelSection struct {
	// Workers is the number of concurrent workers; 0 means GOMAXPROCS.
	Workers int `koanf:"workers" yaml:"workers" json:"workers"`
}

// SessionSection configures RDG sessions.
type SessionSection struct {
	// PersistMigrated writes the upgraded manifest when an older RDG is
	// opened.
	PersistMigrated bool `koanf:"persist_migrated" yaml:"persist_migrated" json:"persist_migrated"`
	// WatchManifests drops an open RDG when its manifest changes on disk.
	// Only the file backend supports it.
	WatchManifests bool `koanf:"watch_manifests" yaml:"watch_manifests" json:"watch_manifests"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" yaml:"level" json:"level"`
	Format string `koanf:"format" yaml:"format" json:"format"`
}

// StorageConfig converts the storage section for storage.Open.
func (c *Config) StorageConfig() storage.Config {
	b := c.Storage.Badger
	return storage.Config{
		Backend: c.Storage.Backend,
		Dir:     c.Storage.Dir,
		Badger: storage.BadgerConfig{
			GCInterval:       b.GCInterval.String(),
			GCThreshold:      b.GCThreshold,
			CacheSize:        b.CacheSize,
			ValueLogFileSize: b.ValueLogFileSize,
			ValueThreshold:   b.ValueThreshold,
			NumMemtables:     b.NumMemtables,
			SyncWrites:       b.SyncWrites,
		},
	}
}

// LoggerConfig converts the log section for logger.New.
func (c *Config) LoggerConfig() logger.Config {
	lc := logger.DefaultConfig()
	lc.Level = c.Log.Level
	lc.Format = c.Log.Format
	return lc
}
