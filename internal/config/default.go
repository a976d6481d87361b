package config

import (
	"time"

	"github.com/darabos/katana/internal/storage"
)

// Default configuration values.
const (
	DefaultStorageBackend = storage.BackendFile
	DefaultStorageDir     = "."

	DefaultBadgerGCInterval       = 10 * time.Minute
	DefaultBadgerGCThreshold      = 0.5
	DefaultBadgerCacheSize        = 64 << 20
	DefaultBadgerValueLogFileSize = 1 << 30
	DefaultBadgerValueThreshold   = 1 << 10
	DefaultBadgerNumMemtables     = 2

	DefaultPropertyCapacity = 256
	DefaultViewCapacity     = 16

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Storage: StorageSection{
			Backend: DefaultStorageBackend,
			Dir:     DefaultStorageDir,
			Badger: BadgerSection{
				GCInterval:       DefaultBadgerGCInterval,
				GCThreshold:      DefaultBadgerGCThreshold,
				CacheSize:        DefaultBadgerCacheSize,
				ValueLogFileSize: DefaultBadgerValueLogFileSize,
				ValueThreshold:   DefaultBadgerValueThreshold,
				NumMemtables:     DefaultBadgerNumMemtables,
				SyncWrites:       true,
			},
		},
		Cache: CacheSection{
			PropertyCapacity: DefaultPropertyCapacity,
			ViewCapacity:     DefaultViewCapacity,
		},
		Views: ViewsSection{
			Persist: true,
		},
		Session: SessionSection{
			PersistMigrated: false,
			WatchManifests:  false,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
