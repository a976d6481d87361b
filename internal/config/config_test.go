package config

import (
	"errors"
	"testing"
	"time"

	"github.com/darabos/katana/internal/core/domain"
	"github.com/darabos/katana/internal/storage"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Storage.Backend != storage.BackendFile {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, storage.BackendFile)
	}
	if cfg.Cache.PropertyCapacity != DefaultPropertyCapacity {
		t.Errorf("Cache.PropertyCapacity = %d, want %d", cfg.Cache.PropertyCapacity, DefaultPropertyCapacity)
	}
	if cfg.Cache.ViewCapacity != DefaultViewCapacity {
		t.Errorf("Cache.ViewCapacity = %d, want %d", cfg.Cache.ViewCapacity, DefaultViewCapacity)
	}
	if !cfg.Views.Persist {
		t.Error("views should be persisted by default")
	}
	if cfg.Log.Level != DefaultLogLevel || cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if err := Verify(cfg); err != nil {
		t.Errorf("Verify(Default()) error = %v", err)
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "s3" }},
		{"empty dir", func(c *Config) { c.Storage.Dir = "" }},
		{"zero property capacity", func(c *Config) { c.Cache.PropertyCapacity = 0 }},
		{"zero view capacity", func(c *Config) { c.Cache.ViewCapacity = 0 }},
		{"negative workers", func(c *Config) { c.Parallel.Workers = -1 }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"badger gc threshold", func(c *Config) {
			c.Storage.Backend = storage.BackendBadger
			c.Storage.Badger.GCThreshold = 1.5
		}},
		{"badger gc interval", func(c *Config) {
			c.Storage.Backend = storage.BackendBadger
			c.Storage.Badger.GCInterval = 0
		}},
		{"watch without file backend", func(c *Config) {
			c.Storage.Backend = storage.BackendBadger
			c.Session.WatchManifests = true
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := Verify(cfg); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("Verify() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestStorageConfig(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = storage.BackendBadger
	cfg.Storage.Dir = "/data/graphs"
	cfg.Storage.Badger.GCInterval = 90 * time.Second

	sc := cfg.StorageConfig()
	if sc.Backend != storage.BackendBadger || sc.Dir != "/data/graphs" {
		t.Errorf("StorageConfig() = %+v", sc)
	}
	if sc.Badger.GCInterval != "1m30s" {
		t.Errorf("Badger.GCInterval = %q, want 1m30s", sc.Badger.GCInterval)
	}
	if sc.Badger.NumMemtables != DefaultBadgerNumMemtables || !sc.Badger.SyncWrites {
		t.Errorf("Badger = %+v", sc.Badger)
	}
}

func TestLoggerConfig(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "debug"
	cfg.Log.Format = "text"

	lc := cfg.LoggerConfig()
	if lc.Level != "debug" || lc.Format != "text" || lc.Output == nil {
		t.Errorf("LoggerConfig() = %+v", lc)
	}
}
