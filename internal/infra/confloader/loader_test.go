package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Cache struct {
		PropertyCapacity int `koanf:"property_capacity"`
		ViewCapacity     int `koanf:"view_capacity"`
	} `koanf:"cache"`
	Views struct {
		Persist bool `koanf:"persist"`
	} `koanf:"views"`
	Storage struct {
		Badger struct {
			GCInterval time.Duration `koanf:"gc_interval"`
		} `koanf:"badger"`
	} `koanf:"storage"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "katana.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"KATANA_VIEWS__PERSIST", "views.persist"},
		{"KATANA_CACHE__VIEW_CAPACITY", "cache.view_capacity"},
		{"KATANA_STORAGE__BADGER__GC_INTERVAL", "storage.badger.gc_interval"},
	}
	for _, tt := range tests {
		if got := EnvKey(DefaultEnvPrefix, tt.name); got != tt.want {
			t.Errorf("EnvKey(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestLoader_LoadFile(t *testing.T) {
	path := writeConfig(t, `
cache:
  view_capacity: 4
views:
  persist: true
`)
	l := NewLoader()
	if err := l.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if got := l.GetInt("cache.view_capacity"); got != 4 {
		t.Errorf("cache.view_capacity = %d, want 4", got)
	}
	if !l.GetBool("views.persist") {
		t.Error("views.persist should be true")
	}

	if err := l.LoadFile(""); err != nil {
		t.Errorf("LoadFile(\"\") error = %v", err)
	}
	if err := l.LoadFile("/nonexistent/katana.yaml"); err == nil {
		t.Error("LoadFile() should fail for a missing file")
	}
}

func TestLoader_LoadEnv(t *testing.T) {
	t.Setenv("KATANA_CACHE__PROPERTY_CAPACITY", "64")
	t.Setenv("MYAPP_VIEWS__PERSIST", "true")

	l := NewLoader()
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if got := l.GetString("cache.property_capacity"); got != "64" {
		t.Errorf("cache.property_capacity = %q, want 64", got)
	}

	custom := NewLoader(WithEnvPrefix("MYAPP_"))
	if err := custom.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if !custom.GetBool("views.persist") {
		t.Error("views.persist should be loaded with a custom prefix")
	}
}

func TestLoader_Load_Priority(t *testing.T) {
	path := writeConfig(t, `
cache:
  property_capacity: 10
  view_capacity: 2
storage:
  badger:
    gc_interval: 5m
`)
	t.Setenv("KATANA_CACHE__PROPERTY_CAPACITY", "20")
	t.Setenv("KATANA_CACHE__VIEW_CAPACITY", "3")

	l := NewLoader(
		WithConfigFile(path),
		WithOverrides(map[string]any{"cache.view_capacity": 5}),
	)

	var cfg testConfig
	cfg.Views.Persist = true // default
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Cache.PropertyCapacity != 20 {
		t.Errorf("PropertyCapacity = %d, want 20 (env overrides file)", cfg.Cache.PropertyCapacity)
	}
	if cfg.Cache.ViewCapacity != 5 {
		t.Errorf("ViewCapacity = %d, want 5 (overrides win)", cfg.Cache.ViewCapacity)
	}
	if !cfg.Views.Persist {
		t.Error("unset field should keep its default")
	}
	if cfg.Storage.Badger.GCInterval != 5*time.Minute {
		t.Errorf("GCInterval = %v, want 5m", cfg.Storage.Badger.GCInterval)
	}
	if !l.IsLoaded() {
		t.Error("IsLoaded() should be true after Load()")
	}
}

func TestLoader_LoadMap(t *testing.T) {
	l := NewLoader()
	if err := l.LoadMap(map[string]any{"views.persist": true, "cache.view_capacity": 8}); err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}
	if !l.GetBool("views.persist") || l.GetInt("cache.view_capacity") != 8 {
		t.Errorf("keys = %v", l.Keys())
	}
	if l.Get("missing") != nil {
		t.Error("Get(missing) should be nil")
	}
}
