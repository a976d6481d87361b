package config

import (
	"github.com/darabos/katana/internal/infra/confloader"
)

// Load builds a configuration from the defaults, the loader's sources and
// validation, in that order.
func Load(opts ...confloader.Option) (*Config, error) {
	cfg := Default()
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}
	if err := Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
