package confloader

import (
	"errors"

	"github.com/knadh/koanf/maps"
)

// errReadBytes is returned by mapProvider.ReadBytes; koanf uses Read.
var errReadBytes = errors.New("confloader: map provider has no byte form")

// mapProvider is a koanf provider over a map of dotted keys.
type mapProvider map[string]any

// ReadBytes implements koanf.Provider.
func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errReadBytes
}

// Read implements koanf.Provider. Dotted keys are expanded so overrides
// merge with nested file values instead of shadowing them.
func (m mapProvider) Read() (map[string]any, error) {
	return maps.Unflatten(m, "."), nil
}
