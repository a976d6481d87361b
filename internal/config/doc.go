// Package config defines the configuration of the storage layer.
//
//   - spec.go: Config struct definition
//   - default.go: default values
//   - verify.go: validation
//   - load.go: defaults, sources and validation combined
//
// Configuration is loaded via internal/infra/confloader from a YAML file,
// KATANA_ environment variables and command-line overrides.
package config
