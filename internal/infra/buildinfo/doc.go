// Package buildinfo reports the version of the running binary.
//
// Version, Commit and BuildTime are injected at build time:
//
//	go build -ldflags "-X github.com/darabos/katana/internal/infra/buildinfo.Version=v0.3.0 \
//	  -X github.com/darabos/katana/internal/infra/buildinfo.Commit=$(git rev-parse --short HEAD)"
//
// Values not injected fall back to what the Go toolchain embeds in the
// binary.
package buildinfo
