// Package domain defines the error taxonomy of the graph storage layer.
//
// Every failure that crosses a package boundary is a *DomainError carrying
// one of the codes below, plus details (key, view kind, version) and the
// underlying cause:
//
//   - NotFound: a named property, view or section is absent
//   - Corrupt: counts or shapes of a loaded artifact disagree with the base
//   - IOFailure: the blob transport failed; only the caller retries
//   - BuilderFailure: a cache builder failed; the key stays absent
//   - UnsupportedVersion: the manifest is newer than understood, or a
//     downgrade was requested
//   - InvariantViolation: e.g. duplicate property names
//   - CacheClosed: the owning session was closed
package domain
