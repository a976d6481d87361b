// Package storage provides blob I/O for RDG snapshots.
//
// Every RDG lives under a directory name (rdg dir) inside a BlobStore and
// consists of flat, named blobs: the manifest, one Arrow stream per
// property, entity type id arrays and persisted topology views.
//
// Two backends are provided:
//
//   - FileStore: one file per blob under a root directory; writes go to a
//     temp file that is renamed into place
//   - BadgerStore: blobs as values in an embedded Badger database keyed by
//     "<rdg dir>/<name>"; each write is one transaction
//
// Both report a missing blob as domain.ErrNotFound, a byte range outside a
// blob as domain.ErrCorrupt and every other failure as domain.ErrIOFailure.
package storage
