// Package session ties the storage layer together for one process.
//
// A Session owns a blob store, one property store and one view catalog.
// Open reads an RDG's manifest, migrates it to the current format once and
// keeps the handle, so later Property and View calls on the same rdg dir
// share caches and never migrate again.
//
// With manifest watching enabled, a manifest rewritten by another writer
// drops the open handle together with its cached properties and views.
package session
