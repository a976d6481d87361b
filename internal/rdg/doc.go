// Package rdg models a persisted property graph snapshot (an RDG).
//
// An RDG is a set of blobs under one rdg dir of a storage.BlobStore,
// described by a JSON manifest. The manifest records the storage format
// version, where each property column and the base topology live (as byte
// ranges of blobs), the entity type id arrays and, from version 3 on, any
// persisted topology views.
//
// Property columns are Arrow IPC streams holding one column each. Entity
// type ids are Arrow uint16 (version 2) or uint32 (version 3) columns and
// are always returned widened to uint32.
//
// Readers only ever see manifests at CurrentVersion; older manifests are
// normalized by the migrate package before an RDG handle is opened.
package rdg
