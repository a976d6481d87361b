// Package migrate upgrades RDG manifests to the current storage format.
//
// Migration is a fixed table of single-version steps applied in order.
// Steps write any blobs they need but never the manifest itself; the
// caller decides whether the upgraded manifest is persisted.
package migrate
