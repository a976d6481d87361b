// Package catalog serves topology views of open RDGs.
//
// A view is identified by (rdg dir, base topology instance, kind). On a
// miss the catalog loads the view persisted in the RDG when one with the
// current layout is recorded, and otherwise builds it from the base
// topology and, when persistence is enabled, writes it back so later
// sessions can load it instead of building.
package catalog
