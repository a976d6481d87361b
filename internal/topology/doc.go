// Package topology holds the base CSR adjacency of a graph and the derived
// views built from it.
//
// A View is a pure function of (base Topology, Kind): it reorders edges
// (and for one kind, nodes) and records permutations back to the base so
// property columns can still be addressed. Views are immutable once built
// and encode to a checksummed binary blob that decodes to an Equal view.
//
// View kinds:
//
//   - EdgesSortedByDestID: each node's out-edges sorted by destination,
//     ties kept in original edge order
//   - NodesSortedByDegreeThenEdgesSortedByDestID: nodes renumbered by
//     descending out-degree (ties by ascending id), then edges sorted
//   - EdgeTypeAwareBiDirectional: out-edges and a materialized in-edge index
//     grouped into per-type runs, each run sorted by neighbor id
package topology
