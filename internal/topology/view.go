package topology

import (
	"slices"
	"sort"
)

// View is an immutable derived index over a base Topology.
//
// Edge ids below are view edge ids unless named "original". Fields that a
// kind does not produce are nil.
type View struct {
	Kind     Kind
	NumNodes int
	NumEdges int

	// Offsets and Dests are the view's CSR, in view node ids.
	Offsets []uint64
	Dests   []uint32

	// EdgePermutation[viewEdge] is the original edge id.
	EdgePermutation []uint64
	// NodePermutation[viewNode] is the original node id.
	NodePermutation []uint32
	// EdgeTypes[viewEdge] is the edge's type; nil if the base is untyped.
	EdgeTypes []uint32

	// EdgeTypeIndex lists the distinct edge types, ascending. Type runs
	// below are indexed by position in this slice.
	EdgeTypeIndex []uint32
	// OutTypeOffsets[n*T+t] is where node n's run of type EdgeTypeIndex[t]
	// starts; len N*T+1.
	OutTypeOffsets []uint64

	// InOffsets and InSources are the in-edge CSR: node n's in-edges are
	// slots [InOffsets[n], InOffsets[n+1]) and InSources[slot] is the
	// source node.
	InOffsets         []uint64
	InSources         []uint32
	InEdgePermutation []uint64
	InTypeOffsets     []uint64
}

// OutEdges returns node n's view edge range.
func (v *View) OutEdges(n uint32) (lo, hi uint64) {
	return v.Offsets[n], v.Offsets[n+1]
}

// Dest returns the destination of view edge e.
func (v *View) Dest(e uint64) uint32 {
	return v.Dests[e]
}

// OriginalNode maps a view node id to the base node id.
func (v *View) OriginalNode(n uint32) uint32 {
	if v.NodePermutation == nil {
		return n
	}
	return v.NodePermutation[n]
}

// OriginalEdge maps a view edge id to the base edge id, which indexes edge
// property columns.
func (v *View) OriginalEdge(e uint64) uint64 {
	if v.EdgePermutation == nil {
		return e
	}
	return v.EdgePermutation[e]
}

// EdgeType returns the type of view edge e.
func (v *View) EdgeType(e uint64) uint32 {
	if v.EdgeTypes == nil {
		return 0
	}
	return v.EdgeTypes[e]
}

func (v *View) typeSlot(edgeType uint32) (int, bool) {
	i := sort.Search(len(v.EdgeTypeIndex), func(i int) bool { return v.EdgeTypeIndex[i] >= edgeType })
	if i < len(v.EdgeTypeIndex) && v.EdgeTypeIndex[i] == edgeType {
		return i, true
	}
	return 0, false
}

// OutEdgesOfType returns the view edge range of node n's out-edges with
// the given type. The range is empty if the view has no type index or the
// type does not occur.
func (v *View) OutEdgesOfType(n uint32, edgeType uint32) (lo, hi uint64) {
	return v.typeRange(v.OutTypeOffsets, n, edgeType)
}

// InEdgesOfType returns the in-edge slot range of node n's in-edges with
// the given type. Use InSource and InOriginalEdge to read the slots.
func (v *View) InEdgesOfType(n uint32, edgeType uint32) (lo, hi uint64) {
	return v.typeRange(v.InTypeOffsets, n, edgeType)
}

func (v *View) typeRange(offsets []uint64, n uint32, edgeType uint32) (uint64, uint64) {
	if offsets == nil {
		return 0, 0
	}
	t, ok := v.typeSlot(edgeType)
	if !ok {
		return 0, 0
	}
	i := int(n)*len(v.EdgeTypeIndex) + t
	return offsets[i], offsets[i+1]
}

// InEdges returns node n's in-edge slot range.
func (v *View) InEdges(n uint32) (lo, hi uint64) {
	return v.InOffsets[n], v.InOffsets[n+1]
}

// InSource returns the source node of in-edge slot i.
func (v *View) InSource(i uint64) uint32 {
	return v.InSources[i]
}

// InOriginalEdge returns the original edge id of in-edge slot i.
func (v *View) InOriginalEdge(i uint64) uint64 {
	return v.InEdgePermutation[i]
}

// HasInEdges reports whether the view carries an in-edge index.
func (v *View) HasInEdges() bool {
	return v.InOffsets != nil
}

// Equal reports whether two views are observably identical: same kind,
// counts, adjacency order and permutations.
func (v *View) Equal(o *View) bool {
	if v == nil || o == nil {
		return v == o
	}
	return v.Kind == o.Kind &&
		v.NumNodes == o.NumNodes &&
		v.NumEdges == o.NumEdges &&
		slices.Equal(v.Offsets, o.Offsets) &&
		slices.Equal(v.Dests, o.Dests) &&
		slices.Equal(v.EdgePermutation, o.EdgePermutation) &&
		slices.Equal(v.NodePermutation, o.NodePermutation) &&
		slices.Equal(v.EdgeTypes, o.EdgeTypes) &&
		slices.Equal(v.EdgeTypeIndex, o.EdgeTypeIndex) &&
		slices.Equal(v.OutTypeOffsets, o.OutTypeOffsets) &&
		slices.Equal(v.InOffsets, o.InOffsets) &&
		slices.Equal(v.InSources, o.InSources) &&
		slices.Equal(v.InEdgePermutation, o.InEdgePermutation) &&
		slices.Equal(v.InTypeOffsets, o.InTypeOffsets)
}

// Matches reports whether v was plausibly built from base: same node and
// edge counts. Used to reject persisted views that disagree with the
// topology they are loaded for.
func (v *View) Matches(base *Topology) bool {
	return v.NumNodes == base.NumNodes() && v.NumEdges == base.NumEdges()
}
