package topology

import (
	"cmp"
	"context"
	"slices"

	"github.com/darabos/katana/internal/core/domain"
	"github.com/darabos/katana/internal/parallel"
)

// Build derives a view of kind from base. The result depends only on
// (base, kind); exec only decides how per-node work is spread.
func Build(ctx context.Context, exec parallel.Executor, base *Topology, kind Kind) (*View, error) {
	if err := base.Validate(); err != nil {
		return nil, err
	}
	if exec == nil {
		exec = parallel.Serial{}
	}
	offsets := base.Offsets
	if len(offsets) == 0 {
		offsets = []uint64{0}
	}
	b := &builder{
		exec:     exec,
		base:     base,
		offsets:  offsets,
		numNodes: len(offsets) - 1,
		numEdges: len(base.Dests),
	}

	var (
		v   *View
		err error
	)
	switch kind {
	case EdgesSortedByDestID:
		v, err = b.edgesSortedByDest(ctx)
	case NodesSortedByDegreeThenEdgesSortedByDestID:
		v, err = b.nodesSortedByDegree(ctx)
	case EdgeTypeAwareBiDirectional:
		v, err = b.edgeTypeAware(ctx)
	default:
		return nil, domain.ErrInvalidArgument.WithDetailf("unknown view kind %d", uint8(kind))
	}
	if err != nil {
		return nil, err
	}
	v.Kind = kind
	v.NumNodes = b.numNodes
	v.NumEdges = b.numEdges
	return v, nil
}

type builder struct {
	exec     parallel.Executor
	base     *Topology
	offsets  []uint64
	numNodes int
	numEdges int
}

// identityPerm returns [0, 1, ..., n).
func identityPerm(n int) []uint64 {
	perm := make([]uint64, n)
	for i := range perm {
		perm[i] = uint64(i)
	}
	return perm
}

func (b *builder) edgeTypes(perm []uint64) []uint32 {
	if b.base.EdgeTypes == nil {
		return nil
	}
	types := make([]uint32, len(perm))
	for i, e := range perm {
		types[i] = b.base.EdgeTypes[e]
	}
	return types
}

func (b *builder) edgesSortedByDest(ctx context.Context) (*View, error) {
	dests := b.base.Dests
	perm := identityPerm(b.numEdges)

	err := b.exec.ForEach(ctx, b.numNodes, func(_ context.Context, n int) error {
		// Stable over an identity range, so parallel edges keep original order.
		slices.SortStableFunc(perm[b.offsets[n]:b.offsets[n+1]], func(x, y uint64) int {
			return cmp.Compare(dests[x], dests[y])
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]uint32, b.numEdges)
	for i, e := range perm {
		out[i] = dests[e]
	}
	return &View{
		Offsets:         slices.Clone(b.offsets),
		Dests:           out,
		EdgePermutation: perm,
		EdgeTypes:       b.edgeTypes(perm),
	}, nil
}

func (b *builder) nodesSortedByDegree(ctx context.Context) (*View, error) {
	degree := func(n uint32) uint64 { return b.offsets[n+1] - b.offsets[n] }

	newToOld := make([]uint32, b.numNodes)
	for i := range newToOld {
		newToOld[i] = uint32(i)
	}
	slices.SortFunc(newToOld, func(x, y uint32) int {
		if c := cmp.Compare(degree(y), degree(x)); c != 0 {
			return c
		}
		return cmp.Compare(x, y)
	})
	oldToNew := make([]uint32, b.numNodes)
	for newID, oldID := range newToOld {
		oldToNew[oldID] = uint32(newID)
	}

	offsets := make([]uint64, b.numNodes+1)
	for n, old := range newToOld {
		offsets[n+1] = offsets[n] + degree(old)
	}

	dests := b.base.Dests
	perm := make([]uint64, b.numEdges)
	err := b.exec.ForEach(ctx, b.numNodes, func(_ context.Context, n int) error {
		run := perm[offsets[n]:offsets[n+1]]
		first := b.offsets[newToOld[n]]
		for j := range run {
			run[j] = first + uint64(j)
		}
		slices.SortStableFunc(run, func(x, y uint64) int {
			return cmp.Compare(oldToNew[dests[x]], oldToNew[dests[y]])
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]uint32, b.numEdges)
	for i, e := range perm {
		out[i] = oldToNew[dests[e]]
	}
	return &View{
		Offsets:         offsets,
		Dests:           out,
		EdgePermutation: perm,
		NodePermutation: newToOld,
		EdgeTypes:       b.edgeTypes(perm),
	}, nil
}

func (b *builder) edgeTypeAware(ctx context.Context) (*View, error) {
	dests := b.base.Dests
	typeIndex, slotOf := b.distinctTypes()
	numTypes := len(typeIndex)

	// Out-edges: per node, group by type then destination.
	perm := identityPerm(b.numEdges)
	outTypeOffsets := make([]uint64, b.numNodes*numTypes+1)
	err := b.exec.ForEach(ctx, b.numNodes, func(_ context.Context, n int) error {
		lo, hi := b.offsets[n], b.offsets[n+1]
		slices.SortStableFunc(perm[lo:hi], func(x, y uint64) int {
			if c := cmp.Compare(slotOf(x), slotOf(y)); c != 0 {
				return c
			}
			return cmp.Compare(dests[x], dests[y])
		})
		fillTypeRuns(outTypeOffsets[n*numTypes:(n+1)*numTypes], perm, lo, hi, slotOf)
		return nil
	})
	if err != nil {
		return nil, err
	}
	outTypeOffsets[b.numNodes*numTypes] = uint64(b.numEdges)

	out := make([]uint32, b.numEdges)
	for i, e := range perm {
		out[i] = dests[e]
	}

	// In-edges: bucket by destination in (source, edge id) order, then group
	// each bucket by type and source.
	inOffsets := make([]uint64, b.numNodes+1)
	for _, d := range dests {
		inOffsets[d+1]++
	}
	for n := 0; n < b.numNodes; n++ {
		inOffsets[n+1] += inOffsets[n]
	}
	srcOf := make([]uint32, b.numEdges)
	inPerm := make([]uint64, b.numEdges)
	cursor := slices.Clone(inOffsets[:b.numNodes])
	for n := 0; n < b.numNodes; n++ {
		for e := b.offsets[n]; e < b.offsets[n+1]; e++ {
			srcOf[e] = uint32(n)
			d := dests[e]
			inPerm[cursor[d]] = e
			cursor[d]++
		}
	}

	inTypeOffsets := make([]uint64, b.numNodes*numTypes+1)
	err = b.exec.ForEach(ctx, b.numNodes, func(_ context.Context, n int) error {
		lo, hi := inOffsets[n], inOffsets[n+1]
		slices.SortStableFunc(inPerm[lo:hi], func(x, y uint64) int {
			if c := cmp.Compare(slotOf(x), slotOf(y)); c != 0 {
				return c
			}
			return cmp.Compare(srcOf[x], srcOf[y])
		})
		fillTypeRuns(inTypeOffsets[n*numTypes:(n+1)*numTypes], inPerm, lo, hi, slotOf)
		return nil
	})
	if err != nil {
		return nil, err
	}
	inTypeOffsets[b.numNodes*numTypes] = uint64(b.numEdges)

	inSources := make([]uint32, b.numEdges)
	for i, e := range inPerm {
		inSources[i] = srcOf[e]
	}

	return &View{
		Offsets:           slices.Clone(b.offsets),
		Dests:             out,
		EdgePermutation:   perm,
		EdgeTypes:         b.edgeTypes(perm),
		EdgeTypeIndex:     typeIndex,
		OutTypeOffsets:    outTypeOffsets,
		InOffsets:         inOffsets,
		InSources:         inSources,
		InEdgePermutation: inPerm,
		InTypeOffsets:     inTypeOffsets,
	}, nil
}

// distinctTypes returns the sorted distinct edge types and a lookup from
// original edge id to position in that list.
func (b *builder) distinctTypes() ([]uint32, func(e uint64) int) {
	types := b.base.EdgeTypes
	if types == nil {
		if b.numEdges == 0 {
			return []uint32{}, func(uint64) int { return 0 }
		}
		return []uint32{0}, func(uint64) int { return 0 }
	}

	index := slices.Clone(types)
	slices.Sort(index)
	index = slices.Compact(index)

	slot := make(map[uint32]int, len(index))
	for i, t := range index {
		slot[t] = i
	}
	slots := make([]int32, len(types))
	for e, t := range types {
		slots[e] = int32(slot[t])
	}
	return index, func(e uint64) int { return int(slots[e]) }
}

// fillTypeRuns records where each type run of a sorted edge range starts.
func fillTypeRuns(starts []uint64, perm []uint64, lo, hi uint64, slotOf func(uint64) int) {
	pos := lo
	for t := range starts {
		starts[t] = pos
		for pos < hi && slotOf(perm[pos]) == t {
			pos++
		}
	}
}
