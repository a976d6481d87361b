package topology

import (
	"fmt"
	"strings"

	"github.com/darabos/katana/internal/core/domain"
)

// Topology is a base adjacency in CSR form.
//
// Node n's out-edges are the edge ids in [Offsets[n], Offsets[n+1]).
// EdgeTypes is either nil (every edge has type 0) or parallel to Dests. It
// is not part of the topology blob; an RDG fills it from its edge entity
// type ids.
type Topology struct {
	Offsets   []uint64 `json:"offsets"`
	Dests     []uint32 `json:"dests"`
	EdgeTypes []uint32 `json:"edge_types,omitempty"`
}

// FromEdges builds a Topology from (src, dest) pairs, keeping the relative
// order of each source's edges. types may be nil.
func FromEdges(numNodes int, srcs, dests, types []uint32) (*Topology, error) {
	if len(srcs) != len(dests) || (types != nil && len(types) != len(dests)) {
		return nil, domain.ErrInvalidArgument.WithDetailf("edge arrays differ in length: %d srcs, %d dests, %d types", len(srcs), len(dests), len(types))
	}

	offsets := make([]uint64, numNodes+1)
	for i, s := range srcs {
		if int(s) >= numNodes || int(dests[i]) >= numNodes {
			return nil, domain.ErrInvalidArgument.WithDetailf("edge %d (%d->%d) outside %d nodes", i, s, dests[i], numNodes)
		}
		offsets[s+1]++
	}
	for n := 0; n < numNodes; n++ {
		offsets[n+1] += offsets[n]
	}

	cursor := make([]uint64, numNodes)
	copy(cursor, offsets[:numNodes])
	t := &Topology{Offsets: offsets, Dests: make([]uint32, len(dests))}
	if types != nil {
		t.EdgeTypes = make([]uint32, len(types))
	}
	for i, s := range srcs {
		e := cursor[s]
		cursor[s]++
		t.Dests[e] = dests[i]
		if types != nil {
			t.EdgeTypes[e] = types[i]
		}
	}
	return t, nil
}

// NumNodes returns the node count.
func (t *Topology) NumNodes() int {
	if len(t.Offsets) == 0 {
		return 0
	}
	return len(t.Offsets) - 1
}

// NumEdges returns the edge count.
func (t *Topology) NumEdges() int {
	return len(t.Dests)
}

// OutEdges returns node n's edge id range.
func (t *Topology) OutEdges(n uint32) (lo, hi uint64) {
	return t.Offsets[n], t.Offsets[n+1]
}

// Degree returns node n's out-degree.
func (t *Topology) Degree(n uint32) uint64 {
	return t.Offsets[n+1] - t.Offsets[n]
}

// EdgeType returns the type of edge e.
func (t *Topology) EdgeType(e uint64) uint32 {
	if t.EdgeTypes == nil {
		return 0
	}
	return t.EdgeTypes[e]
}

// Validate checks the CSR invariants.
func (t *Topology) Validate() error {
	if len(t.Offsets) == 0 {
		if len(t.Dests) != 0 {
			return domain.ErrInvariantViolation.WithDetailf("topology has %d edges but no offsets", len(t.Dests))
		}
		return nil
	}
	if t.Offsets[0] != 0 {
		return domain.ErrInvariantViolation.WithDetailf("topology offsets start at %d", t.Offsets[0])
	}
	numNodes := uint64(t.NumNodes())
	for n := 1; n < len(t.Offsets); n++ {
		if t.Offsets[n] < t.Offsets[n-1] {
			return domain.ErrInvariantViolation.WithDetailf("topology offsets decrease at node %d", n-1)
		}
	}
	if last := t.Offsets[len(t.Offsets)-1]; last != uint64(len(t.Dests)) {
		return domain.ErrInvariantViolation.WithDetailf("topology offsets end at %d, have %d edges", last, len(t.Dests))
	}
	for e, d := range t.Dests {
		if uint64(d) >= numNodes {
			return domain.ErrInvariantViolation.WithDetailf("edge %d points to node %d of %d", e, d, numNodes)
		}
	}
	if t.EdgeTypes != nil && len(t.EdgeTypes) != len(t.Dests) {
		return domain.ErrInvariantViolation.WithDetailf("%d edge types for %d edges", len(t.EdgeTypes), len(t.Dests))
	}
	return nil
}

// Kind identifies a view variant.
type Kind uint8

// View kinds. New kinds are appended; the numeric value is persisted.
const (
	EdgesSortedByDestID Kind = iota + 1
	NodesSortedByDegreeThenEdgesSortedByDestID
	EdgeTypeAwareBiDirectional
)

var kindNames = map[Kind]string{
	EdgesSortedByDestID:                        "edges-sorted-by-dest-id",
	NodesSortedByDegreeThenEdgesSortedByDestID: "nodes-sorted-by-degree-edges-sorted-by-dest-id",
	EdgeTypeAwareBiDirectional:                 "edge-type-aware-bidirectional",
}

// Kinds returns every view kind in declaration order.
func Kinds() []Kind {
	return []Kind{EdgesSortedByDestID, NodesSortedByDegreeThenEdgesSortedByDestID, EdgeTypeAwareBiDirectional}
}

// String returns the kind's persisted name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind parses a kind name. Short aliases are accepted for the CLI.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "edges-sorted-by-dest-id", "edges-sorted", "sorted":
		return EdgesSortedByDestID, nil
	case "nodes-sorted-by-degree-edges-sorted-by-dest-id", "nodes-sorted", "degree":
		return NodesSortedByDegreeThenEdgesSortedByDestID, nil
	case "edge-type-aware-bidirectional", "edge-type-aware", "bidir":
		return EdgeTypeAwareBiDirectional, nil
	default:
		return 0, domain.ErrInvalidArgument.WithDetailf("unknown view kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("topology: invalid kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
