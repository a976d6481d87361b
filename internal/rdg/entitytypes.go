package rdg

import (
	"slices"
	"strings"

	"github.com/darabos/katana/internal/core/domain"
)

// SynthesizeTypeIDs derives entity type ids from boolean type columns.
//
// Each entity's set of true columns is one entity type. Types are numbered
// from 1 in order of first appearance; entities with no true column get 0.
// The result depends only on the inputs, so re-running it reproduces the
// same ids.
func SynthesizeTypeIDs(names []string, columns [][]bool, numEntities uint64) ([]uint32, []EntityType, error) {
	if len(names) != len(columns) {
		return nil, nil, domain.ErrInvalidArgument.WithDetailf("%d type names for %d columns", len(names), len(columns))
	}
	for i, col := range columns {
		if uint64(len(col)) != numEntities {
			return nil, nil, domain.ErrCorrupt.WithDetailf("type column %q has %d rows, want %d", names[i], len(col), numEntities)
		}
	}

	ids := make([]uint32, numEntities)
	byKey := make(map[string]uint32)
	var types []EntityType

	var set []int
	var key strings.Builder
	for e := uint64(0); e < numEntities; e++ {
		set = set[:0]
		for c, col := range columns {
			if col[e] {
				set = append(set, c)
			}
		}
		if len(set) == 0 {
			continue
		}

		key.Reset()
		for _, c := range set {
			key.WriteString(names[c])
			key.WriteByte(0)
		}
		id, ok := byKey[key.String()]
		if !ok {
			id = uint32(len(types) + 1)
			byKey[key.String()] = id
			typeNames := make([]string, len(set))
			for i, c := range set {
				typeNames[i] = names[c]
			}
			slices.Sort(typeNames)
			types = append(types, EntityType{ID: id, Names: typeNames})
		}
		ids[e] = id
	}
	return ids, types, nil
}
