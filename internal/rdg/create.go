package rdg

import (
	"bytes"
	"context"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/memory"

	"github.com/darabos/katana/internal/core/domain"
	"github.com/darabos/katana/internal/storage"
	"github.com/darabos/katana/internal/topology"
)

// Blob names written by Create.
const (
	topologyBlob = "topology"
)

func propertiesBlob(kind EntityKind) string     { return kind.String() + "_properties" }
func typePropertiesBlob(kind EntityKind) string { return kind.String() + "_type_properties" }

// TypeIDBlobName is the blob holding the entity type ids of kind. The name
// is fixed so that re-running a migration rewrites the same blob.
func TypeIDBlobName(kind EntityKind) string {
	return "entity_type_ids_" + kind.String()
}

// Graph is the content of a new RDG. Topology.EdgeTypes is not stored;
// edge types are given by EdgeTypes.
type Graph struct {
	Topology       *topology.Topology
	NodeProperties []Column
	EdgeProperties []Column
	// NodeTypes and EdgeTypes are boolean columns named after entity
	// types. Version 1 stores them as is; later versions store the entity
	// type ids derived from them.
	NodeTypes []Column
	EdgeTypes []Column
}

// Create writes g as a new RDG in dir at the given format version and
// returns its manifest. Properties of one kind are packed into a single
// blob and located by byte range.
func Create(ctx context.Context, store storage.BlobStore, dir string, version FormatVersion, g *Graph) (*Manifest, error) {
	if !version.Supported() {
		return nil, domain.ErrUnsupportedVersion.WithDetailf("create %s at version %d", dir, version)
	}
	if g.Topology == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("create: topology is required")
	}
	if err := g.Topology.Validate(); err != nil {
		return nil, err
	}
	mem := memory.DefaultAllocator

	var topo bytes.Buffer
	if err := g.Topology.Encode(&topo); err != nil {
		return nil, err
	}
	if err := store.WriteBlob(ctx, dir, topologyBlob, topo.Bytes()); err != nil {
		return nil, err
	}

	m := &Manifest{
		Version:  version,
		NumNodes: uint64(g.Topology.NumNodes()),
		NumEdges: uint64(g.Topology.NumEdges()),
		Topology: BlobLocation{Path: topologyBlob},
	}

	var err error
	if m.NodeProperties, err = writePacked(ctx, store, mem, dir, propertiesBlob(NodeEntity), g.NodeProperties, m.NumNodes); err != nil {
		return nil, err
	}
	if m.EdgeProperties, err = writePacked(ctx, store, mem, dir, propertiesBlob(EdgeEntity), g.EdgeProperties, m.NumEdges); err != nil {
		return nil, err
	}

	if version == Version1 {
		if m.NodeTypeProperties, err = writePacked(ctx, store, mem, dir, typePropertiesBlob(NodeEntity), g.NodeTypes, m.NumNodes); err != nil {
			return nil, err
		}
		if m.EdgeTypeProperties, err = writePacked(ctx, store, mem, dir, typePropertiesBlob(EdgeEntity), g.EdgeTypes, m.NumEdges); err != nil {
			return nil, err
		}
	} else {
		width := TypeIDWidth16
		if version >= Version3 {
			width = TypeIDWidth32
			m.TopologyViews = []ViewInfo{}
		}
		m.EntityTypeIDWidth = width

		for _, kind := range []EntityKind{NodeEntity, EdgeEntity} {
			cols := g.NodeTypes
			if kind == EdgeEntity {
				cols = g.EdgeTypes
			}
			loc, types, err := writeTypeIDs(ctx, store, mem, dir, kind, cols, m.NumEntities(kind), width)
			if err != nil {
				return nil, err
			}
			if kind == NodeEntity {
				m.NodeEntityTypeIDs, m.NodeEntityTypes = loc, types
			} else {
				m.EdgeEntityTypeIDs, m.EdgeEntityTypes = loc, types
			}
		}
	}

	if err := WriteManifest(ctx, store, dir, m); err != nil {
		return nil, err
	}
	return m, nil
}

// writePacked encodes cols back to back into one blob.
func writePacked(ctx context.Context, store storage.BlobStore, mem memory.Allocator, dir, blob string, cols []Column, rows uint64) ([]PropertyInfo, error) {
	if len(cols) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	infos := make([]PropertyInfo, 0, len(cols))
	seen := make(map[string]struct{}, len(cols))
	for _, col := range cols {
		if _, dup := seen[col.Name]; dup {
			return nil, domain.ErrInvariantViolation.WithDetailf("duplicate column %q in %s", col.Name, blob)
		}
		seen[col.Name] = struct{}{}
		if uint64(col.Values.Len()) != rows {
			return nil, domain.ErrInvalidArgument.WithDetailf("column %q has %d rows, want %d", col.Name, col.Values.Len(), rows)
		}

		data, err := EncodeColumn(mem, col.Name, col.Values)
		if err != nil {
			return nil, err
		}
		infos = append(infos, PropertyInfo{
			Name:     col.Name,
			Location: BlobLocation{Path: blob, Offset: int64(buf.Len()), Length: int64(len(data))},
		})
		buf.Write(data)
	}

	if err := store.WriteBlob(ctx, dir, blob, buf.Bytes()); err != nil {
		return nil, err
	}
	return infos, nil
}

func writeTypeIDs(ctx context.Context, store storage.BlobStore, mem memory.Allocator, dir string, kind EntityKind, cols []Column, rows uint64, width int) (*BlobLocation, []EntityType, error) {
	names := make([]string, len(cols))
	values := make([][]bool, len(cols))
	for i, col := range cols {
		vals, err := boolValues(col.Values)
		if err != nil {
			return nil, nil, err
		}
		names[i], values[i] = col.Name, vals
	}

	ids, types, err := SynthesizeTypeIDs(names, values, rows)
	if err != nil {
		return nil, nil, err
	}
	data, err := EncodeTypeIDs(mem, ids, width)
	if err != nil {
		return nil, nil, err
	}
	name := TypeIDBlobName(kind)
	if err := store.WriteBlob(ctx, dir, name, data); err != nil {
		return nil, nil, err
	}
	return &BlobLocation{Path: name}, types, nil
}

func boolValues(arr arrow.Array) ([]bool, error) {
	b, ok := arr.(*array.Boolean)
	if !ok {
		return nil, domain.ErrInvalidArgument.WithDetailf("type column has type %s, want bool", arr.DataType())
	}
	out := make([]bool, b.Len())
	for i := range out {
		out[i] = b.IsValid(i) && b.Value(i)
	}
	return out, nil
}
