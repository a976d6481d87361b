// Package rdgtest builds small RDGs for tests.
package rdgtest

import (
	"context"
	"testing"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/memory"

	"github.com/darabos/katana/internal/rdg"
	"github.com/darabos/katana/internal/storage"
	"github.com/darabos/katana/internal/telemetry/logger"
	"github.com/darabos/katana/internal/topology"
)

// Store returns a file store rooted in a test temp dir.
func Store(t testing.TB) *storage.FileStore {
	t.Helper()
	s, err := storage.NewFileStore(t.TempDir(), logger.Discard())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	return s
}

// Int64s builds an int64 Arrow array.
func Int64s(values ...int64) arrow.Array {
	b := array.NewInt64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewArray()
}

// Strings builds a string Arrow array.
func Strings(values ...string) arrow.Array {
	b := array.NewStringBuilder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewArray()
}

// Bools builds a boolean Arrow array.
func Bools(values ...bool) arrow.Array {
	b := array.NewBooleanBuilder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewArray()
}

// Topology is a 4-node graph with parallel edges:
//
//	0->2, 0->1, 0->2, 0->1, 1->0, 3->0, 3->2
//
// Edge types come from the Graph's type columns.
func Topology() *topology.Topology {
	return &topology.Topology{
		Offsets: []uint64{0, 4, 5, 5, 7},
		Dests:   []uint32{2, 1, 2, 1, 0, 0, 2},
	}
}

// EdgeTypeIDs are the edge entity type ids of Graph(): knows is 1, likes
// is 2.
var EdgeTypeIDs = []uint32{1, 2, 1, 1, 2, 1, 2}

// TypedTopology is Topology with EdgeTypeIDs attached, as an RDG created
// from Graph() loads it.
func TypedTopology() *topology.Topology {
	t := Topology()
	t.EdgeTypes = append([]uint32(nil), EdgeTypeIDs...)
	return t
}

// Graph is the content written by Create: node properties "age" and
// "name", edge property "weight", node types Person/Employee and edge
// types knows/likes.
//
// Node type combinations by node: {Person}, {}, {Person, Employee},
// {Person}; so node type ids are 1, 0, 2, 1. Edge type ids are
// EdgeTypeIDs.
func Graph() *rdg.Graph {
	return &rdg.Graph{
		Topology: Topology(),
		NodeProperties: []rdg.Column{
			{Name: "age", Values: Int64s(31, 42, 27, 55)},
			{Name: "name", Values: Strings("ada", "bob", "cy", "dee")},
		},
		EdgeProperties: []rdg.Column{
			{Name: "weight", Values: Int64s(1, 2, 3, 4, 5, 6, 7)},
		},
		NodeTypes: []rdg.Column{
			{Name: "Person", Values: Bools(true, false, true, true)},
			{Name: "Employee", Values: Bools(false, false, true, false)},
		},
		EdgeTypes: []rdg.Column{
			{Name: "knows", Values: Bools(true, false, true, true, false, true, false)},
			{Name: "likes", Values: Bools(false, true, false, false, true, false, true)},
		},
	}
}

// Create writes Graph() into dir of store at version.
func Create(t testing.TB, store storage.BlobStore, dir string, version rdg.FormatVersion) *rdg.Manifest {
	t.Helper()
	m, err := rdg.Create(context.Background(), store, dir, version, Graph())
	if err != nil {
		t.Fatalf("rdg.Create(v%d) error = %v", version, err)
	}
	return m
}
