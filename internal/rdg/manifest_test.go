package rdg_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/darabos/katana/internal/core/domain"
	"github.com/darabos/katana/internal/rdg"
	"github.com/darabos/katana/internal/topology"
)

func sampleManifest() *rdg.Manifest {
	return &rdg.Manifest{
		Version:  rdg.Version3,
		NumNodes: 4,
		NumEdges: 7,
		Topology: rdg.BlobLocation{Path: "topology"},
		NodeProperties: []rdg.PropertyInfo{
			{Name: "age", Location: rdg.BlobLocation{Path: "node_properties", Offset: 0, Length: 100}},
		},
		NodeEntityTypeIDs: &rdg.BlobLocation{Path: "entity_type_ids_node"},
		NodeEntityTypes:   []rdg.EntityType{{ID: 1, Names: []string{"Person"}}},
		EntityTypeIDWidth: rdg.TypeIDWidth32,
		TopologyViews: []rdg.ViewInfo{
			{Kind: topology.EdgesSortedByDestID, LayoutVersion: 1, NumNodes: 4, NumEdges: 7, Location: rdg.BlobLocation{Path: "v1"}},
		},
	}
}

func TestManifest_MarshalParse(t *testing.T) {
	m := sampleManifest()
	data, err := m.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), `"kind": "edges-sorted-by-dest-id"`) {
		t.Errorf("view kind should be stored by name:\n%s", data)
	}
	if !strings.Contains(string(data), `"storage_format_version": 3`) {
		t.Errorf("missing version field:\n%s", data)
	}

	got, err := rdg.ParseManifest(data)
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("manifest mismatch (-want +got):\n%s", diff)
	}
}

func TestParseManifest_Corrupt(t *testing.T) {
	for _, data := range []string{"", "{", `{"topology_views":[{"kind":"bogus"}]}`} {
		if _, err := rdg.ParseManifest([]byte(data)); !errors.Is(err, domain.ErrCorrupt) {
			t.Errorf("ParseManifest(%q) error = %v, want ErrCorrupt", data, err)
		}
	}
}

func TestManifest_CloneIsDeep(t *testing.T) {
	m := sampleManifest()
	c := m.Clone()

	c.NodeProperties[0].Name = "changed"
	c.NodeEntityTypeIDs.Path = "changed"
	c.NodeEntityTypes[0].Names[0] = "changed"
	c.TopologyViews[0].NumNodes = 99

	if diff := cmp.Diff(sampleManifest(), m); diff != "" {
		t.Errorf("mutating the clone changed the original (-want +got):\n%s", diff)
	}
}

func TestManifest_WithView(t *testing.T) {
	m := sampleManifest()

	replaced := m.WithView(rdg.ViewInfo{Kind: topology.EdgesSortedByDestID, LayoutVersion: 1, Location: rdg.BlobLocation{Path: "v2"}})
	added := replaced.WithView(rdg.ViewInfo{Kind: topology.EdgeTypeAwareBiDirectional, LayoutVersion: 1, Location: rdg.BlobLocation{Path: "v3"}})

	if len(m.TopologyViews) != 1 || m.TopologyViews[0].Location.Path != "v1" {
		t.Error("WithView must not modify the receiver")
	}
	if v, _ := replaced.View(topology.EdgesSortedByDestID); v.Location.Path != "v2" || len(replaced.TopologyViews) != 1 {
		t.Errorf("replaced views = %+v", replaced.TopologyViews)
	}
	if len(added.TopologyViews) != 2 {
		t.Fatalf("added views = %+v", added.TopologyViews)
	}
	if _, ok := added.View(topology.NodesSortedByDegreeThenEdgesSortedByDestID); ok {
		t.Error("unrecorded kind should not be found")
	}
}

func TestManifest_Lookups(t *testing.T) {
	m := sampleManifest()

	if p, ok := m.Property(rdg.NodeEntity, "age"); !ok || p.Location.Length != 100 {
		t.Errorf("Property(node, age) = (%+v, %v)", p, ok)
	}
	if _, ok := m.Property(rdg.EdgeEntity, "age"); ok {
		t.Error("age is not an edge property")
	}
	if diff := cmp.Diff([]string{"age"}, m.PropertyNames(rdg.NodeEntity)); diff != "" {
		t.Errorf("PropertyNames mismatch (-want +got):\n%s", diff)
	}
	if m.NumEntities(rdg.EdgeEntity) != 7 {
		t.Errorf("NumEntities(edge) = %d, want 7", m.NumEntities(rdg.EdgeEntity))
	}
}

func TestManifest_CheckNames(t *testing.T) {
	m := sampleManifest()
	if err := m.CheckNames(); err != nil {
		t.Fatalf("CheckNames() error = %v", err)
	}

	m.NodeProperties = append(m.NodeProperties, rdg.PropertyInfo{Name: "age"})
	if err := m.CheckNames(); !errors.Is(err, domain.ErrInvariantViolation) {
		t.Errorf("CheckNames() with duplicate error = %v, want ErrInvariantViolation", err)
	}

	// The same name may be used by a node and an edge property.
	m = sampleManifest()
	m.EdgeProperties = []rdg.PropertyInfo{{Name: "age"}}
	if err := m.CheckNames(); err != nil {
		t.Errorf("CheckNames() across kinds error = %v", err)
	}
}

func TestEntityKind_Parse(t *testing.T) {
	tests := []struct {
		in   string
		want rdg.EntityKind
	}{
		{"node", rdg.NodeEntity},
		{"Edges", rdg.EdgeEntity},
	}
	for _, tt := range tests {
		if got, err := rdg.ParseEntityKind(tt.in); err != nil || got != tt.want {
			t.Errorf("ParseEntityKind(%q) = (%v, %v), want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := rdg.ParseEntityKind("vertex"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("ParseEntityKind(vertex) error = %v, want ErrInvalidArgument", err)
	}
}

func TestFormatVersion_Supported(t *testing.T) {
	for v, want := range map[rdg.FormatVersion]bool{0: false, 1: true, 2: true, 3: true, 4: false, -1: false} {
		if got := v.Supported(); got != want {
			t.Errorf("FormatVersion(%d).Supported() = %v, want %v", v, got, want)
		}
	}
}
