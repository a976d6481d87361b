package rdg

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/darabos/katana/internal/core/domain"
	"github.com/darabos/katana/internal/topology"
)

// ManifestName is the manifest blob name inside an rdg dir.
const ManifestName = "manifest.json"

// FormatVersion is the storage format version of a manifest.
type FormatVersion int

// Known format versions.
const (
	// Version1 stores entity types as boolean type-property columns.
	Version1 FormatVersion = 1
	// Version2 adds 16-bit entity type id arrays.
	Version2 FormatVersion = 2
	// Version3 widens entity type ids to 32 bits and adds persisted
	// topology views.
	Version3 FormatVersion = 3

	CurrentVersion = Version3
)

// Entity type id storage widths.
const (
	TypeIDWidth16 = 16
	TypeIDWidth32 = 32
)

// Supported reports whether v is a version this build understands.
func (v FormatVersion) Supported() bool {
	return v >= Version1 && v <= CurrentVersion
}

// EntityKind distinguishes node and edge properties.
type EntityKind uint8

// Entity kinds.
const (
	NodeEntity EntityKind = iota + 1
	EdgeEntity
)

func (k EntityKind) String() string {
	switch k {
	case NodeEntity:
		return "node"
	case EdgeEntity:
		return "edge"
	default:
		return fmt.Sprintf("entity(%d)", uint8(k))
	}
}

// ParseEntityKind parses "node" or "edge".
func ParseEntityKind(s string) (EntityKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "node", "nodes":
		return NodeEntity, nil
	case "edge", "edges":
		return EdgeEntity, nil
	default:
		return 0, domain.ErrInvalidArgument.WithDetailf("unknown entity kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k EntityKind) MarshalText() ([]byte, error) {
	if k != NodeEntity && k != EdgeEntity {
		return nil, fmt.Errorf("rdg: invalid entity kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EntityKind) UnmarshalText(text []byte) error {
	parsed, err := ParseEntityKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// BlobLocation is a byte range of a blob in the rdg dir. Length 0 means
// the rest of the blob.
type BlobLocation struct {
	Path   string `json:"path"`
	Offset int64  `json:"offset,omitempty"`
	Length int64  `json:"length,omitempty"`
}

// PropertyInfo locates one property column.
type PropertyInfo struct {
	Name     string       `json:"name"`
	Location BlobLocation `json:"location"`
}

// EntityType is one combination of type names. ID 0 is reserved for
// entities without a type and is never listed.
type EntityType struct {
	ID    uint32   `json:"id"`
	Names []string `json:"names"`
}

// ViewInfo locates a persisted topology view.
type ViewInfo struct {
	Kind          topology.Kind `json:"kind"`
	LayoutVersion int           `json:"layout_version"`
	NumNodes      uint64        `json:"num_nodes"`
	NumEdges      uint64        `json:"num_edges"`
	Location      BlobLocation  `json:"location"`
}

// Manifest describes an RDG.
type Manifest struct {
	Version  FormatVersion `json:"storage_format_version"`
	NumNodes uint64        `json:"num_nodes"`
	NumEdges uint64        `json:"num_edges"`
	Topology BlobLocation  `json:"topology"`

	NodeProperties []PropertyInfo `json:"node_properties"`
	EdgeProperties []PropertyInfo `json:"edge_properties"`

	// Version 1 only: boolean columns, one per type name.
	NodeTypeProperties []PropertyInfo `json:"node_type_properties,omitempty"`
	EdgeTypeProperties []PropertyInfo `json:"edge_type_properties,omitempty"`

	// Version 2 and later.
	NodeEntityTypeIDs *BlobLocation `json:"node_entity_type_ids,omitempty"`
	EdgeEntityTypeIDs *BlobLocation `json:"edge_entity_type_ids,omitempty"`
	NodeEntityTypes   []EntityType  `json:"node_entity_types,omitempty"`
	EdgeEntityTypes   []EntityType  `json:"edge_entity_types,omitempty"`
	EntityTypeIDWidth int           `json:"entity_type_id_width,omitempty"`

	// Version 3 and later.
	TopologyViews []ViewInfo `json:"topology_views,omitempty"`
}

// ParseManifest decodes a manifest blob. Malformed JSON is reported as
// domain.ErrCorrupt; the version is not checked here.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, domain.ErrCorrupt.WithDetails("manifest").WithCause(err)
	}
	return &m, nil
}

// Marshal encodes the manifest as indented JSON.
func (m *Manifest) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("rdg: marshal manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// Clone returns a deep copy.
func (m *Manifest) Clone() *Manifest {
	c := *m
	c.NodeProperties = slices.Clone(m.NodeProperties)
	c.EdgeProperties = slices.Clone(m.EdgeProperties)
	c.NodeTypeProperties = slices.Clone(m.NodeTypeProperties)
	c.EdgeTypeProperties = slices.Clone(m.EdgeTypeProperties)
	c.NodeEntityTypeIDs = cloneLocation(m.NodeEntityTypeIDs)
	c.EdgeEntityTypeIDs = cloneLocation(m.EdgeEntityTypeIDs)
	c.NodeEntityTypes = cloneEntityTypes(m.NodeEntityTypes)
	c.EdgeEntityTypes = cloneEntityTypes(m.EdgeEntityTypes)
	c.TopologyViews = slices.Clone(m.TopologyViews)
	return &c
}

func cloneLocation(l *BlobLocation) *BlobLocation {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

func cloneEntityTypes(types []EntityType) []EntityType {
	if types == nil {
		return nil
	}
	out := make([]EntityType, len(types))
	for i, t := range types {
		out[i] = EntityType{ID: t.ID, Names: slices.Clone(t.Names)}
	}
	return out
}

// Properties returns the property list of kind.
func (m *Manifest) Properties(kind EntityKind) []PropertyInfo {
	if kind == EdgeEntity {
		return m.EdgeProperties
	}
	return m.NodeProperties
}

// Property finds a property by name.
func (m *Manifest) Property(kind EntityKind, name string) (PropertyInfo, bool) {
	for _, p := range m.Properties(kind) {
		if p.Name == name {
			return p, true
		}
	}
	return PropertyInfo{}, false
}

// PropertyNames returns the property names of kind in manifest order.
func (m *Manifest) PropertyNames(kind EntityKind) []string {
	props := m.Properties(kind)
	names := make([]string, len(props))
	for i, p := range props {
		names[i] = p.Name
	}
	return names
}

// TypeProperties returns the version 1 type-property columns of kind.
func (m *Manifest) TypeProperties(kind EntityKind) []PropertyInfo {
	if kind == EdgeEntity {
		return m.EdgeTypeProperties
	}
	return m.NodeTypeProperties
}

// EntityTypeIDs returns the id array location of kind, or nil.
func (m *Manifest) EntityTypeIDs(kind EntityKind) *BlobLocation {
	if kind == EdgeEntity {
		return m.EdgeEntityTypeIDs
	}
	return m.NodeEntityTypeIDs
}

// EntityTypes returns the entity type catalog of kind.
func (m *Manifest) EntityTypes(kind EntityKind) []EntityType {
	if kind == EdgeEntity {
		return m.EdgeEntityTypes
	}
	return m.NodeEntityTypes
}

// NumEntities returns the node or edge count.
func (m *Manifest) NumEntities(kind EntityKind) uint64 {
	if kind == EdgeEntity {
		return m.NumEdges
	}
	return m.NumNodes
}

// View returns the persisted view of kind, if recorded.
func (m *Manifest) View(kind topology.Kind) (ViewInfo, bool) {
	for _, v := range m.TopologyViews {
		if v.Kind == kind {
			return v, true
		}
	}
	return ViewInfo{}, false
}

// WithView returns a copy of m with info recorded, replacing any previous
// view of the same kind.
func (m *Manifest) WithView(info ViewInfo) *Manifest {
	c := m.Clone()
	views := make([]ViewInfo, 0, len(c.TopologyViews)+1)
	for _, v := range c.TopologyViews {
		if v.Kind != info.Kind {
			views = append(views, v)
		}
	}
	views = append(views, info)
	slices.SortFunc(views, func(a, b ViewInfo) int { return int(a.Kind) - int(b.Kind) })
	c.TopologyViews = views
	return c
}

// CheckNames rejects duplicate property names within a kind.
func (m *Manifest) CheckNames() error {
	for _, kind := range []EntityKind{NodeEntity, EdgeEntity} {
		seen := make(map[string]struct{})
		for _, p := range m.Properties(kind) {
			if _, dup := seen[p.Name]; dup {
				return domain.ErrInvariantViolation.WithDetailf("duplicate %s property %q", kind, p.Name)
			}
			seen[p.Name] = struct{}{}
		}
	}
	return nil
}
