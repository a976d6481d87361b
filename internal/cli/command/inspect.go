package command

import (
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/darabos/katana/internal/cli/output"
	"github.com/darabos/katana/internal/rdg"
	"github.com/darabos/katana/internal/topology"
)

// Inspection summarizes a manifest as stored, without migrating it.
type Inspection struct {
	Dir            string        `json:"dir" yaml:"dir"`
	Version        int           `json:"version" yaml:"version"`
	Current        bool          `json:"current" yaml:"current"`
	NumNodes       uint64        `json:"num_nodes" yaml:"num_nodes"`
	NumEdges       uint64        `json:"num_edges" yaml:"num_edges"`
	NodeProperties []string      `json:"node_properties" yaml:"node_properties"`
	EdgeProperties []string      `json:"edge_properties" yaml:"edge_properties"`
	NodeTypes      []TypeSummary `json:"node_types,omitempty" yaml:"node_types,omitempty"`
	EdgeTypes      []TypeSummary `json:"edge_types,omitempty" yaml:"edge_types,omitempty"`
	Views          []ViewSummary `json:"views,omitempty" yaml:"views,omitempty"`
}

// TypeSummary is one entity type.
type TypeSummary struct {
	ID    uint32   `json:"id" yaml:"id"`
	Names []string `json:"names" yaml:"names"`
}

// ViewSummary is one persisted view.
type ViewSummary struct {
	Kind     topology.Kind `json:"kind" yaml:"kind" table:"KIND"`
	Layout   int           `json:"layout_version" yaml:"layout_version" table:"LAYOUT"`
	NumNodes uint64        `json:"num_nodes" yaml:"num_nodes" table:"NODES"`
	NumEdges uint64        `json:"num_edges" yaml:"num_edges" table:"EDGES"`
	Blob     string        `json:"blob" yaml:"blob" table:"BLOB,wide"`
}

func inspect(dir string, m *rdg.Manifest) *Inspection {
	in := &Inspection{
		Dir:            dir,
		Version:        int(m.Version),
		Current:        m.Version == rdg.CurrentVersion,
		NumNodes:       m.NumNodes,
		NumEdges:       m.NumEdges,
		NodeProperties: m.PropertyNames(rdg.NodeEntity),
		EdgeProperties: m.PropertyNames(rdg.EdgeEntity),
		NodeTypes:      typeSummaries(m, rdg.NodeEntity),
		EdgeTypes:      typeSummaries(m, rdg.EdgeEntity),
	}
	for _, v := range m.TopologyViews {
		in.Views = append(in.Views, ViewSummary{
			Kind:     v.Kind,
			Layout:   v.LayoutVersion,
			NumNodes: v.NumNodes,
			NumEdges: v.NumEdges,
			Blob:     v.Location.Path,
		})
	}
	return in
}

// typeSummaries lists entity types. Version 1 manifests only have type
// names, which are listed without ids.
func typeSummaries(m *rdg.Manifest, kind rdg.EntityKind) []TypeSummary {
	var out []TypeSummary
	if m.Version == rdg.Version1 {
		for _, p := range m.TypeProperties(kind) {
			out = append(out, TypeSummary{Names: []string{p.Name}})
		}
		return out
	}
	for _, t := range m.EntityTypes(kind) {
		out = append(out, TypeSummary{ID: t.ID, Names: t.Names})
	}
	return out
}

func (in *Inspection) table() *output.Table {
	t := &output.Table{Headers: []string{"FIELD", "VALUE"}}
	t.AddRow("DIR", in.Dir)
	version := strconv.Itoa(in.Version)
	if !in.Current {
		version += " (migration needed)"
	}
	t.AddRow("VERSION", version)
	t.AddRow("NODES", strconv.FormatUint(in.NumNodes, 10))
	t.AddRow("EDGES", strconv.FormatUint(in.NumEdges, 10))
	t.AddRow("NODE PROPERTIES", list(in.NodeProperties))
	t.AddRow("EDGE PROPERTIES", list(in.EdgeProperties))
	t.AddRow("NODE TYPES", types(in.NodeTypes))
	t.AddRow("EDGE TYPES", types(in.EdgeTypes))
	for _, v := range in.Views {
		t.AddRow("VIEW", v.Kind.String()+" (layout "+strconv.Itoa(v.Layout)+")")
	}
	return t
}

func list(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ",")
}

func types(ts []TypeSummary) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = strings.Join(t.Names, "+")
		if t.ID != 0 {
			parts[i] = strconv.FormatUint(uint64(t.ID), 10) + "=" + parts[i]
		}
	}
	return list(parts)
}

func (e *env) inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Summarize the manifest of an rdg dir",
		ArgsUsage: "RDG_DIR",
		Action: func(c *cli.Context) error {
			dir, err := rdgDir(c)
			if err != nil {
				return err
			}
			s, err := e.session()
			if err != nil {
				return err
			}
			m, err := rdg.ReadManifest(c.Context, s.Store(), dir)
			if err != nil {
				return err
			}
			in := inspect(dir, m)
			return e.print(in, in.table())
		},
	}
}
