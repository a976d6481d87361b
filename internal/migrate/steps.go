package migrate

import (
	"context"

	"github.com/darabos/katana/internal/core/domain"
	"github.com/darabos/katana/internal/rdg"
)

// step upgrades a cloned manifest by exactly one version in place.
type step struct {
	from, to rdg.FormatVersion
	apply    func(m *Migrator, ctx context.Context, dir string, man *rdg.Manifest) error
}

var steps = []step{
	{from: rdg.Version1, to: rdg.Version2, apply: (*Migrator).synthesizeTypeIDs},
	{from: rdg.Version2, to: rdg.Version3, apply: (*Migrator).addViewSection},
}

// synthesizeTypeIDs replaces the boolean type-property columns of each
// entity kind with a 16-bit entity type id array. The id blob has a fixed
// name and deterministic content, so re-running the step rewrites it
// unchanged.
func (m *Migrator) synthesizeTypeIDs(ctx context.Context, dir string, man *rdg.Manifest) error {
	for _, kind := range []rdg.EntityKind{rdg.NodeEntity, rdg.EdgeEntity} {
		props := man.TypeProperties(kind)
		rows := man.NumEntities(kind)

		names := make([]string, len(props))
		columns := make([][]bool, len(props))
		err := m.exec.ForEach(ctx, len(props), func(ctx context.Context, i int) error {
			col, err := m.readTypeColumn(ctx, dir, props[i], rows)
			if err != nil {
				return err
			}
			names[i], columns[i] = props[i].Name, col
			return nil
		})
		if err != nil {
			return err
		}

		ids, types, err := rdg.SynthesizeTypeIDs(names, columns, rows)
		if err != nil {
			return err
		}
		data, err := rdg.EncodeTypeIDs(m.mem, ids, rdg.TypeIDWidth16)
		if err != nil {
			return err
		}
		name := rdg.TypeIDBlobName(kind)
		if err := m.store.WriteBlob(ctx, dir, name, data); err != nil {
			return err
		}

		loc := &rdg.BlobLocation{Path: name}
		if kind == rdg.NodeEntity {
			man.NodeEntityTypeIDs, man.NodeEntityTypes, man.NodeTypeProperties = loc, types, nil
		} else {
			man.EdgeEntityTypeIDs, man.EdgeEntityTypes, man.EdgeTypeProperties = loc, types, nil
		}
		m.logger.Debug("synthesized entity type ids", "rdg_dir", dir, "kind", kind.String(),
			"columns", len(props), "types", len(types))
	}
	man.EntityTypeIDWidth = rdg.TypeIDWidth16
	return nil
}

func (m *Migrator) readTypeColumn(ctx context.Context, dir string, prop rdg.PropertyInfo, rows uint64) ([]bool, error) {
	loc := prop.Location
	data, err := m.store.ReadRange(ctx, dir, loc.Path, loc.Offset, loc.Length)
	if err != nil {
		return nil, err
	}
	tbl, err := rdg.DecodeColumn(m.mem, data, prop.Name, rows)
	if err != nil {
		return nil, err
	}
	defer tbl.Release()
	return rdg.BoolColumn(tbl)
}

// addViewSection opens the persisted view section and moves the id width
// marker to 32 bits. Stored 16-bit arrays are widened when read.
func (m *Migrator) addViewSection(_ context.Context, dir string, man *rdg.Manifest) error {
	if man.NodeEntityTypeIDs == nil || man.EdgeEntityTypeIDs == nil {
		return domain.ErrCorrupt.WithDetailf("migrate %s: version 2 manifest without entity type ids", dir)
	}
	if man.TopologyViews == nil {
		man.TopologyViews = []rdg.ViewInfo{}
	}
	man.EntityTypeIDWidth = rdg.TypeIDWidth32
	return nil
}
