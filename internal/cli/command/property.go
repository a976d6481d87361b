package command

import (
	"strconv"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/urfave/cli/v2"

	"github.com/darabos/katana/internal/cli/output"
	"github.com/darabos/katana/internal/rdg"
)

// PropertyColumn is a printed property column.
type PropertyColumn struct {
	Kind   rdg.EntityKind `json:"kind" yaml:"kind"`
	Name   string         `json:"name" yaml:"name"`
	Type   string         `json:"type" yaml:"type"`
	Rows   int64          `json:"rows" yaml:"rows"`
	Values []string       `json:"values" yaml:"values"`
}

// columnValues renders up to limit values of the first column of tbl;
// limit <= 0 renders every value. Nulls render as "(null)".
func columnValues(tbl arrow.Table, limit int64) []string {
	n := tbl.NumRows()
	if limit > 0 && limit < n {
		n = limit
	}
	values := make([]string, 0, n)
	for _, chunk := range tbl.Column(0).Data().Chunks() {
		for i := 0; i < chunk.Len() && int64(len(values)) < n; i++ {
			if chunk.IsNull(i) {
				values = append(values, "(null)")
				continue
			}
			values = append(values, chunk.ValueStr(i))
		}
	}
	return values
}

func (p *PropertyColumn) table() *output.Table {
	t := &output.Table{Headers: []string{"INDEX", p.Name + " (" + p.Type + ")"}}
	for i, v := range p.Values {
		t.AddRow(strconv.Itoa(i), v)
	}
	return t
}

func (e *env) propertyCommand() *cli.Command {
	return &cli.Command{
		Name:      "property",
		Usage:     "Print a node or edge property column",
		ArgsUsage: "RDG_DIR",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "name",
				Aliases:  []string{"n"},
				Usage:    "property name",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "kind",
				Usage: "entity kind: node, edge",
				Value: rdg.NodeEntity.String(),
			},
			&cli.Int64Flag{
				Name:  "limit",
				Usage: "print at most this many values (0 prints all)",
				Value: 20,
			},
		},
		Action: func(c *cli.Context) error {
			dir, err := rdgDir(c)
			if err != nil {
				return err
			}
			kind, err := rdg.ParseEntityKind(c.String("kind"))
			if err != nil {
				return err
			}
			s, err := e.session()
			if err != nil {
				return err
			}
			tbl, err := s.Property(c.Context, kind, dir, c.String("name"))
			if err != nil {
				return err
			}
			col := &PropertyColumn{
				Kind:   kind,
				Name:   c.String("name"),
				Type:   tbl.Column(0).DataType().String(),
				Rows:   tbl.NumRows(),
				Values: columnValues(tbl, c.Int64("limit")),
			}
			return e.print(col, col.table())
		},
	}
}
