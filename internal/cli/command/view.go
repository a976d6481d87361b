package command

import (
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/darabos/katana/internal/core/domain"
	"github.com/darabos/katana/internal/telemetry/logger"
	"github.com/darabos/katana/internal/topology"
)

// ViewResult reports one view request.
type ViewResult struct {
	Kind     topology.Kind `json:"kind" yaml:"kind" table:"KIND"`
	NumNodes int           `json:"num_nodes" yaml:"num_nodes" table:"NODES"`
	NumEdges int           `json:"num_edges" yaml:"num_edges" table:"EDGES"`
	State    string        `json:"state" yaml:"state" table:"STATE"`
	Built    bool          `json:"built" yaml:"built" table:"BUILT"`
	Elapsed  string        `json:"elapsed" yaml:"elapsed" table:"ELAPSED,wide"`
}

func kindNames() string {
	var names []string
	for _, k := range topology.Kinds() {
		names = append(names, k.String())
	}
	return strings.Join(names, ", ")
}

func (e *env) viewCommand() *cli.Command {
	return &cli.Command{
		Name:      "view",
		Usage:     "Load or build topology views of an rdg dir",
		ArgsUsage: "RDG_DIR",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "kind",
				Aliases: []string{"k"},
				Usage:   "view kind, repeatable: " + kindNames(),
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "every view kind",
			},
		},
		Action: func(c *cli.Context) error {
			dir, err := rdgDir(c)
			if err != nil {
				return err
			}
			kinds, err := viewKinds(c)
			if err != nil {
				return err
			}
			s, err := e.session()
			if err != nil {
				return err
			}
			r, err := s.Open(c.Context, dir)
			if err != nil {
				return err
			}
			base, err := r.Topology(c.Context)
			if err != nil {
				return err
			}

			var results []ViewResult
			for _, kind := range kinds {
				builds := s.Catalog().Builds()
				start := time.Now()
				v, err := s.View(c.Context, dir, kind)
				if err != nil {
					return err
				}
				logger.L(c.Context).Debug("view ready", "kind", kind.String(), "elapsed", time.Since(start))
				results = append(results, ViewResult{
					Kind:     kind,
					NumNodes: v.NumNodes,
					NumEdges: v.NumEdges,
					State:    s.Catalog().State(r, base, kind).String(),
					Built:    s.Catalog().Builds() > builds,
					Elapsed:  time.Since(start).Round(time.Microsecond).String(),
				})
			}
			return e.print(results, nil)
		},
	}
}

func viewKinds(c *cli.Context) ([]topology.Kind, error) {
	if c.Bool("all") {
		return topology.Kinds(), nil
	}
	names := c.StringSlice("kind")
	if len(names) == 0 {
		return nil, domain.ErrInvalidArgument.WithDetailf("view: --kind or --all is required; kinds are %s", kindNames())
	}
	kinds := make([]topology.Kind, 0, len(names))
	for _, name := range names {
		k, err := topology.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}
