package command

import (
	"github.com/urfave/cli/v2"

	"github.com/darabos/katana/internal/migrate"
	"github.com/darabos/katana/internal/parallel"
	"github.com/darabos/katana/internal/rdg"
	"github.com/darabos/katana/internal/telemetry/logger"
)

// MigrationResult reports one migrate run.
type MigrationResult struct {
	Dir     string `json:"dir" yaml:"dir" table:"DIR"`
	From    int    `json:"from" yaml:"from" table:"FROM"`
	To      int    `json:"to" yaml:"to" table:"TO"`
	Written bool   `json:"written" yaml:"written" table:"WRITTEN"`
}

func (e *env) migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Upgrade an rdg dir to a newer format version",
		Description: "Blobs the new version needs are always written. The manifest is\n" +
			"only replaced with --write; until then readers keep seeing the old version.",
		ArgsUsage: "RDG_DIR",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "write",
				Usage: "replace the manifest with the migrated one",
			},
			&cli.IntFlag{
				Name:  "to",
				Usage: "target format version",
				Value: int(rdg.CurrentVersion),
			},
		},
		Action: func(c *cli.Context) error {
			dir, err := rdgDir(c)
			if err != nil {
				return err
			}
			s, err := e.session()
			if err != nil {
				return err
			}

			migrator := s.Migrator()
			if target := rdg.FormatVersion(c.Int("to")); target != migrator.Target() {
				migrator = migrate.New(s.Store(), parallel.New(e.cfg.Parallel.Workers),
					migrate.TargetVersion(target),
					migrate.WithLogger(e.log),
					migrate.WithObserver(e.metrics),
				)
			}

			m, err := rdg.ReadManifest(c.Context, s.Store(), dir)
			if err != nil {
				return err
			}
			migrated, err := migrator.Migrate(c.Context, dir, m)
			if err != nil {
				return err
			}

			res := MigrationResult{Dir: dir, From: int(m.Version), To: int(migrated.Version)}
			if c.Bool("write") && migrated.Version != m.Version {
				if err := rdg.WriteManifest(c.Context, s.Store(), dir, migrated); err != nil {
					return err
				}
				res.Written = true
				logger.L(c.Context).Info("manifest migrated", "from", res.From, "to", res.To)
			}
			return e.print(res, nil)
		},
	}
}
