package command

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/darabos/katana/internal/cli/output"
	"github.com/darabos/katana/internal/config"
	"github.com/darabos/katana/internal/core/domain"
	"github.com/darabos/katana/internal/infra/buildinfo"
	"github.com/darabos/katana/internal/infra/confloader"
	"github.com/darabos/katana/internal/session"
	"github.com/darabos/katana/internal/telemetry/logger"
	"github.com/darabos/katana/internal/telemetry/metric"
)

// env is the per-invocation state shared by commands.
type env struct {
	cfg     *config.Config
	log     logger.Logger
	metrics *metric.Registry
	sess    *session.Session

	metricsFile string
	format      output.Format
	wide        bool
	out         io.Writer
}

// App creates the rdgctl application.
func App() *cli.App {
	e := &env{}
	return &cli.App{
		Name:    "rdgctl",
		Usage:   "inspect, migrate and prepare RDG snapshots",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			e.inspectCommand(),
			e.migrateCommand(),
			e.viewCommand(),
			e.propertyCommand(),
			e.configCommand(),
			e.versionCommand(),
		},
		Before: e.before,
		After:  e.after,
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file",
			EnvVars: []string{"KATANA_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "backend",
			Usage: "blob store backend: file, badger",
		},
		&cli.StringFlag{
			Name:    "store",
			Aliases: []string{"s"},
			Usage:   "blob store root directory",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "parallel workers (0 means GOMAXPROCS)",
		},
		&cli.BoolFlag{
			Name:  "persist-views",
			Usage: "write built views back into the rdg",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:  "metrics-file",
			Usage: "write Prometheus metrics to this file on exit",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: table, json, yaml",
			Value:   string(output.FormatTable),
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "show more columns",
		},
	}
}

// overrides maps the global flags that were set to configuration keys.
func overrides(c *cli.Context) map[string]any {
	values := make(map[string]any)
	set := func(flag, key string, value any) {
		if c.IsSet(flag) {
			values[key] = value
		}
	}
	set("backend", "storage.backend", c.String("backend"))
	set("store", "storage.dir", c.String("store"))
	set("workers", "parallel.workers", c.Int("workers"))
	set("persist-views", "views.persist", c.Bool("persist-views"))
	set("log-level", "log.level", c.String("log-level"))
	return values
}

func (e *env) before(c *cli.Context) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	e.format = format
	e.wide = c.Bool("wide")
	e.out = c.App.Writer
	if e.out == nil {
		e.out = os.Stdout
	}
	e.metricsFile = c.String("metrics-file")

	cfg, err := config.Load(
		confloader.WithConfigFile(c.String("config")),
		confloader.WithOverrides(overrides(c)),
	)
	if err != nil {
		return err
	}
	e.cfg = cfg

	lc := cfg.LoggerConfig()
	lc.Output = c.App.ErrWriter
	if lc.Output == nil {
		lc.Output = os.Stderr
	}
	e.log, err = logger.New(lc)
	if err != nil {
		return err
	}
	logger.SetDefault(e.log)
	c.Context = logger.WithLogger(c.Context, e.log)
	e.metrics = metric.NewRegistry()
	return nil
}

// session opens the configured store on first use.
func (e *env) session() (*session.Session, error) {
	if e.sess != nil {
		return e.sess, nil
	}
	s, err := session.NewFromConfig(e.cfg, e.log, e.metrics)
	if err != nil {
		return nil, err
	}
	e.sess = s
	return s, nil
}

func (e *env) after(c *cli.Context) error {
	var firstErr error
	if e.sess != nil {
		firstErr = e.sess.Close()
		e.sess = nil
	}
	if e.metricsFile != "" && e.metrics != nil {
		if err := prometheus.WriteToTextfile(e.metricsFile, e.metrics.Gatherer()); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("write metrics: %w", err)
		}
	}
	return firstErr
}

// print renders data with the selected formatter. Tables use table when
// it is not nil.
func (e *env) print(data any, table *output.Table) error {
	if e.format == output.FormatTable && table != nil {
		return output.NewFormatter(e.format, e.wide).Format(e.out, table)
	}
	return output.NewFormatter(e.format, e.wide).Format(e.out, data)
}

// printDocument renders nested data; tables fall back to YAML.
func (e *env) printDocument(data any) error {
	if e.format == output.FormatTable {
		return (&output.YAMLFormatter{}).Format(e.out, data)
	}
	return e.print(data, nil)
}

// rdgDir returns the single RDG_DIR argument and tags the command's
// logger with it.
func rdgDir(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", domain.ErrInvalidArgument.WithDetailf("%s: expected exactly one RDG_DIR argument, got %d", c.Command.Name, c.NArg())
	}
	dir := c.Args().First()
	c.Context = logger.WithRDG(c.Context, dir)
	return dir, nil
}
