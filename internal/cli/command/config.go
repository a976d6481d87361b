package command

import (
	"github.com/urfave/cli/v2"

	"github.com/darabos/katana/internal/config"
)

func (e *env) configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration commands",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the effective configuration after file, environment and flags",
				Action: func(c *cli.Context) error {
					return e.printDocument(e.cfg)
				},
			},
			{
				Name:  "defaults",
				Usage: "Print the built-in defaults",
				Action: func(c *cli.Context) error {
					return e.printDocument(config.Default())
				},
			},
		},
	}
}
