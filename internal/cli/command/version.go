package command

import (
	"github.com/urfave/cli/v2"

	"github.com/darabos/katana/internal/infra/buildinfo"
)

func (e *env) versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print build information",
		Action: func(c *cli.Context) error {
			return e.print(buildinfo.Get(), nil)
		},
	}
}
