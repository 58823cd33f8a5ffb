package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/idbridge/internal/config"
)

// ConfigCommand prints the effective configuration.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration commands",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the effective configuration with secrets masked",
				Action: func(c *cli.Context) error {
					cfg, flags, err := loadConfig(c)
					if err != nil {
						return err
					}
					return render(c, flags.Output, config.Sanitize(cfg))
				},
			},
			{
				Name:  "validate",
				Usage: "Validate the configuration",
				Action: func(c *cli.Context) error {
					if _, _, err := loadConfig(c); err != nil {
						return err
					}
					_, err := c.App.Writer.Write([]byte("configuration is valid\n"))
					return err
				},
			},
		},
	}
}
