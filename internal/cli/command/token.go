package command

import (
	"errors"
	"strings"

	"github.com/urfave/cli/v2"
)

// TokenCommand manages the stored provider access token.
func TokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Manage the stored access token",
		Subcommands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Store the access token used for provider calls",
				ArgsUsage: "TOKEN",
				Action:    tokenSet,
			},
			{
				Name:   "clear",
				Usage:  "Remove the stored access token",
				Action: tokenClear,
			},
		},
	}
}

func tokenSet(c *cli.Context) error {
	token := strings.TrimSpace(c.Args().First())
	if c.NArg() != 1 || token == "" {
		return errors.New("usage: idbridge token set TOKEN")
	}
	cfg, _, err := loadConfig(c)
	if err != nil {
		return err
	}
	return withRuntime(c.Context, cfg, c.App.ErrWriter, func(rt *Runtime) error {
		return rt.Tokens.SetToken(c.Context, token)
	})
}

func tokenClear(c *cli.Context) error {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return err
	}
	return withRuntime(c.Context, cfg, c.App.ErrWriter, func(rt *Runtime) error {
		return rt.Tokens.ClearToken(c.Context)
	})
}
