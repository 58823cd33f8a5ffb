package command

import (
	"errors"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/idbridge/internal/core/domain"
)

// ResolveCommand resolves an opaque id to an internal id.
func ResolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve a provider id to the application user id",
		ArgsUsage: "OPAQUE_ID",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "email",
				Aliases: []string{"e"},
				Usage:   "Email used as the cross-system hint",
			},
		},
		Action: resolveAction,
	}
}

func resolveAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("usage: idbridge resolve OPAQUE_ID")
	}
	opaqueID, err := domain.NewOpaqueID(c.Args().First())
	if err != nil {
		return err
	}

	cfg, flags, err := loadConfig(c)
	if err != nil {
		return err
	}
	return withRuntime(c.Context, cfg, c.App.ErrWriter, func(rt *Runtime) error {
		res, err := rt.Resolver.ResolveSession(c.Context, &domain.LiveSession{
			OpaqueID: opaqueID,
			Email:    c.String("email"),
		})
		if err != nil {
			return err
		}
		return render(c, flags.Output, res)
	})
}
