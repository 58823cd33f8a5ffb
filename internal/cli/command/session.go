package command

import (
	"errors"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/idbridge/internal/core/domain"
)

// whoamiView is the output of whoami.
type whoamiView struct {
	State      domain.State `json:"state"`
	InternalID string       `json:"internal_id,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// BootstrapCommand runs the session bootstrap once.
func BootstrapCommand() *cli.Command {
	return &cli.Command{
		Name:   "bootstrap",
		Usage:  "Reconcile the persisted identity with the live session",
		Action: bootstrapAction,
	}
}

// StatusCommand prints the persisted state without contacting the network.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show the persisted session state",
		Action: statusAction,
	}
}

// WhoamiCommand bootstraps and prints the current internal id.
func WhoamiCommand() *cli.Command {
	return &cli.Command{
		Name:   "whoami",
		Usage:  "Show the internal id of the signed-in user",
		Action: whoamiAction,
	}
}

// SignOutCommand signs out remotely and clears local identity state.
func SignOutCommand() *cli.Command {
	return &cli.Command{
		Name:    "signout",
		Aliases: []string{"logout"},
		Usage:   "Sign out and clear the local identity",
		Action:  signOutAction,
	}
}

// OnboardingCommand reads or sets the device-level onboarding flag.
func OnboardingCommand() *cli.Command {
	return &cli.Command{
		Name:  "onboarding",
		Usage: "Show or change the onboarding flag",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "done", Usage: "Mark onboarding as completed"},
			&cli.BoolFlag{Name: "reset", Usage: "Mark onboarding as not completed"},
		},
		Action: onboardingAction,
	}
}

func bootstrapAction(c *cli.Context) error {
	cfg, flags, err := loadConfig(c)
	if err != nil {
		return err
	}
	return withRuntime(c.Context, cfg, c.App.ErrWriter, func(rt *Runtime) error {
		st, err := rt.Store.Bootstrap(c.Context)
		if err != nil {
			return err
		}
		return render(c, flags.Output, st)
	})
}

func statusAction(c *cli.Context) error {
	cfg, flags, err := loadConfig(c)
	if err != nil {
		return err
	}
	return withRuntime(c.Context, cfg, c.App.ErrWriter, func(rt *Runtime) error {
		if err := rt.Hydrate(c.Context); err != nil {
			return err
		}
		return render(c, flags.Output, rt.Store.State())
	})
}

func whoamiAction(c *cli.Context) error {
	cfg, flags, err := loadConfig(c)
	if err != nil {
		return err
	}
	return withRuntime(c.Context, cfg, c.App.ErrWriter, func(rt *Runtime) error {
		st, err := rt.Store.Bootstrap(c.Context)
		if err != nil {
			return err
		}
		view := whoamiView{State: st}

		id, idErr := rt.Store.InternalID(c.Context)
		if idErr != nil {
			view.Error = idErr.Error()
		} else {
			view.InternalID = id.String()
		}
		if err := render(c, flags.Output, view); err != nil {
			return err
		}
		return idErr
	})
}

func signOutAction(c *cli.Context) error {
	cfg, flags, err := loadConfig(c)
	if err != nil {
		return err
	}
	return withRuntime(c.Context, cfg, c.App.ErrWriter, func(rt *Runtime) error {
		// The record must be loaded first or the rewrite would drop the
		// onboarding flag.
		if err := rt.Hydrate(c.Context); err != nil {
			return err
		}
		remoteErr := rt.Store.Guard().SignOut(c.Context)
		if remoteErr != nil {
			rt.Logger.Warn("remote sign-out failed, local state cleared", "error", remoteErr)
		}
		return render(c, flags.Output, rt.Store.State())
	})
}

func onboardingAction(c *cli.Context) error {
	if c.Bool("done") && c.Bool("reset") {
		return errors.New("--done and --reset are mutually exclusive")
	}
	cfg, flags, err := loadConfig(c)
	if err != nil {
		return err
	}
	return withRuntime(c.Context, cfg, c.App.ErrWriter, func(rt *Runtime) error {
		if err := rt.Hydrate(c.Context); err != nil {
			return err
		}
		switch {
		case c.Bool("done"):
			rt.Store.SetOnboarded(c.Context, true)
		case c.Bool("reset"):
			rt.Store.SetOnboarded(c.Context, false)
		}
		return render(c, flags.Output, map[string]bool{"onboarded": rt.Store.Onboarded()})
	})
}
