package command

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/idbridge/internal/cli/output"
	"github.com/yndnr/idbridge/internal/config"
	"github.com/yndnr/idbridge/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "idbridge",
		Usage:   "Reconcile the provider session with the application identity",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			BootstrapCommand(),
			StatusCommand(),
			WhoamiCommand(),
			ResolveCommand(),
			SignOutCommand(),
			OnboardingCommand(),
			TokenCommand(),
			ConfigCommand(),
			WatchCommand(),
		},
		Before: func(c *cli.Context) error {
			_, err := output.ParseFormat(c.String("output"))
			return err
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			EnvVars: []string{"IDBRIDGE_CONFIG"},
		},
		&cli.StringSliceFlag{
			Name:  "set",
			Usage: "Override a config key (e.g. --set auth.base_url=http://localhost:54321)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable debug logging",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	ConfigFile string
	Overrides  map[string]any
	Output     output.Format
	Verbose    bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) (*GlobalFlags, error) {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return nil, err
	}
	overrides, err := parseOverrides(c.StringSlice("set"))
	if err != nil {
		return nil, err
	}
	return &GlobalFlags{
		ConfigFile: c.String("config"),
		Overrides:  overrides,
		Output:     format,
		Verbose:    c.Bool("verbose"),
	}, nil
}

func parseOverrides(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q (want key=value)", p)
		}
		out[key] = value
	}
	return out, nil
}

// loadConfig loads the configuration named by the global flags.
func loadConfig(c *cli.Context) (*config.Config, *GlobalFlags, error) {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return nil, nil, err
	}
	if flags.Verbose {
		flags.Overrides["log.level"] = "debug"
	}
	cfg, err := config.Load(flags.ConfigFile, flags.Overrides)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, flags, nil
}

// render writes data to the app's writer in the selected format.
func render(c *cli.Context, format output.Format, data any) error {
	return output.Print(c.App.Writer, format, data)
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
