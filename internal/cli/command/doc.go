// Package command provides the idbridge command definitions.
//
// This package defines all commands using urfave/cli/v2:
//
//   - root.go: App, global flags, config loading
//   - runtime.go: wiring of storage, provider, resolver and session store
//   - session.go: bootstrap, status, whoami, signout and onboarding
//   - resolve.go: one-off identity resolution
//   - token.go: storing the provider access token
//   - config.go: printing the effective configuration
//   - watch.go: long-running mode with config reload and metrics
//
// Commands follow a consistent pattern of loading the configuration,
// building a Runtime, calling the session store and formatting output.
package command
