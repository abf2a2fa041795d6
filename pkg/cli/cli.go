// Package cli provides the command-line interface for fastest-runner.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// errScriptsFailed is returned by run when at least one script failed; the
// summary has already been printed.
var errScriptsFailed = errors.New("one or more scripts failed")

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "server-url",
		Aliases: []string{"s"},
		Usage:   "Automation server URL (default http://127.0.0.1:4723)",
		EnvVars: []string{"FASTEST_SERVER_URL"},
	},
	&cli.StringFlag{
		Name:    "package",
		Usage:   "Android app package; qualifies viewsById ids",
		EnvVars: []string{"FASTEST_PACKAGE"},
	},
	&cli.IntFlag{
		Name:    "implicit-wait",
		Usage:   "Default wait timeout in ms for waitDisplayed and friends (default 10000)",
		EnvVars: []string{"FASTEST_IMPLICIT_WAIT"},
	},
	&cli.StringSliceFlag{
		Name:    "cap",
		Usage:   "Desired capability (KEY=VALUE), repeatable",
		EnvVars: []string{"FASTEST_CAPS"},
	},
	&cli.StringFlag{
		Name:    "caps",
		Usage:   "JSON file with desired capabilities",
		EnvVars: []string{"FASTEST_CAPS_FILE"},
	},
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Path to fastest.yaml (default: looked up next to the scripts)",
		EnvVars: []string{"FASTEST_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "Log file (default <home>/logs/fastest-<timestamp>.log)",
		EnvVars: []string{"FASTEST_LOG_FILE"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable debug logging",
		EnvVars: []string{"FASTEST_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "fastest",
		Usage:   "Run YAML UI scripts against an Appium-compatible server",
		Version: Version,
		Description: `fastest-runner drives an Android app through a WebDriver/Appium
server. Each script runs in its own session.

Examples:
  fastest run login.yaml
  fastest run scripts/ -e USER=test
  fastest --server-url http://10.0.0.5:4723 --package fi.foo.bar run scripts/
  fastest validate scripts/`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			validateCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		if !errors.Is(err, errScriptsFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
