// Command harvester runs fetch sessions over the pending part of a work set.
//
// Exit codes for `run`:
//   - 0: every pending target was processed, or nothing was pending
//   - 1: configuration, persistence or fatal fetch error
//   - 130: interrupted by a signal
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Set via ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:           "harvester",
		Usage:          "Fetch pending targets through a proxy API and persist the extracted records",
		Version:        fmt.Sprintf("%s (commit: %s)", version, commit),
		ExitErrHandler: exitErrHandler,
		Flags:          globalFlags(),
		Commands: []*cli.Command{
			runCommand(),
			seedCommand(),
			versionCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file",
			EnvVars: []string{"HARVEST_CONFIG"},
		},
		&cli.StringSliceFlag{
			Name:  "env-file",
			Usage: "dotenv files loaded before the environment is read",
			Value: cli.NewStringSlice(".env"),
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "override LOG_LEVEL (debug, info, warn, error)",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "human-readable console logs",
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the version",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "harvester %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}

// exitErrHandler keeps exit codes from cli.Exit.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		if msg := exitCoder.Error(); msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
