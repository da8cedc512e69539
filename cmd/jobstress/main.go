// Command jobstress runs load scenarios against a job system and reports
// what ran where.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "jobstress",
		Usage: "Exercise the fiber and thread job systems",
		Commands: []*cli.Command{
			RunCommand(),
			ConfigCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
