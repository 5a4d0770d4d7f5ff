// Command ftdc is a small diagnostic CLI over the ftdc package: it prints
// a summary of an FTDC file's contents, or flattens its samples to CSV or
// newline-delimited JSON for downstream tooling.
package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "ftdc",
		Usage: "inspect and export MongoDB FTDC diagnostic data files",
		Commands: []*cli.Command{
			infoCommand(),
			csvCommand(),
			jsonCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
