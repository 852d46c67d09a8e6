// Command optset inspects and edits option sets described by schema files.
package main

import (
	"os"

	"github.com/goliatone/go-optset/cmd/optset/app"
)

func main() {
	if err := app.NewRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
