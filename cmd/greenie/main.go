package main

import (
	"fmt"
	"os"

	app "github.com/valter-silva-au/greenie/internal"
	"github.com/valter-silva-au/greenie/internal/cli"
)

// Set by goreleaser ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	basePath := app.ResolveBasePath()

	a, err := app.NewApp(basePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing greenie: %v\n", err)
		os.Exit(1)
	}

	err = cli.Execute()
	if closeErr := a.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
