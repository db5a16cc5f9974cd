package main

import (
	"context"
	"fmt"
	"os"

	cliframework "github.com/urfave/cli/v3"

	"github.com/diptoe/collective-memory-sub000/internal/cli"
)

const version = "0.1.0-dev"

func main() {
	app := &cliframework.Command{
		Name:    "cm-console",
		Usage:   "Web console for a Collective Memory backend",
		Version: version,
		Commands: []*cliframework.Command{
			cli.ServeCommand(),
			cli.RenderCommand(),
			cli.DoctorCommand(version),
			cli.ConfigCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
