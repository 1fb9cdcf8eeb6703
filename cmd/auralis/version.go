package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags; defaults to "dev" for
// local builds.
var version = "dev"

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the Auralis version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("auralis", version)
			return nil
		},
	}
}
