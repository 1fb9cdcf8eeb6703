// Package main is the Auralis CLI entrypoint, modeled on the teacher's
// cobra root-command layout (cmd/root.go): a persistent-flag root
// command delegating to subcommands, each constructing its own piece of
// the runtime rather than sharing a global.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/auralis/auralis/internal/conf"
)

func rootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "auralis",
		Short: "Auralis adaptive mastering and streaming engine",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(serveCommand(&configPath))
	root.AddCommand(scanCommand(&configPath))
	root.AddCommand(versionCommand())

	return root
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadSettings applies CLI flag overrides on top of the file/env layer,
// following the precedence order documented in conf.Load.
func loadSettings(configPath string, devMode bool, dbPath, musicDir string, port int) (*conf.Settings, error) {
	settings, err := conf.Load(configPath)
	if err != nil {
		return nil, err
	}
	if devMode {
		settings.Server.DevMode = true
	}
	if dbPath != "" {
		settings.Library.DBPath = dbPath
	}
	if musicDir != "" {
		settings.Library.MusicDir = musicDir
	}
	if port != 0 {
		settings.Server.Port = port
	}
	return settings, settings.Validate()
}
