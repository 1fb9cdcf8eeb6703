package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/auralis/auralis/internal/audio"
	"github.com/auralis/auralis/internal/httpapi"
	"github.com/auralis/auralis/internal/library"
	"github.com/auralis/auralis/internal/logging"
	"github.com/auralis/auralis/internal/player"
	"github.com/auralis/auralis/internal/processor"
	"github.com/auralis/auralis/internal/streaming"
)

func serveCommand(configPath *string) *cobra.Command {
	var devMode bool
	var dbPath, musicDir string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Auralis server",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(*configPath, devMode, dbPath, musicDir, port)
			if err != nil {
				fmt.Fprintln(os.Stderr, "fatal init:", err)
				os.Exit(1)
			}

			if err := logging.Init(logging.Options{
				Level: settings.Log.Level, FilePath: settings.Log.Path,
				MaxSizeMB: settings.Log.MaxSizeMB, MaxBackups: settings.Log.MaxBackups, MaxAgeDays: settings.Log.MaxAgeDays,
			}); err != nil {
				fmt.Fprintln(os.Stderr, "fatal init:", err)
				os.Exit(1)
			}
			defer logging.Close()
			logger := logging.ForService("server")

			store, err := library.Open(settings.Library.DBPath, logger)
			if err != nil {
				logger.Error("failed to open library database", "err", err)
				os.Exit(1)
			}
			defer store.Close()

			tracks := library.NewCachedTrackRepository(library.NewTrackRepository(store))
			fingerprints := library.NewCachedFingerprintRepository(library.NewFingerprintRepository(store))

			processor.ConfigureCache(settings.Streaming.ChunkCacheMaxEntries, settings.Streaming.ChunkCacheMaxBytes)
			streaming.ConfigureMaxConcurrentStreams(settings.Streaming.MaxConcurrentStreams)

			loader := audio.NewLoader()
			proc := processor.New(loader)
			p := player.New()
			lookup := library.NewStreamingLookup(tracks, fingerprints)

			registry := prometheus.NewRegistry()
			streaming.RegisterMetrics(registry)

			e := echo.New()
			e.HideBanner = true

			inputPaths := httpapi.NewInputPathAllowlist(settings.AllowedMusicDirs())
			uploadDir := filepath.Join(settings.Library.MusicDir, "incoming")
			httpapi.NewServer(e, tracks, fingerprints, proc, inputPaths, settings.Library.ArtworkDir, uploadDir, settings.Server.AllowedOrigins)

			wsHandler := streaming.NewHandler(proc, lookup, p, settings.Server.AllowedOrigins, logger)
			e.GET("/ws", wsHandler.ServeWS)
			e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

			addr := net.JoinHostPort("127.0.0.1", fmt.Sprintf("%d", settings.Server.Port))
			logger.Info("starting server", "addr", addr, "dev_mode", settings.Server.DevMode)

			if err := e.Start(addr); err != nil {
				var opErr *net.OpError
				if errors.As(err, &opErr) && errors.Is(err, syscall.EADDRINUSE) {
					logger.Error("port already in use", "addr", addr, "err", err)
					os.Exit(2)
				}
				logger.Error("server stopped", "err", err)
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&devMode, "dev", false, "enable API docs")
	cmd.Flags().StringVar(&dbPath, "db-path", "", "override library database path")
	cmd.Flags().StringVar(&musicDir, "music-dir", "", "override music directory")
	cmd.Flags().IntVar(&port, "port", 0, "override loopback bind port (default 8765)")

	return cmd
}
