package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/auralis/auralis/internal/audio"
	"github.com/auralis/auralis/internal/fingerprint"
	"github.com/auralis/auralis/internal/library"
	"github.com/auralis/auralis/internal/logging"
)

// scanAnalysisWindowS bounds how much of each file the scan fingerprints:
// enough for a stable dynamics/spectral read without decoding a whole
// multi-hour file on every library rescan.
const scanAnalysisWindowS = 30.0

// scanConcurrency bounds how many files are probed/analyzed at once.
// Each worker also spins up its own fingerprint.Service fan-out, so this
// is kept modest to avoid oversubscribing the machine's cores.
const scanConcurrency = 4

func scanCommand(configPath *string) *cobra.Command {
	var dbPath, musicDir string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Walk --music-dir and populate the library",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(*configPath, false, dbPath, musicDir, 0)
			if err != nil {
				fmt.Fprintln(os.Stderr, "fatal init:", err)
				os.Exit(1)
			}
			if err := logging.Init(logging.Options{Level: settings.Log.Level}); err != nil {
				fmt.Fprintln(os.Stderr, "fatal init:", err)
				os.Exit(1)
			}
			defer logging.Close()
			logger := logging.ForService("scan")

			store, err := library.Open(settings.Library.DBPath, logger)
			if err != nil {
				logger.Error("failed to open library database", "err", err)
				os.Exit(1)
			}
			defer store.Close()

			tracks := library.NewTrackRepository(store)
			fingerprints := library.NewFingerprintRepository(store)
			loader := audio.NewLoader()
			svc := fingerprint.NewService(4)

			ctx := context.Background()
			var paths []string
			err = filepath.WalkDir(settings.Library.MusicDir, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					logger.Warn("scan: skipping unreadable path", "path", path, "err", err)
					return nil
				}
				if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".wav") {
					return nil
				}
				paths = append(paths, path)
				return nil
			})
			if err != nil {
				logger.Error("scan failed", "err", err)
				os.Exit(1)
			}

			var count atomic.Int64
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(scanConcurrency)
			for i, path := range paths {
				path, seq := path, i
				g.Go(func() error {
					scanOneFile(gctx, path, seq, loader, svc, tracks, fingerprints, &count, logger)
					return nil
				})
			}
			// g.Wait's error is always nil: scanOneFile never returns one,
			// so one file's failure never cancels the rest of the scan.
			_ = g.Wait()

			removed := cleanupMissingTracks(ctx, tracks, logger)
			logger.Info("scan complete", "tracks_found", count.Load(), "tracks_removed", removed)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db-path", "", "override library database path")
	cmd.Flags().StringVar(&musicDir, "music-dir", "", "override music directory")

	return cmd
}

// scanOneFile probes, upserts, and fingerprints a single file. It never
// returns an error: a bad file is logged and skipped so one corrupt WAV
// in a large library can't abort the rest of the scan via errgroup's
// fail-fast cancellation.
func scanOneFile(ctx context.Context, path string, seq int, loader *audio.Loader, svc *fingerprint.Service, tracks library.TrackRepository, fingerprints library.FingerprintRepository, count *atomic.Int64, logger *slog.Logger) {
	info, err := loader.Probe(path)
	if err != nil {
		logger.Warn("scan: failed to probe file", "path", path, "err", err)
		return
	}

	id := uuid.NewString()
	track := library.Track{
		ID:         id,
		FilePath:   path,
		DurationS:  float64(info.TotalSamples) / float64(info.SampleRate),
		SampleRate: info.SampleRate,
		Channels:   info.Channels,
		Title:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}
	if err := tracks.Upsert(ctx, track); err != nil {
		logger.Warn("scan: failed to upsert track", "path", path, "err", err)
		return
	}

	windowSamples := int(scanAnalysisWindowS * float64(info.SampleRate))
	if windowSamples > info.TotalSamples {
		windowSamples = info.TotalSamples
	}
	buf, err := loader.ReadRange(path, 0, windowSamples)
	if err != nil {
		logger.Warn("scan: failed to read analysis window", "path", path, "err", err)
		return
	}
	fp := svc.Compute(ctx, buf, 8, uint64(seq)+1)
	if err := fingerprints.Upsert(ctx, id, fp); err != nil {
		logger.Warn("scan: failed to upsert fingerprint", "path", path, "err", err)
	}

	count.Add(1)
}

// cleanupMissingTracks removes DB rows whose file no longer exists on
// disk, but only once it has confirmed the parent directory of the
// first missing file is itself accessible. A transient unmount makes
// every file under it look missing; deleting on that basis would wipe
// an entire library from one bad mount point.
func cleanupMissingTracks(ctx context.Context, tracks library.TrackRepository, logger *slog.Logger) int {
	removed := 0
	offset := 0
	checkedParent := false
	parentAccessible := true

	for {
		rows, total, err := tracks.List(ctx, "title", library.MaxPageSize, offset)
		if err != nil || len(rows) == 0 {
			break
		}

		for _, t := range rows {
			if _, err := os.Stat(t.FilePath); err == nil {
				continue
			}

			if !checkedParent {
				checkedParent = true
				if _, err := os.Stat(filepath.Dir(t.FilePath)); err != nil {
					parentAccessible = false
					logger.Warn("scan: parent directory of missing file is inaccessible, skipping cleanup",
						"path", t.FilePath)
				}
			}
			if !parentAccessible {
				return removed
			}

			if err := tracks.Delete(ctx, t.ID); err != nil {
				logger.Warn("scan: failed to remove missing track", "path", t.FilePath, "err", err)
				continue
			}
			removed++
		}

		offset += len(rows)
		if int64(offset) >= total {
			break
		}
	}
	return removed
}
