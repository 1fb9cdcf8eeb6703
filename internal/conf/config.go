// Package conf loads Auralis settings from a YAML file, environment
// variables, and CLI flags using spf13/viper, following the nested-struct
// Settings pattern of the teacher codebase.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/auralis/auralis/internal/constants"
)

// Settings is the root configuration structure for the Auralis service.
type Settings struct {
	Debug bool

	Server struct {
		Port       int    // loopback-only bind port
		DevMode    bool   // enables API docs when true
		AllowedOrigins []string
	}

	Library struct {
		DBPath   string
		MusicDir string
		ArtworkDir string
	}

	Streaming struct {
		MaxConcurrentStreams int
		ChunkCacheMaxEntries int
		ChunkCacheMaxBytes   int64
	}

	Log struct {
		Level      string
		Path       string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
	}
}

// Load builds Settings from defaults, an optional YAML file, and
// AURALIS_*-prefixed environment variables, in that precedence order
// (file overrides defaults, env overrides file).
func Load(configPath string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AURALIS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", configPath, err)
			}
		}
	}

	s := &Settings{}
	s.Debug = v.GetBool("debug")
	s.Server.Port = v.GetInt("server.port")
	s.Server.DevMode = v.GetBool("server.dev_mode")
	s.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	s.Library.DBPath = expandHome(v.GetString("library.db_path"))
	s.Library.MusicDir = expandHome(v.GetString("library.music_dir"))
	s.Library.ArtworkDir = expandHome(v.GetString("library.artwork_dir"))
	s.Streaming.MaxConcurrentStreams = v.GetInt("streaming.max_concurrent_streams")
	s.Streaming.ChunkCacheMaxEntries = v.GetInt("streaming.chunk_cache_max_entries")
	s.Streaming.ChunkCacheMaxBytes = v.GetInt64("streaming.chunk_cache_max_bytes")
	s.Log.Level = v.GetString("log.level")
	s.Log.Path = expandHome(v.GetString("log.path"))
	s.Log.MaxSizeMB = v.GetInt("log.max_size_mb")
	s.Log.MaxBackups = v.GetInt("log.max_backups")
	s.Log.MaxAgeDays = v.GetInt("log.max_age_days")

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate enforces the invariants the rest of the system relies on: a
// non-empty DB path and a positive concurrency cap.
func (s *Settings) Validate() error {
	if s.Library.DBPath == "" {
		return fmt.Errorf("library.db_path must not be empty")
	}
	if s.Streaming.MaxConcurrentStreams <= 0 {
		return fmt.Errorf("streaming.max_concurrent_streams must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("server.port", 8765)
	v.SetDefault("server.dev_mode", false)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:8765", "http://127.0.0.1:8765"})

	home, _ := os.UserHomeDir()
	v.SetDefault("library.db_path", filepath.Join(home, ".auralis", "library.db"))
	v.SetDefault("library.music_dir", filepath.Join(home, "Music"))
	v.SetDefault("library.artwork_dir", filepath.Join(home, ".auralis", "artwork"))

	v.SetDefault("streaming.max_concurrent_streams", constants.MaxConcurrentStreams)
	v.SetDefault("streaming.chunk_cache_max_entries", constants.ChunkCacheMaxEntries)
	v.SetDefault("streaming.chunk_cache_max_bytes", int64(constants.ChunkCacheMaxBytes))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", filepath.Join(home, ".auralis", "logs", "auralis.log"))
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}

func expandHome(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// AllowedMusicDirs returns the directory allowlist used to validate
// filesystem-touching HTTP inputs (spec §6): the configured music
// directory and a Documents sibling, explicitly NOT the bare home
// directory, which is overly broad.
func (s *Settings) AllowedMusicDirs() []string {
	home, _ := os.UserHomeDir()
	return []string{s.Library.MusicDir, filepath.Join(home, "Documents")}
}
