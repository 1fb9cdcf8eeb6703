package library

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/auralis/auralis/internal/apperrors"
)

// Store owns the GORM connection and its migration/pragma setup. It is
// the single writer's serialization point: SQLite's own file lock
// serializes concurrent writers, while reads proceed concurrently under
// WAL journaling.
type Store struct {
	DB     *gorm.DB
	logger *slog.Logger
}

// gormLogAdapter routes GORM's query logging through slog instead of its
// own stdlib-log writer, matching the rest of the module's logging.
type gormLogAdapter struct {
	slowThreshold time.Duration
	logger        *slog.Logger
	level         gormlogger.LogLevel
}

func newGormLogAdapter(logger *slog.Logger) gormlogger.Interface {
	return &gormLogAdapter{slowThreshold: 200 * time.Millisecond, logger: logger, level: gormlogger.Warn}
}

func (l *gormLogAdapter) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *gormLogAdapter) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.logger.InfoContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogAdapter) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.logger.WarnContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogAdapter) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.logger.ErrorContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogAdapter) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	switch {
	case err != nil:
		l.logger.ErrorContext(ctx, "library query failed", "err", err, "duration", elapsed, "rows", rows)
	case elapsed > l.slowThreshold && l.slowThreshold != 0:
		l.logger.WarnContext(ctx, "slow library query", "sql", sql, "duration", elapsed, "rows", rows)
	case l.level >= gormlogger.Info:
		l.logger.DebugContext(ctx, "library query", "sql", sql, "duration", elapsed, "rows", rows)
	}
}

// Open opens (creating if absent) a SQLite database at dbPath, applies
// WAL/synchronous pragmas, and auto-migrates the catalog schema. The
// database file is created with owner-only permissions since it may
// contain library contents the user considers private.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, apperrors.New(err).
			Category(apperrors.CategoryInternal).
			Context("operation", "create_library_directory").
			Build()
	}

	existed := true
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		existed = false
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{Logger: newGormLogAdapter(logger)})
	if err != nil {
		return nil, apperrors.New(err).
			Category(apperrors.CategoryInternal).
			Context("operation", "open_library_database").
			Context("db_path", dbPath).
			Build()
	}

	if !existed {
		if err := os.Chmod(dbPath, 0o600); err != nil {
			logger.Warn("failed to set library database permissions", "err", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, apperrors.New(err).Category(apperrors.CategoryInternal).Build()
	}
	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			logger.Warn("failed to apply library pragma", "pragma", p, "err", err)
		}
	}

	if err := db.AutoMigrate(&Track{}, &Album{}, &Artist{}, &FingerprintRecord{}); err != nil {
		return nil, apperrors.New(err).
			Category(apperrors.CategoryInternal).
			Context("operation", "automigrate_library_schema").
			Build()
	}

	logger.Info("library database opened", "path", dbPath, "journal_mode", "WAL")
	return &Store{DB: db, logger: logger}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return fmt.Errorf("get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
