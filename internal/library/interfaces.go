package library

import (
	"context"

	"github.com/auralis/auralis/internal/apperrors"
	"github.com/auralis/auralis/internal/fingerprint"
)

// ErrNotFound is the sentinel returned when a lookup by id finds no row.
var ErrNotFound = apperrors.Newf("not found").Category(apperrors.CategoryNotFound).Build()

// MaxPageSize bounds tracks.list's limit parameter.
const MaxPageSize = 500

// trackOrderWhitelist is the closed set of columns tracks.list may sort
// by; anything else is rejected rather than interpolated into SQL.
var trackOrderWhitelist = map[string]bool{
	"title": true, "duration_s": true, "created_at": true, "updated_at": true,
}

// IsValidTrackOrder reports whether col is an allowed tracks.list sort column.
func IsValidTrackOrder(col string) bool { return trackOrderWhitelist[col] }

// TrackRepository is the catalog's read/write surface for tracks.
type TrackRepository interface {
	Get(ctx context.Context, id string) (Track, error)
	List(ctx context.Context, orderBy string, limit, offset int) ([]Track, int64, error)
	// Delete removes a track under the write lock, emitting a
	// cache-invalidation event both before and after the row is removed.
	Delete(ctx context.Context, id string) error
	Upsert(ctx context.Context, t Track) error
	// Subscribe registers l to be notified before and after every delete.
	Subscribe(l InvalidationListener)
}

// AlbumRepository exposes album reads, grounded on the requirement that
// relation loading never produces Cartesian-join blowups.
type AlbumRepository interface {
	GetAll(ctx context.Context) ([]Album, error)
}

// ArtistRepository exposes artist reads with detached, pre-loaded relations.
type ArtistRepository interface {
	GetAllArtists(ctx context.Context) ([]Artist, error)
}

// FingerprintRepository stores and retrieves per-track fingerprints.
type FingerprintRepository interface {
	Upsert(ctx context.Context, trackID string, fp fingerprint.Fingerprint) error
	Get(ctx context.Context, trackID string) (fingerprint.Fingerprint, error)
	// CountCompleted counts fingerprints whose LUFS is not the placeholder
	// sentinel, excluding incomplete analyses from progress reporting.
	CountCompleted(ctx context.Context) (int64, error)
	// FindSimilar returns up to limit track ids whose fingerprint is
	// closest to fp by weighted Euclidean distance, nearest first,
	// excluding excludeTrackID and any placeholder (incomplete) fingerprint.
	FindSimilar(ctx context.Context, fp fingerprint.Fingerprint, excludeTrackID string, limit int) ([]SimilarTrack, error)
}

// SimilarTrack is one row of a similarity lookup result.
type SimilarTrack struct {
	TrackID  string
	Distance float64
}

// InvalidationListener is notified before and after a track delete so
// dependent in-memory caches (the query cache, the chunk cache) can
// drop stale entries. Double-invalidation guards against a read that
// races the delete's transaction commit.
type InvalidationListener interface {
	InvalidateTrack(trackID string)
}
