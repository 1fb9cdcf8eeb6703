// Package library owns the catalog of tracks, albums, artists, and
// their fingerprints: persistence, repository access, and a read-through
// cache layer in front of it. Modeled on the teacher's datastore package
// (interfaces.go, sqlite.go, model.go), rebuilt around a music catalog
// instead of bird detection notes.
package library

import (
	"time"

	"github.com/auralis/auralis/internal/constants"
)

// Track is the persisted record for one audio file. Filepath is
// server-internal and must never be serialized into a boundary
// response; callers at the HTTP/WebSocket edge copy only the exported
// fields they intend to expose.
type Track struct {
	ID         string `gorm:"primaryKey;size:40"`
	FilePath   string `gorm:"uniqueIndex;size:1024"`
	DurationS  float64
	SampleRate int
	Channels   int
	BitDepth   int
	Title      string `gorm:"index:idx_tracks_title;size:500"`
	AlbumID    string `gorm:"index:idx_tracks_album_id;size:40"`
	Genres     string `gorm:"size:500"` // comma-joined; genres are low-cardinality display metadata, not queried individually
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Artists []Artist `gorm:"many2many:track_artists;"`
}

// Album groups tracks under a title and optional year.
type Album struct {
	ID        string `gorm:"primaryKey;size:40"`
	Title     string `gorm:"index:idx_albums_title;size:500"`
	Year      int
	CreatedAt time.Time
}

// Artist is a performer credited on one or more tracks.
type Artist struct {
	ID        string `gorm:"primaryKey;size:40"`
	Name      string `gorm:"index:idx_artists_name;size:500"`
	CreatedAt time.Time

	Tracks []Track `gorm:"many2many:track_artists;"`
}

// FingerprintRecord is the persisted form of a fingerprint.Fingerprint,
// one row per track, upserted in place as analysis completes.
type FingerprintRecord struct {
	TrackID string `gorm:"primaryKey;size:40"`

	SubBassPct  float64
	BassPct     float64
	LowMidPct   float64
	MidPct      float64
	UpperMidPct float64
	PresencePct float64
	AirPct      float64

	LUFS           float64 `gorm:"index:idx_fingerprints_lufs"`
	CrestFactor    float64
	RMSDB          float64
	PeakDB         float64
	DynamicRangeDB float64

	StereoWidth       float64
	StereoCorrelation float64
	MidSideRatio      float64

	HarmonicRatio  float64
	PitchStability float64
	ChromaEnergy   float64
	TonalCentroid  float64

	TempoBPM         float64
	RhythmStrength   float64
	OnsetDensity     float64
	AttackTime       float64
	SustainRatio     float64
	TransientDensity float64

	UpdatedAt time.Time
}

// placeholderLUFS is the sentinel marking an incomplete fingerprint.
var placeholderLUFS = constants.PlaceholderLUFS
