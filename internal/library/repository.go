package library

import (
	"context"
	"math"
	"sort"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/auralis/auralis/internal/apperrors"
	"github.com/auralis/auralis/internal/fingerprint"
)

// trackRepository implements TrackRepository over a *Store, notifying
// registered InvalidationListeners before and after Delete commits.
type trackRepository struct {
	store *Store

	mu        sync.RWMutex
	listeners []InvalidationListener
}

// NewTrackRepository constructs the track repository backed by store.
func NewTrackRepository(store *Store) TrackRepository {
	return &trackRepository{store: store}
}

// Subscribe registers l to be notified on every track delete, both
// before the row is removed (so a cache can stop serving it early) and
// after (so a cache entry written mid-delete by a racing read is
// dropped too).
func (r *trackRepository) Subscribe(l InvalidationListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

func (r *trackRepository) notify(trackID string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.listeners {
		l.InvalidateTrack(trackID)
	}
}

func (r *trackRepository) Get(ctx context.Context, id string) (Track, error) {
	var t Track
	err := r.store.DB.WithContext(ctx).Preload("Artists").First(&t, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return Track{}, ErrNotFound
	}
	if err != nil {
		return Track{}, apperrors.New(err).Category(apperrors.CategoryInternal).Context("operation", "tracks.get").Build()
	}
	return t, nil
}

func (r *trackRepository) List(ctx context.Context, orderBy string, limit, offset int) ([]Track, int64, error) {
	if !IsValidTrackOrder(orderBy) {
		return nil, 0, apperrors.Newf("invalid order_by column %q", orderBy).
			Category(apperrors.CategoryInvalid).Build()
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if limit <= 0 {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := r.store.DB.WithContext(ctx).Model(&Track{}).Count(&total).Error; err != nil {
		return nil, 0, apperrors.New(err).Category(apperrors.CategoryInternal).Build()
	}

	var rows []Track
	err := r.store.DB.WithContext(ctx).
		Order(orderBy).
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, apperrors.New(err).Category(apperrors.CategoryInternal).Context("operation", "tracks.list").Build()
	}

	// Batched IN-list fetch for artists instead of a Preload join on the
	// paginated query, which would otherwise multiply rows per
	// track/artist pair before LIMIT/OFFSET is applied.
	if len(rows) > 0 {
		ids := make([]string, len(rows))
		for i, t := range rows {
			ids[i] = t.ID
		}
		var withArtists []Track
		if err := r.store.DB.WithContext(ctx).Preload("Artists").Find(&withArtists, "id IN ?", ids).Error; err != nil {
			return nil, 0, apperrors.New(err).Category(apperrors.CategoryInternal).Build()
		}
		byID := make(map[string][]Artist, len(withArtists))
		for _, t := range withArtists {
			byID[t.ID] = t.Artists
		}
		for i := range rows {
			rows[i].Artists = byID[rows[i].ID]
		}
	}

	return rows, total, nil
}

// Delete removes a track under the library's write-serialized
// connection, bracketing the row removal with invalidation events both
// before and after so no concurrent reader can observe a stale cached
// entry once Delete returns.
func (r *trackRepository) Delete(ctx context.Context, id string) error {
	r.notify(id)
	err := r.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ?", id).Delete(&FingerprintRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM track_artists WHERE track_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&Track{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	r.notify(id)
	if err != nil {
		if err == ErrNotFound {
			return ErrNotFound
		}
		return apperrors.New(err).Category(apperrors.CategoryInternal).Context("operation", "tracks.delete").Build()
	}
	return nil
}

func (r *trackRepository) Upsert(ctx context.Context, t Track) error {
	err := r.store.DB.WithContext(ctx).Clauses(onConflictUpdateAll("id")).Create(&t).Error
	if err != nil {
		return apperrors.New(err).Category(apperrors.CategoryInternal).Context("operation", "tracks.upsert").Build()
	}
	return nil
}

// albumRepository implements AlbumRepository.
type albumRepository struct{ store *Store }

func NewAlbumRepository(store *Store) AlbumRepository { return &albumRepository{store: store} }

// GetAll returns every album without a nested eager-load chain: a
// Preload("Tracks") here would join every track row against every
// album row, producing the Cartesian blowup the repository contract
// forbids, so callers needing per-album tracks issue a follow-up
// batched IN-list query keyed by the returned album ids instead.
func (r *albumRepository) GetAll(ctx context.Context) ([]Album, error) {
	var albums []Album
	if err := r.store.DB.WithContext(ctx).Find(&albums).Error; err != nil {
		return nil, apperrors.New(err).Category(apperrors.CategoryInternal).Context("operation", "albums.get_all").Build()
	}
	return albums, nil
}

// artistRepository implements ArtistRepository.
type artistRepository struct{ store *Store }

func NewArtistRepository(store *Store) ArtistRepository { return &artistRepository{store: store} }

// GetAllArtists returns every artist with its Tracks relation already
// loaded before the objects are detached from the session, since
// accessing Tracks on a detached Artist without this eager load would
// be a lazy-load attempt against a closed session and is an error.
func (r *artistRepository) GetAllArtists(ctx context.Context) ([]Artist, error) {
	var artists []Artist
	if err := r.store.DB.WithContext(ctx).Preload("Tracks").Find(&artists).Error; err != nil {
		return nil, apperrors.New(err).Category(apperrors.CategoryInternal).Context("operation", "artists.get_all_artists").Build()
	}
	return artists, nil
}

// fingerprintRepository implements FingerprintRepository.
type fingerprintRepository struct{ store *Store }

func NewFingerprintRepository(store *Store) FingerprintRepository {
	return &fingerprintRepository{store: store}
}

func (r *fingerprintRepository) Upsert(ctx context.Context, trackID string, fp fingerprint.Fingerprint) error {
	rec := toRecord(trackID, fp)
	err := r.store.DB.WithContext(ctx).Clauses(onConflictUpdateAll("track_id")).Create(&rec).Error
	if err != nil {
		return apperrors.New(err).Category(apperrors.CategoryInternal).Context("operation", "fingerprints.upsert").Build()
	}
	return nil
}

func (r *fingerprintRepository) Get(ctx context.Context, trackID string) (fingerprint.Fingerprint, error) {
	var rec FingerprintRecord
	err := r.store.DB.WithContext(ctx).First(&rec, "track_id = ?", trackID).Error
	if err == gorm.ErrRecordNotFound {
		return fingerprint.Fingerprint{}, ErrNotFound
	}
	if err != nil {
		return fingerprint.Fingerprint{}, apperrors.New(err).Category(apperrors.CategoryInternal).Build()
	}
	return fromRecord(rec), nil
}

// CountCompleted filters out the lufs == placeholder sentinel so
// in-progress or failed analyses never inflate completion progress.
func (r *fingerprintRepository) CountCompleted(ctx context.Context) (int64, error) {
	var count int64
	err := r.store.DB.WithContext(ctx).Model(&FingerprintRecord{}).
		Where("lufs <> ?", placeholderLUFS).
		Count(&count).Error
	if err != nil {
		return 0, apperrors.New(err).Category(apperrors.CategoryInternal).Context("operation", "fingerprints.count_completed").Build()
	}
	return count, nil
}

// similarityWeights gives the spectral and dynamics dimensions more
// influence over the distance than the harmonic/temporal ones, which are
// noisier estimates from the analyzer's short-window heuristics.
var similarityWeights = [25]float64{
	2.0, 2.0, 2.0, 2.0, 2.0, 2.0, 2.0, // spectral bands
	1.5, 1.0, 1.0, 1.0, 1.0, // dynamics
	1.0, 1.0, 1.0, // stereo
	0.5, 0.5, 0.5, 0.5, // harmonic
	0.75, 0.5, 0.5, 0.5, 0.5, 0.5, // temporal
}

func fingerprintVector(fp fingerprint.Fingerprint) [25]float64 {
	return [25]float64{
		fp.SubBassPct, fp.BassPct, fp.LowMidPct, fp.MidPct, fp.UpperMidPct, fp.PresencePct, fp.AirPct,
		fp.LUFS, fp.CrestFactor, fp.RMSDB, fp.PeakDB, fp.DynamicRangeDB,
		fp.StereoWidth, fp.StereoCorrelation, fp.MidSideRatio,
		fp.HarmonicRatio, fp.PitchStability, fp.ChromaEnergy, fp.TonalCentroid,
		fp.TempoBPM, fp.RhythmStrength, fp.OnsetDensity, fp.AttackTime, fp.SustainRatio, fp.TransientDensity,
	}
}

// weightedDistance computes the weighted Euclidean distance between two
// fingerprint vectors, first dividing TempoBPM by 200 so it lands near
// the 0-1 range of the percentage and ratio dimensions; the LUFS and dB
// dimensions keep their own larger scale.
func weightedDistance(a, b [25]float64) float64 {
	const tempoIdx = 19
	var sum float64
	for i := range a {
		av, bv := a[i], b[i]
		if i == tempoIdx {
			av /= 200
			bv /= 200
		}
		d := (av - bv) * similarityWeights[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// FindSimilar ranks every completed (non-placeholder) fingerprint other
// than excludeTrackID by distance to fp and returns the nearest limit.
// The candidate set is loaded in one query rather than N+1 lookups: the
// library is expected to stay small enough (single-user desktop scale)
// that this is cheap, and it avoids a bespoke nearest-neighbor index.
func (r *fingerprintRepository) FindSimilar(ctx context.Context, fp fingerprint.Fingerprint, excludeTrackID string, limit int) ([]SimilarTrack, error) {
	if limit <= 0 {
		limit = 10
	}
	var recs []FingerprintRecord
	err := r.store.DB.WithContext(ctx).
		Where("lufs <> ?", placeholderLUFS).
		Where("track_id <> ?", excludeTrackID).
		Find(&recs).Error
	if err != nil {
		return nil, apperrors.New(err).Category(apperrors.CategoryInternal).Context("operation", "fingerprints.find_similar").Build()
	}

	target := fingerprintVector(fp)
	results := make([]SimilarTrack, 0, len(recs))
	for _, rec := range recs {
		dist := weightedDistance(target, fingerprintVector(fromRecord(rec)))
		results = append(results, SimilarTrack{TrackID: rec.TrackID, Distance: dist})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func toRecord(trackID string, fp fingerprint.Fingerprint) FingerprintRecord {
	return FingerprintRecord{
		TrackID: trackID,
		SubBassPct: fp.SubBassPct, BassPct: fp.BassPct, LowMidPct: fp.LowMidPct, MidPct: fp.MidPct,
		UpperMidPct: fp.UpperMidPct, PresencePct: fp.PresencePct, AirPct: fp.AirPct,
		LUFS: fp.LUFS, CrestFactor: fp.CrestFactor, RMSDB: fp.RMSDB, PeakDB: fp.PeakDB, DynamicRangeDB: fp.DynamicRangeDB,
		StereoWidth: fp.StereoWidth, StereoCorrelation: fp.StereoCorrelation, MidSideRatio: fp.MidSideRatio,
		HarmonicRatio: fp.HarmonicRatio, PitchStability: fp.PitchStability, ChromaEnergy: fp.ChromaEnergy, TonalCentroid: fp.TonalCentroid,
		TempoBPM: fp.TempoBPM, RhythmStrength: fp.RhythmStrength, OnsetDensity: fp.OnsetDensity,
		AttackTime: fp.AttackTime, SustainRatio: fp.SustainRatio, TransientDensity: fp.TransientDensity,
	}
}

func fromRecord(rec FingerprintRecord) fingerprint.Fingerprint {
	return fingerprint.Fingerprint{
		SubBassPct: rec.SubBassPct, BassPct: rec.BassPct, LowMidPct: rec.LowMidPct, MidPct: rec.MidPct,
		UpperMidPct: rec.UpperMidPct, PresencePct: rec.PresencePct, AirPct: rec.AirPct,
		LUFS: rec.LUFS, CrestFactor: rec.CrestFactor, RMSDB: rec.RMSDB, PeakDB: rec.PeakDB, DynamicRangeDB: rec.DynamicRangeDB,
		StereoWidth: rec.StereoWidth, StereoCorrelation: rec.StereoCorrelation, MidSideRatio: rec.MidSideRatio,
		HarmonicRatio: rec.HarmonicRatio, PitchStability: rec.PitchStability, ChromaEnergy: rec.ChromaEnergy, TonalCentroid: rec.TonalCentroid,
		TempoBPM: rec.TempoBPM, RhythmStrength: rec.RhythmStrength, OnsetDensity: rec.OnsetDensity,
		AttackTime: rec.AttackTime, SustainRatio: rec.SustainRatio, TransientDensity: rec.TransientDensity,
	}
}

func onConflictUpdateAll(conflictCol string) clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: conflictCol}},
		UpdateAll: true,
	}
}
