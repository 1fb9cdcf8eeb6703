package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auralis/auralis/internal/apperrors"
	"github.com/auralis/auralis/internal/fingerprint"
	"github.com/auralis/auralis/internal/library"
)

type fakeTracks struct {
	tracks map[string]library.Track
}

func (f *fakeTracks) Get(_ context.Context, id string) (library.Track, error) {
	t, ok := f.tracks[id]
	if !ok {
		return library.Track{}, library.ErrNotFound
	}
	return t, nil
}
func (f *fakeTracks) List(context.Context, string, int, int) ([]library.Track, int64, error) {
	return nil, 0, nil
}
func (f *fakeTracks) Delete(context.Context, string) error { return nil }
func (f *fakeTracks) Upsert(_ context.Context, t library.Track) error {
	f.tracks[t.ID] = t
	return nil
}
func (f *fakeTracks) Subscribe(library.InvalidationListener) {}

type fakeFingerprints struct {
	fps      map[string]fingerprint.Fingerprint
	similar  []library.SimilarTrack
	gotLimit int
}

func (f *fakeFingerprints) Upsert(_ context.Context, trackID string, fp fingerprint.Fingerprint) error {
	f.fps[trackID] = fp
	return nil
}
func (f *fakeFingerprints) Get(_ context.Context, trackID string) (fingerprint.Fingerprint, error) {
	fp, ok := f.fps[trackID]
	if !ok {
		return fingerprint.Fingerprint{}, library.ErrNotFound
	}
	return fp, nil
}
func (f *fakeFingerprints) CountCompleted(context.Context) (int64, error) { return 0, nil }
func (f *fakeFingerprints) FindSimilar(_ context.Context, _ fingerprint.Fingerprint, _ string, limit int) ([]library.SimilarTrack, error) {
	f.gotLimit = limit
	return f.similar, nil
}

func TestInputPathAllowlistResolvesWithinAnyConfiguredDir(t *testing.T) {
	t.Parallel()

	dirA := t.TempDir()
	dirB := t.TempDir()
	want := filepath.Join(dirB, "track.wav")
	require.NoError(t, os.WriteFile(want, []byte("data"), 0o644))

	allow := NewInputPathAllowlist([]string{dirA, dirB})
	got, err := allow.resolve("track.wav")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestInputPathAllowlistRejectsPathOutsideAllDirs(t *testing.T) {
	t.Parallel()

	dirA := t.TempDir()
	allow := NewInputPathAllowlist([]string{dirA})

	_, err := allow.resolve("../outside.wav")
	require.Error(t, err)
	assert.Equal(t, apperrors.CategoryInvalid, apperrors.CategoryOf(err))
}

func TestRespondErrorMapsCategoriesToStatusCodes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		category apperrors.Category
		status   int
	}{
		{apperrors.CategoryNotFound, http.StatusNotFound},
		{apperrors.CategoryInvalid, http.StatusBadRequest},
		{apperrors.CategoryTimeout, http.StatusGatewayTimeout},
		{apperrors.CategoryConflict, http.StatusConflict},
		{apperrors.CategoryBackpressure, http.StatusTooManyRequests},
		{apperrors.CategoryInternal, http.StatusInternalServerError},
	}

	e := echo.New()
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := apperrors.Newf("boom").Category(tc.category).Build()
		require.NoError(t, respondError(c, err))
		assert.Equal(t, tc.status, rec.Code, "category %s", tc.category)
	}
}

func TestHandleProcessRejectsPathOutsideAllowlist(t *testing.T) {
	t.Parallel()

	e := echo.New()
	s := &Server{inputPaths: NewInputPathAllowlist([]string{t.TempDir()})}

	body := strings.NewReader(`{"input_path":"../escape.wav","preset":"adaptive"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/process", body)
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, s.handleProcess(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleProcessRejectsInvalidPreset(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.wav"), []byte("data"), 0o644))

	e := echo.New()
	s := &Server{inputPaths: NewInputPathAllowlist([]string{dir})}

	body := strings.NewReader(`{"input_path":"a.wav","preset":"not-a-real-preset"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/process", body)
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, s.handleProcess(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleProcessAcceptsValidRequest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.wav"), []byte("data"), 0o644))

	e := echo.New()
	s := &Server{inputPaths: NewInputPathAllowlist([]string{dir})}

	body := strings.NewReader(`{"input_path":"a.wav","preset":"adaptive","intensity":1.0}`)
	req := httptest.NewRequest(http.MethodPost, "/api/process", body)
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, s.handleProcess(c))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHandleArtworkServesContainedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cover.jpg"), []byte("jpgdata"), 0o644))

	e := echo.New()
	s := &Server{artworkDir: dir}

	req := httptest.NewRequest(http.MethodGet, "/api/artwork/cover.jpg", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("*")
	c.SetParamValues("cover.jpg")

	require.NoError(t, s.handleArtwork(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpgdata", rec.Body.String())
}

func TestHandleArtworkRejectsTraversal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	e := echo.New()
	s := &Server{artworkDir: dir}

	req := httptest.NewRequest(http.MethodGet, "/api/artwork/../../etc/passwd", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("*")
	c.SetParamValues("../../etc/passwd")

	require.NoError(t, s.handleArtwork(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleStreamChunkRejectsInvalidChunkIndex(t *testing.T) {
	t.Parallel()

	e := echo.New()
	s := &Server{}

	req := httptest.NewRequest(http.MethodGet, "/stream/t1/chunk/not-a-number", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("track_id", "chunk_index")
	c.SetParamValues("t1", "not-a-number")

	require.NoError(t, s.handleStreamChunk(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStreamChunkRejectsInvalidPreset(t *testing.T) {
	t.Parallel()

	e := echo.New()
	s := &Server{}

	req := httptest.NewRequest(http.MethodGet, "/stream/t1/chunk/0?preset=bogus", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("track_id", "chunk_index")
	c.SetParamValues("t1", "0")

	require.NoError(t, s.handleStreamChunk(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSimilarTracksReturnsRankedMatches(t *testing.T) {
	t.Parallel()

	e := echo.New()
	tracks := &fakeTracks{tracks: map[string]library.Track{"t1": {ID: "t1"}}}
	fps := &fakeFingerprints{
		fps:     map[string]fingerprint.Fingerprint{"t1": {LUFS: -14}},
		similar: []library.SimilarTrack{{TrackID: "t2", Distance: 0.5}},
	}
	s := &Server{tracks: tracks, fingerprints: fps}

	req := httptest.NewRequest(http.MethodGet, "/api/tracks/t1/similar", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("t1")

	require.NoError(t, s.handleSimilarTracks(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "t2")
}

func TestHandleSimilarTracksRejectsUnknownTrack(t *testing.T) {
	t.Parallel()

	e := echo.New()
	s := &Server{tracks: &fakeTracks{tracks: map[string]library.Track{}}, fingerprints: &fakeFingerprints{fps: map[string]fingerprint.Fingerprint{}}}

	req := httptest.NewRequest(http.MethodGet, "/api/tracks/missing/similar", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("missing")

	require.NoError(t, s.handleSimilarTracks(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSimilarTracksClampsLimitToMax(t *testing.T) {
	t.Parallel()

	e := echo.New()
	tracks := &fakeTracks{tracks: map[string]library.Track{"t1": {ID: "t1"}}}
	fps := &fakeFingerprints{fps: map[string]fingerprint.Fingerprint{"t1": {LUFS: -14}}}
	s := &Server{tracks: tracks, fingerprints: fps}

	req := httptest.NewRequest(http.MethodGet, "/api/tracks/t1/similar?limit=10000", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("t1")

	require.NoError(t, s.handleSimilarTracks(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxSimilarLimit, fps.gotLimit)
}
