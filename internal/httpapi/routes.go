package httpapi

import (
	"encoding/binary"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/auralis/auralis/internal/apperrors"
	"github.com/auralis/auralis/internal/constants"
	"github.com/auralis/auralis/internal/fingerprint"
	"github.com/auralis/auralis/internal/library"
	"github.com/auralis/auralis/internal/processor"
)

// inputPathAllowlist is the closed set of directories POST /api/process
// may read input_path/reference_path from. The user's entire home
// directory ("~/") is deliberately excluded: it is broad enough that
// allowing it would defeat the point of an allowlist.
type inputPathAllowlist struct {
	dirs []string
}

func NewInputPathAllowlist(dirs []string) *inputPathAllowlist {
	return &inputPathAllowlist{dirs: dirs}
}

func (a *inputPathAllowlist) resolve(candidate string) (string, error) {
	for _, dir := range a.dirs {
		if p, err := resolveWithinDir(dir, candidate); err == nil {
			return p, nil
		}
	}
	return "", apperrors.Newf("path not permitted").Category(apperrors.CategoryInvalid).Build()
}

// Server wires the library, processor, and allowlist into echo routes.
type Server struct {
	Echo *echo.Echo

	tracks       library.TrackRepository
	fingerprints library.FingerprintRepository
	proc         *processor.Processor
	inputPaths   *inputPathAllowlist
	artworkDir   string
	allowedOrigins []string
}

// NewServer constructs the HTTP API server and registers its routes.
func NewServer(e *echo.Echo, tracks library.TrackRepository, fingerprints library.FingerprintRepository, proc *processor.Processor, inputPaths *inputPathAllowlist, artworkDir, uploadDir string, allowedOrigins []string) *Server {
	s := &Server{
		Echo: e, tracks: tracks, fingerprints: fingerprints, proc: proc,
		inputPaths: inputPaths, artworkDir: artworkDir, allowedOrigins: allowedOrigins,
	}
	e.Use(securityHeaders(allowedOrigins))

	upload := NewUploadHandler(uploadDir)

	e.POST("/api/process", s.handleProcess)
	e.POST("/api/files/upload", upload.Handle)
	e.GET("/api/artwork/*", s.handleArtwork)
	e.GET("/stream/:track_id/chunk/:chunk_index", s.handleStreamChunk)
	e.GET("/api/tracks/:id/similar", s.handleSimilarTracks)

	return s
}

type processRequest struct {
	InputPath     string `json:"input_path"`
	ReferencePath string `json:"reference_path,omitempty"`
	Preset        string `json:"preset"`
	Intensity     float64 `json:"intensity"`
}

func (s *Server) handleProcess(c echo.Context) error {
	var req processRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperrors.Newf("invalid request body").Category(apperrors.CategoryInvalid).Build())
	}

	if _, err := s.inputPaths.resolve(req.InputPath); err != nil {
		return respondError(c, err)
	}
	if req.ReferencePath != "" {
		if _, err := s.inputPaths.resolve(req.ReferencePath); err != nil {
			return respondError(c, err)
		}
	}
	if !constants.IsValidPreset(req.Preset) {
		return respondError(c, apperrors.Newf("invalid preset").Category(apperrors.CategoryInvalid).Build())
	}

	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleArtwork serves a file under the artwork directory, refusing any
// path that resolves outside it.
func (s *Server) handleArtwork(c echo.Context) error {
	rel := c.Param("*")
	resolved, err := resolveWithinDir(s.artworkDir, rel)
	if err != nil {
		return respondError(c, err)
	}
	return c.File(resolved)
}

// handleStreamChunk serves one processed chunk for non-WebSocket
// clients: same chunked processor as the stream controller, framed as
// a single binary response with metadata headers instead of push
// frames.
func (s *Server) handleStreamChunk(c echo.Context) error {
	ctx := c.Request().Context()
	trackID := c.Param("track_id")
	chunkIndex, err := strconv.Atoi(c.Param("chunk_index"))
	if err != nil || chunkIndex < 0 {
		return respondError(c, apperrors.Newf("invalid chunk index").Category(apperrors.CategoryInvalid).Build())
	}
	preset := c.QueryParam("preset")
	if preset == "" {
		preset = "adaptive"
	}
	if !constants.IsValidPreset(preset) {
		return respondError(c, apperrors.Newf("invalid preset").Category(apperrors.CategoryInvalid).Build())
	}
	intensity := 1.0
	if q := c.QueryParam("intensity"); q != "" {
		if v, err := strconv.ParseFloat(q, 64); err == nil {
			intensity = v
		}
	}
	intensity = constants.ClampIntensity(intensity)

	t, err := s.tracks.Get(ctx, trackID)
	if err != nil {
		return respondError(c, err)
	}
	fp, err := s.fingerprints.Get(ctx, trackID)
	if err != nil {
		fp = fingerprint.Default()
	}

	chunk, _, err := s.proc.Produce(processor.Request{
		TrackID: t.ID, FilePath: t.FilePath, Preset: preset, Intensity: intensity,
		ChunkIndex: chunkIndex, SampleRate: t.SampleRate, TotalSamples: int(t.DurationS * float64(t.SampleRate)),
		Fingerprint: fp,
	})
	if err != nil {
		return respondError(c, err)
	}

	c.Response().Header().Set("X-Chunk-Index", strconv.Itoa(chunk.ChunkIndex))
	c.Response().Header().Set("X-Sample-Count", strconv.Itoa(chunk.ActualLengthSamples))
	c.Response().Header().Set("Content-Type", "application/octet-stream")

	buf := chunk.Audio
	out := make([]byte, buf.Samples()*buf.Channels()*4)
	for i := 0; i < buf.Samples(); i++ {
		for ch := 0; ch < buf.Channels(); ch++ {
			off := (i*buf.Channels() + ch) * 4
			binary.LittleEndian.PutUint32(out[off:off+4], math.Float32bits(buf.Channel(ch)[i]))
		}
	}
	return c.Blob(http.StatusOK, "application/octet-stream", out)
}

// defaultSimilarLimit bounds /similar when no limit query param is given.
const defaultSimilarLimit = 10

// maxSimilarLimit caps the limit query param to avoid a client forcing
// an unbounded similarity scan.
const maxSimilarLimit = 50

type similarTrackResponse struct {
	TrackID  string  `json:"track_id"`
	Distance float64 `json:"distance"`
}

// handleSimilarTracks resolves the track's fingerprint and ranks every
// other completed fingerprint in the library by distance to it.
func (s *Server) handleSimilarTracks(c echo.Context) error {
	ctx := c.Request().Context()
	trackID := c.Param("id")

	limit := defaultSimilarLimit
	if q := c.QueryParam("limit"); q != "" {
		if v, err := strconv.Atoi(q); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > maxSimilarLimit {
		limit = maxSimilarLimit
	}

	if _, err := s.tracks.Get(ctx, trackID); err != nil {
		return respondError(c, err)
	}
	fp, err := s.fingerprints.Get(ctx, trackID)
	if err != nil {
		return respondError(c, err)
	}

	matches, err := s.fingerprints.FindSimilar(ctx, fp, trackID, limit)
	if err != nil {
		return respondError(c, err)
	}

	resp := make([]similarTrackResponse, len(matches))
	for i, m := range matches {
		resp[i] = similarTrackResponse{TrackID: m.TrackID, Distance: m.Distance}
	}
	return c.JSON(http.StatusOK, resp)
}

// respondError maps any error to the sanitized boundary shape, never
// leaking a raw message, filesystem path, or stack trace to the client.
func respondError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch apperrors.CategoryOf(err) {
	case apperrors.CategoryNotFound:
		status = http.StatusNotFound
	case apperrors.CategoryInvalid:
		status = http.StatusBadRequest
	case apperrors.CategoryTimeout:
		status = http.StatusGatewayTimeout
	case apperrors.CategoryConflict:
		status = http.StatusConflict
	case apperrors.CategoryBackpressure:
		status = http.StatusTooManyRequests
	}
	return c.JSON(status, apperrors.Sanitize(err, c.Response().Header().Get(echo.HeaderXRequestID)))
}
