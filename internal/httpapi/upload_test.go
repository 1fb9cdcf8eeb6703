package httpapi

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasWAVMagicAcceptsValidRIFFWAVEHeader(t *testing.T) {
	t.Parallel()

	header := append([]byte("RIFF"), []byte{0, 0, 0, 0}...)
	header = append(header, []byte("WAVE")...)
	assert.True(t, hasWAVMagic(header))
}

func TestHasWAVMagicRejectsNonRIFFHeader(t *testing.T) {
	t.Parallel()

	assert.False(t, hasWAVMagic([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x00")))
}

func TestHasWAVMagicRejectsRIFFWithWrongFormatTag(t *testing.T) {
	t.Parallel()

	header := append([]byte("RIFF"), []byte{0, 0, 0, 0}...)
	header = append(header, []byte("AVI ")...)
	assert.False(t, hasWAVMagic(header))
}

func TestHasWAVMagicRejectsTruncatedHeader(t *testing.T) {
	t.Parallel()

	assert.False(t, hasWAVMagic([]byte("RI")))
}

func buildMultipartWAVRequest(t *testing.T, filename string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func validWAVBytes() []byte {
	header := append([]byte("RIFF"), []byte{0, 0, 0, 0}...)
	header = append(header, []byte("WAVE")...)
	return append(header, []byte("fmt data...")...)
}

func TestUploadHandlerAcceptsValidWAV(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	h := NewUploadHandler(dir)

	e := echo.New()
	req := buildMultipartWAVRequest(t, "track.wav", validWAVBytes())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.Handle(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".wav", filepath.Ext(entries[0].Name()))
}

func TestUploadHandlerRejectsNonWAVContent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	h := NewUploadHandler(dir)

	e := echo.New()
	req := buildMultipartWAVRequest(t, "not-audio.txt", []byte("plain text, not a WAV file"))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.Handle(c))
	assert.NotEqual(t, http.StatusCreated, rec.Code)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "a rejected upload must not leave a file behind")
}

func TestUploadHandlerRejectsMissingFileField(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	h := NewUploadHandler(dir)

	e := echo.New()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.Handle(c))
	assert.NotEqual(t, http.StatusCreated, rec.Code)
}
