package httpapi

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/auralis/auralis/internal/apperrors"
)

// maxUploadBytes caps a single upload; large enough for a lossless
// album-length file, small enough to bound worst-case disk use from an
// abusive client.
const maxUploadBytes = 1 << 30 // 1 GiB

// wavMagic is the RIFF/WAVE header every accepted upload must start
// with; magic-byte sniffing catches a mislabeled or malicious file
// before it reaches the decoder.
var wavMagic = [][]byte{[]byte("RIFF")}

// UploadHandler accepts audio file uploads into uploadDir, validating
// magic bytes, capping size, and writing with an exclusive create under
// a server-generated UUID filename so a symlink planted at a
// predictable path can't be raced into place between check and write.
type UploadHandler struct {
	uploadDir string
}

func NewUploadHandler(uploadDir string) *UploadHandler {
	return &UploadHandler{uploadDir: uploadDir}
}

func (h *UploadHandler) Handle(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return respondError(c, apperrors.Newf("no file provided").Category(apperrors.CategoryInvalid).Build())
	}
	if fileHeader.Size > maxUploadBytes {
		return respondError(c, apperrors.Newf("file too large").Category(apperrors.CategoryInvalid).Build())
	}

	src, err := fileHeader.Open()
	if err != nil {
		return respondError(c, apperrors.New(err).Category(apperrors.CategoryInternal).Build())
	}
	defer src.Close()

	header := make([]byte, 12)
	n, _ := io.ReadFull(src, header)
	header = header[:n]
	if !hasWAVMagic(header) {
		return respondError(c, apperrors.Newf("unsupported file type").Category(apperrors.CategoryInvalid).Build())
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return respondError(c, apperrors.New(err).Category(apperrors.CategoryInternal).Build())
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return respondError(c, apperrors.New(err).Category(apperrors.CategoryInternal).Build())
	}

	destName := uuid.NewString() + ".wav"
	destPath := filepath.Join(h.uploadDir, destName)

	dest, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return respondError(c, apperrors.New(err).Category(apperrors.CategoryInternal).Build())
	}
	defer dest.Close()

	if _, err := io.CopyN(dest, src, maxUploadBytes); err != nil && err != io.EOF {
		os.Remove(destPath)
		return respondError(c, apperrors.New(err).Category(apperrors.CategoryInternal).Build())
	}

	return c.JSON(http.StatusCreated, map[string]string{"filename": destName})
}

// hasWAVMagic reports whether header begins with a RIFF tag and, if
// enough bytes were read, a WAVE format tag at offset 8.
func hasWAVMagic(header []byte) bool {
	for _, magic := range wavMagic {
		if len(header) < len(magic) || !bytes.Equal(header[:len(magic)], magic) {
			return false
		}
	}
	if len(header) >= 12 && !bytes.Equal(header[8:12], []byte("WAVE")) {
		return false
	}
	return true
}
