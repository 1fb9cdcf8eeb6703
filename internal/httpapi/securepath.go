// Package httpapi implements the HTTP boundary: file upload, artwork
// serving, single-chunk streaming fallback, and process triggering.
// Modeled on the teacher's httpcontroller package (securefs, media.go,
// backup_routes.go), rebuilt around a music library instead of bird
// detection clips.
package httpapi

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/auralis/auralis/internal/apperrors"
)

// resolveWithinDir resolves candidate against baseDir and confirms the
// result is contained within baseDir, collapsing "outside the allowed
// directory" and "does not exist" into the same generic not-found error
// so a client cannot use response differences to probe the filesystem.
func resolveWithinDir(baseDir, candidate string) (string, error) {
	notFound := apperrors.Newf("resource not found").Category(apperrors.CategoryNotFound).Build()

	if !filepath.IsLocal(candidate) {
		return "", notFound
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", notFound
	}
	target := filepath.Join(absBase, candidate)
	target = filepath.Clean(target)

	if target != absBase && !strings.HasPrefix(target, absBase+string(filepath.Separator)) {
		return "", notFound
	}

	if _, err := os.Stat(target); err != nil {
		return "", notFound
	}

	return target, nil
}
