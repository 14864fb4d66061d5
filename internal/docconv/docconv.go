// Package docconv converts source documents (DOCX, PDF, XLSX) into
// Markdown for upload. Markdown files pass through unchanged.
package docconv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned for file types without a converter.
var ErrUnsupported = errors.New("docconv: unsupported file type")

// supportedExts lists convertible extensions, lowercase with dot.
var supportedExts = map[string]bool{
	".md":   true,
	".docx": true,
	".pdf":  true,
	".xlsx": true,
}

// Supported reports whether the file's extension has a converter.
func Supported(path string) bool {
	return supportedExts[strings.ToLower(filepath.Ext(path))]
}

// MimeType returns the upload MIME type for a converted document.
// Everything is uploaded as Markdown text.
func MimeType() string {
	return "text/markdown"
}

// Convert reads the file and returns its Markdown rendition.
func Convert(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md":
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("docconv: read %s: %w", path, err)
		}
		return string(raw), nil
	case ".docx":
		return convertDocx(path)
	case ".pdf":
		return convertPDF(path)
	case ".xlsx":
		return convertXlsx(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
}

// stem returns the file name without directory or extension, used as a
// document title for formats that carry none.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
