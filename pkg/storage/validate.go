package storage

import (
	"errors"
	"fmt"
	"mime"
	"strings"
)

// MaxVideoFileSize is the upload ceiling (250 MiB). Sizes at or above it are rejected.
const MaxVideoFileSize int64 = 250 * 1024 * 1024

var (
	// ErrUnsupportedType is returned for content types outside AllowedVideoTypes.
	ErrUnsupportedType = errors.New("unsupported video type")
	// ErrFileTooLarge is returned for files at or above the size ceiling.
	ErrFileTooLarge = errors.New("file too large")
	// ErrInvalidSize is returned for negative sizes.
	ErrInvalidSize = errors.New("invalid file size")
)

// AllowedVideoTypes maps accepted MIME types to a default file extension.
var AllowedVideoTypes = map[string]string{
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"video/ogg":       ".ogv",
	"video/quicktime": ".mov",
}

// ContentTypeByExtension guesses a video content type from a filename extension such as
// ".webm". It returns "" when the extension is unknown.
func ContentTypeByExtension(ext string) string {
	ext = strings.ToLower(ext)
	for ct, e := range AllowedVideoTypes {
		if e == ext {
			return ct
		}
	}
	switch ext {
	case ".m4v":
		return "video/mp4"
	case ".ogg":
		return "video/ogg"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return NormalizeContentType(ct)
	}
	return ""
}

// ValidateVideoUpload checks a declared content type and byte size against the upload rules
// using the default ceiling.
func ValidateVideoUpload(contentType string, size int64) error {
	return ValidateVideoUploadLimit(contentType, size, MaxVideoFileSize)
}

// ValidateVideoUploadLimit is ValidateVideoUpload with an explicit ceiling.
func ValidateVideoUploadLimit(contentType string, size, maxBytes int64) error {
	mediaType := NormalizeContentType(contentType)
	if _, ok := AllowedVideoTypes[mediaType]; !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	if size < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if size >= maxBytes {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, size, maxBytes)
	}
	return nil
}

// NormalizeContentType lower-cases a content type and drops parameters such as codecs.
func NormalizeContentType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt
	}
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
