package services

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"

	"github.com/aksharma/outfit-fitcheck/internal/models"
)

// MaxImageBytes caps uploads at 10MB, matching the server-side form limit.
const MaxImageBytes = 10 << 20

// ValidateImage checks that the upload is a decodable image in a supported
// format and returns its content type. The content type is sniffed from the
// bytes, never taken from the upload headers.
func ValidateImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", models.UploadError{Issue: "no image data"}
	}
	if len(data) > MaxImageBytes {
		return "", models.UploadError{Issue: "image exceeds the 10MB limit"}
	}

	contentType := http.DetectContentType(data)
	switch contentType {
	case "image/jpeg", "image/png", "image/gif":
	default:
		return "", models.UploadError{Issue: "unsupported format, use JPEG, PNG, or GIF"}
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return "", models.UploadError{Issue: "image could not be decoded"}
	}

	return contentType, nil
}
