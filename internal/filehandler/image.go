// Package filehandler validates user-supplied images before they reach a provider.
//
// An image is accepted only when its declared type (if any) and its sniffed
// type are both in SupportedImageTypes, it fits within the size limit, and its
// header decodes as a real image.
package filehandler

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder for image.DecodeConfig
	_ "image/jpeg" // register JPEG decoder for image.DecodeConfig
	_ "image/png"  // register PNG decoder for image.DecodeConfig
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp" // register WebP decoder for image.DecodeConfig

	"github.com/fpang/prompt-enhancer/internal/enhance"
)

// DefaultMaxImageBytes is the default upload limit (5 MiB).
const DefaultMaxImageBytes int64 = 5 << 20

// SupportedImageTypes maps accepted MIME types to a display name.
var SupportedImageTypes = map[string]string{
	"image/jpeg": "JPEG",
	"image/png":  "PNG",
	"image/webp": "WebP",
	"image/gif":  "GIF",
}

// AcceptAttribute is the value for an HTML file input's accept attribute.
const AcceptAttribute = "image/jpeg,image/png,image/webp,image/gif"

// ErrMsgUnsupportedType is returned for any image outside SupportedImageTypes.
const ErrMsgUnsupportedType = "Unsupported image type. Please use JPEG, PNG, WebP, or GIF."

// IsSupportedType reports whether mimeType is an accepted image type.
// Parameters such as "; charset=" are ignored.
func IsSupportedType(mimeType string) bool {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	_, ok := SupportedImageTypes[strings.ToLower(strings.TrimSpace(mimeType))]
	return ok
}

// DecodeBase64Image decodes a base64 image as sent by the browser. A leading
// data URL prefix ("data:image/png;base64,") is stripped and its MIME type is
// treated as the declared type.
func DecodeBase64Image(encoded string, maxBytes int64) (*enhance.Image, error) {
	encoded = strings.TrimSpace(encoded)
	declared := ""
	if strings.HasPrefix(encoded, "data:") {
		comma := strings.IndexByte(encoded, ',')
		if comma < 0 {
			return nil, invalidImage("Image data is not valid base64.")
		}
		header := encoded[len("data:"):comma]
		declared = strings.TrimSuffix(header, ";base64")
		encoded = encoded[comma+1:]
	}

	// Reject before decoding when the encoded form is already too long.
	if int64(base64.StdEncoding.DecodedLen(len(encoded))) > maxBytes+2 {
		return nil, TooLarge(maxBytes)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		log.Debug().Err(err).Int("encoded_length", len(encoded)).Msg("Image base64 decode failed")
		return nil, invalidImage("Image data is not valid base64.")
	}
	return validate(data, declared, maxBytes)
}

// ReadImage reads an uploaded image from r. declaredType is the Content-Type
// reported by the client; pass "" when unknown.
func ReadImage(r io.Reader, declaredType string, maxBytes int64) (*enhance.Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return validate(data, declaredType, maxBytes)
}

func validate(data []byte, declaredType string, maxBytes int64) (*enhance.Image, error) {
	if declaredType != "" && !IsSupportedType(declaredType) {
		log.Debug().Str("declared_type", declaredType).Msg("Rejected image with unsupported declared type")
		return nil, invalidImage(ErrMsgUnsupportedType)
	}
	if int64(len(data)) > maxBytes {
		return nil, TooLarge(maxBytes)
	}
	if len(data) == 0 {
		return nil, invalidImage("Image is empty.")
	}

	detected := mimetype.Detect(data).String()
	if !IsSupportedType(detected) {
		log.Debug().Str("detected_type", detected).Msg("Rejected image with unsupported content")
		return nil, invalidImage(ErrMsgUnsupportedType)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Str("detected_type", detected).Msg("Image header failed to decode")
		return nil, invalidImage("Image could not be decoded.")
	}

	log.Debug().
		Str("mime", detected).
		Str("format", format).
		Int("width", cfg.Width).
		Int("height", cfg.Height).
		Int("bytes", len(data)).
		Msg("Image accepted")

	return &enhance.Image{Data: data, MIMEType: detected}, nil
}

func invalidImage(msg string) error {
	return &enhance.ValidationError{Field: "image", Message: msg}
}

// TooLarge returns the validation error for an image over maxBytes.
func TooLarge(maxBytes int64) error {
	return invalidImage(fmt.Sprintf("Image too large. Maximum size is %s.", FormatSize(maxBytes)))
}

// FormatSize renders a byte count the way the upload form describes limits.
func FormatSize(n int64) string {
	const mb = 1 << 20
	if n >= mb && n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	if n >= 1<<10 && n%(1<<10) == 0 {
		return fmt.Sprintf("%dKB", n/(1<<10))
	}
	return fmt.Sprintf("%d bytes", n)
}
