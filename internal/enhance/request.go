package enhance

import (
	"encoding/base64"
	"strings"
)

// Image is a validated image payload. Use the filehandler package to build one
// from untrusted input.
type Image struct {
	Data     []byte
	MIMEType string
}

// Base64 returns the standard base64 encoding of the image bytes.
func (img *Image) Base64() string {
	return base64.StdEncoding.EncodeToString(img.Data)
}

// DataURL returns the image as a data: URL.
func (img *Image) DataURL() string {
	return "data:" + img.MIMEType + ";base64," + img.Base64()
}

// Request is one enhancement request. Prompt is already trimmed.
type Request struct {
	Prompt string
	Image  *Image
}

// ErrMsgPromptRequired is the message returned for a missing or blank prompt.
const ErrMsgPromptRequired = "Prompt is required"

// NewRequest trims the prompt and rejects it when blank. The image, if any,
// must already have passed filehandler validation.
func NewRequest(prompt string, image *Image) (Request, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Request{}, &ValidationError{Field: "prompt", Message: ErrMsgPromptRequired}
	}
	return Request{Prompt: prompt, Image: image}, nil
}

// HasImage reports whether the request carries an image.
func (r Request) HasImage() bool {
	return r.Image != nil && len(r.Image.Data) > 0
}
