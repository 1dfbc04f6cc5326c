package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/prompt-enhancer/internal/enhance"
)

// ValidationError represents a specific type of API key validation failure.
type ValidationError struct {
	Type    ValidationErrorType
	Message string
	Err     error
}

// ValidationErrorType categorizes validation failures.
type ValidationErrorType int

const (
	// ErrTypeNoKey indicates no API key was found.
	ErrTypeNoKey ValidationErrorType = iota
	// ErrTypeInvalidKey indicates the API key is invalid or revoked.
	ErrTypeInvalidKey
	// ErrTypeNetworkError indicates a network connectivity issue.
	ErrTypeNetworkError
	// ErrTypeQuotaExceeded indicates the API quota has been exceeded.
	ErrTypeQuotaExceeded
	// ErrTypeUnknown indicates an unknown error occurred.
	ErrTypeUnknown
)

func (t ValidationErrorType) String() string {
	switch t {
	case ErrTypeNoKey:
		return "no_key"
	case ErrTypeInvalidKey:
		return "invalid_key"
	case ErrTypeNetworkError:
		return "network_error"
	case ErrTypeQuotaExceeded:
		return "quota"
	default:
		return "unknown"
	}
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Prober makes one minimal enhancement call. Both provider adapters satisfy it.
type Prober interface {
	Vendor() string
	Enhance(ctx context.Context, prompt string, image *enhance.Image) (string, error)
}

// ValidateKey verifies a provider's credential with a minimal text request.
// It returns nil if the key works, or a *ValidationError describing why not.
func ValidateKey(ctx context.Context, p Prober) error {
	log.Debug().Str("vendor", p.Vendor()).Msg("Validating API key")

	start := time.Now()
	_, err := p.Enhance(ctx, "a short test clip", nil)
	elapsed := time.Since(start)
	if err != nil {
		valErr := ClassifyError(err)
		log.Debug().
			Str("vendor", p.Vendor()).
			Str("result", valErr.Type.String()).
			Dur("duration", elapsed).
			Msg("API key validation result")
		return valErr
	}

	log.Info().Str("vendor", p.Vendor()).Dur("duration", elapsed).Msg("API key validated successfully")
	return nil
}

// ClassifyError analyzes a provider error and returns a ValidationError with the
// appropriate type. It understands genai.APIError, *openai.Error, missing
// credentials and common message patterns.
func ClassifyError(err error) *ValidationError {
	if err == nil {
		return nil
	}

	if enhance.IsConfigurationError(err) || errors.Is(err, ErrNoKey) {
		return &ValidationError{Type: ErrTypeNoKey, Message: "API key not configured", Err: err}
	}

	var geminiErr genai.APIError
	if errors.As(err, &geminiErr) {
		return classifyStatus(geminiErr.Code, geminiErr.Message, err)
	}

	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		return classifyStatus(openaiErr.StatusCode, openaiErr.Message, err)
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range messageRules {
		for _, needle := range rule.needles {
			if strings.Contains(msg, needle) {
				return &ValidationError{Type: rule.typ, Message: rule.message, Err: err}
			}
		}
	}
	return &ValidationError{Type: ErrTypeUnknown, Message: "Failed to validate API key", Err: err}
}

// messageRules classify errors that carry no vendor status code, checked in order.
var messageRules = []struct {
	typ     ValidationErrorType
	message string
	needles []string
}{
	{
		typ:     ErrTypeInvalidKey,
		message: "API key is invalid or has been revoked",
		needles: []string{"api key not valid", "invalid api key", "incorrect api key", "api_key_invalid", "permission denied"},
	},
	{
		typ:     ErrTypeQuotaExceeded,
		message: "API quota exceeded or rate limited",
		needles: []string{"quota", "resource exhausted", "rate limit"},
	},
	{
		typ:     ErrTypeNetworkError,
		message: "Network error - check your internet connection",
		needles: []string{"connection", "network", "timeout", "deadline exceeded", "dial", "no such host", "unreachable"},
	},
}

// classifyStatus maps a vendor HTTP status code to a ValidationError.
func classifyStatus(code int, message string, err error) *ValidationError {
	typ, text := ErrTypeUnknown, message
	switch {
	case code == http.StatusBadRequest:
		typ, text = ErrTypeInvalidKey, "Bad request - API key may be malformed"
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		typ, text = ErrTypeInvalidKey, "API key is invalid, expired, or lacks permissions"
	case code == http.StatusTooManyRequests:
		typ, text = ErrTypeQuotaExceeded, "API rate limit exceeded - try again later"
	case code >= http.StatusInternalServerError:
		typ, text = ErrTypeNetworkError, "Provider server error - try again later"
	case text == "":
		text = "Failed to validate API key"
	}
	return &ValidationError{Type: typ, Message: text, Err: err}
}
