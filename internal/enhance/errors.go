package enhance

import (
	"errors"
	"fmt"
)

// ValidationError reports a request that must be rejected before any provider
// is called: an empty prompt, an unsupported image type or an oversized image.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ProviderError wraps a vendor or network failure from one provider call.
type ProviderError struct {
	Provider ProviderName
	Vendor   string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports a provider that cannot be called because its
// server-side credential is missing.
type ConfigurationError struct {
	Provider ProviderName
	Vendor   string
}

func (e *ConfigurationError) Error() string {
	return e.Vendor + " API key not configured"
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}
