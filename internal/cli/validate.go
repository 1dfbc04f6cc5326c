package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fpang/prompt-enhancer/internal/auth"
	"github.com/fpang/prompt-enhancer/internal/enhance"
)

// Process exit codes.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitValidation = 2
)

// ExitCode maps an error to the process exit code. Input validation errors
// exit with ExitValidation so scripts can tell them apart from provider
// failures.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case enhance.IsValidationError(err):
		return ExitValidation
	default:
		return ExitFailure
	}
}

// ValidateAndResolveFile checks that the path exists and is a regular file,
// then returns the absolute path.
func ValidateAndResolveFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &enhance.ValidationError{Field: "image", Message: fmt.Sprintf("Image file not found: %s", path)}
		}
		return "", fmt.Errorf("failed to access %s: %w", path, err)
	}
	if info.IsDir() {
		return "", &enhance.ValidationError{Field: "image", Message: fmt.Sprintf("Image path is a directory: %s", path)}
	}

	if absPath, err := filepath.Abs(path); err == nil {
		path = absPath
	}
	return path, nil
}

// ValidationMessage turns an auth.ValidationError into advice for vendor.
func ValidationMessage(vendor string, err error) string {
	var validationErr *auth.ValidationError
	if !errors.As(err, &validationErr) {
		return fmt.Sprintf("%s: unexpected error during API key validation", vendor)
	}
	switch validationErr.Type {
	case auth.ErrTypeNoKey:
		return fmt.Sprintf("%s: no API key configured. Set the environment variable or create the GPG credentials file", vendor)
	case auth.ErrTypeInvalidKey:
		return fmt.Sprintf("%s: invalid API key. Please check your API key and try again", vendor)
	case auth.ErrTypeNetworkError:
		return fmt.Sprintf("%s: network error. Please check your internet connection", vendor)
	case auth.ErrTypeQuotaExceeded:
		return fmt.Sprintf("%s: API quota exceeded. Please try again later or check your usage limits", vendor)
	default:
		return fmt.Sprintf("%s: API key validation failed", vendor)
	}
}
