package auth

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"

	"github.com/fpang/prompt-enhancer/internal/enhance"
)

func TestGetAPIKeyFromEnv(t *testing.T) {
	const testKey = "test-api-key-12345"
	t.Setenv("GEMINI_API_KEY", testKey)
	t.Setenv("OPENAI_API_KEY", "  sk-openai  ")

	key, err := GetAPIKey("gemini")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != testKey {
		t.Errorf("expected key %q, got %q", testKey, key)
	}

	key, err = GetAPIKey("OpenAI")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "sk-openai" {
		t.Errorf("expected trimmed key, got %q", key)
	}
}

func TestGetAPIKeyNoSource(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("HOME", t.TempDir())

	_, err := GetAPIKey("gemini")
	if err == nil {
		t.Fatal("expected error when no API key source available")
	}
	if !errors.Is(err, ErrNoKey) {
		t.Errorf("expected ErrNoKey, got %v", err)
	}
	if !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Errorf("expected hint naming the env var, got %q", err.Error())
	}
}

func TestGetAPIKeyUnknownVendor(t *testing.T) {
	if _, err := GetAPIKey("anthropic"); err == nil {
		t.Error("expected error for unknown vendor")
	}
}

func TestGetCredentialPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := getCredentialPath("openai.gpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join(home, ".prompt-enhancer", "openai.gpg")
	if path != want {
		t.Errorf("expected %q, got %q", want, path)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ValidationErrorType
	}{
		{"configuration error", &enhance.ConfigurationError{Provider: enhance.ProviderPrimary, Vendor: "Gemini"}, ErrTypeNoKey},
		{"no key", ErrNoKey, ErrTypeNoKey},
		{"gemini unauthorized", genai.APIError{Code: 401, Message: "API key not valid"}, ErrTypeInvalidKey},
		{"gemini bad request", genai.APIError{Code: 400}, ErrTypeInvalidKey},
		{"gemini server error", genai.APIError{Code: 503}, ErrTypeNetworkError},
		{"wrapped gemini quota", &enhance.ProviderError{Vendor: "Gemini", Message: "failed", Err: genai.APIError{Code: 429}}, ErrTypeQuotaExceeded},
		{"openai rate limited", &openai.Error{StatusCode: 429}, ErrTypeQuotaExceeded},
		{"openai forbidden", &openai.Error{StatusCode: 403}, ErrTypeInvalidKey},
		{"message invalid key", errors.New("Incorrect API key provided"), ErrTypeInvalidKey},
		{"message quota", errors.New("RESOURCE EXHAUSTED: quota"), ErrTypeQuotaExceeded},
		{"message network", errors.New("dial tcp: no such host"), ErrTypeNetworkError},
		{"unknown", errors.New("something odd"), ErrTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			if got == nil {
				t.Fatal("expected a ValidationError")
			}
			if got.Type != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got.Type)
			}
		})
	}

	if ClassifyError(nil) != nil {
		t.Error("expected nil for nil error")
	}
}

type fakeProber struct {
	err    error
	prompt string
}

func (f *fakeProber) Vendor() string { return "Fake" }

func (f *fakeProber) Enhance(_ context.Context, prompt string, _ *enhance.Image) (string, error) {
	f.prompt = prompt
	return "ok", f.err
}

func TestValidateKey(t *testing.T) {
	p := &fakeProber{}
	if err := ValidateKey(context.Background(), p); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if p.prompt == "" {
		t.Error("expected a probe prompt to be sent")
	}

	p = &fakeProber{err: &enhance.ConfigurationError{Vendor: "Fake"}}
	err := ValidateKey(context.Background(), p)
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if valErr.Type != ErrTypeNoKey {
		t.Errorf("expected no_key, got %s", valErr.Type)
	}
}
