package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fpang/prompt-enhancer/internal/enhance"
)

// newTestClient creates a Client pointing at a test HTTP server.
func newTestClient(server *httptest.Server, name enhance.ProviderName) *Client {
	c := newClient(server.URL, name, "Gemini")
	c.httpClient = server.Client()
	return c
}

func TestEnhance_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/enhance/primary" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Prompt != "sunset" {
			t.Errorf("unexpected prompt: %s", body.Prompt)
		}
		if !strings.HasPrefix(body.Image, "data:image/png;base64,") {
			t.Errorf("expected data URL image, got %q", body.Image)
		}
		json.NewEncoder(w).Encode(enhance.Envelope{Success: true, EnhancedPrompt: "sunset, slow pan", Provider: enhance.ProviderPrimary})
	}))
	defer server.Close()

	client := newTestClient(server, enhance.ProviderPrimary)
	got, err := client.Enhance(context.Background(), "sunset", &enhance.Image{Data: []byte("png"), MIMEType: "image/png"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "sunset, slow pan" {
		t.Errorf("expected enhanced prompt, got %q", got)
	}
}

func TestEnhance_NonSuccessOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantSub string
	}{
		{"success false with 200", http.StatusOK, `{"success":false,"provider":"Primary","error":"quota"}`, "quota"},
		{"server error", http.StatusInternalServerError, `{"success":false,"error":"Gemini API key not configured"}`, "HTTP 500: Gemini API key not configured"},
		{"bad gateway without body", http.StatusBadGateway, ``, "HTTP 502: Bad Gateway"},
		{"malformed json", http.StatusOK, `not json`, "parse response"},
		{"empty prompt", http.StatusOK, `{"success":true,"enhancedPrompt":"  ","provider":"Primary"}`, "no enhanced prompt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestClient(server, enhance.ProviderPrimary)
			_, err := client.Enhance(context.Background(), "sunset", nil)
			var provErr *enhance.ProviderError
			if !errors.As(err, &provErr) {
				t.Fatalf("expected ProviderError, got %v", err)
			}
			if provErr.Provider != enhance.ProviderPrimary {
				t.Errorf("expected provider Primary, got %s", provErr.Provider)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("expected error containing %q, got %q", tt.wantSub, err.Error())
			}
		})
	}
}

func TestSecondaryPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/enhance/secondary" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if _, hasImage := body["image"]; hasImage {
			t.Error("expected image omitted for text-only request")
		}
		json.NewEncoder(w).Encode(enhance.Envelope{Success: true, EnhancedPrompt: "ok", Provider: enhance.ProviderSecondary})
	}))
	defer server.Close()

	client := NewSecondary(server.URL + "/")
	client.httpClient = server.Client()
	if client.Vendor() != "OpenAI" {
		t.Errorf("unexpected vendor %s", client.Vendor())
	}
	if _, err := client.Enhance(context.Background(), "cat", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
