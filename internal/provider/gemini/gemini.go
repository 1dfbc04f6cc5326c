// Package gemini is the Primary provider adapter, backed by the Gemini API.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/prompt-enhancer/internal/assets"
	"github.com/fpang/prompt-enhancer/internal/enhance"
	"github.com/fpang/prompt-enhancer/internal/provider"
)

// Vendor is the display name used in messages and logs.
const Vendor = "Gemini"

// Gemini model IDs used by the adapter.
const (
	// ModelGemini25Flash is stable, balanced performance with image input.
	ModelGemini25Flash = "gemini-2.5-flash"

	// ModelGemini25FlashLite is for high-throughput, lowest cost text prompts.
	ModelGemini25FlashLite = "gemini-2.5-flash-lite"
)

// Config holds everything the adapter needs. The zero value of every field
// except APIKey falls back to a default.
type Config struct {
	APIKey      string
	TextModel   string
	VisionModel string
	BaseURL     string
	Timeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.TextModel == "" {
		c.TextModel = ModelGemini25FlashLite
	}
	if c.VisionModel == "" {
		c.VisionModel = ModelGemini25Flash
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return c
}

// Provider calls Gemini GenerateContent. It is safe for concurrent use.
type Provider struct {
	cfg    Config
	client *genai.Client
}

// New creates the adapter. An empty APIKey is not an error: the returned
// Provider answers every call with a ConfigurationError.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	cfg = cfg.withDefaults()
	p := &Provider{cfg: cfg}
	if cfg.APIKey == "" {
		log.Warn().Msg("Gemini API key not configured; primary provider disabled")
		return p, nil
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	p.client = client
	return p, nil
}

// Vendor implements enhance.Provider.
func (p *Provider) Vendor() string { return Vendor }

// Configured reports whether a credential is present.
func (p *Provider) Configured() bool { return p.client != nil }

// Enhance implements enhance.Provider.
func (p *Provider) Enhance(ctx context.Context, prompt string, image *enhance.Image) (string, error) {
	if p.client == nil {
		return "", &enhance.ConfigurationError{Provider: enhance.ProviderPrimary, Vendor: Vendor}
	}

	hasImage := image != nil && len(image.Data) > 0
	modelName := p.cfg.TextModel
	var parts []*genai.Part
	if hasImage {
		modelName = p.cfg.VisionModel
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: image.MIMEType,
				Data:     image.Data,
			},
		})
	}
	parts = append(parts, &genai.Part{Text: assets.UserPrompt(prompt, hasImage)})

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: assets.SystemPrompt(hasImage)}},
		},
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	log.Debug().
		Str("model", modelName).
		Bool("has_image", hasImage).
		Int("prompt_length", len(prompt)).
		Msg("Starting Gemini API call")

	callStart := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, modelName, contents, config)
	duration := time.Since(callStart)
	if err != nil {
		log.Error().Err(err).Str("model", modelName).Dur("duration", duration).Msg("Gemini API call failed")
		return "", &enhance.ProviderError{
			Provider: enhance.ProviderPrimary,
			Vendor:   Vendor,
			Message:  "Failed to enhance prompt with " + Vendor,
			Err:      err,
		}
	}
	if resp == nil {
		return "", &enhance.ProviderError{
			Provider: enhance.ProviderPrimary,
			Vendor:   Vendor,
			Message:  "Failed to enhance prompt with " + Vendor,
			Err:      fmt.Errorf("received empty response from Gemini API"),
		}
	}

	raw := resp.Text()
	text := provider.CleanOutput(raw)
	log.Debug().
		Int("response_length", len(raw)).
		Str("preview", provider.Truncate(text, 80)).
		Dur("duration", duration).
		Msg("Gemini API response received")

	if text == "" {
		return "", &enhance.ProviderError{
			Provider: enhance.ProviderPrimary,
			Vendor:   Vendor,
			Message:  "Failed to enhance prompt with " + Vendor,
			Err:      fmt.Errorf("model returned no text"),
		}
	}
	return text, nil
}
