// Package openai is the Secondary provider adapter, backed by the OpenAI
// Responses API.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/rs/zerolog/log"

	"github.com/fpang/prompt-enhancer/internal/assets"
	"github.com/fpang/prompt-enhancer/internal/enhance"
	"github.com/fpang/prompt-enhancer/internal/provider"
)

// Vendor is the display name used in messages and logs.
const Vendor = "OpenAI"

// Default models and output cap.
const (
	DefaultTextModel   = "gpt-4o-mini"
	DefaultVisionModel = "gpt-4o"
	DefaultMaxTokens   = 500
)

// Config holds everything the adapter needs.
type Config struct {
	APIKey      string
	TextModel   string
	VisionModel string
	BaseURL     string
	MaxTokens   int64
	Timeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.TextModel == "" {
		c.TextModel = DefaultTextModel
	}
	if c.VisionModel == "" {
		c.VisionModel = DefaultVisionModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return c
}

// Provider calls the Responses API. It is safe for concurrent use.
type Provider struct {
	cfg    Config
	client *openai.Client
}

// New creates the adapter. An empty APIKey yields a Provider that answers
// every call with a ConfigurationError.
func New(cfg Config) *Provider {
	cfg = cfg.withDefaults()
	p := &Provider{cfg: cfg}
	if cfg.APIKey == "" {
		log.Warn().Msg("OpenAI API key not configured; secondary provider disabled")
		return p
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}
	client := openai.NewClient(opts...)
	p.client = &client
	return p
}

// Vendor implements enhance.Provider.
func (p *Provider) Vendor() string { return Vendor }

// Configured reports whether a credential is present.
func (p *Provider) Configured() bool { return p.client != nil }

// Enhance implements enhance.Provider.
func (p *Provider) Enhance(ctx context.Context, prompt string, image *enhance.Image) (string, error) {
	if p.client == nil {
		return "", &enhance.ConfigurationError{Provider: enhance.ProviderSecondary, Vendor: Vendor}
	}

	hasImage := image != nil && len(image.Data) > 0
	model := p.cfg.TextModel
	content := responses.ResponseInputMessageContentListParam{
		{
			OfInputText: &responses.ResponseInputTextParam{
				Text: assets.UserPrompt(prompt, hasImage),
			},
		},
	}
	if hasImage {
		model = p.cfg.VisionModel
		content = append(content, responses.ResponseInputContentUnionParam{
			OfInputImage: &responses.ResponseInputImageParam{
				Detail:   responses.ResponseInputImageDetailAuto,
				ImageURL: openai.String(image.DataURL()),
			},
		})
	}

	log.Debug().
		Str("model", model).
		Bool("has_image", hasImage).
		Int("prompt_length", len(prompt)).
		Msg("Starting OpenAI API call")

	callStart := time.Now()
	resp, err := p.client.Responses.New(ctx, responses.ResponseNewParams{
		Model:           model,
		Instructions:    openai.String(assets.SystemPrompt(hasImage)),
		MaxOutputTokens: openai.Int(p.cfg.MaxTokens),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				responses.ResponseInputItemParamOfMessage(content, responses.EasyInputMessageRoleUser),
			},
		},
	})
	duration := time.Since(callStart)
	if err != nil {
		log.Error().Err(err).Str("model", model).Dur("duration", duration).Msg("OpenAI API call failed")
		return "", p.failure(err)
	}

	raw := resp.OutputText()
	text := provider.CleanOutput(raw)
	log.Debug().
		Int("response_length", len(raw)).
		Str("preview", provider.Truncate(text, 80)).
		Dur("duration", duration).
		Msg("OpenAI API response received")

	if text == "" {
		return "", p.failure(fmt.Errorf("model returned no text (status %s)", resp.Status))
	}
	return text, nil
}

func (p *Provider) failure(err error) error {
	return &enhance.ProviderError{
		Provider: enhance.ProviderSecondary,
		Vendor:   Vendor,
		Message:  "Failed to enhance prompt with " + Vendor,
		Err:      err,
	}
}
