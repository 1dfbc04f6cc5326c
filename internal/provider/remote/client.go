// Package remote provides enhance.Provider implementations that call the
// adapter endpoints of a running prompt-enhancer server
// (POST {base}/enhance/primary and POST {base}/enhance/secondary).
//
// The CLI uses it to drive a deployed server the same way the browser does.
// Every outcome other than a 2xx response with success=true becomes a
// *enhance.ProviderError, so the orchestrator falls back on all of them.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/prompt-enhancer/internal/enhance"
	"github.com/fpang/prompt-enhancer/internal/provider"
)

// defaultTimeout is the HTTP client timeout for one adapter call.
const defaultTimeout = 90 * time.Second

// Client calls one adapter endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	name       enhance.ProviderName
	vendor     string
}

// NewPrimary creates a client for POST {baseURL}/enhance/primary.
func NewPrimary(baseURL string) *Client {
	return newClient(baseURL, enhance.ProviderPrimary, "Gemini")
}

// NewSecondary creates a client for POST {baseURL}/enhance/secondary.
func NewSecondary(baseURL string) *Client {
	return newClient(baseURL, enhance.ProviderSecondary, "OpenAI")
}

func newClient(baseURL string, name enhance.ProviderName, vendor string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		name:       name,
		vendor:     vendor,
	}
}

// requestBody matches the adapter endpoint request.
type requestBody struct {
	Prompt string `json:"prompt"`
	Image  string `json:"image,omitempty"`
}

// Vendor implements enhance.Provider.
func (c *Client) Vendor() string { return c.vendor }

// Enhance implements enhance.Provider.
func (c *Client) Enhance(ctx context.Context, prompt string, image *enhance.Image) (string, error) {
	body := requestBody{Prompt: prompt}
	if image != nil && len(image.Data) > 0 {
		body.Image = image.DataURL()
	}

	env, err := c.postJSON(ctx, "/enhance/"+strings.ToLower(string(c.name)), body)
	if err != nil {
		return "", c.failure(err)
	}
	return env.EnhancedPrompt, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any) (*enhance.Envelope, error) {
	startTime := time.Now()

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	log.Debug().Str("method", http.MethodPost).Str("path", endpoint).Msg("Remote adapter request")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		log.Debug().Int("statusCode", 0).Dur("duration", duration).Err(err).Msg("Remote adapter response")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	log.Debug().Int("statusCode", httpResp.StatusCode).Dur("duration", duration).Msg("Remote adapter response")

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env enhance.Envelope
	decodeErr := json.Unmarshal(respBody, &env)

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		if decodeErr == nil && env.Error != "" {
			return nil, fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, env.Error)
		}
		return nil, fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, http.StatusText(httpResp.StatusCode))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("parse response: %w (body: %s)", decodeErr, provider.Truncate(string(respBody), 200))
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "adapter reported success=false"
		}
		return nil, fmt.Errorf("%s", msg)
	}
	if strings.TrimSpace(env.EnhancedPrompt) == "" {
		return nil, fmt.Errorf("unexpected response: no enhanced prompt (body: %s)", provider.Truncate(string(respBody), 200))
	}
	return &env, nil
}

func (c *Client) failure(err error) error {
	return &enhance.ProviderError{
		Provider: c.name,
		Vendor:   c.vendor,
		Message:  "Failed to enhance prompt with " + c.vendor,
		Err:      err,
	}
}
