// Package api serves the prompt enhancer's JSON endpoints.
//
// Endpoints:
//
//	POST /enhance/primary   one call to the Primary provider (image capable)
//	POST /enhance/secondary one call to the Secondary provider
//	POST /api/enhance       full Primary → Secondary sequence, result stored
//	GET  /api/results/{id}  a stored result
//	GET  /health            liveness
//	GET  /metrics           Prometheus exposition, when configured
//
// Every enhancement response uses the enhance.Envelope shape.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/prompt-enhancer/internal/enhance"
	"github.com/fpang/prompt-enhancer/internal/filehandler"
	"github.com/fpang/prompt-enhancer/internal/store"
)

// Client-facing messages.
const (
	ErrMsgMethodNotAllowed = "Method not allowed. Use POST."
	ErrMsgInvalidJSON      = "Invalid JSON body"
	ErrMsgBodyTooLarge     = "Request body too large"
	ErrMsgResultNotFound   = "Result not found"
)

// bodyOverhead is the request body allowance on top of the encoded image.
const bodyOverhead = 64 << 10

// Config wires a Handler to its collaborators.
type Config struct {
	Orchestrator *enhance.Orchestrator
	Primary      enhance.Provider
	Secondary    enhance.Provider
	Store        store.ResultStore

	// MaxImageBytes caps decoded image size. Zero uses filehandler.DefaultMaxImageBytes.
	MaxImageBytes int64

	// Metrics is served on /metrics when set.
	Metrics http.Handler
}

// Handler serves the JSON endpoints.
type Handler struct {
	orch          *enhance.Orchestrator
	primary       enhance.Provider
	secondary     enhance.Provider
	store         store.ResultStore
	maxImageBytes int64
	metrics       http.Handler
}

// New creates a Handler.
func New(cfg Config) *Handler {
	maxImage := cfg.MaxImageBytes
	if maxImage <= 0 {
		maxImage = filehandler.DefaultMaxImageBytes
	}
	return &Handler{
		orch:          cfg.Orchestrator,
		primary:       cfg.Primary,
		secondary:     cfg.Secondary,
		store:         cfg.Store,
		maxImageBytes: maxImage,
		metrics:       cfg.Metrics,
	}
}

// Register adds the JSON routes to mux. The enhancement routes accept every
// method so that wrong methods get a JSON 405 rather than the mux's plain one.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/enhance/primary", h.handleAdapter(enhance.ProviderPrimary, h.primary))
	mux.HandleFunc("/enhance/secondary", h.handleAdapter(enhance.ProviderSecondary, h.secondary))
	mux.HandleFunc("/api/enhance", h.handleEnhance)
	mux.HandleFunc("GET /api/results/{id}", h.handleGetResult)
	mux.HandleFunc("GET /health", handleHealth)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}
}

// MaxBodyBytes is the request body cap for an image limit of maxImageBytes:
// the base64 size of the image plus room for the prompt and JSON framing.
func MaxBodyBytes(maxImageBytes int64) int64 {
	return (maxImageBytes+2)/3*4 + bodyOverhead
}

// enhanceBody is the JSON request accepted by every enhancement endpoint.
// Image is base64, with or without a data: URL prefix.
type enhanceBody struct {
	Prompt        string `json:"prompt"`
	Image         string `json:"image,omitempty"`
	AllowFallback *bool  `json:"allowFallback,omitempty"`
}

// decodeRequest reads and validates an enhancement body. Validation failures
// are *enhance.ValidationError.
func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (enhance.Request, *enhanceBody, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes(h.maxImageBytes))

	var body enhanceBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return enhance.Request{}, nil, &enhance.ValidationError{Field: "body", Message: ErrMsgBodyTooLarge}
		}
		return enhance.Request{}, nil, &enhance.ValidationError{Field: "body", Message: ErrMsgInvalidJSON}
	}

	if strings.TrimSpace(body.Prompt) == "" {
		return enhance.Request{}, nil, &enhance.ValidationError{Field: "prompt", Message: enhance.ErrMsgPromptRequired}
	}

	var img *enhance.Image
	if body.Image != "" {
		decoded, err := filehandler.DecodeBase64Image(body.Image, h.maxImageBytes)
		if err != nil {
			return enhance.Request{}, nil, err
		}
		img = decoded
	}

	req, err := enhance.NewRequest(body.Prompt, img)
	if err != nil {
		return enhance.Request{}, nil, err
	}
	return req, &body, nil
}

// handleAdapter exposes a single provider. It never falls back.
func (h *Handler) handleAdapter(name enhance.ProviderName, p enhance.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusOK)
			return
		case http.MethodPost:
		default:
			httpError(w, http.StatusMethodNotAllowed, ErrMsgMethodNotAllowed)
			return
		}

		req, _, err := h.decodeRequest(w, r)
		if err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}

		if p == nil {
			cfgErr := &enhance.ConfigurationError{Provider: name, Vendor: string(name)}
			httpError(w, http.StatusInternalServerError, cfgErr.Error())
			return
		}

		vendor := p.Vendor()
		text, err := p.Enhance(r.Context(), req.Prompt, req.Image)
		switch {
		case enhance.IsConfigurationError(err):
			log.Error().Str("provider", string(name)).Str("vendor", vendor).Msg("Provider credential missing")
			httpError(w, http.StatusInternalServerError, err.Error())
		case err != nil:
			httpError(w, http.StatusInternalServerError, "Failed to enhance prompt with "+vendor, err.Error())
		case strings.TrimSpace(text) == "":
			httpError(w, http.StatusInternalServerError, "Failed to enhance prompt with "+vendor, "empty output")
		default:
			log.Info().
				Str("provider", string(name)).
				Str("vendor", vendor).
				Bool("has_image", req.HasImage()).
				Int("prompt_len", len(req.Prompt)).
				Int("enhanced_len", len(text)).
				Msg("Prompt enhanced")
			respondJSON(w, http.StatusOK, enhance.Success{EnhancedPrompt: strings.TrimSpace(text), From: name}.Envelope())
		}
	}
}

// enhanceResponse is the orchestrated endpoint's reply: the envelope plus the
// ID under which a successful result was stored.
type enhanceResponse struct {
	enhance.Envelope
	ResultID string `json:"resultId,omitempty"`
}

// handleEnhance runs the full provider sequence and stores successful results.
func (h *Handler) handleEnhance(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		httpError(w, http.StatusMethodNotAllowed, ErrMsgMethodNotAllowed)
		return
	}

	req, body, err := h.decodeRequest(w, r)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	var opts []enhance.Option
	if body.AllowFallback != nil {
		opts = append(opts, enhance.WithFallback(*body.AllowFallback))
	}

	res := h.orch.Enhance(r.Context(), req, opts...)
	resp := enhanceResponse{Envelope: res.Envelope()}
	if _, failed := res.(enhance.Failure); failed {
		respondJSON(w, http.StatusBadGateway, resp)
		return
	}

	if h.store != nil {
		stored := &store.StoredResult{
			OriginalPrompt: req.Prompt,
			Envelope:       resp.Envelope,
			HadImage:       req.HasImage(),
		}
		if err := h.store.PutResult(r.Context(), stored); err != nil {
			log.Error().Err(err).Msg("Failed to store enhancement result")
		} else {
			resp.ResultID = stored.ID
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleGetResult returns a stored result by ID.
func (h *Handler) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if h.store == nil || !store.ValidID(id) {
		httpError(w, http.StatusNotFound, ErrMsgResultNotFound)
		return
	}

	result, err := h.store.GetResult(r.Context(), id)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "Failed to load result", err.Error())
		return
	}
	if result == nil {
		httpError(w, http.StatusNotFound, ErrMsgResultNotFound)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
