package enhance

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrMsgBothFailed is the final error message once every eligible provider failed.
const ErrMsgBothFailed = "Both AI services failed to enhance the prompt"

// stage is a position in the enhancement sequence.
type stage int

const (
	stageNotStarted stage = iota
	stagePrimaryAttempted
	stageSecondaryAttempted
	stageDone
)

func (s stage) String() string {
	switch s {
	case stageNotStarted:
		return "not_started"
	case stagePrimaryAttempted:
		return "primary_attempted"
	case stageSecondaryAttempted:
		return "secondary_attempted"
	default:
		return "done"
	}
}

// Orchestrator runs the Primary → Secondary fallback sequence.
type Orchestrator struct {
	primary       Provider
	secondary     Provider
	allowFallback bool
	observer      Observer
}

// OrchestratorConfig configures an Orchestrator. A nil provider behaves like a
// provider whose credential is missing.
type OrchestratorConfig struct {
	Primary   Provider
	Secondary Provider

	// AllowFallback is the default policy for calls that do not pass WithFallback.
	AllowFallback bool

	// Observer is optional.
	Observer Observer
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	obs := cfg.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	return &Orchestrator{
		primary:       cfg.Primary,
		secondary:     cfg.Secondary,
		allowFallback: cfg.AllowFallback,
		observer:      obs,
	}
}

// Option adjusts a single Enhance call.
type Option func(*callOptions)

type callOptions struct {
	allowFallback bool
}

// WithFallback overrides the orchestrator's default fallback policy.
func WithFallback(allow bool) Option {
	return func(o *callOptions) { o.allowFallback = allow }
}

// run is the state of one Enhance call.
type run struct {
	req      Request
	opts     callOptions
	stage    stage
	attempts []Attempt
	result   Result
}

// Enhance sends the request through the provider sequence and always returns a
// Result. Provider calls are made one after another, never in parallel.
func (o *Orchestrator) Enhance(ctx context.Context, req Request, opts ...Option) Result {
	start := time.Now()
	r := &run{req: req, opts: callOptions{allowFallback: o.allowFallback}}
	for _, opt := range opts {
		opt(&r.opts)
	}

	for r.stage != stageDone {
		o.step(ctx, r)
	}

	elapsed := time.Since(start)
	o.observer.EnhancementFinished(r.result, elapsed)

	evt := log.Info()
	if _, failed := r.result.(Failure); failed {
		evt = log.Warn()
	}
	evt.
		Str("provider", string(r.result.Provider())).
		Int("attempts", len(r.attempts)).
		Bool("has_image", req.HasImage()).
		Bool("allow_fallback", r.opts.allowFallback).
		Dur("duration", elapsed).
		Msg("Enhancement finished")

	return r.result
}

// step advances r by exactly one transition.
func (o *Orchestrator) step(ctx context.Context, r *run) {
	switch r.stage {
	case stageNotStarted:
		if strings.TrimSpace(r.req.Prompt) == "" {
			r.finish(Failure{Message: ErrMsgPromptRequired})
			return
		}
		if !r.req.HasImage() {
			o.attempt(ctx, r, ProviderSecondary, o.secondary)
			r.stage = stageSecondaryAttempted
			return
		}
		o.attempt(ctx, r, ProviderPrimary, o.primary)
		r.stage = stagePrimaryAttempted

	case stagePrimaryAttempted:
		last := r.attempts[len(r.attempts)-1]
		switch {
		case last.OK():
			r.finish(Success{EnhancedPrompt: last.EnhancedPrompt, From: ProviderPrimary})
		case !r.opts.allowFallback:
			r.finish(Failure{Message: errorMessage(last.Err), Attempts: r.attempts})
		default:
			log.Warn().
				Err(last.Err).
				Str("vendor", last.Vendor).
				Msg("Primary provider failed, falling back to secondary")
			o.attempt(ctx, r, ProviderSecondary, o.secondary)
			r.stage = stageSecondaryAttempted
		}

	case stageSecondaryAttempted:
		last := r.attempts[len(r.attempts)-1]
		if last.OK() {
			r.finish(Success{EnhancedPrompt: last.EnhancedPrompt, From: ProviderSecondary})
			return
		}
		r.finish(Failure{Message: ErrMsgBothFailed, Attempts: r.attempts})

	default:
		r.stage = stageDone
	}
}

// attempt calls p once and appends the outcome to r.attempts.
func (o *Orchestrator) attempt(ctx context.Context, r *run, name ProviderName, p Provider) {
	a := Attempt{Provider: name}
	start := time.Now()

	if p == nil {
		a.Vendor = string(name)
		a.Err = &ConfigurationError{Provider: name, Vendor: string(name)}
	} else {
		a.Vendor = p.Vendor()
		log.Debug().
			Str("provider", string(name)).
			Str("vendor", a.Vendor).
			Str("stage", r.stage.String()).
			Msg("Calling provider")
		text, err := p.Enhance(ctx, r.req.Prompt, r.req.Image)
		switch {
		case err != nil:
			a.Err = err
		case strings.TrimSpace(text) == "":
			a.Err = &ProviderError{Provider: name, Vendor: a.Vendor, Message: "provider returned an empty prompt"}
		default:
			a.EnhancedPrompt = strings.TrimSpace(text)
		}
	}
	a.Duration = time.Since(start)

	r.attempts = append(r.attempts, a)
	o.observer.AttemptFinished(a)
}

func (r *run) finish(res Result) {
	r.result = res
	r.stage = stageDone
}

// errorMessage returns the client-facing message for a failed attempt.
// Provider errors expose their message without the wrapped cause.
func errorMessage(err error) string {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Message
	}
	if err == nil {
		return ErrMsgBothFailed
	}
	return err.Error()
}
