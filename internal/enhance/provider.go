package enhance

import (
	"context"
	"time"
)

// Provider is one generative-AI backend able to enhance a prompt.
//
// Enhance returns the cleaned enhanced prompt. A missing credential must be
// reported as *ConfigurationError and any vendor or network failure as
// *ProviderError. Implementations must not retry.
type Provider interface {
	Vendor() string
	Enhance(ctx context.Context, prompt string, image *Image) (string, error)
}

// Attempt records one provider call made by the orchestrator.
type Attempt struct {
	Provider       ProviderName
	Vendor         string
	EnhancedPrompt string
	Err            error
	Duration       time.Duration
}

// OK reports whether the attempt produced a usable prompt.
func (a Attempt) OK() bool {
	return a.Err == nil && a.EnhancedPrompt != ""
}

// Observer receives attempt and result notifications. Implementations must be
// safe for concurrent use.
type Observer interface {
	AttemptFinished(a Attempt)
	EnhancementFinished(r Result, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) AttemptFinished(Attempt)                  {}
func (nopObserver) EnhancementFinished(Result, time.Duration) {}
