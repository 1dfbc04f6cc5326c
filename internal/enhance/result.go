// Package enhance implements the two-provider prompt enhancement pipeline.
//
// A Request is sent to the Primary provider when it carries an image, and to
// the Secondary provider when it does not or when the Primary fails. Every
// path resolves to a Result: either a Success tagged with the provider that
// produced it, or a Failure tagged None.
package enhance

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ProviderName labels which side of the pipeline produced a result.
type ProviderName string

const (
	ProviderPrimary   ProviderName = "Primary"
	ProviderSecondary ProviderName = "Secondary"
	ProviderNone      ProviderName = "None"
)

// Result is the outcome of one enhancement. It is either a Success or a Failure.
type Result interface {
	// Provider returns the label of the provider that produced the result.
	// Failures always report ProviderNone.
	Provider() ProviderName

	// Envelope converts the result to its wire form.
	Envelope() Envelope

	isResult()
}

// Success carries the enhanced prompt returned by a provider.
type Success struct {
	EnhancedPrompt string
	From           ProviderName
}

func (s Success) Provider() ProviderName { return s.From }

func (s Success) Envelope() Envelope {
	return Envelope{Success: true, EnhancedPrompt: s.EnhancedPrompt, Provider: s.From}
}

func (Success) isResult() {}

// Failure carries a human-readable message and the attempts that led to it.
// Attempts are kept for logging and are never serialized.
type Failure struct {
	Message  string
	Attempts []Attempt
}

func (Failure) Provider() ProviderName { return ProviderNone }

func (f Failure) Envelope() Envelope {
	return Envelope{Success: false, Provider: ProviderNone, Error: f.Message}
}

func (Failure) isResult() {}

// Envelope is the JSON shape shared by the adapter endpoints, the orchestrated
// endpoint and the result store. Exactly one of EnhancedPrompt and Error is set.
type Envelope struct {
	Success        bool         `json:"success"`
	EnhancedPrompt string       `json:"enhancedPrompt,omitempty"`
	Provider       ProviderName `json:"provider"`
	Error          string       `json:"error,omitempty"`
}

// ErrInvalidEnvelope is returned when an envelope breaks the success/error invariant.
var ErrInvalidEnvelope = errors.New("invalid result envelope")

// Result converts an envelope back into a Result, enforcing the invariant that
// exactly one of enhancedPrompt and error is populated.
func (e Envelope) Result() (Result, error) {
	switch {
	case e.Success && e.EnhancedPrompt != "" && e.Error == "":
		if e.Provider != ProviderPrimary && e.Provider != ProviderSecondary {
			return nil, fmt.Errorf("%w: success from provider %q", ErrInvalidEnvelope, e.Provider)
		}
		return Success{EnhancedPrompt: e.EnhancedPrompt, From: e.Provider}, nil
	case !e.Success && e.Error != "" && e.EnhancedPrompt == "":
		return Failure{Message: e.Error}, nil
	default:
		return nil, fmt.Errorf("%w: success=%t enhancedPrompt=%t error=%t",
			ErrInvalidEnvelope, e.Success, e.EnhancedPrompt != "", e.Error != "")
	}
}

// MarshalResult encodes a Result as its envelope.
func MarshalResult(r Result) ([]byte, error) {
	return json.Marshal(r.Envelope())
}
