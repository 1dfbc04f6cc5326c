package metrics

import (
	"io"
	"os"
	"time"

	"github.com/fpang/prompt-enhancer/internal/enhance"
)

// Namespace is the CloudWatch namespace for EMF metrics.
const Namespace = "PromptEnhancer"

// Outcome label values for attempts.
const (
	OutcomeSuccess      = "success"
	OutcomeError        = "error"
	OutcomeUnconfigured = "unconfigured"
)

// AttemptOutcome classifies a provider attempt for metric labels.
func AttemptOutcome(a enhance.Attempt) string {
	switch {
	case a.OK():
		return OutcomeSuccess
	case enhance.IsConfigurationError(a.Err):
		return OutcomeUnconfigured
	default:
		return OutcomeError
	}
}

// EMFObserver implements enhance.Observer by writing one EMF line per
// provider attempt and one per finished enhancement.
type EMFObserver struct {
	out          io.Writer
	functionName string
}

// Compile-time interface check.
var _ enhance.Observer = (*EMFObserver)(nil)

// NewEMFObserver creates an observer writing to stdout.
func NewEMFObserver() *EMFObserver {
	return &EMFObserver{out: os.Stdout, functionName: os.Getenv("AWS_LAMBDA_FUNCTION_NAME")}
}

func (o *EMFObserver) recorder() *Recorder {
	return newRecorder(o.out, Namespace, o.functionName)
}

// AttemptFinished emits ProviderLatencyMs and ProviderAttempts, dimensioned by
// provider and outcome.
func (o *EMFObserver) AttemptFinished(a enhance.Attempt) {
	rec := o.recorder().
		Dimension("Provider", string(a.Provider)).
		Dimension("Outcome", AttemptOutcome(a)).
		Metric("ProviderLatencyMs", float64(a.Duration.Milliseconds()), UnitMilliseconds).
		Count("ProviderAttempts").
		Property("vendor", a.Vendor)
	if a.Err != nil {
		rec.Property("error", a.Err.Error())
	}
	rec.Flush()
}

// EnhancementFinished emits EnhancementLatencyMs and EnhancementCount,
// dimensioned by the final provider label.
func (o *EMFObserver) EnhancementFinished(r enhance.Result, elapsed time.Duration) {
	env := r.Envelope()
	o.recorder().
		Dimension("Provider", string(env.Provider)).
		Metric("EnhancementLatencyMs", float64(elapsed.Milliseconds()), UnitMilliseconds).
		Count("EnhancementCount").
		Property("success", env.Success).
		Flush()
}

// RequestFinished emits RequestLatencyMs and RequestCount, dimensioned by
// endpoint.
func (o *EMFObserver) RequestFinished(endpoint, method string, status int, elapsed time.Duration) {
	o.recorder().
		Dimension("Endpoint", endpoint).
		Metric("RequestLatencyMs", float64(elapsed.Milliseconds()), UnitMilliseconds).
		Count("RequestCount").
		Property("method", method).
		Property("statusCode", status).
		Flush()
}
