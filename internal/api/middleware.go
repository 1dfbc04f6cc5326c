package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// RequestObserver receives one event per served request. Endpoint is the
// matched route pattern, so path parameters never reach metric labels.
type RequestObserver interface {
	RequestFinished(endpoint, method string, status int, elapsed time.Duration)
}

// Wrap applies CORS, request logging and optional request metrics to next.
// obs may be nil.
func Wrap(next http.Handler, obs RequestObserver) http.Handler {
	return newCORS().Handler(withLogging(next, obs))
}

// newCORS allows any origin to call the JSON endpoints. Preflights are
// answered with 200.
func newCORS() *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:       []string{"*"},
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:       []string{"Content-Type"},
		OptionsSuccessStatus: http.StatusOK,
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func withLogging(next http.Handler, obs RequestObserver) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(sr, r)

		elapsed := time.Since(start)
		endpoint := normalizeEndpoint(r)

		evt := log.Info()
		if strings.HasPrefix(r.URL.Path, "/static/") || r.URL.Path == "/health" {
			evt = log.Debug()
		}
		evt.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("endpoint", endpoint).
			Int("status", sr.statusCode).
			Dur("duration", elapsed).
			Msg("HTTP request")

		if obs != nil {
			obs.RequestFinished(endpoint, r.Method, sr.statusCode, elapsed)
		}
	})
}

// normalizeEndpoint maps a request to a low-cardinality endpoint name. The
// ServeMux records the matched pattern on the request; the method prefix is
// dropped since the method is reported separately.
func normalizeEndpoint(r *http.Request) string {
	pattern := r.Pattern
	if pattern == "" {
		return "unmatched"
	}
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		pattern = pattern[i+1:]
	}
	return pattern
}
