package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpang/prompt-enhancer/internal/enhance"
	"github.com/fpang/prompt-enhancer/internal/store"
)

type fakeProvider struct {
	vendor string
	text   string
	err    error
	calls  int
	gotImg *enhance.Image
}

func (f *fakeProvider) Vendor() string { return f.vendor }

func (f *fakeProvider) Enhance(_ context.Context, _ string, img *enhance.Image) (string, error) {
	f.calls++
	f.gotImg = img
	return f.text, f.err
}

type recordedRequest struct {
	endpoint string
	method   string
	status   int
}

type fakeRequestObserver struct {
	got []recordedRequest
}

func (o *fakeRequestObserver) RequestFinished(endpoint, method string, status int, _ time.Duration) {
	o.got = append(o.got, recordedRequest{endpoint, method, status})
}

func pngBase64(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

type testServer struct {
	handler   http.Handler
	primary   *fakeProvider
	secondary *fakeProvider
	store     *store.MemoryStore
	requests  *fakeRequestObserver
}

func newTestServer(primary, secondary *fakeProvider) *testServer {
	st := store.NewMemoryStore(time.Minute)
	orch := enhance.NewOrchestrator(enhance.OrchestratorConfig{
		Primary:       primary,
		Secondary:     secondary,
		AllowFallback: true,
	})
	h := New(Config{
		Orchestrator: orch,
		Primary:      primary,
		Secondary:    secondary,
		Store:        st,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("# metrics"))
		}),
	})
	mux := http.NewServeMux()
	h.Register(mux)
	obs := &fakeRequestObserver{}
	return &testServer{
		handler:   Wrap(mux, obs),
		primary:   primary,
		secondary: secondary,
		store:     st,
		requests:  obs,
	}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) enhanceResponse {
	t.Helper()
	var resp enhanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), "body: %s", rec.Body.String())
	return resp
}

func TestAdapter_Preflight(t *testing.T) {
	s := newTestServer(&fakeProvider{vendor: "Gemini"}, &fakeProvider{vendor: "OpenAI"})

	for _, path := range []string{"/enhance/primary", "/enhance/secondary"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		req.Header.Set("Access-Control-Request-Headers", "content-type")
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), path)
		assert.Equal(t, "content-type", rec.Header().Get("Access-Control-Allow-Headers"), path)
	}

	rec := s.do(http.MethodOptions, "/enhance/primary", "")
	assert.Equal(t, http.StatusOK, rec.Code, "bare OPTIONS")
	assert.Zero(t, s.primary.calls)
}

// Browsers send Access-Control-Request-Headers in lowercase; rs/cors matches
// that form only and answers a mixed-case list without CORS headers.
func TestAdapter_PreflightHeaderCase(t *testing.T) {
	s := newTestServer(&fakeProvider{vendor: "Gemini"}, &fakeProvider{vendor: "OpenAI"})

	tests := []struct {
		requestHeaders string
		wantOrigin     string
	}{
		{"content-type", "*"},
		{"Content-Type", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodOptions, "/enhance/primary", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		req.Header.Set("Access-Control-Request-Headers", tt.requestHeaders)
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, tt.requestHeaders)
		assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"), tt.requestHeaders)
	}
	assert.Zero(t, s.primary.calls)
}

func TestAdapter_MethodNotAllowed(t *testing.T) {
	s := newTestServer(&fakeProvider{vendor: "Gemini"}, &fakeProvider{vendor: "OpenAI"})

	rec := s.do(http.MethodGet, "/enhance/secondary", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, ErrMsgMethodNotAllowed, resp.Error)
}

func TestAdapter_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"malformed json", `{"prompt":`, ErrMsgInvalidJSON},
		{"missing prompt", `{}`, enhance.ErrMsgPromptRequired},
		{"blank prompt", `{"prompt":"   "}`, enhance.ErrMsgPromptRequired},
		{"bad base64", `{"prompt":"cat","image":"!!!"}`, ""},
		{"not an image", `{"prompt":"cat","image":"` + base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 hello")) + `"}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeProvider{vendor: "Gemini", text: "x"}, &fakeProvider{vendor: "OpenAI", text: "x"})

			rec := s.do(http.MethodPost, "/enhance/primary", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeEnvelope(t, rec)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, resp.Error)
			}
			assert.Zero(t, s.primary.calls, "provider must not be called")
		})
	}
}

func TestAdapter_BodyTooLarge(t *testing.T) {
	secondary := &fakeProvider{vendor: "OpenAI", text: "x"}
	h := New(Config{Secondary: secondary, MaxImageBytes: 3})
	mux := http.NewServeMux()
	h.Register(mux)

	body := `{"prompt":"` + strings.Repeat("a", bodyOverhead+16) + `"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/enhance/secondary", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrMsgBodyTooLarge)
	assert.Zero(t, secondary.calls)
}

func TestAdapter_MissingCredential(t *testing.T) {
	primary := &fakeProvider{vendor: "Gemini", err: &enhance.ConfigurationError{Provider: enhance.ProviderPrimary, Vendor: "Gemini"}}
	s := newTestServer(primary, &fakeProvider{vendor: "OpenAI"})

	rec := s.do(http.MethodPost, "/enhance/primary", `{"prompt":"sunset"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Gemini API key not configured", decodeEnvelope(t, rec).Error)
}

func TestAdapter_VendorFailureHidesDetails(t *testing.T) {
	secondary := &fakeProvider{vendor: "OpenAI", err: &enhance.ProviderError{
		Provider: enhance.ProviderSecondary,
		Vendor:   "OpenAI",
		Message:  "Failed to enhance prompt with OpenAI",
		Err:      errors.New("401 Unauthorized: sk-secret-key"),
	}}
	s := newTestServer(&fakeProvider{vendor: "Gemini"}, secondary)

	rec := s.do(http.MethodPost, "/enhance/secondary", `{"prompt":"sunset"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to enhance prompt with OpenAI", decodeEnvelope(t, rec).Error)
	assert.NotContains(t, rec.Body.String(), "sk-secret-key")
}

func TestAdapter_EmptyOutputIsFailure(t *testing.T) {
	s := newTestServer(&fakeProvider{vendor: "Gemini", text: "  "}, &fakeProvider{vendor: "OpenAI"})

	rec := s.do(http.MethodPost, "/enhance/primary", `{"prompt":"sunset"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to enhance prompt with Gemini", decodeEnvelope(t, rec).Error)
}

func TestAdapter_Success(t *testing.T) {
	primary := &fakeProvider{vendor: "Gemini", text: "sunset over the ocean, slow dolly in"}
	s := newTestServer(primary, &fakeProvider{vendor: "OpenAI"})

	rec := s.do(http.MethodPost, "/enhance/primary", `{"prompt":"sunset","image":"data:image/png;base64,`+pngBase64(t)+`"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeEnvelope(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, enhance.ProviderPrimary, resp.Provider)
	assert.Equal(t, primary.text, resp.EnhancedPrompt)
	assert.Empty(t, resp.Error)
	require.NotNil(t, primary.gotImg)
	assert.Equal(t, "image/png", primary.gotImg.MIMEType)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestAdapter_SecondaryDoesNotFallBack(t *testing.T) {
	primary := &fakeProvider{vendor: "Gemini", text: "unused"}
	secondary := &fakeProvider{vendor: "OpenAI", err: errors.New("down")}
	s := newTestServer(primary, secondary)

	rec := s.do(http.MethodPost, "/enhance/secondary", `{"prompt":"sunset"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Zero(t, primary.calls)
}

func TestEnhance_FallbackAndStore(t *testing.T) {
	primary := &fakeProvider{vendor: "Gemini", err: errors.New("down")}
	secondary := &fakeProvider{vendor: "OpenAI", text: "warm sunset, handheld"}
	s := newTestServer(primary, secondary)

	rec := s.do(http.MethodPost, "/api/enhance", `{"prompt":"sunset","image":"`+pngBase64(t)+`"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, enhance.ProviderSecondary, resp.Provider)
	require.NotEmpty(t, resp.ResultID)

	stored, err := s.store.GetResult(context.Background(), resp.ResultID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "sunset", stored.OriginalPrompt)
	assert.True(t, stored.HadImage)

	rec = s.do(http.MethodGet, "/api/results/"+resp.ResultID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got store.StoredResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "warm sunset, handheld", got.Envelope.EnhancedPrompt)
}

func TestEnhance_FallbackDisabledPerRequest(t *testing.T) {
	primary := &fakeProvider{vendor: "Gemini", err: errors.New("down")}
	secondary := &fakeProvider{vendor: "OpenAI", text: "unused"}
	s := newTestServer(primary, secondary)

	rec := s.do(http.MethodPost, "/api/enhance", `{"prompt":"sunset","image":"`+pngBase64(t)+`","allowFallback":false}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, enhance.ProviderNone, resp.Provider)
	assert.Empty(t, resp.ResultID)
	assert.Zero(t, secondary.calls)
}

func TestEnhance_BothFail(t *testing.T) {
	s := newTestServer(&fakeProvider{vendor: "Gemini", err: errors.New("a")}, &fakeProvider{vendor: "OpenAI", err: errors.New("b")})

	rec := s.do(http.MethodPost, "/api/enhance", `{"prompt":"sunset","image":"`+pngBase64(t)+`"}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, enhance.ErrMsgBothFailed, decodeEnvelope(t, rec).Error)
}

func TestEnhance_ValidationIsBadRequest(t *testing.T) {
	s := newTestServer(&fakeProvider{vendor: "Gemini"}, &fakeProvider{vendor: "OpenAI"})

	rec := s.do(http.MethodPost, "/api/enhance", `{"prompt":""}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, enhance.ProviderNone, resp.Provider)
	assert.Equal(t, enhance.ErrMsgPromptRequired, resp.Error)
}

func TestGetResult_NotFound(t *testing.T) {
	s := newTestServer(&fakeProvider{vendor: "Gemini"}, &fakeProvider{vendor: "OpenAI"})

	for _, id := range []string{"nope", store.NewID()} {
		rec := s.do(http.MethodGet, "/api/results/"+id, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, id)
		assert.Equal(t, ErrMsgResultNotFound, decodeEnvelope(t, rec).Error)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(&fakeProvider{vendor: "Gemini"}, &fakeProvider{vendor: "OpenAI"})

	rec := s.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())
}

func TestMiddleware_ReportsRoutePattern(t *testing.T) {
	s := newTestServer(&fakeProvider{vendor: "Gemini"}, &fakeProvider{vendor: "OpenAI"})

	s.do(http.MethodGet, "/api/results/"+store.NewID(), "")
	s.do(http.MethodGet, "/enhance/primary", "")
	s.do(http.MethodGet, "/no/such/route", "")

	require.Len(t, s.requests.got, 3)
	assert.Equal(t, recordedRequest{"/api/results/{id}", "GET", 404}, s.requests.got[0])
	assert.Equal(t, recordedRequest{"/enhance/primary", "GET", 405}, s.requests.got[1])
	assert.Equal(t, recordedRequest{"unmatched", "GET", 404}, s.requests.got[2])
}

func TestMaxBodyBytes(t *testing.T) {
	assert.Equal(t, int64(4+bodyOverhead), MaxBodyBytes(3))
	assert.Equal(t, int64(8+bodyOverhead), MaxBodyBytes(4))
	assert.Greater(t, MaxBodyBytes(5<<20), int64(5<<20))
}
