// Package web serves the server-rendered pages: home, the create form and the
// result page. The form posts to the server, which runs the enhancement,
// stores the result and redirects to the result page.
package web

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/prompt-enhancer/internal/assets"
	"github.com/fpang/prompt-enhancer/internal/enhance"
	"github.com/fpang/prompt-enhancer/internal/filehandler"
	"github.com/fpang/prompt-enhancer/internal/store"
)

// Form field names.
const (
	FieldPrompt = "promptText"
	FieldImage  = "imageUpload"
)

// formOverhead is the multipart allowance on top of the image itself.
const formOverhead = 64 << 10

// ErrMsgSaveFailed is shown when a finished result cannot be stored.
const ErrMsgSaveFailed = "Your prompt was enhanced but the result could not be saved. Please try again."

var pageNames = []string{"home", "create", "result"}

// Config wires the pages to the enhancement pipeline.
type Config struct {
	Orchestrator    *enhance.Orchestrator
	Store           store.ResultStore
	PrimaryVendor   string
	SecondaryVendor string
	FallbackEnabled bool

	// MaxImageBytes caps uploads. Zero uses filehandler.DefaultMaxImageBytes.
	MaxImageBytes int64
}

// Handler renders the pages.
type Handler struct {
	cfg   Config
	pages map[string]*template.Template
}

// New parses the embedded templates.
func New(cfg Config) (*Handler, error) {
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = filehandler.DefaultMaxImageBytes
	}
	pages, err := parsePages(assets.Templates())
	if err != nil {
		return nil, err
	}
	return &Handler{cfg: cfg, pages: pages}, nil
}

func parsePages(fsys fs.FS) (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.ParseFS(fsys, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		pages[name] = tmpl
	}
	return pages, nil
}

// Register adds the page routes and static assets to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("GET /{$}", withSecurityHeaders(http.HandlerFunc(h.handleHome)))
	mux.Handle("GET /create", withSecurityHeaders(http.HandlerFunc(h.handleCreateForm)))
	mux.Handle("POST /create", withSecurityHeaders(http.HandlerFunc(h.handleCreate)))
	mux.Handle("GET /result/{id}", withSecurityHeaders(http.HandlerFunc(h.handleResult)))
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(assets.Static())))
}

func withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' blob: data:; style-src 'self' 'unsafe-inline'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// render executes a page into a buffer first so a template error never
// leaves a half-written response.
func (h *Handler) render(w http.ResponseWriter, status int, page string, data interface{}) {
	var buf bytes.Buffer
	if err := h.pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Error().Err(err).Str("page", page).Msg("Failed to render page")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

type homePage struct {
	PrimaryVendor   string
	SecondaryVendor string
	FallbackEnabled bool
}

func (h *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "home", homePage{
		PrimaryVendor:   h.cfg.PrimaryVendor,
		SecondaryVendor: h.cfg.SecondaryVendor,
		FallbackEnabled: h.cfg.FallbackEnabled,
	})
}

// createPage also carries the limits app.js checks before upload.
type createPage struct {
	Prompt             string
	Accept             string
	MaxSize            string
	MaxBytes           int64
	UnsupportedMessage string
	TooLargeMessage    string
	Error              string
}

func (h *Handler) createPage(prompt, errMsg string) createPage {
	return createPage{
		Prompt:             prompt,
		Accept:             filehandler.AcceptAttribute,
		MaxSize:            filehandler.FormatSize(h.cfg.MaxImageBytes),
		MaxBytes:           h.cfg.MaxImageBytes,
		UnsupportedMessage: filehandler.ErrMsgUnsupportedType,
		TooLargeMessage:    filehandler.TooLarge(h.cfg.MaxImageBytes).Error(),
		Error:              errMsg,
	}
}

func (h *Handler) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "create", h.createPage("", ""))
}

// handleCreate validates the form, runs the enhancement and redirects to the
// stored result. Validation errors re-render the form without calling any
// provider.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxImageBytes+formOverhead)
	if err := r.ParseMultipartForm(h.cfg.MaxImageBytes + formOverhead); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.render(w, http.StatusUnprocessableEntity, "create", h.createPage("", filehandler.TooLarge(h.cfg.MaxImageBytes).Error()))
			return
		}
		log.Debug().Err(err).Msg("Failed to parse create form")
		h.render(w, http.StatusUnprocessableEntity, "create", h.createPage("", "The form could not be read. Please try again."))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	prompt := r.FormValue(FieldPrompt)
	if strings.TrimSpace(prompt) == "" {
		h.render(w, http.StatusUnprocessableEntity, "create", h.createPage(prompt, enhance.ErrMsgPromptRequired))
		return
	}

	img, err := h.readUpload(r)
	if err != nil {
		h.render(w, http.StatusUnprocessableEntity, "create", h.createPage(prompt, err.Error()))
		return
	}

	req, err := enhance.NewRequest(prompt, img)
	if err != nil {
		h.render(w, http.StatusUnprocessableEntity, "create", h.createPage(prompt, err.Error()))
		return
	}

	res := h.cfg.Orchestrator.Enhance(r.Context(), req)
	if f, failed := res.(enhance.Failure); failed {
		h.render(w, http.StatusBadGateway, "create", h.createPage(prompt, f.Message))
		return
	}

	stored := &store.StoredResult{
		OriginalPrompt: req.Prompt,
		Envelope:       res.Envelope(),
		HadImage:       req.HasImage(),
	}
	if err := h.cfg.Store.PutResult(r.Context(), stored); err != nil {
		log.Error().Err(err).Msg("Failed to store enhancement result")
		h.render(w, http.StatusInternalServerError, "create", h.createPage(prompt, ErrMsgSaveFailed))
		return
	}

	http.Redirect(w, r, "/result/"+stored.ID, http.StatusSeeOther)
}

// readUpload returns the uploaded image, or nil when the file input was left
// empty.
func (h *Handler) readUpload(r *http.Request) (*enhance.Image, error) {
	file, header, err := r.FormFile(FieldImage)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	defer file.Close()

	if header.Size == 0 {
		return nil, nil
	}
	declared := header.Header.Get("Content-Type")
	if declared == "application/octet-stream" {
		declared = ""
	}
	return filehandler.ReadImage(file, declared, h.cfg.MaxImageBytes)
}

type resultPage struct {
	OriginalPrompt string
	EnhancedPrompt string
	ProviderLabel  string
	CreatedAt      time.Time
}

// handleResult shows a stored result. Unknown or expired IDs go back to the
// form.
func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !store.ValidID(id) {
		http.Redirect(w, r, "/create", http.StatusSeeOther)
		return
	}

	result, err := h.cfg.Store.GetResult(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to load result")
	}
	if result == nil {
		http.Redirect(w, r, "/create", http.StatusSeeOther)
		return
	}

	h.render(w, http.StatusOK, "result", resultPage{
		OriginalPrompt: result.OriginalPrompt,
		EnhancedPrompt: result.Envelope.EnhancedPrompt,
		ProviderLabel:  h.providerLabel(result),
		CreatedAt:      result.CreatedAt,
	})
}

// providerLabel names the vendor behind a stored result. A Secondary result
// for an image request means the Primary failed.
func (h *Handler) providerLabel(result *store.StoredResult) string {
	switch result.Envelope.Provider {
	case enhance.ProviderPrimary:
		return h.cfg.PrimaryVendor
	case enhance.ProviderSecondary:
		if result.HadImage {
			return h.cfg.SecondaryVendor + " (Fallback)"
		}
		return h.cfg.SecondaryVendor
	default:
		return string(result.Envelope.Provider)
	}
}
