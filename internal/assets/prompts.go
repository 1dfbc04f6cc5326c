// Package assets provides embedded static assets for the application.
//
// Prompt templates are stored as text files under prompts/ and embedded at compile time.

package assets

import (
	"bytes"
	_ "embed"
	"text/template"
)

// --- Static prompts (no dynamic data) ---

// TextSystemPrompt is the system instruction for text-only enhancement.
//
//go:embed prompts/system-text.txt
var TextSystemPrompt string

// VisionSystemPrompt is the system instruction when an image accompanies the prompt.
//
//go:embed prompts/system-vision.txt
var VisionSystemPrompt string

// --- Dynamic prompt templates ---

//go:embed prompts/enhance-text.txt
var enhanceTextTemplate string

//go:embed prompts/enhance-vision.txt
var enhanceVisionTemplate string

// Pre-parsed templates. template.Must panics on malformed templates,
// catching errors at program startup rather than at call time.
var (
	textPromptTmpl   = template.Must(template.New("text").Parse(enhanceTextTemplate))
	visionPromptTmpl = template.Must(template.New("vision").Parse(enhanceVisionTemplate))
)

// PromptData holds the dynamic data injected into prompt templates.
type PromptData struct {
	// Prompt is the user's original prompt, already trimmed.
	Prompt string
}

// RenderTextPrompt renders the text-only enhancement instruction.
func RenderTextPrompt(prompt string) string {
	return renderTemplate(textPromptTmpl, prompt)
}

// RenderVisionPrompt renders the instruction sent alongside an image.
func RenderVisionPrompt(prompt string) string {
	return renderTemplate(visionPromptTmpl, prompt)
}

// SystemPrompt returns the system instruction for the given input kind.
func SystemPrompt(hasImage bool) string {
	if hasImage {
		return VisionSystemPrompt
	}
	return TextSystemPrompt
}

// UserPrompt returns the rendered instruction for the given input kind.
func UserPrompt(prompt string, hasImage bool) string {
	if hasImage {
		return RenderVisionPrompt(prompt)
	}
	return RenderTextPrompt(prompt)
}

func renderTemplate(tmpl *template.Template, prompt string) string {
	var buf bytes.Buffer
	// Execution cannot fail for a string field; return whatever was rendered.
	_ = tmpl.Execute(&buf, PromptData{Prompt: prompt})
	return buf.String()
}
