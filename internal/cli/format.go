package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fpang/prompt-enhancer/internal/enhance"
)

// FormatDurationShort formats a duration for humans: milliseconds below one
// second, tenths of a second below one minute, M:SS above.
func FormatDurationShort(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	totalSeconds := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", totalSeconds/60, totalSeconds%60)
}

// ProviderLabel names the vendor behind a result. A Secondary result for an
// image request is marked as a fallback.
func ProviderLabel(res enhance.Result, primaryVendor, secondaryVendor string, hadImage bool) string {
	switch res.Provider() {
	case enhance.ProviderPrimary:
		return primaryVendor
	case enhance.ProviderSecondary:
		if hadImage {
			return secondaryVendor + " (Fallback)"
		}
		return secondaryVendor
	default:
		return string(enhance.ProviderNone)
	}
}

// WriteResult prints a result. In JSON mode the envelope is written as one
// line; otherwise the enhanced prompt is written alone on stdout-friendly
// lines, followed by a provider footer.
func WriteResult(w io.Writer, res enhance.Result, label string, elapsed time.Duration, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(res.Envelope())
	}

	switch r := res.(type) {
	case enhance.Success:
		_, err := fmt.Fprintf(w, "%s\n\n(enhanced by %s in %s)\n", r.EnhancedPrompt, label, FormatDurationShort(elapsed))
		return err
	case enhance.Failure:
		_, err := fmt.Fprintf(w, "Enhancement failed: %s\n", r.Message)
		return err
	default:
		return fmt.Errorf("unexpected result type %T", res)
	}
}
