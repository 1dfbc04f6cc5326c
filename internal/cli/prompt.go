package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

// PromptForText writes a "Prompt: " label to out and returns the next
// trimmed line from in, or "" when nothing could be read.
func PromptForText(in io.Reader, out io.Writer) string {
	fmt.Fprint(out, "Prompt: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Msg("Failed to read prompt from input")
	}
	return ""
}
