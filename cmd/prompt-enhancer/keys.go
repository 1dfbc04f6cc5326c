package main

import (
	"github.com/rs/zerolog/log"

	"github.com/fpang/prompt-enhancer/internal/auth"
	"github.com/fpang/prompt-enhancer/internal/config"
)

// resolveKeys fills provider keys missing from the environment with the
// GPG-encrypted credentials files. A key that cannot be found stays empty and
// the provider reports itself as not configured.
func resolveKeys(cfg *config.Config) {
	if cfg.Gemini.APIKey == "" {
		if key, err := auth.GetAPIKey("gemini"); err == nil {
			cfg.Gemini.APIKey = key
		} else {
			log.Debug().Err(err).Msg("Gemini key unavailable")
		}
	}
	if cfg.OpenAI.APIKey == "" {
		if key, err := auth.GetAPIKey("openai"); err == nil {
			cfg.OpenAI.APIKey = key
		} else {
			log.Debug().Err(err).Msg("OpenAI key unavailable")
		}
	}
}
