// Package main is the prompt-enhancer command: a local web server and a
// one-shot CLI that turn short video-generation prompts into detailed ones.
package main

import (
	"errors"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/prompt-enhancer/internal/cli"
	"github.com/fpang/prompt-enhancer/internal/config"
	"github.com/fpang/prompt-enhancer/internal/logging"
)

// Persistent flags
var (
	logLevelFlag  string
	logFormatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "prompt-enhancer",
	Short: "Enhance video generation prompts with Gemini and OpenAI",
	Long: `Prompt Enhancer rewrites a short video-generation prompt into a detailed one,
adding visual detail, motion, style and camera direction. Prompts with a
reference image go to Gemini first and fall back to OpenAI; text-only
prompts go straight to OpenAI.

Examples:
  prompt-enhancer serve
  prompt-enhancer serve --port 9090 --no-fallback
  prompt-enhancer enhance --prompt "a cat on a skateboard"
  prompt-enhancer enhance -p "sunset" --image ./beach.jpg --json
  prompt-enhancer enhance -p "sunset" --pick-image --server http://localhost:8080`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version(),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "", "Log format: console or json (overrides LOG_FORMAT)")
	rootCmd.AddCommand(newServeCmd(), newEnhanceCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			log.Error().Err(err).Msg("Command failed")
		}
		os.Exit(cli.ExitCode(err))
	}
}

// errReported marks an error that was already shown to the user.
var errReported = errors.New("error already reported")

// loadConfig loads the environment configuration, applies the persistent
// flags and initializes logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		logging.Init("info", "console")
		return nil, err
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	if logFormatFlag != "" {
		cfg.LogFormat = logFormatFlag
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}
