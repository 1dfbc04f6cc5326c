package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/prompt-enhancer/internal/auth"
	"github.com/fpang/prompt-enhancer/internal/cli"
	"github.com/fpang/prompt-enhancer/internal/config"
	"github.com/fpang/prompt-enhancer/internal/enhance"
	"github.com/fpang/prompt-enhancer/internal/provider/gemini"
	"github.com/fpang/prompt-enhancer/internal/provider/openai"
	"github.com/fpang/prompt-enhancer/internal/provider/remote"
)

type enhanceFlags struct {
	prompt     string
	image      string
	pickImage  bool
	noFallback bool
	server     string
	asJSON     bool
}

func newEnhanceCmd() *cobra.Command {
	var f enhanceFlags

	cmd := &cobra.Command{
		Use:   "enhance",
		Short: "Enhance one prompt and print the result",
		Long: `Enhance sends one prompt, and optionally a reference image, through the
provider sequence and prints the enhanced prompt. By default the providers are
called directly with the keys from the environment or ~/.prompt-enhancer; with
--server the provider endpoints of a running server are used instead.

Exit codes: 0 success, 1 enhancement failed, 2 invalid input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runEnhance(ctx, cmd, cfg, f)
		},
	}

	cmd.Flags().StringVarP(&f.prompt, "prompt", "p", "", "Prompt to enhance (asked interactively when omitted)")
	cmd.Flags().StringVarP(&f.image, "image", "i", "", "Reference image (JPEG, PNG, WebP or GIF)")
	cmd.Flags().BoolVar(&f.pickImage, "pick-image", false, "Choose the reference image with a native file dialog")
	cmd.Flags().BoolVar(&f.noFallback, "no-fallback", false, "Do not fall back to the secondary provider when the primary fails")
	cmd.Flags().StringVar(&f.server, "server", "", "Base URL of a running prompt-enhancer server")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Print the result envelope as JSON")
	cmd.MarkFlagsMutuallyExclusive("image", "pick-image")
	return cmd
}

func runEnhance(ctx context.Context, cmd *cobra.Command, cfg *config.Config, f enhanceFlags) error {
	prompt := f.prompt
	if prompt == "" {
		prompt = cli.PromptForText(cmd.InOrStdin(), cmd.ErrOrStderr())
	}

	imagePath := f.image
	if f.pickImage {
		picked, err := cli.PickImage()
		if err != nil {
			if errors.Is(err, cli.ErrPickCanceled) {
				log.Info().Msg("No image selected; continuing with text only")
			} else {
				return err
			}
		}
		imagePath = picked
	}

	var img *enhance.Image
	if imagePath != "" {
		loaded, err := cli.LoadImage(imagePath, cfg.MaxImageBytes)
		if err != nil {
			return err
		}
		img = loaded
	}

	req, err := enhance.NewRequest(prompt, img)
	if err != nil {
		return err
	}

	primary, secondary, err := buildProviders(ctx, cfg, f.server)
	if err != nil {
		return err
	}

	orch := enhance.NewOrchestrator(enhance.OrchestratorConfig{
		Primary:       primary,
		Secondary:     secondary,
		AllowFallback: cfg.FallbackEnabled && !f.noFallback,
	})

	start := time.Now()
	res := orch.Enhance(ctx, req)
	elapsed := time.Since(start)

	label := cli.ProviderLabel(res, primary.Vendor(), secondary.Vendor(), req.HasImage())
	if err := cli.WriteResult(cmd.OutOrStdout(), res, label, elapsed, f.asJSON); err != nil {
		return err
	}

	if failure, failed := res.(enhance.Failure); failed {
		for _, a := range failure.Attempts {
			if a.Err == nil {
				continue
			}
			log.Warn().
				Err(a.Err).
				Str("vendor", a.Vendor).
				Str("cause", auth.ClassifyError(a.Err).Type.String()).
				Msg("Provider attempt failed")
		}
		return errReported
	}
	return nil
}

// buildProviders returns the remote adapters when serverURL is set, and the
// vendor SDK adapters otherwise.
func buildProviders(ctx context.Context, cfg *config.Config, serverURL string) (enhance.Provider, enhance.Provider, error) {
	if serverURL != "" {
		log.Debug().Str("server", serverURL).Msg("Using remote provider endpoints")
		return remote.NewPrimary(serverURL), remote.NewSecondary(serverURL), nil
	}

	resolveKeys(cfg)
	primary, err := gemini.New(ctx, gemini.Config{
		APIKey:      cfg.Gemini.APIKey,
		TextModel:   cfg.Gemini.TextModel,
		VisionModel: cfg.Gemini.VisionModel,
		BaseURL:     cfg.Gemini.BaseURL,
		Timeout:     cfg.ProviderTimeout,
	})
	if err != nil {
		return nil, nil, err
	}
	secondary := openai.New(openai.Config{
		APIKey:      cfg.OpenAI.APIKey,
		TextModel:   cfg.OpenAI.TextModel,
		VisionModel: cfg.OpenAI.VisionModel,
		BaseURL:     cfg.OpenAI.BaseURL,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Timeout:     cfg.ProviderTimeout,
	})
	return primary, secondary, nil
}
