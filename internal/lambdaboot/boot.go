// Package lambdaboot provides the Lambda cold-start bootstrap: AWS config,
// provider keys from SSM Parameter Store, and the startup log record.
package lambdaboot

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/prompt-enhancer/internal/config"
	"github.com/fpang/prompt-enhancer/internal/logging"
	"github.com/fpang/prompt-enhancer/internal/store"
)

// AWSClients holds the AWS SDK clients used at cold start.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// ParameterGetter is the subset of *ssm.Client used to load keys.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadConfig reads the environment configuration and validates it, so a bad
// limit or duration fails cold start instead of the first request.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// InitResultStore returns a DynamoDB result store when cfg names a table, and
// an in-memory store otherwise. The in-memory store only works while requests
// keep landing on the same container.
func InitResultStore(awsCfg aws.Config, cfg *config.Config) store.ResultStore {
	if cfg.ResultTable == "" {
		log.Warn().Msg("RESULT_TABLE_NAME not set; results kept in memory per container")
		cfg.ResultStore = config.StoreMemory
		return store.NewMemoryStore(cfg.ResultTTL)
	}
	cfg.ResultStore = config.StoreDynamoDB
	return store.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.ResultTable, cfg.ResultTTL)
}

// LoadProviderKeys fills in any provider key missing from cfg from SSM
// Parameter Store. A key that cannot be read is logged and left empty so the
// provider answers with a configuration error instead of failing cold start.
func LoadProviderKeys(ctx context.Context, client ParameterGetter, cfg *config.Config) {
	if cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = loadParameter(ctx, client, cfg.SSM.GeminiKeyParam, "Gemini")
	}
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = loadParameter(ctx, client, cfg.SSM.OpenAIKeyParam, "OpenAI")
	}
}

func loadParameter(ctx context.Context, client ParameterGetter, name, vendor string) string {
	if name == "" {
		return ""
	}
	ssmStart := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		log.Warn().Err(err).Str("param", name).Str("vendor", vendor).Msg("Failed to read API key from SSM; provider disabled")
		return ""
	}
	if result.Parameter == nil || result.Parameter.Value == nil {
		log.Warn().Str("param", name).Str("vendor", vendor).Msg("SSM parameter has no value; provider disabled")
		return ""
	}
	log.Debug().Str("param", name).Str("vendor", vendor).Dur("elapsed", time.Since(ssmStart)).Msg("API key loaded from SSM")
	return *result.Parameter.Value
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
