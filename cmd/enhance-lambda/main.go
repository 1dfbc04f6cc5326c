// Package main is the Lambda entry point for the prompt enhancer.
//
// It serves the same routes as `prompt-enhancer serve` behind API Gateway
// (HTTP API, payload v2). Provider keys come from SSM Parameter Store when
// they are not in the environment, results are handed to the result page
// through DynamoDB when RESULT_TABLE_NAME is set, and metrics are written as
// CloudWatch Embedded Metric Format lines.
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/prompt-enhancer/internal/filehandler"
	"github.com/fpang/prompt-enhancer/internal/lambdaboot"
	"github.com/fpang/prompt-enhancer/internal/logging"
	"github.com/fpang/prompt-enhancer/internal/metrics"
	"github.com/fpang/prompt-enhancer/internal/server"
)

var srv *server.Server

func init() {
	initStart := time.Now()

	cfg, err := lambdaboot.LoadConfig()
	if err != nil {
		logging.Init("info", "json")
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.LogLevel, "json")

	aws := lambdaboot.InitAWS()
	lambdaboot.LoadProviderKeys(context.Background(), aws.SSM, cfg)
	resultStore := lambdaboot.InitResultStore(aws.Config, cfg)

	srv, err = server.New(context.Background(), cfg, server.Options{
		Store:    resultStore,
		Observer: metrics.NewEMFObserver(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build server")
	}

	lambdaboot.StartupLog("enhance-lambda", initStart).
		Version(commitHash).
		Provider("primary:"+srv.Primary.Vendor(), srv.Primary.Configured()).
		Provider("secondary:"+srv.Secondary.Vendor(), srv.Secondary.Configured()).
		Resource("resultStore", cfg.ResultStore).
		Resource("resultTable", cfg.ResultTable).
		SSMParam("geminiApiKey", cfg.SSM.GeminiKeyParam).
		SSMParam("openaiApiKey", cfg.SSM.OpenAIKeyParam).
		Feature("fallback", cfg.FallbackEnabled).
		Config("maxImage", filehandler.FormatSize(cfg.MaxImageBytes)).
		Log()
}

func main() {
	adapter := httpadapter.NewV2(srv.Handler())
	lambda.Start(adapter.ProxyWithContext)
}
