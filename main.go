package main

import (
	"context"
	"fmt"
	"log"
	"os"
	_ "time/tzdata"

	"settlement-service/logger"
	aws_pkg "settlement-service/pkg/aws"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "settlement-service",
		Short:         "PayFast settlement and workshop payout service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(runJobCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads config, the logger and the dependency graph. The returned
// cleanup flushes the logger and releases every connection.
func bootstrap(ctx context.Context) (*app, func(), error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	awsCfg, awsErr := loadAWS(ctx, cfg)
	zl, err := newLogger(ctx, cfg, awsCfg)
	if err != nil {
		return nil, nil, err
	}
	if awsErr != nil {
		zl.Warn("AWS config unavailable, SNS/SQS/CloudWatch disabled", zap.Error(awsErr))
	}

	a, err := newApp(ctx, cfg, zl, awsCfg)
	if err != nil {
		_ = zl.Sync()
		return nil, nil, fmt.Errorf("init: %w", err)
	}

	cleanup := func() {
		if err := a.Close(); err != nil {
			zl.Warn("Error during shutdown", zap.Error(err))
		}
		_ = zl.Sync()
	}
	return a, cleanup, nil
}

// newLogger tees logs into CloudWatch Logs when a log group is configured.
func newLogger(ctx context.Context, cfg *Config, awsCfg *sdkaws.Config) (*zap.Logger, error) {
	if cfg.LogGroup != "" && awsCfg != nil {
		cwLogs, err := aws_pkg.NewCloudWatchLogsClient(ctx, *awsCfg, cfg.LogGroup, cfg.ServiceName)
		if err == nil {
			return logger.InitializeWithWriter(cfg.Env, cwLogs)
		}
		log.Printf("CloudWatch Logs unavailable, logging to stdout only: %v", err)
	}
	return logger.Initialize(cfg.Env)
}
