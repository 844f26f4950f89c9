// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/podiumhq/podium/console"
	"github.com/podiumhq/podium/console/consoledb"
	"github.com/podiumhq/podium/podium"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "podium",
		Short: "Multi-tenant leaderboard service",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the api process",
		RunE:  cmdRun,
	}
	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the event projection worker",
		RunE:  cmdWorker,
	}
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE:  cmdMigrate,
	}
	fingerprintCmd := &cobra.Command{
		Use:   "fingerprint <api-key>",
		Short: "Print the cache fingerprint of an api key",
		Args:  cobra.ExactArgs(1),
		RunE:  cmdFingerprint,
	}

	rootCmd.AddCommand(runCmd, workerCmd, migrateCmd, fingerprintCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers environment variables over the defaults. Every config
// field maps to a PODIUM_* variable, nested fields with underscores, e.g.
// PODIUM_RATE_LIMIT_ENABLED.
func loadConfig() (podium.Config, error) {
	config := podium.DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix("podium")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv alone does not surface env-only keys to Unmarshal; the
	// defaults register them.
	defaults := map[string]any{
		"address":               config.Address,
		"database_url":          config.DatabaseURL,
		"cache_url":             config.CacheURL,
		"stream_url":            config.StreamURL,
		"internal_secret":       config.InternalSecret,
		"log_level":             config.LogLevel,
		"auth_cache_ttl":        config.AuthCacheTTL,
		"request_timeout":       config.RequestTimeout,
		"usage_retention":       config.UsageRetention,
		"rate_limit.enabled":    config.RateLimit.Enabled,
		"rate_limit.keyttl":     config.RateLimit.KeyTTL,
		"rate_limit.failclosed": config.RateLimit.FailClosed,
		"resetter.interval":     config.Resetter.Interval,
		"resetter.enabled":      config.Resetter.Enabled,
		"worker.consumername":   config.Worker.ConsumerName,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.Unmarshal(&config); err != nil {
		return config, errs.Wrap(err)
	}
	return config, nil
}

func newLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		parsed = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsed)
	return cfg.Build()
}

// runCtx cancels on SIGINT/SIGTERM for graceful shutdown.
func runCtx() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func cmdRun(cmd *cobra.Command, args []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(config.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := runCtx()
	defer cancel()

	peer, err := podium.New(ctx, log, config)
	if err != nil {
		return err
	}

	runErr := peer.Run(ctx)
	closeErr := peer.Close()
	return errs.Combine(runErr, closeErr)
}

func cmdWorker(cmd *cobra.Command, args []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(config.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := runCtx()
	defer cancel()

	peer, err := podium.NewWorker(ctx, log, config)
	if err != nil {
		return err
	}

	runErr := peer.Run(ctx)
	closeErr := peer.Close()
	return errs.Combine(runErr, closeErr)
}

func cmdMigrate(cmd *cobra.Command, args []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(config.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := runCtx()
	defer cancel()

	db, err := consoledb.Open(ctx, log.Named("consoledb"), config.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.MigrateUp(); err != nil {
		return err
	}
	log.Info("migrations applied")
	return nil
}

func cmdFingerprint(cmd *cobra.Command, args []string) error {
	fmt.Println(console.KeyFingerprint(args[0]))
	return nil
}
