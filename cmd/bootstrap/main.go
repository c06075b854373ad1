package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/c-dragonai/stockllm/internal/bootstrap"
	"github.com/c-dragonai/stockllm/internal/config"
	"github.com/c-dragonai/stockllm/internal/execx"
	"github.com/c-dragonai/stockllm/pkg/logger"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("bootstrap failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "bootstrap",
		Usage: "Prepare a workstation: aws CLI, credentials profile and the local stock dataset",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Usage:   "Credentials file holding the four AWS_* variables",
				Value:   ".env",
				EnvVars: []string{"BOOTSTRAP_ENV_FILE"},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Local directory the dataset is mirrored into",
				Value:   "./data",
				EnvVars: []string{"BOOTSTRAP_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:    "remote",
				Usage:   "Remote dataset location (s3://bucket/prefix/)",
				EnvVars: []string{"BOOTSTRAP_REMOTE"},
			},
			&cli.StringFlag{
				Name:    "profile",
				Usage:   "Name of the aws CLI profile to write",
				EnvVars: []string{"BOOTSTRAP_PROFILE"},
			},
			&cli.StringFlag{
				Name:    "platform",
				Usage:   "Host identifier (linux, darwin, windows, MINGW64_NT-10.0, ...); defaults to the running OS",
				EnvVars: []string{"BOOTSTRAP_PLATFORM"},
			},
			&cli.StringFlag{
				Name:    "sync-engine",
				Usage:   "Dataset sync engine: cli, s3 or minio",
				EnvVars: []string{"BOOTSTRAP_SYNC_ENGINE"},
			},
			&cli.StringFlag{
				Name:    "profile-writer",
				Usage:   "How the profile is written: cli (aws configure set) or file (~/.aws)",
				EnvVars: []string{"BOOTSTRAP_PROFILE_WRITER"},
			},
			&cli.StringFlag{
				Name:    "endpoint",
				Usage:   "S3-compatible endpoint for the s3 and minio engines",
				EnvVars: []string{"BOOTSTRAP_S3_ENDPOINT"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:    "skip-sync",
				Usage:   "Stop after the profile is written",
				EnvVars: []string{"BOOTSTRAP_SKIP_SYNC"},
			},
			&cli.BoolFlag{
				Name:    "verify-profile",
				Usage:   "Read the written profile back through the AWS SDK",
				EnvVars: []string{"BOOTSTRAP_VERIFY_PROFILE"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.SetLevel(c.String("log-level"))
			return nil
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	cfg := config.Load()
	applyFlags(c, cfg)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := bootstrap.FromConfig(cfg, execx.NewExecRunner())
	if err != nil {
		logger.Log.Error().Err(err).Msg("invalid configuration")
		return cli.Exit("", 1)
	}

	if _, err := b.Run(ctx); err != nil {
		stage, _ := bootstrap.FailedStage(err)
		code := bootstrap.ExitCode(err)
		logger.Log.Error().Err(err).Str("stage", string(stage)).Int("exit_code", code).Msg("bootstrap failed")
		return cli.Exit("", code)
	}
	return nil
}

// applyFlags lets explicitly set flags win over the loaded configuration.
func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("env-file") {
		cfg.App.EnvFile = c.String("env-file")
	}
	if c.IsSet("data-dir") {
		cfg.App.DataDir = c.String("data-dir")
	}
	if c.IsSet("platform") {
		cfg.App.Platform = c.String("platform")
	}
	if c.IsSet("log-level") {
		cfg.App.LogLevel = c.String("log-level")
	}
	if c.IsSet("remote") {
		cfg.Remote.URI = c.String("remote")
	}
	if c.IsSet("endpoint") {
		cfg.Remote.Endpoint = c.String("endpoint")
	}
	if c.IsSet("profile") {
		cfg.Profile.Name = c.String("profile")
	}
	if c.IsSet("profile-writer") {
		cfg.Profile.Writer = c.String("profile-writer")
	}
	if c.IsSet("verify-profile") {
		cfg.Profile.Verify = c.Bool("verify-profile")
	}
	if c.IsSet("sync-engine") {
		cfg.Sync.Engine = c.String("sync-engine")
	}
	if c.IsSet("skip-sync") {
		cfg.Sync.Skip = c.Bool("skip-sync")
	}
}
