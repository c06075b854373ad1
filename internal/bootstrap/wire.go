package bootstrap

import (
	"context"
	"fmt"

	"github.com/c-dragonai/stockllm/internal/awscli"
	"github.com/c-dragonai/stockllm/internal/config"
	"github.com/c-dragonai/stockllm/internal/credentials"
	"github.com/c-dragonai/stockllm/internal/datasync"
	"github.com/c-dragonai/stockllm/internal/execx"
	"github.com/c-dragonai/stockllm/internal/storage"
)

// FromConfig builds a Bootstrapper for cfg. The profile writer and the sync
// engine are picked from cfg.Profile.Writer and cfg.Sync.Engine.
func FromConfig(cfg *config.Config, runner execx.Runner) (*Bootstrapper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	remote, err := storage.ParseLocation(cfg.Remote.URI)
	if err != nil {
		return nil, err
	}

	opts := Options{
		PlatformID: cfg.App.Platform,
		DataDir:    cfg.App.DataDir,
		EnvFile:    cfg.App.EnvFile,
		Profile:    cfg.Profile.Name,
		Remote:     remote,
		SkipSync:   cfg.Sync.Skip,
		Verify:     cfg.Profile.Verify,
		Retry: datasync.RetryPolicy{
			MaxRetries: cfg.Sync.MaxRetries,
			BaseDelay:  cfg.Sync.BaseDelay,
			MaxDelay:   cfg.Sync.MaxDelay,
			Jitter:     cfg.Sync.Jitter,
			Timeout:    cfg.Sync.Timeout,
		},
	}

	var options []Option
	if cfg.Profile.Writer == config.ProfileWriterFile {
		files, err := awscli.DefaultSharedFiles()
		if err != nil {
			return nil, err
		}
		options = append(options,
			WithProfileWriter(awscli.NewFileProfileWriter(files)),
			WithVerifier(func(ctx context.Context, profile string, creds credentials.Credentials) error {
				return awscli.VerifyProfile(ctx, profile, creds, files)
			}),
		)
	}

	if factory := nativeSyncers(cfg); factory != nil {
		options = append(options, WithSyncerFactory(factory))
	}

	return New(opts, runner, options...), nil
}

// nativeSyncers returns the SDK-backed engine for cfg, or nil for the CLI engine.
func nativeSyncers(cfg *config.Config) SyncerFactory {
	switch cfg.Sync.Engine {
	case datasync.EngineS3:
		return func(ctx context.Context, creds credentials.Credentials) (datasync.Syncer, error) {
			remote, err := storage.ParseLocation(cfg.Remote.URI)
			if err != nil {
				return nil, err
			}
			client, err := storage.NewS3Client(ctx, storage.S3Config{
				Bucket:    remote.Bucket,
				Region:    creds.Region,
				Profile:   cfg.Profile.Name,
				AccessKey: creds.AccessKeyID,
				SecretKey: creds.SecretAccessKey,
				Endpoint:  cfg.Remote.Endpoint,
				PathStyle: cfg.Remote.PathStyle,
			})
			if err != nil {
				return nil, err
			}
			return datasync.NewMirrorSyncer(client, datasync.EngineS3, cfg.Sync.Concurrency), nil
		}
	case datasync.EngineMinio:
		return func(_ context.Context, creds credentials.Credentials) (datasync.Syncer, error) {
			remote, err := storage.ParseLocation(cfg.Remote.URI)
			if err != nil {
				return nil, err
			}
			client, err := storage.NewMinioClient(storage.MinioConfig{
				Endpoint:  cfg.Remote.Endpoint,
				AccessKey: creds.AccessKeyID,
				SecretKey: creds.SecretAccessKey,
				Bucket:    remote.Bucket,
				Region:    creds.Region,
				UseSSL:    cfg.Remote.UseSSL,
			})
			if err != nil {
				return nil, err
			}
			return datasync.NewMirrorSyncer(client, datasync.EngineMinio, cfg.Sync.Concurrency), nil
		}
	default:
		return nil
	}
}
