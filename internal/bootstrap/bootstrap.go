// Package bootstrap runs the workstation setup: detect the platform, make sure
// the data directory and the aws CLI exist, write the credentials profile and
// mirror the remote dataset.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/c-dragonai/stockllm/internal/awscli"
	"github.com/c-dragonai/stockllm/internal/credentials"
	"github.com/c-dragonai/stockllm/internal/datasync"
	"github.com/c-dragonai/stockllm/internal/execx"
	"github.com/c-dragonai/stockllm/internal/platform"
	"github.com/c-dragonai/stockllm/internal/storage"
	"github.com/c-dragonai/stockllm/pkg/logger"
)

// Options are the inputs of a single run.
type Options struct {
	// PlatformID is the host identifier; empty means the running OS.
	PlatformID string
	DataDir    string
	EnvFile    string
	Profile    string
	Remote     storage.Location
	SkipSync   bool
	Verify     bool
	Retry      datasync.RetryPolicy
}

// InstallerFactory returns the installer for a host identifier.
type InstallerFactory func(id string) (platform.Installer, error)

// SyncerFactory builds the sync engine once credentials are known.
type SyncerFactory func(ctx context.Context, creds credentials.Credentials) (datasync.Syncer, error)

// VerifyFunc checks a written profile.
type VerifyFunc func(ctx context.Context, profile string, creds credentials.Credentials) error

// Report summarises a finished run.
type Report struct {
	Platform       platform.Kind
	DataDirCreated bool
	CLIInstalled   bool
	Synced         bool
	Files          int
	Bytes          int64
	Duration       time.Duration
}

// Bootstrapper runs the stages in order and stops at the first failure.
type Bootstrapper struct {
	opts       Options
	runner     execx.Runner
	installers InstallerFactory
	writer     awscli.ProfileWriter
	syncers    SyncerFactory
	verify     VerifyFunc
}

// Option overrides one collaborator of a Bootstrapper.
type Option func(*Bootstrapper)

func WithInstallerFactory(f InstallerFactory) Option {
	return func(b *Bootstrapper) { b.installers = f }
}

func WithProfileWriter(w awscli.ProfileWriter) Option {
	return func(b *Bootstrapper) { b.writer = w }
}

func WithSyncerFactory(f SyncerFactory) Option {
	return func(b *Bootstrapper) { b.syncers = f }
}

func WithVerifier(f VerifyFunc) Option {
	return func(b *Bootstrapper) { b.verify = f }
}

// New returns a Bootstrapper that shells out through runner. Without options it
// installs with the platform package manager, writes the profile with
// `aws configure set` and copies the dataset with `aws s3 cp`.
func New(opts Options, runner execx.Runner, options ...Option) *Bootstrapper {
	if opts.Profile == "" {
		opts.Profile = awscli.DefaultProfile
	}

	b := &Bootstrapper{
		opts:   opts,
		runner: runner,
		installers: func(id string) (platform.Installer, error) {
			return platform.ForHost(id, runner, platform.Options{})
		},
		writer: awscli.NewCLIProfileWriter(runner, awscli.Binary),
		syncers: func(context.Context, credentials.Credentials) (datasync.Syncer, error) {
			return datasync.NewCLISyncer(runner, awscli.Binary, opts.Profile), nil
		},
		verify: func(ctx context.Context, profile string, creds credentials.Credentials) error {
			return awscli.VerifyProfile(ctx, profile, creds, awscli.SharedFiles{})
		},
	}
	for _, o := range options {
		o(b)
	}
	return b
}

// Run executes every stage. The returned error is a *StageError; pass it to
// ExitCode for the process status.
func (b *Bootstrapper) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{}
	log := logger.With("bootstrap")

	id := b.opts.PlatformID
	if id == "" {
		id = platform.HostID()
	}

	stageLog(log, StageDetectPlatform).Str("host", id).Msg("stage started")
	installer, err := b.installers(id)
	if err != nil {
		return report, &StageError{Stage: StageDetectPlatform, Err: err}
	}
	report.Platform = installer.Platform()
	stageLog(log, StageDetectPlatform).Str("platform", string(report.Platform)).Msg("platform detected")

	stageLog(log, StageEnsureDataDir).Str("path", b.opts.DataDir).Msg("stage started")
	created, err := EnsureDir(b.opts.DataDir)
	if err != nil {
		return report, &StageError{Stage: StageEnsureDataDir, Err: err}
	}
	report.DataDirCreated = created
	if created {
		stageLog(log, StageEnsureDataDir).Str("path", b.opts.DataDir).Msg("data directory created")
	} else {
		stageLog(log, StageEnsureDataDir).Str("path", b.opts.DataDir).Msg("data directory already exists")
	}

	stageLog(log, StageEnsureCLI).Msg("stage started")
	installed, err := installer.EnsureInstalled(ctx)
	if err != nil {
		return report, &StageError{Stage: StageEnsureCLI, Err: err}
	}
	report.CLIInstalled = installed

	stageLog(log, StageConfigureProfile).Str("env_file", b.opts.EnvFile).Str("profile", b.opts.Profile).Msg("stage started")
	creds, err := b.configureProfile(ctx)
	if err != nil {
		return report, &StageError{Stage: StageConfigureProfile, Err: err}
	}

	if b.opts.SkipSync {
		stageLog(log, StageSyncDataset).Msg("sync skipped")
	} else {
		stageLog(log, StageSyncDataset).Str("src", b.opts.Remote.String()).Str("dest", b.opts.DataDir).Msg("stage started")
		if err := b.syncDataset(ctx, creds); err != nil {
			return report, &StageError{Stage: StageSyncDataset, Err: err}
		}
		report.Synced = true

		files, err := datasync.Inventory(b.opts.DataDir)
		if err != nil {
			log.Warn().Err(err).Str("path", b.opts.DataDir).Msg("failed to list local dataset")
		} else {
			report.Files = len(files)
			report.Bytes = datasync.TotalSize(files)
		}
	}

	report.Duration = time.Since(start)
	log.Info().
		Str("platform", string(report.Platform)).
		Bool("data_dir_created", report.DataDirCreated).
		Bool("cli_installed", report.CLIInstalled).
		Bool("synced", report.Synced).
		Int("files", report.Files).
		Int64("bytes", report.Bytes).
		Dur("duration", report.Duration).
		Msg("bootstrap complete")
	return report, nil
}

func (b *Bootstrapper) configureProfile(ctx context.Context) (credentials.Credentials, error) {
	creds, err := credentials.Load(b.opts.EnvFile)
	if err != nil {
		return credentials.Credentials{}, err
	}
	if r, ok := b.runner.(interface{ AddSecrets(...string) }); ok {
		r.AddSecrets(creds.Secrets()...)
	}
	if err := creds.Export(); err != nil {
		return credentials.Credentials{}, err
	}
	log := logger.With("bootstrap")
	log.Debug().Stringer("credentials", creds).Msg("credentials loaded")

	if err := b.writer.Apply(ctx, b.opts.Profile, creds); err != nil {
		return credentials.Credentials{}, err
	}

	if b.opts.Verify {
		if err := b.verify(ctx, b.opts.Profile, creds); err != nil {
			return credentials.Credentials{}, fmt.Errorf("profile verification failed: %w", err)
		}
	}
	return creds, nil
}

func (b *Bootstrapper) syncDataset(ctx context.Context, creds credentials.Credentials) error {
	syncer, err := b.syncers(ctx, creds)
	if err != nil {
		return fmt.Errorf("failed to build sync engine: %w", err)
	}
	return datasync.NewRetryingSyncer(syncer, b.opts.Retry).Sync(ctx, b.opts.Remote, b.opts.DataDir)
}

func stageLog(log zerolog.Logger, stage Stage) *zerolog.Event {
	return log.Info().Str("stage", string(stage))
}
