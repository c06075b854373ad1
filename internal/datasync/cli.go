package datasync

import (
	"context"
	"fmt"

	"github.com/c-dragonai/stockllm/internal/execx"
	"github.com/c-dragonai/stockllm/internal/storage"
	"github.com/c-dragonai/stockllm/pkg/logger"
)

// CLISyncer delegates the recursive copy to the aws CLI.
type CLISyncer struct {
	runner  execx.Runner
	binary  string
	profile string
}

// NewCLISyncer returns a syncer running binary with the given profile.
func NewCLISyncer(runner execx.Runner, binary, profile string) *CLISyncer {
	return &CLISyncer{runner: runner, binary: binary, profile: profile}
}

// Args returns the argument list passed to the CLI.
func (s *CLISyncer) Args(src storage.Location, destDir string) []string {
	args := []string{"s3", "cp", src.String(), destDir, "--recursive"}
	if s.profile != "" {
		args = append(args, "--profile", s.profile)
	}
	return args
}

func (s *CLISyncer) Sync(ctx context.Context, src storage.Location, destDir string) error {
	log := logger.With("sync")
	log.Info().
		Str("engine", EngineCLI).
		Str("src", src.String()).
		Str("dest", destDir).
		Msg("copying dataset")

	if err := s.runner.Run(ctx, s.binary, s.Args(src, destDir)...); err != nil {
		return fmt.Errorf("recursive copy from %s failed: %w", src, err)
	}
	return nil
}

var _ Syncer = (*CLISyncer)(nil)
