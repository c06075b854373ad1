// Package datasync mirrors the remote dataset into the local data directory.
//
// Three engines share the Syncer interface:
//
//   - CLISyncer shells out to `aws s3 cp --recursive` with the bootstrap profile.
//   - MirrorSyncer lists and downloads objects through a storage.ObjectStorage
//     (aws-sdk-go-v2 or minio-go), several at a time.
//   - RetryingSyncer wraps either one with a per-attempt timeout and
//     exponential backoff between attempts.
//
// Existing local files are overwritten object by object; nothing local is deleted.
package datasync

import (
	"context"

	"github.com/c-dragonai/stockllm/internal/storage"
)

// Engine names accepted by configuration.
const (
	EngineCLI   = "cli"
	EngineS3    = "s3"
	EngineMinio = "minio"
)

// Syncer copies everything under src into destDir.
type Syncer interface {
	Sync(ctx context.Context, src storage.Location, destDir string) error
}

// SyncerFunc adapts a function to Syncer.
type SyncerFunc func(ctx context.Context, src storage.Location, destDir string) error

func (f SyncerFunc) Sync(ctx context.Context, src storage.Location, destDir string) error {
	return f(ctx, src, destDir)
}
