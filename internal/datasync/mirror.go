package datasync

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/c-dragonai/stockllm/internal/storage"
	"github.com/c-dragonai/stockllm/pkg/logger"
)

const defaultConcurrency = 4

// MirrorSyncer downloads every object under a prefix through an ObjectStorage.
type MirrorSyncer struct {
	store       storage.ObjectStorage
	engine      string
	concurrency int
}

// NewMirrorSyncer returns a mirror running at most concurrency downloads at once.
func NewMirrorSyncer(store storage.ObjectStorage, engine string, concurrency int) *MirrorSyncer {
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	return &MirrorSyncer{store: store, engine: engine, concurrency: concurrency}
}

func (m *MirrorSyncer) Sync(ctx context.Context, src storage.Location, destDir string) error {
	log := logger.With("sync").With().Str("engine", m.engine).Str("src", src.String()).Logger()

	objects, err := m.store.ListObjects(ctx, src.Prefix)
	if err != nil {
		return fmt.Errorf("failed to list objects for prefix %s: %w", src.Prefix, err)
	}

	type job struct {
		obj  storage.ObjectInfo
		path string
	}
	jobs := make([]job, 0, len(objects))
	for _, obj := range objects {
		if storage.IsDirectoryMarker(obj) {
			continue
		}
		localPath, err := localPathFor(destDir, src.Prefix, obj.Key)
		if err != nil {
			return err
		}
		jobs = append(jobs, job{obj: obj, path: localPath})
	}

	var (
		downloaded atomic.Int64
		total      atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for _, j := range jobs {
		j := j
		g.Go(func() error {
			if err := m.store.DownloadObject(gctx, j.obj.Key, j.path); err != nil {
				return err
			}
			downloaded.Add(1)
			total.Add(j.obj.Size)
			log.Debug().Str("key", j.obj.Key).Str("path", j.path).Msg("downloaded")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info().
		Int64("objects", downloaded.Load()).
		Int64("bytes", total.Load()).
		Str("dest", destDir).
		Msg("dataset mirrored")
	return nil
}

// objectRelativePath strips prefix from key, falling back to the base name.
func objectRelativePath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	prefixTrimmed := strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	if key == prefixTrimmed {
		return filepath.Base(key)
	}
	rel := strings.TrimPrefix(key, prefixTrimmed+"/")
	if rel == "" {
		return filepath.Base(key)
	}
	return rel
}

// localPathFor maps key into destDir and refuses keys that would escape it.
func localPathFor(destDir, prefix, key string) (string, error) {
	rel := filepath.FromSlash(objectRelativePath(prefix, key))
	localPath := filepath.Join(destDir, rel)

	within, err := filepath.Rel(destDir, localPath)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) || within == "." {
		return "", fmt.Errorf("object key %q resolves outside %s", key, destDir)
	}
	return localPath, nil
}

var _ Syncer = (*MirrorSyncer)(nil)
