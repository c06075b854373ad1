package datasync

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c-dragonai/stockllm/internal/execx"
	"github.com/c-dragonai/stockllm/internal/execx/execxtest"
	"github.com/c-dragonai/stockllm/internal/storage"
)

var stocksData = storage.Location{Bucket: "ai-s3-disk", Prefix: "datasets/StocksData/"}

type memoryStore struct {
	mu         sync.Mutex
	objects    map[string]string
	downloaded []string
	failKey    string
}

func (m *memoryStore) ListObjects(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	var out []storage.ObjectInfo
	for key, body := range m.objects {
		out = append(out, storage.ObjectInfo{Key: key, Size: int64(len(body))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memoryStore) DownloadObject(ctx context.Context, key, destPath string) error {
	if key == m.failKey {
		return fmt.Errorf("download of %s failed", key)
	}
	m.mu.Lock()
	m.downloaded = append(m.downloaded, key)
	m.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(destPath, []byte(m.objects[key]), 0o644)
}

func TestCLISyncer_Args(t *testing.T) {
	rec := execxtest.NewRecorder("aws")
	s := NewCLISyncer(rec, "aws", "init-conf")

	require.NoError(t, s.Sync(context.Background(), stocksData, "./data"))

	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "aws s3 cp s3://ai-s3-disk/datasets/StocksData/ ./data --recursive --profile init-conf", calls[0].String())
}

func TestCLISyncer_PropagatesExitCode(t *testing.T) {
	rec := execxtest.NewRecorder("aws")
	rec.FailWith("aws s3 cp", &execx.ExitError{Command: "aws", Code: 1})

	err := NewCLISyncer(rec, "aws", "").Sync(context.Background(), stocksData, "./data")
	require.Error(t, err)

	code, ok := execx.ExitCode(err)
	assert.True(t, ok)
	assert.Equal(t, 1, code)
	assert.NotContains(t, rec.Calls()[0].Args, "--profile")
}

func TestMirrorSyncer_MapsKeysAndSkipsMarkers(t *testing.T) {
	store := &memoryStore{objects: map[string]string{
		"datasets/StocksData/":             "",
		"datasets/StocksData/2330.csv":     "a,b\n1,2\n",
		"datasets/StocksData/tw/0050.csv":  "c\n3\n",
		"datasets/StocksData/tw/":          "",
		"datasets/StocksData/us/AAPL.csv":  "d\n",
		"datasets/StocksData/us/MSFT.csv":  "e\n",
		"datasets/StocksData/us/GOOGL.csv": "f\n",
	}}
	dest := t.TempDir()

	require.NoError(t, NewMirrorSyncer(store, EngineS3, 2).Sync(context.Background(), stocksData, dest))

	files, err := Inventory(dest)
	require.NoError(t, err)

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"2330.csv", "tw/0050.csv", "us/AAPL.csv", "us/GOOGL.csv", "us/MSFT.csv"}, paths)
	assert.Len(t, store.downloaded, 5)

	got, err := os.ReadFile(filepath.Join(dest, "2330.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(got))
}

func TestMirrorSyncer_OverwritesExistingFiles(t *testing.T) {
	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "2330.csv"), []byte("stale"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "local-notes.txt"), []byte("mine"), 0o644))

	store := &memoryStore{objects: map[string]string{"datasets/StocksData/2330.csv": "fresh"}}
	require.NoError(t, NewMirrorSyncer(store, EngineMinio, 0).Sync(context.Background(), stocksData, dest))

	got, err := os.ReadFile(filepath.Join(dest, "2330.csv"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(got))

	_, err = os.Stat(filepath.Join(dest, "local-notes.txt"))
	assert.NoError(t, err, "files without a remote counterpart are left alone")
}

func TestMirrorSyncer_DownloadError(t *testing.T) {
	store := &memoryStore{
		objects: map[string]string{"datasets/StocksData/a.csv": "1", "datasets/StocksData/b.csv": "2"},
		failKey: "datasets/StocksData/b.csv",
	}

	err := NewMirrorSyncer(store, EngineS3, 1).Sync(context.Background(), stocksData, t.TempDir())
	assert.ErrorContains(t, err, "b.csv")
}

func TestMirrorSyncer_RejectsEscapingKeys(t *testing.T) {
	store := &memoryStore{objects: map[string]string{"datasets/StocksData/../../etc/passwd": "x"}}

	err := NewMirrorSyncer(store, EngineS3, 1).Sync(context.Background(), stocksData, t.TempDir())
	assert.ErrorContains(t, err, "outside")
	assert.Empty(t, store.downloaded)
}

func TestObjectRelativePath(t *testing.T) {
	assert.Equal(t, "2330.csv", objectRelativePath("datasets/StocksData/", "datasets/StocksData/2330.csv"))
	assert.Equal(t, "tw/0050.csv", objectRelativePath("datasets/StocksData", "datasets/StocksData/tw/0050.csv"))
	assert.Equal(t, "StocksData", objectRelativePath("datasets/StocksData/", "datasets/StocksData"))
	assert.Equal(t, "other/x.csv", objectRelativePath("", "other/x.csv"))
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func TestRetryingSyncer_RetriesUntilSuccess(t *testing.T) {
	attempts := 0
	inner := SyncerFunc(func(ctx context.Context, src storage.Location, dest string) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	})

	r := NewRetryingSyncer(inner, RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Second})
	var slept []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	require.NoError(t, r.Sync(context.Background(), stocksData, "./data"))
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, slept)
}

func TestRetryingSyncer_GivesUp(t *testing.T) {
	attempts := 0
	inner := SyncerFunc(func(ctx context.Context, src storage.Location, dest string) error {
		attempts++
		return &execx.ExitError{Command: "aws", Code: 2}
	})

	r := NewRetryingSyncer(inner, RetryPolicy{MaxRetries: 2})
	r.sleep = noSleep

	err := r.Sync(context.Background(), stocksData, "./data")
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.ErrorContains(t, err, "after 3 attempts")

	code, ok := execx.ExitCode(err)
	assert.True(t, ok)
	assert.Equal(t, 2, code)
}

func TestRetryingSyncer_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	inner := SyncerFunc(func(ctx context.Context, src storage.Location, dest string) error {
		attempts++
		cancel()
		return errors.New("interrupted")
	})

	r := NewRetryingSyncer(inner, RetryPolicy{MaxRetries: 5})
	r.sleep = noSleep

	err := r.Sync(ctx, stocksData, "./data")
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryingSyncer_AttemptTimeout(t *testing.T) {
	attempts := 0
	inner := SyncerFunc(func(ctx context.Context, src storage.Location, dest string) error {
		attempts++
		if attempts == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})

	r := NewRetryingSyncer(inner, RetryPolicy{MaxRetries: 1, Timeout: 10 * time.Millisecond})
	r.sleep = noSleep

	require.NoError(t, r.Sync(context.Background(), stocksData, "./data"))
	assert.Equal(t, 2, attempts)
}

func TestBackoff_ForAttempt(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, time.Second, 0)

	assert.Equal(t, 100*time.Millisecond, b.ForAttempt(0))
	assert.Equal(t, 200*time.Millisecond, b.ForAttempt(1))
	assert.Equal(t, 800*time.Millisecond, b.ForAttempt(3))
	assert.Equal(t, time.Second, b.ForAttempt(4))
	assert.Equal(t, time.Second, b.ForAttempt(100))
}

func TestBackoff_LargeBaseDoesNotWrap(t *testing.T) {
	ceiling := time.Duration(math.MaxInt64)
	b := NewBackoff(time.Hour, ceiling, 0)

	prev := b.ForAttempt(0)
	for attempt := 1; attempt <= 31; attempt++ {
		d := b.ForAttempt(attempt)
		assert.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
		prev = d
	}
	assert.Equal(t, ceiling, b.ForAttempt(22))
	assert.Equal(t, ceiling, b.ForAttempt(30))
	assert.Equal(t, 1024*time.Hour, b.ForAttempt(10))
}

func TestBackoff_JitterBounds(t *testing.T) {
	b := NewBackoff(time.Second, time.Second, 0.5)
	for i := 0; i < 100; i++ {
		d := b.ForAttempt(0)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}
}

func TestInventory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b", "y.csv"), []byte("12345"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("123"), 0o644))

	files, err := Inventory(dir)
	require.NoError(t, err)
	assert.Equal(t, []LocalFile{{Path: "a.csv", Size: 3}, {Path: "b/y.csv", Size: 5}}, files)
	assert.Equal(t, int64(8), TotalSize(files))

	_, err = Inventory(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
