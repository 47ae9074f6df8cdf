package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// runWatcher starts w and returns a counter of onChange calls.
func runWatcher(t *testing.T, w *Watcher) *atomic.Int32 {
	t.Helper()

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func() { calls.Add(1) })
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("Run() did not return after cancel")
		}
	})
	return &calls
}

func TestWatcher_DetectsWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pixelserve.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8000\n"), 0o644))

	w, err := New(path, 20*time.Millisecond, testLogger())
	require.NoError(t, err)
	calls := runWatcher(t, w)

	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o644))

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_CoalescesBurst(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pixelserve.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	w, err := New(path, 300*time.Millisecond, testLogger())
	require.NoError(t, err)
	calls := runWatcher(t, w)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte('a' + i)}, 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "burst should produce one notification")
}

func TestWatcher_DetectsAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pixelserve.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	w, err := New(path, 20*time.Millisecond, testLogger())
	require.NoError(t, err)
	calls := runWatcher(t, w)

	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte("b"), 0o644))
	require.NoError(t, os.Rename(tmp, path))

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pixelserve.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	w, err := New(path, 20*time.Millisecond, testLogger())
	require.NoError(t, err)
	calls := runWatcher(t, w)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.gif"), []byte("GIF89a"), 0o644))

	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestWatcher_HandlerPanicRecovered(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pixelserve.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	w, err := New(path, 20*time.Millisecond, testLogger())
	require.NoError(t, err)

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = w.Run(ctx, func() {
			if calls.Add(1) == 1 {
				panic("boom")
			}
		})
	}()

	require.NoError(t, os.WriteFile(path, []byte("1"), 0o644))
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("2"), 0o644))
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 5*time.Second, 10*time.Millisecond)
}

func TestNew_MissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope", "pixelserve.yaml"), 0, nil)
	require.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	dir := t.TempDir()
	w, err := New(filepath.Join(dir, "pixelserve.yaml"), 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.fsw.Close() })

	assert.Equal(t, DefaultDebounce, w.debounce)
	assert.True(t, filepath.IsAbs(w.Path()))
}
