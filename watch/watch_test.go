package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockforge/mina-indexer-core/blockfile"
)

func TestDir_EmitsFilteredFile(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := Dir(ctx, dir, blockfile.IsBlockFilename, nil)
	require.NoError(t, err)

	path := filepath.Join(dir, "mainnet-42-3NtestHashxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	select {
	case got := <-out:
		assert.Equal(t, path, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watch event")
	}
}

func TestDir_FiltersNonBlockFiles(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := Dir(ctx, dir, blockfile.IsBlockFilename, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("x"), 0o644))

	select {
	case got := <-out:
		t.Fatalf("unexpected event for non-block file: %s", got)
	case <-time.After(300 * time.Millisecond):
		// expected: nothing should arrive.
	}
}

func TestDir_ClosesOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())

	out, err := Dir(ctx, dir, blockfile.IsBlockFilename, nil)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close after context cancel")
	}
}
