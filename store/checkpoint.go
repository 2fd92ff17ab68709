package store

import (
	"io"
	"os"
	"path/filepath"

	"github.com/blockforge/mina-indexer-core/errors"
	"github.com/blockforge/mina-indexer-core/util"
)

// Checkpoint takes a point-in-time snapshot of the store at dstDir by
// hard-linking every immutable SST/vlog file and copying the manifest
// (spec.md §4.4 "Checkpointing"). badger's LSM files are written once
// and never mutated in place, so a hard link is a consistent snapshot
// as long as the primary's value-log GC is paused for the duration of
// the link pass; Checkpoint does not pause it, so the caller is
// responsible for that.
func (s *Store) Checkpoint(dstDir string) error {
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return errors.Wrap(errors.ErrStorage, err, "create checkpoint dir %s", dstDir)
	}

	entries, err := os.ReadDir(s.path)
	if err != nil {
		return errors.Wrap(errors.ErrStorage, err, "list store dir %s", s.path)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		src := filepath.Join(s.path, e.Name())
		dst := filepath.Join(dstDir, e.Name())
		if err := os.Link(src, dst); err != nil {
			// cross-device links fail with EXDEV; fall back to a copy so
			// checkpoints still work when the destination is a different
			// filesystem/volume.
			if copyErr := copyFile(src, dst); copyErr != nil {
				return errors.Wrap(errors.ErrStorage, copyErr, "snapshot %s", e.Name())
			}
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// OpenReadOnlySnapshot opens a previously-checkpointed directory as a
// secondary handle for queries over the snapshot (spec.md §4.4
// "Concurrency"). It opens the directory through Open with the same
// read-write options; read-only access is not enforced.
func OpenReadOnlySnapshot(dir string, log util.Logger) (*Store, error) {
	s, err := Open(dir, log)
	if err != nil {
		return nil, err
	}
	if log != nil {
		log.Infof("opened read-only snapshot at %s", dir)
	}
	return s, nil
}
