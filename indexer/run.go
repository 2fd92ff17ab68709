package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/blockforge/mina-indexer-core/blockfile"
	"github.com/blockforge/mina-indexer-core/canonical"
	"github.com/blockforge/mina-indexer-core/watch"
)

// Run performs the startup directory scan over block-startup-dir (via
// ScanStartupDir: canonical-chain discovery first, then the canonical
// files ancestor-first and the recent files after them), then watches
// block-watch-dir for
// new arrivals until ctx is cancelled (spec.md §6.2 "Startup vs.
// steady-state ingestion").
//
// Ledger export files (ledger-startup-dir/ledger-watch-dir) are outside
// this core's current scope: no ledger-export parser exists yet to
// consume them (see DESIGN.md); Run accepts the directories so the
// control-surface flags have somewhere to go, but does not watch them.
func (idx *Indexer) Run(ctx context.Context) error {
	if idx.settings.BlockStartupDir != "" {
		if err := idx.ScanStartupDir(idx.settings.BlockStartupDir); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	if idx.settings.BlockWatchDir != "" {
		events, err := watch.Dir(ctx, idx.settings.BlockWatchDir, blockfile.IsBlockFilename, idx.log)
		if err != nil {
			return err
		}
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case path, ok := <-events:
					if !ok {
						return nil
					}
					if err := idx.IngestBlockFile(path); err != nil && idx.log != nil {
						idx.log.Errorf("ingest %s: %v", path, err)
					}
				}
			}
		})
	}

	return g.Wait()
}

// ScanStartupDir ingests every block file already present in dir
// (spec.md §6.5's "sync" control-surface subcommand). Per spec.md §4's
// data-flow note "C3 feeds C5 at startup", the directory is first run
// through canonical.Discover so the confidently canonical prefix is
// fed to the branch forest ancestor-first, before the remaining
// "recent" files are fed in filename order; this keeps the forest's
// root branch growing along the real chain instead of thrashing
// through whatever dangling-branch reshuffling an arbitrary file order
// would otherwise cause on a large backlog. Orphaned files (already
// known non-canonical at or below the discovered tip) are logged and
// skipped rather than extended into the forest.
func (idx *Indexer) ScanStartupDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !blockfile.IsBlockFilename(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}

	result, err := canonical.Discover(paths, uint32(idx.settings.CanonicalThreshold))
	if err != nil {
		return err
	}

	ingest := func(path string) {
		if err := idx.IngestBlockFile(path); err != nil && idx.log != nil {
			idx.log.Errorf("startup ingest %s: %v", path, err)
		}
	}

	for _, path := range result.Canonical {
		ingest(path)
	}

	recent := append([]string{}, result.Recent...)
	sort.Strings(recent)
	for _, path := range recent {
		ingest(path)
	}

	if len(result.Orphaned) > 0 && idx.log != nil {
		idx.log.Infof("startup scan of %s: skipping %d orphaned block file(s)", dir, len(result.Orphaned))
	}

	return nil
}
