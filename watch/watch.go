// Package watch turns filesystem activity under a directory into a
// channel of new file paths. It is grounded on the teacher's dedupe
// pattern in services/blockvalidation/Server.go, which guards against
// processing the same artifact twice with a ttlcache.Cache — here the
// dedupe guards against fsnotify's well-known habit of firing more than
// one event for a single write.
package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jellydator/ttlcache/v3"

	"github.com/blockforge/mina-indexer-core/errors"
	"github.com/blockforge/mina-indexer-core/util"
	"github.com/blockforge/mina-indexer-core/util/retry"
)

// dedupeTTL bounds how long a seen path is remembered; long enough to
// absorb fsnotify's duplicate CREATE+WRITE pair for one file, short
// enough that a legitimately rewritten file (e.g. a ledger export
// regenerated at the same path) is picked up again.
const dedupeTTL = 10 * time.Second

// Dir watches path (non-recursively, matching spec.md §4.1's "blocks
// arrive as flat files in a directory") for created or written files
// whose name passes filter, emitting each qualifying path at most once
// per dedupeTTL window on the returned channel. The channel is closed when ctx is cancelled
// or the watcher errors unrecoverably.
func Dir(ctx context.Context, path string, filter func(name string) bool, log util.Logger) (<-chan string, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, err, "create watcher")
	}

	// The watch directory is sometimes created by another process (or
	// this one, via os.MkdirAll elsewhere) right around startup; retry
	// the initial Add a few times before giving up.
	_, err = retry.Retry(ctx, log, func() (struct{}, error) {
		return struct{}{}, w.Add(path)
	}, retry.WithRetryCount(5), retry.WithMessage("watch "+path), retry.WithBackoffDurationType(200*time.Millisecond))
	if err != nil {
		_ = w.Close()
		return nil, errors.Wrap(errors.ErrStorage, err, "watch %s", path)
	}

	seen := ttlcache.New[string, bool](ttlcache.WithTTL[string, bool](dedupeTTL))
	go seen.Start()

	out := make(chan string, 64)

	go func() {
		defer close(out)
		defer w.Close()
		defer seen.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				name := filepath.Base(ev.Name)
				if filter != nil && !filter(name) {
					continue
				}
				if seen.Get(ev.Name) != nil {
					continue
				}
				seen.Set(ev.Name, true, ttlcache.DefaultTTL)

				select {
				case out <- ev.Name:
				case <-ctx.Done():
					return
				}

			case werr, ok := <-w.Errors:
				if !ok {
					return
				}
				if log != nil {
					log.Errorf("watch %s: %v", path, werr)
				}
			}
		}
	}()

	return out, nil
}
