package indexer

import (
	"sync"

	"github.com/blockforge/mina-indexer-core/model"
)

// diffCache holds one LedgerDiff per block currently live in the
// forest (root branch or dangling), keyed by state hash. Blocks are
// evicted once the forest prunes past the transition frontier: New
// wires evict in as the forest's OnPrune hook.
type diffCache struct {
	mu sync.Mutex
	m  map[model.BlockHash]*model.LedgerDiff
}

func newDiffCache() *diffCache {
	return &diffCache{m: map[model.BlockHash]*model.LedgerDiff{}}
}

func (c *diffCache) put(hash model.BlockHash, d *model.LedgerDiff) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[hash] = d
}

func (c *diffCache) get(hash model.BlockHash) *model.LedgerDiff {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m[hash]
}

func (c *diffCache) evict(hash model.BlockHash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, hash)
}
