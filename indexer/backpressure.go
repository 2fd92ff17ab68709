package indexer

import "go.uber.org/atomic"

// backpressure tracks the height spread between the highest block
// height observed so far and the first height observed, per spec.md §5's
// concurrency model ("shed work rather than grow memory without
// bound"). Counters are explicit struct fields, not package globals,
// so multiple Indexer instances in one process (e.g. a primary and a
// read-only snapshot handle under test) never share state.
type backpressure struct {
	fastestHeight atomic.Uint32
	slowestHeight atomic.Uint32
	shedCount     atomic.Uint64
}

func newBackpressure() *backpressure {
	return &backpressure{}
}

// observe records a newly-seen height on the fastest side, initializing
// the slowest side the first time it is called.
func (b *backpressure) observe(height uint32) {
	for {
		cur := b.fastestHeight.Load()
		if height <= cur {
			break
		}
		if b.fastestHeight.CAS(cur, height) {
			break
		}
	}
	b.slowestHeight.CAS(0, height)
}

// spread returns the current fastest-minus-slowest height gap.
func (b *backpressure) spread() uint32 {
	f, s := b.fastestHeight.Load(), b.slowestHeight.Load()
	if f < s {
		return 0
	}
	return f - s
}

// shouldShed reports whether an incoming block at height should be
// dropped (and counted) because it falls too far behind the fastest
// branch to plausibly ever reach the canonical chain before it is
// pruned past the transition frontier.
func (b *backpressure) shouldShed(height, maxSpread uint32) bool {
	f := b.fastestHeight.Load()
	if f == 0 {
		return false
	}
	if f > height && f-height > maxSpread {
		b.shedCount.Inc()
		return true
	}
	return false
}
