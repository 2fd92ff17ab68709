// Package canonicity implements C6 (Canonicity Manager): buffering
// block-by-height item arrivals and canonicity verdicts until both
// sides are present, then releasing ordered canonicity updates
// (spec.md §4.5).
package canonicity

import (
	"sort"
	"sync"

	"github.com/blockforge/mina-indexer-core/model"
)

// Item is anything the manager can buffer and release keyed by the
// block it belongs to: a user command, an internal command, or a piece
// of snark work (spec.md §4.5).
type Item interface {
	Height() model.Height
	StateHash() model.BlockHash
}

// Update pairs a released item with the canonicity verdict it was
// released under.
type Update struct {
	Item      Item
	Canonical bool
	// WasCanonical distinguishes a first-time canonical verdict from a
	// reconfirmation (spec.md §3 CanonicityEntry).
	WasCanonical bool
	// Seq orders releases within a single get_updates call, matching the
	// order their canonicity verdicts arrived.
	Seq uint64
}

type key struct {
	height model.Height
	hash   model.BlockHash
}

type bucket struct {
	expectedCount int
	items         []Item
	verdicts      []verdictRecord
}

type verdictRecord struct {
	canonical    bool
	wasCanonical bool
	seq          uint64
}

func (b *bucket) ready() bool {
	return b.expectedCount >= 0 && len(b.items) == b.expectedCount
}

// Manager implements C6's buffer. It is safe for concurrent use: the
// branch forest's writer goroutine publishes canonicity updates while a
// parsing goroutine feeds items, matching the races spec.md §4.5
// describes.
type Manager struct {
	mu              sync.Mutex
	buckets         map[key]*bucket
	released        map[key]int // how many verdicts already drained per key
	highestSeen     model.Height
	transitionDepth model.Height
	seq             uint64
}

// NewManager creates a manager that prunes entries once their height
// falls below (highest-seen-height - transitionDepth).
func NewManager(transitionDepth model.Height) *Manager {
	return &Manager{
		buckets:         map[key]*bucket{},
		released:        map[key]int{},
		transitionDepth: transitionDepth,
	}
}

func (m *Manager) bucketFor(h model.Height, hash model.BlockHash) *bucket {
	k := key{h, hash}
	b, ok := m.buckets[k]
	if !ok {
		b = &bucket{expectedCount: -1}
		m.buckets[k] = b
	}
	if h > m.highestSeen {
		m.highestSeen = h
	}
	return b
}

// AddItemsCount records how many items to expect for (height, state
// hash) before they are known to have arrived.
func (m *Manager) AddItemsCount(height model.Height, hash model.BlockHash, expectedCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bucketFor(height, hash).expectedCount = expectedCount
}

// AddItem buffers one parsed item under its containing block.
func (m *Manager) AddItem(item Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bucketFor(item.Height(), item.StateHash())
	b.items = append(b.items, item)
}

// AddCanonicityUpdate records a canonicity verdict for (height, state
// hash). Per spec.md §4.5's invariant, a second verdict for the same
// key is recorded alongside the first, not merged, so its items are
// released again under the new flag.
func (m *Manager) AddCanonicityUpdate(height model.Height, hash model.BlockHash, canonical, wasCanonical bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	b := m.bucketFor(height, hash)
	b.verdicts = append(b.verdicts, verdictRecord{canonical: canonical, wasCanonical: wasCanonical, seq: m.seq})
}

// GetUpdates returns every buffered update whose height is <= maxHeight
// and whose bucket has both a verdict and a fully-arrived item count,
// releasing each not-yet-drained verdict's items together, ordered by
// verdict arrival (spec.md §4.5). Buckets are pruned by height alone,
// once they fall below (highest-seen-height - transitionDepth), whether
// or not they have been drained.
func (m *Manager) GetUpdates(maxHeight model.Height) []Update {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Update

	for k, b := range m.buckets {
		if k.height > maxHeight || !b.ready() {
			continue
		}
		drainedFrom := m.released[k]
		for vi := drainedFrom; vi < len(b.verdicts); vi++ {
			v := b.verdicts[vi]
			for _, item := range b.items {
				out = append(out, Update{Item: item, Canonical: v.canonical, WasCanonical: v.wasCanonical, Seq: v.seq})
			}
		}
		if drainedFrom < len(b.verdicts) {
			m.released[k] = len(b.verdicts)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })

	m.prune()

	return out
}

// prune discards buckets whose height is below the transition frontier.
func (m *Manager) prune() {
	if m.highestSeen < m.transitionDepth {
		return
	}
	floor := m.highestSeen - m.transitionDepth
	for k := range m.buckets {
		if k.height < floor {
			delete(m.buckets, k)
			delete(m.released, k)
		}
	}
}
