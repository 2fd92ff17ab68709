package canonicity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blockforge/mina-indexer-core/model"
)

type testItem struct {
	height model.Height
	hash   model.BlockHash
	label  string
}

func (i testItem) Height() model.Height     { return i.height }
func (i testItem) StateHash() model.BlockHash { return i.hash }

func TestManager_ReleasesOnlyWhenBothSidesPresent(t *testing.T) {
	m := NewManager(10)
	m.AddItemsCount(5, "h5", 2)
	m.AddItem(testItem{5, "h5", "a"})

	assert.Empty(t, m.GetUpdates(100))

	m.AddItem(testItem{5, "h5", "b"})
	assert.Empty(t, m.GetUpdates(100)) // still no verdict

	m.AddCanonicityUpdate(5, "h5", true, true)
	updates := m.GetUpdates(100)
	assert.Len(t, updates, 2)
	for _, u := range updates {
		assert.True(t, u.Canonical)
	}
}

func TestManager_SecondVerdictReleasesAgain(t *testing.T) {
	m := NewManager(10)
	m.AddItemsCount(5, "h5", 1)
	m.AddItem(testItem{5, "h5", "a"})
	m.AddCanonicityUpdate(5, "h5", true, true)

	first := m.GetUpdates(100)
	assert.Len(t, first, 1)
	assert.True(t, first[0].Canonical)

	// a reorg flips this block non-canonical.
	m.AddCanonicityUpdate(5, "h5", false, true)
	second := m.GetUpdates(100)
	assert.Len(t, second, 1)
	assert.False(t, second[0].Canonical)

	// draining again yields nothing new.
	assert.Empty(t, m.GetUpdates(100))
}

func TestManager_RespectsMaxHeight(t *testing.T) {
	m := NewManager(10)
	m.AddItemsCount(5, "h5", 1)
	m.AddItem(testItem{5, "h5", "a"})
	m.AddCanonicityUpdate(5, "h5", true, true)

	assert.Empty(t, m.GetUpdates(4))
	assert.Len(t, m.GetUpdates(5), 1)
}

func TestManager_PrunesBelowTransitionFrontier(t *testing.T) {
	m := NewManager(2)
	m.AddItemsCount(1, "h1", 1)
	m.AddItem(testItem{1, "h1", "a"})
	m.AddCanonicityUpdate(1, "h1", true, true)
	m.GetUpdates(100)

	// pushing highestSeen far enough ahead should prune h1's bucket.
	m.AddItemsCount(10, "h10", 0)
	m.GetUpdates(100)

	_, exists := m.buckets[key{1, "h1"}]
	assert.False(t, exists)
}
