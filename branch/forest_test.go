package branch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockforge/mina-indexer-core/model"
)

func blk(hash, parent string, length model.Height, vrf string) *model.Block {
	return &model.Block{
		StateHash:        model.BlockHash(hash),
		ParentHash:       model.BlockHash(parent),
		BlockchainLength: length,
		HashLastVRFOutput: vrf,
	}
}

func TestExtend_RootSimple(t *testing.T) {
	genesis := blk("genesis", "genesis", 0, "a")
	f := NewForest(genesis, 10)

	b1 := blk("h1", "genesis", 1, "a")
	outcome := f.Extend(b1)
	assert.Equal(t, RootSimple, outcome)
	assert.Equal(t, model.BlockHash("h1"), f.BestTip().StateHash)
}

func TestExtend_Duplicate(t *testing.T) {
	genesis := blk("genesis", "genesis", 0, "a")
	f := NewForest(genesis, 10)
	b1 := blk("h1", "genesis", 1, "a")
	f.Extend(b1)
	outcome := f.Extend(b1)
	assert.Equal(t, Duplicate, outcome)
}

func TestExtend_DanglingNewThenForward(t *testing.T) {
	genesis := blk("genesis", "genesis", 0, "a")
	f := NewForest(genesis, 10)

	// h5's parent is unknown -> dangling-new.
	h5 := blk("h5", "h4", 5, "a")
	outcome := f.Extend(h5)
	assert.Equal(t, DanglingNew, outcome)
	assert.Len(t, f.Dangling, 1)

	// h6 extends h5 -> dangling-simple-forward.
	h6 := blk("h6", "h5", 6, "a")
	outcome = f.Extend(h6)
	assert.Equal(t, DanglingSimpleForward, outcome)
	assert.Len(t, f.Dangling, 1)
}

func TestExtend_DanglingSimpleReverse(t *testing.T) {
	genesis := blk("genesis", "genesis", 0, "a")
	f := NewForest(genesis, 10)

	h5 := blk("h5", "h4", 5, "a")
	f.Extend(h5)

	// h4 is h5's parent -> dangling-simple-reverse, rerooting the branch.
	h4 := blk("h4", "h3", 4, "a")
	outcome := f.Extend(h4)
	assert.Equal(t, DanglingSimpleReverse, outcome)
	assert.Len(t, f.Dangling, 1)

	rootID, rootBlock := f.Dangling[0].Root()
	assert.Equal(t, model.BlockHash("h4"), rootBlock.StateHash)
	assert.Equal(t, model.Height(0), f.Dangling[0].height(rootID))
}

func TestExtend_RootComplexMergesDangling(t *testing.T) {
	genesis := blk("genesis", "genesis", 0, "a")
	f := NewForest(genesis, 10)

	// h2 dangles off not-yet-seen h1.
	h2 := blk("h2", "h1", 2, "a")
	f.Extend(h2)
	assert.Len(t, f.Dangling, 1)

	// h1 attaches to the root AND is the dangling branch's root's parent
	// -> root-complex, splicing h2's subtree under h1 in the root branch.
	h1 := blk("h1", "genesis", 1, "a")
	outcome := f.Extend(h1)
	assert.Equal(t, RootComplex, outcome)
	assert.Empty(t, f.Dangling)
	assert.True(t, f.RootBranch.Contains("h2"))
}

func TestExtend_BestTipPrefersHigherVRFAtEqualLength(t *testing.T) {
	genesis := blk("genesis", "genesis", 0, "a")
	f := NewForest(genesis, 10)

	f.Extend(blk("h1", "genesis", 1, "a"))
	f.Extend(blk("h2a", "h1", 2, "a"))
	assert.Equal(t, model.BlockHash("h2a"), f.BestTip().StateHash)

	// a second fork off h1 at the same length, with a higher VRF output,
	// should overtake the best tip.
	f.Extend(blk("h2b", "h1", 2, "z"))
	assert.Equal(t, model.BlockHash("h2b"), f.BestTip().StateHash)
}

func TestPrune_DropsBeyondTransitionFrontier(t *testing.T) {
	genesis := blk("genesis", "genesis", 0, "a")
	f := NewForest(genesis, 2) // K=2, reroot once height > K+1 = 3

	f.Extend(blk("h1", "genesis", 1, "a"))
	f.Extend(blk("h2", "h1", 2, "a"))
	f.Extend(blk("h3", "h2", 3, "a"))
	f.Extend(blk("h4", "h3", 4, "a"))

	// root should have moved forward; genesis should no longer be
	// reachable as the root.
	_, rootBlock := f.RootBranch.Root()
	assert.NotEqual(t, model.BlockHash("genesis"), rootBlock.StateHash)
}

func TestExtend_ReorgCallbackFiresOnBestTipChange(t *testing.T) {
	genesis := blk("genesis", "genesis", 0, "a")
	f := NewForest(genesis, 10)

	var calls int
	f.OnReorg = func(old, new *model.Block) { calls++ }

	f.Extend(blk("h1", "genesis", 1, "a"))
	assert.Equal(t, 1, calls)

	f.Extend(blk("h2a", "h1", 2, "a"))
	assert.Equal(t, 2, calls)

	// a sibling at the same height that doesn't outrank current best tip
	// should not move the tip or fire the callback.
	f.Extend(blk("h2b", "h1", 2, "0"))
	assert.Equal(t, 2, calls)
}

func TestBestChain_ReturnsAscendingRootToTipPath(t *testing.T) {
	genesis := blk("genesis", "genesis", 0, "a")
	f := NewForest(genesis, 10)
	f.Extend(blk("h1", "genesis", 1, "a"))
	f.Extend(blk("h2", "h1", 2, "a"))

	chain := f.BestChain()
	require.Len(t, chain, 3)
	assert.Equal(t, model.BlockHash("genesis"), chain[0].StateHash)
	assert.Equal(t, model.BlockHash("h1"), chain[1].StateHash)
	assert.Equal(t, model.BlockHash("h2"), chain[2].StateHash)
	assert.Equal(t, model.Height(0), chain[0].Height)
	assert.Equal(t, model.Height(2), chain[2].Height)
}
