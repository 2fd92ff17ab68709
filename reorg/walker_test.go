package reorg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockforge/mina-indexer-core/model"
)

// fakeNode is a plain linked-list stand-in for branch.Branch, just
// enough to exercise Walk's LCA algorithm in isolation.
type fakeNode struct {
	hash   model.BlockHash
	height model.Height
	diff   *model.LedgerDiff
	parent *fakeNode
}

func (n *fakeNode) StateHash() model.BlockHash  { return n.hash }
func (n *fakeNode) Height() model.Height        { return n.height }
func (n *fakeNode) Diff() *model.LedgerDiff     { return n.diff }
func (n *fakeNode) Parent() (Node, bool) {
	if n.parent == nil {
		return nil, false
	}
	return n.parent, true
}

func diffFor(hash model.BlockHash) *model.LedgerDiff {
	return &model.LedgerDiff{StateHash: hash}
}

// TestWalk_ReorgAcrossLCA reproduces spec.md §8 scenario (3): old tip
// B5a above LCA B3, new tip B6b branching from B3.
//
//	B3 -> B4a -> B5a   (old chain)
//	B3 -> B4b -> B5b -> B6b   (new chain)
func TestWalk_ReorgAcrossLCA(t *testing.T) {
	b3 := &fakeNode{hash: "B3", height: 3, diff: diffFor("B3")}
	b4a := &fakeNode{hash: "B4a", height: 4, diff: diffFor("B4a"), parent: b3}
	b5a := &fakeNode{hash: "B5a", height: 5, diff: diffFor("B5a"), parent: b4a}

	b4b := &fakeNode{hash: "B4b", height: 4, diff: diffFor("B4b"), parent: b3}
	b5b := &fakeNode{hash: "B5b", height: 5, diff: diffFor("B5b"), parent: b4b}
	b6b := &fakeNode{hash: "B6b", height: 6, diff: diffFor("B6b"), parent: b5b}

	result := Walk(b5a, b6b)

	require.Len(t, result.Unapply, 2)
	assert.Equal(t, model.BlockHash("B5a"), result.Unapply[0].StateHash)
	assert.Equal(t, model.BlockHash("B4a"), result.Unapply[1].StateHash)

	require.Len(t, result.Apply, 3)
	assert.Equal(t, model.BlockHash("B4b"), result.Apply[0].StateHash)
	assert.Equal(t, model.BlockHash("B5b"), result.Apply[1].StateHash)
	assert.Equal(t, model.BlockHash("B6b"), result.Apply[2].StateHash)
}

func TestWalk_SameTipReturnsEmptyResult(t *testing.T) {
	b1 := &fakeNode{hash: "B1", height: 1, diff: diffFor("B1")}
	result := Walk(b1, b1)
	assert.Empty(t, result.Unapply)
	assert.Empty(t, result.Apply)
}

func TestWalk_LinearExtensionOnlyApplies(t *testing.T) {
	b1 := &fakeNode{hash: "B1", height: 1, diff: diffFor("B1")}
	b2 := &fakeNode{hash: "B2", height: 2, diff: diffFor("B2"), parent: b1}

	result := Walk(b1, b2)
	assert.Empty(t, result.Unapply)
	require.Len(t, result.Apply, 1)
	assert.Equal(t, model.BlockHash("B2"), result.Apply[0].StateHash)
}
