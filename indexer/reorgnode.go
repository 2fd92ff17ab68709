package indexer

import (
	"github.com/blockforge/mina-indexer-core/branch"
	"github.com/blockforge/mina-indexer-core/model"
	"github.com/blockforge/mina-indexer-core/reorg"
)

// reorgNode adapts the root branch plus the indexer's diff cache to
// reorg.Node, so branch.Forest's OnReorg callback can hand Walk a path
// that knows both its shape (via the branch) and its ledger effect
// (via the cached per-block LedgerDiff).
type reorgNode struct {
	block  *model.Block
	branch *branch.Branch
	diffs  *diffCache
}

func (n *reorgNode) StateHash() model.BlockHash { return n.block.StateHash }

func (n *reorgNode) Height() model.Height { return model.Height(n.block.BlockchainLength) }

func (n *reorgNode) Diff() *model.LedgerDiff { return n.diffs.get(n.block.StateHash) }

func (n *reorgNode) Parent() (reorg.Node, bool) {
	parent, ok := n.branch.ParentBlock(n.block.StateHash)
	if !ok {
		return nil, false
	}
	return &reorgNode{block: parent, branch: n.branch, diffs: n.diffs}, true
}
