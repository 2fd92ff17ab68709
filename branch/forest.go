package branch

import "github.com/blockforge/mina-indexer-core/model"

// Outcome is one of the seven extension classifications of spec.md §1/§4.2.
type Outcome int

const (
	RootSimple Outcome = iota
	RootComplex
	DanglingSimpleForward
	DanglingSimpleReverse
	DanglingComplex
	DanglingNew
	Duplicate
)

func (o Outcome) String() string {
	switch o {
	case RootSimple:
		return "RootSimple"
	case RootComplex:
		return "RootComplex"
	case DanglingSimpleForward:
		return "DanglingSimpleForward"
	case DanglingSimpleReverse:
		return "DanglingSimpleReverse"
	case DanglingComplex:
		return "DanglingComplex"
	case DanglingNew:
		return "DanglingNew"
	case Duplicate:
		return "Duplicate"
	default:
		return "Unknown"
	}
}

// ReorgFunc is invoked whenever the root branch's best tip changes to a
// different block (spec.md §4.2 "A change of best tip triggers C8").
type ReorgFunc func(oldTip, newTip *model.Block)

// Forest is the rooted canonical tree plus zero or more dangling trees
// (spec.md §3 BranchForest). K is the transition-frontier confirmation
// depth used both by pruning here and by canonical chain discovery.
type Forest struct {
	RootBranch *Branch
	Dangling   []*Branch
	K          uint32
	OnReorg    ReorgFunc
	// OnPrune, if set, is called once per block discarded when the
	// transition frontier advances past it.
	OnPrune func(model.BlockHash)

	rootTip *model.Block
}

// NewForest creates a forest rooted at root (typically genesis, or a
// recovered canonical tip).
func NewForest(root *model.Block, k uint32) *Forest {
	rb := newBranch(root)
	return &Forest{RootBranch: rb, K: k, rootTip: root}
}

func (f *Forest) existsAnywhere(hash model.BlockHash) bool {
	if f.RootBranch != nil && f.RootBranch.Contains(hash) {
		return true
	}
	for _, db := range f.Dangling {
		if db.Contains(hash) {
			return true
		}
	}
	return false
}

// danglingRootsParentedBy returns the indices of dangling branches whose
// root's parent_hash equals hash, in ascending order; removeDangling
// deletes them back to front so the remaining indices stay valid.
func (f *Forest) danglingRootsParentedBy(hash model.BlockHash) []int {
	var idx []int
	for i, db := range f.Dangling {
		_, rootBlock := db.Root()
		if rootBlock.ParentHash == hash {
			idx = append(idx, i)
		}
	}
	return idx
}

func (f *Forest) removeDangling(indices []int) {
	for k := len(indices) - 1; k >= 0; k-- {
		i := indices[k]
		f.Dangling = append(f.Dangling[:i], f.Dangling[i+1:]...)
	}
}

// Extend classifies block as one of the seven outcomes and mutates the
// forest accordingly (spec.md §4.2). Either the whole extension
// succeeds or the forest is left untouched (Duplicate is a pure no-op).
func (f *Forest) Extend(block *model.Block) Outcome {
	if f.existsAnywhere(block.StateHash) {
		return Duplicate
	}

	// 1/2: root-simple, root-complex.
	if f.RootBranch != nil {
		if parentID, ok := f.RootBranch.idOf(block.ParentHash); ok {
			matches := f.danglingRootsParentedBy(block.StateHash)
			newID := f.RootBranch.attach(parentID, block)
			for _, i := range matches {
				f.RootBranch.spliceUnder(newID, f.Dangling[i])
			}
			f.removeDangling(matches)
			f.afterRootMutation()
			if len(matches) > 0 {
				return RootComplex
			}
			return RootSimple
		}
	}

	// 3: dangling-simple-forward.
	for i, db := range f.Dangling {
		if parentID, ok := db.idOf(block.ParentHash); ok {
			newID := db.attach(parentID, block)
			if f.spliceMatchingDangling(i, newID) {
				return DanglingComplex
			}
			return DanglingSimpleForward
		}
	}

	// 4: dangling-simple-reverse.
	for i, db := range f.Dangling {
		_, rootBlock := db.Root()
		if rootBlock.ParentHash == block.StateHash {
			db.adoptNewRoot(block)
			if f.spliceMatchingDangling(i, db.root) {
				return DanglingComplex
			}
			return DanglingSimpleReverse
		}
	}

	// 6: dangling-new.
	f.Dangling = append(f.Dangling, newBranch(block))
	return DanglingNew
}

// spliceMatchingDangling grafts every OTHER dangling branch whose root
// is parented by the block at attachID within branch f.Dangling[owner]
// under attachID, removing the merged branches (spec.md §4.2 "dangling-
// complex"). Returns whether any branch was spliced.
func (f *Forest) spliceMatchingDangling(owner int, attachID NodeID) bool {
	target := f.Dangling[owner]
	attachedHash := target.Block(attachID).StateHash

	var matches []int
	for i, db := range f.Dangling {
		if i == owner {
			continue
		}
		_, rootBlock := db.Root()
		if rootBlock.ParentHash == attachedHash {
			matches = append(matches, i)
		}
	}
	if len(matches) == 0 {
		return false
	}
	for _, i := range matches {
		target.spliceUnder(attachID, f.Dangling[i])
	}
	// remove merged indices, adjusting owner's index if it shifts.
	removeSet := map[int]bool{}
	for _, i := range matches {
		removeSet[i] = true
	}
	var kept []*Branch
	for i, db := range f.Dangling {
		if removeSet[i] {
			continue
		}
		kept = append(kept, db)
	}
	f.Dangling = kept
	return true
}

// afterRootMutation runs pruning and fires the reorg callback if the
// root branch's best tip changed (spec.md §4.2).
func (f *Forest) afterRootMutation() {
	f.prune()
	_, tip := f.RootBranch.BestTip()
	if tip.StateHash != f.rootTip.StateHash {
		old := f.rootTip
		f.rootTip = tip
		if f.OnReorg != nil {
			f.OnReorg(old, tip)
		}
	}
}

// prune drops everything outside the new root's subtree once the
// root-to-best-tip height exceeds K+1 (spec.md §4.2 "Pruning").
func (f *Forest) prune() {
	if f.RootBranch == nil {
		return
	}
	bestID, _ := f.RootBranch.BestTip()
	bestHeight := f.RootBranch.height(bestID)
	if uint32(bestHeight) <= f.K+1 {
		return
	}
	path := f.RootBranch.pathToRoot(bestID) // best-tip first, root last
	newRootIdx := int(f.K)
	if newRootIdx >= len(path) {
		return
	}
	f.RootBranch.rerootAt(path[newRootIdx], f.OnPrune)
}

// BestTip returns the root branch's current best tip, or nil if there
// is no root branch yet.
func (f *Forest) BestTip() *model.Block {
	if f.RootBranch == nil {
		return nil
	}
	_, tip := f.RootBranch.BestTip()
	return tip
}

// BestChain returns the root-to-best-tip path of the root branch. The
// path is not cached: each call derives it afresh by walking parent
// links from the best tip (see Branch.BestChain).
func (f *Forest) BestChain() []model.BlockSummary {
	if f.RootBranch == nil {
		return nil
	}
	return f.RootBranch.BestChain()
}
