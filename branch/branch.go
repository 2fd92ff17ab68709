// Package branch implements C5 (Branch Forest & Extension Engine):
// the rooted canonical tree plus zero or more dangling trees, the
// seven-outcome extension decision procedure, best-tip selection, and
// transition-frontier pruning (spec.md §4.2).
//
// Nodes are arena-allocated: a Branch holds a slice of nodes addressed
// by NodeID (a plain int index), not a pointer/Rc graph. This mirrors
// Design Notes §9's preference for arena indices over a linked
// pointer tree, which keeps pruning a matter of discarding indices
// rather than chasing reference counts.
package branch

import "github.com/blockforge/mina-indexer-core/model"

// NodeID indexes into a Branch's arena. Ids are handed out from 0 in
// allocation order, so 0 is the branch's first node (its original
// root); use -1 (noParent) to mean "no parent".
type NodeID int

const noParent NodeID = -1

// node is one arena slot. A pruned/removed node has block == nil; its
// slot is never reused, so stale NodeIDs fail cleanly rather than
// aliasing an unrelated node.
type node struct {
	block    *model.Block
	parent   NodeID
	children []NodeID
	height   model.Height // height within this branch, root normalized to 0
}

// Branch is a tree of Block nodes with a single root, per spec.md §3's
// Branch invariants: parent_hash chains match, height increases by
// exactly 1 per edge, root height is 0 within the branch.
type Branch struct {
	arena   []node
	root    NodeID
	byHash  map[model.BlockHash]NodeID
	bestTip NodeID
}

// newBranch allocates a branch rooted at block.
func newBranch(block *model.Block) *Branch {
	b := &Branch{byHash: map[model.BlockHash]NodeID{}}
	id := b.alloc(block, noParent, 0)
	b.root = id
	b.bestTip = id
	return b
}

func (b *Branch) alloc(block *model.Block, parent NodeID, height model.Height) NodeID {
	id := NodeID(len(b.arena))
	b.arena = append(b.arena, node{block: block, parent: parent, height: height})
	if parent != noParent {
		b.arena[parent].children = append(b.arena[parent].children, id)
	}
	b.byHash[block.StateHash] = id
	return id
}

// Contains reports whether hash names a live node in this branch.
func (b *Branch) Contains(hash model.BlockHash) bool {
	id, ok := b.byHash[hash]
	return ok && b.arena[id].block != nil
}

func (b *Branch) idOf(hash model.BlockHash) (NodeID, bool) {
	id, ok := b.byHash[hash]
	if !ok || b.arena[id].block == nil {
		return 0, false
	}
	return id, true
}

// Block returns the block stored at id.
func (b *Branch) Block(id NodeID) *model.Block { return b.arena[id].block }

// ParentBlock returns the block parented by hash within this branch, if
// hash names a live node with a parent (i.e. is not this branch's
// root). Used by the reorg walker to step up the tree by hash rather
// than by NodeID.
func (b *Branch) ParentBlock(hash model.BlockHash) (*model.Block, bool) {
	id, ok := b.idOf(hash)
	if !ok {
		return nil, false
	}
	parentID := b.arena[id].parent
	if parentID == noParent {
		return nil, false
	}
	return b.arena[parentID].block, true
}

// Root returns the branch's root node id and block.
func (b *Branch) Root() (NodeID, *model.Block) { return b.root, b.arena[b.root].block }

// BestTip returns the current best leaf under the total order.
func (b *Branch) BestTip() (NodeID, *model.Block) { return b.bestTip, b.arena[b.bestTip].block }

// attach appends a child block under parentID, updating best tip if the
// new leaf outranks the current one under the block total order
// (spec.md §4.2 "Best-tip selection").
func (b *Branch) attach(parentID NodeID, block *model.Block) NodeID {
	height := b.arena[parentID].height + 1
	id := b.alloc(block, parentID, height)
	if block.Better(b.arena[b.bestTip].block) {
		b.bestTip = id
	}
	return id
}

// leaves returns every node id with no children.
func (b *Branch) leaves() []NodeID {
	var out []NodeID
	for i := range b.arena {
		if b.arena[i].block != nil && len(b.arena[i].children) == 0 {
			out = append(out, NodeID(i))
		}
	}
	return out
}

// recomputeBestTip scans all leaves and sets bestTip to the maximum
// under the total order. Used after a splice changes the leaf set.
func (b *Branch) recomputeBestTip() {
	best := b.root
	for _, id := range b.leaves() {
		if b.arena[id].block.Better(b.arena[best].block) {
			best = id
		}
	}
	b.bestTip = best
}

// adoptNewRoot reroots a dangling branch at a new block whose
// state_hash equals the current root's parent_hash (spec.md §4.2
// "dangling-simple-reverse"), raising every existing node's height by
// 1.
func (b *Branch) adoptNewRoot(block *model.Block) {
	oldRoot := b.root
	newID := NodeID(len(b.arena))
	b.arena = append(b.arena, node{block: block, parent: noParent, height: 0, children: []NodeID{oldRoot}})
	b.byHash[block.StateHash] = newID
	b.arena[oldRoot].parent = newID
	b.root = newID
	b.reheight(oldRoot, 1)
}

func (b *Branch) reheight(id NodeID, height model.Height) {
	b.arena[id].height = height
	for _, c := range b.arena[id].children {
		b.reheight(c, height+1)
	}
}

// spliceUnder grafts other's entire tree as a new child subtree of
// parentID within b, recomputing heights (spec.md §4.2 "root-complex" /
// "dangling-complex"). Returns the id of other's root within b's arena.
func (b *Branch) spliceUnder(parentID NodeID, other *Branch) NodeID {
	remap := make(map[NodeID]NodeID, len(other.arena))
	var walk func(NodeID, NodeID, model.Height)
	walk = func(oid, newParent NodeID, height model.Height) {
		n := other.arena[oid]
		if n.block == nil {
			return
		}
		nid := b.alloc(n.block, newParent, height)
		remap[oid] = nid
		for _, c := range n.children {
			walk(c, nid, height+1)
		}
	}
	walk(other.root, parentID, b.arena[parentID].height+1)
	b.recomputeBestTip()
	return remap[other.root]
}

// pathToRoot returns the chain of node ids from id up to (and
// including) the branch root, closest-first.
func (b *Branch) pathToRoot(id NodeID) []NodeID {
	var path []NodeID
	for id != noParent {
		path = append(path, id)
		id = b.arena[id].parent
	}
	return path
}

// height returns id's height within the branch.
func (b *Branch) height(id NodeID) model.Height { return b.arena[id].height }

// BestChain returns the root-to-best-tip path as an ascending-height
// slice of summaries, an O(depth) walk of pathToRoot rather than an
// O(depth^2) re-derivation from the whole tree on every call (spec.md's
// original_source canonical_chain_iterator materializes this same path
// eagerly for the same reason).
func (b *Branch) BestChain() []model.BlockSummary {
	path := b.pathToRoot(b.bestTip) // best-tip first, root last
	out := make([]model.BlockSummary, len(path))
	for i, id := range path {
		blk := b.arena[id].block
		out[len(path)-1-i] = model.BlockSummary{
			StateHash:  blk.StateHash,
			ParentHash: blk.ParentHash,
			Height:     blk.BlockchainLength,
			Slot:       blk.GlobalSlotSinceGenesis,
		}
	}
	return out
}

// rerootAt discards every node outside newRoot's subtree, making
// newRoot the branch's new root at height 0 (spec.md §4.2 "Pruning").
// onDiscard, if non-nil, is called once per discarded block so callers
// can evict any side-table keyed by state hash (e.g. a cached ledger
// diff).
func (b *Branch) rerootAt(newRoot NodeID, onDiscard func(model.BlockHash)) {
	keep := map[NodeID]bool{}
	var mark func(NodeID)
	mark = func(id NodeID) {
		keep[id] = true
		for _, c := range b.arena[id].children {
			mark(c)
		}
	}
	mark(newRoot)

	for i := range b.arena {
		id := NodeID(i)
		if !keep[id] {
			blk := b.arena[i].block
			if blk != nil {
				delete(b.byHash, blk.StateHash)
				if onDiscard != nil {
					onDiscard(blk.StateHash)
				}
			}
			b.arena[i] = node{}
		}
	}
	b.arena[newRoot].parent = noParent
	b.root = newRoot
	b.reheight(newRoot, 0)
	b.recomputeBestTip()
}
