package indexer

import (
	"context"

	"github.com/blockforge/mina-indexer-core/model"
	"github.com/blockforge/mina-indexer-core/query"
	"github.com/blockforge/mina-indexer-core/reorg"
	"github.com/blockforge/mina-indexer-core/store"
)

var _ query.Reader = (*Indexer)(nil)

// GetBlock returns a block's tree-node projection plus a "confirmations"
// style depth (the best tip's height minus this block's height, floored
// at zero), matching spec.md §6.4's signature.
func (idx *Indexer) GetBlock(_ context.Context, hash model.BlockHash) (*model.Block, uint64, bool, error) {
	pb, err := idx.store.GetBlock(hash)
	if err != nil {
		return nil, 0, false, nil
	}
	blk := pb.ToBlock()

	best := idx.BestTip()
	var depth uint64
	if best != nil && best.BlockchainLength > blk.BlockchainLength {
		depth = uint64(best.BlockchainLength - blk.BlockchainLength)
	}
	return blk, depth, true, nil
}

// BestBlock returns the root branch's current best tip.
func (idx *Indexer) BestBlock(_ context.Context) (*model.Block, error) {
	if tip := idx.BestTip(); tip != nil {
		return tip, nil
	}
	return nil, nil
}

// BestLedger materializes every account the store currently holds.
// Meant for small test/demo ledgers; a production caller should prefer
// AccountBalanceIterator to avoid holding the whole map in memory.
func (idx *Indexer) BestLedger(ctx context.Context) (map[model.PublicKey]*model.Account, error) {
	it, err := idx.store.AccountBalanceIterator(false)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	out := map[model.PublicKey]*model.Account{}
	for it.Next() {
		a := it.Value()
		out[a.PublicKey] = a
	}
	return out, it.Err()
}

// GetAccount reads one account by public key.
func (idx *Indexer) GetAccount(_ context.Context, pk model.PublicKey) (*model.Account, bool, error) {
	acct, err := idx.store.GetAccount(pk)
	if err != nil {
		return nil, false, nil
	}
	return acct, true, nil
}

// BlocksAtHeight returns every recorded state hash at height h, sorted
// for deterministic output.
func (idx *Indexer) BlocksAtHeight(_ context.Context, h model.Height) ([]model.BlockHash, error) {
	hashes, err := idx.store.BlocksAtHeight(h)
	if err != nil {
		return nil, err
	}
	return sortHashes(hashes), nil
}

// BlocksAtSlot returns every recorded state hash at global slot s.
func (idx *Indexer) BlocksAtSlot(_ context.Context, s model.Slot) ([]model.BlockHash, error) {
	hashes, err := idx.store.BlocksAtSlot(s)
	if err != nil {
		return nil, err
	}
	return sortHashes(hashes), nil
}

// AccountBalanceIterator streams the best ledger in balance order.
func (idx *Indexer) AccountBalanceIterator(_ context.Context, descending bool) (store.Iterator[*model.Account], error) {
	return idx.store.AccountBalanceIterator(descending)
}

// CanonicalChainIterator streams canonicity verdicts over [from, to].
func (idx *Indexer) CanonicalChainIterator(_ context.Context, from, to model.Height) (store.Iterator[model.CanonicityEntry], error) {
	return idx.store.CanonicalChainIterator(from, to)
}

// UserCommandsForPK returns every user command touching pk within the
// given slot range.
func (idx *Indexer) UserCommandsForPK(_ context.Context, pk model.PublicKey, from, to model.Slot) ([]model.SignedCommandWithData, error) {
	return idx.store.UserCommandsForPK(pk, from, to)
}

// Reorg recomputes the (unapply, apply) diff sequence between two
// already-indexed blocks, without mutating any state — useful for a
// caller that wants to preview what a hypothetical reorg would do.
func (idx *Indexer) Reorg(_ context.Context, oldTip, newTip model.BlockHash) (reorg.Update, error) {
	oldPB, err := idx.store.GetBlock(oldTip)
	if err != nil {
		return reorg.Update{}, err
	}
	newPB, err := idx.store.GetBlock(newTip)
	if err != nil {
		return reorg.Update{}, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	root := idx.forest.RootBranch
	oldNode := &reorgNode{block: oldPB.ToBlock(), branch: root, diffs: idx.diffs}
	newNode := &reorgNode{block: newPB.ToBlock(), branch: root, diffs: idx.diffs}
	return reorg.Walk(oldNode, newNode), nil
}
