// Package query defines the read-only surface over the indexer's state
// (spec.md §6.4). It exists as its own package so a future HTTP/GraphQL
// layer can depend on the interface without pulling in indexer's
// ingestion machinery.
package query

import (
	"context"

	"github.com/blockforge/mina-indexer-core/model"
	"github.com/blockforge/mina-indexer-core/reorg"
	"github.com/blockforge/mina-indexer-core/store"
)

// Reader is implemented by indexer.Indexer.
type Reader interface {
	GetBlock(ctx context.Context, hash model.BlockHash) (*model.Block, uint64, bool, error)
	BestBlock(ctx context.Context) (*model.Block, error)
	BestLedger(ctx context.Context) (map[model.PublicKey]*model.Account, error)
	GetAccount(ctx context.Context, pk model.PublicKey) (*model.Account, bool, error)
	BlocksAtHeight(ctx context.Context, h model.Height) ([]model.BlockHash, error)
	BlocksAtSlot(ctx context.Context, s model.Slot) ([]model.BlockHash, error)
	AccountBalanceIterator(ctx context.Context, descending bool) (store.Iterator[*model.Account], error)
	CanonicalChainIterator(ctx context.Context, from, to model.Height) (store.Iterator[model.CanonicityEntry], error)
	UserCommandsForPK(ctx context.Context, pk model.PublicKey, from, to model.Slot) ([]model.SignedCommandWithData, error)
	Reorg(ctx context.Context, oldTip, newTip model.BlockHash) (reorg.Update, error)
}
