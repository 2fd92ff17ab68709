// Package store implements C7 (Persistent Indexer Store): a durable
// column-family key/value store with typed namespaces and range
// iterators (spec.md §4.4), backed by badger/v4. Badger has no native
// concept of a column family, so each CF is emulated as a namespace
// prefix within one database — the pattern this core's badger usage is
// grounded on (see DESIGN.md).
package store

import (
	"encoding/binary"

	"github.com/blockforge/mina-indexer-core/model"
)

// cf is a column-family namespace prefix. Keeping it a single byte
// keeps every composite key's big-endian integer fields aligned on
// predictable offsets.
type cf byte

const (
	cfBlocks cf = iota
	cfBlocksByHeight
	cfBlocksBySlot
	cfBlockParent
	cfBlockHeight
	cfBlockGlobalSlot
	cfBlockEpoch
	cfBlockGenesisHash
	cfBlocksAtLength
	cfBlocksAtSlot
	cfAccounts
	cfAccountsBalanceSort
	cfAccountDelegations
	cfCanonicity
	cfUserCommandsByHash
	cfUserCommandsBySlot
	cfTxnFrom
	cfTxnTo
	cfInternalCommands
	cfInternalCommandsBySlot
	cfCounterUserCmdsEpoch
	cfCounterUserCmdsPkEpoch
	cfCounterUserCmdsPkTotal
	cfEvents
	cfMeta
)

// metaGenesisSeeded marks that the genesis ledger has already been
// loaded into the accounts column family, so a restart against an
// existing database never re-seeds (and can't clobber balances the
// block-driven diffs have since moved away from genesis).
const metaGenesisSeeded = "genesis_seeded"

func keyMeta(name string) []byte {
	return key(cfMeta, []byte(name))
}

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func be64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func key(c cf, rest ...[]byte) []byte {
	return concat(append([][]byte{{byte(c)}}, rest...)...)
}

// --- per-CF key builders, named after spec.md §4.4's table. ---

func keyBlocks(hash model.BlockHash) []byte {
	return key(cfBlocks, []byte(hash))
}

func keyBlocksByHeight(h model.Height, hash model.BlockHash) []byte {
	return key(cfBlocksByHeight, be32(uint32(h)), []byte(hash))
}

func keyBlocksBySlot(s model.Slot, hash model.BlockHash) []byte {
	return key(cfBlocksBySlot, be32(uint32(s)), []byte(hash))
}

func keyBlockParent(hash model.BlockHash) []byte {
	return key(cfBlockParent, []byte(hash))
}

func keyBlockHeight(hash model.BlockHash) []byte {
	return key(cfBlockHeight, []byte(hash))
}

func keyBlockGlobalSlot(hash model.BlockHash) []byte {
	return key(cfBlockGlobalSlot, []byte(hash))
}

func keyBlockEpoch(hash model.BlockHash) []byte {
	return key(cfBlockEpoch, []byte(hash))
}

func keyBlockGenesisHash(hash model.BlockHash) []byte {
	return key(cfBlockGenesisHash, []byte(hash))
}

func keyBlocksAtLength(h model.Height) []byte {
	return key(cfBlocksAtLength, be32(uint32(h)))
}

func keyBlocksAtSlot(s model.Slot) []byte {
	return key(cfBlocksAtSlot, be32(uint32(s)))
}

func keyAccounts(pk model.PublicKey) []byte {
	return key(cfAccounts, []byte(pk))
}

func keyAccountsBalanceSort(balance model.Amount, pk model.PublicKey) []byte {
	return key(cfAccountsBalanceSort, be64(uint64(balance)), []byte(pk))
}

func keyAccountDelegations(pk model.PublicKey, idx uint32) []byte {
	return key(cfAccountDelegations, []byte(pk), be32(idx))
}

func keyCanonicity(h model.Height) []byte {
	return key(cfCanonicity, be32(uint32(h)))
}

func keyUserCommandsByHash(txnHash string) []byte {
	return key(cfUserCommandsByHash, []byte(txnHash))
}

func keyUserCommandsBySlot(slot model.Slot, txnHash string) []byte {
	return key(cfUserCommandsBySlot, be32(uint32(slot)), []byte(txnHash))
}

func keyTxnFrom(pk model.PublicKey, slot model.Slot, txnHash string) []byte {
	return key(cfTxnFrom, []byte(pk), be32(uint32(slot)), []byte(txnHash))
}

func keyTxnTo(pk model.PublicKey, slot model.Slot, txnHash string) []byte {
	return key(cfTxnTo, []byte(pk), be32(uint32(slot)), []byte(txnHash))
}

func keyInternalCommands(hash model.BlockHash) []byte {
	return key(cfInternalCommands, []byte(hash))
}

func keyInternalCommandsBySlot(slot model.Slot, hash model.BlockHash, idx uint64) []byte {
	return key(cfInternalCommandsBySlot, be32(uint32(slot)), []byte(hash), be64(idx))
}

func keyCounterUserCmdsEpoch(e model.Epoch) []byte {
	return key(cfCounterUserCmdsEpoch, be32(uint32(e)))
}

func keyCounterUserCmdsPkEpoch(e model.Epoch, pk model.PublicKey) []byte {
	return key(cfCounterUserCmdsPkEpoch, be32(uint32(e)), []byte(pk))
}

func keyCounterUserCmdsPkTotal(pk model.PublicKey) []byte {
	return key(cfCounterUserCmdsPkTotal, []byte(pk))
}

func keyEvents(seq uint64) []byte {
	return key(cfEvents, be64(seq))
}
