package store

import (
	"encoding/json"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/blockforge/mina-indexer-core/errors"
	"github.com/blockforge/mina-indexer-core/model"
	"github.com/blockforge/mina-indexer-core/util"
)

// Store is the badger-backed column-family store of spec.md §4.4. It is
// safe for concurrent readers and a single writer goroutine, matching
// badger's own single-writer MVCC transaction model.
type Store struct {
	db     *badger.DB
	path   string
	log    util.Logger
	seq    uint64 // events monotonic sequence, reset on reopen via scan
}

// Open opens (or creates) a store at path.
func Open(path string, log util.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "Cannot acquire directory lock") || strings.Contains(msg, "resource temporarily unavailable") {
			return nil, errors.Wrap(errors.ErrStorage, err, "store at %s is locked by another process", path)
		}
		return nil, errors.Wrap(errors.ErrStorage, err, "open store at %s", path)
	}
	s := &Store{db: db, path: path, log: log}
	// resume the events sequence after the highest key already stored.
	_ = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte{byte(cfEvents)}
		if it.Seek(append(append([]byte{}, prefix...), 0xFF)); it.ValidForPrefix(prefix) {
			for _, b := range it.Item().Key()[1:] {
				s.seq = s.seq<<8 | uint64(b)
			}
		}
		return nil
	})
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutBlock writes a decoded block and every secondary index spec.md
// §4.4 lists, in one atomic transaction ("adding a block writes ≥15
// column families in a single atomic write batch").
func (s *Store) PutBlock(b *model.PrecomputedBlock) error {
	return s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(b)
		if err != nil {
			return err
		}
		if err := txn.Set(keyBlocks(b.StateHash), data); err != nil {
			return err
		}
		if err := txn.Set(keyBlocksByHeight(b.BlockchainLength, b.StateHash), nil); err != nil {
			return err
		}
		if err := txn.Set(keyBlocksBySlot(b.GlobalSlotSinceGenesis, b.StateHash), nil); err != nil {
			return err
		}
		if err := txn.Set(keyBlockParent(b.StateHash), []byte(b.PreviousStateHash)); err != nil {
			return err
		}
		if err := txn.Set(keyBlockHeight(b.StateHash), be32(uint32(b.BlockchainLength))); err != nil {
			return err
		}
		if err := txn.Set(keyBlockGlobalSlot(b.StateHash), be32(uint32(b.GlobalSlotSinceGenesis))); err != nil {
			return err
		}
		if err := txn.Set(keyBlockEpoch(b.StateHash), be32(uint32(b.EpochCount))); err != nil {
			return err
		}
		if err := txn.Set(keyBlockGenesisHash(b.StateHash), []byte(b.GenesisStateHash)); err != nil {
			return err
		}
		if err := appendToList(txn, keyBlocksAtLength(b.BlockchainLength), string(b.StateHash)); err != nil {
			return err
		}
		if err := appendToList(txn, keyBlocksAtSlot(b.GlobalSlotSinceGenesis), string(b.StateHash)); err != nil {
			return err
		}

		for idx, ic := range b.InternalCommandBalances {
			icData, err := json.Marshal(ic)
			if err != nil {
				return err
			}
			if err := txn.Set(keyInternalCommandsBySlot(b.GlobalSlotSinceGenesis, b.StateHash, uint64(idx)), icData); err != nil {
				return err
			}
		}
		icsData, err := json.Marshal(b.InternalCommandBalances)
		if err != nil {
			return err
		}
		if err := txn.Set(keyInternalCommands(b.StateHash), icsData); err != nil {
			return err
		}

		for _, cmd := range b.Commands {
			scd := model.SignedCommandWithData{
				Command:    cmd,
				StateHash:  b.StateHash,
				Height:     b.BlockchainLength,
				GlobalSlot: b.GlobalSlotSinceGenesis,
			}
			data, err := json.Marshal(scd)
			if err != nil {
				return err
			}
			if err := txn.Set(keyUserCommandsBySlot(b.GlobalSlotSinceGenesis, cmd.Hash), data); err != nil {
				return err
			}
			if err := txn.Set(keyUserCommandsByHash(cmd.Hash), be32(uint32(b.GlobalSlotSinceGenesis))); err != nil {
				return err
			}
			if err := txn.Set(keyTxnFrom(cmd.Sender, b.GlobalSlotSinceGenesis, cmd.Hash), be64(uint64(cmd.Amount))); err != nil {
				return err
			}
			if err := txn.Set(keyTxnTo(cmd.Receiver, b.GlobalSlotSinceGenesis, cmd.Hash), be64(uint64(cmd.Amount))); err != nil {
				return err
			}
			if err := bumpCounter(txn, keyCounterUserCmdsEpoch(model.EpochOf(b.GlobalSlotSinceGenesis))); err != nil {
				return err
			}
			if err := bumpCounter(txn, keyCounterUserCmdsPkEpoch(model.EpochOf(b.GlobalSlotSinceGenesis), cmd.Sender)); err != nil {
				return err
			}
			if err := bumpCounter(txn, keyCounterUserCmdsPkTotal(cmd.Sender)); err != nil {
				return err
			}
		}

		return nil
	})
}

// GetBlock reads a block back by state hash.
func (s *Store) GetBlock(hash model.BlockHash) (*model.PrecomputedBlock, error) {
	var out model.PrecomputedBlock
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyBlocks(hash))
		if err == badger.ErrKeyNotFound {
			return errors.NewNotFoundError("block %s", hash)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// BlocksAtHeight returns every state hash recorded at a height.
func (s *Store) BlocksAtHeight(h model.Height) ([]model.BlockHash, error) {
	return s.readList(keyBlocksAtLength(h))
}

// BlocksAtSlot returns every state hash recorded at a global slot.
func (s *Store) BlocksAtSlot(slot model.Slot) ([]model.BlockHash, error) {
	return s.readList(keyBlocksAtSlot(slot))
}

func (s *Store) readList(k []byte) ([]model.BlockHash, error) {
	var hashes []model.BlockHash
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				return nil
			}
			for _, h := range strings.Split(string(val), ",") {
				hashes = append(hashes, model.BlockHash(h))
			}
			return nil
		})
	})
	return hashes, err
}

func appendToList(txn *badger.Txn, k []byte, value string) error {
	existing := ""
	item, err := txn.Get(k)
	if err == nil {
		err = item.Value(func(val []byte) error {
			existing = string(val)
			return nil
		})
		if err != nil {
			return err
		}
	} else if err != badger.ErrKeyNotFound {
		return err
	}
	if existing == "" {
		return txn.Set(k, []byte(value))
	}
	return txn.Set(k, []byte(existing+","+value))
}

func bumpCounter(txn *badger.Txn, k []byte) error {
	var cur uint32
	item, err := txn.Get(k)
	if err == nil {
		err = item.Value(func(val []byte) error {
			if len(val) == 4 {
				cur = beToU32(val)
			}
			return nil
		})
		if err != nil {
			return err
		}
	} else if err != badger.ErrKeyNotFound {
		return err
	}
	return txn.Set(k, be32(cur+1))
}

func beToU32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// PutCanonicity records the canonical state hash at a height (spec.md
// §4.4 canonicity CF).
func (s *Store) PutCanonicity(h model.Height, hash model.BlockHash) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyCanonicity(h), []byte(hash))
	})
}

// Canonical returns the canonical state hash recorded at a height.
func (s *Store) Canonical(h model.Height) (model.BlockHash, error) {
	var hash model.BlockHash
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyCanonicity(h))
		if err == badger.ErrKeyNotFound {
			return errors.NewNotFoundError("no canonical block recorded at height %d", h)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			hash = model.BlockHash(val)
			return nil
		})
	})
	return hash, err
}

// CanonicalChainIterator walks the canonicity column family over
// [from, to] in ascending height order (spec.md §6.4
// Reader.CanonicalChainIterator).
func (s *Store) CanonicalChainIterator(from, to model.Height) (Iterator[model.CanonicityEntry], error) {
	var out []model.CanonicityEntry
	err := s.db.View(func(txn *badger.Txn) error {
		for h := from; h <= to; h++ {
			item, err := txn.Get(keyCanonicity(h))
			if err == badger.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			var hash model.BlockHash
			if err := item.Value(func(val []byte) error {
				hash = model.BlockHash(val)
				return nil
			}); err != nil {
				return err
			}
			out = append(out, model.CanonicityEntry{Height: h, StateHash: hash, Canonical: true, WasCanonical: true})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newSliceIterator(out), nil
}

// AppendEvent persists an event record under the next monotonic
// sequence number (spec.md §4.4 events CF).
func (s *Store) AppendEvent(data []byte) (uint64, error) {
	var seq uint64
	err := s.db.Update(func(txn *badger.Txn) error {
		s.seq++
		seq = s.seq
		return txn.Set(keyEvents(seq), data)
	})
	return seq, err
}

// Path returns the store's on-disk directory, used by the checkpoint
// helper and diagnostics.
func (s *Store) Path() string { return s.path }

// raw exposes the underlying badger handle to other files in this
// package without re-opening it.
func (s *Store) raw() *badger.DB { return s.db }
