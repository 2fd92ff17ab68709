package store

import (
	"encoding/json"
	"sort"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/blockforge/mina-indexer-core/model"
)

// UserCommandsForPK returns every user command touching pk (as sender
// or receiver) whose containing block's global slot falls in [from,
// to], deduplicated and ordered by slot (spec.md §6.4
// Reader.UserCommandsForPK). It scans the txn_from/txn_to secondary
// indexes for the hash, then loads the full record from
// user_commands_by_slot.
func (s *Store) UserCommandsForPK(pk model.PublicKey, from, to model.Slot) ([]model.SignedCommandWithData, error) {
	type ref struct {
		slot model.Slot
		hash string
	}
	var refs []ref

	err := s.db.View(func(txn *badger.Txn) error {
		for _, prefixCF := range []cf{cfTxnFrom, cfTxnTo} {
			prefix := key(prefixCF, []byte(pk))
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			it := txn.NewIterator(opts)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				k := it.Item().KeyCopy(nil)
				rest := k[1+len(pk):] // skip cf byte + pk
				if len(rest) < 4 {
					continue
				}
				slot := model.Slot(beToU32(rest[:4]))
				hash := string(rest[4:])
				if slot < from || slot > to {
					continue
				}
				refs = append(refs, ref{slot: slot, hash: hash})
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []model.SignedCommandWithData
	err = s.db.View(func(txn *badger.Txn) error {
		for _, r := range refs {
			dedupeKey := r.hash
			if seen[dedupeKey] {
				continue
			}
			seen[dedupeKey] = true

			item, err := txn.Get(keyUserCommandsBySlot(r.slot, r.hash))
			if err == badger.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			var scd model.SignedCommandWithData
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &scd) }); err != nil {
				return err
			}
			out = append(out, scd)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GlobalSlot < out[j].GlobalSlot })
	return out, nil
}
