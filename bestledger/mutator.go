// Package bestledger implements C9 (Best-Ledger Mutator): applying and
// unapplying account diffs against an in-memory view of the best-ledger
// column family (spec.md §4.3). The store package wraps this with the
// persisted column family and its balance-sorted secondary index.
package bestledger

import (
	"github.com/blockforge/mina-indexer-core/errors"
	"github.com/blockforge/mina-indexer-core/model"
)

// AccountCreationFee is the one-time fee charged against an account's
// balance the first time it is created by a CreateAccount diff
// (spec.md §4.3).
const AccountCreationFee model.Amount = 1_000_000_000

// Accounts is the minimal storage contract the mutator needs: get the
// current account (nil if absent), and write it back. Implementations
// are expected to be backed by the store package's accounts column
// family; a plain map suffices for tests.
type Accounts interface {
	Get(pk model.PublicKey) (*model.Account, bool)
	Put(acct *model.Account)
	Delete(pk model.PublicKey)
}

// MapAccounts is a trivial in-memory Accounts, useful for tests and for
// building a block's diffs before a batched store write.
type MapAccounts map[model.PublicKey]*model.Account

func (m MapAccounts) Get(pk model.PublicKey) (*model.Account, bool) {
	a, ok := m[pk]
	return a, ok
}

func (m MapAccounts) Put(a *model.Account) { m[a.PublicKey] = a }

func (m MapAccounts) Delete(pk model.PublicKey) { delete(m, pk) }

func getOrCreate(accts Accounts, pk model.PublicKey) *model.Account {
	if a, ok := accts.Get(pk); ok {
		return a
	}
	return model.NewAccount(pk)
}

// Apply applies every diff in order, per spec.md §4.3's Apply rules.
// CreateAccount diffs are tracked and their one-time fee is charged
// after the rest of the block's diffs have applied, matching "after all
// diffs of the block apply, subtract one account-creation fee".
func Apply(accts Accounts, diffs []model.AccountDiff) error {
	created := map[model.PublicKey]bool{}

	for i := range diffs {
		d := diffs[i]
		switch d.Kind {
		case model.DiffPayment, model.DiffFeeTransfer, model.DiffFeeTransferViaCoinbase:
			a := getOrCreate(accts, d.PublicKey)
			if d.Direction == model.Credit {
				a.Balance = a.Balance.Add(d.Amount)
			} else {
				bal, ok := a.Balance.Sub(d.Amount)
				if !ok {
					return errors.New(errors.ErrNegativeBalance, "%s: balance %d cannot cover debit %d", d.PublicKey, a.Balance, d.Amount)
				}
				a.Balance = bal
				a.Nonce = ptrNonce(model.Next(a.Nonce, valueOrZero(d.Nonce)))
			}
			accts.Put(a)

		case model.DiffCoinbase:
			a := getOrCreate(accts, d.PublicKey)
			a.Balance = a.Balance.Add(d.Amount)
			accts.Put(a)

		case model.DiffCreateAccount:
			a := getOrCreate(accts, d.PublicKey)
			accts.Put(a)
			created[d.PublicKey] = true

		case model.DiffDelegation:
			a := getOrCreate(accts, d.PublicKey)
			diffs[i].PrevDelegate = a.Delegate
			a.Delegate = d.Delegate
			a.Nonce = ptrNonce(model.Next(a.Nonce, valueOrZero(d.Nonce)))
			accts.Put(a)

		case model.DiffFailedTransactionNonce:
			a := getOrCreate(accts, d.PublicKey)
			a.Nonce = ptrNonce(model.Next(a.Nonce, valueOrZero(d.Nonce)))
			accts.Put(a)
		}
	}

	for pk := range created {
		a, ok := accts.Get(pk)
		if !ok {
			continue
		}
		bal, ok := a.Balance.Sub(AccountCreationFee)
		if !ok {
			return errors.New(errors.ErrNegativeBalance, "%s: balance %d cannot cover creation fee %d", pk, a.Balance, AccountCreationFee)
		}
		a.Balance = bal
		accts.Put(a)
	}

	return nil
}

// Unapply reverses diffs in reverse order, each via its explicit
// inverse (spec.md §4.3 Unapply). Each diff's Nonce field already holds
// the pre-apply nonce the account had before Apply advanced it, so
// restoring it is a direct assignment, not a decrement; a pre-apply
// nonce of 0 marks the account's first send and restores to nil.
func Unapply(accts Accounts, diffs []model.AccountDiff) error {
	// The creation fee was deducted as a phase after every diff applied
	// (Apply's second loop), so its inverse must run before undoing the
	// rest of the block's balance effects, or a just-created account's
	// balance would go negative mid-walk.
	for _, d := range diffs {
		if d.Kind != model.DiffCreateAccount {
			continue
		}
		if a, ok := accts.Get(d.PublicKey); ok {
			a.Balance = a.Balance.Add(AccountCreationFee)
			accts.Put(a)
		}
	}

	for i := len(diffs) - 1; i >= 0; i-- {
		d := diffs[i]
		switch d.Kind {
		case model.DiffPayment, model.DiffFeeTransfer, model.DiffFeeTransferViaCoinbase:
			a, ok := accts.Get(d.PublicKey)
			if !ok {
				continue
			}
			if d.Direction == model.Credit {
				bal, ok := a.Balance.Sub(d.Amount)
				if !ok {
					return errors.New(errors.ErrNegativeBalance, "%s: cannot unwind credit of %d", d.PublicKey, d.Amount)
				}
				a.Balance = bal
			} else {
				a.Balance = a.Balance.Add(d.Amount)
				if d.Nonce != nil {
					// d.Nonce holds the pre-apply nonce the command carried
					// in, not a post-apply value, so unapply restores it
					// directly rather than stepping it back with model.Prev.
					a.Nonce = restoredNonce(*d.Nonce)
				}
			}
			accts.Put(a)

		case model.DiffCoinbase:
			a, ok := accts.Get(d.PublicKey)
			if !ok {
				continue
			}
			bal, ok := a.Balance.Sub(d.Amount)
			if !ok {
				return errors.New(errors.ErrNegativeBalance, "%s: cannot unwind coinbase of %d", d.PublicKey, d.Amount)
			}
			a.Balance = bal
			accts.Put(a)

		case model.DiffCreateAccount:
			accts.Delete(d.PublicKey)

		case model.DiffDelegation:
			a, ok := accts.Get(d.PublicKey)
			if !ok {
				continue
			}
			a.Delegate = d.PrevDelegate
			if d.Nonce != nil {
				a.Nonce = restoredNonce(*d.Nonce)
			}
			accts.Put(a)

		case model.DiffFailedTransactionNonce:
			a, ok := accts.Get(d.PublicKey)
			if !ok {
				continue
			}
			if d.Nonce != nil {
				a.Nonce = restoredNonce(*d.Nonce)
			}
			accts.Put(a)
		}
	}

	return nil
}

// restoredNonce is the account nonce left after unwinding a command
// signed with n: nil when n is 0 (the account had never sent), else n.
func restoredNonce(n model.Nonce) *model.Nonce {
	if n == 0 {
		return nil
	}
	return &n
}

func ptrNonce(n model.Nonce) *model.Nonce { return &n }

func valueOrZero(n *model.Nonce) model.Nonce {
	if n == nil {
		return 0
	}
	return *n
}
