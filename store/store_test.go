package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockforge/mina-indexer-core/bestledger"
	"github.com/blockforge/mina-indexer-core/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetBlock(t *testing.T) {
	s := openTestStore(t)

	b := &model.PrecomputedBlock{
		StateHash:              "3Ntest",
		PreviousStateHash:      "3Nparent",
		GenesisStateHash:       model.MainnetGenesisHash,
		BlockchainLength:       42,
		GlobalSlotSinceGenesis: 100,
		Commands: []model.UserCommand{
			{Kind: model.CommandPayment, Status: model.CommandApplied, Hash: "txn1", Sender: "B62qA", Receiver: "B62qB", Amount: 10, Fee: 1, Nonce: 0},
		},
	}
	require.NoError(t, s.PutBlock(b))

	got, err := s.GetBlock("3Ntest")
	require.NoError(t, err)
	assert.Equal(t, b.BlockchainLength, got.BlockchainLength)
	assert.Equal(t, b.PreviousStateHash, got.PreviousStateHash)

	hashes, err := s.BlocksAtHeight(42)
	require.NoError(t, err)
	assert.Contains(t, hashes, model.BlockHash("3Ntest"))
}

func TestGetBlock_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetBlock("3Nmissing")
	assert.Error(t, err)
}

func TestCanonicity_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.PutCanonicity(5, "3Nwinner"))
	hash, err := s.Canonical(5)
	require.NoError(t, err)
	assert.Equal(t, model.BlockHash("3Nwinner"), hash)
}

func TestApplyLedgerDiffs_MaintainsBalanceSortIndex(t *testing.T) {
	s := openTestStore(t)

	err := s.ApplyLedgerDiffs(func(accts *TxnAccounts) error {
		nonce := model.Nonce(0)
		accts.Put(&model.Account{PublicKey: "B62qA", Balance: 1_000_000_000_000, Delegate: "B62qA"})
		diffs := []model.AccountDiff{
			model.Payment("B62qA", 1000, model.Debit, &nonce),
		}
		return bestledger.Apply(accts, diffs)
	})
	require.NoError(t, err)

	acct, err := s.GetAccount("B62qA")
	require.NoError(t, err)
	assert.Equal(t, model.Amount(1_000_000_000_000-1000), acct.Balance)

	top, err := s.TopAccountsByBalance(10)
	require.NoError(t, err)
	assert.Contains(t, top, model.PublicKey("B62qA"))
}

func TestCheckpoint_CreatesSnapshotFiles(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.PutCanonicity(1, "3Nx"))

	dst := t.TempDir() + "/snap"
	require.NoError(t, s.Checkpoint(dst))
}

func TestAccountBalanceIterator_DescendingOrder(t *testing.T) {
	s := openTestStore(t)
	err := s.ApplyLedgerDiffs(func(accts *TxnAccounts) error {
		accts.Put(&model.Account{PublicKey: "B62qLow", Balance: 100})
		accts.Put(&model.Account{PublicKey: "B62qHigh", Balance: 900})
		return nil
	})
	require.NoError(t, err)

	it, err := s.AccountBalanceIterator(true)
	require.NoError(t, err)

	var order []model.PublicKey
	for it.Next() {
		order = append(order, it.Value().PublicKey)
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []model.PublicKey{"B62qHigh", "B62qLow"}, order)
}

func TestSeedGenesisLedger_WritesAccountsOnce(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SeedGenesisLedger([]model.Account{
		{PublicKey: "B62qAlice", Balance: 1000, Delegate: "B62qAlice", GenesisAccount: true},
	}))

	acct, err := s.GetAccount("B62qAlice")
	require.NoError(t, err)
	assert.Equal(t, model.Amount(1000), acct.Balance)

	// A block-driven balance change must survive a second seed attempt
	// (simulating a restart against an already-seeded database).
	err = s.ApplyLedgerDiffs(func(accts *TxnAccounts) error {
		a, _ := accts.Get("B62qAlice")
		a.Balance = 1
		accts.Put(a)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, s.SeedGenesisLedger([]model.Account{
		{PublicKey: "B62qAlice", Balance: 1000, Delegate: "B62qAlice", GenesisAccount: true},
	}))

	acct, err = s.GetAccount("B62qAlice")
	require.NoError(t, err)
	assert.Equal(t, model.Amount(1), acct.Balance, "re-seeding an already-seeded store must not clobber a moved balance")
}

func TestGetAccountDelegations_ReplaysHistoryInSlotOrder(t *testing.T) {
	s := openTestStore(t)
	err := s.ApplyLedgerDiffs(func(accts *TxnAccounts) error {
		accts.PutDelegation("B62qDelegator", 100, "B62qValidatorA", 1)
		accts.PutDelegation("B62qDelegator", 200, "B62qValidatorB", 2)
		return nil
	})
	require.NoError(t, err)

	hist, err := s.GetAccountDelegations("B62qDelegator")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, model.PublicKey("B62qValidatorA"), hist[0].Delegate)
	assert.Equal(t, model.PublicKey("B62qValidatorB"), hist[1].Delegate)
}

func TestCanonicalChainIterator_ReturnsRange(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.PutCanonicity(1, "3Nfirst"))
	require.NoError(t, s.PutCanonicity(2, "3Nsecond"))
	require.NoError(t, s.PutCanonicity(5, "3Nfifth"))

	it, err := s.CanonicalChainIterator(1, 3)
	require.NoError(t, err)

	var hashes []model.BlockHash
	for it.Next() {
		hashes = append(hashes, it.Value().StateHash)
	}
	assert.Equal(t, []model.BlockHash{"3Nfirst", "3Nsecond"}, hashes)
}
