package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockforge/mina-indexer-core/config"
	"github.com/blockforge/mina-indexer-core/model"
	"github.com/blockforge/mina-indexer-core/store"
)

const blockTemplate = `{
  "protocol_state": {
    "previous_state_hash": %q,
    "body": {
      "genesis_state_hash": "3NK4BpDSekaqsG6tx8Qu5YvsSxz5aR6zGK4",
      "consensus_state": {
        "blockchain_length": "%d",
        "global_slot_since_genesis": "%d",
        "epoch_count": "0",
        "last_vrf_output": %q,
        "coinbase_receiver": "B62qCoinbase",
        "supercharge_coinbase": false
      },
      "blockchain_state": { "timestamp": "1000000" }
    }
  },
  "staged_ledger_diff": { "diff": [{"commands": [], "internal_command_balances": [], "coinbase": "Zero"}, null] }
}`

// stateHash pads label into a 52-character, "3N"-prefixed state hash,
// the only shape blockfile.ParseFilename accepts in a block filename.
func stateHash(label string) string {
	return ("3N" + label + strings.Repeat("x", 52))[:52]
}

func writeBlock(t *testing.T, dir, network string, height int, hash, parentHash, vrf string) string {
	t.Helper()
	path := filepath.Join(dir, fmt.Sprintf("%s-%d-%s.json", network, height, hash))
	content := fmt.Sprintf(blockTemplate, parentHash, height, height*100, vrf)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const delegationBlockTemplate = `{
  "protocol_state": {
    "previous_state_hash": %q,
    "body": {
      "genesis_state_hash": "3NK4BpDSekaqsG6tx8Qu5YvsSxz5aR6zGK4",
      "consensus_state": {
        "blockchain_length": "%d",
        "global_slot_since_genesis": "%d",
        "epoch_count": "0",
        "last_vrf_output": %q,
        "coinbase_receiver": "B62qCoinbase",
        "supercharge_coinbase": false
      },
      "blockchain_state": { "timestamp": "1000000" }
    }
  },
  "staged_ledger_diff": { "diff": [{"commands": [
    {
      "data": ["Signed_command", {
        "payload": {
          "common": {"fee": "1000", "fee_payer_pk": "B62qDelegator", "nonce": "0"},
          "body": ["Stake_delegation", ["Set_delegate", {"delegator": "B62qDelegator", "new_delegate": "B62qNewDelegate"}]]
        }
      }],
      "status": ["Applied"]
    }
  ], "internal_command_balances": [], "coinbase": "Zero"}, null] }
}`

func writeDelegationBlock(t *testing.T, dir, network string, height int, hash, parentHash, vrf string) string {
	t.Helper()
	path := filepath.Join(dir, fmt.Sprintf("%s-%d-%s.json", network, height, hash))
	content := fmt.Sprintf(delegationBlockTemplate, parentHash, height, height*100, vrf)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestIndexer(t *testing.T) (*Indexer, string) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(dir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	genesis := &model.Block{StateHash: model.MainnetGenesisHash, BlockchainLength: 0}
	settings := &config.Settings{CanonicalThreshold: 10}
	idx := New(settings, st, nil, nil, genesis)
	return idx, dir
}

func TestIngestBlockFile_LinearChainUpdatesBestTip(t *testing.T) {
	idx, dir := newTestIndexer(t)

	p1 := writeBlock(t, dir, "mainnet", 1, stateHash("block1"), string(model.MainnetGenesisHash), "vrf1")
	require.NoError(t, idx.IngestBlockFile(p1))

	p2 := writeBlock(t, dir, "mainnet", 2, stateHash("block2"), stateHash("block1"), "vrf2")
	require.NoError(t, idx.IngestBlockFile(p2))

	best := idx.BestTip()
	require.NotNil(t, best)
	assert.Equal(t, model.BlockHash(stateHash("block2")), best.StateHash)
}

func TestIngestBlockFile_PersistsBlockForReader(t *testing.T) {
	idx, dir := newTestIndexer(t)

	p1 := writeBlock(t, dir, "mainnet", 1, stateHash("block1"), string(model.MainnetGenesisHash), "vrf1")
	require.NoError(t, idx.IngestBlockFile(p1))

	blk, _, ok, err := idx.GetBlock(nil, model.BlockHash(stateHash("block1")))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.Height(1), blk.BlockchainLength)
}

func TestIngestBlockFile_ReorgSwapsBestTip(t *testing.T) {
	idx, dir := newTestIndexer(t)

	p1 := writeBlock(t, dir, "mainnet", 1, stateHash("a"), string(model.MainnetGenesisHash), "aaaa")
	require.NoError(t, idx.IngestBlockFile(p1))

	// A competing fork at the same height with a lexicographically
	// larger VRF output overtakes the first block.
	p1b := writeBlock(t, dir, "mainnet", 1, stateHash("b"), string(model.MainnetGenesisHash), "zzzz")
	require.NoError(t, idx.IngestBlockFile(p1b))

	best := idx.BestTip()
	require.NotNil(t, best)
	assert.Equal(t, model.BlockHash(stateHash("b")), best.StateHash)

	updates := drainUpdates(idx)
	assert.NotEmpty(t, updates)
}

func TestScanStartupDir_IngestsCanonicalThenRecent(t *testing.T) {
	idx, dir := newTestIndexer(t)
	idx.settings.CanonicalThreshold = 1

	writeBlock(t, dir, "mainnet", 1, stateHash("s1"), string(model.MainnetGenesisHash), "vrf1")
	writeBlock(t, dir, "mainnet", 2, stateHash("s2"), stateHash("s1"), "vrf2")
	writeBlock(t, dir, "mainnet", 3, stateHash("s3"), stateHash("s2"), "vrf3")

	require.NoError(t, idx.ScanStartupDir(dir))

	best := idx.BestTip()
	require.NotNil(t, best)
	assert.Equal(t, model.BlockHash(stateHash("s3")), best.StateHash)
}

func TestIngestBlockFile_DelegationRecordsAccountDelegationHistory(t *testing.T) {
	idx, dir := newTestIndexer(t)

	// The delegator pays the command's 1000 fee, so it needs a balance;
	// accounts that already exist draw no account-creation fee.
	require.NoError(t, idx.store.SeedGenesisLedger([]model.Account{
		{PublicKey: "B62qDelegator", Balance: 1_000_000, Delegate: "B62qDelegator"},
		{PublicKey: "B62qNewDelegate", Delegate: "B62qNewDelegate"},
		{PublicKey: "B62qCoinbase", Delegate: "B62qCoinbase"},
	}))

	p1 := writeDelegationBlock(t, dir, "mainnet", 1, stateHash("deleg1"), string(model.MainnetGenesisHash), "vrf1")
	require.NoError(t, idx.IngestBlockFile(p1))

	hist, err := idx.store.GetAccountDelegations("B62qDelegator")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, model.PublicKey("B62qNewDelegate"), hist[0].Delegate)
	assert.Equal(t, model.Height(1), hist[0].Height)
}

func drainUpdates(idx *Indexer) int {
	n := 0
	for {
		select {
		case <-idx.Updates():
			n++
		default:
			return n
		}
	}
}
