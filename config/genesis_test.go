package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockforge/mina-indexer-core/errors"
	"github.com/blockforge/mina-indexer-core/model"
)

const genesisLedgerJSON = `{
  "ledger": {
    "name": "test",
    "accounts": [
      {"pk": "B62qAlice", "balance": "1000000000000", "delegate": "B62qAlice", "nonce": "0"},
      {"pk": "B62qBob", "balance": "500000000000"}
    ]
  }
}`

func TestLoadGenesisLedger_ParsesAccounts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.json")
	require.NoError(t, os.WriteFile(path, []byte(genesisLedgerJSON), 0o644))

	accounts, err := LoadGenesisLedger(path)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	assert.Equal(t, model.PublicKey("B62qAlice"), accounts[0].PublicKey)
	assert.Equal(t, model.Amount(1_000_000_000_000), accounts[0].Balance)
	assert.Equal(t, model.PublicKey("B62qAlice"), accounts[0].Delegate)
	require.NotNil(t, accounts[0].Nonce)
	assert.Equal(t, model.Nonce(0), *accounts[0].Nonce)
	assert.True(t, accounts[0].GenesisAccount)

	// Bob has no explicit delegate: defaults to self, per the best
	// ledger's general "delegate defaults to public_key" invariant.
	assert.Equal(t, model.PublicKey("B62qBob"), accounts[1].Delegate)
	assert.Nil(t, accounts[1].Nonce)
}

func TestLoadGenesisLedger_MissingFileIsGenesisLedgerError(t *testing.T) {
	_, err := LoadGenesisLedger("/nonexistent/genesis.json")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrGenesisLedger))
}

func TestLoadGenesisLedger_MalformedJSONIsGenesisLedgerError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadGenesisLedger(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrGenesisLedger))
}

func TestLoadGenesisLedger_BadBalanceIsGenesisLedgerError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ledger":{"accounts":[{"pk":"B62qAlice","balance":"not-a-number"}]}}`), 0o644))

	_, err := LoadGenesisLedger(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrGenesisLedger))
}
