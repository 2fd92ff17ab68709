package config

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/blockforge/mina-indexer-core/errors"
	"github.com/blockforge/mina-indexer-core/model"
)

// wireGenesisRoot mirrors the top-level shape of a Mina genesis-ledger
// JSON file (original_source/rust/src/ledger/genesis.rs's GenesisRoot):
// a "ledger" object holding the account list, alongside proof/timestamp
// metadata this core never reads.
type wireGenesisRoot struct {
	Ledger struct {
		Accounts []wireGenesisAccount `json:"accounts"`
	} `json:"ledger"`
}

type wireGenesisAccount struct {
	PK       string `json:"pk"`
	Balance  string `json:"balance"`
	Delegate string `json:"delegate"`
	Nonce    string `json:"nonce"`
}

// LoadGenesisLedger parses the file at path into the best-ledger's
// starting account set (spec.md §6.5's `genesis-ledger` argument). Only
// the fields the best ledger actually tracks are read — permissions,
// timing, and zkApp state are out of scope for this core, matching
// §6.1's "only the fields enumerated" posture for precomputed blocks.
//
// A missing file or malformed JSON/balance is the spec.md §6.5 exit
// code 100 scenario ("genesis ledger unparseable"); the caller should
// propagate the returned error unchanged so cmd/indexer's exitCode
// maps it correctly.
func LoadGenesisLedger(path string) ([]model.Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewGenesisLedgerError("%s: %v", path, err)
	}

	var root wireGenesisRoot
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, errors.NewGenesisLedgerError("%s: %v", path, err)
	}

	accounts := make([]model.Account, 0, len(root.Ledger.Accounts))
	for _, wa := range root.Ledger.Accounts {
		if wa.PK == "" {
			return nil, errors.NewGenesisLedgerError("%s: account missing pk", path)
		}
		balance, err := strconv.ParseUint(wa.Balance, 10, 64)
		if err != nil {
			return nil, errors.NewGenesisLedgerError("%s: account %s: balance %q: %v", path, wa.PK, wa.Balance, err)
		}

		acct := model.Account{
			PublicKey:      model.PublicKey(wa.PK),
			Balance:        model.Amount(balance),
			Delegate:       model.PublicKey(wa.Delegate),
			GenesisAccount: true,
		}
		if acct.Delegate == "" {
			acct.Delegate = acct.PublicKey
		}
		if wa.Nonce != "" {
			n, err := strconv.ParseUint(wa.Nonce, 10, 32)
			if err != nil {
				return nil, errors.NewGenesisLedgerError("%s: account %s: nonce %q: %v", path, wa.PK, wa.Nonce, err)
			}
			nonce := model.Nonce(n)
			acct.Nonce = &nonce
		}
		accounts = append(accounts, acct)
	}

	return accounts, nil
}
