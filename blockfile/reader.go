package blockfile

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/blockforge/mina-indexer-core/errors"
	"github.com/blockforge/mina-indexer-core/model"
)

// ReadPrecomputed decodes the narrow set of fields spec.md §6.1 lists
// out of a precomputed-block JSON file. Unknown fields are discarded by
// encoding/json; the core never round-trips the full wire schema
// (explicitly out of scope).
func ReadPrecomputed(path string) (*model.PrecomputedBlock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewParseError("%s: %v", path, err)
	}

	ident, err := ParseFilename(path)
	if err != nil {
		return nil, err
	}

	var w wireBlock
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errors.NewParseError("%s: %v", path, err)
	}

	height, err := parseU32(w.ProtocolState.Body.ConsensusState.BlockchainLength)
	if err != nil {
		return nil, errors.NewParseError("%s: blockchain_length: %v", path, err)
	}

	slot, err := parseU32(w.ProtocolState.Body.ConsensusState.GlobalSlotSinceGenesis)
	if err != nil {
		return nil, errors.NewParseError("%s: global_slot_since_genesis: %v", path, err)
	}

	epochCount, err := parseU32(w.ProtocolState.Body.ConsensusState.EpochCount)
	if err != nil {
		return nil, errors.NewParseError("%s: epoch_count: %v", path, err)
	}

	ts, err := strconv.ParseUint(w.ProtocolState.Body.BlockchainState.Timestamp, 10, 64)
	if err != nil {
		return nil, errors.NewParseError("%s: timestamp: %v", path, err)
	}

	var diff wireStagedLedgerDiff
	if len(w.StagedLedgerDiff.Diff) > 0 && w.StagedLedgerDiff.Diff[0] != nil {
		diff = *w.StagedLedgerDiff.Diff[0]
	}

	commands, err := decodeCommands(diff.Commands)
	if err != nil {
		return nil, errors.NewParseError("%s: commands: %v", path, err)
	}

	internal, err := decodeInternalCommands(diff.InternalCommandBalances)
	if err != nil {
		return nil, errors.NewParseError("%s: internal_command_balances: %v", path, err)
	}

	coinbase, err := decodeCoinbase(diff.Coinbase)
	if err != nil {
		return nil, errors.NewParseError("%s: coinbase: %v", path, err)
	}
	coinbase.Receiver = model.PublicKey(w.ProtocolState.Body.ConsensusState.CoinbaseReceiver)

	pb := &model.PrecomputedBlock{
		Network:                 ident.Network,
		StateHash:               ident.StateHash,
		PreviousStateHash:       model.BlockHash(w.ProtocolState.PreviousStateHash),
		GenesisStateHash:        model.BlockHash(w.ProtocolState.Body.GenesisStateHash),
		BlockchainLength:        model.Height(height),
		GlobalSlotSinceGenesis:  model.Slot(slot),
		EpochCount:              model.Epoch(epochCount),
		LastVRFOutput:           w.ProtocolState.Body.ConsensusState.LastVRFOutput,
		CoinbaseReceiver:        model.PublicKey(w.ProtocolState.Body.ConsensusState.CoinbaseReceiver),
		SuperchargeCoinbase:     w.ProtocolState.Body.ConsensusState.SuperchargeCoinbase,
		TimestampMillis:         ts,
		Commands:                commands,
		InternalCommandBalances: internal,
		Coinbase:                coinbase,
	}

	if ident.HeightKnown && model.Height(height) != ident.Height {
		return nil, errors.NewParseError("%s: filename height %d disagrees with body height %d", path, ident.Height, height)
	}

	return pb, nil
}

func parseU32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}

// --- narrow wire schema ---
//
// The precomputed-block JSON nests tagged unions as two-element arrays,
// e.g. `["Signed_command", {...}]` or `["Two", {...}, {...}]`. These are
// decoded via json.RawMessage slices rather than a generated schema,
// since the core only reads a handful of leaves out of a much larger
// document (spec.md §6.1).

type wireBlock struct {
	ProtocolState struct {
		PreviousStateHash string `json:"previous_state_hash"`
		Body              struct {
			GenesisStateHash string `json:"genesis_state_hash"`
			ConsensusState   struct {
				BlockchainLength       string `json:"blockchain_length"`
				GlobalSlotSinceGenesis string `json:"global_slot_since_genesis"`
				EpochCount             string `json:"epoch_count"`
				LastVRFOutput          string `json:"last_vrf_output"`
				CoinbaseReceiver       string `json:"coinbase_receiver"`
				SuperchargeCoinbase    *bool  `json:"supercharge_coinbase"`
			} `json:"consensus_state"`
			BlockchainState struct {
				Timestamp string `json:"timestamp"`
			} `json:"blockchain_state"`
		} `json:"body"`
	} `json:"protocol_state"`
	StagedLedgerDiff struct {
		Diff [2]*wireStagedLedgerDiff `json:"diff"`
	} `json:"staged_ledger_diff"`
}

type wireStagedLedgerDiff struct {
	Commands                []wireCommand          `json:"commands"`
	InternalCommandBalances []json.RawMessage      `json:"internal_command_balances"`
	Coinbase                json.RawMessage        `json:"coinbase"`
}

type wireCommand struct {
	Data   []json.RawMessage `json:"data"`
	Status []json.RawMessage `json:"status"`
}

type wirePaymentBody struct {
	SourcePK   string `json:"source_pk"`
	ReceiverPK string `json:"receiver_pk"`
	Amount     string `json:"amount"`
}

type wireDelegationBody struct {
	DelegatorPK string `json:"delegator"`
	NewDelegate string `json:"new_delegate"`
}

type wireCommon struct {
	Fee        string `json:"fee"`
	FeePayerPK string `json:"fee_payer_pk"`
	Nonce      string `json:"nonce"`
}

func decodeCommands(raw []wireCommand) ([]model.UserCommand, error) {
	out := make([]model.UserCommand, 0, len(raw))
	for _, c := range raw {
		if len(c.Data) < 2 {
			continue
		}
		// The signed-command payload nests {common, body} directly under
		// "payload".
		var outer struct {
			Payload struct {
				Common wireCommon        `json:"common"`
				Body   []json.RawMessage `json:"body"`
			} `json:"payload"`
		}
		if err := json.Unmarshal(c.Data[1], &outer); err != nil {
			return nil, err
		}

		nonce, err := strconv.ParseUint(outer.Payload.Common.Nonce, 10, 32)
		if err != nil {
			return nil, err
		}
		fee, err := strconv.ParseUint(outer.Payload.Common.Fee, 10, 64)
		if err != nil {
			return nil, err
		}

		status := model.CommandApplied
		if len(c.Status) > 0 {
			var tag string
			if err := json.Unmarshal(c.Status[0], &tag); err == nil && tag == "Failed" {
				status = model.CommandFailed
			}
		}

		if len(outer.Payload.Body) < 2 {
			continue
		}
		var bodyTag string
		if err := json.Unmarshal(outer.Payload.Body[0], &bodyTag); err != nil {
			return nil, err
		}

		cmd := model.UserCommand{
			Status: status,
			Sender: model.PublicKey(outer.Payload.Common.FeePayerPK),
			Fee:    model.Amount(fee),
			Nonce:  model.Nonce(nonce),
		}

		switch bodyTag {
		case "Payment":
			var pay wirePaymentBody
			if err := json.Unmarshal(outer.Payload.Body[1], &pay); err != nil {
				return nil, err
			}
			amount, err := strconv.ParseUint(pay.Amount, 10, 64)
			if err != nil {
				return nil, err
			}
			cmd.Kind = model.CommandPayment
			cmd.Sender = model.PublicKey(pay.SourcePK)
			cmd.Receiver = model.PublicKey(pay.ReceiverPK)
			cmd.Amount = model.Amount(amount)
		case "Stake_delegation":
			var del []json.RawMessage
			if err := json.Unmarshal(outer.Payload.Body[1], &del); err != nil {
				return nil, err
			}
			var body wireDelegationBody
			if len(del) >= 2 {
				if err := json.Unmarshal(del[1], &body); err != nil {
					return nil, err
				}
			}
			cmd.Kind = model.CommandDelegation
			cmd.Receiver = model.PublicKey(body.NewDelegate)
		default:
			continue
		}

		out = append(out, cmd)
	}
	return out, nil
}

func decodeInternalCommands(raw []json.RawMessage) ([]model.InternalCommand, error) {
	out := make([]model.InternalCommand, 0, len(raw))
	for _, r := range raw {
		var tagged []json.RawMessage
		if err := json.Unmarshal(r, &tagged); err != nil || len(tagged) < 2 {
			continue
		}
		var tag string
		if err := json.Unmarshal(tagged[0], &tag); err != nil {
			return nil, err
		}
		var body struct {
			Receiver string `json:"receiver"`
			Fee      string `json:"fee"`
		}
		if err := json.Unmarshal(tagged[1], &body); err != nil {
			return nil, err
		}
		fee, err := strconv.ParseUint(body.Fee, 10, 64)
		if err != nil {
			return nil, err
		}
		kind := model.InternalFeeTransfer
		if tag == "fee_transfer_via_coinbase" {
			kind = model.InternalFeeTransferViaCoinbase
		}
		out = append(out, model.InternalCommand{Kind: kind, Receiver: model.PublicKey(body.Receiver), Amount: model.Amount(fee)})
	}
	return out, nil
}

func decodeCoinbase(raw json.RawMessage) (model.Coinbase, error) {
	if len(raw) == 0 {
		return model.Coinbase{Kind: model.CoinbaseZero}, nil
	}

	var tag string
	if err := json.Unmarshal(raw, &tag); err == nil {
		if tag == "Zero" {
			return model.Coinbase{Kind: model.CoinbaseZero}, nil
		}
	}

	var tagged []json.RawMessage
	if err := json.Unmarshal(raw, &tagged); err != nil || len(tagged) == 0 {
		return model.Coinbase{Kind: model.CoinbaseZero}, nil
	}
	if err := json.Unmarshal(tagged[0], &tag); err != nil {
		return model.Coinbase{}, err
	}

	cb := model.Coinbase{Kind: model.CoinbaseOne}
	if tag == "Two" {
		cb.Kind = model.CoinbaseTwo
	}

	for _, part := range tagged[1:] {
		var ft []json.RawMessage
		if err := json.Unmarshal(part, &ft); err != nil || len(ft) < 2 {
			continue
		}
		var body struct {
			Receiver string `json:"receiver"`
			Fee      string `json:"fee"`
		}
		if err := json.Unmarshal(ft[1], &body); err != nil {
			continue
		}
		fee, err := strconv.ParseUint(body.Fee, 10, 64)
		if err != nil {
			continue
		}
		cb.FeeTransferViaCoinbase = append(cb.FeeTransferViaCoinbase, model.InternalCommand{
			Kind:     model.InternalFeeTransferViaCoinbase,
			Receiver: model.PublicKey(body.Receiver),
			Amount:   model.Amount(fee),
		})
	}

	return cb, nil
}
