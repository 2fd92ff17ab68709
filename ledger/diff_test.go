package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blockforge/mina-indexer-core/model"
)

func TestBuildDiff_PaymentEmitsDebitCreditAndFee(t *testing.T) {
	block := &model.PrecomputedBlock{
		StateHash:        "3Ntest",
		CoinbaseReceiver: "B62qCoinbase",
		Commands: []model.UserCommand{
			{
				Kind:     model.CommandPayment,
				Status:   model.CommandApplied,
				Sender:   "B62qSender",
				Receiver: "B62qReceiver",
				Amount:   100,
				Fee:      5,
				Nonce:    3,
			},
		},
	}

	seen := map[model.PublicKey]bool{}
	d := BuildDiff(block, func(pk model.PublicKey) bool { return seen[pk] })

	var debit, credit *model.AccountDiff
	for i := range d.Diffs {
		di := &d.Diffs[i]
		if di.Kind == model.DiffPayment && di.Direction == model.Debit {
			debit = di
		}
		if di.Kind == model.DiffPayment && di.Direction == model.Credit {
			credit = di
		}
	}
	if assert.NotNil(t, debit) && assert.NotNil(t, credit) {
		assert.Equal(t, model.Amount(100), debit.Amount)
		assert.Equal(t, model.Amount(100), credit.Amount)
		assert.Equal(t, model.PublicKey("B62qSender"), debit.PublicKey)
		assert.Equal(t, model.PublicKey("B62qReceiver"), credit.PublicKey)
	}

	assert.True(t, d.NewKeys["B62qSender"])
	assert.True(t, d.NewKeys["B62qReceiver"])
	assert.True(t, d.NewKeys["B62qCoinbase"])
}

func TestBuildDiff_FailedCommandOnlyBumpsNonce(t *testing.T) {
	block := &model.PrecomputedBlock{
		CoinbaseReceiver: "B62qCoinbase",
		Commands: []model.UserCommand{
			{
				Kind:   model.CommandPayment,
				Status: model.CommandFailed,
				Sender: "B62qSender",
				Amount: 100,
				Fee:    5,
				Nonce:  7,
			},
		},
	}
	seen := map[model.PublicKey]bool{}
	d := BuildDiff(block, func(pk model.PublicKey) bool { return seen[pk] })

	found := false
	for _, di := range d.Diffs {
		if di.Kind == model.DiffFailedTransactionNonce {
			found = true
			assert.Equal(t, model.PublicKey("B62qSender"), di.PublicKey)
		}
		assert.NotEqual(t, model.DiffPayment, di.Kind)
	}
	assert.True(t, found)
}

func TestBuildDiff_CoinbaseSupercharged(t *testing.T) {
	supercharge := true
	block := &model.PrecomputedBlock{
		CoinbaseReceiver:    "B62qBlockProducer",
		SuperchargeCoinbase: &supercharge,
		Coinbase:            model.Coinbase{Kind: model.CoinbaseOne, Receiver: "B62qBlockProducer"},
	}
	seen := map[model.PublicKey]bool{}
	d := BuildDiff(block, func(pk model.PublicKey) bool { return seen[pk] })

	var cb *model.AccountDiff
	for i := range d.Diffs {
		if d.Diffs[i].Kind == model.DiffCoinbase {
			cb = &d.Diffs[i]
		}
	}
	if assert.NotNil(t, cb) {
		assert.Equal(t, model.MainnetCoinbaseReward.Add(model.MainnetCoinbaseReward), cb.Amount)
	}
}

func TestBuildDiff_CreateAccountOnlyOncePerBlock(t *testing.T) {
	block := &model.PrecomputedBlock{
		CoinbaseReceiver: "B62qCoinbase",
		Commands: []model.UserCommand{
			{Kind: model.CommandPayment, Status: model.CommandApplied, Sender: "B62qA", Receiver: "B62qB", Amount: 1, Fee: 1, Nonce: 0},
			{Kind: model.CommandPayment, Status: model.CommandApplied, Sender: "B62qA", Receiver: "B62qB", Amount: 1, Fee: 1, Nonce: 1},
		},
	}
	seen := map[model.PublicKey]bool{}
	d := BuildDiff(block, func(pk model.PublicKey) bool { return seen[pk] })

	count := 0
	for _, di := range d.Diffs {
		if di.Kind == model.DiffCreateAccount && di.PublicKey == "B62qA" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestSupercharge_TrustsExplicitField(t *testing.T) {
	no := false
	assert.False(t, Supercharge(&model.PrecomputedBlock{SuperchargeCoinbase: &no}, nil))

	yes := true
	assert.True(t, Supercharge(&model.PrecomputedBlock{SuperchargeCoinbase: &yes}, nil))
}

func TestSupercharge_DefaultsFalseWhenOmitted(t *testing.T) {
	assert.False(t, Supercharge(&model.PrecomputedBlock{}, nil))
}
