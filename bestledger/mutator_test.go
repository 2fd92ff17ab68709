package bestledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockforge/mina-indexer-core/model"
)

func TestApply_PaymentAndCreateAccountFee(t *testing.T) {
	accts := MapAccounts{}
	accts.Put(&model.Account{PublicKey: "B62qSender", Balance: 1_000_000_000_000, Delegate: "B62qSender"})

	nonce := model.Nonce(0)
	paymentAmount := model.Amount(10_000_000_000)
	diffs := []model.AccountDiff{
		model.CreateAccountDiff("B62qReceiver"),
		model.Payment("B62qSender", paymentAmount, model.Debit, &nonce),
		model.Payment("B62qReceiver", paymentAmount, model.Credit, nil),
	}

	require.NoError(t, Apply(accts, diffs))

	sender, ok := accts.Get("B62qSender")
	require.True(t, ok)
	assert.Equal(t, model.Amount(1_000_000_000_000)-paymentAmount, sender.Balance)
	require.NotNil(t, sender.Nonce)
	assert.Equal(t, model.Nonce(1), *sender.Nonce)

	receiver, ok := accts.Get("B62qReceiver")
	require.True(t, ok)
	assert.Equal(t, paymentAmount-AccountCreationFee, receiver.Balance)
}

func TestApply_NegativeBalanceFails(t *testing.T) {
	accts := MapAccounts{}
	accts.Put(&model.Account{PublicKey: "B62qSender", Balance: 10, Delegate: "B62qSender"})

	nonce := model.Nonce(0)
	diffs := []model.AccountDiff{
		model.Payment("B62qSender", 100, model.Debit, &nonce),
	}
	err := Apply(accts, diffs)
	assert.Error(t, err)
}

func TestApplyUnapply_RoundTrip(t *testing.T) {
	accts := MapAccounts{}
	accts.Put(&model.Account{PublicKey: "B62qSender", Balance: 1_000_000_000_000, Delegate: "B62qSender", Nonce: nil})

	nonce := model.Nonce(0)
	paymentAmount := model.Amount(10_000_000_000)
	diffs := []model.AccountDiff{
		model.CreateAccountDiff("B62qReceiver"),
		model.Payment("B62qSender", paymentAmount, model.Debit, &nonce),
		model.Payment("B62qReceiver", paymentAmount, model.Credit, nil),
	}

	before, _ := accts.Get("B62qSender")
	beforeBalance := before.Balance

	require.NoError(t, Apply(accts, diffs))
	require.NoError(t, Unapply(accts, diffs))

	after, ok := accts.Get("B62qSender")
	require.True(t, ok)
	assert.Equal(t, beforeBalance, after.Balance)
	assert.Nil(t, after.Nonce)

	_, stillExists := accts.Get("B62qReceiver")
	assert.False(t, stillExists)
}

func TestApplyUnapply_RoundTripPreservesPreExistingNonzeroNonce(t *testing.T) {
	accts := MapAccounts{}
	startingNonce := model.Nonce(5)
	accts.Put(&model.Account{PublicKey: "B62qSender", Balance: 1_000_000_000_000, Delegate: "B62qSender", Nonce: &startingNonce})

	nonce := model.Nonce(5)
	paymentAmount := model.Amount(10_000_000_000)
	diffs := []model.AccountDiff{
		model.Payment("B62qSender", paymentAmount, model.Debit, &nonce),
		model.Payment("B62qReceiver", paymentAmount, model.Credit, nil),
	}

	require.NoError(t, Apply(accts, diffs))

	applied, ok := accts.Get("B62qSender")
	require.True(t, ok)
	require.NotNil(t, applied.Nonce)
	assert.Equal(t, model.Nonce(6), *applied.Nonce)

	require.NoError(t, Unapply(accts, diffs))

	after, ok := accts.Get("B62qSender")
	require.True(t, ok)
	require.NotNil(t, after.Nonce)
	assert.Equal(t, startingNonce, *after.Nonce, "Unapply must restore the exact pre-apply nonce, not one lower")
}

func TestApplyUnapply_DelegationRestoresPriorDelegate(t *testing.T) {
	accts := MapAccounts{}
	accts.Put(&model.Account{PublicKey: "B62qDelegator", Delegate: "B62qDelegator"})

	diffs := []model.AccountDiff{
		model.DelegationDiff("B62qDelegator", "B62qValidator", 0),
	}
	require.NoError(t, Apply(accts, diffs))

	a, _ := accts.Get("B62qDelegator")
	assert.Equal(t, model.PublicKey("B62qValidator"), a.Delegate)

	require.NoError(t, Unapply(accts, diffs))
	a, _ = accts.Get("B62qDelegator")
	assert.Equal(t, model.PublicKey("B62qDelegator"), a.Delegate)
}
