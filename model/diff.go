package model

// DiffDirection distinguishes a credit from a debit leg of a
// payment/fee-transfer diff (spec.md §3).
type DiffDirection int

const (
	Credit DiffDirection = iota
	Debit
)

// AccountDiffKind tags the seven AccountDiff variants (spec.md §3). Kept
// as a flat tagged union dispatched by switch, not a type hierarchy,
// per Design Notes §9 ("sum types over class hierarchies").
type AccountDiffKind int

const (
	DiffPayment AccountDiffKind = iota
	DiffDelegation
	DiffCoinbase
	DiffCreateAccount
	DiffFeeTransfer
	DiffFeeTransferViaCoinbase
	DiffFailedTransactionNonce
)

// AccountDiff is a single signed per-account delta. Every variant
// carries the public key it touches (spec.md §3 invariant). Fields
// irrelevant to a given Kind are left zero.
type AccountDiff struct {
	Kind      AccountDiffKind
	PublicKey PublicKey

	// Payment / FeeTransfer / FeeTransferViaCoinbase
	Amount    Amount
	Direction DiffDirection
	Nonce     *Nonce // pre-nonce carried on the Debit leg: the nonce the incoming command was signed with, before Apply advances it

	// Delegation. PrevDelegate is filled in by bestledger.Apply from the
	// account's state just before the delegation applies, so Unapply can
	// restore it exactly, rather than assuming "delegate defaults to self".
	Delegate     PublicKey
	PrevDelegate PublicKey

	// FailedTransactionNonce also reuses Nonce above.
}

// Payment builds a Payment diff.
func Payment(pk PublicKey, amount Amount, dir DiffDirection, nonce *Nonce) AccountDiff {
	return AccountDiff{Kind: DiffPayment, PublicKey: pk, Amount: amount, Direction: dir, Nonce: nonce}
}

// Delegation builds a Delegation diff.
func DelegationDiff(delegator, delegate PublicKey, nonce Nonce) AccountDiff {
	return AccountDiff{Kind: DiffDelegation, PublicKey: delegator, Delegate: delegate, Nonce: &nonce}
}

// CoinbaseDiff builds a Coinbase diff.
func CoinbaseDiff(pk PublicKey, amount Amount) AccountDiff {
	return AccountDiff{Kind: DiffCoinbase, PublicKey: pk, Amount: amount}
}

// CreateAccountDiff builds a CreateAccount diff.
func CreateAccountDiff(pk PublicKey) AccountDiff {
	return AccountDiff{Kind: DiffCreateAccount, PublicKey: pk}
}

// FeeTransfer builds a FeeTransfer diff.
func FeeTransfer(pk PublicKey, amount Amount, dir DiffDirection, nonce *Nonce) AccountDiff {
	return AccountDiff{Kind: DiffFeeTransfer, PublicKey: pk, Amount: amount, Direction: dir, Nonce: nonce}
}

// FeeTransferViaCoinbase builds a FeeTransferViaCoinbase diff.
func FeeTransferViaCoinbase(pk PublicKey, amount Amount, dir DiffDirection, nonce *Nonce) AccountDiff {
	return AccountDiff{Kind: DiffFeeTransferViaCoinbase, PublicKey: pk, Amount: amount, Direction: dir, Nonce: nonce}
}

// FailedTransactionNonce builds a FailedTransactionNonce diff.
func FailedTransactionNonce(pk PublicKey, nonce Nonce) AccountDiff {
	return AccountDiff{Kind: DiffFailedTransactionNonce, PublicKey: pk, Nonce: &nonce}
}

// LedgerDiff is the ordered sequence of diffs one block produces, plus
// the set of public keys first seen in the block (spec.md §3).
type LedgerDiff struct {
	StateHash  BlockHash
	Height     Height
	GlobalSlot Slot
	Diffs      []AccountDiff
	NewKeys    map[PublicKey]bool
}
