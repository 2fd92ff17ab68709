package model

// Timing captures a vesting schedule snapshot. The core never
// interprets vesting math (non-goal); it only stores/restores whatever
// the precomputed block reports so account serialization round-trips.
type Timing struct {
	InitialMinimumBalance Amount
	CliffTime             Slot
	CliffAmount           Amount
	VestingPeriod         Slot
	VestingIncrement      Amount
}

// Permissions mirrors the chain's account permission set; the core
// copies it through unmodified (it never authorizes transactions).
type Permissions struct {
	Send           string
	Receive        string
	SetDelegate    string
	SetPermissions string
}

// Account is the best-ledger representation of one public key
// (spec.md §3).
type Account struct {
	PublicKey        PublicKey
	Balance          Amount
	Nonce            *Nonce
	Delegate         PublicKey
	ReceiptChainHash string
	VotingFor        string
	Timing           Timing
	Token            string
	Permissions      Permissions
	ZkappState       []string
	Username         string
	GenesisAccount   bool
}

// NewAccount returns a freshly created account for pk, with delegate
// defaulted to pk per spec.md §3's invariant ("delegate defaults to
// public_key unless explicitly set").
func NewAccount(pk PublicKey) *Account {
	return &Account{
		PublicKey: pk,
		Delegate:  pk,
	}
}

// Clone returns a deep-enough copy for safe mutation by apply/unapply.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	if a.Nonce != nil {
		n := *a.Nonce
		cp.Nonce = &n
	}
	if a.ZkappState != nil {
		cp.ZkappState = append([]string(nil), a.ZkappState...)
	}
	return &cp
}
