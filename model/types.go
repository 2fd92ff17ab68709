// Package model holds the data types shared by every core component:
// block identities, the account ledger, ledger diffs, and canonicity
// records (spec.md §3).
package model

import (
	"fmt"
	"strings"
)

// BlockHash is an opaque 52-character state-hash string beginning with
// "3N". Equality is structural (plain string compare).
type BlockHash string

// MainnetGenesisHash identifies the mainnet genesis block.
const MainnetGenesisHash BlockHash = "3NK4BpDSekaqsG6tx8Qu5YvsSxz5aR6zGK4"

// blockHashPrefix is the expected prefix of every well-formed state hash.
const blockHashPrefix = "3N"

// blockHashLen is the expected length of a well-formed state hash.
const blockHashLen = 52

// Valid reports whether h looks like a well-formed state hash. The core
// never validates the underlying cryptography (spec.md §1 non-goals) —
// only the shape.
func (h BlockHash) Valid() bool {
	return len(h) == blockHashLen && strings.HasPrefix(string(h), blockHashPrefix)
}

func (h BlockHash) String() string { return string(h) }

// Height is the block's position in the canonical chain from genesis.
type Height uint32

// Slot is a proof-of-stake global slot count since genesis.
type Slot uint32

// Epoch is a staking epoch index.
type Epoch uint32

// EpochSlots is the number of global slots per epoch.
const EpochSlots Slot = 7140

// BlockSummary is the lightweight projection of a block a chain walk
// (e.g. Branch.BestChain) hands back, rather than the full Block.
type BlockSummary struct {
	StateHash  BlockHash
	ParentHash BlockHash
	Height     Height
	Slot       Slot
}

// EpochOf derives the epoch containing a global slot.
func EpochOf(s Slot) Epoch {
	return Epoch(uint32(s) / uint32(EpochSlots))
}

// PublicKey is a fixed-length, Base58-derived address. Orderable
// lexicographically for range iteration (spec.md §3).
type PublicKey string

// publicKeyLen is the fixed on-disk width of a public key, used to build
// fixed-width composite store keys (spec.md §4.4).
const publicKeyLen = 55

func (pk PublicKey) String() string { return string(pk) }

// Amount is an unsigned 64-bit nanomina-denominated quantity, wrapped so
// that arithmetic never silently wraps around zero.
type Amount uint64

// Add returns a+b. Amounts cannot overflow in practice (total supply is
// far below 2^64) so this is a plain unsigned add.
func (a Amount) Add(b Amount) Amount { return a + b }

// Sub returns a-b and reports whether the subtraction would have gone
// negative; on underflow it returns (0, false) rather than wrapping.
func (a Amount) Sub(b Amount) (Amount, bool) {
	if b > a {
		return 0, false
	}
	return a - b, true
}

// Nonce is a per-account sequence number. A nil *Nonce means "never
// sent" (spec.md §3 Account invariant).
type Nonce uint32

// Next returns the nonce that follows max(current, atLeast).
func Next(current *Nonce, atLeast Nonce) Nonce {
	if current == nil {
		return atLeast + 1
	}
	if *current > atLeast {
		return *current + 1
	}
	return atLeast + 1
}

// Prev returns the nonce the account had before `n` was assigned, or nil
// if `n` was the account's first-ever nonce (saturates at zero per
// spec.md §4.3 Unapply).
func Prev(n Nonce) *Nonce {
	if n == 0 {
		return nil
	}
	prev := n - 1
	return &prev
}

func (n Nonce) String() string { return fmt.Sprintf("%d", uint32(n)) }
