package model

// CanonicityEntry records one height's canonicity verdict (spec.md §3).
// WasCanonical distinguishes a first-time "becomes canonical" verdict
// from a "confirms prior canonicity" verdict, so downstream consumers
// (the canonicity manager, reorg subscribers) can idempotently unapply.
type CanonicityEntry struct {
	Height       Height
	StateHash    BlockHash
	Canonical    bool
	WasCanonical bool
}
