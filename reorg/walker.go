// Package reorg implements C8 (Reorg Walker): given the old and new
// best tips, compute the ordered (unapply, apply) diff sequence across
// their lowest common ancestor (spec.md §4.6).
package reorg

import "github.com/blockforge/mina-indexer-core/model"

// Node is the minimal shape the walker needs from a block tree node: its
// own diff, its height, and a way to reach its parent. Implementations
// back this with the branch package's arena or a store-backed lookup
// during startup recovery.
type Node interface {
	StateHash() model.BlockHash
	Height() model.Height
	Diff() *model.LedgerDiff
	Parent() (Node, bool)
}

// Result is the ordered instruction set a caller applies to walk the
// ledger from old_tip's state to new_tip's state (spec.md §4.6).
type Result struct {
	Unapply []*model.LedgerDiff // old_tip-first, walking back toward the LCA
	Apply   []*model.LedgerDiff // LCA-adjacent-first, new_tip-last
}

// Update is the name the Reader interface (spec.md §6.4) uses for a
// Walk result; kept as an alias so both names refer to one type.
type Update = Result

// Walk implements the algorithm of spec.md §4.6: walk the longer tip up
// by parent pointers until both are at equal height, then step both up
// together until they coincide at their lowest common ancestor.
func Walk(oldTip, newTip Node) Result {
	if oldTip.StateHash() == newTip.StateHash() {
		return Result{}
	}

	var unapplyRev, applyRev []*model.LedgerDiff

	o, n := oldTip, newTip
	for o.Height() > n.Height() {
		unapplyRev = append(unapplyRev, o.Diff())
		p, ok := o.Parent()
		if !ok {
			break
		}
		o = p
	}
	for n.Height() > o.Height() {
		applyRev = append(applyRev, n.Diff())
		p, ok := n.Parent()
		if !ok {
			break
		}
		n = p
	}

	for o.StateHash() != n.StateHash() {
		unapplyRev = append(unapplyRev, o.Diff())
		applyRev = append(applyRev, n.Diff())

		op, ook := o.Parent()
		np, nok := n.Parent()
		if !ook || !nok {
			break
		}
		o, n = op, np
	}

	// unapplyRev was built LCA-ward from old_tip, i.e. old_tip-first —
	// already the order the contract wants, so no reversal here (unlike
	// apply below, unwinding must start at the tip and work back to the
	// LCA, never the reverse).
	unapply := append([]*model.LedgerDiff(nil), unapplyRev...)

	// applyRev was built LCA-ward from new_tip, i.e. deepest-first; the
	// contract wants newest-last (LCA-adjacent-first, tip-last), which is
	// the reverse of how we appended (we appended tip-first).
	apply := make([]*model.LedgerDiff, len(applyRev))
	for i, d := range applyRev {
		apply[len(applyRev)-1-i] = d
	}

	return Result{Unapply: unapply, Apply: apply}
}
