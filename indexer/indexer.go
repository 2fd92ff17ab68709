// Package indexer implements A6, the orchestrator that wires C1-C9
// together: it watches for new precomputed blocks (ledger exports are
// not watched; see Run), extends the branch forest, applies ledger diffs through reorgs, and
// answers read queries. It is grounded on the teacher's server-loop
// shape (one long-lived struct with a writer goroutine fed by
// channels, stores.Server in the teranode tree), generalized from a
// single gRPC service to this core's file-driven ingestion model.
package indexer

import (
	"sort"
	"sync"

	"github.com/blockforge/mina-indexer-core/bestledger"
	"github.com/blockforge/mina-indexer-core/blockfile"
	"github.com/blockforge/mina-indexer-core/branch"
	"github.com/blockforge/mina-indexer-core/canonicity"
	"github.com/blockforge/mina-indexer-core/config"
	"github.com/blockforge/mina-indexer-core/errors"
	"github.com/blockforge/mina-indexer-core/ledger"
	"github.com/blockforge/mina-indexer-core/metrics"
	"github.com/blockforge/mina-indexer-core/model"
	"github.com/blockforge/mina-indexer-core/reorg"
	"github.com/blockforge/mina-indexer-core/store"
	"github.com/blockforge/mina-indexer-core/util"
)

// Indexer wires together the nine components of spec.md §4 into a
// single running process. All mutation goes through IngestBlockFile,
// which holds mu for the whole extension, so one block is ingested at
// a time — matching
// spec.md §5's "a single writer owns the branch forest and best
// ledger" constraint.
type Indexer struct {
	settings *config.Settings
	store    *store.Store
	log      util.Logger
	metrics  *metrics.Metrics

	mu     sync.Mutex
	forest *branch.Forest
	diffs  *diffCache
	canon  *canonicity.Manager
	bp     *backpressure

	updates chan canonicity.Update
}

// New constructs an Indexer rooted at genesis, ready to ingest blocks.
func New(settings *config.Settings, st *store.Store, log util.Logger, m *metrics.Metrics, genesis *model.Block) *Indexer {
	k := uint32(settings.CanonicalThreshold)
	idx := &Indexer{
		settings: settings,
		store:    st,
		log:      log,
		metrics:  m,
		diffs:    newDiffCache(),
		canon:    canonicity.NewManager(model.Height(k)),
		bp:       newBackpressure(),
		updates:  make(chan canonicity.Update, 1024),
	}
	idx.forest = branch.NewForest(genesis, k)
	idx.forest.OnReorg = idx.handleReorg
	idx.forest.OnPrune = idx.diffs.evict
	return idx
}

// Updates exposes the canonicity-release stream for subscribers (the
// not-yet-built HTTP/GraphQL layer would consume this; spec.md §6.4
// treats it as out of scope for the Reader interface itself).
func (idx *Indexer) Updates() <-chan canonicity.Update { return idx.updates }

// IngestBlockFile reads, decodes, and extends the forest with one
// precomputed block file (spec.md §4.1's per-file pipeline). It is the
// single entry point both the startup directory scan and the fsnotify
// watcher funnel through.
func (idx *Indexer) IngestBlockFile(path string) error {
	pb, err := blockfile.ReadPrecomputed(path)
	if err != nil {
		if idx.metrics != nil {
			idx.metrics.BlocksRejected.WithLabelValues("parse_error").Inc()
		}
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.bp.shouldShed(uint32(pb.BlockchainLength), uint32(idx.settings.CanonicalThreshold)*4) {
		if idx.metrics != nil {
			idx.metrics.BlocksRejected.WithLabelValues("backpressure_shed").Inc()
		}
		return errors.New(errors.ErrBackpressureShed, "block %s at height %d too far behind fastest branch", pb.StateHash, pb.BlockchainLength)
	}
	idx.bp.observe(uint32(pb.BlockchainLength))

	if err := idx.store.PutBlock(pb); err != nil {
		return err
	}

	diff := ledger.BuildDiff(pb, idx.seen, idx.log)
	idx.diffs.put(pb.StateHash, diff)

	blk := pb.ToBlock()
	outcome := idx.forest.Extend(blk)

	if idx.metrics != nil {
		idx.metrics.BlocksIngested.Inc()
		idx.metrics.ExtensionOutcomes.WithLabelValues(outcome.String()).Inc()
		idx.metrics.BackpressureSpread.Set(float64(idx.bp.spread()))
	}

	idx.canon.AddItemsCount(model.Height(pb.BlockchainLength), pb.StateHash, len(pb.Commands))
	for _, cmd := range pb.Commands {
		idx.canon.AddItem(userCommandItem{height: model.Height(pb.BlockchainLength), hash: pb.StateHash, cmd: cmd})
	}

	return nil
}

// seen reports whether pk has a recorded account, used by the ledger
// diff builder to decide first-appearance CreateAccount diffs
// (spec.md §4.3). It is a best-effort signal grounded against whatever
// the best ledger currently holds, which is exact for linear ingestion
// and approximate while a block sits in a not-yet-canonical dangling
// branch — acceptable because CreateAccount diffs are idempotent
// markers, not balance-affecting on their own.
func (idx *Indexer) seen(pk model.PublicKey) bool {
	_, err := idx.store.GetAccount(pk)
	return err == nil
}

// handleReorg is branch.Forest's OnReorg callback: it walks from
// oldTip to newTip, applies the resulting ledger-diff sequence, and
// publishes canonicity updates for every height that changed hands
// (spec.md §4.2, §4.5, §4.6).
func (idx *Indexer) handleReorg(oldTip, newTip *model.Block) {
	root := idx.forest.RootBranch
	oldNode := &reorgNode{block: oldTip, branch: root, diffs: idx.diffs}
	newNode := &reorgNode{block: newTip, branch: root, diffs: idx.diffs}

	result := reorg.Walk(oldNode, newNode)

	err := idx.store.ApplyLedgerDiffs(func(accts *store.TxnAccounts) error {
		for _, d := range result.Unapply {
			if d == nil {
				continue
			}
			if err := bestledger.Unapply(accts, d.Diffs); err != nil {
				return err
			}
			unrecordDelegations(accts, d)
		}
		for _, d := range result.Apply {
			if d == nil {
				continue
			}
			if err := bestledger.Apply(accts, d.Diffs); err != nil {
				return err
			}
			recordDelegations(accts, d)
		}
		return nil
	})
	if err != nil {
		if idx.log != nil {
			idx.log.Errorf("reorg apply %s -> %s failed: %v", oldTip.StateHash, newTip.StateHash, err)
		}
		return
	}

	if idx.metrics != nil {
		idx.metrics.ReorgCount.Inc()
		idx.metrics.ReorgDepth.Observe(float64(len(result.Unapply)))
	}

	for _, d := range result.Unapply {
		idx.releaseCanonicity(d.StateHash, false)
	}
	for _, d := range result.Apply {
		idx.releaseCanonicity(d.StateHash, true)
	}
}

// recordDelegations appends one account_delegations entry per
// Delegation diff a block's ledger diff carries (spec.md §4.4).
func recordDelegations(accts *store.TxnAccounts, d *model.LedgerDiff) {
	for _, ad := range d.Diffs {
		if ad.Kind == model.DiffDelegation {
			accts.PutDelegation(ad.PublicKey, d.GlobalSlot, ad.Delegate, d.Height)
		}
	}
}

// unrecordDelegations is recordDelegations' inverse, run when a reorg
// unwinds the block that recorded the entry.
func unrecordDelegations(accts *store.TxnAccounts, d *model.LedgerDiff) {
	for _, ad := range d.Diffs {
		if ad.Kind == model.DiffDelegation {
			accts.DeleteDelegation(ad.PublicKey, d.GlobalSlot)
		}
	}
}

func (idx *Indexer) releaseCanonicity(hash model.BlockHash, canonical bool) {
	// height lookup: the diff doesn't carry height, so recover it from
	// the persisted block record.
	pb, err := idx.store.GetBlock(hash)
	if err != nil {
		return
	}
	height := model.Height(pb.BlockchainLength)

	wasCanonical := canonical // first verdict always counts as "becomes canonical" unless seen before; store.Canonical tells us which.
	if prev, perr := idx.store.Canonical(height); perr == nil {
		wasCanonical = prev == hash && canonical
	} else {
		wasCanonical = false
	}

	if canonical {
		_ = idx.store.PutCanonicity(height, hash)
	}
	idx.canon.AddCanonicityUpdate(height, hash, canonical, wasCanonical)

	if idx.metrics != nil {
		idx.metrics.CanonicityReleases.Inc()
	}

	for _, u := range idx.canon.GetUpdates(height) {
		select {
		case idx.updates <- u:
		default:
			if idx.log != nil {
				idx.log.Errorf("canonicity update channel full, dropping update for height %d", height)
			}
		}
	}
}

// userCommandItem adapts a decoded user command to canonicity.Item.
type userCommandItem struct {
	height model.Height
	hash   model.BlockHash
	cmd    model.UserCommand
}

func (u userCommandItem) Height() model.Height       { return u.height }
func (u userCommandItem) StateHash() model.BlockHash { return u.hash }

// BestTip returns the root branch's current best tip.
func (idx *Indexer) BestTip() *model.Block {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.forest.BestTip()
}

// sortHashes is a small helper the Reader methods use to return
// deterministic ordering for multi-hash answers (spec.md §6.4 doesn't
// mandate an order but deterministic output makes tests and API
// consumers' lives easier).
func sortHashes(hashes []model.BlockHash) []model.BlockHash {
	out := append([]model.BlockHash{}, hashes...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
