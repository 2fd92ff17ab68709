// Package canonical implements C3 (Canonical Chain Discovery): given an
// unordered directory of block paths, reconstruct the deepest
// confidently canonical prefix (spec.md §4.1).
package canonical

import (
	"os"
	"sort"

	"github.com/blockforge/mina-indexer-core/blockfile"
	"github.com/blockforge/mina-indexer-core/model"
)

// candidate is one input path with its filename-derived identity.
type candidate struct {
	path      string
	height    model.Height
	stateHash model.BlockHash
}

// group is one contiguous run of candidates sharing a height, in the
// height-then-hash sorted candidate slice.
type group struct {
	height model.Height
	start  int
}

// Result is the three-way partition spec.md §4.1 returns.
type Result struct {
	Canonical []string // ancestor-to-descendant order
	Recent    []string
	Orphaned  []string
	// Indeterminate is true when discovery could not find K
	// confirmations (spec.md §7 IndeterminateChain); Recent then
	// contains every input path.
	Indeterminate bool
}

// Discover implements the algorithm of spec.md §4.1, in the six steps
// labelled below.
func Discover(paths []string, k uint32) (Result, error) {
	if len(paths) == 0 {
		return Result{}, nil
	}

	cands := make([]candidate, 0, len(paths))
	for _, p := range paths {
		ident, err := blockfile.ParseFilename(p)
		if err != nil {
			// unparsable files are not block files; skip them silently,
			// mirroring spec.md §4.2's "failed parse is logged and
			// skipped" recovery for the ingestion path.
			continue
		}
		height := ident.Height
		if !ident.HeightKnown {
			pb, err := blockfile.ReadPrecomputed(p)
			if err != nil {
				continue
			}
			height = pb.BlockchainLength
		}
		cands = append(cands, candidate{path: p, height: height, stateHash: ident.StateHash})
	}

	if len(cands) == 0 {
		return Result{}, nil
	}

	if len(cands) == 1 {
		return Result{Recent: []string{cands[0].path}, Indeterminate: k > 0}, nil
	}

	// Step 1: sort by height ascending, deterministic hash tie-break.
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].height != cands[j].height {
			return cands[i].height < cands[j].height
		}
		return cands[i].stateHash < cands[j].stateHash
	})

	var groups []group
	for i, c := range cands {
		if i == 0 || c.height != cands[i-1].height {
			groups = append(groups, group{height: c.height, start: i})
		}
	}

	// Step 2: find the largest index range with no gap > 1, measured in
	// heights; on a tie the lower run wins.
	lastContiguousIdx := len(cands) - 1
	runStart, bestEnd, bestSpan := 0, -1, model.Height(0)
	for i := 1; i <= len(groups); i++ {
		if i < len(groups) && groups[i].height-groups[i-1].height <= 1 {
			continue
		}
		if span := groups[i-1].height - groups[runStart].height; bestEnd < 0 || span > bestSpan {
			bestEnd, bestSpan = i-1, span
		}
		runStart = i
	}
	if bestEnd+1 < len(groups) {
		lastContiguousIdx = groups[bestEnd+1].start - 1
	}

	// Step 3/4: from the last contiguous index, walk back K steps,
	// restarting one height lower on failure.
	tipIdx, chain, ok := findCanonicalTip(cands, groups, lastContiguousIdx, int(k))
	if !ok {
		return Result{Recent: paths, Indeterminate: true}, nil
	}

	// Step 5: walk parent links back to the lowest height, then reverse
	// to ascending (ancestor-to-descendant) order.
	canonicalSet := make(map[model.BlockHash]bool, len(chain))
	canonicalPaths := make([]string, len(chain))
	for i, idx := range chain {
		canonicalPaths[len(chain)-1-i] = cands[idx].path
		canonicalSet[cands[idx].stateHash] = true
	}
	tipHeight := cands[tipIdx].height

	// Step 6: partition the remainder.
	var recent, orphaned []string
	for _, c := range cands {
		if canonicalSet[c.stateHash] {
			continue
		}
		if c.height > tipHeight {
			recent = append(recent, c.path)
		} else {
			orphaned = append(orphaned, c.path)
		}
	}

	return Result{Canonical: canonicalPaths, Recent: recent, Orphaned: orphaned}, nil
}

// findCanonicalTip tries every candidate in the group at lastContiguousIdx
// as a prospective canonical tip, walking back exactly k parent links
// through preceding height groups. If every candidate in a group fails,
// the search restarts one height lower (spec.md §4.1 step 4). Once a
// tip with k confirmed parent links is found, its ancestry is walked
// the rest of the way down to the lowest height present in cands.
//
// Returns the winning tip's index into cands, the full ancestor chain
// as indices into cands in descendant-to-ancestor order (tip first),
// and whether a tip was found at all.
func findCanonicalTip(cands []candidate, groups []group, lastContiguousIdx, k int) (int, []int, bool) {
	// groupIdxOf maps a height to its group's candidate index range.
	groupIdxOf := func(height model.Height) (lo, hi int, ok bool) {
		for gi, g := range groups {
			if g.height == height {
				lo = g.start
				if gi+1 < len(groups) {
					hi = groups[gi+1].start
				} else {
					hi = len(cands)
				}
				return lo, hi, true
			}
		}
		return 0, 0, false
	}

	// Candidates whose file bytes we've already fetched, to avoid
	// re-reading the same file across multiple tip attempts.
	fileCache := map[string][]byte{}
	fileOf := func(c candidate) ([]byte, bool) {
		if b, ok := fileCache[c.path]; ok {
			return b, true
		}
		b, err := os.ReadFile(c.path)
		if err != nil {
			return nil, false
		}
		fileCache[c.path] = b
		return b, true
	}
	parentOf := func(c candidate) (model.BlockHash, bool) {
		b, ok := fileOf(c)
		if !ok {
			return "", false
		}
		return blockfile.PreviousStateHashFromFile(b)
	}

	tipEnd := lastContiguousIdx
	for tipEnd >= 0 {
		tipGroupHeight := cands[tipEnd].height
		lo, hi, _ := groupIdxOf(tipGroupHeight)

		for tipCandIdx := hi - 1; tipCandIdx >= lo; tipCandIdx-- {
			chain := []int{tipCandIdx}
			cur := cands[tipCandIdx]
			success := true
			for step := 0; step < k; step++ {
				parentHash, ok := parentOf(cur)
				if !ok {
					success = false
					break
				}
				prevHeight := cur.height - 1
				plo, phi, found := groupIdxOf(prevHeight)
				if !found {
					success = false
					break
				}
				matched := -1
				for pi := plo; pi < phi; pi++ {
					if cands[pi].stateHash == parentHash {
						matched = pi
						break
					}
				}
				if matched < 0 {
					success = false
					break
				}
				chain = append(chain, matched)
				cur = cands[matched]
			}
			if success {
				// walk the rest of the way to the lowest height present.
				for {
					parentHash, ok := parentOf(cur)
					if !ok {
						break
					}
					if cur.height == 0 {
						break
					}
					plo, phi, found := groupIdxOf(cur.height - 1)
					if !found {
						break
					}
					matched := -1
					for pi := plo; pi < phi; pi++ {
						if cands[pi].stateHash == parentHash {
							matched = pi
							break
						}
					}
					if matched < 0 {
						break
					}
					chain = append(chain, matched)
					cur = cands[matched]
				}
				return tipCandIdx, chain, true
			}
		}

		// All candidates at this height failed; restart one height
		// lower, provided enough heights remain to ever complete a
		// K-length walk.
		nextEnd := lo - 1
		if nextEnd < 0 {
			break
		}
		if nextEnd+1 < k {
			// fewer than K heights remain below the candidate tip.
			break
		}
		tipEnd = nextEnd
	}

	return 0, nil, false
}
