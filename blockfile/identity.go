// Package blockfile implements C1 (Block Identity & Paths) and C2
// (Precomputed Block Reader): parsing a precomputed-block filename
// without touching its contents, and decoding the narrow set of JSON
// fields the core actually reads (spec.md §4, §6.1).
package blockfile

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/blockforge/mina-indexer-core/errors"
	"github.com/blockforge/mina-indexer-core/model"
)

// Identity is what C1 extracts from a filename alone.
type Identity struct {
	Network      string
	Height       model.Height
	HeightKnown  bool // false for the {network}-{state_hash}.json form
	StateHash    model.BlockHash
}

// jsonExt is the required filename suffix.
const jsonExt = ".json"

// ParseFilename extracts (network, height, state_hash) from a
// precomputed-block path without reading the file. It accepts both
// `{network}-{height}-{state_hash}.json` and
// `{network}-{state_hash}.json` (spec.md §6.1).
func ParseFilename(path string) (Identity, error) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, jsonExt) {
		return Identity{}, errors.NewParseError("%s: missing .json suffix", base)
	}
	stem := strings.TrimSuffix(base, jsonExt)

	parts := strings.Split(stem, "-")
	if len(parts) < 2 {
		return Identity{}, errors.NewParseError("%s: does not match {network}-[{height}-]{state_hash} convention", base)
	}

	hash := model.BlockHash(parts[len(parts)-1])
	if !hash.Valid() {
		return Identity{}, errors.NewParseError("%s: %q is not a well-formed state hash", base, hash)
	}

	if len(parts) >= 3 {
		if height, err := strconv.ParseUint(parts[len(parts)-2], 10, 32); err == nil {
			network := strings.Join(parts[:len(parts)-2], "-")
			return Identity{Network: network, Height: model.Height(height), HeightKnown: true, StateHash: hash}, nil
		}
	}

	network := strings.Join(parts[:len(parts)-1], "-")
	return Identity{Network: network, StateHash: hash}, nil
}

// IsBlockFilename reports whether name passes the ingest filter
// (spec.md §6.2): its basename must match the filename convention.
func IsBlockFilename(name string) bool {
	_, err := ParseFilename(name)
	return err == nil
}

// PreviousStateHashFromFile reads only the JSON offset where
// previous_state_hash sits, per spec.md §4.1 step 3 ("a full parse is
// not required"). It falls back to a full decode when the fast path
// can't locate the field (e.g. unusual formatting), trading a little
// speed for robustness.
func PreviousStateHashFromFile(data []byte) (model.BlockHash, bool) {
	const needle = `"previous_state_hash"`
	idx := indexOf(data, []byte(needle))
	if idx < 0 {
		return "", false
	}
	rest := data[idx+len(needle):]
	colon := indexOf(rest, []byte(":"))
	if colon < 0 {
		return "", false
	}
	rest = rest[colon+1:]
	quote := indexOf(rest, []byte(`"`))
	if quote < 0 {
		return "", false
	}
	rest = rest[quote+1:]
	end := indexOf(rest, []byte(`"`))
	if end < 0 {
		return "", false
	}
	return model.BlockHash(rest[:end]), true
}

func indexOf(haystack, needle []byte) int {
	n, m := len(haystack), len(needle)
	if m == 0 || m > n {
		return -1
	}
outer:
	for i := 0; i+m <= n; i++ {
		for j := 0; j < m; j++ {
			if haystack[i+j] != needle[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}
