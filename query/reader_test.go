package query_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockforge/mina-indexer-core/config"
	"github.com/blockforge/mina-indexer-core/indexer"
	"github.com/blockforge/mina-indexer-core/model"
	"github.com/blockforge/mina-indexer-core/query"
	"github.com/blockforge/mina-indexer-core/store"
)

func TestIndexer_SatisfiesReader(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(dir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	genesis := &model.Block{StateHash: model.MainnetGenesisHash, BlockchainLength: 0}
	idx := indexer.New(&config.Settings{CanonicalThreshold: 10}, st, nil, nil, genesis)

	var r query.Reader = idx
	best, err := r.BestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.MainnetGenesisHash, best.StateHash)
}
