package source

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goran-ethernal/BlockStreamor/internal/logger"
	itypes "github.com/goran-ethernal/BlockStreamor/internal/types"
	"github.com/goran-ethernal/BlockStreamor/pkg/types"
	"github.com/stretchr/testify/require"
)

// newRegtestReorder writes the given blocks into a single block file and
// builds a Reorder over it. Chains must hang off the real regtest genesis
// block, which the reorderer starts from.
func newRegtestReorder(t *testing.T, maxReorgDepth int, blocks ...*wire.MsgBlock) *Reorder {
	t.Helper()

	dir := t.TempDir()
	magic := uint32(itypes.NetworkRegtest.Magic())
	writeBlockFile(t, dir, "blk00000.dat", magic, blocks...)

	rd, err := NewReadDetect(dir, itypes.NetworkRegtest, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { rd.Close() })

	return NewReorder(itypes.NetworkRegtest, maxReorgDepth, rd, logger.NewNopLogger())
}

func collectCanonical(t *testing.T, r *Reorder) []*types.CanonicalBlock {
	t.Helper()

	var out []*types.CanonicalBlock
	for {
		cb, err := r.Next()
		require.NoError(t, err)
		if cb == nil {
			return out
		}
		out = append(out, cb)
	}
}

func TestReorder_RequiresConfirmationDepth(t *testing.T) {
	genesis := chaincfg.RegressionNetParams.GenesisBlock
	genesisHash := chaincfg.RegressionNetParams.GenesisHash

	// genesis -> A -> B -> C -> D -> E
	chain := makeChain(genesisHash, 5, 100)

	blocks := append([]*wire.MsgBlock{genesis}, chain...)
	r := newRegtestReorder(t, 3, blocks...)

	// With depth 3, only blocks with three known descendants are released:
	// genesis, A and B. C, D and E stay buffered until EOF ends the stream.
	released := collectCanonical(t, r)
	require.Len(t, released, 3)

	require.Equal(t, types.BlockHeight(0), released[0].Height)
	require.Equal(t, *genesisHash, released[0].ID)
	require.Equal(t, types.BlockHeight(1), released[1].Height)
	require.Equal(t, chain[0].Header.BlockHash(), released[1].ID)
	require.Equal(t, types.BlockHeight(2), released[2].Height)
	require.Equal(t, chain[1].Header.BlockHash(), released[2].ID)
}

func TestReorder_OutOfOrderInput(t *testing.T) {
	genesis := chaincfg.RegressionNetParams.GenesisBlock
	genesisHash := chaincfg.RegressionNetParams.GenesisHash

	chain := makeChain(genesisHash, 4, 200)

	// scrambled discovery order: C, genesis, D, A, B
	blocks := []*wire.MsgBlock{chain[2], genesis, chain[3], chain[0], chain[1]}
	r := newRegtestReorder(t, 2, blocks...)

	released := collectCanonical(t, r)
	require.Len(t, released, 3)
	for i, cb := range released {
		require.Equal(t, types.BlockHeight(i), cb.Height)
	}
	require.Equal(t, *genesisHash, released[0].ID)
	require.Equal(t, chain[0].Header.BlockHash(), released[1].ID)
	require.Equal(t, chain[1].Header.BlockHash(), released[2].ID)
}

func TestReorder_ForkPrefersFirstFoundBranch(t *testing.T) {
	genesis := chaincfg.RegressionNetParams.GenesisBlock
	genesisHash := chaincfg.RegressionNetParams.GenesisHash

	// genesis -> A -> B  -> C
	//              \> B' -> C' -> D'
	a := makeBlock(genesisHash, 300)
	aHash := a.Header.BlockHash()
	mainBranch := makeChain(&aHash, 2, 310)   // B, C
	longBranch := makeChain(&aHash, 3, 320)   // B', C', D'

	// The long branch is discovered first, so the DFS from A visits B'
	// before B. Tie-break is the first-found branch in discovery order.
	blocks := []*wire.MsgBlock{genesis, a}
	blocks = append(blocks, longBranch...)
	blocks = append(blocks, mainBranch...)

	r := newRegtestReorder(t, 2, blocks...)
	released := collectCanonical(t, r)

	require.Len(t, released, 3)
	require.Equal(t, *genesisHash, released[0].ID)
	require.Equal(t, aHash, released[1].ID)
	require.Equal(t, longBranch[0].Header.BlockHash(), released[2].ID)

	// the abandoned branch is never emitted
	for _, cb := range released {
		require.NotEqual(t, mainBranch[0].Header.BlockHash(), cb.ID)
		require.NotEqual(t, mainBranch[1].Header.BlockHash(), cb.ID)
	}
}

func TestReorder_StreamIsChained(t *testing.T) {
	genesis := chaincfg.RegressionNetParams.GenesisBlock
	genesisHash := chaincfg.RegressionNetParams.GenesisHash

	chain := makeChain(genesisHash, 10, 400)
	blocks := append([]*wire.MsgBlock{genesis}, chain...)

	r := newRegtestReorder(t, 3, blocks...)
	released := collectCanonical(t, r)
	require.Len(t, released, 8)

	for i := 1; i < len(released); i++ {
		require.Equal(t, released[i-1].Height+1, released[i].Height)
		require.Equal(t, released[i-1].ID, *released[i].PrevID())
	}
}

func TestReorder_DeterministicReplay(t *testing.T) {
	genesis := chaincfg.RegressionNetParams.GenesisBlock
	genesisHash := chaincfg.RegressionNetParams.GenesisHash

	chain := makeChain(genesisHash, 8, 500)
	blocks := append([]*wire.MsgBlock{genesis}, chain...)

	dir := t.TempDir()
	magic := uint32(itypes.NetworkRegtest.Magic())
	writeBlockFile(t, dir, "blk00000.dat", magic, blocks...)

	run := func() []chainhash.Hash {
		rd, err := NewReadDetect(dir, itypes.NetworkRegtest, logger.NewNopLogger())
		require.NoError(t, err)
		defer rd.Close()

		r := NewReorder(itypes.NetworkRegtest, 3, rd, logger.NewNopLogger())
		var ids []chainhash.Hash
		for _, cb := range collectCanonical(t, r) {
			ids = append(ids, cb.ID)
		}
		return ids
	}

	first := run()
	second := run()
	require.NotEmpty(t, first)
	require.Equal(t, first, second)
}

func TestReorder_OverflowAborts(t *testing.T) {
	genesis := chaincfg.RegressionNetParams.GenesisBlock

	// Orphans with unrelated parents can never be released; ingesting past
	// the cap must abort instead of buffering forever.
	blocks := []*wire.MsgBlock{genesis}
	for i := 0; i < maxBlocksToReorder+2; i++ {
		var prev chainhash.Hash
		prev[0] = byte(i)
		prev[1] = byte(i >> 8)
		prev[2] = 0xAB
		blocks = append(blocks, makeBlock(&prev, uint32(1000+i)))
	}

	r := newRegtestReorder(t, 3, blocks...)

	_, err := r.Next()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrReorderOverflow))
}
