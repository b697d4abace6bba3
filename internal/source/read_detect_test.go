package source

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goran-ethernal/BlockStreamor/internal/logger"
	itypes "github.com/goran-ethernal/BlockStreamor/internal/types"
	"github.com/stretchr/testify/require"
)

func collectFileBlocks(t *testing.T, rd *ReadDetect) []*FileBlock {
	t.Helper()

	var out []*FileBlock
	for {
		fb, err := rd.Next()
		require.NoError(t, err)
		if fb == nil {
			return out
		}
		out = append(out, fb)
	}
}

func TestReadDetect_SkipsDuplicatesAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	magic := uint32(wire.MainNet)

	b1 := makeBlock(&chainhash.Hash{}, 1)
	b1Hash := b1.Header.BlockHash()
	b2 := makeBlock(&b1Hash, 2)

	// the same block appears in both files; the node rewrites files like this
	writeBlockFile(t, dir, "blk00000.dat", magic, b1)
	writeBlockFile(t, dir, "blk00001.dat", magic, b1, b2)

	rd, err := NewReadDetect(dir, itypes.NetworkMainnet, logger.NewNopLogger())
	require.NoError(t, err)
	defer rd.Close()

	blocks := collectFileBlocks(t, rd)
	require.Len(t, blocks, 2)
	require.Equal(t, b1.Header.BlockHash(), blocks[0].Hash)
	require.Equal(t, b2.Header.BlockHash(), blocks[1].Hash)
}

func TestReadDetect_FilesScannedInSortedOrder(t *testing.T) {
	dir := t.TempDir()
	magic := uint32(wire.MainNet)

	early := makeBlock(&chainhash.Hash{}, 10)
	late := makeBlock(&chainhash.Hash{}, 20)

	// written out of order on purpose
	writeBlockFile(t, dir, "blk00002.dat", magic, late)
	writeBlockFile(t, dir, "blk00001.dat", magic, early)

	rd, err := NewReadDetect(dir, itypes.NetworkMainnet, logger.NewNopLogger())
	require.NoError(t, err)
	defer rd.Close()

	blocks := collectFileBlocks(t, rd)
	require.Len(t, blocks, 2)
	require.Equal(t, early.Header.BlockHash(), blocks[0].Hash)
	require.Equal(t, late.Header.BlockHash(), blocks[1].Hash)
}

func TestReadDetect_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	magic := uint32(wire.MainNet)

	b1 := makeBlock(&chainhash.Hash{}, 1)
	writeBlockFile(t, dir, "blk00000.dat", magic, b1)
	writeBlockFile(t, dir, "rev00000.dat", magic, makeBlock(&chainhash.Hash{}, 2))

	rd, err := NewReadDetect(dir, itypes.NetworkMainnet, logger.NewNopLogger())
	require.NoError(t, err)
	defer rd.Close()

	blocks := collectFileBlocks(t, rd)
	require.Len(t, blocks, 1)
	require.Equal(t, b1.Header.BlockHash(), blocks[0].Hash)
}

func TestReadDetect_EmptyDirectory(t *testing.T) {
	rd, err := NewReadDetect(t.TempDir(), itypes.NetworkMainnet, logger.NewNopLogger())
	require.NoError(t, err)
	defer rd.Close()

	fb, err := rd.Next()
	require.NoError(t, err)
	require.Nil(t, fb)
}

func TestFileBlock_ReadBlock(t *testing.T) {
	dir := t.TempDir()
	magic := uint32(wire.MainNet)

	b1 := makeBlock(&chainhash.Hash{}, 42)
	writeBlockFile(t, dir, "blk00000.dat", magic, b1)

	rd, err := NewReadDetect(dir, itypes.NetworkMainnet, logger.NewNopLogger())
	require.NoError(t, err)
	defer rd.Close()

	fb, err := rd.Next()
	require.NoError(t, err)
	require.NotNil(t, fb)

	block, err := fb.ReadBlock()
	require.NoError(t, err)
	require.Equal(t, fb.Hash, block.Header.BlockHash())
	require.Equal(t, fb.Prev, block.Header.PrevBlock)
}

func TestReadDetect_WrongNetworkMagicFindsNothing(t *testing.T) {
	dir := t.TempDir()

	writeBlockFile(t, dir, "blk00000.dat", uint32(wire.TestNet3), makeBlock(&chainhash.Hash{}, 1))

	rd, err := NewReadDetect(dir, itypes.NetworkMainnet, logger.NewNopLogger())
	require.NoError(t, err)
	defer rd.Close()

	blocks := collectFileBlocks(t, rd)
	require.Empty(t, blocks)
}
