package source

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// makeBlock builds a minimal decodable block whose header links to prev.
// The nonce keeps sibling hashes distinct.
func makeBlock(prev *chainhash.Hash, nonce uint32) *wire.MsgBlock {
	var merkle chainhash.Hash
	binary.LittleEndian.PutUint32(merkle[:4], nonce)

	return &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:    1,
			PrevBlock:  *prev,
			MerkleRoot: merkle,
			Timestamp:  time.Unix(1600000000+int64(nonce), 0),
			Bits:       0x207fffff,
			Nonce:      nonce,
		},
	}
}

// makeChain builds n blocks where each block links to the one before it,
// starting from prev.
func makeChain(prev *chainhash.Hash, n int, seed uint32) []*wire.MsgBlock {
	blocks := make([]*wire.MsgBlock, 0, n)
	for i := 0; i < n; i++ {
		b := makeBlock(prev, seed+uint32(i))
		hash := b.Header.BlockHash()
		prev = &hash
		blocks = append(blocks, b)
	}
	return blocks
}

// appendBlockRecord appends one on-disk block record: magic, length, block.
func appendBlockRecord(t *testing.T, buf *bytes.Buffer, magic uint32, block *wire.MsgBlock) {
	t.Helper()

	var body bytes.Buffer
	require.NoError(t, block.Serialize(&body))

	require.NoError(t, binary.Write(buf, binary.LittleEndian, magic))
	require.NoError(t, binary.Write(buf, binary.LittleEndian, uint32(body.Len())))
	_, err := buf.Write(body.Bytes())
	require.NoError(t, err)
}

// writeBlockFile writes a blk*.dat style file holding the given blocks.
func writeBlockFile(t *testing.T, dir, name string, magic uint32, blocks ...*wire.MsgBlock) string {
	t.Helper()

	var buf bytes.Buffer
	for _, b := range blocks {
		appendBlockRecord(t, &buf, magic, b)
	}

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}
