// Package types holds the block currency types shared between the disk and
// RPC sources and their consumers.
package types

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// BlockHeight is a 0-based block index along the canonical chain.
type BlockHeight = uint32

// CanonicalBlock is a decoded block annotated with its position on the
// canonical chain. The stream of CanonicalBlocks is strictly increasing in
// height by 1, except across a reorg rewind where it decreases by 1 and
// continues on the new chain.
type CanonicalBlock struct {
	Height BlockHeight
	ID     chainhash.Hash
	Data   *wire.MsgBlock
}

// PrevID returns the hash of the previous block, taken from the header.
func (b *CanonicalBlock) PrevID() *chainhash.Hash {
	return &b.Data.Header.PrevBlock
}

// Transactions returns the block's transaction list.
func (b *CanonicalBlock) Transactions() []*wire.MsgTx {
	return b.Data.Transactions
}

// BlockPosition identifies a block by height and hash. Used to resume the
// RPC fetcher from the last block a consumer has already indexed.
type BlockPosition struct {
	Height BlockHeight
	Hash   chainhash.Hash
}
