// Package rpc defines the minimum node interface the block fetcher consumes.
package rpc

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goran-ethernal/BlockStreamor/pkg/types"
)

// Client is the minimum node RPC surface for fetching blocks. All methods
// may fail transiently; callers treat any returned error as retryable.
type Client interface {
	// TipHeight returns the height of the node's best block.
	TipHeight(ctx context.Context) (types.BlockHeight, error)

	// HashAtHeight returns the hash of the block at the given height, or
	// nil when the node's tip has not reached that height yet.
	HashAtHeight(ctx context.Context, height types.BlockHeight) (*chainhash.Hash, error)

	// BlockByHash returns the decoded block, or nil when the node does not
	// know the hash.
	BlockByHash(ctx context.Context, hash *chainhash.Hash) (*wire.MsgBlock, error)

	// HeadRetryDelay is the recommended poll interval while waiting for the
	// tip to advance.
	HeadRetryDelay() time.Duration

	// ErrorRetryDelay is the recommended base back-off after a failed call.
	ErrorRetryDelay() time.Duration
}
