package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/goran-ethernal/BlockStreamor/internal/common"
	"github.com/goran-ethernal/BlockStreamor/internal/logger"
	"github.com/goran-ethernal/BlockStreamor/internal/metrics"
	"github.com/goran-ethernal/BlockStreamor/pkg/config"
	pkgrpc "github.com/goran-ethernal/BlockStreamor/pkg/rpc"
	"github.com/goran-ethernal/BlockStreamor/pkg/types"
)

// Compile-time check to ensure Client implements pkgrpc.Client interface.
var _ pkgrpc.Client = (*Client)(nil)

const (
	// headRetryDelay is the recommended poll interval while the node's tip
	// has not reached the requested height yet.
	headRetryDelay = 2 * time.Second

	// errorRetryDelay is the recommended base back-off after a failed call.
	errorRetryDelay = 100 * time.Millisecond
)

// Client wraps the bitcoind JSON-RPC client with the minimum block-fetching
// surface. It implements the pkgrpc.Client interface.
type Client struct {
	rpc         *rpcclient.Client
	retryConfig *config.RetryConfig
	log         *logger.Logger
}

// NewClient creates a new RPC client for the node described by info.
func NewClient(info *Info, retryConfig *config.RetryConfig, log *logger.Logger) (*Client, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         info.Host,
		User:         info.User,
		Pass:         info.Pass,
		DisableTLS:   info.DisableTLS,
		HTTPPostMode: true,
	}

	rpcClient, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create node rpc client: %w", err)
	}

	return &Client{
		rpc:         rpcClient,
		retryConfig: retryConfig,
		log:         log.WithComponent(common.ComponentRPC),
	}, nil
}

// Close shuts down the RPC client connection.
func (c *Client) Close() {
	c.rpc.Shutdown()
}

// TipHeight returns the height of the node's best block.
func (c *Client) TipHeight(ctx context.Context) (types.BlockHeight, error) {
	start := time.Now()
	metrics.RPCMethodInc("getblockcount")
	defer func() {
		metrics.RPCMethodDuration("getblockcount", time.Since(start))
	}()

	var count int64
	err := retryWithBackoff(ctx, c.retryConfig, "getblockcount", func() error {
		var fetchErr error
		count, fetchErr = c.rpc.GetBlockCount()
		return fetchErr
	})

	if err != nil {
		metrics.RPCMethodError("getblockcount")
		return 0, err
	}

	return types.BlockHeight(count), nil
}

// HashAtHeight returns the hash of the block at the given height, or nil
// when the node's tip is still below it.
func (c *Client) HashAtHeight(ctx context.Context, height types.BlockHeight) (*chainhash.Hash, error) {
	start := time.Now()
	metrics.RPCMethodInc("getblockhash")
	defer func() {
		metrics.RPCMethodDuration("getblockhash", time.Since(start))
	}()

	var hash *chainhash.Hash
	err := retryWithBackoff(ctx, c.retryConfig, "getblockhash", func() error {
		var fetchErr error
		hash, fetchErr = c.rpc.GetBlockHash(int64(height))
		if isHeightOutOfRange(fetchErr) {
			hash = nil
			return nil
		}
		return fetchErr
	})

	if err != nil {
		metrics.RPCMethodError("getblockhash")
		return nil, err
	}

	return hash, nil
}

// BlockByHash returns the decoded block, or nil when the node does not know
// the hash.
func (c *Client) BlockByHash(ctx context.Context, hash *chainhash.Hash) (*wire.MsgBlock, error) {
	start := time.Now()
	metrics.RPCMethodInc("getblock")
	defer func() {
		metrics.RPCMethodDuration("getblock", time.Since(start))
	}()

	var block *wire.MsgBlock
	err := retryWithBackoff(ctx, c.retryConfig, "getblock", func() error {
		var fetchErr error
		block, fetchErr = c.rpc.GetBlock(hash)
		if isBlockNotFound(fetchErr) {
			block = nil
			return nil
		}
		return fetchErr
	})

	if err != nil {
		metrics.RPCMethodError("getblock")
		return nil, err
	}

	return block, nil
}

// HeadRetryDelay returns the recommended poll interval when ahead of the tip.
func (c *Client) HeadRetryDelay() time.Duration {
	return headRetryDelay
}

// ErrorRetryDelay returns the recommended base back-off on errors.
func (c *Client) ErrorRetryDelay() time.Duration {
	return errorRetryDelay
}
