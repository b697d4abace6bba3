package rpc

import (
	"errors"
	"strings"

	"github.com/btcsuite/btcd/btcjson"
)

// isHeightOutOfRange reports whether the error means the requested height is
// above the node's tip. bitcoind answers getblockhash past the tip with
// RPC_INVALID_PARAMETER and "Block height out of range"; btcd uses
// ErrRPCOutOfRange.
func isHeightOutOfRange(err error) bool {
	if err == nil {
		return false
	}

	var rpcErr *btcjson.RPCError
	if errors.As(err, &rpcErr) {
		if rpcErr.Code == btcjson.ErrRPCInvalidParameter || rpcErr.Code == btcjson.ErrRPCOutOfRange {
			return true
		}
	}

	return strings.Contains(err.Error(), "Block height out of range") ||
		strings.Contains(err.Error(), "Block number out of range")
}

// isBlockNotFound reports whether the error means the node does not know the
// requested block hash.
func isBlockNotFound(err error) bool {
	if err == nil {
		return false
	}

	var rpcErr *btcjson.RPCError
	if errors.As(err, &rpcErr) {
		if rpcErr.Code == btcjson.ErrRPCBlockNotFound || rpcErr.Code == btcjson.ErrRPCInvalidAddressOrKey {
			return true
		}
	}

	return strings.Contains(err.Error(), "Block not found")
}
