// Package stream defines the pull-based block stream contract produced by
// both the disk and the RPC sources.
package stream

import "github.com/goran-ethernal/BlockStreamor/pkg/types"

// BlockStream is a pull-based, possibly-fallible sequence of canonical
// blocks. Next blocks until a block is available, the stream ends, or an
// unrecoverable error occurs.
//
// A (nil, nil) return signals end of stream; the disk source ends when all
// block files are exhausted, the RPC source only after Close. Any error is
// fatal for the stream.
type BlockStream interface {
	Next() (*types.CanonicalBlock, error)
	Close() error
}
