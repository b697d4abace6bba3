package source

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goran-ethernal/BlockStreamor/internal/common"
	"github.com/goran-ethernal/BlockStreamor/internal/logger"
	"github.com/goran-ethernal/BlockStreamor/internal/metrics"
	itypes "github.com/goran-ethernal/BlockStreamor/internal/types"
	"github.com/goran-ethernal/BlockStreamor/pkg/stream"
	"github.com/goran-ethernal/BlockStreamor/pkg/types"
)

// maxBlocksToReorder bounds the out-of-order buffer. Bitcoin Core's download
// window is 1024 blocks, but files observed in practice need more headroom.
// Exceeding the cap signals a pathological input or a defect in the release
// rule, not normal operation.
const maxBlocksToReorder = 10_000

// ErrReorderOverflow is returned when the out-of-order buffer exceeds
// maxBlocksToReorder.
var ErrReorderOverflow = errors.New("reorder buffer overflow")

// outOfOrderBlocks buffers blocks discovered in file order until they can be
// released in chain order. Blocks are held in an arena keyed by hash, with
// children linked by hash rather than by reference.
type outOfOrderBlocks struct {
	byHash          map[chainhash.Hash]*FileBlock
	pendingChildren map[chainhash.Hash][]chainhash.Hash
	maxReorg        int
}

func newOutOfOrderBlocks(maxReorg int) *outOfOrderBlocks {
	return &outOfOrderBlocks{
		byHash:          make(map[chainhash.Hash]*FileBlock),
		pendingChildren: make(map[chainhash.Hash][]chainhash.Hash),
		maxReorg:        maxReorg,
	}
}

func (o *outOfOrderBlocks) add(fb *FileBlock) {
	o.pendingChildren[fb.Prev] = append(o.pendingChildren[fb.Prev], fb.Hash)

	if children, ok := o.pendingChildren[fb.Hash]; ok {
		fb.Next = append(fb.Next, children...)
		delete(o.pendingChildren, fb.Hash)
	}

	if parent, ok := o.byHash[fb.Prev]; ok {
		parent.Next = append(parent.Next, fb.Hash)
	}

	o.byHash[fb.Hash] = fb
}

// firstAtDepth walks the successor DAG depth-first, children in discovery
// order, and returns the first-hop hash of the first path reaching maxReorg
// links below the given block. A nil return means no branch is that deep yet.
func (o *outOfOrderBlocks) firstAtDepth(hash *chainhash.Hash, path []chainhash.Hash) *chainhash.Hash {
	if len(path) == o.maxReorg {
		first := path[0]
		return &first
	}

	fb, ok := o.byHash[*hash]
	if !ok {
		return nil
	}

	for i := range fb.Next {
		next := fb.Next[i]
		childPath := append(append(make([]chainhash.Hash, 0, len(path)+1), path...), next)
		if found := o.firstAtDepth(&next, childPath); found != nil {
			return found
		}
	}

	return nil
}

// remove releases the block identified by hash once it has maxReorg
// descendants on some branch, rewriting its Next to the single chosen
// successor. A nil return means the block is not yet releasable.
func (o *outOfOrderBlocks) remove(hash *chainhash.Hash, log *logger.Logger) *FileBlock {
	next := o.firstAtDepth(hash, nil)
	if next == nil {
		return nil
	}

	fb := o.byHash[*hash]
	delete(o.byHash, *hash)

	if len(fb.Next) > 1 {
		log.Warnw("fork in out-of-order blocks",
			"block", fb.Hash,
			"children", fb.Next,
			"took", next,
		)
	}
	fb.Next = []chainhash.Hash{*next}

	return fb
}

// Compile-time check to ensure Reorder implements stream.BlockStream.
var _ stream.BlockStream = (*Reorder)(nil)

// Reorder turns the detector's file-discovery order into canonical chain
// order. It follows prev-hash links starting at the network's genesis block
// and only releases a block after observing maxReorg descendants, so blocks
// on short-lived forks are discarded rather than emitted.
type Reorder struct {
	src    FileBlockSource
	log    *logger.Logger
	blocks *outOfOrderBlocks
	height types.BlockHeight
	next   chainhash.Hash
}

// NewReorder creates a Reorder consuming the given file block source.
func NewReorder(network itypes.Network, maxReorgDepth int, src FileBlockSource, log *logger.Logger) *Reorder {
	return &Reorder{
		src:    src,
		log:    log.WithComponent(common.ComponentReorder),
		blocks: newOutOfOrderBlocks(maxReorgDepth),
		height: 0,
		next:   *network.GenesisHash(),
	}
}

// Next returns the next block in canonical chain order, or (nil, nil) when
// the source is exhausted and no further block is releasable.
func (r *Reorder) Next() (*types.CanonicalBlock, error) {
	for {
		if fb := r.blocks.remove(&r.next, r.log); fb != nil {
			block, err := fb.ReadBlock()
			if err != nil {
				return nil, err
			}

			cb := &types.CanonicalBlock{
				Height: r.height,
				ID:     fb.Hash,
				Data:   block,
			}

			r.next = fb.Next[0]
			delete(r.blocks.pendingChildren, fb.Hash)
			// The parent was already removed from byHash when it was
			// released, so this delete is a defensive no-op; fork siblings
			// of the released block stay buffered.
			delete(r.blocks.byHash, fb.Prev)
			r.height++

			metrics.BlockDelivered("disk", cb.Height)
			return cb, nil
		}

		fb, err := r.src.Next()
		if err != nil {
			return nil, err
		}
		if fb == nil {
			return nil, nil
		}

		if len(r.blocks.byHash) > maxBlocksToReorder {
			return nil, fmt.Errorf("%w: %d blocks buffered while waiting for %s",
				ErrReorderOverflow, len(r.blocks.byHash), r.next)
		}
		r.blocks.add(fb)
	}
}

// Close releases the underlying source.
func (r *Reorder) Close() error {
	return r.src.Close()
}
