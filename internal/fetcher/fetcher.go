package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goran-ethernal/BlockStreamor/internal/common"
	"github.com/goran-ethernal/BlockStreamor/internal/logger"
	"github.com/goran-ethernal/BlockStreamor/internal/metrics"
	pkgrpc "github.com/goran-ethernal/BlockStreamor/pkg/rpc"
	"github.com/goran-ethernal/BlockStreamor/pkg/stream"
	"github.com/goran-ethernal/BlockStreamor/pkg/types"
)

// Mode is the coordinator's operating mode.
type Mode string

const (
	// ModeFastSync fetches with a parallel worker pool while behind the
	// node's tip.
	ModeFastSync Mode = "fast-sync"

	// ModeTipTracking polls with a single worker once the tip is reached.
	ModeTipTracking Mode = "tip-tracking"
)

const (
	fastSyncWorkers    = 8
	tipTrackingWorkers = 1

	// channel capacity per worker
	channelCapacityPerWorker = 64

	// prevHashWindowSize is how deep a reorg the fetcher can detect.
	prevHashWindowSize = 1000

	retryLogInterval = 10
)

// ErrDeepReorg is returned when a reorg reaches below the prev-hash window.
var ErrDeepReorg = errors.New("reorg deeper than the prev-hash window")

// Compile-time check to ensure Fetcher implements stream.BlockStream.
var _ stream.BlockStream = (*Fetcher)(nil)

// Fetcher pulls blocks from a node RPC in parallel and delivers them as a
// gap-free, height-ordered stream, detecting reorgs along the way.
//
// The fetcher has no access to persistent storage and does not know what has
// already been indexed; callers resume it by passing the last indexed block.
// That makes it composable: it is the smallest possible indexer, one that
// only fetches blocks and detects reorgs.
//
// On a reorg the delivered sequence steps back one height and continues on
// the new chain:
//
//	1, 2, 3, 4, ..., 2, 3, 4 ...
type Fetcher struct {
	rpc pkgrpc.Client
	log *logger.Logger
	ctx context.Context

	// mu serializes Next against Close.
	mu sync.Mutex

	out        chan *types.CanonicalBlock
	stopFlag   *atomic.Bool
	threadNum  int
	mode       Mode
	curHeight  types.BlockHeight
	prevHashes map[types.BlockHeight]chainhash.Hash

	// Blocks that arrived before the block we are actually waiting for.
	reorderBuf map[types.BlockHeight]*types.CanonicalBlock

	endOfFastSync types.BlockHeight

	quit   chan struct{}
	closed atomic.Bool
}

// New creates a Fetcher and starts its worker pool. When lastBlock is given
// the stream resumes at the following height; otherwise it starts at
// genesis. The node's tip height is queried once to decide where fast sync
// ends.
func New(
	ctx context.Context,
	rpcClient pkgrpc.Client,
	lastBlock *types.BlockPosition,
	log *logger.Logger,
) (*Fetcher, error) {
	if rpcClient == nil {
		return nil, errors.New("RPC client is required")
	}
	if log == nil {
		return nil, errors.New("Logger is required")
	}

	f := &Fetcher{
		rpc:        rpcClient,
		log:        log.WithComponent(common.ComponentFetcher),
		ctx:        ctx,
		threadNum:  fastSyncWorkers,
		mode:       ModeFastSync,
		prevHashes: make(map[types.BlockHeight]chainhash.Hash),
		reorderBuf: make(map[types.BlockHeight]*types.CanonicalBlock),
		quit:       make(chan struct{}),
	}

	tip, err := f.tipHeightRetrying(ctx)
	if err != nil {
		return nil, err
	}
	f.endOfFastSync = tip

	if lastBlock != nil {
		f.prevHashes[lastBlock.Height] = lastBlock.Hash
		f.curHeight = lastBlock.Height + 1
		f.log.Infow("starting block fetcher", "height", f.curHeight, "tip", tip)
	} else {
		f.log.Infow("starting block fetcher at genesis", "tip", tip)
	}

	f.startWorkers()

	return f, nil
}

// tipHeightRetrying queries the node's tip, retrying transient failures
// indefinitely; only context cancellation gives up.
func (f *Fetcher) tipHeightRetrying(ctx context.Context) (types.BlockHeight, error) {
	attempt := 0
	for {
		tip, err := f.rpc.TipHeight(ctx)
		if err == nil {
			return tip, nil
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if attempt%retryLogInterval == 0 {
			f.log.Warnw("failed to query tip height, retrying", "error", err)
		}
		attempt++
		time.Sleep(f.rpc.ErrorRetryDelay())
	}
}

// Mode returns the coordinator's current operating mode.
func (f *Fetcher) Mode() Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

func (f *Fetcher) startWorkers() {
	stop := &atomic.Bool{}
	f.stopFlag = stop
	f.out = make(chan *types.CanonicalBlock, f.threadNum*channelCapacityPerWorker)

	next := &atomic.Uint32{}
	next.Store(f.curHeight)
	inProgress := newHeightSet()

	var wg sync.WaitGroup
	for i := 0; i < f.threadNum; i++ {
		w := &worker{
			rpc:        f.rpc,
			log:        f.log,
			nextHeight: next,
			stop:       stop,
			inProgress: inProgress,
			out:        f.out,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(f.ctx)
		}()
	}

	// The channel closes when the last worker exits, which is what lets
	// stopWorkers drain to completion.
	out := f.out
	go func() {
		wg.Wait()
		close(out)
	}()
}

// stopWorkers signals the pool to stop, drains the channel so workers
// blocked on send can exit, and discards any out-of-order blocks.
func (f *Fetcher) stopWorkers() {
	f.stopFlag.Store(true)

	for range f.out {
	}

	f.out = nil
	clear(f.reorderBuf)
}

// Next returns the next canonical block. Across a reorg event the height
// steps back by one and the stream continues on the new chain. It returns
// (nil, nil) after Close.
func (f *Fetcher) Next() (*types.CanonicalBlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed.Load() || f.out == nil {
		return nil, nil
	}

	if f.mode == ModeFastSync && f.curHeight >= f.endOfFastSync {
		f.log.Debugw("end of fast sync, switching to a single worker", "height", f.curHeight)
		f.stopWorkers()
		f.threadNum = tipTrackingWorkers
		f.mode = ModeTipTracking
		f.startWorkers()
		metrics.WorkerRestartInc()
	}

retryOnReorg:
	for {
		if cb, ok := f.reorderBuf[f.curHeight]; ok {
			delete(f.reorderBuf, f.curHeight)

			reorg, err := f.trackReorgs(cb)
			if err != nil {
				return nil, err
			}
			if reorg {
				if err := f.resetOnReorg(); err != nil {
					return nil, err
				}
				continue retryOnReorg
			}

			f.curHeight++
			metrics.BlockDelivered("rpc", cb.Height)
			return cb, nil
		}

		for {
			select {
			case cb, ok := <-f.out:
				if !ok {
					return nil, errors.New("fetcher workers disconnected")
				}

				if cb.Height < f.curHeight {
					return nil, fmt.Errorf("received block %dH below current height %dH",
						cb.Height, f.curHeight)
				}

				if cb.Height > f.curHeight {
					f.reorderBuf[cb.Height] = cb
					continue
				}

				reorg, err := f.trackReorgs(cb)
				if err != nil {
					return nil, err
				}
				if reorg {
					if err := f.resetOnReorg(); err != nil {
						return nil, err
					}
					continue retryOnReorg
				}

				f.curHeight++
				metrics.BlockDelivered("rpc", cb.Height)
				return cb, nil

			case <-f.quit:
				return nil, nil
			}
		}
	}
}

// trackReorgs records the block's hash in the prev-hash window and reports
// whether the block's prev hash contradicts what was recorded one height
// below, which means the recorded block was abandoned.
func (f *Fetcher) trackReorgs(cb *types.CanonicalBlock) (bool, error) {
	if f.curHeight > 0 {
		if stored, ok := f.prevHashes[f.curHeight-1]; ok {
			if stored != *cb.PrevID() {
				f.log.Warnw("reorg detected",
					"height", f.curHeight,
					"recorded", stored,
					"block_prev", cb.PrevID(),
				)
				return true, nil
			}
		} else {
			minH, maxH, ok := f.windowBounds()
			if !ok {
				return false, errors.New("prev-hash window is empty")
			}
			if f.curHeight < minH {
				return false, fmt.Errorf("%w: no recorded hash for %dH",
					ErrDeepReorg, f.curHeight-1)
			}
			if f.curHeight != maxH+1 {
				for h, hash := range f.prevHashes {
					f.log.Debugw("recorded prev hash", "height", h, "hash", hash)
				}
				return false, fmt.Errorf("no prev hash for new block %dH %s; max recorded %dH",
					f.curHeight, cb.ID, maxH)
			}
		}
	}

	f.prevHashes[f.curHeight] = cb.ID
	if f.curHeight >= prevHashWindowSize {
		delete(f.prevHashes, f.curHeight-prevHashWindowSize)
	}

	return false, nil
}

func (f *Fetcher) windowBounds() (minH, maxH types.BlockHeight, ok bool) {
	for h := range f.prevHashes {
		if !ok {
			minH, maxH, ok = h, h, true
			continue
		}
		if h < minH {
			minH = h
		}
		if h > maxH {
			maxH = h
		}
	}
	return minH, maxH, ok
}

// resetOnReorg stops all workers (discarding their work), steps the cursor
// back one block and starts the pool again. Successive detections walk the
// cursor backward one block per cycle until a consistent parent is found.
//
// This doesn't have to be blazing fast, so it isn't.
func (f *Fetcher) resetOnReorg() error {
	if f.curHeight == 0 {
		return errors.New("cannot rewind below genesis")
	}

	f.log.Debugw("resetting on reorg", "from", f.curHeight, "to", f.curHeight-1)
	metrics.ReorgDetectedInc()

	f.stopWorkers()
	f.curHeight--
	f.startWorkers()
	metrics.WorkerRestartInc()

	return nil
}

// Close stops the worker pool and ends the stream. It is safe to call
// concurrently with Next.
func (f *Fetcher) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	close(f.quit)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.out != nil {
		f.stopWorkers()
	}
	return nil
}
