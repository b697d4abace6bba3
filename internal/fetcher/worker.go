package fetcher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goran-ethernal/BlockStreamor/internal/logger"
	pkgrpc "github.com/goran-ethernal/BlockStreamor/pkg/rpc"
	"github.com/goran-ethernal/BlockStreamor/pkg/types"
)

// heightSet is a mutex-guarded set of the heights currently being fetched.
// It only ever holds one entry per worker, so the min scan is trivial. The
// lock is never held across I/O.
type heightSet struct {
	mu      sync.Mutex
	heights map[types.BlockHeight]struct{}
}

func newHeightSet() *heightSet {
	return &heightSet{heights: make(map[types.BlockHeight]struct{})}
}

func (s *heightSet) insert(h types.BlockHeight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heights[h] = struct{}{}
}

func (s *heightSet) remove(h types.BlockHeight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.heights, h)
}

func (s *heightSet) min() (types.BlockHeight, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var min types.BlockHeight
	found := false
	for h := range s.heights {
		if !found || h < min {
			min = h
			found = true
		}
	}
	return min, found
}

// worker is one goroutine of the fetch pool. Workers claim heights from the
// shared atomic counter, pull the block for each claimed height from the
// node, and push it onto the shared channel. Retryable failures never reach
// the coordinator; they are absorbed here with back-off.
type worker struct {
	rpc        pkgrpc.Client
	log        *logger.Logger
	nextHeight *atomic.Uint32
	stop       *atomic.Bool
	inProgress *heightSet
	out        chan<- *types.CanonicalBlock
}

func (w *worker) run(ctx context.Context) {
	for {
		if w.stop.Load() || ctx.Err() != nil {
			return
		}

		height := w.nextHeight.Add(1) - 1
		w.inProgress.insert(height)
		delivered := w.fetchHeight(ctx, height)
		w.inProgress.remove(height)

		if !delivered {
			return
		}
	}
}

// fetchHeight retries the given height until the block is sent or the pool
// is stopping. A "not found" answer means the tip has not reached the height
// yet and is polled at the node's recommended head delay.
func (w *worker) fetchHeight(ctx context.Context, height types.BlockHeight) bool {
	retryCount := 0
	for {
		if w.stop.Load() || ctx.Err() != nil {
			return false
		}

		hash, err := w.rpc.HashAtHeight(ctx, height)
		if err != nil {
			w.backoff(height)
			retryCount++
			if retryCount%retryLogInterval == 0 {
				w.log.Debugw("worker retrying rpc error", "height", height, "error", err)
			}
			continue
		}
		if hash == nil {
			time.Sleep(w.rpc.HeadRetryDelay())
			continue
		}

		block, err := w.rpc.BlockByHash(ctx, hash)
		if err != nil {
			w.backoff(height)
			retryCount++
			if retryCount%retryLogInterval == 0 {
				w.log.Debugw("worker retrying rpc error", "height", height, "error", err)
			}
			continue
		}
		if block == nil {
			// The block vanished between the two calls; re-resolve the hash.
			time.Sleep(w.rpc.HeadRetryDelay())
			continue
		}

		w.out <- &types.CanonicalBlock{
			Height: height,
			ID:     *hash,
			Data:   block,
		}
		return true
	}
}

// backoff sleeps proportionally to how far this worker has raced ahead of
// the slowest in-flight height, so workers past a transient failure don't
// hammer the node.
func (w *worker) backoff(height types.BlockHeight) {
	var ahead types.BlockHeight
	if min, ok := w.inProgress.min(); ok && height > min {
		ahead = height - min
	}
	time.Sleep(w.rpc.ErrorRetryDelay() * time.Duration(1+ahead))
}
