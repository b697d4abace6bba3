// Package bench drains a block stream while reporting throughput, for
// measuring how fast a source can feed an indexer.
package bench

import (
	"time"

	"github.com/goran-ethernal/BlockStreamor/internal/common"
	"github.com/goran-ethernal/BlockStreamor/internal/logger"
	"github.com/goran-ethernal/BlockStreamor/pkg/stream"
)

const reportPeriod = time.Second

// Run pulls blocks from the stream until it ends or fails, logging blocks/s
// and txs/s once per period and a cumulative summary at the end.
func Run(s stream.BlockStream, log *logger.Logger) error {
	log = log.WithComponent(common.ComponentBench)

	start := time.Now()
	windowStart := start

	var windowBlocks, windowTxs uint64
	var totalBlocks, totalTxs uint64

	for {
		cb, err := s.Next()
		if err != nil {
			return err
		}
		if cb == nil {
			elapsed := time.Since(start).Seconds()
			if elapsed > 0 {
				log.Infow("stream ended",
					"blocks", totalBlocks,
					"txs", totalTxs,
					"blocks_per_s", float64(totalBlocks)/elapsed,
					"txs_per_s", float64(totalTxs)/elapsed,
				)
			}
			return nil
		}

		txs := uint64(len(cb.Transactions()))
		windowBlocks++
		windowTxs += txs
		totalBlocks++
		totalTxs += txs

		if elapsed := time.Since(windowStart); elapsed >= reportPeriod {
			log.Infow("progress",
				"height", cb.Height,
				"blocks_per_s", float64(windowBlocks)/elapsed.Seconds(),
				"txs_per_s", float64(windowTxs)/elapsed.Seconds(),
				"blocks_total", totalBlocks,
				"txs_total", totalTxs,
			)
			windowStart = time.Now()
			windowBlocks = 0
			windowTxs = 0
		}
	}
}
