package source

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goran-ethernal/BlockStreamor/internal/logger"
	"github.com/goran-ethernal/BlockStreamor/internal/metrics"
)

// rollingU32 is a 32-bit window over the last four bytes of a stream, with
// the most recent byte in the high position. It lets a single forward pass
// find every magic occurrence without seeking or re-reading.
type rollingU32 uint32

func (r *rollingU32) push(b byte) {
	*r = *r>>8 | rollingU32(b)<<24
}

func (r rollingU32) value() uint32 {
	return uint32(r)
}

// detectedBlock is one block located inside a file, identified by its byte
// range and the hashes read from its header.
type detectedBlock struct {
	start int64
	end   int64
	hash  chainhash.Hash
	prev  chainhash.Hash
}

// countingReader tracks the stream position across both the byte-wise magic
// scan and the block decode, which consumes an unknown number of bytes on
// failure.
type countingReader struct {
	r *bufio.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}

func (cr *countingReader) ReadByte() (byte, error) {
	b, err := cr.r.ReadByte()
	if err == nil {
		cr.n++
	}
	return b, err
}

// detectBlocks scans one block file front to back and returns the blocks it
// contains, in file order. A block that fails to decode is logged and
// skipped; the scan re-synchronizes at the next magic occurrence. A trailing
// partial block is tolerated. Any other I/O error aborts the scan.
func detectBlocks(r io.Reader, magic uint32, log *logger.Logger) ([]detectedBlock, error) {
	cr := &countingReader{r: bufio.NewReaderSize(r, 1<<20)}
	var rolling rollingU32

	blocks := make([]detectedBlock, 0, 128)

	for {
		b, err := cr.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read block file at offset %d: %w", cr.n, err)
		}

		rolling.push(b)
		if rolling.value() != magic {
			continue
		}

		var sizeBuf [4]byte
		if _, err := io.ReadFull(cr, sizeBuf[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, fmt.Errorf("failed to read block length at offset %d: %w", cr.n, err)
		}
		declaredSize := binary.LittleEndian.Uint32(sizeBuf[:])

		start := cr.n

		var block wire.MsgBlock
		if err := block.Deserialize(cr); err != nil {
			// The stream position has advanced by an unknown amount; the
			// next magic occurrence re-synchronizes the scan.
			log.Errorw("failed to decode block, scanning for next magic",
				"offset", start,
				"error", err,
			)
			metrics.CorruptBlockInc()
			continue
		}

		end := cr.n
		if end-start != int64(declaredSize) {
			return nil, fmt.Errorf("block at offset %d spans %d bytes but declares %d",
				start, end-start, declaredSize)
		}

		blocks = append(blocks, detectedBlock{
			start: start,
			end:   end,
			hash:  block.Header.BlockHash(),
			prev:  block.Header.PrevBlock,
		})
	}

	return blocks, nil
}
