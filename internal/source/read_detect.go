package source

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goran-ethernal/BlockStreamor/internal/common"
	"github.com/goran-ethernal/BlockStreamor/internal/logger"
	"github.com/goran-ethernal/BlockStreamor/internal/metrics"
	itypes "github.com/goran-ethernal/BlockStreamor/internal/types"
)

// FileBlock is a block located on disk but not yet read into memory. Next is
// filled in by the reorderer as successor blocks are discovered.
type FileBlock struct {
	Start int64
	End   int64
	Hash  chainhash.Hash
	Prev  chainhash.Hash
	Next  []chainhash.Hash

	file *os.File
}

// ReadBlock reads the block's byte range from its file and decodes it.
func (fb *FileBlock) ReadBlock() (*wire.MsgBlock, error) {
	r := io.NewSectionReader(fb.file, fb.Start, fb.End-fb.Start)

	var block wire.MsgBlock
	if err := block.Deserialize(r); err != nil {
		return nil, fmt.Errorf("failed to decode block %s from %s: %w", fb.Hash, fb.file.Name(), err)
	}

	return &block, nil
}

// seenSet tracks block hashes already emitted, keyed by the first 12 bytes
// of the hash. The truncation halves memory against a full-hash set while 96
// bits stay ample against accidental collision; a collision only suppresses
// a duplicate emission because downstream dedup is hash-based.
type seenSet map[[12]byte]struct{}

// insert returns true when the hash was not seen before.
func (s seenSet) insert(hash *chainhash.Hash) bool {
	var key [12]byte
	copy(key[:], hash[:12])
	if _, ok := s[key]; ok {
		return false
	}
	s[key] = struct{}{}
	return true
}

// FileBlockSource is a pull-based, possibly-fallible sequence of file block
// records. A (nil, nil) return signals the end of the sequence.
type FileBlockSource interface {
	Next() (*FileBlock, error)
	Close() error
}

// Compile-time check to ensure ReadDetect implements FileBlockSource.
var _ FileBlockSource = (*ReadDetect)(nil)

// ReadDetect scans a node's blk*.dat files in sorted name order and emits
// one FileBlock per distinct block found, in discovery order. Duplicates
// across files are common because the node may rewrite them; they are
// filtered through a seenSet.
type ReadDetect struct {
	log     *logger.Logger
	magic   uint32
	paths   []string
	pathIdx int
	pending []*FileBlock
	seen    seenSet
	files   []*os.File
}

// NewReadDetect enumerates the blk*.dat files under blocksDir for the given
// network. A bad directory or glob is a construction-time error.
func NewReadDetect(blocksDir string, network itypes.Network, log *logger.Logger) (*ReadDetect, error) {
	if _, err := os.Stat(blocksDir); err != nil {
		return nil, fmt.Errorf("bad blocks directory %q: %w", blocksDir, err)
	}

	pattern := filepath.Join(blocksDir, "blk*.dat")
	log = log.WithComponent(common.ComponentReadDetect)
	log.Infow("listing block files", "glob", pattern)

	paths, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad block file glob %q: %w", pattern, err)
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		log.Warnw("no block files found, is the blocks directory correct?", "dir", blocksDir)
	} else {
		log.Infow("block files listed", "count", len(paths))
	}

	return &ReadDetect{
		log:   log,
		magic: uint32(network.Magic()),
		paths: paths,
		seen:  make(seenSet),
	}, nil
}

// Next returns the next distinct block found on disk, or (nil, nil) once
// every file has been scanned.
func (rd *ReadDetect) Next() (*FileBlock, error) {
	for {
		if len(rd.pending) > 0 {
			fb := rd.pending[0]
			rd.pending = rd.pending[1:]
			return fb, nil
		}

		if rd.pathIdx >= len(rd.paths) {
			return nil, nil
		}

		path := rd.paths[rd.pathIdx]
		rd.pathIdx++

		if err := rd.scanFile(path); err != nil {
			return nil, err
		}
	}
}

// scanFile scans one file and queues its previously-unseen blocks. The file
// stays open: the queued FileBlocks read their byte ranges from it lazily.
func (rd *ReadDetect) scanFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open block file: %w", err)
	}

	detected, err := detectBlocks(f, rd.magic, rd.log)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to scan %s: %w", path, err)
	}
	rd.files = append(rd.files, f)
	metrics.BlocksScannedAdd(len(detected))

	pending := make([]*FileBlock, 0, len(detected))
	for _, d := range detected {
		if !rd.seen.insert(&d.hash) {
			metrics.DuplicateBlockInc()
			continue
		}
		pending = append(pending, &FileBlock{
			Start: d.start,
			End:   d.end,
			Hash:  d.hash,
			Prev:  d.prev,
			file:  f,
		})
	}

	rd.log.Debugw("scanned block file",
		"path", path,
		"blocks", len(detected),
		"new", len(pending),
	)

	rd.pending = pending
	return nil
}

// Close closes every block file opened so far. FileBlocks emitted earlier
// must not be read after Close.
func (rd *ReadDetect) Close() error {
	var firstErr error
	for _, f := range rd.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	rd.files = nil
	return firstErr
}
