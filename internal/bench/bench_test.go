package bench

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goran-ethernal/BlockStreamor/internal/logger"
	"github.com/goran-ethernal/BlockStreamor/pkg/types"
	"github.com/stretchr/testify/require"
)

// fakeStream replays a fixed block sequence, then ends or fails.
type fakeStream struct {
	blocks []*types.CanonicalBlock
	err    error
	pulled int
	closed bool
}

func (s *fakeStream) Next() (*types.CanonicalBlock, error) {
	if s.pulled < len(s.blocks) {
		cb := s.blocks[s.pulled]
		s.pulled++
		return cb, nil
	}
	return nil, s.err
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

func testBlocks(n int) []*types.CanonicalBlock {
	blocks := make([]*types.CanonicalBlock, 0, n)
	for i := 0; i < n; i++ {
		blocks = append(blocks, &types.CanonicalBlock{
			Height: types.BlockHeight(i),
			ID:     chainhash.Hash{byte(i)},
			Data:   &wire.MsgBlock{Transactions: make([]*wire.MsgTx, i%3)},
		})
	}
	return blocks
}

func TestRun_DrainsStream(t *testing.T) {
	s := &fakeStream{blocks: testBlocks(10)}

	require.NoError(t, Run(s, logger.NewNopLogger()))
	require.Equal(t, 10, s.pulled)
}

func TestRun_PropagatesStreamError(t *testing.T) {
	wantErr := errors.New("disk gone")
	s := &fakeStream{blocks: testBlocks(3), err: wantErr}

	require.ErrorIs(t, Run(s, logger.NewNopLogger()), wantErr)
}
