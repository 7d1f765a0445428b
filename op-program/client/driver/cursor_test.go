package driver

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/interop-proof/op-node/rollup"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
	"github.com/mantlenetworkio/interop-proof/op-service/ptr"
	"github.com/mantlenetworkio/interop-proof/op-service/testlog"
	"github.com/mantlenetworkio/interop-proof/op-service/testutils"
)

func TestNewPipelineCursor(t *testing.T) {
	header := &types.Header{Number: big.NewInt(40), Time: 1080, Difficulty: new(big.Int)}
	outputRoot := eth.Bytes32{0x0a}

	newCursor := func(t *testing.T, cfg *rollup.Config, l1OriginNum uint64, expectedOrigin uint64) (*PipelineCursor, error) {
		l1 := new(testutils.MockL1Source)
		l2 := new(testutils.MockL2Client)
		safeHead := eth.L2BlockRef{
			Hash:     header.Hash(),
			Number:   header.Number.Uint64(),
			Time:     header.Time,
			L1Origin: eth.BlockID{Hash: common.Hash{0x01}, Number: l1OriginNum},
		}
		l2.ExpectL2BlockRefByHash(header.Hash(), safeHead, nil)
		l1.ExpectL1BlockRefByNumber(expectedOrigin, eth.L1BlockRef{Hash: common.Hash{0x02}, Number: expectedOrigin}, nil)
		cursor, err := NewPipelineCursor(context.Background(), testlog.Logger(t, log.LevelInfo), cfg, header, outputRoot, l1, l2)
		l1.AssertExpectations(t)
		l2.AssertExpectations(t)
		return cursor, err
	}

	t.Run("WalksBackByChannelTimeout", func(t *testing.T) {
		cfg := &rollup.Config{ChannelTimeoutBedrock: 300}
		cursor, err := newCursor(t, cfg, 1000, 700)
		require.NoError(t, err)
		require.Equal(t, uint64(700), cursor.Origin().Number)
		require.Equal(t, header.Hash(), cursor.Tip().SafeHead.Hash)
		require.Equal(t, outputRoot, cursor.Tip().OutputRoot)
		require.Equal(t, header, cursor.Tip().Header)
	})

	t.Run("GraniteChannelTimeout", func(t *testing.T) {
		cfg := &rollup.Config{ChannelTimeoutBedrock: 300, GraniteTime: ptr.New[uint64](0)}
		cursor, err := newCursor(t, cfg, 1000, 950)
		require.NoError(t, err)
		require.Equal(t, uint64(950), cursor.Origin().Number)
	})

	t.Run("ClampedToGenesis", func(t *testing.T) {
		cfg := &rollup.Config{ChannelTimeoutBedrock: 300}
		cfg.Genesis.L1 = eth.BlockID{Number: 500}
		cursor, err := newCursor(t, cfg, 600, 500)
		require.NoError(t, err)
		require.Equal(t, uint64(500), cursor.Origin().Number)
	})

	t.Run("UnknownSafeHead", func(t *testing.T) {
		l2 := new(testutils.MockL2Client)
		l2.ExpectL2BlockRefByHash(header.Hash(), eth.L2BlockRef{}, mockErr)
		_, err := NewPipelineCursor(context.Background(), testlog.Logger(t, log.LevelInfo), &rollup.Config{}, header, outputRoot, new(testutils.MockL1Source), l2)
		require.ErrorIs(t, err, mockErr)
	})
}

func TestPipelineCursorAdvance(t *testing.T) {
	cursor := &PipelineCursor{}
	origin := eth.L1BlockRef{Number: 5}
	tip := TipCursor{SafeHead: eth.L2BlockRef{Number: 9}, OutputRoot: eth.Bytes32{0x09}}
	cursor.Advance(origin, tip)
	require.Equal(t, origin, cursor.Origin())
	require.Equal(t, tip, cursor.Tip())
}
