package derive

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/interop-proof/op-node/rollup"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
	"github.com/mantlenetworkio/interop-proof/op-service/testlog"
)

type fakeBatchProvider struct {
	origin     eth.L1BlockRef
	batches    []*SingularBatch
	concluding bool
	pulls      int
	flushed    int
}

func (f *fakeBatchProvider) Reset(context.Context, eth.L1BlockRef, eth.SystemConfig) error {
	return io.EOF
}

func (f *fakeBatchProvider) FlushChannel() {
	f.flushed++
}

func (f *fakeBatchProvider) Origin() eth.L1BlockRef {
	return f.origin
}

func (f *fakeBatchProvider) NextBatch(context.Context, eth.L2BlockRef) (*SingularBatch, bool, error) {
	if len(f.batches) == 0 {
		return nil, false, io.EOF
	}
	f.pulls++
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, f.concluding, nil
}

type fakeAttributesBuilder struct {
	errs  []error
	calls int
}

func (f *fakeAttributesBuilder) PreparePayloadAttributes(_ context.Context, parent eth.L2BlockRef, _ eth.BlockID) (*eth.PayloadAttributes, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return &eth.PayloadAttributes{
		Timestamp:    hexutil.Uint64(parent.Time + 2),
		Transactions: []hexutil.Bytes{{0x7e, 0x01}},
	}, nil
}

func TestAttributesQueue(t *testing.T) {
	ctx := context.Background()
	cfg := &rollup.Config{BlockTime: 2}
	origin := eth.L1BlockRef{Hash: common.Hash{0x0a}, Number: 3, Time: 30}
	parent := eth.L2BlockRef{Hash: common.Hash{0xaa}, Number: 7, Time: 40, L1Origin: origin.ID()}
	batch := func() *SingularBatch {
		return &SingularBatch{
			ParentHash:   parent.Hash,
			EpochNum:     rollup.Epoch(origin.Number),
			EpochHash:    origin.Hash,
			Timestamp:    parent.Time + cfg.BlockTime,
			Transactions: []hexutil.Bytes{{0x02, 0xbe, 0xef}},
		}
	}
	setup := func(t *testing.T, builder *fakeAttributesBuilder, batches ...*SingularBatch) (*AttributesQueue, *fakeBatchProvider) {
		prev := &fakeBatchProvider{origin: origin, batches: batches}
		return NewAttributesQueue(testlog.Logger(t, log.LevelError), cfg, builder, prev), prev
	}

	t.Run("appends batch transactions after deposits", func(t *testing.T) {
		aq, prev := setup(t, &fakeAttributesBuilder{}, batch())
		prev.concluding = true
		out, err := aq.NextAttributes(ctx, parent)
		require.NoError(t, err)
		require.Equal(t, parent, out.Parent)
		require.Equal(t, origin, out.DerivedFrom)
		require.True(t, out.Concluding)
		require.True(t, out.Attributes.NoTxPool)
		require.Equal(t, []hexutil.Bytes{{0x7e, 0x01}, {0x02, 0xbe, 0xef}}, out.Attributes.Transactions)
		require.Len(t, out.WithDepositsOnly().Attributes.Transactions, 1)

		_, err = aq.NextAttributes(ctx, parent)
		require.ErrorIs(t, err, io.EOF)
	})

	t.Run("batch not on parent", func(t *testing.T) {
		b := batch()
		b.ParentHash = common.Hash{0xbb}
		aq, _ := setup(t, &fakeAttributesBuilder{}, b)
		_, err := aq.NextAttributes(ctx, parent)
		require.ErrorIs(t, err, ErrReset)

		b = batch()
		b.Timestamp += cfg.BlockTime
		aq, _ = setup(t, &fakeAttributesBuilder{}, b)
		_, err = aq.NextAttributes(ctx, parent)
		require.ErrorIs(t, err, ErrReset)
	})

	t.Run("keeps the batch across temporary failures", func(t *testing.T) {
		builder := &fakeAttributesBuilder{errs: []error{NewTemporaryError(errors.New("l1 unavailable"))}}
		aq, prev := setup(t, builder, batch())
		_, err := aq.NextAttributes(ctx, parent)
		require.ErrorIs(t, err, ErrTemporary)

		out, err := aq.NextAttributes(ctx, parent)
		require.NoError(t, err)
		require.Equal(t, 1, prev.pulls)
		require.Equal(t, 2, builder.calls)
		require.Len(t, out.Attributes.Transactions, 2)
	})

	t.Run("flush drops the pending batch", func(t *testing.T) {
		builder := &fakeAttributesBuilder{errs: []error{NewTemporaryError(errors.New("l1 unavailable"))}}
		aq, prev := setup(t, builder, batch())
		_, err := aq.NextAttributes(ctx, parent)
		require.ErrorIs(t, err, ErrTemporary)

		aq.FlushChannel()
		require.Equal(t, 1, prev.flushed)
		_, err = aq.NextAttributes(ctx, parent)
		require.ErrorIs(t, err, io.EOF)
		require.Equal(t, 1, builder.calls)
	})

	t.Run("reset drops the pending batch", func(t *testing.T) {
		builder := &fakeAttributesBuilder{errs: []error{NewTemporaryError(errors.New("l1 unavailable"))}}
		aq, _ := setup(t, builder, batch())
		_, err := aq.NextAttributes(ctx, parent)
		require.ErrorIs(t, err, ErrTemporary)

		require.ErrorIs(t, aq.Reset(ctx, origin, eth.SystemConfig{}), io.EOF)
		_, err = aq.NextAttributes(ctx, parent)
		require.ErrorIs(t, err, io.EOF)
	})
}
