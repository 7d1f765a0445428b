package derive

import (
	"context"
	"math/big"
	"math/rand" // nosemgrep
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/interop-proof/op-node/metrics"
	"github.com/mantlenetworkio/interop-proof/op-node/rollup"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
	"github.com/mantlenetworkio/interop-proof/op-service/testlog"
	"github.com/mantlenetworkio/interop-proof/op-service/testutils"
)

type pipelineTestSetup struct {
	cfg      *rollup.Config
	l1A, l1B eth.L1BlockRef
	safeHead eth.L2BlockRef
	sysCfg   eth.SystemConfig
	batch    *SingularBatch
	batchTx  *types.Transaction
	l1       *testutils.MockL1Source
	l2       *testutils.MockL2Client
	pipeline *DerivationPipeline
}

func blockInfo(ref eth.L1BlockRef) *testutils.MockBlockInfo {
	return &testutils.MockBlockInfo{
		InfoHash:       ref.Hash,
		InfoParentHash: ref.ParentHash,
		InfoNum:        ref.Number,
		InfoTime:       ref.Time,
		InfoBaseFee:    big.NewInt(7),
	}
}

func newPipelineTestSetup(t *testing.T) *pipelineTestSetup {
	rng := rand.New(rand.NewSource(4242))
	batcherKey := testutils.InsecureRandomKey(rng)
	cfg := &rollup.Config{
		BlockTime:              2,
		MaxSequencerDrift:      600,
		SeqWindowSize:          10,
		ChannelTimeoutBedrock:  50,
		L1ChainID:              big.NewInt(900),
		L2ChainID:              big.NewInt(901),
		BatchInboxAddress:      testutils.RandomAddress(rng),
		DepositContractAddress: testutils.RandomAddress(rng),
		L1SystemConfigAddress:  testutils.RandomAddress(rng),
	}
	l1A := eth.L1BlockRef{Hash: testutils.RandomHash(rng), Number: 10, Time: 100}
	l1B := eth.L1BlockRef{Hash: testutils.RandomHash(rng), ParentHash: l1A.Hash, Number: 11, Time: 112}
	safeHead := eth.L2BlockRef{
		Hash:           testutils.RandomHash(rng),
		Number:         50,
		Time:           110,
		L1Origin:       l1A.ID(),
		SequenceNumber: 5,
	}
	sysCfg := eth.SystemConfig{
		BatcherAddr: crypto.PubkeyToAddress(batcherKey.PublicKey),
		Scalar:      eth.Bytes32{31: 1},
		GasLimit:    30_000_000,
	}
	batch := &SingularBatch{
		ParentHash:   safeHead.Hash,
		EpochNum:     rollup.Epoch(l1A.Number),
		EpochHash:    l1A.Hash,
		Timestamp:    safeHead.Time + cfg.BlockTime,
		Transactions: []hexutil.Bytes{{0x02, 0xde, 0xad}},
	}
	frame := Frame{ID: ChannelID{0x01}, FrameNumber: 0, Data: zlibChannel(t, batch), IsLast: true}
	batchTx, err := types.SignNewTx(batcherKey, cfg.L1Signer(), &types.DynamicFeeTx{
		ChainID:   cfg.L1ChainID,
		Nonce:     0,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(10),
		Gas:       100_000,
		To:        &cfg.BatchInboxAddress,
		Data:      encodeFrames(t, frame),
	})
	require.NoError(t, err)

	l1 := &testutils.MockL1Source{}
	l2 := &testutils.MockL2Client{}
	logger := testlog.Logger(t, log.LevelError)
	p := NewDerivationPipeline(logger, cfg, params.MergedTestChainConfig, l1, nil, l2, metrics.NoopMetrics)
	return &pipelineTestSetup{
		cfg:      cfg,
		l1A:      l1A,
		l1B:      l1B,
		safeHead: safeHead,
		sysCfg:   sysCfg,
		batch:    batch,
		batchTx:  batchTx,
		l1:       l1,
		l2:       l2,
		pipeline: p,
	}
}

func (s *pipelineTestSetup) reset(t *testing.T) {
	s.l1.ExpectInfoAndTxsByHash(s.l1A.Hash, blockInfo(s.l1A), nil, nil)
	require.NoError(t, s.pipeline.Signal(context.Background(), ResetSignal{
		L2SafeHead:   s.safeHead,
		L1Origin:     s.l1A,
		SystemConfig: s.sysCfg,
	}))
	require.Equal(t, s.l1A, s.pipeline.Origin())
}

func TestDerivationPipelineStep(t *testing.T) {
	t.Run("derives attributes from batch data", func(t *testing.T) {
		s := newPipelineTestSetup(t)
		defer s.l1.AssertExpectations(t)
		defer s.l2.AssertExpectations(t)
		s.reset(t)
		ctx := context.Background()

		// Nothing left at the reset origin: move on to the next L1 block.
		s.l1.ExpectL1BlockRefByNumber(s.l1B.Number, s.l1B, nil)
		s.l1.ExpectFetchReceipts(s.l1B.Hash, blockInfo(s.l1B), nil, nil)
		res := s.pipeline.Step(ctx, s.safeHead)
		require.Equal(t, AdvancedOrigin, res.Kind)
		require.Equal(t, s.l1B, s.pipeline.Origin())

		// The batcher transaction is read and its frame buffered.
		s.l1.ExpectInfoAndTxsByHash(s.l1B.Hash, blockInfo(s.l1B), types.Transactions{s.batchTx}, nil)
		res = s.pipeline.Step(ctx, s.safeHead)
		require.Equal(t, StepFailed, res.Kind)
		require.ErrorIs(t, res.Err, NotEnoughData)
		require.Nil(t, s.pipeline.Peek())

		s.l2.ExpectSystemConfigByL2Hash(s.safeHead.Hash, s.sysCfg, nil)
		s.l1.ExpectInfoByHash(s.l1A.Hash, blockInfo(s.l1A), nil)
		res = s.pipeline.Step(ctx, s.safeHead)
		require.Equal(t, PreparedAttributes, res.Kind)
		require.NoError(t, res.Err)

		peeked := s.pipeline.Peek()
		require.NotNil(t, peeked)
		attrs := s.pipeline.Next()
		require.Same(t, peeked, attrs)
		require.Nil(t, s.pipeline.Next())

		require.Equal(t, s.safeHead, attrs.Parent)
		require.Equal(t, s.l1B, attrs.DerivedFrom)
		require.True(t, attrs.Concluding)
		require.Equal(t, hexutil.Uint64(s.batch.Timestamp), attrs.Attributes.Timestamp)
		require.True(t, attrs.Attributes.NoTxPool)
		require.Len(t, attrs.Attributes.Transactions, 2)
		require.Equal(t, byte(types.DepositTxType), attrs.Attributes.Transactions[0][0])
		require.Equal(t, s.batch.Transactions[0], attrs.Attributes.Transactions[1])

		info, err := L1BlockInfoFromBytes(s.cfg, uint64(attrs.Attributes.Timestamp), decodeDepositData(t, attrs.Attributes.Transactions[0]))
		require.NoError(t, err)
		require.Equal(t, s.l1A.Number, info.Number)
		require.Equal(t, s.safeHead.SequenceNumber+1, info.SequenceNumber)
	})

	t.Run("end of L1 data", func(t *testing.T) {
		s := newPipelineTestSetup(t)
		defer s.l1.AssertExpectations(t)
		s.reset(t)

		s.l1.ExpectL1BlockRefByNumber(s.l1B.Number, eth.L1BlockRef{}, ethereum.NotFound)
		res := s.pipeline.Step(context.Background(), s.safeHead)
		require.Equal(t, OriginAdvanceErr, res.Kind)
		require.ErrorIs(t, res.Err, ErrEndOfSource)
		require.ErrorIs(t, res.Err, ErrCritical)
		require.Equal(t, s.l1A, s.pipeline.Origin())
	})

	t.Run("reorged L1 origin", func(t *testing.T) {
		s := newPipelineTestSetup(t)
		defer s.l1.AssertExpectations(t)
		s.reset(t)

		other := s.l1B
		other.ParentHash = common.Hash{0xff}
		s.l1.ExpectL1BlockRefByNumber(s.l1B.Number, other, nil)
		res := s.pipeline.Step(context.Background(), s.safeHead)
		require.Equal(t, OriginAdvanceErr, res.Kind)
		require.ErrorIs(t, res.Err, ErrReset)
	})
}

func TestDerivationPipelineSignal(t *testing.T) {
	s := newPipelineTestSetup(t)
	defer s.l1.AssertExpectations(t)
	s.reset(t)

	s.l1.ExpectInfoAndTxsByHash(s.l1A.Hash, blockInfo(s.l1A), nil, nil)
	require.NoError(t, s.pipeline.Signal(context.Background(), ActivationSignal{
		L2SafeHead:   s.safeHead,
		L1Origin:     s.l1A,
		SystemConfig: s.sysCfg,
	}))
	require.NoError(t, s.pipeline.Signal(context.Background(), FlushChannelSignal{}))
	require.Equal(t, s.l1A, s.pipeline.Origin())
	require.Same(t, s.cfg, s.pipeline.RollupConfig())
}

func TestDerivationPipelineSystemConfigByNumber(t *testing.T) {
	s := newPipelineTestSetup(t)
	defer s.l2.AssertExpectations(t)

	s.l2.ExpectSystemConfigByNumber(s.safeHead.Number, s.sysCfg, nil)
	sysCfg, err := s.pipeline.SystemConfigByNumber(context.Background(), s.safeHead.Number)
	require.NoError(t, err)
	require.Equal(t, s.sysCfg, sysCfg)
}

// decodeDepositData returns the calldata of an encoded deposit transaction.
func decodeDepositData(t *testing.T, raw hexutil.Bytes) []byte {
	var tx types.Transaction
	require.NoError(t, tx.UnmarshalBinary(raw))
	return tx.Data()
}


func TestNewResetDerivationPipeline(t *testing.T) {
	s := newPipelineTestSetup(t)
	ctx := context.Background()
	logger := testlog.Logger(t, log.LevelError)

	t.Run("ResetsToSafeHead", func(t *testing.T) {
		defer s.l1.AssertExpectations(t)
		defer s.l2.AssertExpectations(t)
		s.l2.ExpectSystemConfigByNumber(s.safeHead.Number, s.sysCfg, nil)
		s.l1.ExpectInfoAndTxsByHash(s.l1A.Hash, blockInfo(s.l1A), nil, nil)
		p, err := NewResetDerivationPipeline(ctx, logger, s.cfg, params.MergedTestChainConfig, s.l1, nil, s.l2, metrics.NoopMetrics, s.safeHead, s.l1A)
		require.NoError(t, err)
		require.Equal(t, s.l1A, p.Origin())
	})

	t.Run("MissingSystemConfig", func(t *testing.T) {
		defer s.l2.AssertExpectations(t)
		s.l2.ExpectSystemConfigByNumber(s.safeHead.Number, eth.SystemConfig{}, ethereum.NotFound)
		_, err := NewResetDerivationPipeline(ctx, logger, s.cfg, params.MergedTestChainConfig, s.l1, nil, s.l2, metrics.NoopMetrics, s.safeHead, s.l1A)
		require.ErrorIs(t, err, ethereum.NotFound)
	})
}
