package interop

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	gethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/interop-proof/op-node/rollup"
	"github.com/mantlenetworkio/interop-proof/op-program/client/boot"
	"github.com/mantlenetworkio/interop-proof/op-program/client/claim"
	"github.com/mantlenetworkio/interop-proof/op-program/client/driver"
	"github.com/mantlenetworkio/interop-proof/op-program/client/interop/types"
	"github.com/mantlenetworkio/interop-proof/op-program/client/l1"
	"github.com/mantlenetworkio/interop-proof/op-program/client/l2/test"
	"github.com/mantlenetworkio/interop-proof/op-program/client/tasks"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
	"github.com/mantlenetworkio/interop-proof/op-service/testlog"
)

var errNoL1Data = errors.New("no L1 data")

// l1Headers serves a chain of empty L1 blocks: no batcher transactions and no deposits.
type l1Headers map[common.Hash]*gethTypes.Header

var _ l1.Oracle = l1Headers(nil)

func (o l1Headers) HeaderByBlockHash(hash common.Hash) (eth.BlockInfo, error) {
	header, ok := o[hash]
	if !ok {
		return nil, errNoL1Data
	}
	return eth.HeaderBlockInfo(header), nil
}

func (o l1Headers) TransactionsByBlockHash(hash common.Hash) (eth.BlockInfo, gethTypes.Transactions, error) {
	info, err := o.HeaderByBlockHash(hash)
	if err != nil {
		return nil, nil, err
	}
	return info, gethTypes.Transactions{}, nil
}

func (o l1Headers) ReceiptsByBlockHash(hash common.Hash) (eth.BlockInfo, gethTypes.Receipts, error) {
	info, err := o.HeaderByBlockHash(hash)
	if err != nil {
		return nil, nil, err
	}
	return info, gethTypes.Receipts{}, nil
}

func (o l1Headers) GetBlob(eth.L1BlockRef, eth.IndexedBlobHash) (*eth.Blob, error) {
	return nil, errNoL1Data
}

func (o l1Headers) Precompile(common.Address, []byte, uint64) ([]byte, bool, error) {
	return nil, false, errNoL1Data
}

// derivationChain is a single L2 chain at genesis, with an L1 chain of empty blocks.
// The sequencing window of the genesis L1 origin expires at the last L1 block, so the next L2
// block is derived from an empty batch once that block is the L1 head.
type derivationChain struct {
	l1        []*gethTypes.Header
	l1Oracle  l1Headers
	l2Oracle  *test.StubBlockOracle
	rollupCfg *rollup.Config
	configs   *staticConfigSource
	genesis   *gethTypes.Block
	super     *eth.SuperV1
	preStates stubPreStates
	logger    log.Logger
}

func setupDerivationChain(t *testing.T) *derivationChain {
	chainCfg := test.ChainConfig()
	genesis, db := test.Genesis(t, chainCfg)
	output := test.GenesisOutput(genesis)

	l1Oracle := make(l1Headers)
	var l1Chain []*gethTypes.Header
	parent := common.Hash{}
	for i, l1Time := range []uint64{990, 1010, 1020} {
		header := &gethTypes.Header{
			ParentHash:  parent,
			Number:      big.NewInt(int64(i)),
			Time:        l1Time,
			BaseFee:     big.NewInt(7),
			Difficulty:  new(big.Int),
			GasLimit:    30_000_000,
			TxHash:      gethTypes.EmptyTxsHash,
			ReceiptHash: gethTypes.EmptyReceiptsHash,
			UncleHash:   gethTypes.EmptyUncleHash,
		}
		l1Oracle[header.Hash()] = header
		l1Chain = append(l1Chain, header)
		parent = header.Hash()
	}

	zero := uint64(0)
	rollupCfg := &rollup.Config{
		Genesis: rollup.Genesis{
			L1:     eth.BlockID{Hash: l1Chain[0].Hash(), Number: 0},
			L2:     eth.BlockID{Hash: genesis.Hash(), Number: 0},
			L2Time: genesis.Time(),
			SystemConfig: eth.SystemConfig{
				BatcherAddr: common.Address{0xba},
				Scalar:      eth.EncodeScalar(eth.EcotoneScalars{BaseFeeScalar: 1}),
				GasLimit:    genesis.GasLimit(),
			},
		},
		BlockTime:              2,
		MaxSequencerDrift:      600,
		SeqWindowSize:          2,
		ChannelTimeoutBedrock:  50,
		L1ChainID:              params.SepoliaChainConfig.ChainID,
		L2ChainID:              chainCfg.ChainID,
		RegolithTime:           &zero,
		CanyonTime:             &zero,
		DeltaTime:              &zero,
		EcotoneTime:            &zero,
		FjordTime:              &zero,
		GraniteTime:            &zero,
		BatchInboxAddress:      common.Address{0xff, 0x01},
		DepositContractAddress: common.Address{0xdd, 0x01},
		L1SystemConfigAddress:  common.Address{0x5c, 0x01},
	}

	super := eth.NewSuperV1(genesis.Time()+1, eth.ChainIDAndOutput{
		ChainID: eth.ChainIDFromBig(chainCfg.ChainID),
		Output:  eth.OutputRoot(output),
	})
	return &derivationChain{
		l1:        l1Chain,
		l1Oracle:  l1Oracle,
		l2Oracle:  test.NewStubOracleWithBlocks([]*gethTypes.Block{genesis}, []eth.Output{output}, db),
		rollupCfg: rollupCfg,
		configs: &staticConfigSource{
			rollupCfgs:    []*rollup.Config{rollupCfg},
			chainConfigs:  []*params.ChainConfig{chainCfg},
			l1ChainConfig: params.SepoliaChainConfig,
		},
		genesis:   genesis,
		super:     super,
		preStates: make(stubPreStates),
		logger:    testlog.Logger(t, log.LevelError),
	}
}

// derive runs the derivation of block 1 on its own, outside of the interop program.
func (c *derivationChain) derive(l1Head common.Hash) (tasks.DerivationResult, error) {
	return tasks.RunDerivation(context.Background(), c.logger, c.rollupCfg, params.SepoliaChainConfig, c.configs.chainConfigs[0],
		l1Head, common.Hash(c.super.Chains[0].Output), 1, c.l1Oracle, c.l2Oracle, rawdb.NewMemoryDatabase(), tasks.DerivationOptions{})
}

func (c *derivationChain) run(t *testing.T, l1Head common.Hash, claimed common.Hash) (types.PreState, error) {
	pre := types.SuperRootPreState(c.super)
	agreed, err := pre.Hash()
	require.NoError(t, err)
	c.preStates[agreed] = pre
	bootInfo := &boot.BootInfoInterop{
		Configs:        c.configs,
		L1Head:         l1Head,
		AgreedPrestate: agreed,
		Claim:          claimed,
		GameTimestamp:  c.super.Timestamp + 100,
	}
	return pre, RunInteropProgram(context.Background(), c.logger, bootInfo, c.l1Oracle, c.l2Oracle, c.preStates)
}

func TestDeriveFromEmptyL1(t *testing.T) {
	t.Run("ExpiredSequencingWindowDerivesNextBlock", func(t *testing.T) {
		chain := setupDerivationChain(t)
		result, err := chain.derive(chain.l1[2].Hash())
		require.NoError(t, err)
		require.Equal(t, uint64(1), result.Head.Number)
		require.Equal(t, chain.genesis.Hash(), result.Head.ParentHash)
		require.Equal(t, chain.genesis.Time()+chain.rollupCfg.BlockTime, result.Head.Time)
		require.Equal(t, chain.rollupCfg.Genesis.L1, result.Head.L1Origin)
		require.Equal(t, uint64(1), result.Head.SequenceNumber)
		require.Equal(t, result.Head.Hash, result.BlockHash)
		require.NotEqual(t, chain.super.Chains[0].Output, result.OutputRoot)
	})

	t.Run("OpenSequencingWindowIsExhausted", func(t *testing.T) {
		chain := setupDerivationChain(t)
		result, err := chain.derive(chain.l1[1].Hash())
		require.ErrorIs(t, err, driver.ErrExhausted)
		require.Equal(t, chain.genesis.Hash(), result.Head.Hash)
	})
}

func TestInteropProgramDerivesFirstChain(t *testing.T) {
	t.Run("ValidClaim", func(t *testing.T) {
		chain := setupDerivationChain(t)
		derived, err := chain.derive(chain.l1[2].Hash())
		require.NoError(t, err)
		block := &types.OptimisticBlock{BlockHash: derived.BlockHash, OutputRoot: derived.OutputRoot}

		claimed := expectedHash(t, types.SuperRootPreState(chain.super), block)
		_, err = chain.run(t, chain.l1[2].Hash(), claimed)
		require.NoError(t, err)
	})

	t.Run("InvalidClaim", func(t *testing.T) {
		chain := setupDerivationChain(t)
		derived, err := chain.derive(chain.l1[2].Hash())
		require.NoError(t, err)
		block := &types.OptimisticBlock{BlockHash: derived.BlockHash, OutputRoot: derived.OutputRoot}

		claimed := common.Hash{0xba, 0xd0}
		pre, err := chain.run(t, chain.l1[2].Hash(), claimed)
		var invalidClaim *claim.InvalidClaimError
		require.ErrorAs(t, err, &invalidClaim)
		require.Equal(t, eth.Bytes32(expectedHash(t, pre, block)), invalidClaim.Expected)
		require.Equal(t, eth.Bytes32(claimed), invalidClaim.Actual)
	})
}

func TestInteropProgramExhaustsL1(t *testing.T) {
	t.Run("ClaimInvalidTransition", func(t *testing.T) {
		chain := setupDerivationChain(t)
		var logs *testlog.CapturingHandler
		chain.logger, logs = testlog.CaptureLogger(t, log.LevelWarn)
		_, err := chain.run(t, chain.l1[1].Hash(), types.InvalidTransitionHash)
		require.NoError(t, err)
		exhausted := logs.FindLog(
			testlog.NewMessageFilter("L1 data exhausted before the disputed block"),
			testlog.NewErrIsFilter(driver.ErrExhausted))
		require.NotNil(t, exhausted)
	})

	t.Run("ClaimOther", func(t *testing.T) {
		chain := setupDerivationChain(t)
		carried := &types.OptimisticBlock{BlockHash: chain.genesis.Hash(), OutputRoot: chain.super.Chains[0].Output}
		claimed := expectedHash(t, types.SuperRootPreState(chain.super), carried)
		_, err := chain.run(t, chain.l1[1].Hash(), claimed)
		var invalidClaim *claim.InvalidClaimError
		require.ErrorAs(t, err, &invalidClaim)
		require.Equal(t, eth.Bytes32(types.InvalidTransitionHash), invalidClaim.Expected)
		require.Equal(t, eth.Bytes32(claimed), invalidClaim.Actual)
	})
}
