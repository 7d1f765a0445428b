package rollup

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/interop-proof/op-core/forks"
	"github.com/mantlenetworkio/interop-proof/op-node/params"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
	"github.com/mantlenetworkio/interop-proof/op-service/testlog"
)

func u64(v uint64) *uint64 { return &v }

func randConfig() *Config {
	return &Config{
		Genesis: Genesis{
			L1:     eth.BlockID{Hash: common.Hash{0xaa}, Number: 424242},
			L2:     eth.BlockID{Hash: common.Hash{0xbb}, Number: 1337},
			L2Time: 1700000000,
			SystemConfig: eth.SystemConfig{
				BatcherAddr: common.Address{0xcc},
				Scalar:      eth.Bytes32{0x01},
				GasLimit:    30_000_000,
			},
		},
		BlockTime:              2,
		MaxSequencerDrift:      100,
		SeqWindowSize:          2,
		ChannelTimeoutBedrock:  123,
		L1ChainID:              big.NewInt(900),
		L2ChainID:              big.NewInt(901),
		BatchInboxAddress:      common.Address{0xdd},
		DepositContractAddress: common.Address{0xee},
		L1SystemConfigAddress:  common.Address{0xff},
	}
}

func TestConfigCheck(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, randConfig().Check())
	})

	tests := []struct {
		name     string
		modifier func(cfg *Config)
		expected error
	}{
		{"BlockTimeZero", func(cfg *Config) { cfg.BlockTime = 0 }, ErrBlockTimeZero},
		{"ChannelTimeoutZero", func(cfg *Config) { cfg.ChannelTimeoutBedrock = 0 }, ErrMissingChannelTimeout},
		{"SeqWindowSizeOne", func(cfg *Config) { cfg.SeqWindowSize = 1 }, ErrInvalidSeqWindowSize},
		{"NoMaxSeqDrift", func(cfg *Config) { cfg.MaxSequencerDrift = 0 }, ErrInvalidMaxSeqDrift},
		{"NoL1Genesis", func(cfg *Config) { cfg.Genesis.L1.Hash = common.Hash{} }, ErrMissingGenesisL1Hash},
		{"NoL2Genesis", func(cfg *Config) { cfg.Genesis.L2.Hash = common.Hash{} }, ErrMissingGenesisL2Hash},
		{"GenesisHashesEqual", func(cfg *Config) { cfg.Genesis.L2.Hash = cfg.Genesis.L1.Hash }, ErrGenesisHashesSame},
		{"GenesisL2TimeZero", func(cfg *Config) { cfg.Genesis.L2Time = 0 }, ErrMissingGenesisL2Time},
		{"NoBatcherAddr", func(cfg *Config) { cfg.Genesis.SystemConfig.BatcherAddr = common.Address{} }, ErrMissingBatcherAddr},
		{"NoScalar", func(cfg *Config) { cfg.Genesis.SystemConfig.Scalar = eth.Bytes32{} }, ErrMissingScalar},
		{"NoGasLimit", func(cfg *Config) { cfg.Genesis.SystemConfig.GasLimit = 0 }, ErrMissingGasLimit},
		{"NoBatchInboxAddress", func(cfg *Config) { cfg.BatchInboxAddress = common.Address{} }, ErrMissingBatchInboxAddress},
		{"NoDepositContractAddress", func(cfg *Config) { cfg.DepositContractAddress = common.Address{} }, ErrMissingDepositContractAddress},
		{"NoL1ChainId", func(cfg *Config) { cfg.L1ChainID = nil }, ErrMissingL1ChainID},
		{"NoL2ChainId", func(cfg *Config) { cfg.L2ChainID = nil }, ErrMissingL2ChainID},
		{"ChainIDsEqual", func(cfg *Config) { cfg.L2ChainID = cfg.L1ChainID }, ErrChainIDsSame},
		{"L1ChainIDNegative", func(cfg *Config) { cfg.L1ChainID = big.NewInt(-1) }, ErrL1ChainIDNotPositive},
		{"L2ChainIDZero", func(cfg *Config) { cfg.L2ChainID = big.NewInt(0) }, ErrL2ChainIDNotPositive},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			cfg := randConfig()
			test.modifier(cfg)
			err := cfg.Check()
			require.ErrorIs(t, err, test.expected)
		})
	}

	t.Run("AggregatesErrors", func(t *testing.T) {
		cfg := randConfig()
		cfg.BlockTime = 0
		cfg.BatchInboxAddress = common.Address{}
		err := cfg.Check()
		require.ErrorIs(t, err, ErrBlockTimeZero)
		require.ErrorIs(t, err, ErrMissingBatchInboxAddress)
	})
}

func TestConfigCheckForkOrder(t *testing.T) {
	t.Run("missing prior fork", func(t *testing.T) {
		cfg := randConfig()
		cfg.EcotoneTime = u64(10)
		err := cfg.Check()
		require.Error(t, err)
		require.True(t, strings.Contains(err.Error(), "prior fork delta missing"), err.Error())
	})
	t.Run("out of order", func(t *testing.T) {
		cfg := randConfig()
		cfg.RegolithTime = u64(20)
		cfg.CanyonTime = u64(10)
		err := cfg.Check()
		require.Error(t, err)
		require.True(t, strings.Contains(err.Error(), "has higher offset 20"), err.Error())
	})
	t.Run("same time", func(t *testing.T) {
		cfg := randConfig()
		cfg.ActivateAtGenesis(forks.Holocene)
		require.NoError(t, cfg.Check())
	})
}

func TestActivations(t *testing.T) {
	for _, fork := range forks.All[1:] {
		fork := fork
		t.Run(string(fork), func(t *testing.T) {
			cfg := randConfig()
			require.False(t, cfg.IsForkActive(fork, 0), "not active if unset")
			require.Nil(t, cfg.ActivationTimeFor(fork))

			cfg.ActivateAtGenesis(fork)
			require.True(t, cfg.IsForkActive(fork, 0))
			require.NotNil(t, cfg.ActivationTimeFor(fork))
			if next := forks.Next(fork); next != forks.None {
				require.False(t, cfg.IsForkActive(next, 0), "later forks stay inactive")
			}
		})
	}
}

func TestIsActivationBlock(t *testing.T) {
	cfg := randConfig()
	cfg.RegolithTime = u64(0)
	cfg.CanyonTime = u64(0)
	cfg.DeltaTime = u64(0)
	cfg.EcotoneTime = u64(10)
	cfg.FjordTime = u64(10)

	require.Equal(t, forks.Fjord, cfg.IsActivationBlock(8, 10), "latest fork wins")
	require.Equal(t, forks.None, cfg.IsActivationBlock(10, 12))
	require.Equal(t, forks.None, cfg.IsActivationBlock(0, 2))

	require.True(t, cfg.IsActivationBlockForFork(10, forks.Fjord))
	require.False(t, cfg.IsEcotoneActivationBlock(10), "shadowed by Fjord")
	require.False(t, cfg.IsActivationBlockForFork(1, forks.Fjord), "before first block")
}

func TestTimestampForBlock(t *testing.T) {
	cfg := randConfig()
	require.Equal(t, cfg.Genesis.L2Time, cfg.TimestampForBlock(cfg.Genesis.L2.Number))
	require.Equal(t, cfg.Genesis.L2Time+10, cfg.TimestampForBlock(cfg.Genesis.L2.Number+5))

	num, err := cfg.TargetBlockNumber(cfg.Genesis.L2Time + 11)
	require.NoError(t, err)
	require.Equal(t, cfg.Genesis.L2.Number+5, num)

	_, err = cfg.TargetBlockNumber(cfg.Genesis.L2Time - 1)
	require.Error(t, err)
}

func TestParseRollupConfig(t *testing.T) {
	var cfg Config
	err := cfg.ParseRollupConfig(strings.NewReader(`{"block_time": 2, "l2_chain_id": 10, "ecotone_time": 5}`))
	require.NoError(t, err)
	require.Equal(t, uint64(2), cfg.BlockTime)
	require.Equal(t, big.NewInt(10), cfg.L2ChainID)
	require.Equal(t, uint64(5), *cfg.EcotoneTime)

	err = cfg.ParseRollupConfig(strings.NewReader(`{"block_time": 2, "unknown_field": true}`))
	require.ErrorContains(t, err, "unknown_field")
}

type mockClient struct {
	mock.Mock
}

func (m *mockClient) ChainID(ctx context.Context) (*big.Int, error) {
	out := m.Called()
	return out.Get(0).(*big.Int), out.Error(1)
}

func (m *mockClient) L1BlockRefByNumber(ctx context.Context, num uint64) (eth.L1BlockRef, error) {
	out := m.Called(num)
	return out.Get(0).(eth.L1BlockRef), out.Error(1)
}

func (m *mockClient) L2BlockRefByNumber(ctx context.Context, num uint64) (eth.L2BlockRef, error) {
	out := m.Called(num)
	return out.Get(0).(eth.L2BlockRef), out.Error(1)
}

func TestValidateL1Config(t *testing.T) {
	cfg := randConfig()
	logger := testlog.Logger(t, log.LevelInfo)

	t.Run("valid", func(t *testing.T) {
		client := new(mockClient)
		client.On("ChainID").Return(cfg.L1ChainID, nil)
		client.On("L1BlockRefByNumber", cfg.Genesis.L1.Number).Return(eth.L1BlockRef{Hash: cfg.Genesis.L1.Hash, Number: cfg.Genesis.L1.Number}, nil)
		require.NoError(t, cfg.ValidateL1Config(context.Background(), logger, client))
		client.AssertExpectations(t)
	})
	t.Run("wrong chain id", func(t *testing.T) {
		client := new(mockClient)
		client.On("ChainID").Return(big.NewInt(1), nil)
		require.ErrorContains(t, cfg.ValidateL1Config(context.Background(), logger, client), "incorrect L1 RPC chain id")
	})
	t.Run("genesis not found", func(t *testing.T) {
		client := new(mockClient)
		client.On("ChainID").Return(cfg.L1ChainID, nil)
		client.On("L1BlockRefByNumber", cfg.Genesis.L1.Number).Return(eth.L1BlockRef{}, ethereum.NotFound)
		require.NoError(t, cfg.ValidateL1Config(context.Background(), logger, client))
	})
	t.Run("wrong genesis", func(t *testing.T) {
		client := new(mockClient)
		client.On("ChainID").Return(cfg.L1ChainID, nil)
		client.On("L1BlockRefByNumber", cfg.Genesis.L1.Number).Return(eth.L1BlockRef{Hash: common.Hash{0x01}}, nil)
		require.ErrorContains(t, cfg.ValidateL1Config(context.Background(), logger, client), "incorrect L1 genesis block hash")
	})
	t.Run("rpc error", func(t *testing.T) {
		client := new(mockClient)
		client.On("ChainID").Return(cfg.L1ChainID, nil)
		client.On("L1BlockRefByNumber", cfg.Genesis.L1.Number).Return(eth.L1BlockRef{}, errors.New("boom"))
		require.ErrorContains(t, cfg.ValidateL1Config(context.Background(), logger, client), "boom")
	})
}

func TestValidateL2Config(t *testing.T) {
	cfg := randConfig()
	client := new(mockClient)
	client.On("ChainID").Return(cfg.L2ChainID, nil)
	client.On("L2BlockRefByNumber", cfg.Genesis.L2.Number).Return(eth.L2BlockRef{Hash: cfg.Genesis.L2.Hash}, nil)
	require.NoError(t, cfg.ValidateL2Config(context.Background(), client))

	bad := new(mockClient)
	bad.On("ChainID").Return(cfg.L2ChainID, nil)
	bad.On("L2BlockRefByNumber", cfg.Genesis.L2.Number).Return(eth.L2BlockRef{Hash: common.Hash{0x02}}, nil)
	require.ErrorContains(t, cfg.ValidateL2Config(context.Background(), bad), "incorrect L2 genesis block hash")
}

func TestChainSpec(t *testing.T) {
	cfg := randConfig()
	cfg.RegolithTime = u64(0)
	cfg.CanyonTime = u64(0)
	cfg.DeltaTime = u64(0)
	cfg.EcotoneTime = u64(0)
	cfg.FjordTime = u64(20)
	cfg.GraniteTime = u64(30)
	spec := NewChainSpec(cfg)

	require.Equal(t, uint64(maxChannelBankSizeBedrock), spec.MaxChannelBankSize(19))
	require.Equal(t, uint64(maxChannelBankSizeFjord), spec.MaxChannelBankSize(20))
	require.Equal(t, uint64(maxRLPBytesPerChannelBedrock), spec.MaxRLPBytesPerChannel(19))
	require.Equal(t, uint64(maxRLPBytesPerChannelFjord), spec.MaxRLPBytesPerChannel(20))
	require.Equal(t, cfg.MaxSequencerDrift, spec.MaxSequencerDrift(19))
	require.Equal(t, uint64(maxSequencerDriftFjord), spec.MaxSequencerDrift(20))
	require.Equal(t, cfg.ChannelTimeoutBedrock, spec.ChannelTimeout(29))
	require.Equal(t, uint64(params.ChannelTimeoutGranite), spec.ChannelTimeout(30))
}

func TestCheckForkActivation(t *testing.T) {
	cfg := randConfig()
	cfg.RegolithTime = u64(0)
	cfg.CanyonTime = u64(4)
	spec := NewChainSpec(cfg)
	logger, logs := testlog.CaptureLogger(t, log.LevelInfo)

	spec.CheckForkActivation(logger, eth.L2BlockRef{Time: 2})
	require.Equal(t, forks.Regolith, spec.currentFork)
	require.NotNil(t, logs.FindLog(testlog.NewMessageFilter("Current hardfork version detected")))

	spec.CheckForkActivation(logger, eth.L2BlockRef{Time: 4, Number: 2})
	require.Equal(t, forks.Canyon, spec.currentFork)
	require.NotNil(t, logs.FindLog(testlog.NewMessageFilter("Detected hardfork activation block")))

	spec.CheckForkActivation(logger, eth.L2BlockRef{Time: 6, Number: 3})
	require.Equal(t, forks.Canyon, spec.currentFork)
}
