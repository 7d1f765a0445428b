package config

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/interop-proof/op-node/rollup"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

var (
	validL1ChainConfig   = params.SepoliaChainConfig
	validL1Head          = common.Hash{0xaa}
	validL2Claim         = common.Hash{0xcc}
	validL2OutputRoot    = common.Hash{0xdd}
	validL2ClaimBlockNum = uint64(15)
	validAgreedPrestate  = []byte{1}
)

func validRollupConfig(l2ChainID int64) *rollup.Config {
	cfg := &rollup.Config{
		BlockTime:              2,
		MaxSequencerDrift:      600,
		SeqWindowSize:          3600,
		ChannelTimeoutBedrock:  300,
		L1ChainID:              validL1ChainConfig.ChainID,
		L2ChainID:              big.NewInt(l2ChainID),
		BatchInboxAddress:      common.Address{0xff, 0x01},
		DepositContractAddress: common.Address{0xff, 0x02},
	}
	cfg.Genesis.L1 = eth.BlockID{Hash: common.Hash{0x01}, Number: 100}
	cfg.Genesis.L2 = eth.BlockID{Hash: common.Hash{0x02}, Number: 0}
	cfg.Genesis.L2Time = 1000
	cfg.Genesis.SystemConfig.BatcherAddr = common.Address{0xba}
	cfg.Genesis.SystemConfig.Scalar = eth.Bytes32{31: 0x01}
	cfg.Genesis.SystemConfig.GasLimit = 30_000_000
	return cfg
}

func validL2ChainConfig(l2ChainID int64) *params.ChainConfig {
	cfg := *params.TestChainConfig
	cfg.ChainID = big.NewInt(l2ChainID)
	return &cfg
}

func validConfig() *Config {
	return NewSingleChainConfig("/tmp/preimages", validRollupConfig(901), validL2ChainConfig(901), validL1ChainConfig,
		validL1Head, validL2OutputRoot, validL2Claim, validL2ClaimBlockNum)
}

func validInteropConfig() *Config {
	return NewInteropConfig("/tmp/preimages",
		[]*rollup.Config{validRollupConfig(901), validRollupConfig(902)},
		[]*params.ChainConfig{validL2ChainConfig(901), validL2ChainConfig(902)},
		validL1ChainConfig, validL1Head, validAgreedPrestate, validL2Claim, validL2ClaimBlockNum)
}

func TestValidConfigIsValid(t *testing.T) {
	require.NoError(t, validConfig().Check())
}

func TestValidInteropConfigIsValid(t *testing.T) {
	cfg := validInteropConfig()
	require.NoError(t, cfg.Check())
	require.Equal(t, crypto.Keccak256Hash(validAgreedPrestate), cfg.L2OutputRoot)
}

func TestDataDirRequired(t *testing.T) {
	cfg := validConfig()
	cfg.DataDir = ""
	require.ErrorIs(t, cfg.Check(), ErrDataDirRequired)
}

func TestL2ChainID(t *testing.T) {
	t.Run("RequiredForSingleChain", func(t *testing.T) {
		cfg := validConfig()
		cfg.L2ChainID = eth.ChainID{}
		require.ErrorIs(t, cfg.Check(), ErrMissingL2ChainID)
	})

	t.Run("NotRequiredForInterop", func(t *testing.T) {
		cfg := validInteropConfig()
		cfg.L2ChainID = eth.ChainID{}
		require.NoError(t, cfg.Check())
	})

	t.Run("MustMatchRollup", func(t *testing.T) {
		cfg := validConfig()
		cfg.L2ChainID = eth.ChainIDFromUInt64(12345)
		require.ErrorIs(t, cfg.Check(), ErrNoGenesisForRollup)
	})
}

func TestRollupConfig(t *testing.T) {
	t.Run("Required", func(t *testing.T) {
		cfg := validConfig()
		cfg.Rollups = nil
		require.ErrorIs(t, cfg.Check(), ErrNoL2Chains)
	})

	t.Run("Invalid", func(t *testing.T) {
		cfg := validConfig()
		cfg.Rollups = []*rollup.Config{{}}
		require.ErrorIs(t, cfg.Check(), rollup.ErrBlockTimeZero)
	})

	t.Run("DisallowDuplicates", func(t *testing.T) {
		cfg := validInteropConfig()
		cfg.Rollups = append(cfg.Rollups, validRollupConfig(901))
		require.ErrorIs(t, cfg.Check(), ErrDuplicateRollup)
	})

	t.Run("SingleChainOnlyWithoutInterop", func(t *testing.T) {
		cfg := validConfig()
		cfg.Rollups = append(cfg.Rollups, validRollupConfig(902))
		cfg.L2ChainConfigs = append(cfg.L2ChainConfigs, validL2ChainConfig(902))
		require.ErrorIs(t, cfg.Check(), ErrSingleChainOnly)
	})

	t.Run("L1ChainMismatch", func(t *testing.T) {
		cfg := validConfig()
		cfg.L1ChainConfig = params.MainnetChainConfig
		require.ErrorIs(t, cfg.Check(), ErrL1ChainMismatch)
	})
}

func TestL2Genesis(t *testing.T) {
	t.Run("RequiredForEachRollup", func(t *testing.T) {
		cfg := validInteropConfig()
		cfg.L2ChainConfigs = cfg.L2ChainConfigs[:1]
		require.ErrorIs(t, cfg.Check(), ErrNoGenesisForRollup)
	})

	t.Run("RequiresRollup", func(t *testing.T) {
		cfg := validInteropConfig()
		cfg.L2ChainConfigs = append(cfg.L2ChainConfigs, validL2ChainConfig(903))
		require.ErrorIs(t, cfg.Check(), ErrNoRollupForGenesis)
	})

	t.Run("DisallowDuplicates", func(t *testing.T) {
		cfg := validInteropConfig()
		cfg.L2ChainConfigs = append(cfg.L2ChainConfigs, validL2ChainConfig(902))
		require.ErrorIs(t, cfg.Check(), ErrDuplicateGenesis)
	})
}

func TestL1ChainConfigRequired(t *testing.T) {
	cfg := validConfig()
	cfg.L1ChainConfig = nil
	require.ErrorIs(t, cfg.Check(), ErrMissingL1ChainConfig)
}

func TestL1HeadRequired(t *testing.T) {
	cfg := validConfig()
	cfg.L1Head = common.Hash{}
	require.ErrorIs(t, cfg.Check(), ErrInvalidL1Head)
}

func TestL2OutputRootRequired(t *testing.T) {
	cfg := validConfig()
	cfg.L2OutputRoot = common.Hash{}
	require.ErrorIs(t, cfg.Check(), ErrInvalidL2OutputRoot)
}

// The claim may be any value, including the zero hash.
func TestL2ClaimMayBeNil(t *testing.T) {
	cfg := validConfig()
	cfg.L2Claim = common.Hash{}
	require.NoError(t, cfg.Check())
}

func TestAgreedPrestate(t *testing.T) {
	t.Run("Required", func(t *testing.T) {
		cfg := validInteropConfig()
		cfg.AgreedPrestate = nil
		require.ErrorIs(t, cfg.Check(), ErrMissingAgreedPrestate)
	})

	t.Run("MustMatchOutputRoot", func(t *testing.T) {
		cfg := validInteropConfig()
		cfg.L2OutputRoot = common.Hash{0xee}
		require.ErrorIs(t, cfg.Check(), ErrInvalidAgreedPrestate)
	})
}

func TestCheckReportsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.DataDir = ""
	cfg.L1Head = common.Hash{}
	cfg.L1ChainConfig = nil
	err := cfg.Check()
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	require.Len(t, merr.Errors, 3)
	require.ErrorIs(t, err, ErrDataDirRequired)
	require.ErrorIs(t, err, ErrInvalidL1Head)
	require.ErrorIs(t, err, ErrMissingL1ChainConfig)
}
