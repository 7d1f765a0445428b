package config

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/hashicorp/go-multierror"

	"github.com/mantlenetworkio/interop-proof/op-node/rollup"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

var (
	ErrDataDirRequired       = errors.New("datadir must be specified")
	ErrNoL2Chains            = errors.New("at least one L2 chain must be specified")
	ErrMissingL2ChainID      = errors.New("missing l2 chain id")
	ErrNoGenesisForRollup    = errors.New("no l2 genesis for rollup")
	ErrNoRollupForGenesis    = errors.New("no rollup config matching l2 genesis")
	ErrDuplicateRollup       = errors.New("duplicate rollup")
	ErrDuplicateGenesis      = errors.New("duplicate l2 genesis")
	ErrMissingL1ChainConfig  = errors.New("missing l1 chain config")
	ErrL1ChainMismatch       = errors.New("rollup l1 chain id does not match l1 chain config")
	ErrInvalidL1Head         = errors.New("invalid l1 head")
	ErrInvalidL2OutputRoot   = errors.New("invalid l2 output root")
	ErrMissingAgreedPrestate = errors.New("missing agreed prestate")
	ErrInvalidAgreedPrestate = errors.New("invalid l2 agreed prestate")
	ErrSingleChainOnly       = errors.New("exactly one l2 chain must be specified when interop is disabled")
)

type Config struct {
	// DataDir is the directory of the pebble pre-image database to read pre-images from.
	DataDir string

	// InteropEnabled runs a super root sub-transition instead of a single chain output root verification.
	InteropEnabled bool

	// L1Head is the block hash of the L1 chain head block
	L1Head common.Hash
	// L2OutputRoot is the agreed L2 output root, or the hash of the agreed prestate when interop is enabled.
	L2OutputRoot common.Hash
	// AgreedPrestate is the preimage of the agreed prestate claim. Required for interop.
	AgreedPrestate []byte
	// L2Claim is the claimed commitment to verify
	L2Claim common.Hash
	// L2ClaimBlockNumber is the block number of the claim, or the game timestamp when interop is enabled.
	L2ClaimBlockNumber uint64
	// L2ChainID is the chain being verified. Only used when interop is disabled.
	L2ChainID eth.ChainID

	Rollups        []*rollup.Config
	L2ChainConfigs []*params.ChainConfig
	L1ChainConfig  *params.ChainConfig
}

// Check validates the config, reporting every problem found.
func (c *Config) Check() error {
	var result *multierror.Error
	if c.DataDir == "" {
		result = multierror.Append(result, ErrDataDirRequired)
	}
	if c.L1Head == (common.Hash{}) {
		result = multierror.Append(result, ErrInvalidL1Head)
	}
	if c.L2OutputRoot == (common.Hash{}) {
		result = multierror.Append(result, ErrInvalidL2OutputRoot)
	}
	if len(c.Rollups) == 0 {
		result = multierror.Append(result, ErrNoL2Chains)
	}
	if c.InteropEnabled {
		if len(c.AgreedPrestate) == 0 {
			result = multierror.Append(result, ErrMissingAgreedPrestate)
		} else if crypto.Keccak256Hash(c.AgreedPrestate) != c.L2OutputRoot {
			result = multierror.Append(result, fmt.Errorf("%w: must be preimage of L2 output root", ErrInvalidAgreedPrestate))
		}
	} else {
		if c.L2ChainID == (eth.ChainID{}) {
			result = multierror.Append(result, ErrMissingL2ChainID)
		}
		if len(c.Rollups) > 1 || len(c.L2ChainConfigs) > 1 {
			result = multierror.Append(result, ErrSingleChainOnly)
		}
	}
	if c.L1ChainConfig == nil || c.L1ChainConfig.ChainID == nil {
		result = multierror.Append(result, ErrMissingL1ChainConfig)
	}

	rollupChains := make(map[eth.ChainID]bool)
	for _, rollupCfg := range c.Rollups {
		if err := rollupCfg.Check(); err != nil {
			result = multierror.Append(result, fmt.Errorf("invalid rollup config for chain %v: %w", rollupCfg.L2ChainID, err))
			continue
		}
		chainID := eth.ChainIDFromBig(rollupCfg.L2ChainID)
		if rollupChains[chainID] {
			result = multierror.Append(result, fmt.Errorf("%w for chain ID %v", ErrDuplicateRollup, chainID))
		}
		rollupChains[chainID] = true
		if c.L1ChainConfig != nil && c.L1ChainConfig.ChainID != nil && rollupCfg.L1ChainID.Cmp(c.L1ChainConfig.ChainID) != 0 {
			result = multierror.Append(result, fmt.Errorf("%w: rollup for chain %v uses L1 chain %v, l1 chain config is for %v",
				ErrL1ChainMismatch, chainID, rollupCfg.L1ChainID, c.L1ChainConfig.ChainID))
		}
	}
	genesisChains := make(map[eth.ChainID]bool)
	for _, chainCfg := range c.L2ChainConfigs {
		if chainCfg.ChainID == nil {
			result = multierror.Append(result, fmt.Errorf("%w: l2 genesis without chain id", ErrMissingL2ChainID))
			continue
		}
		chainID := eth.ChainIDFromBig(chainCfg.ChainID)
		if genesisChains[chainID] {
			result = multierror.Append(result, fmt.Errorf("%w for chain ID %v", ErrDuplicateGenesis, chainID))
		}
		genesisChains[chainID] = true
		if !rollupChains[chainID] {
			result = multierror.Append(result, fmt.Errorf("%w for chain ID %v", ErrNoRollupForGenesis, chainID))
		}
	}
	for chainID := range rollupChains {
		if !genesisChains[chainID] {
			result = multierror.Append(result, fmt.Errorf("%w for chain ID %v", ErrNoGenesisForRollup, chainID))
		}
	}
	if !c.InteropEnabled && len(c.Rollups) == 1 && c.L2ChainID != (eth.ChainID{}) &&
		c.Rollups[0].L2ChainID != nil && eth.ChainIDFromBig(c.Rollups[0].L2ChainID) != c.L2ChainID {
		result = multierror.Append(result, fmt.Errorf("%w: l2 chain id %v has no rollup config", ErrNoGenesisForRollup, c.L2ChainID))
	}
	return result.ErrorOrNil()
}

// NewSingleChainConfig creates a Config that verifies an output root of a single chain.
func NewSingleChainConfig(
	dataDir string,
	rollupCfg *rollup.Config,
	l2ChainConfig *params.ChainConfig,
	l1ChainConfig *params.ChainConfig,
	l1Head common.Hash,
	l2OutputRoot common.Hash,
	l2Claim common.Hash,
	l2ClaimBlockNum uint64,
) *Config {
	return &Config{
		DataDir:            dataDir,
		L1Head:             l1Head,
		L2OutputRoot:       l2OutputRoot,
		L2Claim:            l2Claim,
		L2ClaimBlockNumber: l2ClaimBlockNum,
		L2ChainID:          eth.ChainIDFromBig(l2ChainConfig.ChainID),
		Rollups:            []*rollup.Config{rollupCfg},
		L2ChainConfigs:     []*params.ChainConfig{l2ChainConfig},
		L1ChainConfig:      l1ChainConfig,
	}
}

// NewInteropConfig creates a Config that verifies a single super root sub-transition.
// The L2 output root is the hash of the agreed prestate.
func NewInteropConfig(
	dataDir string,
	rollupCfgs []*rollup.Config,
	l2ChainConfigs []*params.ChainConfig,
	l1ChainConfig *params.ChainConfig,
	l1Head common.Hash,
	agreedPrestate []byte,
	claim common.Hash,
	gameTimestamp uint64,
) *Config {
	return &Config{
		DataDir:            dataDir,
		InteropEnabled:     true,
		L1Head:             l1Head,
		L2OutputRoot:       crypto.Keccak256Hash(agreedPrestate),
		AgreedPrestate:     agreedPrestate,
		L2Claim:            claim,
		L2ClaimBlockNumber: gameTimestamp,
		Rollups:            rollupCfgs,
		L2ChainConfigs:     l2ChainConfigs,
		L1ChainConfig:      l1ChainConfig,
	}
}
