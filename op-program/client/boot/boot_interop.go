package boot

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/hashicorp/go-multierror"

	"github.com/mantlenetworkio/interop-proof/op-node/rollup"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

var (
	ErrUnknownChainID        = errors.New("unknown chain id")
	ErrL1ChainConfigMismatch = errors.New("l1 chain config chain ID mismatch")
)

type BootInfoInterop struct {
	Configs ConfigSource

	L1Head         common.Hash
	AgreedPrestate common.Hash
	Claim          common.Hash
	GameTimestamp  uint64
}

type ConfigSource interface {
	RollupConfig(chainID eth.ChainID) (*rollup.Config, error)
	ChainConfig(chainID eth.ChainID) (*params.ChainConfig, error)
	L1ChainConfig(chainID eth.ChainID) (*params.ChainConfig, error)
}

// OracleConfigSource reads the chain configurations from local preimage keys on first use.
type OracleConfigSource struct {
	oracle oracleClient

	loaded  bool
	loadErr error

	l1ChainConfig  *params.ChainConfig
	l2ChainConfigs map[eth.ChainID]*params.ChainConfig
	rollupConfigs  map[eth.ChainID]*rollup.Config
}

var _ ConfigSource = (*OracleConfigSource)(nil)

func NewOracleConfigSource(r oracleClient) *OracleConfigSource {
	return &OracleConfigSource{
		oracle:         r,
		l2ChainConfigs: make(map[eth.ChainID]*params.ChainConfig),
		rollupConfigs:  make(map[eth.ChainID]*rollup.Config),
	}
}

func (c *OracleConfigSource) RollupConfig(chainID eth.ChainID) (*rollup.Config, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	cfg, ok := c.rollupConfigs[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownChainID, chainID)
	}
	return cfg, nil
}

func (c *OracleConfigSource) ChainConfig(chainID eth.ChainID) (*params.ChainConfig, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	cfg, ok := c.l2ChainConfigs[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownChainID, chainID)
	}
	return cfg, nil
}

func (c *OracleConfigSource) L1ChainConfig(chainID eth.ChainID) (*params.ChainConfig, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	if eth.ChainIDFromBig(c.l1ChainConfig.ChainID) != chainID {
		return nil, fmt.Errorf("%w: %v != %v", ErrL1ChainConfigMismatch, c.l1ChainConfig.ChainID, chainID)
	}
	return c.l1ChainConfig, nil
}

// Validate loads all configurations and reports every inconsistency between them.
func (c *OracleConfigSource) Validate() error {
	return c.load()
}

func (c *OracleConfigSource) load() error {
	if c.loaded {
		return c.loadErr
	}
	c.loaded = true
	c.loadErr = c.loadConfigs()
	return c.loadErr
}

func (c *OracleConfigSource) loadConfigs() error {
	var rollupConfigs []*rollup.Config
	if err := json.Unmarshal(c.oracle.Get(RollupConfigLocalIndex), &rollupConfigs); err != nil {
		return fmt.Errorf("failed to bootstrap rollup configs: %w", err)
	}
	var chainConfigs []*params.ChainConfig
	if err := json.Unmarshal(c.oracle.Get(L2ChainConfigLocalIndex), &chainConfigs); err != nil {
		return fmt.Errorf("failed to bootstrap chain configs: %w", err)
	}
	var l1ChainConfig *params.ChainConfig
	if err := json.Unmarshal(c.oracle.Get(L1ChainConfigLocalIndex), &l1ChainConfig); err != nil {
		return fmt.Errorf("failed to bootstrap l1 chain config: %w", err)
	}
	if l1ChainConfig == nil || l1ChainConfig.ChainID == nil {
		return errors.New("failed to bootstrap l1 chain config: missing chain ID")
	}

	var result *multierror.Error
	for _, cfg := range chainConfigs {
		if cfg == nil || cfg.ChainID == nil {
			result = multierror.Append(result, errors.New("chain config without chain ID"))
			continue
		}
		c.l2ChainConfigs[eth.ChainIDFromBig(cfg.ChainID)] = cfg
	}
	for _, cfg := range rollupConfigs {
		if cfg == nil || cfg.L2ChainID == nil {
			result = multierror.Append(result, errors.New("rollup config without L2 chain ID"))
			continue
		}
		chainID := eth.ChainIDFromBig(cfg.L2ChainID)
		if err := cfg.Check(); err != nil {
			result = multierror.Append(result, fmt.Errorf("invalid rollup config for chain %v: %w", chainID, err))
		}
		if cfg.L1ChainID != nil && cfg.L1ChainID.Cmp(l1ChainConfig.ChainID) != 0 {
			result = multierror.Append(result, fmt.Errorf("%w: rollup config of chain %v has L1 chain %v, l1 chain config has %v",
				ErrL1ChainConfigMismatch, chainID, cfg.L1ChainID, l1ChainConfig.ChainID))
		}
		if _, ok := c.l2ChainConfigs[chainID]; !ok {
			result = multierror.Append(result, fmt.Errorf("%w: no chain config for rollup config of chain %v", ErrUnknownChainID, chainID))
		}
		c.rollupConfigs[chainID] = cfg
	}
	c.l1ChainConfig = l1ChainConfig
	return result.ErrorOrNil()
}

func BootstrapInterop(r oracleClient) (*BootInfoInterop, error) {
	l1Head, err := readHash(r, L1HeadLocalIndex)
	if err != nil {
		return nil, err
	}
	agreedPrestate, err := readHash(r, L2OutputRootLocalIndex)
	if err != nil {
		return nil, err
	}
	claim, err := readHash(r, L2ClaimLocalIndex)
	if err != nil {
		return nil, err
	}
	gameTimestamp, err := readUint64(r, L2ClaimBlockNumberLocalIndex)
	if err != nil {
		return nil, err
	}
	return &BootInfoInterop{
		Configs:        NewOracleConfigSource(r),
		L1Head:         l1Head,
		AgreedPrestate: agreedPrestate,
		Claim:          claim,
		GameTimestamp:  gameTimestamp,
	}, nil
}
