package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/params"

	"github.com/mantlenetworkio/interop-proof/op-node/rollup"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

// BootFile is the TOML description of a single verification run.
// Relative config paths are resolved against the directory of the boot file.
//
//	interop = true
//	l1_head = "0x..."
//	agreed_prestate = "0x..."
//	claim = "0x..."
//	game_timestamp = 1700000000
//	rollup_configs = ["rollup-901.json", "rollup-902.json"]
//	l2_genesis = ["genesis-901.json", "genesis-902.json"]
//	l1_chain_config = "l1-genesis.json"
type BootFile struct {
	Interop bool `toml:"interop"`

	L1Head common.Hash `toml:"l1_head"`
	Claim  common.Hash `toml:"claim"`

	// Single chain verification
	L2OutputRoot       common.Hash `toml:"l2_output_root"`
	L2ClaimBlockNumber uint64      `toml:"l2_claim_block_number"`
	L2ChainID          eth.ChainID `toml:"l2_chain_id"`

	// Super root sub-transition
	AgreedPrestate hexutil.Bytes `toml:"agreed_prestate"`
	GameTimestamp  uint64        `toml:"game_timestamp"`

	RollupConfigs []string `toml:"rollup_configs"`
	L2Genesis     []string `toml:"l2_genesis"`
	L1ChainConfig string   `toml:"l1_chain_config"`
}

// knownL1ChainConfigs are used when the boot file does not name an L1 chain config.
var knownL1ChainConfigs = map[eth.ChainID]*params.ChainConfig{
	eth.ChainIDFromBig(params.MainnetChainConfig.ChainID): params.MainnetChainConfig,
	eth.ChainIDFromBig(params.SepoliaChainConfig.ChainID): params.SepoliaChainConfig,
	eth.ChainIDFromBig(params.HoleskyChainConfig.ChainID): params.HoleskyChainConfig,
}

// KnownL1ChainConfig returns the built-in chain config of a public L1 chain.
func KnownL1ChainConfig(chainID eth.ChainID) (*params.ChainConfig, bool) {
	cfg, ok := knownL1ChainConfigs[chainID]
	return cfg, ok
}

// LoadBootFile reads the boot file at path and the chain configurations it references.
// The returned Config is not checked.
func LoadBootFile(path string, dataDir string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read boot file %v: %w", path, err)
	}
	var boot BootFile
	md, err := toml.Decode(string(data), &boot)
	if err != nil {
		return nil, fmt.Errorf("failed to parse boot file %v: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown fields in boot file %v: %v", path, undecoded)
	}
	base := filepath.Dir(path)
	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	var rollupCfgs []*rollup.Config
	for _, p := range boot.RollupConfigs {
		cfg, err := LoadRollupConfig(resolve(p))
		if err != nil {
			return nil, fmt.Errorf("invalid rollup config: %w", err)
		}
		rollupCfgs = append(rollupCfgs, cfg)
	}
	var l2ChainConfigs []*params.ChainConfig
	for _, p := range boot.L2Genesis {
		cfg, err := LoadChainConfig(resolve(p))
		if err != nil {
			return nil, fmt.Errorf("invalid genesis: %w", err)
		}
		l2ChainConfigs = append(l2ChainConfigs, cfg)
	}
	var l1ChainConfig *params.ChainConfig
	if boot.L1ChainConfig != "" {
		l1ChainConfig, err = LoadChainConfig(resolve(boot.L1ChainConfig))
		if err != nil {
			return nil, fmt.Errorf("invalid l1 chain config: %w", err)
		}
	} else if len(rollupCfgs) > 0 && rollupCfgs[0].L1ChainID != nil {
		l1ChainConfig = knownL1ChainConfigs[eth.ChainIDFromBig(rollupCfgs[0].L1ChainID)]
	}

	if boot.Interop {
		return NewInteropConfig(dataDir, rollupCfgs, l2ChainConfigs, l1ChainConfig, boot.L1Head, boot.AgreedPrestate, boot.Claim, boot.GameTimestamp), nil
	}
	return &Config{
		DataDir:            dataDir,
		L1Head:             boot.L1Head,
		L2OutputRoot:       boot.L2OutputRoot,
		L2Claim:            boot.Claim,
		L2ClaimBlockNumber: boot.L2ClaimBlockNumber,
		L2ChainID:          boot.L2ChainID,
		Rollups:            rollupCfgs,
		L2ChainConfigs:     l2ChainConfigs,
		L1ChainConfig:      l1ChainConfig,
	}, nil
}

// LoadRollupConfig reads a rollup config JSON file.
func LoadRollupConfig(path string) (*rollup.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rollup config: %w", err)
	}
	defer file.Close()

	var rollupConfig rollup.Config
	return &rollupConfig, rollupConfig.ParseRollupConfig(file)
}

// LoadChainConfig decodes the .config field of a genesis file, or the whole file as a chain config.
func LoadChainConfig(path string) (*params.ChainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain config: %w", err)
	}
	var genesis struct {
		Config *params.ChainConfig `json:"config"`
	}
	if err := json.Unmarshal(data, &genesis); err != nil {
		return nil, fmt.Errorf("failed to parse chain config %v: %w", path, err)
	}
	if genesis.Config != nil {
		return genesis.Config, nil
	}
	var chainConfig params.ChainConfig
	if err := json.Unmarshal(data, &chainConfig); err != nil {
		return nil, fmt.Errorf("failed to parse chain config %v: %w", path, err)
	}
	if chainConfig.ChainID == nil {
		return nil, fmt.Errorf("chain config %v has no chain id", path)
	}
	return &chainConfig, nil
}
