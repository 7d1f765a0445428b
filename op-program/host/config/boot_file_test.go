package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

func writeJSON(t *testing.T, path string, v any) {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func writeChainFiles(t *testing.T, dir string, chainIDs ...int64) {
	for _, id := range chainIDs {
		writeJSON(t, filepath.Join(dir, fmt.Sprintf("rollup-%d.json", id)), validRollupConfig(id))
		writeJSON(t, filepath.Join(dir, fmt.Sprintf("genesis-%d.json", id)), map[string]any{"config": validL2ChainConfig(id)})
	}
}

func TestLoadBootFile(t *testing.T) {
	t.Run("SingleChain", func(t *testing.T) {
		dir := t.TempDir()
		writeChainFiles(t, dir, 901)
		boot := fmt.Sprintf(`
l1_head = "%s"
l2_output_root = "%s"
claim = "%s"
l2_claim_block_number = %d
l2_chain_id = 901
rollup_configs = ["rollup-901.json"]
l2_genesis = ["genesis-901.json"]
`, validL1Head, validL2OutputRoot, validL2Claim, validL2ClaimBlockNum)
		path := filepath.Join(dir, "boot.toml")
		require.NoError(t, os.WriteFile(path, []byte(boot), 0o644))

		cfg, err := LoadBootFile(path, "/data")
		require.NoError(t, err)
		require.NoError(t, cfg.Check())
		require.False(t, cfg.InteropEnabled)
		require.Equal(t, "/data", cfg.DataDir)
		require.Equal(t, validL1Head, cfg.L1Head)
		require.Equal(t, validL2OutputRoot, cfg.L2OutputRoot)
		require.Equal(t, validL2Claim, cfg.L2Claim)
		require.Equal(t, validL2ClaimBlockNum, cfg.L2ClaimBlockNumber)
		require.Equal(t, eth.ChainIDFromUInt64(901), cfg.L2ChainID)
		require.Len(t, cfg.Rollups, 1)
		require.Equal(t, uint64(901), cfg.Rollups[0].L2ChainID.Uint64())
		require.Equal(t, uint64(2), cfg.Rollups[0].BlockTime)
		require.Equal(t, uint64(901), cfg.L2ChainConfigs[0].ChainID.Uint64())
		// Known L1 chain configs are used when none is specified.
		require.Equal(t, params.SepoliaChainConfig, cfg.L1ChainConfig)
	})

	t.Run("Interop", func(t *testing.T) {
		dir := t.TempDir()
		writeChainFiles(t, dir, 901, 902)
		writeJSON(t, filepath.Join(dir, "l1.json"), validL1ChainConfig)
		boot := fmt.Sprintf(`
interop = true
l1_head = "%s"
agreed_prestate = "%s"
claim = "%s"
game_timestamp = 2000
rollup_configs = ["rollup-901.json", "rollup-902.json"]
l2_genesis = ["genesis-901.json", "genesis-902.json"]
l1_chain_config = "l1.json"
`, validL1Head, hexutil.Bytes(validAgreedPrestate), validL2Claim)
		path := filepath.Join(dir, "boot.toml")
		require.NoError(t, os.WriteFile(path, []byte(boot), 0o644))

		cfg, err := LoadBootFile(path, "/data")
		require.NoError(t, err)
		require.NoError(t, cfg.Check())
		require.True(t, cfg.InteropEnabled)
		require.Equal(t, validAgreedPrestate, cfg.AgreedPrestate)
		require.Equal(t, uint64(2000), cfg.L2ClaimBlockNumber)
		require.Len(t, cfg.Rollups, 2)
		require.Len(t, cfg.L2ChainConfigs, 2)
		require.Equal(t, validL1ChainConfig.ChainID, cfg.L1ChainConfig.ChainID)
	})

	t.Run("UnknownField", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "boot.toml")
		require.NoError(t, os.WriteFile(path, []byte(`l2_head = "0x01"`), 0o644))
		_, err := LoadBootFile(path, "/data")
		require.ErrorContains(t, err, "unknown fields")
	})

	t.Run("MissingRollupConfig", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "boot.toml")
		require.NoError(t, os.WriteFile(path, []byte(`rollup_configs = ["missing.json"]`), 0o644))
		_, err := LoadBootFile(path, "/data")
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadBootFile(filepath.Join(t.TempDir(), "boot.toml"), "/data")
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}
