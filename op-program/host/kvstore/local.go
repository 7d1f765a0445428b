package kvstore

import (
	"encoding/binary"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mantlenetworkio/interop-proof/op-program/client/boot"
	"github.com/mantlenetworkio/interop-proof/op-program/host/config"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

// LocalPreimageSource serves the boot inputs of the configured program run.
type LocalPreimageSource struct {
	config *config.Config
}

func NewLocalPreimageSource(config *config.Config) *LocalPreimageSource {
	return &LocalPreimageSource{config}
}

var (
	l1HeadKey             = boot.L1HeadLocalIndex.PreimageKey()
	l2OutputRootKey       = boot.L2OutputRootLocalIndex.PreimageKey()
	l2ClaimKey            = boot.L2ClaimLocalIndex.PreimageKey()
	l2ClaimBlockNumberKey = boot.L2ClaimBlockNumberLocalIndex.PreimageKey()
	l2ChainIDKey          = boot.L2ChainIDLocalIndex.PreimageKey()
	l2ChainConfigKey      = boot.L2ChainConfigLocalIndex.PreimageKey()
	rollupKey             = boot.RollupConfigLocalIndex.PreimageKey()
	l1ChainConfigKey      = boot.L1ChainConfigLocalIndex.PreimageKey()
)

func (s *LocalPreimageSource) Get(key common.Hash) ([]byte, error) {
	switch [32]byte(key) {
	case l1HeadKey:
		return s.config.L1Head.Bytes(), nil
	case l2OutputRootKey:
		return s.config.L2OutputRoot.Bytes(), nil
	case l2ClaimKey:
		return s.config.L2Claim.Bytes(), nil
	case l2ClaimBlockNumberKey:
		return binary.BigEndian.AppendUint64(nil, s.config.L2ClaimBlockNumber), nil
	case l2ChainIDKey:
		if s.config.InteropEnabled {
			return nil, ErrNotFound
		}
		return binary.BigEndian.AppendUint64(nil, eth.EvilChainIDToUInt64(s.config.L2ChainID)), nil
	case l2ChainConfigKey:
		if s.config.InteropEnabled {
			return json.Marshal(s.config.L2ChainConfigs)
		}
		return json.Marshal(s.config.L2ChainConfigs[0])
	case rollupKey:
		if s.config.InteropEnabled {
			return json.Marshal(s.config.Rollups)
		}
		return json.Marshal(s.config.Rollups[0])
	case l1ChainConfigKey:
		return json.Marshal(s.config.L1ChainConfig)
	default:
		return nil, ErrNotFound
	}
}
