package boot

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"

	"github.com/mantlenetworkio/interop-proof/op-node/rollup"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

// BootInfo is the input of a single chain output root verification.
type BootInfo struct {
	L1Head             common.Hash
	L2OutputRoot       common.Hash
	L2Claim            common.Hash
	L2ClaimBlockNumber uint64
	L2ChainID          eth.ChainID

	L2ChainConfig *params.ChainConfig
	RollupConfig  *rollup.Config
	L1ChainConfig *params.ChainConfig
}

type BootstrapClient struct {
	r oracleClient
}

func NewBootstrapClient(r oracleClient) *BootstrapClient {
	return &BootstrapClient{r: r}
}

func (br *BootstrapClient) BootInfo() (*BootInfo, error) {
	l1Head, err := readHash(br.r, L1HeadLocalIndex)
	if err != nil {
		return nil, err
	}
	l2OutputRoot, err := readHash(br.r, L2OutputRootLocalIndex)
	if err != nil {
		return nil, err
	}
	l2Claim, err := readHash(br.r, L2ClaimLocalIndex)
	if err != nil {
		return nil, err
	}
	l2ClaimBlockNumber, err := readUint64(br.r, L2ClaimBlockNumberLocalIndex)
	if err != nil {
		return nil, err
	}
	l2ChainID, err := readUint64(br.r, L2ChainIDLocalIndex)
	if err != nil {
		return nil, err
	}

	l2ChainConfig := new(params.ChainConfig)
	if err := json.Unmarshal(br.r.Get(L2ChainConfigLocalIndex), l2ChainConfig); err != nil {
		return nil, fmt.Errorf("failed to bootstrap l2 chain config: %w", err)
	}
	rollupConfig := new(rollup.Config)
	if err := json.Unmarshal(br.r.Get(RollupConfigLocalIndex), rollupConfig); err != nil {
		return nil, fmt.Errorf("failed to bootstrap rollup config: %w", err)
	}
	l1ChainConfig := new(params.ChainConfig)
	if err := json.Unmarshal(br.r.Get(L1ChainConfigLocalIndex), l1ChainConfig); err != nil {
		return nil, fmt.Errorf("failed to bootstrap l1 chain config: %w", err)
	}
	if l1ChainConfig.ChainID == nil || rollupConfig.L1ChainID == nil || l1ChainConfig.ChainID.Cmp(rollupConfig.L1ChainID) != 0 {
		return nil, fmt.Errorf("%w: %v != %v", ErrL1ChainConfigMismatch, l1ChainConfig.ChainID, rollupConfig.L1ChainID)
	}
	if rollupConfig.L2ChainID == nil || rollupConfig.L2ChainID.Uint64() != l2ChainID {
		return nil, fmt.Errorf("%w: rollup config is for chain %v, expected %v", ErrUnknownChainID, rollupConfig.L2ChainID, l2ChainID)
	}

	return &BootInfo{
		L1Head:             l1Head,
		L2OutputRoot:       l2OutputRoot,
		L2Claim:            l2Claim,
		L2ClaimBlockNumber: l2ClaimBlockNumber,
		L2ChainID:          eth.ChainIDFromUInt64(l2ChainID),
		L2ChainConfig:      l2ChainConfig,
		RollupConfig:       rollupConfig,
		L1ChainConfig:      l1ChainConfig,
	}, nil
}
