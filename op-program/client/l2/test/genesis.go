package test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/interop-proof/op-service/eth"
	"github.com/mantlenetworkio/interop-proof/op-service/predeploys"
)

// ChainConfig returns an L2 chain config with all forks up to Granite active at genesis.
func ChainConfig() *params.ChainConfig {
	config := *params.MergedTestChainConfig
	var zero uint64
	config.RegolithTime = &zero
	config.CanyonTime = &zero
	config.EcotoneTime = &zero
	config.FjordTime = &zero
	config.GraniteTime = &zero
	config.HoloceneTime = nil
	config.IsthmusTime = nil
	config.PragueTime = nil
	config.OsakaTime = nil

	denomCanyon := uint64(250)
	config.Optimism = &params.OptimismConfig{
		EIP1559Denominator:       50,
		EIP1559Elasticity:        10,
		EIP1559DenominatorCanyon: &denomCanyon,
	}
	// OP-Stack chain configs must have nil blob schedule
	config.BlobScheduleConfig = nil
	return &config
}

// Genesis commits a genesis block with the message passer deployed into a fresh in-memory database.
func Genesis(t *testing.T, config *params.ChainConfig) (*types.Block, ethdb.Database) {
	genesis := &core.Genesis{
		Config:     config,
		Difficulty: common.Big0,
		BaseFee:    big.NewInt(7),
		GasLimit:   30_000_000,
		Timestamp:  1000,
		Alloc: map[common.Address]types.Account{
			predeploys.L2ToL1MessagePasserAddr: {Nonce: 1, Code: []byte{0x60, 0x00}, Balance: common.Big0},
		},
	}
	db := rawdb.NewMemoryDatabase()
	block, err := genesis.Commit(db, triedb.NewDatabase(db, triedb.HashDefaults))
	require.NoError(t, err)
	return block, db
}

// GenesisOutput is the V0 output of a genesis block created by Genesis.
func GenesisOutput(block *types.Block) *eth.OutputV0 {
	return &eth.OutputV0{
		StateRoot:                eth.Bytes32(block.Root()),
		MessagePasserStorageRoot: eth.Bytes32(types.EmptyRootHash),
		BlockHash:                block.Hash(),
	}
}

// PayloadAttributes builds empty attributes for the block after parent.
func PayloadAttributes(parent *types.Header) *eth.PayloadAttributes {
	gasLimit := eth.Uint64Quantity(parent.GasLimit)
	return &eth.PayloadAttributes{
		Timestamp:             eth.Uint64Quantity(parent.Time + 2),
		PrevRandao:            eth.Bytes32{0x11},
		SuggestedFeeRecipient: common.Address{0x33},
		Withdrawals:           &types.Withdrawals{},
		ParentBeaconBlockRoot: &common.Hash{0x22},
		NoTxPool:              true,
		GasLimit:              &gasLimit,
	}
}
