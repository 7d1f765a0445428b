package boot

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mantlenetworkio/interop-proof/op-node/rollup"
	preimage "github.com/mantlenetworkio/interop-proof/op-preimage"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

type mockBootstrapOracle struct {
	l1Head             common.Hash
	l2OutputRoot       common.Hash
	l2Claim            common.Hash
	l2ClaimBlockNumber uint64
}

func (o *mockBootstrapOracle) Get(key preimage.Key) []byte {
	switch key.PreimageKey() {
	case L1HeadLocalIndex.PreimageKey():
		return o.l1Head[:]
	case L2OutputRootLocalIndex.PreimageKey():
		return o.l2OutputRoot[:]
	case L2ClaimLocalIndex.PreimageKey():
		return o.l2Claim[:]
	case L2ClaimBlockNumberLocalIndex.PreimageKey():
		return binary.BigEndian.AppendUint64(nil, o.l2ClaimBlockNumber)
	default:
		panic("unknown key")
	}
}

// validRollupConfig passes rollup.Config.Check.
func validRollupConfig(l1ChainID *big.Int, l2ChainID int64) *rollup.Config {
	cfg := &rollup.Config{
		BlockTime:              2,
		MaxSequencerDrift:      600,
		SeqWindowSize:          3600,
		ChannelTimeoutBedrock:  300,
		L1ChainID:              l1ChainID,
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
