package derive

import (
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mantlenetworkio/interop-proof/op-node/rollup"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

// L2BlockToBlockRef extracts the essential L2BlockRef information from an L2 block,
// falling back to genesis information if necessary.
func L2BlockToBlockRef(rollupCfg *rollup.Config, block *types.Block) (eth.L2BlockRef, error) {
	hash, number := block.Hash(), block.NumberU64()

	var l1Origin eth.BlockID
	var sequenceNumber uint64
	genesis := &rollupCfg.Genesis
	if number == genesis.L2.Number {
		if hash != genesis.L2.Hash {
			return eth.L2BlockRef{}, fmt.Errorf("expected L2 genesis hash to match L2 block at genesis block number %d: %s <> %s", genesis.L2.Number, hash, genesis.L2.Hash)
		}
		l1Origin = genesis.L1
		sequenceNumber = 0
	} else {
		info, err := l1InfoOfBlock(rollupCfg, block)
		if err != nil {
			return eth.L2BlockRef{}, err
		}
		l1Origin = eth.BlockID{Hash: info.BlockHash, Number: info.Number}
		sequenceNumber = info.SequenceNumber
	}

	return eth.L2BlockRef{
		Hash:           hash,
		Number:         number,
		ParentHash:     block.ParentHash(),
		Time:           block.Time(),
		L1Origin:       l1Origin,
		SequenceNumber: sequenceNumber,
	}, nil
}

// BlockToSystemConfig reconstructs the system config that the given L2 block was derived with,
// from the L1 info deposit and the header.
func BlockToSystemConfig(rollupCfg *rollup.Config, block *types.Block) (eth.SystemConfig, error) {
	if block.NumberU64() == rollupCfg.Genesis.L2.Number {
		if block.Hash() != rollupCfg.Genesis.L2.Hash {
			return eth.SystemConfig{}, fmt.Errorf("expected L2 genesis hash to match L2 block at genesis block number %d: %s <> %s",
				rollupCfg.Genesis.L2.Number, block.Hash(), rollupCfg.Genesis.L2.Hash)
		}
		return rollupCfg.Genesis.SystemConfig, nil
	}
	info, err := l1InfoOfBlock(rollupCfg, block)
	if err != nil {
		return eth.SystemConfig{}, err
	}
	sysCfg := eth.SystemConfig{
		BatcherAddr: info.BatcherAddr,
		Overhead:    info.L1FeeOverhead,
		Scalar:      info.L1FeeScalar,
		GasLimit:    block.GasLimit(),
	}
	if isEcotoneButNotFirstBlock(rollupCfg, block.Time()) {
		// The overhead is no longer carried in the L1 info, and the scalar is versioned.
		sysCfg.Overhead = eth.Bytes32{}
		sysCfg.Scalar = eth.EncodeScalar(eth.EcotoneScalars{
			BlobBaseFeeScalar: info.BlobBaseFeeScalar,
			BaseFeeScalar:     info.BaseFeeScalar,
		})
	}
	if rollupCfg.IsHolocene(block.Time()) {
		// Holocene extra-data: version byte followed by the denominator and elasticity.
		extra := block.Extra()
		if len(extra) < 1+len(sysCfg.EIP1559Params) {
			return eth.SystemConfig{}, fmt.Errorf("holocene block %s has invalid extra-data of length %d", block.Hash(), len(extra))
		}
		copy(sysCfg.EIP1559Params[:], extra[1:])
	}
	return sysCfg, nil
}

func l1InfoOfBlock(rollupCfg *rollup.Config, block *types.Block) (*L1BlockInfo, error) {
	txs := block.Transactions()
	if len(txs) == 0 {
		return nil, fmt.Errorf("l2 block %s is missing L1 info deposit tx", block.Hash())
	}
	tx := txs[0]
	if tx.Type() != types.DepositTxType {
		return nil, fmt.Errorf("first tx of block %s is not a deposit tx, but tx type %d", block.Hash(), tx.Type())
	}
	info, err := L1BlockInfoFromBytes(rollupCfg, block.Time(), tx.Data())
	if err != nil {
		return nil, fmt.Errorf("failed to parse L1 info deposit tx from L2 block %s: %w", block.Hash(), err)
	}
	return info, nil
}
