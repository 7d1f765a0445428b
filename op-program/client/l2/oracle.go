package l2

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	preimage "github.com/mantlenetworkio/interop-proof/op-preimage"
	"github.com/mantlenetworkio/interop-proof/op-program/client/mpt"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

// StateOracle defines the high-level API used to retrieve L2 state data pre-images
// The returned data is always the preimage of the requested hash.
type StateOracle interface {
	// NodeByHash retrieves the merkle-patricia trie node pre-image for a given hash.
	// Trie nodes may be from the world state trie or any account storage trie.
	// Contract code is not stored as part of the trie and must be retrieved via CodeByHash
	NodeByHash(nodeHash common.Hash, chainID eth.ChainID) ([]byte, error)

	// CodeByHash retrieves the contract code pre-image for a given hash.
	// codeHash should be retrieved from the world state account for a contract.
	CodeByHash(codeHash common.Hash, chainID eth.ChainID) ([]byte, error)
}

// Oracle defines the high-level API used to retrieve L2 data.
// The returned data is always the preimage of the requested hash.
type Oracle interface {
	StateOracle

	// BlockByHash retrieves the block with the given hash.
	BlockByHash(blockHash common.Hash, chainID eth.ChainID) (*types.Block, error)

	// OutputByRoot retrieves the output committed to by the given output root.
	OutputByRoot(root common.Hash, chainID eth.ChainID) (eth.Output, error)

	// ReceiptsByBlockHash retrieves the block with the given hash and its receipts.
	ReceiptsByBlockHash(blockHash common.Hash, chainID eth.ChainID) (*types.Block, types.Receipts, error)
}

// PreimageOracle implements Oracle using by interfacing with the pure preimage.Oracle
// to fetch pre-images to decode into the requested data.
type PreimageOracle struct {
	oracle preimage.Oracle
	hint   preimage.Hinter
}

var _ Oracle = (*PreimageOracle)(nil)

func NewPreimageOracle(raw preimage.Oracle, hint preimage.Hinter) *PreimageOracle {
	return &PreimageOracle{
		oracle: raw,
		hint:   hint,
	}
}

func (p *PreimageOracle) getKeccak(key common.Hash) ([]byte, error) {
	data := p.oracle.Get(preimage.Keccak256Key(key))
	if len(data) == 0 {
		return nil, fmt.Errorf("missing preimage %s", key)
	}
	return data, nil
}

func (p *PreimageOracle) headerByBlockHash(blockHash common.Hash, chainID eth.ChainID) (*types.Header, error) {
	p.hint.Hint(BlockHeaderHint{Hash: blockHash, ChainID: chainID})
	headerRlp := p.oracle.Get(preimage.Keccak256Key(blockHash))
	var header types.Header
	if err := rlp.DecodeBytes(headerRlp, &header); err != nil {
		return nil, fmt.Errorf("invalid block header %s: %w", blockHash, err)
	}
	return &header, nil
}

func (p *PreimageOracle) BlockByHash(blockHash common.Hash, chainID eth.ChainID) (*types.Block, error) {
	header, err := p.headerByBlockHash(blockHash, chainID)
	if err != nil {
		return nil, err
	}
	txs, err := p.loadTransactions(blockHash, header.TxHash, chainID)
	if err != nil {
		return nil, err
	}
	return types.NewBlockWithHeader(header).WithBody(types.Body{Transactions: txs}), nil
}

func (p *PreimageOracle) loadTransactions(blockHash common.Hash, txHash common.Hash, chainID eth.ChainID) ([]*types.Transaction, error) {
	p.hint.Hint(TransactionsHint{Hash: blockHash, ChainID: chainID})

	opaqueTxs, err := mpt.ReadTrie(txHash, p.getKeccak)
	if err != nil {
		return nil, fmt.Errorf("failed to read txs of block %s: %w", blockHash, err)
	}

	txs, err := eth.DecodeTransactions(opaqueTxs)
	if err != nil {
		return nil, fmt.Errorf("failed to decode list of txs: %w", err)
	}
	return txs, nil
}

func (p *PreimageOracle) NodeByHash(nodeHash common.Hash, chainID eth.ChainID) ([]byte, error) {
	p.hint.Hint(StateNodeHint{Hash: nodeHash, ChainID: chainID})
	return p.getKeccak(nodeHash)
}

func (p *PreimageOracle) CodeByHash(codeHash common.Hash, chainID eth.ChainID) ([]byte, error) {
	p.hint.Hint(CodeHint{Hash: codeHash, ChainID: chainID})
	return p.getKeccak(codeHash)
}

func (p *PreimageOracle) OutputByRoot(l2OutputRoot common.Hash, chainID eth.ChainID) (eth.Output, error) {
	p.hint.Hint(L2OutputHint{Hash: l2OutputRoot, ChainID: chainID})
	data := p.oracle.Get(preimage.Keccak256Key(l2OutputRoot))
	output, err := eth.UnmarshalOutput(data)
	if err != nil {
		return nil, fmt.Errorf("invalid L2 output data for root %s: %w", l2OutputRoot, err)
	}
	return output, nil
}

func (p *PreimageOracle) ReceiptsByBlockHash(blockHash common.Hash, chainID eth.ChainID) (*types.Block, types.Receipts, error) {
	block, err := p.BlockByHash(blockHash, chainID)
	if err != nil {
		return nil, nil, err
	}
	p.hint.Hint(ReceiptsHint{Hash: blockHash, ChainID: chainID})
	opaqueReceipts, err := mpt.ReadTrie(block.ReceiptHash(), p.getKeccak)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read receipts of block %s: %w", blockHash, err)
	}
	receipts, err := eth.DecodeRawReceipts(eth.ToBlockID(block), opaqueReceipts, block.Transactions())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode receipts for block %v: %w", block.Hash(), err)
	}
	return block, receipts, nil
}
