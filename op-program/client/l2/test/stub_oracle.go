package test

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	gethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb"

	preimage "github.com/mantlenetworkio/interop-proof/op-preimage"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

var ErrNotFound = errors.New("not found")

// Same as l2.StateOracle but need to use our own copy to avoid dependency loops
type stateOracle interface {
	NodeByHash(nodeHash common.Hash, chainID eth.ChainID) ([]byte, error)
	CodeByHash(codeHash common.Hash, chainID eth.ChainID) ([]byte, error)
}

// StubBlockOracle serves blocks, receipts and outputs from maps. Unknown keys are reported as ErrNotFound.
type StubBlockOracle struct {
	Blocks   map[common.Hash]*gethTypes.Block
	Receipts map[common.Hash]gethTypes.Receipts
	Outputs  map[common.Hash]eth.Output
	stateOracle
}

func NewStubOracle() (*StubBlockOracle, *StubStateOracle) {
	stateOracle := NewStubStateOracle()
	blockOracle := StubBlockOracle{
		Blocks:      make(map[common.Hash]*gethTypes.Block),
		Outputs:     make(map[common.Hash]eth.Output),
		Receipts:    make(map[common.Hash]gethTypes.Receipts),
		stateOracle: stateOracle,
	}
	return &blockOracle, stateOracle
}

// NewStubOracleWithBlocks serves the given chain, with state read from db.
func NewStubOracleWithBlocks(chain []*gethTypes.Block, outputs []eth.Output, db ethdb.KeyValueStore) *StubBlockOracle {
	blocks := make(map[common.Hash]*gethTypes.Block, len(chain))
	for _, block := range chain {
		blocks[block.Hash()] = block
	}
	o := make(map[common.Hash]eth.Output, len(outputs))
	for _, output := range outputs {
		o[common.Hash(eth.OutputRoot(output))] = output
	}
	return &StubBlockOracle{
		Blocks:      blocks,
		Outputs:     o,
		Receipts:    make(map[common.Hash]gethTypes.Receipts),
		stateOracle: NewKvStateOracle(db),
	}
}

func (o *StubBlockOracle) BlockByHash(blockHash common.Hash, chainID eth.ChainID) (*gethTypes.Block, error) {
	block, ok := o.Blocks[blockHash]
	if !ok {
		return nil, fmt.Errorf("%w: block %s", ErrNotFound, blockHash)
	}
	return block, nil
}

func (o *StubBlockOracle) OutputByRoot(root common.Hash, chainID eth.ChainID) (eth.Output, error) {
	output, ok := o.Outputs[root]
	if !ok {
		return nil, fmt.Errorf("%w: output root %s", ErrNotFound, root)
	}
	return output, nil
}

func (o *StubBlockOracle) ReceiptsByBlockHash(blockHash common.Hash, chainID eth.ChainID) (*gethTypes.Block, gethTypes.Receipts, error) {
	receipts, ok := o.Receipts[blockHash]
	if !ok {
		return nil, nil, fmt.Errorf("%w: receipts of block %s", ErrNotFound, blockHash)
	}
	block, err := o.BlockByHash(blockHash, chainID)
	if err != nil {
		return nil, nil, err
	}
	return block, receipts, nil
}

// KvStateOracle loads data from a source ethdb.KeyValueStore
type KvStateOracle struct {
	Source ethdb.KeyValueStore
}

func NewKvStateOracle(db ethdb.KeyValueStore) *KvStateOracle {
	return &KvStateOracle{Source: db}
}

func (o *KvStateOracle) NodeByHash(nodeHash common.Hash, chainID eth.ChainID) ([]byte, error) {
	val, err := o.Source.Get(nodeHash.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: node %s: %w", ErrNotFound, nodeHash, err)
	}
	return val, nil
}

func (o *KvStateOracle) CodeByHash(hash common.Hash, chainID eth.ChainID) ([]byte, error) {
	code := rawdb.ReadCode(o.Source, hash)
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: code %s", ErrNotFound, hash)
	}
	return code, nil
}

func NewStubStateOracle() *StubStateOracle {
	return &StubStateOracle{
		Data: make(map[common.Hash][]byte),
		Code: make(map[common.Hash][]byte),
	}
}

// StubStateOracle is a StateOracle implementation that reads from simple maps
type StubStateOracle struct {
	Data map[common.Hash][]byte
	Code map[common.Hash][]byte
}

func (o *StubStateOracle) NodeByHash(nodeHash common.Hash, chainID eth.ChainID) ([]byte, error) {
	data, ok := o.Data[nodeHash]
	if !ok {
		return nil, fmt.Errorf("%w: node %s", ErrNotFound, nodeHash)
	}
	return data, nil
}

func (o *StubStateOracle) CodeByHash(hash common.Hash, chainID eth.ChainID) ([]byte, error) {
	data, ok := o.Code[hash]
	if !ok {
		return nil, fmt.Errorf("%w: code %s", ErrNotFound, hash)
	}
	return data, nil
}

type StubPrecompileOracle struct {
	Results map[common.Hash]PrecompileResult
	Calls   int
}

func NewStubPrecompileOracle() *StubPrecompileOracle {
	return &StubPrecompileOracle{Results: make(map[common.Hash]PrecompileResult)}
}

type PrecompileResult struct {
	Result []byte
	Ok     bool
}

func (o *StubPrecompileOracle) Precompile(address common.Address, input []byte, requiredGas uint64) ([]byte, bool, error) {
	arg := append(address.Bytes(), binary.BigEndian.AppendUint64(nil, requiredGas)...)
	arg = append(arg, input...)
	result, ok := o.Results[crypto.Keccak256Hash(arg)]
	if !ok {
		return nil, false, fmt.Errorf("%w: precompile %s input %x required gas %v", ErrNotFound, address, input, requiredGas)
	}
	o.Calls++
	return result.Result, result.Ok, nil
}

type CapturingHinter struct {
	Hints []preimage.Hint
}

func (c *CapturingHinter) Hint(v preimage.Hint) {
	c.Hints = append(c.Hints, v)
}

var _ preimage.Hinter = (*CapturingHinter)(nil)
