package boot

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	preimage "github.com/mantlenetworkio/interop-proof/op-preimage"
)

const (
	L1HeadLocalIndex preimage.LocalIndexKey = iota + 1
	L2OutputRootLocalIndex
	L2ClaimLocalIndex
	L2ClaimBlockNumberLocalIndex
	L2ChainIDLocalIndex

	L2ChainConfigLocalIndex
	RollupConfigLocalIndex
	L1ChainConfigLocalIndex
)

var ErrInvalidBootValue = errors.New("invalid boot value")

type oracleClient interface {
	Get(key preimage.Key) []byte
}

func readHash(r oracleClient, key preimage.LocalIndexKey) (common.Hash, error) {
	data := r.Get(key)
	if len(data) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: local key %d has length %d, expected a hash", ErrInvalidBootValue, uint64(key), len(data))
	}
	return common.BytesToHash(data), nil
}

func readUint64(r oracleClient, key preimage.LocalIndexKey) (uint64, error) {
	data := r.Get(key)
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: local key %d has length %d, expected a uint64", ErrInvalidBootValue, uint64(key), len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}
