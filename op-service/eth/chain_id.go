package eth

import (
	"fmt"
	"math/big"
	"slices"
	"strings"

	"github.com/holiman/uint256"
)

// ChainID is a 256-bit chain identifier. Chain IDs are compared and sorted numerically.
type ChainID uint256.Int

func ChainIDFromBig(chainID *big.Int) ChainID {
	return ChainID(*uint256.MustFromBig(chainID))
}

func ChainIDFromUInt64(i uint64) ChainID {
	return ChainID(*uint256.NewInt(i))
}

func ChainIDFromBytes32(b [32]byte) ChainID {
	val := new(uint256.Int).SetBytes(b[:])
	return ChainID(*val)
}

// ChainIDFromString parses a decimal, or 0x-prefixed hex, chain ID.
func ChainIDFromString(id string) (ChainID, error) {
	var v uint256.Int
	var err error
	if strings.HasPrefix(id, "0x") {
		err = v.SetFromHex(id)
	} else {
		err = v.SetFromDecimal(id)
	}
	if err != nil {
		return ChainID{}, fmt.Errorf("failed to parse chain ID %q: %w", id, err)
	}
	return ChainID(v), nil
}

func (id ChainID) String() string {
	return (*uint256.Int)(&id).Dec()
}

func (id ChainID) Bytes32() [32]byte {
	return (*uint256.Int)(&id).Bytes32()
}

func (id ChainID) ToBig() *big.Int {
	return (*uint256.Int)(&id).ToBig()
}

func (id ChainID) Cmp(other ChainID) int {
	return (*uint256.Int)(&id).Cmp((*uint256.Int)(&other))
}

func (id ChainID) IsUint64() bool {
	return (*uint256.Int)(&id).IsUint64()
}

func (id ChainID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ChainID) UnmarshalText(data []byte) error {
	v, err := ChainIDFromString(string(data))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// EvilChainIDToUInt64 converts a ChainID to a uint64 and panics if the ChainID does not fit.
// Only use this where the wire format has no room for wider chain IDs, like hint payloads.
func EvilChainIDToUInt64(id ChainID) uint64 {
	v := (*uint256.Int)(&id)
	if !v.IsUint64() {
		panic(fmt.Errorf("chain ID %s does not fit in uint64", id))
	}
	return v.Uint64()
}

func SortChainID(ids []ChainID) {
	slices.SortFunc(ids, func(a, b ChainID) int {
		return a.Cmp(b)
	})
}
