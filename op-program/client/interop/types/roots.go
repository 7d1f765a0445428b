package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

// IntermediateTransitionVersion prefixes the encoding of a TransitionState.
var IntermediateTransitionVersion = byte(255)

// OptimisticBlock is a derived block that is pending consolidation into the next super root.
type OptimisticBlock struct {
	BlockHash  common.Hash
	OutputRoot eth.Bytes32
}

// TransitionState is the progress made between two super roots: one optimistic block per chain,
// followed by padding steps until consolidation.
type TransitionState struct {
	SuperRoot       []byte
	PendingProgress []OptimisticBlock
	Step            uint64
}

func (t *TransitionState) String() string {
	return fmt.Sprintf("{SuperRoot: %x, PendingProgress: %v, Step: %d}", t.SuperRoot, t.PendingProgress, t.Step)
}

func (t *TransitionState) Version() byte {
	return IntermediateTransitionVersion
}

func (t *TransitionState) Marshal() []byte {
	rlpData, err := rlp.EncodeToBytes(t)
	if err != nil {
		panic(err)
	}
	return append([]byte{IntermediateTransitionVersion}, rlpData...)
}

func (t *TransitionState) Hash() common.Hash {
	data := t.Marshal()
	return crypto.Keccak256Hash(data)
}

func unmarshalTransitionState(data []byte) (*TransitionState, error) {
	if len(data) == 0 {
		return nil, eth.ErrInvalidSuperRoot
	}
	var state TransitionState
	if err := rlp.DecodeBytes(data[1:], &state); err != nil {
		return nil, err
	}
	return &state, nil
}
