package interop

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	preimage "github.com/mantlenetworkio/interop-proof/op-preimage"
	"github.com/mantlenetworkio/interop-proof/op-program/client/interop/types"
)

const HintAgreedPrestate = "agreed-pre-state"

var ErrPreStateNotFound = errors.New("pre-state not found")

// AgreedPrestateHint asks the host to make the preimage of an agreed pre-state available.
type AgreedPrestateHint common.Hash

var _ preimage.Hint = AgreedPrestateHint{}

func (h AgreedPrestateHint) Hint() string {
	return HintAgreedPrestate + " " + hexutil.Encode(h[:])
}

// PreStateOracle resolves a pre-state commitment to the state it commits to.
type PreStateOracle interface {
	PreStateByRoot(root common.Hash) (types.PreState, error)
}

type PreimagePreStateOracle struct {
	oracle preimage.Oracle
	hint   preimage.Hinter
}

var _ PreStateOracle = (*PreimagePreStateOracle)(nil)

func NewPreStateOracle(raw preimage.Oracle, hint preimage.Hinter) *PreimagePreStateOracle {
	return &PreimagePreStateOracle{oracle: raw, hint: hint}
}

func (o *PreimagePreStateOracle) PreStateByRoot(root common.Hash) (types.PreState, error) {
	o.hint.Hint(AgreedPrestateHint(root))
	data := o.oracle.Get(preimage.Keccak256Key(root))
	if len(data) == 0 {
		return types.PreState{}, fmt.Errorf("%w: %s", ErrPreStateNotFound, root)
	}
	if actual := crypto.Keccak256Hash(data); actual != root {
		return types.PreState{}, fmt.Errorf("pre-state preimage hash mismatch: expected %s, got %s", root, actual)
	}
	state, err := types.UnmarshalPreState(data)
	if err != nil {
		return types.PreState{}, fmt.Errorf("invalid pre-state %s: %w", root, err)
	}
	return state, nil
}
