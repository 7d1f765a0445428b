package types

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

// ConsolidateStep is the step at which a saturated transition state is finalized into the next super root.
const ConsolidateStep = 127

var (
	ErrStateTransitionFailed = errors.New("state transition failed")
	ErrUnknownPreStateKind   = errors.New("unknown pre-state kind")

	InvalidTransition     = []byte("invalid")
	InvalidTransitionHash = crypto.Keccak256Hash(InvalidTransition)
)

// PreState is the agreed state a sub-transition starts from. Exactly one of SuperRoot and
// TransitionState is set.
type PreState struct {
	// SuperRoot commits to the output root of every chain at a timestamp. The first chain is the
	// first to advance.
	SuperRoot *eth.SuperV1
	// TransitionState tracks the optimistic blocks derived since the last super root.
	TransitionState *TransitionState
}

func SuperRootPreState(super *eth.SuperV1) PreState {
	return PreState{SuperRoot: super}
}

func TransitionPreState(state *TransitionState) PreState {
	return PreState{TransitionState: state}
}

// UnmarshalPreState decodes either a V1 super root or a transition state, by version byte.
func UnmarshalPreState(data []byte) (PreState, error) {
	if len(data) == 0 {
		return PreState{}, eth.ErrInvalidSuperRoot
	}
	switch data[0] {
	case IntermediateTransitionVersion:
		state, err := unmarshalTransitionState(data)
		if err != nil {
			return PreState{}, err
		}
		if _, err := state.Super(); err != nil {
			return PreState{}, err
		}
		return TransitionPreState(state), nil
	case eth.SuperRootVersionV1:
		super, err := eth.UnmarshalSuperRoot(data)
		if err != nil {
			return PreState{}, err
		}
		return SuperRootPreState(super.(*eth.SuperV1)), nil
	default:
		return PreState{}, eth.ErrInvalidSuperRootVersion
	}
}

// Super decodes the super root the transition started from.
func (t *TransitionState) Super() (*eth.SuperV1, error) {
	super, err := eth.UnmarshalSuperRoot(t.SuperRoot)
	if err != nil {
		return nil, fmt.Errorf("invalid super root in transition state: %w", err)
	}
	v1, ok := super.(*eth.SuperV1)
	if !ok {
		return nil, fmt.Errorf("%w: %d", eth.ErrInvalidSuperRootVersion, super.Version())
	}
	return v1, nil
}

// Super returns the super root the pre-state commits to, or builds upon.
func (p PreState) Super() (*eth.SuperV1, error) {
	switch {
	case p.SuperRoot != nil:
		return p.SuperRoot, nil
	case p.TransitionState != nil:
		return p.TransitionState.Super()
	default:
		return nil, ErrUnknownPreStateKind
	}
}

// Timestamp is the timestamp of the super root the pre-state is based on.
func (p PreState) Timestamp() (uint64, error) {
	super, err := p.Super()
	if err != nil {
		return 0, err
	}
	return super.Timestamp, nil
}

// Step is the progress counter: zero for a super root.
func (p PreState) Step() uint64 {
	if p.TransitionState != nil {
		return p.TransitionState.Step
	}
	return 0
}

// Saturated reports whether every chain already contributed its block for the round.
func (p PreState) Saturated() (bool, error) {
	super, err := p.Super()
	if err != nil {
		return false, err
	}
	return p.Step() >= uint64(len(super.Chains)), nil
}

// ActiveChain returns the chain that derives the next optimistic block.
func (p PreState) ActiveChain() (eth.ChainIDAndOutput, error) {
	super, err := p.Super()
	if err != nil {
		return eth.ChainIDAndOutput{}, err
	}
	idx := p.Step()
	if idx >= uint64(len(super.Chains)) {
		return eth.ChainIDAndOutput{}, fmt.Errorf("%w: active chain index %d out of %d chains", ErrStateTransitionFailed, idx, len(super.Chains))
	}
	return super.Chains[idx], nil
}

// Hash is the commitment of the pre-state, as used in claims.
func (p PreState) Hash() (common.Hash, error) {
	switch {
	case p.SuperRoot != nil:
		return common.Hash(eth.SuperRoot(p.SuperRoot)), nil
	case p.TransitionState != nil:
		return p.TransitionState.Hash(), nil
	default:
		return common.Hash{}, ErrUnknownPreStateKind
	}
}

// Marshal returns the preimage of Hash.
func (p PreState) Marshal() ([]byte, error) {
	switch {
	case p.SuperRoot != nil:
		return p.SuperRoot.Marshal(), nil
	case p.TransitionState != nil:
		return p.TransitionState.Marshal(), nil
	default:
		return nil, ErrUnknownPreStateKind
	}
}

// Transition applies the optimistic block of the active chain, or a padding step if block is nil.
// The receiver is never modified.
func (p PreState) Transition(block *OptimisticBlock) (PreState, error) {
	super, err := p.Super()
	if err != nil {
		return PreState{}, err
	}
	switch {
	case p.SuperRoot != nil:
		if block == nil {
			return PreState{}, fmt.Errorf("%w: super root requires a block to advance", ErrStateTransitionFailed)
		}
		if len(super.Chains) == 0 {
			return PreState{}, fmt.Errorf("%w: super root without chains", ErrStateTransitionFailed)
		}
		return TransitionPreState(&TransitionState{
			SuperRoot:       super.Marshal(),
			PendingProgress: []OptimisticBlock{*block},
			Step:            1,
		}), nil
	case p.TransitionState != nil:
		return transition(p.TransitionState, super, block)
	default:
		return PreState{}, ErrUnknownPreStateKind
	}
}

func transition(state *TransitionState, super *eth.SuperV1, block *OptimisticBlock) (PreState, error) {
	saturated := state.Step >= uint64(len(super.Chains))
	if !saturated {
		if block == nil {
			return PreState{}, fmt.Errorf("%w: chain %d has not contributed a block yet", ErrStateTransitionFailed, state.Step)
		}
		pending := make([]OptimisticBlock, 0, len(state.PendingProgress)+1)
		pending = append(pending, state.PendingProgress...)
		pending = append(pending, *block)
		return TransitionPreState(&TransitionState{
			SuperRoot:       slices.Clone(state.SuperRoot),
			PendingProgress: pending,
			Step:            state.Step + 1,
		}), nil
	}
	if block != nil {
		return PreState{}, fmt.Errorf("%w: transition state is saturated at step %d", ErrStateTransitionFailed, state.Step)
	}
	if state.Step < ConsolidateStep {
		return TransitionPreState(&TransitionState{
			SuperRoot:       slices.Clone(state.SuperRoot),
			PendingProgress: slices.Clone(state.PendingProgress),
			Step:            state.Step + 1,
		}), nil
	}
	if state.Step > ConsolidateStep || len(state.PendingProgress) != len(super.Chains) {
		return PreState{}, fmt.Errorf("%w: cannot consolidate %d pending blocks of %d chains at step %d",
			ErrStateTransitionFailed, len(state.PendingProgress), len(super.Chains), state.Step)
	}
	chains := make([]eth.ChainIDAndOutput, len(super.Chains))
	for i, chain := range super.Chains {
		chains[i] = eth.ChainIDAndOutput{ChainID: chain.ChainID, Output: state.PendingProgress[i].OutputRoot}
	}
	return SuperRootPreState(eth.NewSuperV1(super.Timestamp+1, chains...)), nil
}
