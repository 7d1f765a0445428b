package claim

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

var ErrClaimNotValid = errors.New("invalid claim")

// InvalidClaimError reports a claim that does not match the commitment computed by the program.
type InvalidClaimError struct {
	Expected eth.Bytes32
	Actual   eth.Bytes32
}

func (e *InvalidClaimError) Error() string {
	return fmt.Sprintf("%v: expected: %v claim: %v", ErrClaimNotValid, e.Expected, e.Actual)
}

func (e *InvalidClaimError) Unwrap() error {
	return ErrClaimNotValid
}

// ValidateClaim checks the claimed commitment against the computed one.
func ValidateClaim(log log.Logger, claimed eth.Bytes32, computed eth.Bytes32) error {
	log.Info("Validating claim", "computed", computed, "claim", claimed)
	if claimed != computed {
		return &InvalidClaimError{Expected: computed, Actual: claimed}
	}
	return nil
}
