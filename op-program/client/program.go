package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/log"

	preimage "github.com/mantlenetworkio/interop-proof/op-preimage"
	"github.com/mantlenetworkio/interop-proof/op-program/client/boot"
	"github.com/mantlenetworkio/interop-proof/op-program/client/claim"
	"github.com/mantlenetworkio/interop-proof/op-program/client/interop"
	"github.com/mantlenetworkio/interop-proof/op-program/client/l1"
	"github.com/mantlenetworkio/interop-proof/op-program/client/l2"
	"github.com/mantlenetworkio/interop-proof/op-program/client/tasks"
)

const (
	ExitCodeValidClaim   = 0
	ExitCodeInvalidClaim = 1
	ExitCodeFailure      = 2
)

type Config struct {
	InteropEnabled bool

	// DB receives the trie nodes of the derived block when StoreBlockData is set.
	// An in-memory store is used if unset.
	DB             l2.KeyValueStore
	StoreBlockData bool
}

// ExitCode maps the result of RunProgram to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeValidClaim
	case errors.Is(err, claim.ErrClaimNotValid):
		return ExitCodeInvalidClaim
	default:
		return ExitCodeFailure
	}
}

// RunProgram executes the Program against the given pre-image oracle and hinter.
func RunProgram(ctx context.Context, logger log.Logger, preimageOracle preimage.Oracle, preimageHinter preimage.Hinter, cfg Config) error {
	l1PreimageOracle := l1.NewCachingOracle(l1.NewPreimageOracle(preimageOracle, preimageHinter))
	l2PreimageOracle := l2.NewCachingOracle(l2.NewPreimageOracle(preimageOracle, preimageHinter))

	if cfg.InteropEnabled {
		bootInfo, err := boot.BootstrapInterop(preimageOracle)
		if err != nil {
			return fmt.Errorf("failed to bootstrap: %w", err)
		}
		preStates := interop.NewPreStateOracle(preimageOracle, preimageHinter)
		return interop.RunInteropProgram(ctx, logger, bootInfo, l1PreimageOracle, l2PreimageOracle, preStates)
	}
	bootInfo, err := boot.NewBootstrapClient(preimageOracle).BootInfo()
	if err != nil {
		return fmt.Errorf("failed to bootstrap: %w", err)
	}
	db := cfg.DB
	if db == nil {
		db = memorydb.New()
	}
	return RunPreInteropProgram(ctx, logger, bootInfo, l1PreimageOracle, l2PreimageOracle, db, tasks.DerivationOptions{StoreBlockData: cfg.StoreBlockData})
}
