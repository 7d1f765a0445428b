package client

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/interop-proof/op-program/client/boot"
	"github.com/mantlenetworkio/interop-proof/op-program/client/claim"
	"github.com/mantlenetworkio/interop-proof/op-program/client/driver"
	"github.com/mantlenetworkio/interop-proof/op-program/client/l1"
	"github.com/mantlenetworkio/interop-proof/op-program/client/l2"
	"github.com/mantlenetworkio/interop-proof/op-program/client/tasks"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

// RunPreInteropProgram verifies the output root claim of a single chain.
// When L1 data is exhausted before the claimed block, the claim is checked against the last safe head derived.
func RunPreInteropProgram(
	ctx context.Context,
	logger log.Logger,
	bootInfo *boot.BootInfo,
	l1PreimageOracle l1.Oracle,
	l2PreimageOracle l2.Oracle,
	db l2.KeyValueStore,
	opts tasks.DerivationOptions,
) error {
	logger.Info("Program Bootstrapped", "bootInfo", bootInfo)
	result, err := tasks.RunDerivation(
		ctx,
		logger,
		bootInfo.RollupConfig,
		bootInfo.L1ChainConfig,
		bootInfo.L2ChainConfig,
		bootInfo.L1Head,
		bootInfo.L2OutputRoot,
		bootInfo.L2ClaimBlockNumber,
		l1PreimageOracle,
		l2PreimageOracle,
		db,
		opts,
	)
	if errors.Is(err, driver.ErrExhausted) {
		logger.Warn("L1 data exhausted before the claimed block", "safe_head", result.Head, "claim_block", bootInfo.L2ClaimBlockNumber)
	} else if err != nil {
		return err
	}
	return claim.ValidateClaim(logger, eth.Bytes32(bootInfo.L2Claim), result.OutputRoot)
}
