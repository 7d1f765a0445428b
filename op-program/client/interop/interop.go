package interop

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"

	"github.com/mantlenetworkio/interop-proof/op-node/rollup"
	"github.com/mantlenetworkio/interop-proof/op-program/client/boot"
	"github.com/mantlenetworkio/interop-proof/op-program/client/claim"
	"github.com/mantlenetworkio/interop-proof/op-program/client/driver"
	"github.com/mantlenetworkio/interop-proof/op-program/client/interop/types"
	"github.com/mantlenetworkio/interop-proof/op-program/client/l1"
	"github.com/mantlenetworkio/interop-proof/op-program/client/l2"
	"github.com/mantlenetworkio/interop-proof/op-program/client/tasks"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

var (
	ErrStateTransitionFailed = types.ErrStateTransitionFailed
	ErrInvalidPrestate       = errors.New("invalid prestate")
)

// transitionCadence is the number of seconds every super root transition advances the timestamp by.
const transitionCadence = 1

// derivationTask is the derivation of the next block of a single chain, bound to its agreed safe head.
type derivationTask interface {
	SafeHead() *ethtypes.Header
	Run(ctx context.Context, target uint64, options tasks.DerivationOptions) (tasks.DerivationResult, error)
}

type taskExecutor interface {
	NewDerivation(
		logger log.Logger,
		rollupCfg *rollup.Config,
		l1ChainConfig *params.ChainConfig,
		l2ChainConfig *params.ChainConfig,
		l1Head common.Hash,
		agreedOutputRoot eth.Bytes32,
		l1Oracle l1.Oracle,
		l2Oracle l2.Oracle,
	) (derivationTask, error)
}

func RunInteropProgram(ctx context.Context, logger log.Logger, bootInfo *boot.BootInfoInterop, l1PreimageOracle l1.Oracle, l2PreimageOracle l2.Oracle, preStates PreStateOracle) error {
	return runInteropProgram(ctx, logger, bootInfo, l1PreimageOracle, l2PreimageOracle, preStates, &interopTaskExecutor{})
}

func runInteropProgram(ctx context.Context, logger log.Logger, bootInfo *boot.BootInfoInterop, l1PreimageOracle l1.Oracle, l2PreimageOracle l2.Oracle, preStates PreStateOracle, executor taskExecutor) error {
	logger.Info("Interop Program Bootstrapped", "bootInfo", bootInfo)

	expected, err := stateTransition(ctx, logger, bootInfo, l1PreimageOracle, l2PreimageOracle, preStates, executor)
	if err != nil {
		return err
	}
	return claim.ValidateClaim(logger, eth.Bytes32(bootInfo.Claim), eth.Bytes32(expected))
}

// stateTransition computes the commitment that the claim must match.
func stateTransition(ctx context.Context, logger log.Logger, bootInfo *boot.BootInfoInterop, l1PreimageOracle l1.Oracle, l2PreimageOracle l2.Oracle, preStates PreStateOracle, executor taskExecutor) (common.Hash, error) {
	if bootInfo.AgreedPrestate == types.InvalidTransitionHash {
		return types.InvalidTransitionHash, nil
	}
	preState, err := preStates.PreStateByRoot(bootInfo.AgreedPrestate)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %w", ErrStateTransitionFailed, err)
	}
	timestamp, err := preState.Timestamp()
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %w", ErrStateTransitionFailed, err)
	}
	logger.Info("Loaded agreed pre-state", "step", preState.Step(), "timestamp", timestamp)
	// The trace is extended with the agreed pre-state once the game timestamp is reached.
	if timestamp == bootInfo.GameTimestamp {
		logger.Info("Already reached game timestamp. No derivation required.")
		return bootInfo.AgreedPrestate, nil
	} else if timestamp > bootInfo.GameTimestamp {
		return common.Hash{}, fmt.Errorf("%w: agreed prestate timestamp %v is after the game timestamp %v", ErrInvalidPrestate, timestamp, bootInfo.GameTimestamp)
	}

	saturated, err := preState.Saturated()
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %w", ErrStateTransitionFailed, err)
	}
	if saturated {
		logger.Info("Transition state saturated, no derivation required", "step", preState.Step())
		return transitionHash(preState, nil)
	}

	block, err := deriveOptimisticBlock(ctx, logger, bootInfo, l1PreimageOracle, l2PreimageOracle, preState, timestamp, executor)
	if errors.Is(err, driver.ErrExhausted) {
		logger.Warn("L1 data exhausted before the disputed block", "err", err)
		return types.InvalidTransitionHash, nil
	} else if err != nil {
		return common.Hash{}, err
	}
	return transitionHash(preState, block)
}

func deriveOptimisticBlock(ctx context.Context, logger log.Logger, bootInfo *boot.BootInfoInterop, l1PreimageOracle l1.Oracle, l2PreimageOracle l2.Oracle, preState types.PreState, timestamp uint64, executor taskExecutor) (*types.OptimisticBlock, error) {
	active, err := preState.ActiveChain()
	if err != nil {
		return nil, err
	}
	output, err := l2PreimageOracle.OutputByRoot(common.Hash(active.Output), active.ChainID)
	if err != nil {
		return nil, fmt.Errorf("%w: safe head of chain %v unavailable: %w", ErrStateTransitionFailed, active.ChainID, err)
	}
	outputV0, ok := output.(*eth.OutputV0)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported output version %d of chain %v", ErrStateTransitionFailed, output.Version(), active.ChainID)
	}
	rollupCfg, err := bootInfo.Configs.RollupConfig(active.ChainID)
	if err != nil {
		return nil, fmt.Errorf("%w: no rollup config available for chain ID %v: %w", ErrStateTransitionFailed, active.ChainID, err)
	}
	l2ChainConfig, err := bootInfo.Configs.ChainConfig(active.ChainID)
	if err != nil {
		return nil, fmt.Errorf("%w: no l2 chain config available for chain ID %v: %w", ErrStateTransitionFailed, active.ChainID, err)
	}
	l1ChainID := eth.ChainIDFromBig(rollupCfg.L1ChainID)
	l1ChainConfig, err := bootInfo.Configs.L1ChainConfig(l1ChainID)
	if err != nil {
		return nil, fmt.Errorf("%w: no l1 chain config available for chain ID %v: %w", ErrStateTransitionFailed, l1ChainID, err)
	}

	task, err := executor.NewDerivation(logger, rollupCfg, l1ChainConfig, l2ChainConfig, bootInfo.L1Head, active.Output, l1PreimageOracle, l2PreimageOracle)
	if err != nil {
		return nil, err
	}
	safeHead := task.SafeHead()
	if safeHead.Hash() != outputV0.BlockHash {
		return nil, fmt.Errorf("%w: loaded safe head %s does not match output block hash %s", ErrStateTransitionFailed, safeHead.Hash(), outputV0.BlockHash)
	}
	disputedBlockNumber := safeHead.Number.Uint64() + 1
	if safeHead.Time+rollupCfg.BlockTime > timestamp+transitionCadence {
		logger.Info("Next block not yet due, carrying safe head forward",
			"chainID", active.ChainID, "safe_head", safeHead.Number, "safe_head_time", safeHead.Time, "timestamp", timestamp)
		return &types.OptimisticBlock{BlockHash: safeHead.Hash(), OutputRoot: active.Output}, nil
	}

	logger.Info("Deriving optimistic block", "chainID", active.ChainID, "block", disputedBlockNumber)
	result, err := task.Run(ctx, disputedBlockNumber, tasks.DerivationOptions{StoreBlockData: true})
	if err != nil {
		return nil, err
	}
	if result.Head.Number != disputedBlockNumber {
		return nil, fmt.Errorf("derived block %d instead of disputed block %d", result.Head.Number, disputedBlockNumber)
	}
	return &types.OptimisticBlock{BlockHash: result.BlockHash, OutputRoot: result.OutputRoot}, nil
}

func transitionHash(preState types.PreState, block *types.OptimisticBlock) (common.Hash, error) {
	post, err := preState.Transition(block)
	if err != nil {
		return common.Hash{}, err
	}
	return post.Hash()
}

type interopTaskExecutor struct{}

func (t *interopTaskExecutor) NewDerivation(
	logger log.Logger,
	rollupCfg *rollup.Config,
	l1ChainConfig *params.ChainConfig,
	l2ChainConfig *params.ChainConfig,
	l1Head common.Hash,
	agreedOutputRoot eth.Bytes32,
	l1Oracle l1.Oracle,
	l2Oracle l2.Oracle,
) (derivationTask, error) {
	d, err := tasks.NewDerivation(
		logger,
		rollupCfg,
		l1ChainConfig,
		l2ChainConfig,
		l1Head,
		common.Hash(agreedOutputRoot),
		l1Oracle,
		l2Oracle,
		memorydb.New(),
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}
