package host

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	preimage "github.com/mantlenetworkio/interop-proof/op-preimage"
	"github.com/mantlenetworkio/interop-proof/op-program/client"
	"github.com/mantlenetworkio/interop-proof/op-program/host/config"
	"github.com/mantlenetworkio/interop-proof/op-program/host/kvstore"
)

// Verify runs the program against the pre-images stored in the database at cfg.DataDir.
// A nil result means the claim is valid.
func Verify(ctx context.Context, logger log.Logger, cfg *config.Config) error {
	if err := cfg.Check(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, r := range cfg.Rollups {
		r.LogDescription(logger)
	}

	kv, err := kvstore.NewDiskKV(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open pre-image store: %w", err)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logger.Error("Failed to close pre-image store", "err", err)
		}
	}()
	return VerifyWithKV(ctx, logger, cfg, kv)
}

// VerifyWithKV runs the program against the pre-images in kv.
// The local boot inputs are served from cfg.
func VerifyWithKV(ctx context.Context, logger log.Logger, cfg *config.Config, kv kvstore.KV) error {
	if cfg.InteropEnabled {
		// The program reads the agreed prestate by its hash.
		if err := kv.Put(common.Hash(preimage.Keccak256Key(cfg.L2OutputRoot).PreimageKey()), cfg.AgreedPrestate); err != nil {
			return fmt.Errorf("failed to store agreed prestate: %w", err)
		}
	}
	local := kvstore.NewLocalPreimageSource(cfg)
	splitter := kvstore.NewPreimageSourceSplitter(local.Get, kv.Get)
	oracle := kvstore.NewPreimageOracle(logger, splitter.Get)

	err := runProgram(ctx, logger, oracle, client.Config{
		InteropEnabled: cfg.InteropEnabled,
		DB:             kvstore.NewL2KeyValueStore(kv),
		StoreBlockData: !cfg.InteropEnabled,
	})
	if err != nil {
		return err
	}
	logger.Info("Claim successfully verified")
	return nil
}

// runProgram converts a missing pre-image, which the oracle reports by panicking, into an error.
func runProgram(ctx context.Context, logger log.Logger, oracle *kvstore.PreimageOracle, cfg client.Config) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if rErr, ok := r.(error); ok {
				err = fmt.Errorf("program failed: %w", rErr)
			} else {
				err = fmt.Errorf("program failed: %v", r)
			}
		}
	}()
	return client.RunProgram(ctx, logger, oracle, oracle, cfg)
}
