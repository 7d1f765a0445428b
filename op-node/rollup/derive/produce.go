package derive

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

// ProducePayload steps the pipeline on top of the given safe head until it has prepared the next
// payload attributes, and returns them.
//
// Temporary errors are retried. Reset errors re-initialize the pipeline with the system config of
// the safe head. Critical errors, including ErrEndOfSource, are returned.
func ProducePayload(ctx context.Context, logger log.Logger, p Pipeline, safeHead eth.L2BlockRef) (*AttributesWithParent, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := p.Step(ctx, safeHead)
		switch res.Kind {
		case PreparedAttributes:
			logger.Trace("Stepped derivation pipeline", "safe_head", safeHead)
		case AdvancedOrigin:
			logger.Debug("Advanced origin", "l1_origin", p.Origin())
		case OriginAdvanceErr, StepFailed:
			if err := handleStepError(ctx, logger, p, safeHead, res.Err); err != nil {
				return nil, err
			}
		}
		if attrs := p.Next(); attrs != nil {
			return attrs, nil
		}
	}
}

func handleStepError(ctx context.Context, logger log.Logger, p Pipeline, safeHead eth.L2BlockRef, err error) error {
	switch {
	case errors.Is(err, NotEnoughData):
		return nil
	case errors.Is(err, ErrTemporary):
		logger.Debug("Temporary error while stepping derivation pipeline", "err", err)
		return nil
	case errors.Is(err, ErrReset):
		logger.Warn("Derivation pipeline is being reset", "err", err)
		sysCfg, cfgErr := p.SystemConfigByNumber(ctx, safeHead.Number)
		if cfgErr != nil {
			return NewCriticalError(fmt.Errorf("failed to fetch system config of safe head %s: %w", safeHead, cfgErr))
		}
		if errors.Is(err, ErrHoloceneActivation) {
			return p.Signal(ctx, ActivationSignal{
				L2SafeHead:   safeHead,
				L1Origin:     p.Origin(),
				SystemConfig: sysCfg,
			})
		}
		return p.Signal(ctx, ResetSignal{
			L2SafeHead:   safeHead,
			L1Origin:     p.Origin(),
			SystemConfig: sysCfg,
		})
	default:
		logger.Error("Critical derivation error", "err", err)
		return err
	}
}
