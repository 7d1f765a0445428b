// Package pipeline binds the derivation pipeline to the oracle-backed providers of the fault proof program.
package pipeline

import (
	"context"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"

	"github.com/mantlenetworkio/interop-proof/op-node/rollup"
	"github.com/mantlenetworkio/interop-proof/op-node/rollup/derive"
	"github.com/mantlenetworkio/interop-proof/op-program/client/driver"
	"github.com/mantlenetworkio/interop-proof/op-program/client/l1"
	"github.com/mantlenetworkio/interop-proof/op-program/client/l2"
)

// OraclePipeline is the derivation pipeline reading all of its data through the oracle.
type OraclePipeline struct {
	*derive.DerivationPipeline
}

var _ derive.Pipeline = (*OraclePipeline)(nil)

// NewOraclePipeline creates the pipeline and resets it to the position of the cursor.
func NewOraclePipeline(
	ctx context.Context,
	logger log.Logger,
	cfg *rollup.Config,
	l1ChainConfig *params.ChainConfig,
	cursor *driver.PipelineCursor,
	l1Source *l1.OracleL1Client,
	l1Blobs *l1.BlobFetcher,
	l2Source *l2.OracleL2ChainProvider,
	metrics derive.Metrics,
) (*OraclePipeline, error) {
	dp, err := derive.NewResetDerivationPipeline(ctx, logger, cfg, l1ChainConfig, l1Source, l1Blobs, l2Source, metrics,
		cursor.Tip().SafeHead, cursor.Origin())
	if err != nil {
		return nil, err
	}
	return &OraclePipeline{DerivationPipeline: dp}, nil
}
