package derive

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/interop-proof/op-node/rollup"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

// attributesFetchTimeout bounds the L1 and L2 reads of a single attributes build.
const attributesFetchTimeout = 20 * time.Second

type AttributesBuilder interface {
	PreparePayloadAttributes(ctx context.Context, l2Parent eth.L2BlockRef, epoch eth.BlockID) (attrs *eth.PayloadAttributes, err error)
}

// AttributesWithParent are the attributes of the next safe block, bound to the block they extend.
type AttributesWithParent struct {
	Attributes *eth.PayloadAttributes
	Parent     eth.L2BlockRef
	// Concluding marks the last attributes of the pending safe phase.
	Concluding bool

	DerivedFrom eth.L1BlockRef
}

// WithDepositsOnly return a shallow clone with all non-Deposit transactions
// stripped from the transactions of its attributes. The order is preserved.
func (a *AttributesWithParent) WithDepositsOnly() *AttributesWithParent {
	clone := *a
	clone.Attributes = clone.Attributes.WithDepositsOnly()
	return &clone
}

type SingularBatchProvider interface {
	ResettableStage
	ChannelFlusher
	Origin() eth.L1BlockRef
	NextBatch(context.Context, eth.L2BlockRef) (*SingularBatch, bool, error)
}

// AttributesQueue is the last stage of the pipeline. It turns the next batch into payload
// attributes on top of the safe head: the deposits of the batch's epoch, then the batch
// transactions. The pulled batch is held until attributes are built from it, so a temporary
// failure of the builder does not lose it.
type AttributesQueue struct {
	log     log.Logger
	config  *rollup.Config
	builder AttributesBuilder
	prev    SingularBatchProvider

	pending    *SingularBatch
	concluding bool
}

func NewAttributesQueue(log log.Logger, cfg *rollup.Config, builder AttributesBuilder, prev SingularBatchProvider) *AttributesQueue {
	return &AttributesQueue{
		log:     log,
		config:  cfg,
		builder: builder,
		prev:    prev,
	}
}

func (aq *AttributesQueue) Origin() eth.L1BlockRef {
	return aq.prev.Origin()
}

// NextAttributes returns the attributes of the block after parent, or io.EOF when the previous
// stages have no batch for it yet.
func (aq *AttributesQueue) NextAttributes(ctx context.Context, parent eth.L2BlockRef) (*AttributesWithParent, error) {
	if aq.pending == nil {
		batch, concluding, err := aq.prev.NextBatch(ctx, parent)
		if err != nil {
			return nil, err
		}
		aq.pending, aq.concluding = batch, concluding
	}
	attrs, err := aq.buildAttributes(ctx, aq.pending, parent)
	if err != nil {
		return nil, err
	}
	out := &AttributesWithParent{
		Attributes:  attrs,
		Parent:      parent,
		Concluding:  aq.concluding,
		DerivedFrom: aq.Origin(),
	}
	aq.clear()
	return out, nil
}

// buildAttributes extends the deposit-only attributes of the batch's epoch with the batch
// transactions. The transaction pool is never used: the block must follow from L1 alone.
func (aq *AttributesQueue) buildAttributes(ctx context.Context, batch *SingularBatch, parent eth.L2BlockRef) (*eth.PayloadAttributes, error) {
	if batch.ParentHash != parent.Hash {
		return nil, NewResetError(fmt.Errorf("valid batch has bad parent hash %s, expected %s", batch.ParentHash, parent.Hash))
	}
	if expected := parent.Time + aq.config.BlockTime; batch.Timestamp != expected {
		return nil, NewResetError(fmt.Errorf("valid batch has bad timestamp %d, expected %d", batch.Timestamp, expected))
	}
	fetchCtx, cancel := context.WithTimeout(ctx, attributesFetchTimeout)
	defer cancel()
	attrs, err := aq.builder.PreparePayloadAttributes(fetchCtx, parent, batch.Epoch())
	if err != nil {
		return nil, err
	}
	deposits := len(attrs.Transactions)
	attrs.NoTxPool = true
	attrs.Transactions = append(attrs.Transactions, batch.Transactions...)

	aq.log.Info("Derived payload attributes", "parent", parent, "epoch", batch.Epoch(),
		"timestamp", batch.Timestamp, "deposits", deposits, "batch_txs", len(batch.Transactions))
	return attrs, nil
}

func (aq *AttributesQueue) clear() {
	aq.pending = nil
	aq.concluding = false
}

func (aq *AttributesQueue) Reset(ctx context.Context, _ eth.L1BlockRef, _ eth.SystemConfig) error {
	aq.clear()
	return io.EOF
}

// FlushChannel drops the pending batch, and all channel data of the previous stages.
func (aq *AttributesQueue) FlushChannel() {
	aq.clear()
	aq.prev.FlushChannel()
}
