package derive

import "github.com/mantlenetworkio/interop-proof/op-service/eth"

// Metrics records the progress of the derivation stages.
type Metrics interface {
	RecordL1Ref(name string, ref eth.L1BlockRef)
	RecordL2Ref(name string, ref eth.L2BlockRef)
	RecordChannelInputBytes(inputCompressedBytes int)
	RecordHeadChannelOpened()
	RecordChannelTimedOut()
	RecordFrame()
	RecordDerivedBatches(batchType string)
	RecordDerivedAttributes(numTxs int)
}
