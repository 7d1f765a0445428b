package derive

import "github.com/mantlenetworkio/interop-proof/op-service/eth"

// Signal is a message delivered to every stage of the derivation pipeline.
type Signal interface {
	signal()
}

// ResetSignal re-initializes all stages at the given L1 origin, to derive on top of the L2 safe head.
type ResetSignal struct {
	L2SafeHead   eth.L2BlockRef
	L1Origin     eth.L1BlockRef
	SystemConfig eth.SystemConfig
}

// ActivationSignal re-initializes all stages when a hardfork activates that changes derivation rules.
type ActivationSignal struct {
	L2SafeHead   eth.L2BlockRef
	L1Origin     eth.L1BlockRef
	SystemConfig eth.SystemConfig
}

// FlushChannelSignal drops the channel and batch data that is currently buffered.
type FlushChannelSignal struct{}

func (ResetSignal) signal()        {}
func (ActivationSignal) signal()   {}
func (FlushChannelSignal) signal() {}

type StepKind uint8

const (
	// PreparedAttributes means a new payload attributes value is ready to be taken with Next.
	PreparedAttributes StepKind = iota
	// AdvancedOrigin means the pipeline moved on to the next L1 block.
	AdvancedOrigin
	// OriginAdvanceErr means the pipeline needed a new L1 block, but could not get one.
	OriginAdvanceErr
	// StepFailed means the step failed to make progress.
	StepFailed
)

func (k StepKind) String() string {
	switch k {
	case PreparedAttributes:
		return "prepared-attributes"
	case AdvancedOrigin:
		return "advanced-origin"
	case OriginAdvanceErr:
		return "origin-advance-err"
	case StepFailed:
		return "step-failed"
	default:
		return "unknown"
	}
}

// StepResult is the outcome of a single DerivationPipeline.Step.
// Err is set for OriginAdvanceErr and StepFailed.
type StepResult struct {
	Kind StepKind
	Err  error
}
