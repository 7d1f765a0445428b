package rollup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/hashicorp/go-multierror"

	"github.com/mantlenetworkio/interop-proof/op-core/forks"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

var (
	ErrBlockTimeZero                 = errors.New("block time cannot be 0")
	ErrMissingChannelTimeout         = errors.New("channel timeout must be set, this should cover at least a L1 block time")
	ErrInvalidSeqWindowSize          = errors.New("sequencing window size must at least be 2")
	ErrInvalidMaxSeqDrift            = errors.New("maximum sequencer drift must be greater than 0")
	ErrMissingGenesisL1Hash          = errors.New("genesis L1 hash cannot be empty")
	ErrMissingGenesisL2Hash          = errors.New("genesis L2 hash cannot be empty")
	ErrGenesisHashesSame             = errors.New("achievement get! rollup inception: L1 and L2 genesis cannot be the same")
	ErrMissingGenesisL2Time          = errors.New("missing L2 genesis time")
	ErrMissingBatcherAddr            = errors.New("missing genesis system config batcher address")
	ErrMissingScalar                 = errors.New("missing genesis system config scalar")
	ErrMissingGasLimit               = errors.New("missing genesis system config gas limit")
	ErrMissingBatchInboxAddress      = errors.New("missing batch inbox address")
	ErrMissingDepositContractAddress = errors.New("missing deposit contract address")
	ErrMissingL1ChainID              = errors.New("L1 chain ID must not be nil")
	ErrMissingL2ChainID              = errors.New("L2 chain ID must not be nil")
	ErrChainIDsSame                  = errors.New("L1 and L2 chain IDs must be different")
	ErrL1ChainIDNotPositive          = errors.New("L1 chain ID must be non-zero and positive")
	ErrL2ChainIDNotPositive          = errors.New("L2 chain ID must be non-zero and positive")
)

type Genesis struct {
	// The L1 block that the rollup starts *after* (no derived transactions)
	L1 eth.BlockID `json:"l1"`
	// The L2 block the rollup starts from (no transactions, pre-configured state)
	L2 eth.BlockID `json:"l2"`
	// Timestamp of L2 block
	L2Time uint64 `json:"l2_time"`
	// Initial system configuration values.
	// The L2 genesis block may not include transactions, and thus cannot encode the config values,
	// unlike later L2 blocks.
	SystemConfig eth.SystemConfig `json:"system_config"`
}

type Config struct {
	// Genesis anchor point of the rollup
	Genesis Genesis `json:"genesis"`
	// Seconds per L2 block
	BlockTime uint64 `json:"block_time"`
	// Sequencer batches may not be more than MaxSequencerDrift seconds after
	// the L1 timestamp of their L1 origin time.
	//
	// With Fjord, the MaxSequencerDrift becomes a constant. Use the ChainSpec
	// instead of reading this rollup configuration field directly to determine
	// the max sequencer drift for a given block based on the block's L1 origin.
	MaxSequencerDrift uint64 `json:"max_sequencer_drift,omitempty"`
	// Number of epochs (L1 blocks) per sequencing window, including the epoch L1 origin block itself
	SeqWindowSize uint64 `json:"seq_window_size"`
	// Number of L1 blocks between when a channel can be opened and when it must be closed by.
	ChannelTimeoutBedrock uint64 `json:"channel_timeout"`
	// Required to verify L1 signatures
	L1ChainID *big.Int `json:"l1_chain_id"`
	// Required to identify the L2 network
	L2ChainID *big.Int `json:"l2_chain_id"`

	// RegolithTime sets the activation time of the Regolith network-upgrade.
	// Active if RegolithTime != nil && L2 block timestamp >= *RegolithTime, inactive otherwise.
	RegolithTime *uint64 `json:"regolith_time,omitempty"`
	// CanyonTime sets the activation time of the Canyon network upgrade.
	CanyonTime *uint64 `json:"canyon_time,omitempty"`
	// DeltaTime sets the activation time of the Delta network upgrade (span batches).
	DeltaTime *uint64 `json:"delta_time,omitempty"`
	// EcotoneTime sets the activation time of the Ecotone network upgrade (blobs, new L1 info format).
	EcotoneTime *uint64 `json:"ecotone_time,omitempty"`
	// FjordTime sets the activation time of the Fjord network upgrade (brotli channels).
	FjordTime *uint64 `json:"fjord_time,omitempty"`
	// GraniteTime sets the activation time of the Granite network upgrade (constant channel timeout).
	GraniteTime *uint64 `json:"granite_time,omitempty"`
	// HoloceneTime sets the activation time of the Holocene network upgrade (steady batch derivation).
	HoloceneTime *uint64 `json:"holocene_time,omitempty"`

	// Note: below addresses are part of the block-derivation process,
	// and required to be the same network-wide to stay in consensus.

	// L1 address that batches are sent to.
	BatchInboxAddress common.Address `json:"batch_inbox_address"`
	// L1 Deposit Contract Address
	DepositContractAddress common.Address `json:"deposit_contract_address"`
	// L1 System Config Address
	L1SystemConfigAddress common.Address `json:"l1_system_config_address"`

	// ChainOpConfig is the OptimismConfig of the execution layer ChainConfig.
	// It is used to translate zero SystemConfig EIP1559 parameters to the protocol values.
	ChainOpConfig *params.OptimismConfig `json:"chain_op_config,omitempty"`
}

// ValidateL1Config checks L1 config variables for errors.
func (cfg *Config) ValidateL1Config(ctx context.Context, logger log.Logger, client L1Client) error {
	if err := cfg.CheckL1ChainID(ctx, client); err != nil {
		return err
	}
	return cfg.CheckL1GenesisBlockHash(ctx, logger, client)
}

// ValidateL2Config checks L2 config variables for errors.
func (cfg *Config) ValidateL2Config(ctx context.Context, client L2Client) error {
	if err := cfg.CheckL2ChainID(ctx, client); err != nil {
		return err
	}
	return cfg.CheckL2GenesisBlockHash(ctx, client)
}

func (cfg *Config) TimestampForBlock(blockNumber uint64) uint64 {
	return cfg.Genesis.L2Time + ((blockNumber - cfg.Genesis.L2.Number) * cfg.BlockTime)
}

func (cfg *Config) TargetBlockNumber(timestamp uint64) (num uint64, err error) {
	// subtract genesis time from timestamp to get the time elapsed since genesis, and then divide that
	// difference by the block time to get the expected L2 block number at the given time.
	genesisTimestamp := cfg.Genesis.L2Time
	if timestamp < genesisTimestamp {
		return 0, fmt.Errorf("did not reach genesis time (%d) yet", genesisTimestamp)
	}
	wallClockGenesisDiff := timestamp - genesisTimestamp
	// Note: round down, we should not request blocks into the future.
	blocksSinceGenesis := wallClockGenesisDiff / cfg.BlockTime
	return cfg.Genesis.L2.Number + blocksSinceGenesis, nil
}

type L1Client interface {
	ChainID(context.Context) (*big.Int, error)
	L1BlockRefByNumber(context.Context, uint64) (eth.L1BlockRef, error)
}

// CheckL1ChainID checks that the configured L1 chain ID matches the client's chain ID.
func (cfg *Config) CheckL1ChainID(ctx context.Context, client L1Client) error {
	id, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get L1 chain ID: %w", err)
	}
	if cfg.L1ChainID.Cmp(id) != 0 {
		return fmt.Errorf("incorrect L1 RPC chain id %d, expected %d", id, cfg.L1ChainID)
	}
	return nil
}

// CheckL1GenesisBlockHash checks that the configured L1 genesis block hash is valid for the given client.
func (cfg *Config) CheckL1GenesisBlockHash(ctx context.Context, logger log.Logger, client L1Client) error {
	l1GenesisBlockRef, err := client.L1BlockRefByNumber(ctx, cfg.Genesis.L1.Number)
	if err != nil {
		if errors.Is(eth.MaybeAsNotFoundErr(err), ethereum.NotFound) {
			// Genesis block isn't available to check, so just accept it and hope for the best
			logger.Warn("L1 genesis block not found, skipping validity check")
			return nil
		}
		return fmt.Errorf("failed to get L1 genesis blockhash: %w", err)
	}
	if l1GenesisBlockRef.Hash != cfg.Genesis.L1.Hash {
		return fmt.Errorf("incorrect L1 genesis block hash %s, expected %s", l1GenesisBlockRef.Hash, cfg.Genesis.L1.Hash)
	}
	return nil
}

type L2Client interface {
	ChainID(context.Context) (*big.Int, error)
	L2BlockRefByNumber(context.Context, uint64) (eth.L2BlockRef, error)
}

// CheckL2ChainID checks that the configured L2 chain ID matches the client's chain ID.
func (cfg *Config) CheckL2ChainID(ctx context.Context, client L2Client) error {
	id, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get L2 chain ID: %w", err)
	}
	if cfg.L2ChainID.Cmp(id) != 0 {
		return fmt.Errorf("incorrect L2 RPC chain id %d, expected %d", id, cfg.L2ChainID)
	}
	return nil
}

// CheckL2GenesisBlockHash checks that the configured L2 genesis block hash is valid for the given client.
func (cfg *Config) CheckL2GenesisBlockHash(ctx context.Context, client L2Client) error {
	l2GenesisBlockRef, err := client.L2BlockRefByNumber(ctx, cfg.Genesis.L2.Number)
	if err != nil {
		return fmt.Errorf("failed to get L2 genesis blockhash: %w", err)
	}
	if l2GenesisBlockRef.Hash != cfg.Genesis.L2.Hash {
		return fmt.Errorf("incorrect L2 genesis block hash %s, expected %s", l2GenesisBlockRef.Hash, cfg.Genesis.L2.Hash)
	}
	return nil
}

// Check verifies that the given configuration makes sense.
// All violations are reported together.
func (cfg *Config) Check() error {
	var result *multierror.Error
	check := func(ok bool, err error) {
		if !ok {
			result = multierror.Append(result, err)
		}
	}
	check(cfg.BlockTime != 0, ErrBlockTimeZero)
	check(cfg.ChannelTimeoutBedrock != 0, ErrMissingChannelTimeout)
	check(cfg.SeqWindowSize >= 2, ErrInvalidSeqWindowSize)
	check(cfg.MaxSequencerDrift != 0, ErrInvalidMaxSeqDrift)
	check(cfg.Genesis.L1.Hash != (common.Hash{}), ErrMissingGenesisL1Hash)
	check(cfg.Genesis.L2.Hash != (common.Hash{}), ErrMissingGenesisL2Hash)
	check(cfg.Genesis.L2.Hash == (common.Hash{}) || cfg.Genesis.L2.Hash != cfg.Genesis.L1.Hash, ErrGenesisHashesSame)
	check(cfg.Genesis.L2Time != 0, ErrMissingGenesisL2Time)
	check(cfg.Genesis.SystemConfig.BatcherAddr != (common.Address{}), ErrMissingBatcherAddr)
	check(cfg.Genesis.SystemConfig.Scalar != (eth.Bytes32{}), ErrMissingScalar)
	check(cfg.Genesis.SystemConfig.GasLimit != 0, ErrMissingGasLimit)
	check(cfg.BatchInboxAddress != (common.Address{}), ErrMissingBatchInboxAddress)
	check(cfg.DepositContractAddress != (common.Address{}), ErrMissingDepositContractAddress)
	check(cfg.L1ChainID != nil, ErrMissingL1ChainID)
	check(cfg.L2ChainID != nil, ErrMissingL2ChainID)
	if cfg.L1ChainID != nil && cfg.L2ChainID != nil {
		check(cfg.L1ChainID.Cmp(cfg.L2ChainID) != 0, ErrChainIDsSame)
	}
	if cfg.L1ChainID != nil {
		check(cfg.L1ChainID.Sign() >= 1, ErrL1ChainIDNotPositive)
	}
	if cfg.L2ChainID != nil {
		check(cfg.L2ChainID.Sign() >= 1, ErrL2ChainIDNotPositive)
	}

	forkTimes := []*uint64{cfg.RegolithTime, cfg.CanyonTime, cfg.DeltaTime, cfg.EcotoneTime, cfg.FjordTime, cfg.GraniteTime, cfg.HoloceneTime}
	for i := 1; i < len(forkTimes); i++ {
		if err := checkFork(forkTimes[i-1], forkTimes[i], forks.All[i], forks.All[i+1]); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// checkFork checks that fork A is before or at the same time as fork B
func checkFork(a, b *uint64, aName, bName ForkName) error {
	if a == nil && b == nil {
		return nil
	}
	if a == nil && b != nil {
		return fmt.Errorf("fork %s set (to %d), but prior fork %s missing", bName, *b, aName)
	}
	if a != nil && b == nil {
		return nil
	}
	if *a > *b {
		return fmt.Errorf("fork %s set to %d, but prior fork %s has higher offset %d", bName, *b, aName, *a)
	}
	return nil
}

func (c *Config) L1Signer() types.Signer {
	return types.LatestSignerForChainID(c.L1ChainID)
}

func (c *Config) IsForkActive(fork ForkName, timestamp uint64) bool {
	activationTime := c.ActivationTimeFor(fork)
	return activationTime != nil && timestamp >= *activationTime
}

// IsRegolith returns true if the Regolith hardfork is active at or past the given timestamp.
func (c *Config) IsRegolith(timestamp uint64) bool {
	return c.IsForkActive(forks.Regolith, timestamp)
}

// IsCanyon returns true if the Canyon hardfork is active at or past the given timestamp.
func (c *Config) IsCanyon(timestamp uint64) bool {
	return c.IsForkActive(forks.Canyon, timestamp)
}

// IsDelta returns true if the Delta hardfork is active at or past the given timestamp.
func (c *Config) IsDelta(timestamp uint64) bool {
	return c.IsForkActive(forks.Delta, timestamp)
}

// IsEcotone returns true if the Ecotone hardfork is active at or past the given timestamp.
func (c *Config) IsEcotone(timestamp uint64) bool {
	return c.IsForkActive(forks.Ecotone, timestamp)
}

// IsFjord returns true if the Fjord hardfork is active at or past the given timestamp.
func (c *Config) IsFjord(timestamp uint64) bool {
	return c.IsForkActive(forks.Fjord, timestamp)
}

// IsGranite returns true if the Granite hardfork is active at or past the given timestamp.
func (c *Config) IsGranite(timestamp uint64) bool {
	return c.IsForkActive(forks.Granite, timestamp)
}

// IsHolocene returns true if the Holocene hardfork is active at or past the given timestamp.
func (c *Config) IsHolocene(timestamp uint64) bool {
	return c.IsForkActive(forks.Holocene, timestamp)
}

// IsEcotoneActivationBlock returns whether the specified block is the first block subject to the
// Ecotone upgrade. Ecotone activation at genesis does not count.
func (c *Config) IsEcotoneActivationBlock(l2BlockTime uint64) bool {
	return c.IsActivationBlockForFork(l2BlockTime, forks.Ecotone)
}

// IsHoloceneActivationBlock returns whether the specified block is the first block subject to the
// Holocene upgrade.
func (c *Config) IsHoloceneActivationBlock(l2BlockTime uint64) bool {
	return c.IsActivationBlockForFork(l2BlockTime, forks.Holocene)
}

func (c *Config) ActivationTimeFor(fork ForkName) *uint64 {
	switch fork {
	case forks.Holocene:
		return c.HoloceneTime
	case forks.Granite:
		return c.GraniteTime
	case forks.Fjord:
		return c.FjordTime
	case forks.Ecotone:
		return c.EcotoneTime
	case forks.Delta:
		return c.DeltaTime
	case forks.Canyon:
		return c.CanyonTime
	case forks.Regolith:
		return c.RegolithTime
	default:
		panic(fmt.Sprintf("unknown fork: %v", fork))
	}
}

// IsActivationBlock returns the fork which activates at the block with time newTime if the previous
// block's time is oldTime. It return an empty ForkName if no fork activation takes place between
// those timestamps. It can be used for both, L1 and L2 blocks.
func (c *Config) IsActivationBlock(oldTime, newTime uint64) ForkName {
	for i := len(forks.All) - 1; i > 0; i-- {
		fork := forks.All[i]
		if c.IsForkActive(fork, newTime) && !c.IsForkActive(fork, oldTime) {
			return fork
		}
	}
	return forks.None
}

func (c *Config) IsActivationBlockForFork(l2BlockTime uint64, forkName ForkName) bool {
	return l2BlockTime >= c.BlockTime && c.IsActivationBlock(l2BlockTime-c.BlockTime, l2BlockTime) == forkName
}

func (c *Config) ActivateAtGenesis(hardfork ForkName) {
	// IMPORTANT! ordered from newest to oldest
	switch hardfork {
	case forks.Holocene:
		c.HoloceneTime = new(uint64)
		fallthrough
	case forks.Granite:
		c.GraniteTime = new(uint64)
		fallthrough
	case forks.Fjord:
		c.FjordTime = new(uint64)
		fallthrough
	case forks.Ecotone:
		c.EcotoneTime = new(uint64)
		fallthrough
	case forks.Delta:
		c.DeltaTime = new(uint64)
		fallthrough
	case forks.Canyon:
		c.CanyonTime = new(uint64)
		fallthrough
	case forks.Regolith:
		c.RegolithTime = new(uint64)
		fallthrough
	case forks.Bedrock:
		// default
	case forks.None:
		break
	}
}

// LogDescription outputs a banner describing the important parts of rollup configuration in a log format.
func (c *Config) LogDescription(log log.Logger) {
	ctx := []any{
		"l2_chain_id", c.L2ChainID,
		"l2_block_hash", c.Genesis.L2.Hash,
		"l2_block_number", c.Genesis.L2.Number,
		"l1_block_hash", c.Genesis.L1.Hash,
		"l1_block_number", c.Genesis.L1.Number,
	}
	for _, fork := range forks.All[1:] {
		ctx = append(ctx, string(fork)+"_time", fmtForkTimeOrUnset(c.ActivationTimeFor(fork)))
	}
	log.Info("Rollup Config", ctx...)
}

func (c *Config) ParseRollupConfig(in io.Reader) error {
	dec := json.NewDecoder(in)
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("failed to decode rollup config: %w", err)
	}
	return nil
}

func fmtForkTimeOrUnset(v *uint64) string {
	if v == nil {
		return "(not configured)"
	}
	if *v == 0 { // don't output the unix epoch time if it's really just activated at genesis.
		return "@ genesis"
	}
	return fmt.Sprintf("@ %-10v ~ %s", *v, fmtTime(*v))
}

func fmtTime(v uint64) string {
	return time.Unix(int64(v), 0).Format(time.UnixDate)
}

type Epoch uint64
