package subcmds

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"

	"github.com/mantlenetworkio/interop-proof/op-node/metrics"
	"github.com/mantlenetworkio/interop-proof/op-node/metrics/metered"
	"github.com/mantlenetworkio/interop-proof/op-node/pipeline"
	"github.com/mantlenetworkio/interop-proof/op-node/rollup"
	"github.com/mantlenetworkio/interop-proof/op-node/rollup/derive"
	"github.com/mantlenetworkio/interop-proof/op-program/host/config"
	"github.com/mantlenetworkio/interop-proof/op-program/host/flags"
	opservice "github.com/mantlenetworkio/interop-proof/op-service"
	"github.com/mantlenetworkio/interop-proof/op-service/client"
	"github.com/mantlenetworkio/interop-proof/op-service/dial"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
	"github.com/mantlenetworkio/interop-proof/op-service/sources"
)

var ErrInvalidMetricsAddr = errors.New("invalid metrics address")

// DeriveConfig configures a derivation run against live L1 and L2 nodes.
type DeriveConfig struct {
	L1Addr            string
	L1TrustRPC        bool
	L1ReceiptsMethod  sources.ReceiptsFetchingMethod
	L1BeaconAddr      string
	L1BeaconFallbacks []string
	L2Addr            string
	L2TrustRPC        bool

	Rollup        *rollup.Config
	L1ChainConfig *params.ChainConfig

	// L2Start is the canonical L2 block that derivation starts on top of.
	L2Start uint64
	// Count is the number of blocks to derive. Zero derives until L1 is exhausted.
	Count uint64

	MetricsAddr string
}

func (c *DeriveConfig) Check() error {
	var result *multierror.Error
	if c.Rollup == nil {
		result = multierror.Append(result, errors.New("missing rollup config"))
	} else if err := c.Rollup.Check(); err != nil {
		result = multierror.Append(result, fmt.Errorf("invalid rollup config: %w", err))
	}
	if c.L1ChainConfig == nil || c.L1ChainConfig.ChainID == nil {
		result = multierror.Append(result, config.ErrMissingL1ChainConfig)
	} else if c.Rollup != nil && c.Rollup.L1ChainID != nil && c.Rollup.L1ChainID.Cmp(c.L1ChainConfig.ChainID) != 0 {
		result = multierror.Append(result, fmt.Errorf("%w: rollup uses L1 chain %v, l1 chain config is for %v",
			config.ErrL1ChainMismatch, c.Rollup.L1ChainID, c.L1ChainConfig.ChainID))
	}
	if !sources.ValidReceiptsFetchingMethod(c.L1ReceiptsMethod) {
		result = multierror.Append(result, fmt.Errorf("unknown receipts fetching method: %q", c.L1ReceiptsMethod))
	}
	if c.MetricsAddr != "" {
		if _, _, err := splitMetricsAddr(c.MetricsAddr); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// ReadDeriveConfig reads the derive command flags and the config files they point to.
func ReadDeriveConfig(ctx *cli.Context) (*DeriveConfig, error) {
	rollupCfg, err := config.LoadRollupConfig(ctx.Path(flags.RollupConfig.Name))
	if err != nil {
		return nil, fmt.Errorf("invalid rollup config: %w", err)
	}
	var l1ChainConfig *params.ChainConfig
	if ctx.IsSet(flags.L1ChainConfig.Name) {
		l1ChainConfig, err = config.LoadChainConfig(ctx.Path(flags.L1ChainConfig.Name))
		if err != nil {
			return nil, fmt.Errorf("invalid l1 chain config: %w", err)
		}
	} else if rollupCfg.L1ChainID != nil {
		cfg, ok := config.KnownL1ChainConfig(eth.ChainIDFromBig(rollupCfg.L1ChainID))
		if !ok {
			return nil, fmt.Errorf("%w: no known config for L1 chain %v, specify --%s",
				config.ErrMissingL1ChainConfig, rollupCfg.L1ChainID, flags.L1ChainConfig.Name)
		}
		l1ChainConfig = cfg
	}
	return &DeriveConfig{
		L1Addr:            ctx.String(flags.L1NodeAddr.Name),
		L1TrustRPC:        ctx.Bool(flags.L1TrustRPC.Name),
		L1ReceiptsMethod:  *ctx.Generic(flags.L1ReceiptsMethod.Name).(*sources.ReceiptsFetchingMethod),
		L1BeaconAddr:      ctx.String(flags.L1BeaconAddr.Name),
		L1BeaconFallbacks: ctx.StringSlice(flags.L1BeaconFallbackAddrs.Name),
		L2Addr:            ctx.String(flags.L2NodeAddr.Name),
		L2TrustRPC:        ctx.Bool(flags.L2TrustRPC.Name),
		Rollup:            rollupCfg,
		L1ChainConfig:     l1ChainConfig,
		L2Start:           ctx.Uint64(flags.L2Start.Name),
		Count:             ctx.Uint64(flags.Count.Name),
		MetricsAddr:       ctx.String(flags.MetricsAddr.Name),
	}, nil
}

// DeriveAction runs a configured derivation.
type DeriveAction func(ctx context.Context, logger log.Logger, cfg *DeriveConfig) error

// NewDeriveCommand creates the derive command. The logger is created by newLogger from the app flags.
func NewDeriveCommand(newLogger func(*cli.Context) log.Logger, action DeriveAction) *cli.Command {
	return &cli.Command{
		Name:  "derive",
		Usage: "Derive L2 blocks from L1 data and check them against the canonical L2 chain",
		Description: "Runs the derivation pipeline on top of a canonical L2 block, fetching L1 data over RPC and the beacon API. " +
			"Every derived block is compared to the canonical L2 block at the same height.",
		Flags: flags.DeriveFlags,
		Action: func(ctx *cli.Context) error {
			logger := newLogger(ctx)
			cfg, err := ReadDeriveConfig(ctx)
			if err != nil {
				return err
			}
			if err := cfg.Check(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return action(ctx.Context, logger, cfg)
		},
	}
}

// Derive dials the configured nodes and derives cfg.Count blocks on top of cfg.L2Start.
func Derive(ctx context.Context, logger log.Logger, cfg *DeriveConfig) error {
	cfg.Rollup.LogDescription(logger)
	m := metrics.NewMetrics("derive")
	m.RecordInfo(opservice.DefaultFormatVersion())
	if cfg.MetricsAddr != "" {
		host, port, err := splitMetricsAddr(cfg.MetricsAddr)
		if err != nil {
			return err
		}
		srv, err := m.StartServer(host, port)
		if err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		logger.Info("Started metrics server", "addr", srv.Addr())
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Stop(ctx); err != nil {
				logger.Error("Failed to stop metrics server", "err", err)
			}
		}()
	}

	l1RPC, err := dial.DialRPCClientWithTimeout(ctx, dial.DefaultDialTimeout, logger, cfg.L1Addr)
	if err != nil {
		return fmt.Errorf("failed to setup L1 RPC: %w", err)
	}
	defer l1RPC.Close()
	l1Cfg := sources.L1ClientDefaultConfig(cfg.Rollup, cfg.L1TrustRPC, cfg.L1ReceiptsMethod)
	l1Client, err := sources.NewL1Client(l1RPC, logger, m.L1SourceCache, l1Cfg)
	if err != nil {
		return fmt.Errorf("failed to create L1 client: %w", err)
	}
	l1Source := metered.NewMeteredL1Fetcher(l1Client, m)

	l2RPC, err := dial.DialRPCClientWithTimeout(ctx, dial.DefaultDialTimeout, logger, cfg.L2Addr)
	if err != nil {
		return fmt.Errorf("failed to setup L2 RPC: %w", err)
	}
	defer l2RPC.Close()
	l2Client, err := sources.NewL2Client(l2RPC, logger, m.L2SourceCache, sources.L2ClientDefaultConfig(cfg.Rollup, cfg.L2TrustRPC))
	if err != nil {
		return fmt.Errorf("failed to create L2 client: %w", err)
	}

	var fallbacks []sources.BlobSideCarsClient
	for _, addr := range cfg.L1BeaconFallbacks {
		fallbacks = append(fallbacks, sources.NewBeaconHTTPClient(client.NewBasicHTTPClient(addr, logger)))
	}
	beacon := sources.NewBeaconHTTPClient(client.NewBasicHTTPClient(cfg.L1BeaconAddr, logger))
	l1Blobs := sources.NewL1BeaconClient(beacon, sources.L1BeaconClientConfig{}, fallbacks...)

	p, err := pipeline.NewOnlinePipeline(ctx, logger, cfg.Rollup, cfg.L1ChainConfig, l1Source, l1Blobs, l2Client, m, cfg.L2Start)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	m.RecordUp()
	return deriveBlocks(ctx, logger, p, cfg.Count)
}

type blockDeriver interface {
	SafeHead() eth.L2BlockRef
	DeriveNext(ctx context.Context) (*pipeline.DerivedBlock, error)
}

func deriveBlocks(ctx context.Context, logger log.Logger, p blockDeriver, count uint64) error {
	start := p.SafeHead()
	var derived uint64
	for count == 0 || derived < count {
		block, err := p.DeriveNext(ctx)
		if errors.Is(err, derive.ErrEndOfSource) {
			if count == 0 {
				break
			}
			return fmt.Errorf("L1 data exhausted after deriving %d of %d blocks: %w", derived, count, err)
		} else if err != nil {
			return fmt.Errorf("failed to derive block %d: %w", p.SafeHead().Number+1, err)
		}
		derived++
		logger.Info("Derived block matches canonical chain", "block", block.Canonical,
			"txs", len(block.Attributes.Attributes.Transactions))
	}
	logger.Info("Derivation complete", "start", start, "head", p.SafeHead(), "derived", derived)
	return nil
}

func splitMetricsAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("%w %q: %w", ErrInvalidMetricsAddr, addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return "", 0, fmt.Errorf("%w %q: invalid port", ErrInvalidMetricsAddr, addr)
	}
	return host, port, nil
}
