package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/mantlenetworkio/interop-proof/op-node/pipeline"
	"github.com/mantlenetworkio/interop-proof/op-program/client"
	"github.com/mantlenetworkio/interop-proof/op-program/host"
	"github.com/mantlenetworkio/interop-proof/op-program/host/config"
	"github.com/mantlenetworkio/interop-proof/op-program/host/flags"
	"github.com/mantlenetworkio/interop-proof/op-program/host/subcmds"
	opservice "github.com/mantlenetworkio/interop-proof/op-service"
	oplog "github.com/mantlenetworkio/interop-proof/op-service/log"
)

var (
	GitCommit = ""
	GitDate   = ""
)

// VersionWithMeta holds the textual version string including the metadata.
var VersionWithMeta = opservice.FormatVersion(opservice.Version, GitCommit, GitDate, opservice.Meta)

// VerifyAction verifies the claim described by cfg.
type VerifyAction func(ctx context.Context, logger log.Logger, cfg *config.Config) error

func main() {
	oplog.SetupDefaults()
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Failed to load .env file", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args, host.Verify, subcmds.Derive)
	stop()
	if err != nil {
		log.Error("Application failed", "err", err)
	}
	os.Exit(exitCode(err))
}

// exitCode is 1 when the claim or derived chain is invalid, and 2 when the check could not be completed.
func exitCode(err error) int {
	if errors.Is(err, pipeline.ErrDerivationMismatch) {
		return client.ExitCodeInvalidClaim
	}
	return client.ExitCode(err)
}

func run(ctx context.Context, args []string, verify VerifyAction, derive subcmds.DeriveAction) error {
	app := cli.NewApp()
	app.Version = VersionWithMeta
	app.Name = "op-interop-client"
	app.Usage = "Interop fault proof program"
	app.Description = "Verifies claims about the next super root sub-transition or single chain output root against a pre-image database."
	app.Flags = flags.Flags
	app.Commands = []*cli.Command{
		{
			Name:  "verify",
			Usage: "Verify the claim described by a boot file",
			Description: "Runs the program against the pre-images in the data directory. " +
				"Exits with 0 if the claim is valid, 1 if it is invalid and 2 if it could not be checked.",
			Flags: flags.VerifyFlags,
			Action: func(cliCtx *cli.Context) error {
				logger := newLogger(cliCtx)
				cfg, err := config.LoadBootFile(cliCtx.Path(flags.BootFile.Name), cliCtx.String(flags.DataDir.Name))
				if err != nil {
					return err
				}
				return verify(cliCtx.Context, logger, cfg)
			},
		},
		subcmds.NewDeriveCommand(newLogger, derive),
	}
	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr
	return app.RunContext(ctx, args)
}

func newLogger(ctx *cli.Context) log.Logger {
	logger := oplog.NewLogger(oplog.AppOut(ctx), oplog.ReadCLIConfig(ctx))
	oplog.SetGlobalLogHandler(logger.Handler())
	logger.Info("Starting op-interop-client", "version", VersionWithMeta)
	return logger
}
