package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/log"
)

func TestLevelFromString(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"trace": log.LevelTrace,
		"DEBUG": log.LevelDebug,
		"info":  log.LevelInfo,
		"warn":  log.LevelWarn,
		"eror":  log.LevelError,
		"crit":  log.LevelCrit,
	} {
		lvl, err := LevelFromString(in)
		require.NoError(t, err, in)
		require.Equal(t, want, lvl, in)
	}
	_, err := LevelFromString("loud")
	require.ErrorContains(t, err, "unknown level")
}

func TestReadCLIConfig(t *testing.T) {
	var cfg CLIConfig
	app := cli.NewApp()
	app.Flags = CLIFlags("TEST")
	app.Action = func(ctx *cli.Context) error {
		cfg = ReadCLIConfig(ctx)
		return nil
	}
	require.NoError(t, app.Run([]string{"app", "--log.level=debug", "--log.format=json", "--log.color=false"}))
	require.Equal(t, log.LevelDebug, cfg.Level)
	require.Equal(t, FormatJSON, cfg.Format)
	require.False(t, cfg.Color)
}

func TestRejectUnknownFormat(t *testing.T) {
	fv := NewFormatFlagValue(FormatText)
	require.Error(t, fv.Set("xml"))
	require.NoError(t, fv.Set("logfmt"))
	require.Equal(t, FormatLogFmt, fv.FormatType())
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, CLIConfig{Level: log.LevelWarn, Format: FormatLogFmt})
	logger.Info("hidden")
	logger.Warn("shown", "chain", 10)
	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "msg=shown")
	require.Contains(t, out, "chain=10")
}
