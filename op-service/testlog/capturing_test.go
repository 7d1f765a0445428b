package testlog_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/interop-proof/op-service/testlog"
)

func TestCaptureLogger(t *testing.T) {
	lgr, logs := testlog.CaptureLogger(t, log.LevelInfo)
	msg := "foo bar"
	lgr.Info(msg, "a", 1)
	msgFilter := testlog.NewMessageFilter(msg)
	rec := logs.FindLog(msgFilter)
	require.Equal(t, msg, rec.Message)
	require.EqualValues(t, 1, rec.AttrValue("a"))

	lgr.Debug("bug")
	require.Nil(t, logs.FindLog(testlog.NewMessageFilter("bug")), "should not capture below info")

	lgr.Info("another", "x", "y")
	require.NotNil(t, logs.FindLog(testlog.NewAttributesFilter("x", "y")))
	require.Len(t, logs.FindLogs(testlog.NewLevelFilter(log.LevelInfo)), 2)

	logs.Clear()
	require.Nil(t, logs.FindLog(msgFilter))
}

func TestCaptureLoggerInheritsAttrs(t *testing.T) {
	lgr, logs := testlog.CaptureLogger(t, log.LevelInfo)
	child := lgr.New("chain", "901")
	child.Warn("step failed")
	rec := logs.FindLog(testlog.NewMessageFilter("step failed"), testlog.NewAttributesFilter("chain", "901"))
	require.NotNil(t, rec)
}

func TestCaptureLoggerErrFilters(t *testing.T) {
	lgr, logs := testlog.CaptureLogger(t, log.LevelInfo)
	errExhausted := errors.New("exhausted")
	lgr.Warn("derivation stopped", "err", fmt.Errorf("safe head 7: %w", errExhausted))
	lgr.Warn("derivation stopped", "err", errors.New("boom"))

	require.Len(t, logs.FindLogs(testlog.NewMessageFilter("derivation stopped")), 2)
	rec := logs.FindLog(testlog.NewErrIsFilter(errExhausted))
	require.NotNil(t, rec)
	require.ErrorIs(t, rec.AttrValue("err").(error), errExhausted)
	require.Len(t, logs.FindLogs(testlog.NewErrContainsFilter("boom")), 1)
	require.Nil(t, logs.FindLog(testlog.NewErrContainsFilter("missing")))
}

func TestCaptureLoggerConcurrentWriters(t *testing.T) {
	lgr, logs := testlog.CaptureLogger(t, log.LevelInfo)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lgr.New("chain", i).Info("fetched")
		}()
	}
	wg.Wait()
	require.Len(t, logs.FindLogs(testlog.NewMessageFilter("fetched")), 8)
	require.NotNil(t, logs.FindLog(testlog.NewAttributesFilter("chain", "3")))
}
