// Copyright 2019 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package testlog provides a log handler for unit tests.
package testlog

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

var useColorInTestLog = true

func init() {
	if os.Getenv("OP_TESTLOG_DISABLE_COLOR") == "true" {
		useColorInTestLog = false
	}
}

// Testing interface to log to. Some functions are marked as Helper function to log the call site accurately.
// Standard Go testing.TB implements this, as well as Hive and other Go-like test frameworks.
type Testing interface {
	Logf(format string, args ...any)
	Helper()
	FailNow()
	Name() string
	Cleanup(func())
}

// Logger returns a logger which logs to the unit test log of t.
func Logger(t Testing, level slog.Level) log.Logger {
	return log.NewLogger(Handler(t, level))
}

// Handler returns a terminal-formatting handler that flushes every record to t.Logf.
func Handler(t Testing, level slog.Level) slog.Handler {
	buf := new(bytes.Buffer)
	return &testHandler{
		t:     t,
		mu:    new(sync.Mutex),
		buf:   buf,
		inner: log.NewTerminalHandlerWithLevel(buf, level, useColorInTestLog),
	}
}

// testHandler formats records into a shared buffer, and forwards each line to the test log.
// Derived handlers share the buffer and the lock with their parent.
type testHandler struct {
	t     Testing
	mu    *sync.Mutex
	buf   *bytes.Buffer
	inner slog.Handler
}

var _ slog.Handler = (*testHandler)(nil)

func (h *testHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *testHandler) Handle(ctx context.Context, r slog.Record) error {
	h.t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}
	h.flush()
	return nil
}

func (h *testHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &testHandler{t: h.t, mu: h.mu, buf: h.buf, inner: h.inner.WithAttrs(attrs)}
}

func (h *testHandler) WithGroup(name string) slog.Handler {
	return &testHandler{t: h.t, mu: h.mu, buf: h.buf, inner: h.inner.WithGroup(name)}
}

// flush writes all buffered lines and clears the buffer.
func (h *testHandler) flush() {
	h.t.Helper()
	defer func() {
		// t.Logf panics when a goroutine logs after the test completed
		if r := recover(); r != nil {
			log.Warn("testlog: panic during flush", "recover", r)
		}
	}()
	scanner := bufio.NewScanner(h.buf)
	for scanner.Scan() {
		h.t.Logf("%s", scanner.Text())
	}
	h.buf.Reset()
}
