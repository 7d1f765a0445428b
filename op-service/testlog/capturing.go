package testlog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// CapturedAttributes is the chain of attributes a logger inherited through New or With.
type CapturedAttributes struct {
	Parent     *CapturedAttributes
	Attributes []slog.Attr
}

// Attrs calls f on each inherited Attr, innermost logger first, until f returns false.
func (r *CapturedAttributes) Attrs(f func(slog.Attr) bool) bool {
	for ; r != nil; r = r.Parent {
		for _, a := range r.Attributes {
			if !f(a) {
				return false
			}
		}
	}
	return true
}

// CapturedRecord is a log record together with the attributes of the logger that wrote it.
type CapturedRecord struct {
	Parent *CapturedAttributes
	*slog.Record
}

// Attrs calls f on the record's own attributes, then on the inherited ones, until f returns false.
func (r *CapturedRecord) Attrs(f func(slog.Attr) bool) {
	more := true
	r.Record.Attrs(func(a slog.Attr) bool {
		more = f(a)
		return more
	})
	if more {
		r.Parent.Attrs(f)
	}
}

// AttrValue returns the value of the first attribute with the given key, or nil.
func (r *CapturedRecord) AttrValue(key string) (v any) {
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			v = a.Value.Any()
			return false
		}
		return true
	})
	return
}

type captureStore struct {
	mu      sync.Mutex
	records []*CapturedRecord
}

// CapturingHandler records every log record it handles, and forwards it to the test logger.
// Handlers derived with WithAttrs or WithGroup share the records of their parent.
type CapturingHandler struct {
	handler slog.Handler
	store   *captureStore
	attrs   *CapturedAttributes
}

var _ slog.Handler = (*CapturingHandler)(nil)

func CaptureLogger(t Testing, level slog.Level) (log.Logger, *CapturingHandler) {
	ch := &CapturingHandler{handler: Handler(t, level), store: new(captureStore)}
	return log.NewLogger(ch), ch
}

func (c *CapturingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return c.handler.Enabled(ctx, level)
}

func (c *CapturingHandler) Handle(ctx context.Context, r slog.Record) error {
	c.store.mu.Lock()
	c.store.records = append(c.store.records, &CapturedRecord{Parent: c.attrs, Record: &r})
	c.store.mu.Unlock()
	return c.handler.Handle(ctx, r)
}

func (c *CapturingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CapturingHandler{
		handler: c.handler.WithAttrs(attrs),
		store:   c.store,
		attrs:   &CapturedAttributes{Parent: c.attrs, Attributes: attrs},
	}
}

func (c *CapturingHandler) WithGroup(name string) slog.Handler {
	return &CapturingHandler{
		handler: c.handler.WithGroup(name),
		store:   c.store,
		attrs:   c.attrs,
	}
}

// Clear drops all records captured so far.
func (c *CapturingHandler) Clear() {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.records = c.store.records[:0]
}

// LogFilter selects captured records.
type LogFilter func(record *CapturedRecord) bool

// FindLog returns the first record matching all filters, or nil.
func (c *CapturingHandler) FindLog(filters ...LogFilter) *CapturedRecord {
	if logs := c.find(filters, 1); len(logs) > 0 {
		return logs[0]
	}
	return nil
}

// FindLogs returns every record matching all filters, in the order they were logged.
func (c *CapturingHandler) FindLogs(filters ...LogFilter) []*CapturedRecord {
	return c.find(filters, -1)
}

func (c *CapturingHandler) find(filters []LogFilter, limit int) []*CapturedRecord {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	var out []*CapturedRecord
	for _, record := range c.store.records {
		if matchesAll(record, filters) {
			out = append(out, record)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

func matchesAll(record *CapturedRecord, filters []LogFilter) bool {
	for _, filter := range filters {
		if !filter(record) {
			return false
		}
	}
	return true
}

func NewLevelFilter(level slog.Level) LogFilter {
	return func(r *CapturedRecord) bool {
		return r.Level == level
	}
}

func NewMessageFilter(message string) LogFilter {
	return func(r *CapturedRecord) bool {
		return r.Message == message
	}
}

// NewAttributesFilter matches records with an attribute key whose value renders as value.
func NewAttributesFilter(key, value string) LogFilter {
	return func(r *CapturedRecord) bool {
		return anyAttr(r, func(a slog.Attr) bool {
			return a.Key == key && a.Value.String() == value
		})
	}
}

// NewErrContainsFilter matches records with an "err" attribute whose message contains errMessage.
func NewErrContainsFilter(errMessage string) LogFilter {
	return newErrFilter(func(err error) bool {
		return strings.Contains(err.Error(), errMessage)
	})
}

// NewErrIsFilter matches records with an "err" attribute that wraps target.
func NewErrIsFilter(target error) LogFilter {
	return newErrFilter(func(err error) bool {
		return errors.Is(err, target)
	})
}

func newErrFilter(match func(error) bool) LogFilter {
	return func(r *CapturedRecord) bool {
		return anyAttr(r, func(a slog.Attr) bool {
			err, ok := a.Value.Any().(error)
			return a.Key == "err" && ok && match(err)
		})
	}
}

func anyAttr(r *CapturedRecord, match func(slog.Attr) bool) bool {
	found := false
	r.Attrs(func(a slog.Attr) bool {
		found = match(a)
		return !found
	})
	return found
}
