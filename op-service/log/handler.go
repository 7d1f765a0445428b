package log

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/big"
	"reflect"
	"time"

	"github.com/holiman/uint256"

	"github.com/ethereum/go-ethereum/common/hexutil"
	elog "github.com/ethereum/go-ethereum/log"
)

const (
	timeFormatMs                 = "2006-01-02T15:04:05.000-0700"
	levelMaxVerbosity slog.Level = math.MinInt

	// maxBytesAttr is the number of leading bytes kept when logging pre-images, frame data and
	// encoded transactions.
	maxBytesAttr = 32
)

// JSONMsHandler writes one JSON object per record, with millisecond timestamps under "t".
// Level filtering is left to the wrapping glog handler.
func JSONMsHandler(wr io.Writer) slog.Handler {
	return slog.NewJSONHandler(wr, &slog.HandlerOptions{
		ReplaceAttr: replaceAttr(false),
		Level:       levelMaxVerbosity,
	})
}

// LogfmtMsHandler writes logfmt records, with millisecond timestamps under "t".
func LogfmtMsHandler(wr io.Writer) slog.Handler {
	return slog.NewTextHandler(wr, &slog.HandlerOptions{
		ReplaceAttr: replaceAttr(true),
		Level:       levelMaxVerbosity,
	})
}

func replaceAttr(logfmt bool) func([]string, slog.Attr) slog.Attr {
	return func(_ []string, attr slog.Attr) slog.Attr {
		switch attr.Key {
		case slog.TimeKey:
			if attr.Value.Kind() == slog.KindTime {
				if logfmt {
					return slog.String("t", attr.Value.Time().Format(timeFormatMs))
				}
				return slog.Attr{Key: "t", Value: attr.Value}
			}
		case slog.LevelKey:
			if l, ok := attr.Value.Any().(slog.Level); ok {
				return slog.String("lvl", elog.LevelString(l))
			}
		}
		attr.Value = replaceValue(attr.Value, logfmt)
		return attr
	}
}

func replaceValue(value slog.Value, logfmt bool) slog.Value {
	switch v := value.Any().(type) {
	case time.Time:
		if logfmt {
			return slog.StringValue(v.Format(timeFormatMs))
		}
	case hexutil.Bytes:
		return slog.StringValue(shortBytes(v))
	case []byte:
		return slog.StringValue(shortBytes(v))
	case *big.Int:
		if v == nil {
			return slog.StringValue("<nil>")
		}
		return slog.StringValue(v.String())
	case *uint256.Int:
		if v == nil {
			return slog.StringValue("<nil>")
		}
		return slog.StringValue(v.Dec())
	case fmt.Stringer:
		if v == nil || (reflect.ValueOf(v).Kind() == reflect.Pointer && reflect.ValueOf(v).IsNil()) {
			return slog.StringValue("<nil>")
		}
		return slog.StringValue(v.String())
	}
	return value
}

// shortBytes hex encodes b, keeping only the first maxBytesAttr bytes of longer values.
func shortBytes(b []byte) string {
	if len(b) <= maxBytesAttr {
		return hexutil.Encode(b)
	}
	return fmt.Sprintf("%s..(%d bytes)", hexutil.Encode(b[:maxBytesAttr]), len(b))
}
