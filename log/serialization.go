package log

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"time"

	"github.com/reglet-dev/capgate/wireformat"
)

// appendAttr flattens a into dst, qualifying keys with prefix. Group
// attributes expand into "group.key" entries; empty attributes are dropped.
func appendAttr(dst []wireformat.LogAttrWire, prefix string, a slog.Attr) []wireformat.LogAttrWire {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		if len(group) == 0 {
			return dst
		}
		inner := prefix
		if a.Key != "" {
			inner = prefix + a.Key + "."
		}
		for _, ga := range group {
			dst = appendAttr(dst, inner, ga)
		}
		return dst
	}
	a.Key = prefix + a.Key
	return append(dst, toLogAttrWire(a))
}

// toLogAttrWire converts a non-group attribute.
func toLogAttrWire(attr slog.Attr) wireformat.LogAttrWire {
	wire := wireformat.LogAttrWire{Key: attr.Key}
	v := attr.Value.Resolve()

	switch v.Kind() {
	case slog.KindString:
		wire.Type = "string"
		wire.Value = v.String()
	case slog.KindInt64:
		wire.Type = "int64"
		wire.Value = strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		wire.Type = "uint64"
		wire.Value = strconv.FormatUint(v.Uint64(), 10)
	case slog.KindBool:
		wire.Type = "bool"
		wire.Value = strconv.FormatBool(v.Bool())
	case slog.KindFloat64:
		wire.Type = "float64"
		wire.Value = strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case slog.KindTime:
		wire.Type = "time"
		wire.Value = v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		wire.Type = "duration"
		wire.Value = v.Duration().String()
	default:
		val := v.Any()
		switch x := val.(type) {
		case nil:
			wire.Type = "any"
			wire.Value = "<nil>"
		case error:
			wire.Type = "error"
			wire.Value = x.Error()
		default:
			if data, err := json.Marshal(x); err == nil {
				wire.Type = "json"
				wire.Value = string(data)
			} else {
				wire.Type = "any"
				wire.Value = fmt.Sprintf("%v", x)
			}
		}
	}
	return wire
}

func sourceString(f runtime.Frame) string {
	return f.File + ":" + strconv.Itoa(f.Line)
}
