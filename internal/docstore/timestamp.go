// Package docstore implements service.DocumentStore on top of an embedded
// SQLite database, a Postgres server, or a remote HTTP document server, and
// provides that server.
package docstore

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Timestamp is the wire form of a date: whole seconds since the Unix epoch
// plus a nanosecond remainder in [0, 1e9).
type Timestamp struct {
	Seconds int64 `json:"seconds"`
	Nanos   int32 `json:"nanos"`
}

// TimestampOf converts t to its wire form.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// Time converts the timestamp back to a UTC time.
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}

// AsTimestamp interprets v as a Timestamp. It accepts a Timestamp value or
// pointer and the map a JSON decoder produces for one. ok is false when v is
// not timestamp-shaped.
func AsTimestamp(v any) (ts Timestamp, ok bool, err error) {
	switch t := v.(type) {
	case Timestamp:
		return t, true, nil
	case *Timestamp:
		if t == nil {
			return Timestamp{}, false, nil
		}
		return *t, true, nil
	case map[string]any:
		rawSec, hasSec := t["seconds"]
		if !hasSec {
			return Timestamp{}, false, nil
		}
		sec, err := toInt64(rawSec)
		if err != nil {
			return Timestamp{}, true, fmt.Errorf("timestamp seconds: %w", err)
		}
		var nanos int64
		if rawNanos, ok := t["nanos"]; ok {
			if nanos, err = toInt64(rawNanos); err != nil {
				return Timestamp{}, true, fmt.Errorf("timestamp nanos: %w", err)
			}
		}
		if nanos < 0 || nanos >= int64(time.Second) {
			return Timestamp{}, true, fmt.Errorf("timestamp nanos out of range: %d", nanos)
		}
		return Timestamp{Seconds: sec, Nanos: int32(nanos)}, true, nil
	default:
		return Timestamp{}, false, nil
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Int64()
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int64(n), nil
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
