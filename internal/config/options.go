package config

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Options is a loosely-typed option bag used by pipeline components.
//
// It decodes directly from the "options" objects in pipeline JSON configs, so
// values arrive as the usual encoding/json types (string, float64, bool,
// map[string]any, []any). The accessors below do the tolerant conversions a
// config surface needs; each takes a default used when the key is absent or
// has an unusable type.
type Options map[string]any

// Any returns the raw value for key, or nil when absent.
func (o Options) Any(key string) any {
	if o == nil {
		return nil
	}
	return o[key]
}

func (o Options) String(key, def string) string {
	switch v := o.Any(key).(type) {
	case string:
		return v
	default:
		return def
	}
}

func (o Options) Bool(key string, def bool) bool {
	switch v := o.Any(key).(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}

func (o Options) Int(key string, def int) int {
	switch v := o.Any(key).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return def
		}
		return int(n)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return def
		}
		return n
	default:
		return def
	}
}

// Strings returns a []string option. JSON arrays of mixed types contribute
// only their string elements.
func (o Options) Strings(key string) []string {
	switch v := o.Any(key).(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, it := range v {
			if s, ok := it.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
