package revisions

import (
	"bytes"
	"encoding/json"
	"sort"
)

// canonicalize serializes a JSON value deterministically: object keys are
// sorted, arrays keep their declared order (order is itself meaningful
// data), and the whole value is re-marshaled so whitespace/formatting
// differences never register as a change. Two values compare equal iff
// their canonical forms are byte-identical.
func canonicalize(raw json.RawMessage) ([]byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.Marshal(sortKeys(v))
}

// sortKeys recursively copies maps and arrays; key order in the output
// comes from the standard encoding/json marshaler, which already sorts
// map[string]any keys. It's a no-op for scalars and preserves array order.
func sortKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = sortKeys(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sortKeys(item)
		}
		return out
	default:
		return val
	}
}

// canonicalEqual reports whether two raw JSON values are structurally
// equal under canonicalize.
func canonicalEqual(a, b json.RawMessage) (bool, error) {
	ca, err := canonicalize(a)
	if err != nil {
		return false, err
	}
	cb, err := canonicalize(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ca, cb), nil
}

// sortedKeys returns m's keys in ascending order.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
