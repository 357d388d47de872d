package structured

import (
	"bytes"

	"github.com/BurntSushi/toml"
	"github.com/dabstractor/jin-sub008/internal/jinerr"
)

// mergeTOML decodes each contribution into a generic map, deep-merges
// with the shared engine, and re-encodes with BurntSushi/toml.
//
// Known limitation: BurntSushi/toml's encoder has no
// comment-preserving AST, so unlike the YAML backend this one does not
// retain top-of-file comments or the original table ordering across a
// merge, table keys come out alphabetized by the encoder. This is the
// best "format preservation ... within the limits of the respective
// format" available from BurntSushi/toml.
func mergeTOML(contributions [][]byte) ([]byte, error) {
	var acc interface{}

	for i, raw := range contributions {
		var v map[string]interface{}
		if _, err := toml.Decode(string(raw), &v); err != nil {
			return nil, jinerr.Wrap(jinerr.KindParseError, "structured.mergeTOML", "", err)
		}
		if i == 0 {
			acc = toGeneric(v)
		} else {
			acc = MergeValues(acc, toGeneric(v))
		}
	}

	merged, ok := acc.(map[string]interface{})
	if !ok {
		merged = map[string]interface{}{}
	}

	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(merged); err != nil {
		return nil, jinerr.Wrap(jinerr.KindIO, "structured.mergeTOML", "", err)
	}
	return buf.Bytes(), nil
}

// toGeneric normalizes BurntSushi's decode output (map[string]interface{}
// with nested maps of the same type) into the shared engine's expected
// shape; BurntSushi already produces compatible types for maps/scalars,
// this only needs to walk nested maps/slices to be defensive.
func toGeneric(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, sub := range val {
			out[k] = toGeneric(sub)
		}
		return out
	case []map[string]interface{}:
		out := make([]interface{}, len(val))
		for i, sub := range val {
			out[i] = toGeneric(sub)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, sub := range val {
			out[i] = toGeneric(sub)
		}
		return out
	default:
		return val
	}
}
