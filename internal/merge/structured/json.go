package structured

import (
	"bytes"
	"encoding/json"

	"github.com/dabstractor/jin-sub008/internal/jinerr"
)

// mergeJSON decodes every contribution generically, deep-merges them
// left to right (lowest precedence first), and re-encodes with
// two-space indentation, preserving a trailing newline if any
// contribution had one.
func mergeJSON(contributions [][]byte) ([]byte, error) {
	var acc interface{}
	trailingNewline := false

	for i, raw := range contributions {
		var v interface{}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			return nil, jinerr.Wrap(jinerr.KindParseError, "structured.mergeJSON", "", err)
		}
		if i == 0 {
			acc = v
		} else {
			acc = MergeValues(acc, v)
		}
		if len(raw) > 0 && raw[len(raw)-1] == '\n' {
			trailingNewline = true
		}
	}

	out, err := json.MarshalIndent(acc, "", "  ")
	if err != nil {
		return nil, jinerr.Wrap(jinerr.KindIO, "structured.mergeJSON", "", err)
	}
	if trailingNewline {
		out = append(out, '\n')
	}
	return out, nil
}
