package structured

import (
	"bytes"

	"github.com/dabstractor/jin-sub008/internal/jinerr"
	"gopkg.in/ini.v1"
)

// mergeINI merges INI contributions by mutating the lowest-precedence
// file in place with each subsequent contribution's sections and
// keys, gopkg.in/ini.v1 keeps a section's original comments and key
// order intact when only some of its keys are overwritten, giving
// true format preservation for the one format that supports it well.
//
// INI has no notion of nested structures or arrays. Merge only routes
// contributions that all carry FormatINI here, and each is parsed as
// INI text, so no nested value reaches this backend; it makes no
// UnsupportedFormat check of its own.
func mergeINI(contributions [][]byte) ([]byte, error) {
	var acc *ini.File

	for i, raw := range contributions {
		f, err := ini.LoadSources(ini.LoadOptions{AllowShadows: false}, raw)
		if err != nil {
			return nil, jinerr.Wrap(jinerr.KindParseError, "structured.mergeINI", "", err)
		}
		if i == 0 {
			acc = f
			continue
		}
		for _, sec := range f.Sections() {
			accSec := acc.Section(sec.Name())
			for _, key := range sec.Keys() {
				accSec.Key(key.Name()).SetValue(key.Value())
			}
		}
	}

	if acc == nil {
		acc = ini.Empty()
	}

	var buf bytes.Buffer
	if _, err := acc.WriteTo(&buf); err != nil {
		return nil, jinerr.Wrap(jinerr.KindIO, "structured.mergeINI", "", err)
	}
	return buf.Bytes(), nil
}
