package structured

import "github.com/dabstractor/jin-sub008/internal/jinerr"

// Contribution is one layer's version of a file, ordered by the
// caller from lowest to highest precedence.
type Contribution struct {
	Format Format
	Data   []byte
}

// Merge deep-merges contributions (lowest precedence first) according
// to the detected format. All contributions must agree on format;
// a disagreement returns FormatMismatch. FormatUnknown is rejected:
// callers should fall back to the text merge package instead.
func Merge(contributions []Contribution) ([]byte, error) {
	if len(contributions) == 0 {
		return nil, nil
	}
	format := contributions[0].Format
	if format == FormatUnknown {
		return nil, jinerr.New(jinerr.KindUnsupportedFormat, "structured.Merge", "")
	}

	raws := make([][]byte, len(contributions))
	for i, c := range contributions {
		if c.Format != format {
			return nil, jinerr.New(jinerr.KindFormatMismatch, "structured.Merge", "")
		}
		raws[i] = c.Data
	}

	switch format {
	case FormatJSON:
		return mergeJSON(raws)
	case FormatYAML:
		return mergeYAML(raws)
	case FormatTOML:
		return mergeTOML(raws)
	case FormatINI:
		return mergeINI(raws)
	default:
		return nil, jinerr.New(jinerr.KindUnsupportedFormat, "structured.Merge", "")
	}
}
