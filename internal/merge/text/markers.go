package text

import (
	"fmt"
	"strings"
)

// ParseRegions recovers the conflict-region structure from marker-bearing
// text deterministically. Markers must not nest: a second start marker
// encountered before the matching separator/end is malformed.
func ParseRegions(s string) ([]Region, error) {
	lines := splitKeepNewline(s)

	var regions []Region
	offset := 0
	i := 0
	for i < len(lines) {
		line := lines[i]
		if !strings.HasPrefix(line, MarkerStart) {
			offset += len(line)
			i++
			continue
		}

		start := offset
		oursLabel := strings.TrimSuffix(strings.TrimPrefix(line, MarkerStart), "\n")
		offset += len(line)
		i++

		var oursLines []string
		for {
			if i >= len(lines) {
				return nil, fmt.Errorf("merge text: unterminated conflict region starting at byte %d", start)
			}
			l := lines[i]
			if strings.HasPrefix(l, MarkerStart) {
				return nil, fmt.Errorf("merge text: nested start marker at byte %d", offset)
			}
			if strings.TrimSuffix(l, "\n") == MarkerSep {
				offset += len(l)
				i++
				break
			}
			oursLines = append(oursLines, l)
			offset += len(l)
			i++
		}

		var theirsLines []string
		var theirsLabel string
		for {
			if i >= len(lines) {
				return nil, fmt.Errorf("merge text: unterminated conflict region starting at byte %d", start)
			}
			l := lines[i]
			if strings.HasPrefix(l, MarkerStart) {
				return nil, fmt.Errorf("merge text: nested start marker at byte %d", offset)
			}
			if strings.HasPrefix(l, MarkerEnd) {
				theirsLabel = strings.TrimSuffix(strings.TrimPrefix(l, MarkerEnd), "\n")
				offset += len(l)
				i++
				break
			}
			theirsLines = append(theirsLines, l)
			offset += len(l)
			i++
		}

		regions = append(regions, Region{
			StartByte:   start,
			EndByte:     offset,
			OursLabel:   oursLabel,
			TheirsLabel: theirsLabel,
			OursText:    join(oursLines),
			TheirsText:  join(theirsLines),
		})
	}

	return regions, nil
}

// WriteRegions reconstructs marker-bearing text from a parsed region set,
// substituting each [StartByte,EndByte) span with freshly generated
// markers from the region's own fields. Applied to a region set obtained
// from ParseRegions(original), this reproduces original byte-for-byte:
// the round-trip law write(parse(write(c))) == write(c).
func WriteRegions(original string, regions []Region) string {
	var b strings.Builder
	last := 0
	for _, r := range regions {
		b.WriteString(original[last:r.StartByte])
		writeConflict(&b, r.OursText, r.TheirsText, r.OursLabel, r.TheirsLabel)
		last = r.EndByte
	}
	b.WriteString(original[last:])
	return b.String()
}
