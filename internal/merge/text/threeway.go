// Package text implements the diff-based three-way line merge that
// backs both the deep-merge engine's "unknown format" fallback and the
// apply pipeline's conflict path. Diffing uses the
// pack's sergi/go-diff (github.com/sergi/go-diff, retrieved via
// githubnext-gh-aw/go.mod), applying its documented line-mode
// technique: map whole lines to single runes with DiffLinesToChars,
// diff at that granularity, then expand back with DiffCharsToLines.
package text

import (
	"strings"

	diffmatchpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// The fixed seven-character conflict markers.
const (
	MarkerStart = "<<<<<<< "
	MarkerSep   = "======="
	MarkerEnd   = ">>>>>>> "
)

// Region records one conflicted span of the merged text, anchored by
// byte offsets into the marker-bearing result and the two sides'
// original content.
type Region struct {
	StartByte   int
	EndByte     int
	OursLabel   string
	TheirsLabel string
	OursText    string
	TheirsText  string
}

// Result is the outcome of a three-way merge.
type Result struct {
	Clean   bool
	Text    string   // merged text (clean) or marker-bearing text (conflict)
	Regions []Region // empty when Clean
}

// Merge performs a three-way line-level merge of base/ours/theirs.
// oursLabel/theirsLabel are the caller-supplied layer reference paths
// used as conflict-marker labels, the full layer reference path,
// not a generic "ours"/"theirs" tag.
func Merge(base, ours, theirs, oursLabel, theirsLabel string) Result {
	if ours == theirs {
		return Result{Clean: true, Text: ours}
	}

	baseLines := splitKeepNewline(base)

	oursDeleted, oursInsertAt := diffAgainstBase(base, ours)
	theirsDeleted, theirsInsertAt := diffAgainstBase(base, theirs)

	var b strings.Builder
	var regions []Region

	for p := 0; p <= len(baseLines); p++ {
		oIns := oursInsertAt[p]
		tIns := theirsInsertAt[p]

		switch {
		case len(oIns) == 0 && len(tIns) == 0:
			// nothing inserted here
		case linesEqual(oIns, tIns):
			b.WriteString(join(oIns))
		case len(oIns) > 0 && len(tIns) == 0:
			b.WriteString(join(oIns))
		case len(tIns) > 0 && len(oIns) == 0:
			b.WriteString(join(tIns))
		default:
			start := b.Len()
			oursText, theirsText := join(oIns), join(tIns)
			writeConflict(&b, oursText, theirsText, oursLabel, theirsLabel)
			regions = append(regions, Region{
				StartByte:   start,
				EndByte:     b.Len(),
				OursLabel:   oursLabel,
				TheirsLabel: theirsLabel,
				OursText:    oursText,
				TheirsText:  theirsText,
			})
		}

		if p < len(baseLines) {
			oKeep := !oursDeleted[p]
			tKeep := !theirsDeleted[p]
			if oKeep && tKeep {
				b.WriteString(baseLines[p])
			}
			// one-or-both deleted: emit nothing. A genuine deletion vs.
			// an unmodified line is not treated as a conflict.
		}
	}

	if len(regions) == 0 {
		return Result{Clean: true, Text: b.String()}
	}
	return Result{Clean: false, Text: b.String(), Regions: regions}
}

func writeConflict(b *strings.Builder, oursText, theirsText, oursLabel, theirsLabel string) {
	b.WriteString(MarkerStart)
	b.WriteString(oursLabel)
	b.WriteString("\n")
	b.WriteString(oursText)
	b.WriteString(MarkerSep)
	b.WriteString("\n")
	b.WriteString(theirsText)
	b.WriteString(MarkerEnd)
	b.WriteString(theirsLabel)
	b.WriteString("\n")
}

func join(lines []string) string {
	return strings.Join(lines, "")
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// diffAgainstBase diffs base against other at line granularity and
// returns, per base line index, whether it was deleted in other, and
// per anchor position (0..len(baseLines)), the lines other inserted
// at that point.
func diffAgainstBase(base, other string) (deleted []bool, insertAt map[int][]string) {
	baseLines := splitKeepNewline(base)
	deleted = make([]bool, len(baseLines))
	insertAt = make(map[int][]string)

	dmp := diffmatchpatch.New()
	charsA, charsB, lineArray := dmp.DiffLinesToChars(base, other)
	diffs := dmp.DiffMain(charsA, charsB, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	pos := 0
	for _, d := range diffs {
		lines := splitKeepNewline(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			pos += len(lines)
		case diffmatchpatch.DiffDelete:
			for k := 0; k < len(lines); k++ {
				if pos+k < len(deleted) {
					deleted[pos+k] = true
				}
			}
			pos += len(lines)
		case diffmatchpatch.DiffInsert:
			insertAt[pos] = append(insertAt[pos], lines...)
		}
	}
	return deleted, insertAt
}

// splitKeepNewline splits s into lines, each retaining its own
// trailing "\n" except possibly the last if s doesn't end in one.
func splitKeepNewline(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.SplitAfter(s, "\n")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}
