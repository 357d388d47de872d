package text

import "testing"

func TestMergeCleanIdentical(t *testing.T) {
	r := Merge("a\nb\n", "a\nb\n", "a\nb\n", "ours", "theirs")
	if !r.Clean || r.Text != "a\nb\n" {
		t.Fatalf("expected clean passthrough, got %+v", r)
	}
}

func TestMergeCleanOneSidedChange(t *testing.T) {
	base := "port: 8080\ndebug: true\n"
	ours := "port: 9090\ndebug: true\n"
	theirs := "port: 8080\ndebug: true\n"

	r := Merge(base, ours, theirs, "refs/jin/layers/global/base", "refs/jin/layers/scope/base")
	if !r.Clean {
		t.Fatalf("expected clean, got conflict: %s", r.Text)
	}
	if r.Text != "port: 9090\ndebug: true\n" {
		t.Fatalf("got %q", r.Text)
	}
}

func TestMergeWholeFileConflictNoCommonBase(t *testing.T) {
	ours := "first layer notes\n"
	theirs := "second layer notes\n"

	r := Merge("", ours, theirs, "refs/jin/layers/scope/base", "refs/jin/layers/project/base")
	if r.Clean {
		t.Fatalf("expected conflict, got clean: %s", r.Text)
	}
	if len(r.Regions) != 1 {
		t.Fatalf("expected exactly 1 region, got %d", len(r.Regions))
	}
	reg := r.Regions[0]
	if reg.OursText != ours || reg.TheirsText != theirs {
		t.Fatalf("region content mismatch: %+v", reg)
	}
	if reg.OursLabel != "refs/jin/layers/scope/base" || reg.TheirsLabel != "refs/jin/layers/project/base" {
		t.Fatalf("region labels mismatch: %+v", reg)
	}
	wantPrefix := MarkerStart + "refs/jin/layers/scope/base\n"
	if len(r.Text) < len(wantPrefix) || r.Text[:len(wantPrefix)] != wantPrefix {
		t.Fatalf("marker prefix mismatch, got %q", r.Text)
	}
}

func TestMergeOverlappingEditsConflict(t *testing.T) {
	base := "line one\nline two\nline three\n"
	ours := "line one\nOURS CHANGED\nline three\n"
	theirs := "line one\nTHEIRS CHANGED\nline three\n"

	r := Merge(base, ours, theirs, "a", "b")
	if r.Clean {
		t.Fatalf("expected conflict, got clean: %s", r.Text)
	}
	if len(r.Regions) != 1 {
		t.Fatalf("expected 1 region, got %d: %+v", len(r.Regions), r.Regions)
	}
	if r.Regions[0].OursText != "OURS CHANGED\n" || r.Regions[0].TheirsText != "THEIRS CHANGED\n" {
		t.Fatalf("region mismatch: %+v", r.Regions[0])
	}
	if !containsStr(r.Text, "line one\n") || !containsStr(r.Text, "line three\n") {
		t.Fatalf("expected unchanged context lines preserved: %s", r.Text)
	}
}

func TestMergeBothSidesDeleteSameLineClean(t *testing.T) {
	base := "keep\nremove me\nkeep too\n"
	ours := "keep\nkeep too\n"
	theirs := "keep\nkeep too\n"

	r := Merge(base, ours, theirs, "a", "b")
	if !r.Clean {
		t.Fatalf("expected clean, got: %s", r.Text)
	}
	if r.Text != "keep\nkeep too\n" {
		t.Fatalf("got %q", r.Text)
	}
}

func TestMergeNoTrailingNewlinePreserved(t *testing.T) {
	r := Merge("abc", "abc", "abc", "a", "b")
	if !r.Clean || r.Text != "abc" {
		t.Fatalf("expected passthrough without trailing newline, got %+v", r)
	}
}

func TestParseRegionsRoundTrip(t *testing.T) {
	base := "one\ntwo\nthree\n"
	ours := "one\nOURS\nthree\n"
	theirs := "one\nTHEIRS\nthree\n"

	r := Merge(base, ours, theirs, "refs/jin/layers/a/base", "refs/jin/layers/b/base")
	if r.Clean {
		t.Fatalf("expected conflict")
	}

	parsed, err := ParseRegions(r.Text)
	if err != nil {
		t.Fatalf("ParseRegions: %v", err)
	}
	if len(parsed) != 1 {
		t.Fatalf("expected 1 parsed region, got %d", len(parsed))
	}
	if parsed[0].OursLabel != "refs/jin/layers/a/base" || parsed[0].TheirsLabel != "refs/jin/layers/b/base" {
		t.Fatalf("label mismatch: %+v", parsed[0])
	}
	if parsed[0].OursText != "OURS\n" || parsed[0].TheirsText != "THEIRS\n" {
		t.Fatalf("content mismatch: %+v", parsed[0])
	}

	rewritten := WriteRegions(r.Text, parsed)
	if rewritten != r.Text {
		t.Fatalf("round-trip law violated:\norig: %q\nrewritten: %q", r.Text, rewritten)
	}
}

func TestParseRegionsRejectsNestedMarkers(t *testing.T) {
	malformed := MarkerStart + "a\n" + MarkerStart + "nested\n" + MarkerSep + "\nx\n" + MarkerEnd + "b\n" + MarkerSep + "\ny\n" + MarkerEnd + "c\n"
	if _, err := ParseRegions(malformed); err == nil {
		t.Fatal("expected error for nested markers")
	}
}

func containsStr(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
