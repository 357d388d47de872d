package staging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dabstractor/jin-sub008/internal/layer"
)

func TestStageUniquenessByPathAndLayer(t *testing.T) {
	idx := New()
	e1 := Entry{Path: "config.json", TargetLayer: layer.GlobalBase, ContentHash: "h1", AddedAt: time.Now()}
	e2 := Entry{Path: "config.json", TargetLayer: layer.GlobalBase, ContentHash: "h2", AddedAt: time.Now()}
	if err := idx.Stage(e1); err != nil {
		t.Fatal(err)
	}
	if err := idx.Stage(e2); err != nil {
		t.Fatal(err)
	}
	entries := idx.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry after replace, got %d", len(entries))
	}
	if entries[0].ContentHash != "h2" {
		t.Fatalf("expected replaced entry, got %v", entries[0])
	}
}

func TestStageDifferentLayersCoexist(t *testing.T) {
	idx := New()
	if err := idx.Stage(Entry{Path: "config.json", TargetLayer: layer.GlobalBase}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Stage(Entry{Path: "config.json", TargetLayer: layer.ModeBase}); err != nil {
		t.Fatal(err)
	}
	if idx.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", idx.Len())
	}
	if len(idx.EntriesForLayer(layer.GlobalBase)) != 1 {
		t.Fatal("expected 1 entry for GlobalBase")
	}
}

func TestStageRejectsWorkspaceActive(t *testing.T) {
	idx := New()
	err := idx.Stage(Entry{Path: "x", TargetLayer: layer.WorkspaceActive})
	if err == nil {
		t.Fatal("expected error staging WorkspaceActive directly")
	}
}

func TestUnstage(t *testing.T) {
	idx := New()
	_ = idx.Stage(Entry{Path: "a", TargetLayer: layer.GlobalBase})
	_ = idx.Stage(Entry{Path: "b", TargetLayer: layer.GlobalBase})
	idx.Unstage("a", layer.GlobalBase)
	if idx.Len() != 1 {
		t.Fatalf("expected 1 entry after unstage, got %d", idx.Len())
	}
	if idx.Entries()[0].Path != "b" {
		t.Fatal("wrong entry remained")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	idx := New()
	_ = idx.Stage(Entry{Path: "a.json", TargetLayer: layer.GlobalBase, ContentHash: "h1", FormatHint: "json", Size: 10, AddedAt: time.Now().Truncate(time.Second)})
	_ = idx.Stage(Entry{Path: "b.yaml", TargetLayer: layer.ModeBase, ContentHash: "h2", FormatHint: "yaml", Size: 20, AddedAt: time.Now().Truncate(time.Second)})

	path := filepath.Join(t.TempDir(), "staging", "index.json")
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Len() != idx.Len() {
		t.Fatalf("round trip count mismatch: %d != %d", loaded.Len(), idx.Len())
	}
	for i, e := range idx.Entries() {
		got := loaded.Entries()[i]
		if got.Path != e.Path || got.TargetLayer != e.TargetLayer || got.ContentHash != e.ContentHash {
			t.Fatalf("round trip mismatch at %d: %+v != %+v", i, got, e)
		}
	}
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	idx, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("Load missing: %v", err)
	}
	if idx.Len() != 0 {
		t.Fatal("expected empty index")
	}
}

func TestIsBinaryDetectsNulByte(t *testing.T) {
	if !IsBinary([]byte("abc\x00def")) {
		t.Fatal("expected binary detection")
	}
	if IsBinary([]byte("plain text\nfile\n")) {
		t.Fatal("expected non-binary")
	}
}

func TestClear(t *testing.T) {
	idx := New()
	_ = idx.Stage(Entry{Path: "a", TargetLayer: layer.GlobalBase})
	idx.Clear()
	if idx.Len() != 0 {
		t.Fatal("expected empty after clear")
	}
}
