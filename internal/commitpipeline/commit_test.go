package commitpipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/dabstractor/jin-sub008/internal/jinerr"
	"github.com/dabstractor/jin-sub008/internal/jinmap"
	"github.com/dabstractor/jin-sub008/internal/layer"
	"github.com/dabstractor/jin-sub008/internal/staging"
	"github.com/dabstractor/jin-sub008/internal/store"
	"github.com/dabstractor/jin-sub008/internal/txn"
)

func setup(t *testing.T) (root string, s *store.Store, mgr *txn.Manager) {
	t.Helper()
	root = t.TempDir()
	storeHome := filepath.Join(t.TempDir(), "objects.git")
	var err error
	s, err = store.Open(storeHome)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	mgr = txn.NewManager(s, t.TempDir())
	return root, s, mgr
}

func writeWorkspaceFile(t *testing.T, root, relPath, content string) string {
	t.Helper()
	full := filepath.Join(root, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func TestCommitEmptyStagingFails(t *testing.T) {
	root, s, mgr := setup(t)
	ctx := &layer.Context{}
	idx := staging.New()

	_, err := Commit(root, s, mgr, ctx, idx, "jin <jin@localhost>", nil)
	if jinerr.KindOf(err) != jinerr.KindNothingToCommit {
		t.Fatalf("expected NothingToCommit, got %v", err)
	}
}

func TestCommitSingleLayerAdvancesRef(t *testing.T) {
	root, s, mgr := setup(t)
	ctx := &layer.Context{}
	idx := staging.New()

	hash := writeWorkspaceFile(t, root, "config.json", `{"port":8080}`)
	if err := idx.Stage(staging.Entry{Path: "config.json", TargetLayer: layer.GlobalBase, ContentHash: hash}); err != nil {
		t.Fatalf("Stage: %v", err)
	}

	result, err := Commit(root, s, mgr, ctx, idx, "jin <jin@localhost>", nil)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if result.FilesCommitted != 1 {
		t.Fatalf("expected 1 file committed, got %d", result.FilesCommitted)
	}
	if idx.Len() != 0 {
		t.Fatalf("expected staging index cleared after commit, got %d entries", idx.Len())
	}

	refPath, err := ctx.RefPath(layer.GlobalBase)
	if err != nil {
		t.Fatalf("RefPath: %v", err)
	}
	commitOID, ok := result.CommitOIDs[refPath]
	if !ok {
		t.Fatalf("expected commit for %s, got %+v", refPath, result.CommitOIDs)
	}
	resolved, err := s.ResolveRef(refPath)
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if resolved != commitOID {
		t.Fatalf("ref %s = %s, want %s", refPath, resolved, commitOID)
	}

	treeOID, err := s.CommitTree(commitOID)
	if err != nil {
		t.Fatalf("CommitTree: %v", err)
	}
	entries, err := s.WalkTree(treeOID)
	if err != nil {
		t.Fatalf("WalkTree: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "config.json" {
		t.Fatalf("unexpected tree entries: %+v", entries)
	}

	m, err := jinmap.Load(root)
	if err != nil {
		t.Fatalf("jinmap.Load: %v", err)
	}
	contributors := m.ContributorsOf("config.json")
	if len(contributors) != 1 || contributors[0] != layer.GlobalBase {
		t.Fatalf("expected jinmap to record GlobalBase contributing config.json, got %+v", contributors)
	}
}

func TestCommitStaleContentFails(t *testing.T) {
	root, s, mgr := setup(t)
	ctx := &layer.Context{}
	idx := staging.New()

	writeWorkspaceFile(t, root, "config.json", `{"port":8080}`)
	if err := idx.Stage(staging.Entry{Path: "config.json", TargetLayer: layer.GlobalBase, ContentHash: "not-the-real-hash"}); err != nil {
		t.Fatalf("Stage: %v", err)
	}

	_, err := Commit(root, s, mgr, ctx, idx, "jin <jin@localhost>", nil)
	if jinerr.KindOf(err) != jinerr.KindStale {
		t.Fatalf("expected Stale, got %v", err)
	}
}

func TestCommitMultipleLayersAtomic(t *testing.T) {
	root, s, mgr := setup(t)
	ctx := &layer.Context{Mode: "claude"}
	idx := staging.New()

	h1 := writeWorkspaceFile(t, root, "a.json", `{"a":1}`)
	h2 := writeWorkspaceFile(t, root, "b.json", `{"b":2}`)
	if err := idx.Stage(staging.Entry{Path: "a.json", TargetLayer: layer.GlobalBase, ContentHash: h1}); err != nil {
		t.Fatalf("Stage a: %v", err)
	}
	if err := idx.Stage(staging.Entry{Path: "b.json", TargetLayer: layer.ModeBase, ContentHash: h2}); err != nil {
		t.Fatalf("Stage b: %v", err)
	}

	result, err := Commit(root, s, mgr, ctx, idx, "jin <jin@localhost>", nil)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(result.CommitOIDs) != 2 {
		t.Fatalf("expected 2 layer commits, got %+v", result.CommitOIDs)
	}
	for refPath, oid := range result.CommitOIDs {
		resolved, err := s.ResolveRef(refPath)
		if err != nil {
			t.Fatalf("ResolveRef(%s): %v", refPath, err)
		}
		if resolved != oid {
			t.Fatalf("ref %s = %s, want %s", refPath, resolved, oid)
		}
	}
}
