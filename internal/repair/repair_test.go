package repair

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/dabstractor/jin-sub008/internal/apply"
	"github.com/dabstractor/jin-sub008/internal/commitpipeline"
	"github.com/dabstractor/jin-sub008/internal/layer"
	"github.com/dabstractor/jin-sub008/internal/staging"
	"github.com/dabstractor/jin-sub008/internal/store"
	"github.com/dabstractor/jin-sub008/internal/txn"
)

func setup(t *testing.T) (root, storeHome string, s *store.Store, mgr *txn.Manager) {
	t.Helper()
	root = t.TempDir()
	storeHome = filepath.Join(t.TempDir(), "objects.git")
	s, err := store.Open(storeHome)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	mgr = txn.NewManager(s, t.TempDir())
	return root, storeHome, s, mgr
}

func hashFile(t *testing.T, root, relPath string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, relPath))
	if err != nil {
		t.Fatalf("read %s: %v", relPath, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestRunHealthyStoreReportsNoProblems(t *testing.T) {
	root, _, s, mgr := setup(t)
	ctx := &layer.Context{}

	if err := os.WriteFile(filepath.Join(root, "config.json"), []byte(`{"a":1}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	idx := staging.New()
	if err := idx.Stage(staging.Entry{Path: "config.json", TargetLayer: layer.GlobalBase, ContentHash: hashFile(t, root, "config.json")}); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if _, err := commitpipeline.Commit(root, s, mgr, ctx, idx, "jin <jin@localhost>", nil); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	report, err := Run(root, s, mgr, ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.HasProblems() {
		t.Fatalf("expected no problems, got %+v", report.Problems)
	}
	if report.RefsChecked != 1 {
		t.Fatalf("expected 1 ref checked, got %d", report.RefsChecked)
	}
	if report.BlobsChecked != 1 {
		t.Fatalf("expected 1 blob checked, got %d", report.BlobsChecked)
	}
	if !report.JinMapRegenerated {
		t.Fatal("expected jinmap to be regenerated")
	}
	if !report.WorkspaceOK {
		t.Fatal("expected a fresh workspace (no metadata yet) to report OK")
	}
}

func TestRunDetectsMissingBlob(t *testing.T) {
	root, storeHome, s, mgr := setup(t)
	ctx := &layer.Context{}

	if err := os.WriteFile(filepath.Join(root, "config.json"), []byte(`{"a":1}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	idx := staging.New()
	if err := idx.Stage(staging.Entry{Path: "config.json", TargetLayer: layer.GlobalBase, ContentHash: hashFile(t, root, "config.json")}); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if _, err := commitpipeline.Commit(root, s, mgr, ctx, idx, "jin <jin@localhost>", nil); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// Simulate object-store corruption: wipe every loose object
	// directory so the layer ref's tree no longer resolves its blob.
	objDir := filepath.Join(storeHome, "objects")
	entries, err := os.ReadDir(objDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if e.Name() == "pack" || e.Name() == "info" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(objDir, e.Name())); err != nil {
			t.Fatalf("RemoveAll: %v", err)
		}
	}

	report, err := Run(root, s, mgr, ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.HasProblems() {
		t.Fatal("expected problems after deleting the object store's loose objects")
	}
}

func TestRunReportsWorkspaceDrift(t *testing.T) {
	root, _, s, mgr := setup(t)
	ctx := &layer.Context{}

	if err := os.WriteFile(filepath.Join(root, "config.json"), []byte(`{"a":1}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	idx := staging.New()
	if err := idx.Stage(staging.Entry{Path: "config.json", TargetLayer: layer.GlobalBase, ContentHash: hashFile(t, root, "config.json")}); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if _, err := commitpipeline.Commit(root, s, mgr, ctx, idx, "jin <jin@localhost>", nil); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	plan, err := apply.BuildPlan(s, ctx)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if _, _, err := apply.Execute(root, ctx, plan, apply.Options{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "config.json"), []byte(`{"a":2}`), 0o644); err != nil {
		t.Fatalf("hand-edit: %v", err)
	}

	report, err := Run(root, s, mgr, ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.WorkspaceOK {
		t.Fatal("expected workspace drift after hand-editing an applied file")
	}
	if !report.HasProblems() {
		t.Fatal("expected drift to be reported as a problem")
	}
}
