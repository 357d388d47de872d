package remote

import (
	"path/filepath"
	"testing"

	"github.com/dabstractor/jin-sub008/internal/conflict"
	"github.com/dabstractor/jin-sub008/internal/layer"
	"github.com/dabstractor/jin-sub008/internal/store"
	"github.com/dabstractor/jin-sub008/internal/txn"
)

func TestDestPattern(t *testing.T) {
	cases := map[string]string{
		"+refs/jin/layers/*:refs/jin/layers/*":                    "refs/jin/layers",
		"+refs/jin/layers/*:refs/jin/remote/origin/layers/*":      "refs/jin/remote/origin/layers",
		"refs/jin/layers/*:refs/jin/layers/*":                     "refs/jin/layers",
	}
	for in, want := range cases {
		if got := destPattern(in); got != want {
			t.Errorf("destPattern(%q) = %q, want %q", in, got, want)
		}
	}
}

func newBareStore(t *testing.T, name string) *store.Store {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	s, err := store.Open(dir)
	if err != nil {
		t.Fatalf("Open %s: %v", name, err)
	}
	return s
}

// TestPullFastForward covers the simplest pull case: the remote has a
// global-layer commit the local store has never seen; pull must adopt
// it directly (fast-forward / new-layer-adoption) without pausing.
func TestPullFastForward(t *testing.T) {
	remoteStore := newBareStore(t, "remote.git")
	localStore := newBareStore(t, "local.git")

	blobOID, err := remoteStore.WriteBlob([]byte("port: 8080\n"))
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	treeOID, err := remoteStore.WriteTree([]store.TreeEntry{
		{Name: "config.yaml", Mode: store.FileMode, OID: blobOID, Type: "blob"},
	})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	commitOID, err := remoteStore.WriteCommit(store.CommitOpts{Tree: treeOID, Message: "seed", Author: "jin <jin@localhost>"})
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	ctx := &layer.Context{}
	refPath, err := ctx.RefPath(layer.GlobalBase)
	if err != nil {
		t.Fatalf("RefPath: %v", err)
	}
	if err := remoteStore.UpdateRef(refPath, commitOID, ""); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}

	transport := &GitTransport{GitDir: localStore.GitDir(), RemoteURL: remoteStore.GitDir()}
	mgr := txn.NewManager(localStore, t.TempDir())
	root := t.TempDir()

	result, err := Pull(localStore, transport, mgr, root, "origin", ctx)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if len(result.Advanced) != 1 || result.Advanced[0] != refPath {
		t.Fatalf("expected %s advanced, got %+v", refPath, result.Advanced)
	}
	if len(result.Pending) != 0 {
		t.Fatalf("expected no pending layers, got %+v", result.Pending)
	}

	got, err := localStore.ResolveRef(refPath)
	if err != nil {
		t.Fatalf("ResolveRef after pull: %v", err)
	}
	if got != commitOID {
		t.Fatalf("local ref = %s, want %s", got, commitOID)
	}

	if p, err := conflict.Load(root); err != nil || p != nil {
		t.Fatalf("expected no paused operation, got %+v, err %v", p, err)
	}
}

func TestGitTransportFetchAndPush(t *testing.T) {
	remoteStore := newBareStore(t, "remote.git")
	localStore := newBareStore(t, "local.git")

	blobOID, err := remoteStore.WriteBlob([]byte("hello\n"))
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	treeOID, err := remoteStore.WriteTree([]store.TreeEntry{{Name: "a.txt", Mode: store.FileMode, OID: blobOID, Type: "blob"}})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	commitOID, err := remoteStore.WriteCommit(store.CommitOpts{Tree: treeOID, Message: "m", Author: "jin <jin@localhost>"})
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	if err := remoteStore.UpdateRef("refs/jin/layers/global/_", commitOID, ""); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}

	transport := &GitTransport{GitDir: localStore.GitDir(), RemoteURL: remoteStore.GitDir()}
	fetched, err := transport.Fetch(FetchSpec)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if fetched["refs/jin/layers/global/_"] != commitOID {
		t.Fatalf("fetched map = %+v, want global/_ -> %s", fetched, commitOID)
	}

	// Push back toward the "remote": local now holds the fetched ref,
	// so pushing it is a no-op update but exercises the code path.
	if err := transport.Push(FetchSpec); err != nil {
		t.Fatalf("Push: %v", err)
	}
}
