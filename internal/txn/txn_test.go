package txn

import (
	"os"
	"testing"

	"github.com/dabstractor/jin-sub008/internal/store"
)

func openTestStore(t *testing.T) (*store.Store, string) {
	t.Helper()
	home := t.TempDir()
	s, err := store.Open(home)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	return s, home
}

func writeCommit(t *testing.T, s *store.Store, msg string) string {
	t.Helper()
	blob, err := s.WriteBlob([]byte("hello"))
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	tree, err := s.WriteTree([]store.TreeEntry{{Name: "f", Mode: store.FileMode, OID: blob, Type: "blob"}})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	commit, err := s.WriteCommit(store.CommitOpts{Tree: tree, Message: msg})
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	return commit
}

func TestBeginPrepareCommit(t *testing.T) {
	s, home := openTestStore(t)
	mgr := NewManager(s, home)

	c1 := writeCommit(t, s, "one")
	c2 := writeCommit(t, s, "two")

	l, err := mgr.Begin([]RefUpdate{
		{RefName: "refs/jin/layers/global/base/_", OldOID: "", NewOID: c1},
		{RefName: "refs/jin/layers/user/local/_", OldOID: "", NewOID: c2},
	})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if l.State != StatePending {
		t.Fatalf("expected Pending, got %s", l.State)
	}

	if err := mgr.Prepare(l); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if l.State != StatePrepared {
		t.Fatalf("expected Prepared, got %s", l.State)
	}

	if err := mgr.Commit(l); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if l.State != StateCommitted {
		t.Fatalf("expected Committed, got %s", l.State)
	}

	got, err := s.ResolveRef("refs/jin/layers/global/base/_")
	if err != nil || got != c1 {
		t.Fatalf("ref not updated: got %s, err %v", got, err)
	}

	if _, err := os.Stat(l.LogPath); err == nil {
		t.Fatalf("expected log removed after commit")
	}
}

func TestPrepareRejectsStaleRef(t *testing.T) {
	s, home := openTestStore(t)
	mgr := NewManager(s, home)

	c1 := writeCommit(t, s, "one")
	if err := s.UpdateRef("refs/jin/layers/global/base/_", c1, ""); err != nil {
		t.Fatalf("seed ref: %v", err)
	}

	c2 := writeCommit(t, s, "two")
	l, err := mgr.Begin([]RefUpdate{
		{RefName: "refs/jin/layers/global/base/_", OldOID: "", NewOID: c2},
	})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := mgr.Prepare(l); err == nil {
		t.Fatal("expected Prepare to reject: ref already exists but OldOID claims it shouldn't")
	}
}

func TestRecoverRollsBackPreparedTransaction(t *testing.T) {
	s, home := openTestStore(t)
	mgr := NewManager(s, home)

	c1 := writeCommit(t, s, "base")
	if err := s.UpdateRef("refs/jin/layers/global/base/_", c1, ""); err != nil {
		t.Fatalf("seed ref: %v", err)
	}

	c2 := writeCommit(t, s, "new")
	l, err := mgr.Begin([]RefUpdate{
		{RefName: "refs/jin/layers/global/base/_", OldOID: c1, NewOID: c2},
	})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := mgr.Prepare(l); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	// Simulate a crash after the ref write but before Commit marks the
	// log Committed: apply the ref update directly, leaving the log
	// file on disk in the Prepared state.
	if err := s.UpdateRef("refs/jin/layers/global/base/_", c2, c1); err != nil {
		t.Fatalf("simulate partial commit: %v", err)
	}

	recovered, err := mgr.Recover()
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if len(recovered) != 1 {
		t.Fatalf("expected 1 recovered transaction, got %d", len(recovered))
	}

	got, err := s.ResolveRef("refs/jin/layers/global/base/_")
	if err != nil || got != c1 {
		t.Fatalf("expected rollback to c1, got %s, err %v", got, err)
	}
}
