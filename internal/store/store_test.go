package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "objects.git")
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestWriteReadBlobDedup(t *testing.T) {
	s := openTestStore(t)
	data := []byte("hello jin\n")

	oid1, err := s.WriteBlob(data)
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	oid2, err := s.WriteBlob(data)
	if err != nil {
		t.Fatalf("WriteBlob again: %v", err)
	}
	if oid1 != oid2 {
		t.Fatalf("expected dedup: %s != %s", oid1, oid2)
	}

	hashOnly, err := s.HashBlob(data)
	if err != nil {
		t.Fatalf("HashBlob: %v", err)
	}
	if hashOnly != oid1 {
		t.Fatalf("HashBlob and WriteBlob oid mismatch: %s != %s", hashOnly, oid1)
	}

	got, err := s.ReadBlob(oid1)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("got %q want %q", got, data)
	}
}

func TestReadBlobNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.ReadBlob("0123456789abcdef0123456789abcdef01234567")
	if err == nil {
		t.Fatal("expected error for missing blob")
	}
}

func TestWriteTreeAndWalk(t *testing.T) {
	s := openTestStore(t)
	oidA, err := s.WriteBlob([]byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	oidB, err := s.WriteBlob([]byte("b"))
	if err != nil {
		t.Fatal(err)
	}

	treeOID, err := s.WriteTree([]TreeEntry{
		{Name: "b.txt", Mode: FileMode, OID: oidB, Type: "blob"},
		{Name: "a.txt", Mode: FileMode, OID: oidA, Type: "blob"},
	})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}

	entries, err := s.WalkTree(treeOID)
	if err != nil {
		t.Fatalf("WalkTree: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestCommitAndResolveRef(t *testing.T) {
	s := openTestStore(t)
	oid, err := s.WriteBlob([]byte("content"))
	if err != nil {
		t.Fatal(err)
	}
	treeOID, err := s.WriteTree([]TreeEntry{{Name: "f.txt", Mode: FileMode, OID: oid, Type: "blob"}})
	if err != nil {
		t.Fatal(err)
	}
	commitOID, err := s.WriteCommit(CommitOpts{Tree: treeOID, Message: "initial", Author: "Test <t@example.com>"})
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}

	ref := "refs/jin/layers/global/_"
	if s.RefExists(ref) {
		t.Fatal("ref should not exist yet")
	}
	if err := s.UpdateRef(ref, commitOID, ""); err != nil {
		t.Fatalf("UpdateRef create: %v", err)
	}
	if !s.RefExists(ref) {
		t.Fatal("ref should exist now")
	}
	resolved, err := s.ResolveRef(ref)
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if resolved != commitOID {
		t.Fatalf("got %s want %s", resolved, commitOID)
	}

	gotTree, err := s.CommitTree(commitOID)
	if err != nil {
		t.Fatalf("CommitTree: %v", err)
	}
	if gotTree != treeOID {
		t.Fatalf("got %s want %s", gotTree, treeOID)
	}

	content, err := s.ReadFileInCommit(commitOID, "f.txt")
	if err != nil {
		t.Fatalf("ReadFileInCommit: %v", err)
	}
	if string(content) != "content" {
		t.Fatalf("got %q", content)
	}
}

func TestUpdateRefCASConflict(t *testing.T) {
	s := openTestStore(t)
	oid1, _ := s.WriteBlob([]byte("v1"))
	tree1, _ := s.WriteTree([]TreeEntry{{Name: "f", Mode: FileMode, OID: oid1, Type: "blob"}})
	commit1, _ := s.WriteCommit(CommitOpts{Tree: tree1, Message: "v1", Author: "T <t@x.com>"})

	ref := "refs/jin/layers/global/_"
	if err := s.UpdateRef(ref, commit1, ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	oid2, _ := s.WriteBlob([]byte("v2"))
	tree2, _ := s.WriteTree([]TreeEntry{{Name: "f", Mode: FileMode, OID: oid2, Type: "blob"}})
	commit2, _ := s.WriteCommit(CommitOpts{Tree: tree2, Message: "v2", Parents: []string{commit1}, Author: "T <t@x.com>"})

	// Wrong expected-old oid must fail as Stale.
	err := s.UpdateRef(ref, commit2, "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	if err == nil {
		t.Fatal("expected Stale error on CAS mismatch")
	}

	// Correct expected-old oid succeeds.
	if err := s.UpdateRef(ref, commit2, commit1); err != nil {
		t.Fatalf("UpdateRef with correct old oid: %v", err)
	}
}

func TestListRefsAndDelete(t *testing.T) {
	s := openTestStore(t)
	oid, _ := s.WriteBlob([]byte("x"))
	tree, _ := s.WriteTree([]TreeEntry{{Name: "f", Mode: FileMode, OID: oid, Type: "blob"}})
	commit, _ := s.WriteCommit(CommitOpts{Tree: tree, Message: "m", Author: "T <t@x.com>"})

	refs := []string{
		"refs/jin/layers/global/_",
		"refs/jin/layers/mode/claude/_",
	}
	for _, r := range refs {
		if err := s.UpdateRef(r, commit, ""); err != nil {
			t.Fatalf("UpdateRef %s: %v", r, err)
		}
	}

	listed, err := s.ListRefs("refs/jin/layers/")
	if err != nil {
		t.Fatalf("ListRefs: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 refs, got %d: %v", len(listed), listed)
	}

	if err := s.DeleteRef(refs[0]); err != nil {
		t.Fatalf("DeleteRef: %v", err)
	}
	if s.RefExists(refs[0]) {
		t.Fatal("ref should be deleted")
	}
}
