package commitpipeline

import (
	"sort"
	"strings"

	"github.com/dabstractor/jin-sub008/internal/store"
)

// treeNode is one directory level of a path-keyed file set being
// assembled into nested git tree objects.
type treeNode struct {
	files map[string]string    // basename -> blob oid
	dirs  map[string]*treeNode // basename -> subtree
}

func newTreeNode() *treeNode {
	return &treeNode{files: map[string]string{}, dirs: map[string]*treeNode{}}
}

// insert places path (slash-separated, no leading slash) at blobOID
// into the tree rooted at n.
func (n *treeNode) insert(path, blobOID string) {
	parts := strings.Split(path, "/")
	cur := n
	for i, p := range parts {
		if i == len(parts)-1 {
			cur.files[p] = blobOID
			return
		}
		sub, ok := cur.dirs[p]
		if !ok {
			sub = newTreeNode()
			cur.dirs[p] = sub
		}
		cur = sub
	}
}

// write recursively writes n and its subtrees, returning n's own tree oid.
func (n *treeNode) write(s *store.Store) (string, error) {
	var entries []store.TreeEntry
	for name, oid := range n.files {
		entries = append(entries, store.TreeEntry{Name: name, Mode: store.FileMode, OID: oid, Type: "blob"})
	}
	names := make([]string, 0, len(n.dirs))
	for name := range n.dirs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sub := n.dirs[name]
		oid, err := sub.write(s)
		if err != nil {
			return "", err
		}
		entries = append(entries, store.TreeEntry{Name: name, Mode: store.TreeMode, OID: oid, Type: "tree"})
	}
	return s.WriteTree(entries)
}

// buildTree writes a full nested tree from a flat path -> blob oid map
// and returns the root tree's oid.
func buildTree(s *store.Store, files map[string]string) (string, error) {
	root := newTreeNode()
	for path, oid := range files {
		root.insert(path, oid)
	}
	return root.write(s)
}

// BuildTree is the exported form of buildTree, used by internal/remote
// to assemble a merge commit's tree from a flat path -> blob oid map
// once a pull's per-layer merge (clean or conflict-resolved) is done.
func BuildTree(s *store.Store, files map[string]string) (string, error) {
	return buildTree(s, files)
}
