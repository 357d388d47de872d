// Package store provides a typed, content-addressed object store
// adapter on top of a bare git repository, driving the git binary
// through os/exec (exec.Command("git", ...)) and wrapping its failures
// with fmt.Errorf("...: %w", err).
//
// Jin never touches a git working tree: every operation here is
// plumbing against a bare repository dedicated to Jin's own reference
// namespace (refs/jin/layers/...), kept outside the user's project
// tree.
package store

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dabstractor/jin-sub008/internal/jinerr"
)

// EnvHomeVar is the environment variable that overrides the object
// store's home directory; tests inject alternate paths through it
// (the store's global on-disk state).
const EnvHomeVar = "JIN_DIR"

// defaultHomeDirName is the directory created under the user's home
// directory when EnvHomeVar is unset.
const defaultHomeDirName = ".jin-store"

// HomeDir resolves the object store's home directory: the EnvHomeVar
// override if set, otherwise a platform-specific default under the
// user's home directory.
func HomeDir() (string, error) {
	if v := os.Getenv(EnvHomeVar); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", jinerr.Wrap(jinerr.KindIO, "store.HomeDir", "", err)
	}
	return filepath.Join(home, defaultHomeDirName), nil
}

// Store is a typed wrapper over a content-addressed object store,
// backed by a bare git repository. It distinguishes blobs, trees, and
// commits, maintains ref pointers with compare-and-swap semantics, and
// supports recursive tree walks.
type Store struct {
	gitDir string
}

// Open opens (creating if necessary) the bare repository at home.
func Open(home string) (*Store, error) {
	s := &Store{gitDir: home}
	if _, err := os.Stat(home); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(home), 0o750); err != nil && filepath.Dir(home) != "." {
			return nil, jinerr.Wrap(jinerr.KindIO, "store.Open", home, err)
		}
		cmd := exec.Command("git", "init", "--bare", "-q", home)
		if out, err := cmd.CombinedOutput(); err != nil {
			return nil, jinerr.Wrap(jinerr.KindIO, "store.Open", home, fmt.Errorf("git init --bare: %w\n%s", err, out))
		}
	} else if err != nil {
		return nil, jinerr.Wrap(jinerr.KindIO, "store.Open", home, err)
	}
	return s, nil
}

// GitDir returns the bare repository path backing this store.
func (s *Store) GitDir() string { return s.gitDir }

// run executes a plumbing git command against this store's bare repo,
// feeding stdin if non-nil and returning stdout. Mirrors the Exec
// helper in internal/vcs/git/git.go but targets --git-dir rather
// than a working tree, since Jin has no checkout of its own.
func (s *Store) run(stdin []byte, args ...string) ([]byte, error) {
	full := append([]string{"--git-dir=" + s.gitDir}, args...)
	cmd := exec.Command("git", full...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		return stdout.Bytes(), fmt.Errorf("git %s failed: %w\n%s", strings.Join(args, " "), err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// WriteBlob writes bytes as a blob object, deduplicating on content:
// writing the same bytes twice returns the same oid without growing
// the store.
func (s *Store) WriteBlob(data []byte) (string, error) {
	out, err := s.run(data, "hash-object", "-w", "--stdin")
	if err != nil {
		return "", jinerr.Wrap(jinerr.KindIO, "store.WriteBlob", "", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// HashBlob computes the oid bytes would get without writing them,
// letting a caller tell cheaply whether WriteBlob would be a no-op.
// The staging index does not use it: its content_hash is the hex
// SHA-256 digest of the file bytes, not a blob oid.
func (s *Store) HashBlob(data []byte) (string, error) {
	out, err := s.run(data, "hash-object", "--stdin")
	if err != nil {
		return "", jinerr.Wrap(jinerr.KindIO, "store.HashBlob", "", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// ReadBlob reads a blob's bytes by oid.
func (s *Store) ReadBlob(oid string) ([]byte, error) {
	out, err := s.run(nil, "cat-file", "blob", oid)
	if err != nil {
		return nil, jinerr.Wrap(jinerr.KindObjectNotFound, "store.ReadBlob", oid, err)
	}
	return out, nil
}

// TreeEntry is one entry of a tree object.
type TreeEntry struct {
	Name string // path segment (no slashes)
	Mode string // e.g. "100644" (file), "040000" (subtree)
	OID  string
	Type string // "blob" or "tree"
}

// WriteTree writes a tree object from entries, ordering them
// canonically (git's own sort: directories compare as if suffixed
// with "/") so tree hashing is deterministic regardless of caller order.
func (s *Store) WriteTree(entries []TreeEntry) (string, error) {
	sorted := make([]TreeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return treeSortKey(sorted[i]) < treeSortKey(sorted[j])
	})

	var buf bytes.Buffer
	for _, e := range sorted {
		fmt.Fprintf(&buf, "%s %s %s\t%s\n", e.Mode, e.Type, e.OID, e.Name)
	}
	out, err := s.run(buf.Bytes(), "mktree")
	if err != nil {
		return "", jinerr.Wrap(jinerr.KindIO, "store.WriteTree", "", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func treeSortKey(e TreeEntry) string {
	if e.Type == "tree" {
		return e.Name + "/"
	}
	return e.Name
}

// CommitOpts configures a commit object write.
type CommitOpts struct {
	Tree    string
	Parents []string
	Message string
	Author  string // "Name <email>"
	Time    string // RFC 2822 or unix-epoch-plus-tz; empty uses git's current time
}

// WriteCommit writes a commit object.
func (s *Store) WriteCommit(opts CommitOpts) (string, error) {
	args := []string{"commit-tree", opts.Tree}
	for _, p := range opts.Parents {
		args = append(args, "-p", p)
	}
	args = append(args, "-m", opts.Message)

	cmdArgs := append([]string{"--git-dir=" + s.gitDir}, args...)
	cmd := exec.Command("git", cmdArgs...)
	cmd.Env = append(os.Environ(), commitEnv(opts)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", jinerr.Wrap(jinerr.KindIO, "store.WriteCommit", "", fmt.Errorf("git commit-tree: %w\n%s", err, stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

func commitEnv(opts CommitOpts) []string {
	name, email := splitAuthor(opts.Author)
	env := []string{
		"GIT_AUTHOR_NAME=" + name,
		"GIT_AUTHOR_EMAIL=" + email,
		"GIT_COMMITTER_NAME=" + name,
		"GIT_COMMITTER_EMAIL=" + email,
	}
	if opts.Time != "" {
		env = append(env, "GIT_AUTHOR_DATE="+opts.Time, "GIT_COMMITTER_DATE="+opts.Time)
	}
	return env
}

func splitAuthor(author string) (name, email string) {
	if author == "" {
		return "jin", "jin@localhost"
	}
	idx := strings.Index(author, "<")
	if idx < 0 {
		return strings.TrimSpace(author), "jin@localhost"
	}
	name = strings.TrimSpace(author[:idx])
	email = strings.TrimSuffix(strings.TrimPrefix(author[idx:], "<"), ">")
	email = strings.TrimSuffix(email, ">")
	return name, email
}

// CommitTree resolves a commit object to the oid of its tree.
func (s *Store) CommitTree(commitOID string) (string, error) {
	out, err := s.run(nil, "rev-parse", commitOID+"^{tree}")
	if err != nil {
		return "", jinerr.Wrap(jinerr.KindObjectNotFound, "store.CommitTree", commitOID, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// MergeBase returns the best common ancestor commit of a and b, used
// by pull to find the base for a per-layer three-way merge. Returns
// ObjectNotFound if the commits share no history (e.g. a freshly
// adopted remote layer).
func (s *Store) MergeBase(a, b string) (string, error) {
	out, err := s.run(nil, "merge-base", a, b)
	if err != nil {
		return "", jinerr.New(jinerr.KindObjectNotFound, "store.MergeBase", a+".."+b)
	}
	return strings.TrimSpace(string(out)), nil
}

// IsAncestor reports whether ancestor is a (possibly indirect) parent
// of descendant, the fast-forward test pull uses to decide whether a
// layer can simply adopt the remote's commit instead of merging.
func (s *Store) IsAncestor(ancestor, descendant string) (bool, error) {
	_, err := s.run(nil, "merge-base", "--is-ancestor", ancestor, descendant)
	return err == nil, nil
}

// ReadFileInCommit reads a single path's bytes as of commitOID.
// Returns an ObjectNotFound error if the path does not exist in the commit.
func (s *Store) ReadFileInCommit(commitOID, path string) ([]byte, error) {
	out, err := s.run(nil, "show", commitOID+":"+path)
	if err != nil {
		return nil, jinerr.Wrap(jinerr.KindObjectNotFound, "store.ReadFileInCommit", path, err)
	}
	return out, nil
}

// TreeWalkEntry is one file yielded by WalkTree.
type TreeWalkEntry struct {
	Path string
	OID  string
	Mode string
}

// WalkTree recursively, depth-first walks a tree object and returns
// every blob entry it reaches (finite, trees are acyclic DAGs).
func (s *Store) WalkTree(treeOID string) ([]TreeWalkEntry, error) {
	if treeOID == "" {
		return nil, nil
	}
	out, err := s.run(nil, "ls-tree", "-r", "--full-tree", treeOID)
	if err != nil {
		return nil, jinerr.Wrap(jinerr.KindObjectNotFound, "store.WalkTree", treeOID, err)
	}
	var entries []TreeWalkEntry
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		// format: "<mode> <type> <oid>\t<path>"
		tabIdx := strings.IndexByte(line, '\t')
		if tabIdx < 0 {
			continue
		}
		meta := strings.Fields(line[:tabIdx])
		if len(meta) != 3 || meta[1] != "blob" {
			continue
		}
		entries = append(entries, TreeWalkEntry{
			Mode: meta[0],
			OID:  meta[2],
			Path: line[tabIdx+1:],
		})
	}
	return entries, nil
}

// RefExists reports whether a reference exists.
func (s *Store) RefExists(name string) bool {
	_, err := s.run(nil, "show-ref", "--verify", "--quiet", name)
	return err == nil
}

// ResolveRef resolves a reference to its commit oid.
func (s *Store) ResolveRef(name string) (string, error) {
	out, err := s.run(nil, "rev-parse", "--verify", "--quiet", name)
	if err != nil {
		return "", jinerr.New(jinerr.KindRefNotFound, "store.ResolveRef", name)
	}
	return strings.TrimSpace(string(out)), nil
}

// ErrStale indicates a CAS ref update lost the race: the ref's current
// value no longer matches the caller's expected old oid.
var ErrStale = jinerr.New(jinerr.KindStale, "store.UpdateRef", "")

// UpdateRef updates a reference, optionally as a compare-and-swap
// against expectedOldOID. An empty expectedOldOID means "must not
// already exist". git update-ref enforces the CAS natively: it fails
// if the ref's current value doesn't match the given old value.
func (s *Store) UpdateRef(name, newOID, expectedOldOID string) error {
	args := []string{"update-ref", name, newOID}
	if expectedOldOID != "" {
		args = append(args, expectedOldOID)
	} else {
		args = append(args, zeroOID)
	}
	if _, err := s.run(nil, args...); err != nil {
		if expectedOldOID == "" && !s.RefExists(name) {
			// Ref still doesn't exist: this was a genuine I/O failure,
			// not a lost CAS race.
			return jinerr.Wrap(jinerr.KindIO, "store.UpdateRef", name, err)
		}
		return jinerr.Wrap(jinerr.KindStale, "store.UpdateRef", name, err)
	}
	return nil
}

// zeroOID is git's all-zero oid, used to assert "ref must not exist yet".
const zeroOID = "0000000000000000000000000000000000000000"

// DeleteRef removes a reference.
func (s *Store) DeleteRef(name string) error {
	if _, err := s.run(nil, "update-ref", "-d", name); err != nil {
		return jinerr.Wrap(jinerr.KindIO, "store.DeleteRef", name, err)
	}
	return nil
}

// ListRefs lists reference names under prefix.
func (s *Store) ListRefs(prefix string) ([]string, error) {
	out, err := s.run(nil, "for-each-ref", "--format=%(refname)", prefix)
	if err != nil {
		return nil, jinerr.Wrap(jinerr.KindIO, "store.ListRefs", prefix, err)
	}
	text := strings.TrimSpace(string(out))
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

// fileMode for a regular, non-executable blob in a tree entry.
const FileMode = "100644"

// TreeMode for a subtree entry.
const TreeMode = "040000"

// parseMode is a small helper that converts a mode string read back
// from ls-tree to an integer.
func parseMode(m string) (int, error) {
	return strconv.Atoi(m)
}
