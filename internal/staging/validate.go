package staging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/dabstractor/jin-sub008/internal/jinerr"
)

// sniffWindow is how many leading bytes of a candidate file are
// inspected when deciding whether it is binary content.
const sniffWindow = 8000

// IsBinary reports whether data looks like binary content, using the
// same "contains a NUL byte in the leading window" heuristic common
// diff tools (including git itself) use to flag a file as binary.
func IsBinary(data []byte) bool {
	window := data
	if len(window) > sniffWindow {
		window = window[:sniffWindow]
	}
	return bytes.IndexByte(window, 0) >= 0
}

// ValidatePath rejects paths that must never be
// staged: symlinks, binary content, and files nested inside a
// submodule. root is the workspace root the relative path is resolved
// against.
func ValidatePath(root, relPath string, data []byte) error {
	fsPath := filepath.Join(root, relPath)

	if info, err := os.Lstat(fsPath); err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			return jinerr.New(jinerr.KindSymlinkNotSupported, "staging.ValidatePath", relPath)
		}
	}

	if IsBinary(data) {
		return jinerr.New(jinerr.KindBinaryFileNotSupported, "staging.ValidatePath", relPath)
	}

	if inNestedSubmodule(root, relPath) {
		return jinerr.New(jinerr.KindInvalidLayer, "staging.ValidatePath", relPath)
	}

	return nil
}

// inNestedSubmodule reports whether any directory below root, down to
// and including the file's own directory, contains a .git entry, which
// would mean relPath lives inside a nested repository rather than the
// top-level project tree.
func inNestedSubmodule(root, relPath string) bool {
	dir := filepath.Dir(relPath)
	if dir == "." || dir == string(filepath.Separator) {
		return false
	}
	parts := strings.Split(filepath.ToSlash(dir), "/")
	cur := root
	for i := 0; i < len(parts); i++ {
		cur = filepath.Join(cur, parts[i])
		if _, err := os.Lstat(filepath.Join(cur, ".git")); err == nil {
			return true
		}
	}
	return false
}
