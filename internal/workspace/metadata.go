package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/dabstractor/jin-sub008/internal/jinerr"
	"github.com/dabstractor/jin-sub008/internal/layer"
	"gopkg.in/yaml.v3"
)

// FileRecord is what apply last wrote for one workspace-relative path.
type FileRecord struct {
	ContentHash string        `yaml:"content_hash"`
	Layers      []layer.Layer `yaml:"layers"` // contributing layers, precedence order
}

// Metadata is the record apply leaves behind describing what it did,
// used both for drift detection (has the workspace been hand-edited
// since?) and for `jin status`.
type Metadata struct {
	AppliedAt time.Time             `yaml:"applied_at"`
	Context   layer.Context         `yaml:"context"`
	LayerRefs map[string]string     `yaml:"layer_refs"` // ref path -> commit oid, as of this apply
	Files     map[string]FileRecord `yaml:"files"`
}

func metadataPath(root string) string {
	return filepath.Join(Dir(root), MetadataFile)
}

// LoadMetadata reads workspace_metadata.yaml. A missing file yields
// an empty Metadata, a workspace that has never been applied into.
func LoadMetadata(root string) (*Metadata, error) {
	path := metadataPath(root)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Metadata{LayerRefs: map[string]string{}, Files: map[string]FileRecord{}}, nil
	}
	if err != nil {
		return nil, jinerr.Wrap(jinerr.KindIO, "workspace.LoadMetadata", path, err)
	}
	var m Metadata
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, jinerr.Wrap(jinerr.KindParseError, "workspace.LoadMetadata", path, err)
	}
	if m.LayerRefs == nil {
		m.LayerRefs = map[string]string{}
	}
	if m.Files == nil {
		m.Files = map[string]FileRecord{}
	}
	return &m, nil
}

// SaveMetadata atomically writes workspace_metadata.yaml.
func SaveMetadata(root string, m *Metadata) error {
	dir := Dir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return jinerr.Wrap(jinerr.KindIO, "workspace.SaveMetadata", dir, err)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return jinerr.Wrap(jinerr.KindIO, "workspace.SaveMetadata", "", err)
	}
	path := metadataPath(root)
	tmp, err := os.CreateTemp(dir, ".metadata-*.tmp")
	if err != nil {
		return jinerr.Wrap(jinerr.KindIO, "workspace.SaveMetadata", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return jinerr.Wrap(jinerr.KindIO, "workspace.SaveMetadata", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return jinerr.Wrap(jinerr.KindIO, "workspace.SaveMetadata", path, err)
	}
	if err := tmp.Close(); err != nil {
		return jinerr.Wrap(jinerr.KindIO, "workspace.SaveMetadata", path, err)
	}
	return os.Rename(tmpPath, path)
}

// HashFile returns the hex sha256 of the file at root/relPath.
func HashFile(root, relPath string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, relPath))
	if err != nil {
		return "", jinerr.Wrap(jinerr.KindIO, "workspace.HashFile", relPath, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Dirty reports which tracked paths have been modified on disk since
// the last apply (their content hash no longer matches the recorded
// one). force only gates this check at the apply callsite, it never
// changes what Dirty reports.
func Dirty(root string, m *Metadata) ([]string, error) {
	var dirty []string
	for path, rec := range m.Files {
		hash, err := HashFile(root, path)
		if err != nil {
			dirty = append(dirty, path) // missing or unreadable: treat as modified
			continue
		}
		if hash != rec.ContentHash {
			dirty = append(dirty, path)
		}
	}
	return dirty, nil
}
