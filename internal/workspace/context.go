// Package workspace manages the working directory's context selection
// and the metadata that records what was last applied into it,
// persisted as YAML files under Jin's own directory.
package workspace

import (
	"os"
	"path/filepath"

	"github.com/dabstractor/jin-sub008/internal/jinerr"
	"github.com/dabstractor/jin-sub008/internal/layer"
	"gopkg.in/yaml.v3"
)

const (
	DirName      = ".jin"
	ContextFile  = "context"
	MetadataFile = "workspace_metadata.yaml"
	StagingDir   = "staging"
	StagingFile  = "index.json"
	PausedDir    = "paused"
)

// Dir returns the .jin directory under root.
func Dir(root string) string {
	return filepath.Join(root, DirName)
}

// StagingPath returns the path to the staging index, .jin/staging/index.json.
func StagingPath(root string) string {
	return filepath.Join(Dir(root), StagingDir, StagingFile)
}

// LoadContext reads .jin/context. A missing file yields a zero-value
// Context (no mode/scope/project selected, matching a freshly
// initialized workspace).
func LoadContext(root string) (*layer.Context, error) {
	path := filepath.Join(Dir(root), ContextFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &layer.Context{}, nil
	}
	if err != nil {
		return nil, jinerr.Wrap(jinerr.KindIO, "workspace.LoadContext", path, err)
	}
	var c layer.Context
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, jinerr.Wrap(jinerr.KindParseError, "workspace.LoadContext", path, err)
	}
	return &c, nil
}

// SaveContext atomically writes .jin/context.
func SaveContext(root string, c *layer.Context) error {
	dir := Dir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return jinerr.Wrap(jinerr.KindIO, "workspace.SaveContext", dir, err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return jinerr.Wrap(jinerr.KindIO, "workspace.SaveContext", "", err)
	}
	path := filepath.Join(dir, ContextFile)
	tmp, err := os.CreateTemp(dir, ".context-*.tmp")
	if err != nil {
		return jinerr.Wrap(jinerr.KindIO, "workspace.SaveContext", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return jinerr.Wrap(jinerr.KindIO, "workspace.SaveContext", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return jinerr.Wrap(jinerr.KindIO, "workspace.SaveContext", path, err)
	}
	if err := tmp.Close(); err != nil {
		return jinerr.Wrap(jinerr.KindIO, "workspace.SaveContext", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return jinerr.Wrap(jinerr.KindIO, "workspace.SaveContext", path, err)
	}
	return nil
}
