// Package jinmap maintains the cached layer -> contributed-files
// inventory (".jinmap") that lets `jin status` and friends answer
// "which layer supplies this path" without walking every layer's tree
// on every invocation. It is advisory: apply never depends on it being
// current, and repair always regenerates it unconditionally.
package jinmap

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dabstractor/jin-sub008/internal/jinerr"
	"github.com/dabstractor/jin-sub008/internal/layer"
	"github.com/dabstractor/jin-sub008/internal/store"
	"github.com/dabstractor/jin-sub008/internal/workspace"
	"gopkg.in/yaml.v3"
)

const FileName = ".jinmap"

// Entry records one applicable layer's contribution as of the last
// regeneration.
type Entry struct {
	Layer     layer.Layer `yaml:"layer"`
	RefPath   string      `yaml:"ref_path"`
	CommitOID string      `yaml:"commit_oid"`
	Files     []string    `yaml:"files"`
}

// Map is the full inventory for one context.
type Map struct {
	GeneratedAt time.Time `yaml:"generated_at"`
	Entries     []Entry   `yaml:"entries"`
}

// Regenerate walks every layer applicable to ctx and records the file
// paths each one currently contributes. Layers with no ref yet
// (never committed to) are recorded with an empty Files list rather
// than omitted, so the map's layer set is always complete for ctx.
func Regenerate(s *store.Store, ctx *layer.Context) (*Map, error) {
	m := &Map{GeneratedAt: time.Now()}
	for _, l := range ctx.ApplicableLayers() {
		refPath, err := ctx.RefPath(l)
		if err != nil {
			return nil, err
		}
		entry := Entry{Layer: l, RefPath: refPath}

		commitOID, err := s.ResolveRef(refPath)
		if err != nil {
			m.Entries = append(m.Entries, entry)
			continue
		}
		entry.CommitOID = commitOID

		treeOID, err := s.CommitTree(commitOID)
		if err != nil {
			return nil, err
		}
		walked, err := s.WalkTree(treeOID)
		if err != nil {
			return nil, err
		}
		for _, w := range walked {
			entry.Files = append(entry.Files, w.Path)
		}
		m.Entries = append(m.Entries, entry)
	}
	return m, nil
}

// ContributorsOf returns every layer in m that lists path among its
// Files, in the order they appear in the map (ascending precedence,
// per Regenerate's walk order).
func (m *Map) ContributorsOf(path string) []layer.Layer {
	var out []layer.Layer
	for _, e := range m.Entries {
		for _, f := range e.Files {
			if f == path {
				out = append(out, e.Layer)
				break
			}
		}
	}
	return out
}

// Save atomically writes the map to .jin/.jinmap under root.
func Save(root string, m *Map) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return jinerr.Wrap(jinerr.KindIO, "jinmap.Save", "", err)
	}
	dir := workspace.Dir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return jinerr.Wrap(jinerr.KindIO, "jinmap.Save", dir, err)
	}
	path := filepath.Join(dir, FileName)
	tmp, err := os.CreateTemp(dir, ".jinmap-*.tmp")
	if err != nil {
		return jinerr.Wrap(jinerr.KindIO, "jinmap.Save", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return jinerr.Wrap(jinerr.KindIO, "jinmap.Save", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return jinerr.Wrap(jinerr.KindIO, "jinmap.Save", path, err)
	}
	if err := tmp.Close(); err != nil {
		return jinerr.Wrap(jinerr.KindIO, "jinmap.Save", path, err)
	}
	return os.Rename(tmpPath, path)
}

// Load reads .jin/.jinmap under root. A missing file yields an empty
// Map rather than an error.
func Load(root string) (*Map, error) {
	path := filepath.Join(workspace.Dir(root), FileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Map{}, nil
	}
	if err != nil {
		return nil, jinerr.Wrap(jinerr.KindIO, "jinmap.Load", path, err)
	}
	var m Map
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, jinerr.Wrap(jinerr.KindParseError, "jinmap.Load", path, err)
	}
	return &m, nil
}
