// Package staging tracks pending additions with their target layer,
// content hash, and timestamps, persisting atomically the way the
// teacher persists task/dep files: marshal to JSON, write a temp file
// in the destination directory, then rename over the final path
// (internal/turso/migrate/jsonl.go: WriteTaskFile/WriteDepFile).
package staging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/dabstractor/jin-sub008/internal/jinerr"
	"github.com/dabstractor/jin-sub008/internal/layer"
)

// Entry is one staged change: a file destined for a specific layer.
type Entry struct {
	Path        string    `json:"path"`
	TargetLayer layer.Layer `json:"target_layer"`
	ContentHash string    `json:"content_hash"`
	FormatHint  string    `json:"format_hint,omitempty"`
	Size        int64     `json:"size"`
	AddedAt     time.Time `json:"added_at"`
}

type key struct {
	path string
	l    layer.Layer
}

// Index is an ordered set of staged entries, unique by (path, layer).
type Index struct {
	order   []key
	entries map[key]Entry
}

// New returns an empty staging index.
func New() *Index {
	return &Index{entries: make(map[key]Entry)}
}

// Stage adds or replaces the entry for (path, l). Staging the same
// pair twice replaces the prior entry.
func (idx *Index) Stage(e Entry) error {
	if e.TargetLayer == layer.WorkspaceActive {
		// I1: no entry may target WorkspaceActive directly.
		return jinerr.New(jinerr.KindInvalidLayer, "staging.Stage", e.Path)
	}
	k := key{path: e.Path, l: e.TargetLayer}
	if _, exists := idx.entries[k]; !exists {
		idx.order = append(idx.order, k)
	}
	idx.entries[k] = e
	return nil
}

// Unstage removes the entry for (path, l), if present.
func (idx *Index) Unstage(path string, l layer.Layer) {
	k := key{path: path, l: l}
	if _, exists := idx.entries[k]; !exists {
		return
	}
	delete(idx.entries, k)
	for i, ok := range idx.order {
		if ok == k {
			idx.order = append(idx.order[:i], idx.order[i+1:]...)
			break
		}
	}
}

// Entries returns every staged entry in insertion order.
func (idx *Index) Entries() []Entry {
	out := make([]Entry, 0, len(idx.order))
	for _, k := range idx.order {
		out = append(out, idx.entries[k])
	}
	return out
}

// EntriesForLayer returns the subset of Entries() targeting l.
func (idx *Index) EntriesForLayer(l layer.Layer) []Entry {
	var out []Entry
	for _, k := range idx.order {
		if k.l == l {
			out = append(out, idx.entries[k])
		}
	}
	return out
}

// Clear removes every staged entry.
func (idx *Index) Clear() {
	idx.order = nil
	idx.entries = make(map[key]Entry)
}

// Len reports the number of staged entries.
func (idx *Index) Len() int { return len(idx.order) }

// document is the on-disk JSON representation of the staging index
// (.jin/staging/index.json).
type document struct {
	Entries []Entry `json:"entries"`
}

// Save atomically writes the index to path: serialize, write a temp
// file in path's directory, fsync, then rename over path.
func (idx *Index) Save(path string) error {
	doc := document{Entries: idx.Entries()}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return jinerr.Wrap(jinerr.KindIO, "staging.Save", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return jinerr.Wrap(jinerr.KindIO, "staging.Save", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*.tmp")
	if err != nil {
		return jinerr.Wrap(jinerr.KindIO, "staging.Save", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return jinerr.Wrap(jinerr.KindIO, "staging.Save", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return jinerr.Wrap(jinerr.KindIO, "staging.Save", path, err)
	}
	if err := tmp.Close(); err != nil {
		return jinerr.Wrap(jinerr.KindIO, "staging.Save", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return jinerr.Wrap(jinerr.KindIO, "staging.Save", path, err)
	}
	return nil
}

// Load reads the index from path. A missing file is not an error: it
// yields an empty index.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, jinerr.Wrap(jinerr.KindIO, "staging.Load", path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, jinerr.Wrap(jinerr.KindIO, "staging.Load", path, err)
	}

	idx := New()
	for _, e := range doc.Entries {
		k := key{path: e.Path, l: e.TargetLayer}
		idx.order = append(idx.order, k)
		idx.entries[k] = e
	}
	return idx, nil
}
