// Package apply composes every layer applicable to the current
// context into the workspace, merging each contended path by format
// where possible and falling back to the text engine otherwise: it
// folds N layers' trees through deep merge into one workspace.
package apply

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dabstractor/jin-sub008/internal/conflict"
	"github.com/dabstractor/jin-sub008/internal/jinerr"
	"github.com/dabstractor/jin-sub008/internal/layer"
	mergetext "github.com/dabstractor/jin-sub008/internal/merge/text"
	"github.com/dabstractor/jin-sub008/internal/merge/structured"
	"github.com/dabstractor/jin-sub008/internal/store"
	"github.com/dabstractor/jin-sub008/internal/workspace"
)

// contribution is one layer's version of a path, in ascending
// precedence order within a Plan's per-path list.
type contribution struct {
	Layer   layer.Layer
	RefPath string
	Data    []byte
}

// Plan is the result of composing every applicable layer for a
// context, before anything is written to disk.
type Plan struct {
	Clean     map[string]resolvedFile // path -> merged content + contributing layers
	Conflicts map[string]conflictFile // path -> unresolved conflict
	LayerRefs map[string]string       // ref path -> commit oid, as observed during planning
}

type resolvedFile struct {
	Data   []byte
	Layers []layer.Layer
}

type conflictFile struct {
	MarkerText  string
	OursLabel   string
	TheirsLabel string
	Regions     int
}

// BuildPlan composes ctx's applicable layers against s without touching
// the workspace.
func BuildPlan(s *store.Store, ctx *layer.Context) (*Plan, error) {
	layers := ctx.ApplicableLayers()
	byPath := map[string][]contribution{}
	layerRefs := map[string]string{}

	for _, l := range layers {
		refPath, err := ctx.RefPath(l)
		if err != nil {
			return nil, err
		}
		commitOID, err := s.ResolveRef(refPath)
		if err != nil {
			continue // layer never committed to: contributes nothing
		}
		layerRefs[refPath] = commitOID

		treeOID, err := s.CommitTree(commitOID)
		if err != nil {
			return nil, err
		}
		entries, err := s.WalkTree(treeOID)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			data, err := s.ReadBlob(e.OID)
			if err != nil {
				return nil, err
			}
			byPath[e.Path] = append(byPath[e.Path], contribution{Layer: l, RefPath: refPath, Data: data})
		}
	}

	plan := &Plan{
		Clean:     map[string]resolvedFile{},
		Conflicts: map[string]conflictFile{},
		LayerRefs: layerRefs,
	}

	paths := make([]string, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		contribs := byPath[path]
		if len(contribs) == 1 {
			plan.Clean[path] = resolvedFile{Data: contribs[0].Data, Layers: []layer.Layer{contribs[0].Layer}}
			continue
		}

		merged, layers, cf, err := mergePath(path, contribs)
		if err != nil {
			return nil, err
		}
		if cf != nil {
			plan.Conflicts[path] = *cf
			continue
		}
		plan.Clean[path] = resolvedFile{Data: merged, Layers: layers}
	}

	return plan, nil
}

func mergePath(path string, contribs []contribution) ([]byte, []layer.Layer, *conflictFile, error) {
	format := structured.DetectFormat(path, contribs[0].Data)
	if format != structured.FormatUnknown {
		cs := make([]structured.Contribution, len(contribs))
		sameFormat := true
		for i, c := range contribs {
			f := structured.DetectFormat(path, c.Data)
			if f != format {
				sameFormat = false
				break
			}
			cs[i] = structured.Contribution{Format: format, Data: c.Data}
		}
		if sameFormat {
			merged, err := structured.Merge(cs)
			if err == nil {
				ls := make([]layer.Layer, len(contribs))
				for i, c := range contribs {
					ls[i] = c.Layer
				}
				return merged, ls, nil, nil
			}
		}
	}

	// Text fallback: only the two highest-precedence contending layers
	// participate, matching override semantics for everything text
	// merge doesn't understand structurally.
	ours := contribs[len(contribs)-2]
	theirs := contribs[len(contribs)-1]
	result := mergetext.Merge("", string(ours.Data), string(theirs.Data), ours.RefPath, theirs.RefPath)
	if result.Clean {
		return []byte(result.Text), []layer.Layer{ours.Layer, theirs.Layer}, nil, nil
	}
	return nil, nil, &conflictFile{
		MarkerText:  result.Text,
		OursLabel:   ours.RefPath,
		TheirsLabel: theirs.RefPath,
		Regions:     len(result.Regions),
	}, nil
}

// Options controls how Execute writes a plan to disk.
type Options struct {
	DryRun bool
	Force  bool
}

// Execute writes a Plan's clean files atomically to root, writes
// .jinmerge sidecars for conflicts, persists workspace metadata and
// any paused operation, and returns the set of paths in each
// category. force only suppresses the pre-existing-dirty-workspace
// check; it never bypasses conflict pausing.
func Execute(root string, ctx *layer.Context, plan *Plan, opts Options) (mergedFiles, conflictFiles []string, err error) {
	if existing, err := conflict.Load(root); err != nil {
		return nil, nil, err
	} else if existing != nil {
		return nil, nil, jinerr.New(jinerr.KindMergeConflict, "apply.Execute", "unresolved conflicts from a previous apply")
	}

	meta, err := workspace.LoadMetadata(root)
	if err != nil {
		return nil, nil, err
	}
	if !opts.Force {
		dirty, err := workspace.Dirty(root, meta)
		if err != nil {
			return nil, nil, err
		}
		if len(dirty) > 0 {
			return nil, nil, jinerr.New(jinerr.KindWorkspaceDirty, "apply.Execute", dirty[0])
		}
	}

	if opts.DryRun {
		for p := range plan.Clean {
			mergedFiles = append(mergedFiles, p)
		}
		for p := range plan.Conflicts {
			conflictFiles = append(conflictFiles, p)
		}
		sort.Strings(mergedFiles)
		sort.Strings(conflictFiles)
		return mergedFiles, conflictFiles, nil
	}

	newMeta := &workspace.Metadata{
		AppliedAt: time.Now(),
		Context:   *ctx,
		LayerRefs: plan.LayerRefs,
		Files:     map[string]workspace.FileRecord{},
	}

	for path, rf := range plan.Clean {
		if err := writeFileAtomic(root, path, rf.Data); err != nil {
			return nil, nil, err
		}
		hash, err := workspace.HashFile(root, path)
		if err != nil {
			return nil, nil, err
		}
		newMeta.Files[path] = workspace.FileRecord{ContentHash: hash, Layers: rf.Layers}
		mergedFiles = append(mergedFiles, path)
	}

	var paused *conflict.PausedOperation
	if len(plan.Conflicts) > 0 {
		paused = &conflict.PausedOperation{Kind: conflict.KindApply, StartedAt: time.Now(), Context: *ctx}
		for path, cf := range plan.Conflicts {
			if err := conflict.WriteSidecar(root, path, cf.MarkerText); err != nil {
				return nil, nil, err
			}
			paused.Conflicts = append(paused.Conflicts, conflict.PausedFile{
				Path:        path,
				OursLabel:   cf.OursLabel,
				TheirsLabel: cf.TheirsLabel,
				Regions:     cf.Regions,
			})
			conflictFiles = append(conflictFiles, path)
		}
		if err := conflict.Save(root, paused); err != nil {
			return nil, nil, err
		}
	}

	if err := workspace.SaveMetadata(root, newMeta); err != nil {
		return nil, nil, err
	}

	sort.Strings(mergedFiles)
	sort.Strings(conflictFiles)
	return mergedFiles, conflictFiles, nil
}

func writeFileAtomic(root, relPath string, data []byte) error {
	target := filepath.Join(root, relPath)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return jinerr.Wrap(jinerr.KindIO, "apply.writeFileAtomic", target, err)
	}
	tmp, err := os.CreateTemp(dir, ".jin-apply-*.tmp")
	if err != nil {
		return jinerr.Wrap(jinerr.KindIO, "apply.writeFileAtomic", target, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return jinerr.Wrap(jinerr.KindIO, "apply.writeFileAtomic", target, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return jinerr.Wrap(jinerr.KindIO, "apply.writeFileAtomic", target, err)
	}
	if err := tmp.Close(); err != nil {
		return jinerr.Wrap(jinerr.KindIO, "apply.writeFileAtomic", target, err)
	}
	return os.Rename(tmpPath, target)
}
