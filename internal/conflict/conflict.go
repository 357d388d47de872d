// Package conflict manages the paused-apply state: the set of
// .jinmerge sidecar files apply leaves behind for paths it could not
// cleanly merge, and the resolve/continue/abort workflow that clears
// them. Persistence follows the same atomic-rename idiom used
// throughout the workspace package.
package conflict

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dabstractor/jin-sub008/internal/commitpipeline"
	"github.com/dabstractor/jin-sub008/internal/jinerr"
	"github.com/dabstractor/jin-sub008/internal/layer"
	mergetext "github.com/dabstractor/jin-sub008/internal/merge/text"
	"github.com/dabstractor/jin-sub008/internal/store"
	"github.com/dabstractor/jin-sub008/internal/txn"
	"github.com/dabstractor/jin-sub008/internal/workspace"
	"gopkg.in/yaml.v3"
)

// Sidecar suffix for a conflicted path's marker-bearing working copy.
const SidecarSuffix = ".jinmerge"

// PausedFile is one path apply could not merge cleanly.
type PausedFile struct {
	Path        string `yaml:"path"`
	OursLabel   string `yaml:"ours_label"`
	TheirsLabel string `yaml:"theirs_label"`
	Regions     int    `yaml:"regions"`
}

// Kind distinguishes which operation left the paused record behind,
// since apply and pull both pause on conflict but pull has extra
// cleanup (advancing layer refs) to perform on --continue.
type Kind string

const (
	KindApply Kind = "apply"
	KindPull  Kind = "pull"
)

// PendingLayerMerge holds everything a paused pull needs to finish
// building one layer's merge commit once every conflicted path in it
// has been resolved: the blobs already merged cleanly, and the paths
// still waiting on a resolved workspace file.
type PendingLayerMerge struct {
	RefPath       string            `yaml:"ref_path"`
	OldOID        string            `yaml:"old_oid"`
	RemoteOID     string            `yaml:"remote_oid"`
	CleanBlobs    map[string]string `yaml:"clean_blobs"`
	ConflictPaths []string          `yaml:"conflict_paths"`
}

// PausedOperation is the single outstanding paused apply/pull for a
// workspace. Only one can be outstanding at a time: a fresh `jin
// apply` refuses to start while one exists: an apply must finish or
// be resolved before another begins.
type PausedOperation struct {
	Kind      Kind          `yaml:"kind"`
	StartedAt time.Time     `yaml:"started_at"`
	Context   layer.Context `yaml:"context"`
	Conflicts []PausedFile  `yaml:"conflicts"`
	// PendingLayerMerges holds, for a paused pull, the per-layer merge
	// state needed to finish building each affected layer's merge
	// commit once every conflict is resolved: continuing a paused pull
	// also advances the affected layer references from the fetched
	// commits.
	PendingLayerMerges []PendingLayerMerge `yaml:"pending_layer_merges,omitempty"`
}

// pausedPath returns the Kind-specific paused-operation path: apply and
// pull each get their own file so the two never collide, even though
// only one can be outstanding at a time in practice.
func pausedPath(root string, kind Kind) string {
	name := ".paused_apply.yaml"
	if kind == KindPull {
		name = ".paused_pull.yaml"
	}
	return filepath.Join(workspace.Dir(root), name)
}

func pausedCandidates(root string) []string {
	return []string{pausedPath(root, KindApply), pausedPath(root, KindPull)}
}

func sidecarPath(root, relPath string) string {
	return filepath.Join(root, relPath+SidecarSuffix)
}

// Load reads the outstanding paused operation (checking both the apply
// and pull paths, since only one can exist at a time), or nil if none
// exists.
func Load(root string) (*PausedOperation, error) {
	var path string
	var data []byte
	for _, candidate := range pausedCandidates(root) {
		d, err := os.ReadFile(candidate)
		if err == nil {
			path, data = candidate, d
			break
		}
		if !os.IsNotExist(err) {
			return nil, jinerr.Wrap(jinerr.KindIO, "conflict.Load", candidate, err)
		}
	}
	if data == nil {
		return nil, nil
	}
	var p PausedOperation
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, jinerr.Wrap(jinerr.KindParseError, "conflict.Load", path, err)
	}
	return &p, nil
}

// Save atomically persists the paused operation.
func Save(root string, p *PausedOperation) error {
	dir := workspace.Dir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return jinerr.Wrap(jinerr.KindIO, "conflict.Save", dir, err)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return jinerr.Wrap(jinerr.KindIO, "conflict.Save", "", err)
	}
	path := pausedPath(root, p.Kind)
	tmp, err := os.CreateTemp(dir, ".paused-*.tmp")
	if err != nil {
		return jinerr.Wrap(jinerr.KindIO, "conflict.Save", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return jinerr.Wrap(jinerr.KindIO, "conflict.Save", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return jinerr.Wrap(jinerr.KindIO, "conflict.Save", path, err)
	}
	if err := tmp.Close(); err != nil {
		return jinerr.Wrap(jinerr.KindIO, "conflict.Save", path, err)
	}
	return os.Rename(tmpPath, path)
}

// Clear removes the paused operation record (but not any remaining
// .jinmerge sidecars, callers that resolve per-file clean those up
// individually).
func Clear(root string) error {
	for _, path := range pausedCandidates(root) {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return jinerr.Wrap(jinerr.KindIO, "conflict.Clear", path, err)
		}
	}
	return nil
}

// WriteSidecar writes the marker-bearing text for a conflicted path
// to its .jinmerge sidecar (the real workspace path is left
// untouched, preserving the last known-good content).
func WriteSidecar(root, relPath, markerText string) error {
	path := sidecarPath(root, relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return jinerr.Wrap(jinerr.KindIO, "conflict.WriteSidecar", path, err)
	}
	if err := os.WriteFile(path, []byte(markerText), 0o644); err != nil {
		return jinerr.Wrap(jinerr.KindIO, "conflict.WriteSidecar", path, err)
	}
	return nil
}

// Resolve reads relPath's .jinmerge sidecar, verifies no conflict
// markers remain, and, if clean, copies the resolved content onto
// the real workspace path, removes the sidecar, and drops the path
// from the paused operation. The paused record stays on disk even when
// no conflicts are left, until Continue or Abort removes it; done
// reports whether none are left.
func Resolve(root, relPath string) (done bool, err error) {
	p, err := Load(root)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, jinerr.New(jinerr.KindInvalidUsage, "conflict.Resolve", relPath)
	}

	idx := -1
	for i, c := range p.Conflicts {
		if c.Path == relPath {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false, jinerr.New(jinerr.KindInvalidUsage, "conflict.Resolve", relPath)
	}

	sc := sidecarPath(root, relPath)
	data, err := os.ReadFile(sc)
	if err != nil {
		return false, jinerr.Wrap(jinerr.KindIO, "conflict.Resolve", sc, err)
	}
	regions, err := mergetext.ParseRegions(string(data))
	if err != nil {
		return false, jinerr.Wrap(jinerr.KindUnresolvedMarkers, "conflict.Resolve", relPath, err)
	}
	if len(regions) > 0 {
		return false, jinerr.New(jinerr.KindUnresolvedMarkers, "conflict.Resolve", relPath)
	}

	target := filepath.Join(root, relPath)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return false, jinerr.Wrap(jinerr.KindIO, "conflict.Resolve", target, err)
	}
	if err := os.Remove(sc); err != nil && !os.IsNotExist(err) {
		return false, jinerr.Wrap(jinerr.KindIO, "conflict.Resolve", sc, err)
	}

	p.Conflicts = append(p.Conflicts[:idx], p.Conflicts[idx+1:]...)
	if err := Save(root, p); err != nil {
		return false, err
	}
	return len(p.Conflicts) == 0, nil
}

// Continue implements `resolve --continue`: requires every conflict to
// already be resolved (Load's Conflicts empty), and, for a paused pull,
// finishes the operation by writing each pending layer's merge commit
// (parents: the local and the fetched commit) and advancing every
// pending layer ref to it through a single transaction, exactly as a
// normal commit would (§4.9). It then removes the paused record.
// Continue deletes no .jinmerge file itself; Resolve removes each
// sidecar as its path is resolved.
func Continue(root string, s *store.Store, mgr *txn.Manager) error {
	p, err := Load(root)
	if err != nil {
		return err
	}
	if p == nil {
		return jinerr.New(jinerr.KindInvalidUsage, "conflict.Continue", "")
	}
	if len(p.Conflicts) > 0 {
		return jinerr.New(jinerr.KindUnresolvedMarkers, "conflict.Continue", "")
	}

	if p.Kind == KindPull && len(p.PendingLayerMerges) > 0 {
		var updates []txn.RefUpdate
		for _, pm := range p.PendingLayerMerges {
			blobs := make(map[string]string, len(pm.CleanBlobs)+len(pm.ConflictPaths))
			for path, oid := range pm.CleanBlobs {
				blobs[path] = oid
			}
			for _, path := range pm.ConflictPaths {
				data, err := os.ReadFile(filepath.Join(root, path))
				if err != nil {
					return jinerr.Wrap(jinerr.KindIO, "conflict.Continue", path, err)
				}
				oid, err := s.WriteBlob(data)
				if err != nil {
					return err
				}
				blobs[path] = oid
			}
			treeOID, err := commitpipeline.BuildTree(s, blobs)
			if err != nil {
				return err
			}
			commitOID, err := s.WriteCommit(store.CommitOpts{
				Tree:    treeOID,
				Parents: []string{pm.OldOID, pm.RemoteOID},
				Message: fmt.Sprintf("jin pull: resolve conflicts in %s", pm.RefPath),
				Author:  "jin <jin@localhost>",
			})
			if err != nil {
				return err
			}
			updates = append(updates, txn.RefUpdate{RefName: pm.RefPath, OldOID: pm.OldOID, NewOID: commitOID})
		}
		log, err := mgr.Begin(updates)
		if err != nil {
			return err
		}
		if err := mgr.Prepare(log); err != nil {
			_ = mgr.Discard(log)
			return err
		}
		if err := mgr.Commit(log); err != nil {
			_ = mgr.Discard(log)
			return err
		}
	}

	return Clear(root)
}

// Abort discards the paused operation and all outstanding .jinmerge
// sidecars without touching any already-merged path apply wrote. A
// conflicted path's real workspace file is never written by apply in
// the first place (only its .jinmerge sidecar is) so it is already at
// its pre-apply state; Abort only needs to remove the sidecar.
func Abort(root string) error {
	p, err := Load(root)
	if err != nil {
		return err
	}
	if p == nil {
		return jinerr.New(jinerr.KindInvalidUsage, "conflict.Abort", "")
	}
	for _, c := range p.Conflicts {
		sc := sidecarPath(root, c.Path)
		if err := os.Remove(sc); err != nil && !os.IsNotExist(err) {
			return jinerr.Wrap(jinerr.KindIO, "conflict.Abort", sc, err)
		}
	}
	return Clear(root)
}
