// Package remote defines the narrow transport boundary the core
// drives for layer synchronization, and the pull operation that
// composes a fetch with a per-layer three-way merge. Credential and
// TLS negotiation are left to the Transport implementation; this
// package only decides what is fetched/pushed and how the result is
// folded into the layer reference namespace.
//
// Transport's shape and the os/exec "git fetch"/"git push" plumbing
// behind GitTransport are grounded on internal/vcs/git/remote.go's
// Fetch/Pull/Push (exec.CommandContext, cmd.Dir, CombinedOutput,
// string-matching known failure modes), generalized from one branch
// ref to the layer refspec.
package remote

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"github.com/dabstractor/jin-sub008/internal/commitpipeline"
	"github.com/dabstractor/jin-sub008/internal/conflict"
	"github.com/dabstractor/jin-sub008/internal/jinerr"
	"github.com/dabstractor/jin-sub008/internal/layer"
	mergetext "github.com/dabstractor/jin-sub008/internal/merge/text"
	"github.com/dabstractor/jin-sub008/internal/store"
	"github.com/dabstractor/jin-sub008/internal/txn"
)

// FetchSpec is the fixed refspec a plain mirror fetch/push uses.
const FetchSpec = "+" + layer.RefRoot + "/*:" + layer.RefRoot + "/*"

// Transport is the narrow interface the core drives; credential and
// TLS negotiation live entirely behind an implementation of it.
type Transport interface {
	// Fetch runs one refspec against the remote and returns every
	// destination ref it updated, mapped to its new oid.
	Fetch(refspec string) (map[string]string, error)
	// Push runs one refspec against the remote.
	Push(refspec string) error
}

// GitTransport implements Transport by shelling out to the git binary
// against the object store's own bare repository.
type GitTransport struct {
	GitDir    string
	RemoteURL string
}

func (t *GitTransport) run(args ...string) ([]byte, error) {
	full := append([]string{"--git-dir=" + t.GitDir}, args...)
	cmd := exec.Command("git", full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("git %s: %w\n%s", strings.Join(args, " "), err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// Fetch runs `git fetch <remote> <refspec>` then reads back every ref
// under the refspec's destination pattern.
func (t *GitTransport) Fetch(refspec string) (map[string]string, error) {
	if _, err := t.run("fetch", t.RemoteURL, refspec); err != nil {
		return nil, jinerr.Wrap(jinerr.KindRemoteUnreachable, "remote.Fetch", t.RemoteURL, err)
	}
	dstPattern := destPattern(refspec)
	out, err := t.run("for-each-ref", "--format=%(refname) %(objectname)", dstPattern)
	if err != nil {
		return nil, jinerr.Wrap(jinerr.KindIO, "remote.Fetch", dstPattern, err)
	}
	result := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		result[fields[0]] = fields[1]
	}
	return result, nil
}

// Push runs `git push <remote> <refspec>`.
func (t *GitTransport) Push(refspec string) error {
	if _, err := t.run("push", t.RemoteURL, refspec); err != nil {
		return jinerr.Wrap(jinerr.KindRemoteUnreachable, "remote.Push", t.RemoteURL, err)
	}
	return nil
}

// destPattern extracts the glob-stripped prefix of a refspec's
// destination side, e.g. "+refs/a/*:refs/b/*" -> "refs/b".
func destPattern(refspec string) string {
	refspec = strings.TrimPrefix(refspec, "+")
	parts := strings.SplitN(refspec, ":", 2)
	dst := refspec
	if len(parts) == 2 {
		dst = parts[1]
	}
	return strings.TrimSuffix(dst, "/*")
}

// PullResult summarizes one pull: layers fast-forwarded or cleanly
// merged advance immediately; layers with unresolved conflicts are
// left pending behind a PausedOperation for `resolve --continue`.
type PullResult struct {
	Advanced      []string // ref paths updated immediately
	Pending       []string // ref paths awaiting conflict resolution
	ConflictFiles []string // workspace-relative paths with .jinmerge sidecars
}

// Pull fetches every layer ref from remoteName into a private shadow
// namespace, then for each layer applicable to ctx: adopts the remote
// commit if the layer has no local history or the local commit is an
// ancestor of it (fast-forward), three-way merges the two histories
// (base = store.MergeBase) when they diverged, and for any path that
// merge can't resolve cleanly writes a `.jinmerge` sidecar and defers
// that layer's ref update until `resolve --continue` finishes it.
func Pull(s *store.Store, t Transport, mgr *txn.Manager, root, remoteName string, ctx *layer.Context) (*PullResult, error) {
	if existing, err := conflict.Load(root); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, jinerr.New(jinerr.KindMergeConflict, "remote.Pull", "unresolved conflicts from a previous apply or pull")
	}

	shadowPrefix := fmt.Sprintf("refs/jin/remote/%s/layers", remoteName)
	refspec := fmt.Sprintf("+%s/*:%s/*", layer.RefRoot, shadowPrefix)
	fetched, err := t.Fetch(refspec)
	if err != nil {
		return nil, err
	}

	res := &PullResult{}
	var updates []txn.RefUpdate
	var pendingMerges []conflict.PendingLayerMerge
	var pausedFiles []conflict.PausedFile

	for _, l := range ctx.ApplicableLayers() {
		localRef, err := ctx.RefPath(l)
		if err != nil {
			return nil, err
		}
		shadowRef := strings.Replace(localRef, layer.RefRoot, shadowPrefix, 1)
		remoteOID, haveRemote := fetched[shadowRef]
		if !haveRemote {
			continue
		}
		localOID, localErr := s.ResolveRef(localRef)

		switch {
		case localErr != nil:
			updates = append(updates, txn.RefUpdate{RefName: localRef, OldOID: "", NewOID: remoteOID})
			res.Advanced = append(res.Advanced, localRef)
		case localOID == remoteOID:
			// already in sync
		default:
			if ff, _ := s.IsAncestor(localOID, remoteOID); ff {
				updates = append(updates, txn.RefUpdate{RefName: localRef, OldOID: localOID, NewOID: remoteOID})
				res.Advanced = append(res.Advanced, localRef)
				break
			}

			merge, err := mergeLayer(s, root, l, localRef, localOID, remoteOID)
			if err != nil {
				return nil, err
			}
			if len(merge.Conflicts) == 0 {
				treeOID, err := commitpipeline.BuildTree(s, merge.CleanBlobs)
				if err != nil {
					return nil, err
				}
				commitOID, err := s.WriteCommit(store.CommitOpts{
					Tree:    treeOID,
					Parents: []string{localOID, remoteOID},
					Message: fmt.Sprintf("jin pull: merge %s from %s", l, remoteName),
					Author:  "jin <jin@localhost>",
				})
				if err != nil {
					return nil, err
				}
				updates = append(updates, txn.RefUpdate{RefName: localRef, OldOID: localOID, NewOID: commitOID})
				res.Advanced = append(res.Advanced, localRef)
				continue
			}

			for path, cf := range merge.Conflicts {
				if err := conflict.WriteSidecar(root, path, cf.MarkerText); err != nil {
					return nil, err
				}
				pausedFiles = append(pausedFiles, conflict.PausedFile{
					Path:        path,
					OursLabel:   cf.OursLabel,
					TheirsLabel: cf.TheirsLabel,
					Regions:     cf.Regions,
				})
				res.ConflictFiles = append(res.ConflictFiles, path)
			}
			pendingMerges = append(pendingMerges, conflict.PendingLayerMerge{
				RefPath:       localRef,
				OldOID:        localOID,
				RemoteOID:     remoteOID,
				CleanBlobs:    merge.CleanBlobs,
				ConflictPaths: merge.ConflictPaths,
			})
			res.Pending = append(res.Pending, localRef)
		}
	}

	if len(updates) > 0 {
		log, err := mgr.Begin(updates)
		if err != nil {
			return nil, err
		}
		if err := mgr.Prepare(log); err != nil {
			_ = mgr.Discard(log)
			return nil, err
		}
		if err := mgr.Commit(log); err != nil {
			_ = mgr.Discard(log)
			return nil, err
		}
	}

	if len(pendingMerges) > 0 {
		paused := &conflict.PausedOperation{
			Kind:               conflict.KindPull,
			Context:            *ctx,
			Conflicts:          pausedFiles,
			PendingLayerMerges: pendingMerges,
		}
		if err := conflict.Save(root, paused); err != nil {
			return nil, err
		}
	}

	return res, nil
}

type layerMerge struct {
	CleanBlobs    map[string]string
	ConflictPaths []string
	Conflicts     map[string]conflictInfo
}

type conflictInfo struct {
	MarkerText  string
	OursLabel   string
	TheirsLabel string
	Regions     int
}

// mergeLayer three-way merges localOID and remoteOID's trees for
// layer l using their common ancestor (store.MergeBase) as base, one
// file at a time via the text-merge engine. Pull always has a genuine
// base commit, unlike apply's layer composition, so the three-way
// engine applies directly rather than as a fallback.
func mergeLayer(s *store.Store, root string, l layer.Layer, refPath, localOID, remoteOID string) (*layerMerge, error) {
	baseOID, _ := s.MergeBase(localOID, remoteOID)

	baseFiles := treeFiles(s, baseOID)
	localTreeOID, err := s.CommitTree(localOID)
	if err != nil {
		return nil, err
	}
	remoteTreeOID, err := s.CommitTree(remoteOID)
	if err != nil {
		return nil, err
	}
	localFiles := treeFilesFromTree(s, localTreeOID)
	remoteFiles := treeFilesFromTree(s, remoteTreeOID)

	paths := map[string]bool{}
	for p := range baseFiles {
		paths[p] = true
	}
	for p := range localFiles {
		paths[p] = true
	}
	for p := range remoteFiles {
		paths[p] = true
	}

	result := &layerMerge{CleanBlobs: map[string]string{}, Conflicts: map[string]conflictInfo{}}

	for path := range paths {
		baseOID2, inBase := baseFiles[path]
		localOID2, inLocal := localFiles[path]
		remoteOID2, inRemote := remoteFiles[path]

		if inLocal && inRemote && localOID2 == remoteOID2 {
			result.CleanBlobs[path] = localOID2
			continue
		}
		if inLocal && !inRemote && inBase && localOID2 == baseOID2 {
			continue // remote deleted it, local left it unchanged: honor the delete
		}
		if inRemote && !inLocal && inBase && remoteOID2 == baseOID2 {
			continue // local deleted it, remote left it unchanged: honor the delete
		}
		if inLocal && !inRemote && !inBase {
			result.CleanBlobs[path] = localOID2
			continue
		}
		if inRemote && !inLocal && !inBase {
			result.CleanBlobs[path] = remoteOID2
			continue
		}
		if inBase && !inLocal && !inRemote {
			continue // both deleted it
		}

		var baseData, localData, remoteData []byte
		if inBase {
			baseData, _ = s.ReadBlob(baseOID2)
		}
		if inLocal {
			localData, _ = s.ReadBlob(localOID2)
		} else {
			localData = nil
		}
		if inRemote {
			remoteData, _ = s.ReadBlob(remoteOID2)
		}

		mr := mergetext.Merge(string(baseData), string(localData), string(remoteData), refPath, refPath+" (remote)")
		if mr.Clean {
			blobOID, err := s.WriteBlob([]byte(mr.Text))
			if err != nil {
				return nil, err
			}
			result.CleanBlobs[path] = blobOID
			continue
		}

		result.ConflictPaths = append(result.ConflictPaths, path)
		result.Conflicts[path] = conflictInfo{
			MarkerText:  mr.Text,
			OursLabel:   refPath,
			TheirsLabel: refPath + " (remote)",
			Regions:     len(mr.Regions),
		}
	}

	return result, nil
}

func treeFiles(s *store.Store, commitOID string) map[string]string {
	if commitOID == "" {
		return map[string]string{}
	}
	treeOID, err := s.CommitTree(commitOID)
	if err != nil {
		return map[string]string{}
	}
	return treeFilesFromTree(s, treeOID)
}

func treeFilesFromTree(s *store.Store, treeOID string) map[string]string {
	entries, err := s.WalkTree(treeOID)
	if err != nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Path] = e.OID
	}
	return out
}
