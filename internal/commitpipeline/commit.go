// Package commitpipeline turns a staging index into one or more
// per-layer commits and updates every touched layer ref as a single
// transaction.
package commitpipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dabstractor/jin-sub008/internal/audit"
	"github.com/dabstractor/jin-sub008/internal/jinerr"
	"github.com/dabstractor/jin-sub008/internal/jinmap"
	"github.com/dabstractor/jin-sub008/internal/layer"
	"github.com/dabstractor/jin-sub008/internal/staging"
	"github.com/dabstractor/jin-sub008/internal/store"
	"github.com/dabstractor/jin-sub008/internal/txn"
)

// Result summarizes a completed commit.
type Result struct {
	CommitOIDs     map[string]string // ref path -> new commit oid
	FilesCommitted int
}

// Commit reads every staged file's current content from root,
// verifies it still matches what was staged, writes one commit per
// touched layer, and atomically updates all of their refs through a
// single transaction. On success the staging index is cleared.
// Post-commit effects (jinmap regeneration, audit logging) are
// best-effort and never fail the commit itself. al may be nil, in
// which case audit logging is skipped entirely.
func Commit(root string, s *store.Store, mgr *txn.Manager, ctx *layer.Context, idx *staging.Index, author string, al *audit.Logger) (*Result, error) {
	if idx.Len() == 0 {
		return nil, jinerr.New(jinerr.KindNothingToCommit, "commitpipeline.Commit", "")
	}

	touched := map[layer.Layer]bool{}
	for _, e := range idx.Entries() {
		touched[e.TargetLayer] = true
	}
	layers := make([]layer.Layer, 0, len(touched))
	for l := range touched {
		layers = append(layers, l)
	}
	sort.Slice(layers, func(i, j int) bool { return layers[i] < layers[j] })

	var updates []txn.RefUpdate
	newCommits := map[string]string{}

	for _, l := range layers {
		refPath, err := ctx.RefPath(l)
		if err != nil {
			return nil, err
		}

		oldOID, err := s.ResolveRef(refPath)
		haveOld := err == nil

		files := map[string]string{}
		if haveOld {
			treeOID, err := s.CommitTree(oldOID)
			if err != nil {
				return nil, err
			}
			entries, err := s.WalkTree(treeOID)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				files[e.Path] = e.OID
			}
		}

		for _, e := range idx.EntriesForLayer(l) {
			data, err := os.ReadFile(filepath.Join(root, e.Path))
			if err != nil {
				return nil, jinerr.Wrap(jinerr.KindIO, "commitpipeline.Commit", e.Path, err)
			}
			sum := sha256.Sum256(data)
			if hex.EncodeToString(sum[:]) != e.ContentHash {
				return nil, jinerr.New(jinerr.KindStale, "commitpipeline.Commit", e.Path)
			}
			blobOID, err := s.WriteBlob(data)
			if err != nil {
				return nil, err
			}
			files[e.Path] = blobOID
		}

		treeOID, err := buildTree(s, files)
		if err != nil {
			return nil, err
		}

		var parents []string
		if haveOld {
			parents = []string{oldOID}
		}
		commitOID, err := s.WriteCommit(store.CommitOpts{
			Tree:    treeOID,
			Parents: parents,
			Message: fmt.Sprintf("jin commit: %d file(s) to %s", len(idx.EntriesForLayer(l)), l),
			Author:  author,
		})
		if err != nil {
			return nil, err
		}

		old := oldOID
		if !haveOld {
			old = ""
		}
		updates = append(updates, txn.RefUpdate{RefName: refPath, OldOID: old, NewOID: commitOID})
		newCommits[refPath] = commitOID
	}

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

	count := idx.Len()
	idx.Clear()

	result := &Result{CommitOIDs: newCommits, FilesCommitted: count}

	// Best-effort post-commit effects: never fail the commit over these.
	m, err := jinmap.Regenerate(s, ctx)
	if err == nil {
		err = jinmap.Save(root, m)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to update .jinmap: %v\n", err)
	}
	if al != nil {
		al.AppendBestEffort(audit.Record{
			Timestamp:  time.Now(),
			Author:     author,
			FilesCount: count,
			Layers:     newCommits,
		})
	}

	return result, nil
}
