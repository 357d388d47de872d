// Package repair walks the layer reference namespace for integrity
// problems, checks workspace metadata against on-disk content, and
// unconditionally regenerates .jinmap. The on-disk jinmap is always an
// optimization, never a source of truth, so repair never trusts it,
// only rebuilds it.
//
// The report is a result struct carrying counts plus a flat list of
// problem strings.
package repair

import (
	"fmt"

	"github.com/dabstractor/jin-sub008/internal/jinerr"
	"github.com/dabstractor/jin-sub008/internal/jinmap"
	"github.com/dabstractor/jin-sub008/internal/layer"
	"github.com/dabstractor/jin-sub008/internal/store"
	"github.com/dabstractor/jin-sub008/internal/txn"
	"github.com/dabstractor/jin-sub008/internal/workspace"
)

// Report is the structured outcome of one repair run.
type Report struct {
	RefsChecked       int
	BlobsChecked      int
	TransactionsUndone int
	JinMapRegenerated bool
	WorkspaceOK       bool
	Problems          []string
}

// HasProblems reports whether anything repair couldn't fix outright.
func (r *Report) HasProblems() bool { return len(r.Problems) > 0 }

// Run walks every layer reference, verifies each resolves to a
// well-formed commit whose tree's blobs are all present, recovers any
// transaction log left in a non-terminal state, checks workspace
// metadata against on-disk content, and regenerates .jinmap
// unconditionally.
func Run(root string, s *store.Store, mgr *txn.Manager, ctx *layer.Context) (*Report, error) {
	report := &Report{}

	recovered, err := mgr.Recover()
	if err != nil {
		report.Problems = append(report.Problems, fmt.Sprintf("transaction recovery: %v", err))
	}
	report.TransactionsUndone = len(recovered)

	refs, err := s.ListRefs(layer.RefRoot)
	if err != nil {
		report.Problems = append(report.Problems, fmt.Sprintf("list refs: %v", err))
	}

	for _, ref := range refs {
		report.RefsChecked++
		commitOID, err := s.ResolveRef(ref)
		if err != nil {
			report.Problems = append(report.Problems, fmt.Sprintf("%s: ref does not resolve: %v", ref, err))
			continue
		}
		treeOID, err := s.CommitTree(commitOID)
		if err != nil {
			report.Problems = append(report.Problems, fmt.Sprintf("%s: commit %s has no tree: %v", ref, commitOID, err))
			continue
		}
		entries, err := s.WalkTree(treeOID)
		if err != nil {
			report.Problems = append(report.Problems, fmt.Sprintf("%s: tree %s malformed: %v", ref, treeOID, err))
			continue
		}
		for _, e := range entries {
			report.BlobsChecked++
			if _, err := s.ReadBlob(e.OID); err != nil {
				report.Problems = append(report.Problems, fmt.Sprintf("%s: blob %s (%s) missing: %v", ref, e.OID, e.Path, err))
			}
		}
		if _, _, _, _, ok := layer.ParseRefPath(ref); !ok {
			report.Problems = append(report.Problems, fmt.Sprintf("%s: does not parse as a layer reference", ref))
		}
	}

	report.WorkspaceOK = true
	if meta, err := workspace.LoadMetadata(root); err != nil {
		report.Problems = append(report.Problems, fmt.Sprintf("workspace metadata: %v", err))
		report.WorkspaceOK = false
	} else {
		dirty, err := workspace.Dirty(root, meta)
		if err != nil {
			report.Problems = append(report.Problems, fmt.Sprintf("workspace dirty check: %v", err))
			report.WorkspaceOK = false
		} else if len(dirty) > 0 {
			for _, p := range dirty {
				report.Problems = append(report.Problems, fmt.Sprintf("workspace file %s diverges from last applied metadata", p))
			}
			report.WorkspaceOK = false
		}
	}

	if ctx != nil {
		m, err := jinmap.Regenerate(s, ctx)
		if err != nil {
			report.Problems = append(report.Problems, fmt.Sprintf("jinmap regenerate: %v", err))
		} else if err := jinmap.Save(root, m); err != nil {
			report.Problems = append(report.Problems, fmt.Sprintf("jinmap save: %v", err))
		} else {
			report.JinMapRegenerated = true
		}
	}

	return report, nil
}

// ExitError wraps a Report with unresolved problems into the general
// (exit code 1) error the CLI surfaces, per SPEC_FULL's `jin repair`
// CLI contract.
func ExitError(r *Report) error {
	if !r.HasProblems() {
		return nil
	}
	return jinerr.New(jinerr.KindIO, "repair.Run", fmt.Sprintf("%d unresolved problem(s)", len(r.Problems)))
}
