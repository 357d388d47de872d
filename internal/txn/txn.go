// Package txn implements the single-slot transaction log a workspace
// uses to update several layer refs as one atomic unit. git's own
// compare-and-swap ref update (internal/store.UpdateRef) is only
// atomic per-ref; this package adds a persisted log so a process that
// dies mid-commit can be recovered on the next run instead of leaving
// refs in a half-updated state.
//
// The on-disk log is guarded by a github.com/gofrs/flock file lock so
// the lock holds across process boundaries. The lock is
// acquired by Prepare and held until whichever of Commit or Rollback
// the caller runs next releases it, so no other process can advance
// one of the transaction's refs in between.
package txn

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dabstractor/jin-sub008/internal/jinerr"
	"github.com/dabstractor/jin-sub008/internal/store"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// State is the transaction's position in the Pending -> Prepared ->
// Committed/Aborted state machine.
type State string

const (
	StatePending   State = "pending"
	StatePrepared  State = "prepared"
	StateCommitted State = "committed"
	StateAborted   State = "aborted"
)

// RefUpdate is one compare-and-swap ref write this transaction will
// perform at commit time.
type RefUpdate struct {
	RefName string `json:"ref_name"`
	OldOID  string `json:"old_oid"` // empty means "must not already exist"
	NewOID  string `json:"new_oid"`
}

// Log is the persisted record of one transaction.
type Log struct {
	ID        string      `json:"id"`
	State     State       `json:"state"`
	Updates   []RefUpdate `json:"updates"`
	CreatedAt time.Time   `json:"created_at"`
	LogPath   string      `json:"-"`

	// lock is held between a successful Prepare and whichever of
	// Commit/Rollback the caller runs next. Never set on a Log loaded
	// from disk by Recover: the process that held it died, so the OS
	// already released the file lock along with it.
	lock *flock.Flock `json:"-"`
}

const (
	jinDirName  = ".jin"
	logFileName = ".transaction_in_progress"
)

func jinDir(root string) string {
	return filepath.Join(root, jinDirName)
}

// logPath is the single on-disk slot for a workspace's in-flight
// transaction: its presence or absence is the whole of whether one is
// outstanding, so only one transaction can be in flight at a time.
func logPath(root string) string {
	return filepath.Join(jinDir(root), logFileName)
}

func lockPath(root string) string {
	return logPath(root) + ".lock"
}

// Manager drives transactions against one object store, persisting
// its log under the given workspace root.
type Manager struct {
	store *store.Store
	root  string
}

func NewManager(s *store.Store, root string) *Manager {
	return &Manager{store: s, root: root}
}

// Begin creates a new Pending transaction with the given ref updates
// and persists its log. It does not touch any ref yet. It fails if a
// transaction is already outstanding for this workspace.
func (m *Manager) Begin(updates []RefUpdate) (*Log, error) {
	path := logPath(m.root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, jinerr.Wrap(jinerr.KindIO, "txn.Begin", filepath.Dir(path), err)
	}
	if _, err := os.Stat(path); err == nil {
		return nil, jinerr.New(jinerr.KindTransactionConflict, "txn.Begin", path)
	} else if !os.IsNotExist(err) {
		return nil, jinerr.Wrap(jinerr.KindIO, "txn.Begin", path, err)
	}
	l := &Log{
		ID:        uuid.NewString(),
		State:     StatePending,
		Updates:   updates,
		CreatedAt: time.Now(),
		LogPath:   path,
	}
	if err := persist(l); err != nil {
		return nil, err
	}
	return l, nil
}

// Prepare acquires the exclusive log lock, validates that every ref
// update's compare-and-swap precondition still holds, then advances
// the log to Prepared. The lock is held past Prepare's own
// return, across into whichever of Commit or Rollback the caller runs
// next, so no other process can advance one of these refs in between.
// Once a transaction is Prepared, Commit must either fully apply it or
// a recovery sweep must resolve it, there is no silent drop.
func (m *Manager) Prepare(l *Log) error {
	fl := flock.New(lockPath(m.root))
	locked, err := fl.TryLock()
	if err != nil {
		return jinerr.Wrap(jinerr.KindIO, "txn.Prepare", lockPath(m.root), err)
	}
	if !locked {
		return jinerr.New(jinerr.KindTransactionConflict, "txn.Prepare", l.ID)
	}

	for _, u := range l.Updates {
		current, err := m.store.ResolveRef(u.RefName)
		switch {
		case err != nil && u.OldOID != "":
			fl.Unlock()
			return jinerr.Wrap(jinerr.KindStale, "txn.Prepare", u.RefName, err)
		case err == nil && u.OldOID == "":
			fl.Unlock()
			return jinerr.New(jinerr.KindStale, "txn.Prepare", u.RefName)
		case err == nil && current != u.OldOID:
			fl.Unlock()
			return jinerr.New(jinerr.KindStale, "txn.Prepare", u.RefName)
		}
	}

	l.State = StatePrepared
	if err := persist(l); err != nil {
		fl.Unlock()
		return err
	}
	l.lock = fl
	return nil
}

// releaseLock unlocks l's held lock, if any. Safe to call more than
// once: Commit and Rollback both call it, and Commit's own internal
// call to Rollback already releases it before Commit's defer runs.
func (m *Manager) releaseLock(l *Log) {
	if l.lock != nil {
		l.lock.Unlock()
		l.lock = nil
	}
}

// Commit applies every ref update via the store's native
// compare-and-swap. If a later update fails after earlier ones
// succeeded, it rolls back every update already applied in this
// transaction (refs already at NewOID are idempotently reverted to
// OldOID), removes the log, and returns KindTransactionConflict: the
// losing side of a race leaves no trace of its attempt.
func (m *Manager) Commit(l *Log) error {
	defer m.releaseLock(l)
	if l.State != StatePrepared {
		return jinerr.New(jinerr.KindTransactionConflict, "txn.Commit", l.ID)
	}
	for _, u := range l.Updates {
		current, _ := m.store.ResolveRef(u.RefName)
		if current == u.NewOID {
			continue // already applied, likely by a prior crashed attempt
		}
		if err := m.store.UpdateRef(u.RefName, u.NewOID, u.OldOID); err != nil {
			if rbErr := m.Rollback(l); rbErr != nil {
				return rbErr
			}
			return jinerr.Wrap(jinerr.KindTransactionConflict, "txn.Commit", u.RefName, err)
		}
	}
	l.State = StateCommitted
	if err := persist(l); err != nil {
		return err
	}
	return os.Remove(l.LogPath)
}

// Rollback reverts any ref updates that were already applied (by
// comparing the current ref value to NewOID) back to OldOID, and
// marks the log Aborted. This is the default crash-recovery policy
// for a transaction found Prepared but not Committed on startup, and
// is also what Commit calls in place on a mid-commit CAS failure.
func (m *Manager) Rollback(l *Log) error {
	defer m.releaseLock(l)
	for _, u := range l.Updates {
		current, _ := m.store.ResolveRef(u.RefName)
		if current != u.NewOID {
			continue // never applied, nothing to undo
		}
		if u.OldOID == "" {
			if err := m.store.DeleteRef(u.RefName); err != nil {
				return jinerr.Wrap(jinerr.KindIO, "txn.Rollback", u.RefName, err)
			}
			continue
		}
		if err := m.store.UpdateRef(u.RefName, u.OldOID, u.NewOID); err != nil {
			return jinerr.Wrap(jinerr.KindIO, "txn.Rollback", u.RefName, err)
		}
	}
	l.State = StateAborted
	if err := persist(l); err != nil {
		return err
	}
	return os.Remove(l.LogPath)
}

// Discard cleans up a transaction that failed to Prepare or Commit:
// rolling it back if it ever reached Prepared, or just removing its
// log otherwise. Keeps the log directory free of orphaned Pending
// logs and is idempotent, safe to call after Commit has already
// cleaned up internally.
func (m *Manager) Discard(l *Log) error {
	if l.State == StatePrepared {
		return m.Rollback(l)
	}
	m.releaseLock(l)
	if err := os.Remove(l.LogPath); err != nil && !os.IsNotExist(err) {
		return jinerr.Wrap(jinerr.KindIO, "txn.Discard", l.LogPath, err)
	}
	return nil
}

// Recover checks this workspace's single transaction slot for a
// transaction left in a non-terminal state by a prior process that
// died mid-commit, and applies the default rollback policy to it.
func (m *Manager) Recover() ([]*Log, error) {
	path := logPath(m.root)
	l, err := load(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, nil // unreadable log: leave for `jin repair` to flag
	}
	switch l.State {
	case StateCommitted, StateAborted:
		_ = os.Remove(path)
		return nil, nil
	case StatePrepared:
		if err := m.Rollback(l); err != nil {
			return nil, err
		}
		return []*Log{l}, nil
	case StatePending:
		// never prepared: no ref was touched, safe to discard.
		_ = os.Remove(path)
	}
	return nil, nil
}

func persist(l *Log) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return jinerr.Wrap(jinerr.KindIO, "txn.persist", l.LogPath, err)
	}
	tmp := l.LogPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return jinerr.Wrap(jinerr.KindIO, "txn.persist", l.LogPath, err)
	}
	if err := os.Rename(tmp, l.LogPath); err != nil {
		return jinerr.Wrap(jinerr.KindIO, "txn.persist", l.LogPath, err)
	}
	return nil
}

func load(path string) (*Log, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var l Log
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("txn: corrupt log %s: %w", path, err)
	}
	l.LogPath = path
	return &l, nil
}
