// Package audit appends a post-commit record of every layer commit
// to a rotating log file, a non-blocking effect alongside .jinmap
// regeneration: failures here are logged, not surfaced, and never
// cause a commit to report failure.
//
// Logger construction follows the teacher's daemon.Config.Logger
// pattern (log.New(os.Stderr, prefix, log.LstdFlags), see
// internal/turso/daemon/daemon.go); the rotating file underneath it
// uses gopkg.in/natefinch/lumberjack.v2, the teacher's own direct
// dependency, generalized from "growing sync-daemon log" to "growing
// commit-audit log".
package audit

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Record is one line appended to the audit log for a completed commit.
type Record struct {
	Timestamp  time.Time         `json:"timestamp"`
	Author     string            `json:"author"`
	FilesCount int               `json:"files_count"`
	Layers     map[string]string `json:"layers"` // ref path -> new commit oid
}

// Logger appends audit records to a size-rotated log file under dir.
type Logger struct {
	file *lumberjack.Logger
	warn *log.Logger
}

const logFileName = "audit.log"

// Open creates (or reopens) the rotating audit log at dir/audit.log.
// warn is where best-effort failures are reported (matching the
// teacher's Logger.Printf("Warning: ...") idiom); pass nil to use
// log.New(os.Stderr, "[audit] ", log.LstdFlags).
func Open(dir string, warn *log.Logger) (*Logger, error) {
	if warn == nil {
		warn = log.New(os.Stderr, "[audit] ", log.LstdFlags)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Logger{
		file: &lumberjack.Logger{
			Filename:   filepath.Join(dir, logFileName),
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     90, // days
			Compress:   true,
		},
		warn: warn,
	}, nil
}

// Append writes one audit record as a JSON line and returns any
// marshal or write error. A commit-path caller that can't act on the
// error uses AppendBestEffort instead.
func (l *Logger) Append(r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = l.file.Write(data)
	return err
}

// AppendBestEffort writes r and logs a warning on failure instead of
// propagating it, the shape every caller on the commit path should
// use: audit failures are logged, never surfaced to the caller.
func (l *Logger) AppendBestEffort(r Record) {
	if err := l.Append(r); err != nil {
		l.warn.Printf("Warning: failed to append audit record: %v", err)
	}
}

// Close flushes and closes the underlying rotated file.
func (l *Logger) Close() error {
	return l.file.Close()
}
