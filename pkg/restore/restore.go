// Package restore keeps a journal of files that are modified temporarily
// and puts them back byte for byte.
//
//	j := restore.New(logger)
//	defer j.Restore()
//	j.Record(pkg.Path, pkg.Raw)
//	// ... rewrite pkg.Path, run npm publish ...
package restore

import (
	stderrors "errors"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/monopub/pkg/errors"
)

type entry struct {
	path string
	data []byte
	mode os.FileMode
}

// Journal remembers the original contents of files.
type Journal struct {
	Logger *log.Logger

	mu      sync.Mutex
	entries []entry
	seen    map[string]bool
}

// New returns an empty journal.
func New(logger *log.Logger) *Journal {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Journal{Logger: logger, seen: make(map[string]bool)}
}

// Record remembers original as the contents of path. Only the first
// record for a path counts, so the oldest contents win.
func (j *Journal) Record(path string, original []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.seen == nil {
		j.seen = make(map[string]bool)
	}
	if j.seen[path] {
		return
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	j.seen[path] = true
	j.entries = append(j.entries, entry{path: path, data: append([]byte(nil), original...), mode: mode})
}

// Len returns the number of recorded files.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

// Restore writes every recorded file back, newest record first, and
// empties the journal. It keeps going after a failed write and returns
// all failures joined.
func (j *Journal) Restore() error {
	j.mu.Lock()
	entries := j.entries
	j.entries = nil
	j.seen = make(map[string]bool)
	j.mu.Unlock()

	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if err := os.WriteFile(e.path, e.data, e.mode); err != nil {
			j.logger().Error("failed to restore file", "path", e.path, "err", err)
			errs = append(errs, errors.Wrap(errors.ErrCodeInternal, err, "restore %s", e.path))
			continue
		}
		j.logger().Debug("restored", "path", e.path)
	}
	return stderrors.Join(errs...)
}

func (j *Journal) logger() *log.Logger {
	if j.Logger == nil {
		return log.NewWithOptions(io.Discard, log.Options{})
	}
	return j.Logger
}
