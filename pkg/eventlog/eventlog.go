// Package eventlog persists received room events to append-only text files,
// one file per room per local day: <dir>/<roomID>-<YYYYMMDD>.txt.
package eventlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const dateLayout = "20060102"

type Option func(*Store)

// WithClock overrides the clock used to pick the day file.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type Store struct {
	dir   string
	now   func() time.Time
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(dir string, opts ...Option) *Store {
	s := &Store{
		dir:   dir,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Dir() string {
	return s.dir
}

// EnsureStorage creates the log directory. Safe to call repeatedly.
func (s *Store) EnsureStorage() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating log dir %s: %w", s.dir, err)
	}
	return nil
}

// Path returns the file that events for roomID at t are appended to.
func (s *Store) Path(roomID int64, t time.Time) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d-%s.txt", roomID, t.Local().Format(dateLayout)))
}

// Append writes line plus a newline to today's file for roomID. Appends to
// the same file never interleave.
func (s *Store) Append(roomID int64, line string) (err error) {
	path := s.Path(roomID, s.now())

	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (s *Store) lockFor(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	return l
}
