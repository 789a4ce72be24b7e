package alert

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

const (
	recordExt  = ".yaml"
	tempPrefix = ".tmp-"
	lockName   = ".lock"
)

// Store persists alerts as one yaml file per record in Dir. It is the only
// component that creates or deletes record files.
type Store struct {
	Dir string

	// Log receives per-record diagnostics. Nil discards them.
	Log *log.Logger

	now func() time.Time
}

// ReplaceFunc is called for every record removed by a dedupe sweep, before
// the new record is published.
type ReplaceFunc func(old Alert)

// Open returns a Store rooted at dir, creating the directory if needed.
func Open(dir string, logger *log.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, unavailable("create "+dir, err)
	}
	return &Store{Dir: dir, Log: logger, now: time.Now}, nil
}

// Insert persists candidate, assigning ID and CreatedAt when unset. When the
// candidate carries a dedupe key, every record it supersedes is deleted and
// reported to onReplace before the candidate is written.
func (s *Store) Insert(candidate Alert, onReplace ReplaceFunc) (Alert, error) {
	if err := candidate.Validate(); err != nil {
		return Alert{}, err
	}
	a := candidate
	a.Tags = normalizeTags(a.Tags)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.clock().UTC()
	}
	if a.ID == "" {
		a.ID = GenerateID(a.CreatedAt)
	}

	unlock, err := lockDir(s.Dir)
	if err != nil {
		return Alert{}, unavailable("lock "+s.Dir, err)
	}
	defer unlock()

	if a.DedupeKey != "" {
		if err := s.sweep(a, onReplace); err != nil {
			return Alert{}, err
		}
	}

	path := s.recordPath(a.ID)
	if _, err := os.Stat(path); err == nil {
		return Alert{}, fmt.Errorf("alert %s already exists", a.ID)
	}
	data, err := yaml.Marshal(a)
	if err != nil {
		return Alert{}, fmt.Errorf("failed to marshal alert: %w", err)
	}
	if err := atomicWrite(path, data); err != nil {
		return Alert{}, unavailable("write "+a.ID, err)
	}
	return a, nil
}

func (s *Store) sweep(a Alert, onReplace ReplaceFunc) error {
	existing, err := s.load()
	if err != nil {
		return err
	}
	for _, old := range existing {
		if !a.Supersedes(old) {
			continue
		}
		if err := os.Remove(s.recordPath(old.ID)); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to remove replaced alert %s: %w", old.ID, err)
		}
		if onReplace != nil {
			onReplace(old)
		}
	}
	return nil
}

// Query returns every record matching q, oldest first. Each call re-reads
// the directory.
func (s *Store) Query(q Query) ([]Alert, error) {
	all, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []Alert
	for _, a := range all {
		if q.Matches(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

// Get returns the record with the given id without removing it.
func (s *Store) Get(id string) (Alert, error) {
	if !ValidID(id) {
		return Alert{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	a, err := s.readRecord(s.recordPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return Alert{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Alert{}, err
	}
	return a, nil
}

// Remove deletes the record with the given id and returns it. A record that
// exists but cannot be parsed is still deleted; only its id is returned.
func (s *Store) Remove(id string) (Alert, error) {
	if !ValidID(id) {
		return Alert{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	path := s.recordPath(id)
	a, err := s.readRecord(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Alert{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		s.diag("removing unreadable alert record", "path", path, "err", err)
		a = Alert{ID: id}
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return Alert{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Alert{}, fmt.Errorf("failed to remove alert %s: %w", id, err)
	}
	return a, nil
}

// RemoveMatching deletes every record matching q and returns the removed
// records, oldest first. Records that vanish or fail to delete are skipped.
func (s *Store) RemoveMatching(q Query) ([]Alert, error) {
	matched, err := s.Query(q)
	if err != nil {
		return nil, err
	}
	var removed []Alert
	for _, a := range matched {
		if err := os.Remove(s.recordPath(a.ID)); err != nil {
			if !os.IsNotExist(err) {
				s.diag("failed to remove alert record", "id", a.ID, "err", err)
			}
			continue
		}
		removed = append(removed, a)
	}
	return removed, nil
}

// Count returns the number of records matching q. It skips exactly the
// records Query skips, so the two always agree.
func (s *Store) Count(q Query) (int, error) {
	paths, err := s.recordPaths()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range paths {
		a, err := s.readRecord(p)
		if err != nil {
			if !os.IsNotExist(err) {
				s.diag("skipping corrupt alert record", "path", p, "err", err)
			}
			continue
		}
		if q.Matches(a) {
			n++
		}
	}
	return n, nil
}

// load reads every parsable record, oldest first.
func (s *Store) load() ([]Alert, error) {
	paths, err := s.recordPaths()
	if err != nil {
		return nil, err
	}
	alerts := make([]Alert, 0, len(paths))
	for _, p := range paths {
		a, err := s.readRecord(p)
		if err != nil {
			if !os.IsNotExist(err) {
				s.diag("skipping corrupt alert record", "path", p, "err", err)
			}
			continue
		}
		alerts = append(alerts, a)
	}
	sort.Slice(alerts, func(i, j int) bool {
		if !alerts[i].CreatedAt.Equal(alerts[j].CreatedAt) {
			return alerts[i].CreatedAt.Before(alerts[j].CreatedAt)
		}
		return alerts[i].ID < alerts[j].ID
	})
	return alerts, nil
}

func (s *Store) recordPaths() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, unavailable("read "+s.Dir, err)
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != recordExt {
			continue
		}
		paths = append(paths, filepath.Join(s.Dir, name))
	}
	return paths, nil
}

// readRecord parses one record file. The file name is authoritative for the
// id so a record can always be removed by the id it is listed under.
func (s *Store) readRecord(path string) (Alert, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Alert{}, err
	}
	var a Alert
	if err := yaml.Unmarshal(data, &a); err != nil {
		return Alert{}, &CorruptRecordError{Path: path, Err: err}
	}
	if a.Title == "" {
		return Alert{}, &CorruptRecordError{Path: path, Err: fmt.Errorf("missing title")}
	}
	a.ID = strings.TrimSuffix(filepath.Base(path), recordExt)
	return a, nil
}

func (s *Store) recordPath(id string) string {
	return filepath.Join(s.Dir, id+recordExt)
}

func (s *Store) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (s *Store) diag(msg string, keyvals ...interface{}) {
	if s.Log != nil {
		s.Log.Warn(msg, keyvals...)
	}
}
