package signal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// StampFile records the most recent change to the pending alert set.
type StampFile struct {
	Count int       `yaml:"count"`
	At    time.Time `yaml:"at"`
}

// StampPath returns the path of the change stamp under home.
func StampPath(home string) string {
	return filepath.Join(home, "changed.yaml")
}

// Stamp rewrites StampFile on every change, for dashboards that poll a
// single file instead of listening for sketchybar events.
type Stamp struct {
	Path  string
	Count func() (int, error)
	Now   func() time.Time
}

func (s *Stamp) Changed() error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	stamp := StampFile{At: now().UTC()}
	if s.Count != nil {
		n, err := s.Count()
		if err != nil {
			return fmt.Errorf("failed to count alerts for stamp: %w", err)
		}
		stamp.Count = n
	}

	data, err := yaml.Marshal(&stamp)
	if err != nil {
		return fmt.Errorf("failed to marshal change stamp: %w", err)
	}
	return writeStamp(s.Path, data)
}

// writeStamp replaces path through a uniquely named temp file so concurrent
// writers never share one.
func writeStamp(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".changed-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write change stamp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write change stamp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write change stamp: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to write change stamp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to write change stamp: %w", err)
	}
	return nil
}

// ReadStamp loads the change stamp. Returns nil if none has been written.
func ReadStamp(home string) (*StampFile, error) {
	data, err := os.ReadFile(StampPath(home))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read change stamp: %w", err)
	}
	var stamp StampFile
	if err := yaml.Unmarshal(data, &stamp); err != nil {
		return nil, fmt.Errorf("failed to parse change stamp: %w", err)
	}
	return &stamp, nil
}
