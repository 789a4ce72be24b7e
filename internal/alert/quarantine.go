package alert

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// staleTempAge is how old a temp file must be before it is treated as left
// behind by a crashed writer rather than an in-flight publish.
const staleTempAge = time.Minute

// ScanReport summarizes the record directory for health checks.
type ScanReport struct {
	Records   int
	Corrupt   []*CorruptRecordError
	StaleTemp []string
}

// Scan parses every record and reports the ones that fail, plus stale temp
// files. It never modifies the directory.
func (s *Store) Scan() (ScanReport, error) {
	var report ScanReport
	paths, err := s.recordPaths()
	if err != nil {
		return report, err
	}
	for _, p := range paths {
		if _, err := s.readRecord(p); err != nil {
			var corrupt *CorruptRecordError
			if errors.As(err, &corrupt) {
				report.Corrupt = append(report.Corrupt, corrupt)
			} else if !os.IsNotExist(err) {
				report.Corrupt = append(report.Corrupt, &CorruptRecordError{Path: p, Err: err})
			}
			continue
		}
		report.Records++
	}

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return report, unavailable("read "+s.Dir, err)
	}
	cutoff := s.clock().Add(-staleTempAge)
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		report.StaleTemp = append(report.StaleTemp, filepath.Join(s.Dir, e.Name()))
	}
	return report, nil
}

// Quarantine moves a record file into quarantineDir so it no longer shows up
// as pending. It returns the new location.
func Quarantine(path, quarantineDir string) (string, error) {
	if err := os.MkdirAll(quarantineDir, 0755); err != nil {
		return "", fmt.Errorf("create quarantine dir: %w", err)
	}
	name := fmt.Sprintf("%s.%s.corrupt", filepath.Base(path), time.Now().Format("20060102T150405"))
	dest := filepath.Join(quarantineDir, name)
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("move to quarantine: %w", err)
	}
	return dest, nil
}
