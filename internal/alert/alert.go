package alert

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Alert is one pending notification. Completion is deletion; there is no
// done state on disk.
type Alert struct {
	ID        string    `yaml:"id" json:"id"`
	Title     string    `yaml:"title" json:"title"`
	Message   string    `yaml:"message" json:"message"`
	OnClick   string    `yaml:"on_click,omitempty" json:"on_click,omitempty"`
	Icon      string    `yaml:"icon,omitempty" json:"icon,omitempty"`
	Sound     bool      `yaml:"sound,omitempty" json:"sound,omitempty"`
	Tags      []string  `yaml:"tags,omitempty" json:"tags"`
	Source    string    `yaml:"source,omitempty" json:"source,omitempty"`
	Session   string    `yaml:"session,omitempty" json:"session,omitempty"`
	Kind      string    `yaml:"kind,omitempty" json:"kind,omitempty"`
	DedupeKey string    `yaml:"dedupe_key,omitempty" json:"dedupe_key,omitempty"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
}

// idLayout sorts lexically in creation order.
const idLayout = "20060102T150405.000"

var idRe = regexp.MustCompile(`^[0-9A-Za-z][0-9A-Za-z.\-]*$`)

// GenerateID returns a time-ordered id: UTC timestamp plus a random hex suffix.
func GenerateID(now time.Time) string {
	return fmt.Sprintf("%s-%s", now.UTC().Format(idLayout), randomHex(8))
}

// ValidID reports whether id is safe to use as a record filename.
func ValidID(id string) bool {
	return len(id) <= 128 && idRe.MatchString(id)
}

func randomHex(n int) string {
	b := make([]byte, (n+1)/2)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x", b)[:n]
}

// Validate checks the fields a caller must supply.
func (a Alert) Validate() error {
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if strings.TrimSpace(a.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrInvalid)
	}
	if a.ID != "" && !ValidID(a.ID) {
		return fmt.Errorf("%w: id %q contains unsupported characters", ErrInvalid, a.ID)
	}
	return nil
}

// Supersedes reports whether inserting a must replace old. A session on a
// narrows the scope to records from the same session; without one, every
// record sharing the dedupe key is replaced.
func (a Alert) Supersedes(old Alert) bool {
	if a.DedupeKey == "" || old.DedupeKey != a.DedupeKey {
		return false
	}
	return a.Session == "" || old.Session == a.Session
}

// normalizeTags trims, drops empties and duplicates, and keeps first-seen order.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
