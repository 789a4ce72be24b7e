// Package signal tells external dashboards that the pending alert set
// changed.
package signal

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/kokistudios/nudge/internal/action"
	"github.com/kokistudios/nudge/internal/store"
)

// Signaler fires once per state-mutating command.
type Signaler interface {
	Changed() error
}

// Runner starts an external program without waiting for it.
type Runner func(name string, args ...string) error

// Nop ignores change signals.
type Nop struct{}

func (Nop) Changed() error { return nil }

// Multi fans a change out to every signaler and joins their errors.
type Multi []Signaler

func (m Multi) Changed() error {
	var errs []error
	for _, s := range m {
		if err := s.Changed(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New builds the signalers for home: the change stamp is always written and
// the sketchybar trigger is added when enabled in cfg.
func New(cfg store.TriggerConfig, home string, count func() (int, error)) Signaler {
	m := Multi{&Stamp{Path: StampPath(home), Count: count}}
	if cfg.Enabled && cfg.Event != "" {
		path := cfg.SketchybarPath
		if path == "" {
			path = "sketchybar"
		}
		m = append(m, &Sketchybar{Path: path, Event: cfg.Event})
	}
	return m
}

// Sketchybar triggers a custom sketchybar event so bar items re-read the
// alerts directory.
type Sketchybar struct {
	Path  string
	Event string
	Run   Runner
}

func (s *Sketchybar) Changed() error {
	run := s.Run
	if run == nil {
		run = start
	}
	return run(s.Path, "--trigger", s.Event)
}

func start(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %s: %v", action.ErrLaunchFailed, name, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
