// Package service composes the alert store with notifications, the change
// signal and on-click actions. Every entry point (CLI, notification click,
// MCP) goes through these calls.
package service

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/kokistudios/nudge/internal/action"
	"github.com/kokistudios/nudge/internal/alert"
	"github.com/kokistudios/nudge/internal/notify"
	"github.com/kokistudios/nudge/internal/signal"
	"github.com/kokistudios/nudge/internal/store"
)

// Service is the command layer over one nudge home.
type Service struct {
	Alerts   *alert.Store
	Notifier notify.Notifier
	Signal   signal.Signaler
	Launcher action.Launcher
	Resolver action.Resolver
	Env      store.Env

	// Log receives lifecycle and diagnostic lines, each gated by its
	// debug toggle in Env. Nil discards them.
	Log *log.Logger
}

// New wires a Service for a loaded home. self is the path of the running
// binary, used by notification click handlers.
func New(st *store.Store, self string, logger *log.Logger) (*Service, error) {
	var storeLog *log.Logger
	if st.Env.DebugActions {
		storeLog = logger
	}
	alerts, err := alert.Open(st.AlertsDir(), storeLog)
	if err != nil {
		return nil, err
	}
	svc := &Service{
		Alerts:   alerts,
		Notifier: notify.New(st.Config.Notifications, self),
		Launcher: action.ShellLauncher{Log: storeLog},
		Env:      st.Env,
		Log:      logger,
	}
	svc.Signal = signal.New(st.Config.Trigger, st.Home, func() (int, error) {
		return alerts.Count(alert.Query{})
	})
	return svc, nil
}

// AddResult reports an insert and the records it replaced.
type AddResult struct {
	Alert    alert.Alert
	Replaced []alert.Alert
}

// Add stores candidate, retracting the notification of every record it
// replaces, then delivers its own notification and signals the change.
func (s *Service) Add(candidate alert.Alert) (AddResult, error) {
	var res AddResult
	a, err := s.Alerts.Insert(candidate, func(old alert.Alert) {
		res.Replaced = append(res.Replaced, old)
		s.lifecycle("replaced alert", "id", old.ID, "dedupe_key", old.DedupeKey, "session", old.Session)
		s.retract(old.ID)
	})
	if err != nil {
		return res, err
	}
	res.Alert = a
	s.lifecycle("added alert", "id", a.ID, "source", a.Source, "kind", a.Kind, "replaced", len(res.Replaced))

	if err := s.Notifier.Deliver(a); err != nil {
		s.diag("notification delivery failed", "id", a.ID, "err", err)
	}
	s.changed()
	return res, nil
}

// DoneResult reports a completed alert.
type DoneResult struct {
	Alert    alert.Alert
	Launched bool
}

// Done removes the alert with id. With run set and a non-empty on-click
// command, the command is launched detached. The notification is retracted
// even when the id is no longer pending, so a stale click clears itself.
func (s *Service) Done(id string, run bool) (DoneResult, error) {
	var res DoneResult
	a, err := s.Alerts.Remove(id)
	if err != nil {
		if errors.Is(err, alert.ErrNotFound) {
			s.retract(id)
		}
		return res, err
	}
	res.Alert = a
	s.lifecycle("done", "id", a.ID, "run", run)

	if run && a.OnClick != "" {
		res.Launched = s.launch(a)
	}
	s.retract(a.ID)
	s.changed()
	return res, nil
}

func (s *Service) launch(a alert.Alert) bool {
	ctx := s.Resolver.Resolve(s.Env)
	if ctx.DirRejected != "" {
		s.diag("ignoring working directory override", "env", store.EnvWorkDir, "dir", ctx.DirRejected)
	}
	if s.Launcher == nil {
		return false
	}
	if err := s.Launcher.Launch(ctx, a.OnClick); err != nil {
		s.diag("on-click action failed to start", "id", a.ID, "shell", ctx.Shell, "err", err)
		return false
	}
	s.lifecycle("launched action", "id", a.ID, "shell", ctx.Shell, "dir", ctx.Dir)
	return true
}

// List returns pending alerts matching q, oldest first.
func (s *Service) List(q alert.Query) ([]alert.Alert, error) {
	return s.Alerts.Query(q)
}

// Count returns the number of pending alerts matching q.
func (s *Service) Count(q alert.Query) (int, error) {
	return s.Alerts.Count(q)
}

// Show returns one pending alert without completing it.
func (s *Service) Show(id string) (alert.Alert, error) {
	return s.Alerts.Get(id)
}

// Clear removes every alert matching q, retracts their notifications and
// signals the change once.
func (s *Service) Clear(q alert.Query) ([]alert.Alert, error) {
	removed, err := s.Alerts.RemoveMatching(q)
	if err != nil {
		return nil, err
	}
	for _, a := range removed {
		s.retract(a.ID)
	}
	s.lifecycle("cleared alerts", "count", len(removed), "filtered", !q.Empty())
	s.changed()
	return removed, nil
}

func (s *Service) retract(id string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Retract(id); err != nil {
		s.diag("notification retraction failed", "id", id, "err", err)
	}
}

func (s *Service) changed() {
	if s.Signal == nil {
		return
	}
	if err := s.Signal.Changed(); err != nil {
		s.diag("change signal failed", "err", err)
	}
}

func (s *Service) lifecycle(msg string, keyvals ...interface{}) {
	if s.Log != nil && s.Env.DebugLifecycle {
		s.Log.Info(msg, keyvals...)
	}
}

func (s *Service) diag(msg string, keyvals ...interface{}) {
	if s.Log != nil && s.Env.DebugActions {
		s.Log.Warn(msg, keyvals...)
	}
}

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, alert.ErrStorageUnavailable):
		return 2
	default:
		return 1
	}
}

// Describe renders err as the one-line message shown to users.
func Describe(err error) string {
	if errors.Is(err, alert.ErrStorageUnavailable) {
		return fmt.Sprintf("alert storage is unavailable; check %s and its permissions", store.EnvHome)
	}
	return err.Error()
}
