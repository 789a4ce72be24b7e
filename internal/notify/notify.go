// Package notify mirrors pending alerts into the desktop notification center.
package notify

import (
	"fmt"
	"os/exec"

	"github.com/kokistudios/nudge/internal/action"
	"github.com/kokistudios/nudge/internal/alert"
	"github.com/kokistudios/nudge/internal/store"
)

// Notifier delivers and retracts native notifications. Failures are
// returned for diagnostics only; callers never fail a command on them.
type Notifier interface {
	Deliver(a alert.Alert) error
	Retract(id string) error
}

// Runner starts an external program without waiting for it.
type Runner func(name string, args ...string) error

// Nop drops every notification.
type Nop struct{}

func (Nop) Deliver(alert.Alert) error { return nil }
func (Nop) Retract(string) error      { return nil }

// Backend names accepted in config.
const (
	BackendAuto             = "auto"
	BackendTerminalNotifier = "terminal-notifier"
	BackendOSAScript        = "osascript"
	BackendNotifySend       = "notify-send"
	BackendNone             = "none"
)

// New returns the notifier selected by cfg. self is the path of the running
// nudge binary, used for click-to-complete on backends that support it.
func New(cfg store.NotificationsConfig, self string) Notifier {
	if !cfg.Enabled {
		return Nop{}
	}
	backend := cfg.Backend
	if backend == "" || backend == BackendAuto {
		backend = autoBackend(exec.LookPath)
	}

	switch backend {
	case BackendTerminalNotifier:
		return &TerminalNotifier{Path: BackendTerminalNotifier, Self: self, SoundName: cfg.SoundName}
	case BackendOSAScript:
		return &OSAScript{SoundName: cfg.SoundName}
	case BackendNotifySend:
		return &NotifySend{}
	}
	return Nop{}
}

// start is the default Runner. The child is reaped in the background so a
// long-lived caller does not accumulate zombies.
func start(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %s: %v", action.ErrLaunchFailed, name, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

func runnerOr(r Runner) Runner {
	if r == nil {
		return start
	}
	return r
}
