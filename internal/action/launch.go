package action

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/charmbracelet/log"
)

// ErrLaunchFailed is returned when an action subprocess cannot be started.
var ErrLaunchFailed = errors.New("action launch failed")

// Launcher starts an on-click command without waiting for it.
type Launcher interface {
	Launch(ctx Context, command string) error
}

// ShellLauncher runs commands as `<shell> -l -c <command>` in their own
// session, detached from the caller's terminal.
type ShellLauncher struct {
	// Log receives exit failures of launched commands. Nil discards them.
	Log *log.Logger
}

// Command builds the process for command under ctx.
func Command(ctx Context, command string) *exec.Cmd {
	shell := ctx.Shell
	if shell == "" {
		shell = FallbackShell
	}
	cmd := exec.Command(shell, "-l", "-c", command)
	cmd.Dir = ctx.Dir
	cmd.Env = os.Environ()
	detach(cmd)
	return cmd
}

// Launch starts command and returns once the process is spawned. Only spawn
// errors are returned; the exit status is reported to Log if the caller is
// still alive to see it.
func (l ShellLauncher) Launch(ctx Context, command string) error {
	cmd := Command(ctx, command)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLaunchFailed, cmd.Path, err)
	}
	go func() {
		if err := cmd.Wait(); err != nil && l.Log != nil {
			l.Log.Warn("action exited with error", "shell", ctx.Shell, "err", err)
		}
	}()
	return nil
}
