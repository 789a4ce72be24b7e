package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Environment variables read once at process start.
const (
	EnvHome           = "NUDGE_HOME"
	EnvShell          = "NUDGE_SHELL"
	EnvLoginShell     = "SHELL"
	EnvWorkDir        = "NUDGE_CWD"
	EnvDebugActions   = "NUDGE_DEBUG_ACTIONS"
	EnvDebugLifecycle = "NUDGE_DEBUG_LIFECYCLE"
)

// Env is a snapshot of the process environment that nudge depends on.
// It is built once and handed to components so they never call os.Getenv.
type Env struct {
	Home           string
	ShellOverride  string
	LoginShell     string
	WorkDir        string
	DebugActions   bool
	DebugLifecycle bool
}

// ReadEnv builds an Env from getenv. Pass os.Getenv in production.
func ReadEnv(getenv func(string) string) Env {
	return Env{
		Home:           homeFrom(getenv),
		ShellOverride:  strings.TrimSpace(getenv(EnvShell)),
		LoginShell:     strings.TrimSpace(getenv(EnvLoginShell)),
		WorkDir:        strings.TrimSpace(getenv(EnvWorkDir)),
		DebugActions:   truthy(getenv(EnvDebugActions)),
		DebugLifecycle: truthy(getenv(EnvDebugLifecycle)),
	}
}

// Home returns the nudge home path, respecting NUDGE_HOME and XDG_DATA_HOME.
func Home() string {
	return homeFrom(os.Getenv)
}

func homeFrom(getenv func(string) string) string {
	if h := getenv(EnvHome); h != "" {
		return h
	}
	if xdg := getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "nudge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".nudge")
	}
	return filepath.Join(home, ".local", "share", "nudge")
}

func truthy(v string) bool {
	b, err := parseBool(v)
	return err == nil && b
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "on":
		return true, nil
	case "no", "off", "":
		return false, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("not a boolean: %q", v)
	}
	return b, nil
}
