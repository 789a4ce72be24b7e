package action

import (
	"os"

	"github.com/kokistudios/nudge/internal/store"
)

// FallbackShell runs actions when neither NUDGE_SHELL nor SHELL names an
// executable file.
const FallbackShell = "/bin/sh"

// Context is the execution context for an on-click command.
type Context struct {
	Shell string
	// Dir is the working directory for the action. Empty inherits the
	// process working directory.
	Dir string
	// DirRejected holds a NUDGE_CWD value that was not an existing directory.
	DirRejected    string
	DebugActions   bool
	DebugLifecycle bool
}

// Resolver decides the action context from an environment snapshot. The zero
// value checks the real filesystem.
type Resolver struct {
	IsExecutable func(path string) bool
	IsDir        func(path string) bool
}

// Resolve is Resolver{}.Resolve.
func Resolve(env store.Env) Context {
	return Resolver{}.Resolve(env)
}

// Resolve picks the first usable shell from the override, the login shell and
// FallbackShell, and validates the working directory override.
func (r Resolver) Resolve(env store.Env) Context {
	isExec := r.IsExecutable
	if isExec == nil {
		isExec = isExecutable
	}
	isDir := r.IsDir
	if isDir == nil {
		isDir = isDirectory
	}

	ctx := Context{
		Shell:          FallbackShell,
		DebugActions:   env.DebugActions,
		DebugLifecycle: env.DebugLifecycle,
	}
	for _, candidate := range []string{env.ShellOverride, env.LoginShell} {
		if candidate != "" && isExec(candidate) {
			ctx.Shell = candidate
			break
		}
	}

	if env.WorkDir != "" {
		if isDir(env.WorkDir) {
			ctx.Dir = env.WorkDir
		} else {
			ctx.DirRejected = env.WorkDir
		}
	}
	return ctx
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0111 != 0
}

func isDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
