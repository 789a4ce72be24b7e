//go:build !unix

package action

import "os/exec"

func detach(cmd *exec.Cmd) {}
