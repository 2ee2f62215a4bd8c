//go:build !unix

package sandbox

import "os/exec"

// Without process groups only the direct child is killed on cancel.
func setProcessGroup(cmd *exec.Cmd) {}

func killGroup(cmd *exec.Cmd) {}
