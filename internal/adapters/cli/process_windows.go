//go:build windows

package cli

import (
	"os/exec"
	"time"
)

// configureProcAttr only bounds the wait on Windows (Setpgid not supported).
func configureProcAttr(cmd *exec.Cmd, grace time.Duration) {
	cmd.WaitDelay = grace
}

// terminate falls back to Process.Kill().
func terminate(cmd *exec.Cmd, _ time.Duration) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
