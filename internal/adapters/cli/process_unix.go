//go:build !windows

package cli

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// configureProcAttr puts the child in its own process group so a
// cancellation reaches everything it spawned: SIGTERM first, SIGKILL
// after the grace period.
func configureProcAttr(cmd *exec.Cmd, grace time.Duration) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return signalGroup(cmd, syscall.SIGTERM, grace)
	}
	cmd.WaitDelay = grace
}

// terminate sends SIGTERM to the process group and escalates to SIGKILL
// if it has not exited within gracePeriod.
func terminate(cmd *exec.Cmd, gracePeriod time.Duration) error {
	return signalGroup(cmd, syscall.SIGTERM, gracePeriod)
}

func signalGroup(cmd *exec.Cmd, sig syscall.Signal, gracePeriod time.Duration) error {
	if cmd.Process == nil {
		return nil
	}
	pid := cmd.Process.Pid
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		// Process may have already exited
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return fmt.Errorf("getpgid(%d): %w", pid, err)
	}

	if err := syscall.Kill(-pgid, sig); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return fmt.Errorf("signal %v pgid %d: %w", sig, pgid, err)
	}

	go func() {
		time.Sleep(gracePeriod)
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
	}()
	return nil
}
