package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// StartDetached launches this binary's hidden run mode as a background
// process: its own session, working directory /, stdio on /dev/null. The
// child writes the PID file itself once it is actually starting. Returns
// the child's process id.
func StartDetached() (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("resolve executable: %w", err)
	}

	null, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer null.Close()

	cmd := exec.Command(exe, "run")
	cmd.Dir = "/"
	cmd.Stdin = null
	cmd.Stdout = null
	cmd.Stderr = null
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start daemon process: %w", err)
	}

	pid := cmd.Process.Pid
	// The daemon outlives us; drop the handle so it is never reaped here.
	_ = cmd.Process.Release()
	return pid, nil
}

// Status is the outcome of a liveness probe.
type Status int

const (
	StatusRunning Status = iota
	StatusNotRunning
	StatusStale
)

// Probe reads the PID file and checks whether the recorded process is
// alive. A record pointing at a dead process is stale; the file is removed
// as a side effect and StatusStale reported.
func Probe(pidFile string) (Status, int, error) {
	pid, err := ReadPidFile(pidFile)
	if os.IsNotExist(err) {
		return StatusNotRunning, 0, nil
	}
	if err != nil {
		return StatusNotRunning, 0, err
	}

	if Alive(pid) {
		return StatusRunning, pid, nil
	}

	if err := RemovePidFile(pidFile); err != nil {
		return StatusStale, pid, err
	}
	return StatusStale, pid, nil
}

// StopOutcome is the result of a stop request.
type StopOutcome int

const (
	// StopClean means the daemon exited within the grace period.
	StopClean StopOutcome = iota
	// StopNotRunning means there was nothing to stop.
	StopNotRunning
	// StopKilled means the daemon ignored SIGTERM and was killed.
	StopKilled
)

// Stop signals the recorded daemon process with SIGTERM and waits up to
// grace for it to exit. A daemon that does not exit in time is killed with
// SIGKILL and its PID file removed; the escalation is reported distinctly,
// never as a silent success.
func Stop(pidFile string, grace time.Duration) (StopOutcome, int, error) {
	pid, err := ReadPidFile(pidFile)
	if os.IsNotExist(err) {
		return StopNotRunning, 0, nil
	}
	if err != nil {
		return StopNotRunning, 0, err
	}

	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		if err == unix.ESRCH {
			// Stale record left behind by a crash.
			_ = RemovePidFile(pidFile)
			return StopNotRunning, pid, nil
		}
		return StopNotRunning, pid, fmt.Errorf("signal pid %d: %w", pid, err)
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !Alive(pid) {
			// Clean exit removes the PID file on the daemon side; sweep
			// it here in case the process died before its teardown ran.
			_ = RemovePidFile(pidFile)
			return StopClean, pid, nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	_ = unix.Kill(pid, unix.SIGKILL)
	_ = RemovePidFile(pidFile)
	return StopKilled, pid, nil
}
