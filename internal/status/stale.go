package status

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"syscall"

	"fireshare/internal/logging"
)

// LockPID returns the pid written into the run lock, or 0 when the lock is
// absent or unreadable.
func (s *Store) LockPID() int {
	data, err := os.ReadFile(s.LockPath())
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

// RecoverStale removes a run lock and progress record left behind by a
// process that is no longer running. State owned by a live process is
// left alone.
func (s *Store) RecoverStale() (lockRemoved, statusCleared bool) {
	if s.LockExists() {
		if pid := s.LockPID(); pid == 0 || !processAlive(pid) {
			logging.Warn("Removing stale run lock %s (pid %d)", s.LockPath(), pid)
			s.ReleaseLock()
			lockRemoved = true
		}
	}

	st := s.Read()
	if st.IsRunning && (st.PID == nil || !processAlive(*st.PID)) {
		logging.Warn("Clearing stale transcoding status from a previous run")
		s.Clear()
		statusCleared = true
	}

	return lockRemoved, statusCleared
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
