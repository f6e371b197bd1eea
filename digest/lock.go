package digest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
	"time"
)

// ErrJobLocked is returned when another live job owns the data directory.
var ErrJobLocked = errors.New("analysis job already running")

// lockGracePeriod is how long an unreadable lock file is still treated as held.
const lockGracePeriod = 5 * time.Second

// LockInfo is the content of progress.lock.
type LockInfo struct {
	PID        int    `json:"pid"`
	RunID      string `json:"runId"`
	AcquiredAt int64  `json:"acquiredAt"`
}

// AcquireLock creates progress.lock for runID. A lock left behind by a dead process is taken over.
// The returned release func removes the lock.
func (s *Store) AcquireLock(runID string) (func(), error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("AcquireLock: mkdir: %w", err)
	}
	info := LockInfo{PID: os.Getpid(), RunID: runID, AcquiredAt: epochMillis(time.Now())}
	b, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("AcquireLock: marshal: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		err := writeExclusive(s.LockPath(), b)
		if err == nil {
			return func() { s.releaseLock(runID) }, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("AcquireLock: %w", err)
		}

		held, readErr := s.readLock()
		switch {
		case readErr == nil:
			if held.PID != os.Getpid() && processAlive(held.PID) {
				return nil, fmt.Errorf("%w: pid %d run %s (%s)", ErrJobLocked, held.PID, held.RunID, s.LockPath())
			}
		case errors.Is(readErr, fs.ErrNotExist):
			continue
		default:
			// An unparsable lock may belong to a job that created it and has not written it yet.
			if fi, err := os.Stat(s.LockPath()); err == nil && time.Since(fi.ModTime()) < lockGracePeriod {
				return nil, fmt.Errorf("%w: %s is being written (%v)", ErrJobLocked, s.LockPath(), readErr)
			}
		}
		s.logger.Warn("removing stale job lock", "path", s.LockPath(), "pid", held.PID, "run_id", held.RunID)
		if err := os.Remove(s.LockPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("AcquireLock: remove stale lock: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: could not take over %s", ErrJobLocked, s.LockPath())
}

func (s *Store) readLock() (LockInfo, error) {
	b, err := os.ReadFile(s.LockPath())
	if err != nil {
		return LockInfo{}, err
	}
	var info LockInfo
	if err := json.Unmarshal(b, &info); err != nil {
		return LockInfo{}, fmt.Errorf("invalid lock file contents: %w", err)
	}
	return info, nil
}

// releaseLock only removes a lock that still belongs to runID.
func (s *Store) releaseLock(runID string) {
	held, err := s.readLock()
	if err != nil || held.RunID != runID {
		return
	}
	_ = os.Remove(s.LockPath())
}

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

// processAlive checks whether pid is running. Signal 0 checks existence without delivering anything.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
