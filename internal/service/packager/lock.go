package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/nowm/servelat-build/internal/config"
	"github.com/nowm/servelat-build/internal/logger"
)

// LockFilename marks that a build is writing the output directory right now.
const LockFilename = ".servelat-build.lock"

// lockAttempts bounds the retries after removing a stale marker.
const lockAttempts = 2

// ErrBuildRunning indicates that another live process holds the build lock.
var ErrBuildRunning = errors.New("another build is running")

// buildLock is the marker file owned by this process.
type buildLock struct {
	path string
}

// acquireLock creates the marker in dir, removing it first if its owner is gone.
func acquireLock(ctx context.Context, dir string) (*buildLock, error) {
	path := filepath.Join(dir, LockFilename)

	for range lockAttempts {
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, config.DefaultFilePermissions)
		if err == nil {
			_, writeErr := file.WriteString(strconv.Itoa(os.Getpid()))
			closeErr := file.Close()

			if err = errors.Join(writeErr, closeErr); err != nil {
				_ = os.Remove(path)

				return nil, fmt.Errorf("write build lock: %w", err)
			}

			logger.DebugKV(ctx, "Acquired build lock", "path", path)

			return &buildLock{path: path}, nil
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create build lock: %w", err)
		}

		pid, alive, err := lockOwnerAlive(path)
		if err != nil {
			return nil, err
		}

		if alive {
			return nil, fmt.Errorf("%w: pid %d holds %s", ErrBuildRunning, pid, path)
		}

		logger.WarnKV(ctx, "Removing stale build lock", "path", path, "pid", pid)

		if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale build lock: %w", err)
		}
	}

	return nil, fmt.Errorf("%w: %s keeps reappearing", ErrBuildRunning, path)
}

// release removes the marker. Failures are only logged.
func (l *buildLock) release(ctx context.Context) {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Unable to remove build lock", "path", l.path, "error", err)
	}
}

// lockOwnerAlive reads the PID from the marker and checks the process table.
// An unreadable or empty marker counts as stale, and so does one naming this process
// (a killed run restarted under the same PID) or a process running another executable.
func lockOwnerAlive(path string) (int, bool, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, fmt.Errorf("read build lock: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 || pid == os.Getpid() {
		return pid, false, nil
	}

	owner, err := ps.FindProcess(pid)
	if err != nil {
		return pid, false, fmt.Errorf("inspect build lock owner: %w", err)
	}

	if owner == nil {
		return pid, false, nil
	}

	self, err := ps.FindProcess(os.Getpid())
	if err != nil {
		return pid, false, fmt.Errorf("inspect current process: %w", err)
	}

	if self == nil {
		return pid, true, nil
	}

	return pid, owner.Executable() == self.Executable(), nil
}
