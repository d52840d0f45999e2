package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"culler/internal/logging"
)

// ErrLocked indicates another process holds the catalog lock.
var ErrLocked = errors.New("catalog locked by another process")

const heartbeatInterval = 30 * time.Second

// Lock guards the catalog against concurrent phase execution across
// processes. While held, the lock file's mtime is refreshed periodically so
// other processes can distinguish a live holder from a crashed one.
type Lock struct {
	path     string
	staleAge time.Duration
	flk      *flock.Flock
	logger   *slog.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewLock constructs an unacquired lock for the given path. staleAge bounds
// how old an abandoned lock file may be before it is reclaimed; zero disables
// reclaim.
func NewLock(path string, staleAge time.Duration, logger *slog.Logger) *Lock {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Lock{
		path:     path,
		staleAge: staleAge,
		flk:      flock.New(path),
		logger:   logger,
	}
}

// Acquire takes the lock or returns ErrLocked when another live process holds
// it. A lock file older than the configured stale age with no active holder
// heartbeat is removed and acquisition retried once.
func (l *Lock) Acquire() error {
	ok, err := l.flk.TryLock()
	if err != nil {
		return fmt.Errorf("acquire catalog lock %s: %w", l.path, err)
	}
	if !ok {
		if !l.reclaimStale() {
			return fmt.Errorf("%w (%s)", ErrLocked, l.path)
		}
		ok, err = l.flk.TryLock()
		if err != nil {
			return fmt.Errorf("acquire catalog lock %s: %w", l.path, err)
		}
		if !ok {
			return fmt.Errorf("%w (%s)", ErrLocked, l.path)
		}
	}

	now := time.Now()
	_ = os.Chtimes(l.path, now, now)

	l.mu.Lock()
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go l.heartbeat(l.stop, l.done)
	l.mu.Unlock()
	return nil
}

// Release stops the heartbeat and drops the lock. Safe to call when the lock
// was never acquired.
func (l *Lock) Release() {
	l.mu.Lock()
	held := l.stop != nil
	if held {
		close(l.stop)
		<-l.done
		l.stop = nil
		l.done = nil
	}
	l.mu.Unlock()
	if !held {
		return
	}

	if err := l.flk.Unlock(); err != nil {
		l.logger.Warn("failed to release catalog lock",
			logging.String("path", l.path), logging.Error(err))
		return
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		l.logger.Warn("failed to remove lock file",
			logging.String("path", l.path), logging.Error(err))
	}
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

func (l *Lock) reclaimStale() bool {
	if l.staleAge <= 0 {
		return false
	}
	info, err := os.Stat(l.path)
	if err != nil {
		return false
	}
	age := time.Since(info.ModTime())
	if age < l.staleAge {
		return false
	}
	l.logger.Warn("reclaiming stale catalog lock",
		logging.String("path", l.path),
		logging.Duration("age", age))
	if err := os.Remove(l.path); err != nil {
		l.logger.Warn("failed to remove stale lock file",
			logging.String("path", l.path), logging.Error(err))
		return false
	}
	l.flk = flock.New(l.path)
	return true
}

func (l *Lock) heartbeat(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := time.Now()
			if err := os.Chtimes(l.path, now, now); err != nil {
				l.logger.Warn("failed to refresh lock heartbeat",
					logging.String("path", l.path), logging.Error(err))
			}
		}
	}
}
