package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"loom/internal/services"
)

// ErrOutputLocked reports that another run holds the output directory.
var ErrOutputLocked = errors.New("output directory is in use by another run")

func lockOutput(dir string) (func(), error) {
	lock := flock.New(filepath.Join(dir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "setup", "lock output dir", dir, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOutputLocked, dir)
	}
	return func() { _ = lock.Unlock() }, nil
}
