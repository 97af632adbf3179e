// Package ownership applies owner/group ids to destination entries.
// Destination volumes are often mounted with forced-ownership semantics
// (everything created there belongs to a fixed user no matter what we
// ask for), so permission failures are tolerated rather than fatal.
package ownership

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Applier sets ownership on a destination path.
type Applier interface {
	Apply(path string, uid, gid int) error
}

// New returns the lchown-backed applier, or a no-op when ownership
// propagation is disabled.
//
//nolint:ireturn // strategy factory
func New(enabled bool) Applier {
	if !enabled {
		return NoopApplier{}
	}
	return &ChownApplier{RetryDelay: time.Second}
}

// NoopApplier leaves destination ownership untouched.
type NoopApplier struct{}

func (NoopApplier) Apply(string, int, int) error { return nil }

// ChownApplier changes ownership with lchown so symlink targets are
// never followed. EPERM is recovered locally: symlinks are given up on
// immediately, everything else gets one delayed retry with the
// link-following chown before the failure is swallowed.
type ChownApplier struct {
	RetryDelay time.Duration
}

func (a *ChownApplier) Apply(path string, uid, gid int) error {
	err := unix.Lchown(path, uid, gid)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EPERM) {
		return fmt.Errorf("lchown %s: %w", path, err)
	}

	info, serr := os.Lstat(path)
	if serr != nil {
		return fmt.Errorf("lstat %s: %w", path, serr)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		// Even root can fail to re-own a symlink whose target is gone.
		return nil
	}

	// Directories occasionally refuse the first attempt. Retry once
	// after a pause; a second refusal means forced ownership, move on.
	time.Sleep(a.RetryDelay)
	_ = unix.Chown(path, uid, gid)
	return nil
}
