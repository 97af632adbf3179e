package replicate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/mwaldron/snapshift/internal/ownership"
	"github.com/mwaldron/snapshift/internal/platform"
	"github.com/mwaldron/snapshift/internal/stats"
	"github.com/mwaldron/snapshift/internal/ui"
)

// OpsConfig configures the destination-side mutation primitives.
type OpsConfig struct {
	DryRun  bool
	Report  *ui.Reporter
	Owner   ownership.Applier
	Stats   *stats.Collector
	IOURing *platform.IOURingCopier // nil unless --iouring
}

// Ops performs the destination-side filesystem mutations shared by the
// initial and incremental replicators and the orchestrator. Every
// method reports its decision before acting, and acts only when not in
// dry-run mode.
type Ops struct {
	dryRun  bool
	report  *ui.Reporter
	owner   ownership.Applier
	stats   *stats.Collector
	iouring *platform.IOURingCopier
}

// NewOps creates an Ops.
func NewOps(cfg OpsConfig) *Ops {
	return &Ops{
		dryRun:  cfg.DryRun,
		report:  cfg.Report,
		owner:   cfg.Owner,
		stats:   cfg.Stats,
		iouring: cfg.IOURing,
	}
}

// MakeDir creates dst as a directory carrying src's permissions,
// timestamps and ownership.
func (o *Ops) MakeDir(src Entry, dst string) error {
	o.report.Mkdir(dst)
	if o.dryRun {
		return nil
	}

	if err := os.Mkdir(dst, src.Mode.Perm()); err != nil {
		return fmt.Errorf("mkdir %s: %w", dst, err)
	}
	if err := CopyMetadata(src, dst); err != nil {
		return err
	}
	if err := o.owner.Apply(dst, int(src.UID), int(src.GID)); err != nil {
		return err
	}

	o.stats.AddDirsCreated(1)
	return nil
}

// MakeDirAll is MakeDir with missing parents created, used for host and
// snapshot roots. Parents get default permissions; dst itself carries
// src's metadata.
func (o *Ops) MakeDirAll(src Entry, dst string) error {
	o.report.Mkdir(dst)
	if o.dryRun {
		return nil
	}

	if err := os.MkdirAll(dst, src.Mode.Perm()); err != nil {
		return fmt.Errorf("mkdir %s: %w", dst, err)
	}
	if err := CopyMetadata(src, dst); err != nil {
		return err
	}
	if err := o.owner.Apply(dst, int(src.UID), int(src.GID)); err != nil {
		return err
	}

	o.stats.AddDirsCreated(1)
	return nil
}

// CopyFile copies src's content byte-for-byte to dst along with
// permissions, timestamps and ownership. Content lands in a uniquely
// named temp file that is renamed into place, so dst itself appears
// exactly once.
func (o *Ops) CopyFile(src Entry, dst string) error {
	o.report.Copy(src.Path, dst)
	if o.dryRun {
		return nil
	}

	dir := filepath.Dir(dst)
	base := filepath.Base(dst)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.snapshift-tmp", base, uuid.New().String()[:8]))

	defer func() {
		_ = os.Remove(tmpPath) // no-op if rename succeeded
	}()

	tmpFd, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, src.Mode.Perm())
	if err != nil {
		return fmt.Errorf("create tmp %s: %w", tmpPath, err)
	}

	var written int64
	if src.Size > 0 {
		written, err = o.copyData(src, tmpFd)
		if err != nil {
			tmpFd.Close()
			return fmt.Errorf("copy data %s: %w", src.Path, err)
		}
	}

	if err := tmpFd.Close(); err != nil {
		return fmt.Errorf("close tmp %s: %w", tmpPath, err)
	}

	if err := CopyMetadata(src, tmpPath); err != nil {
		return err
	}
	if err := o.owner.Apply(tmpPath, int(src.UID), int(src.GID)); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", tmpPath, dst, err)
	}

	o.stats.AddFilesCopied(1)
	o.stats.AddBytesCopied(written)
	return nil
}

func (o *Ops) copyData(src Entry, dstFd *os.File) (int64, error) {
	params := platform.CopyParams{
		SrcPath: src.Path,
		DstFd:   dstFd,
		Size:    src.Size,
	}
	if o.iouring != nil {
		result, err := o.iouring.CopyFile(params)
		return result.BytesWritten, err
	}
	result, err := platform.CopyFile(params)
	return result.BytesWritten, err
}

// MakeSymlink creates a symbolic link at dst with the given target and
// applies src's ownership without following the link. The target is
// reproduced byte-for-byte; permissions and timestamps are not carried
// for symlinks.
func (o *Ops) MakeSymlink(src Entry, target, dst string) error {
	o.report.Symlink(target, dst)
	if o.dryRun {
		return nil
	}

	if err := os.Symlink(target, dst); err != nil {
		return fmt.Errorf("symlink %s -> %s: %w", dst, target, err)
	}
	if err := o.owner.Apply(dst, int(src.UID), int(src.GID)); err != nil {
		return err
	}

	o.stats.AddSymlinksCreated(1)
	return nil
}

// MakeHardLink creates a hard link at dst pointing to prevDst, the
// corresponding entry under the previous snapshot's destination. A
// missing link target means the previous snapshot was never fully
// materialized, which breaks every later snapshot; it is fatal.
func (o *Ops) MakeHardLink(dst, prevDst string) error {
	o.report.Hardlink(dst, prevDst)
	if o.dryRun {
		return nil
	}

	if _, err := os.Lstat(prevDst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("hard link target %s missing: previous snapshot incomplete", prevDst)
		}
		return fmt.Errorf("lstat %s: %w", prevDst, err)
	}

	if err := os.Link(prevDst, dst); err != nil {
		return fmt.Errorf("link %s -> %s: %w", dst, prevDst, err)
	}

	o.stats.AddHardlinksCreated(1)
	return nil
}

// CopyMetadata applies src's permission bits and timestamps to dst.
func CopyMetadata(src Entry, dst string) error {
	if err := os.Chmod(dst, src.Mode.Perm()); err != nil {
		return fmt.Errorf("chmod %s: %w", dst, err)
	}

	times := []unix.Timespec{
		unix.NsecToTimespec(src.AccTime.UnixNano()),
		unix.NsecToTimespec(src.ModTime.UnixNano()),
	}
	if err := unix.UtimesNanoAt(unix.AT_FDCWD, dst, times, 0); err != nil {
		return fmt.Errorf("utimensat %s: %w", dst, err)
	}

	return nil
}
