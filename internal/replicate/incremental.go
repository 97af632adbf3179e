package replicate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"

	"github.com/mwaldron/snapshift/internal/classify"
	"github.com/mwaldron/snapshift/internal/walk"
)

// Incremental copies a snapshot tree relative to a reference tree (the
// previous snapshot on the source side). An entry whose inode identity
// equals its reference counterpart's is reproduced as a hard link into
// the previous snapshot's destination; everything else is copied fresh.
type Incremental struct {
	srcRoot     string
	dstRoot     string
	refRoot     string
	prevDstRoot string
	dirLinks    bool
	ops         *Ops
}

// NewIncremental creates the incremental-snapshot replicator. The
// previous snapshot's destination must be fully materialized before
// Run is called: hard links always target it directly.
func NewIncremental(cfg Config) *Incremental {
	return &Incremental{
		srcRoot:     cfg.SrcRoot,
		dstRoot:     cfg.DstRoot,
		refRoot:     cfg.RefRoot,
		prevDstRoot: cfg.PrevDstRoot,
		dirLinks:    cfg.DirLinks,
		ops:         cfg.Ops,
	}
}

// Run replicates the tree rooted at SrcRoot into DstRoot. The roots
// themselves are created by the caller.
func (r *Incremental) Run(ctx context.Context) error {
	return walk.Walk(ctx, r.srcRoot, r)
}

// match compares src against its counterpart in the reference tree. A
// missing reference entry or an incompatible kind (file became
// directory or vice versa) resolves to NO-MATCH; any other stat
// failure is fatal.
func (r *Incremental) match(src Entry) (bool, error) {
	refPath, err := Rebase(src.Path, r.srcRoot, r.refRoot)
	if err != nil {
		return false, err
	}

	ref, err := Lstat(refPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) ||
			errors.Is(err, unix.ENOTDIR) ||
			errors.Is(err, unix.EISDIR) {
			return false, nil
		}
		return false, err
	}

	if classify.FromMode(ref.Mode) != classify.FromMode(src.Mode) {
		return false, nil
	}
	return src.SameInode(ref), nil
}

func (r *Incremental) destPaths(path string) (dst, prevDst string, err error) {
	dst, err = Rebase(path, r.srcRoot, r.dstRoot)
	if err != nil {
		return "", "", err
	}
	prevDst, err = Rebase(dst, r.dstRoot, r.prevDstRoot)
	if err != nil {
		return "", "", err
	}
	return dst, prevDst, nil
}

func (r *Incremental) OnDirectory(ctx context.Context, path string) error {
	src, err := Lstat(path)
	if err != nil {
		return err
	}
	matched, err := r.match(src)
	if err != nil {
		return err
	}
	dst, prevDst, err := r.destPaths(path)
	if err != nil {
		return err
	}

	if matched && r.dirLinks {
		// One link stands in for the whole unchanged subtree; nothing
		// below it is walked.
		return r.ops.MakeHardLink(dst, prevDst)
	}

	// Without directory hard links an unchanged directory is still
	// materialized fresh so its children can be linked individually.
	if err := r.ops.MakeDir(src, dst); err != nil {
		return err
	}
	return walk.Walk(ctx, path, r)
}

func (r *Incremental) OnFile(_ context.Context, path string) error {
	src, err := Lstat(path)
	if err != nil {
		return err
	}
	matched, err := r.match(src)
	if err != nil {
		return err
	}
	dst, prevDst, err := r.destPaths(path)
	if err != nil {
		return err
	}

	if matched {
		return r.ops.MakeHardLink(dst, prevDst)
	}
	return r.ops.CopyFile(src, dst)
}

func (r *Incremental) OnSymlink(_ context.Context, path string) error {
	src, err := Lstat(path)
	if err != nil {
		return err
	}
	matched, err := r.match(src)
	if err != nil {
		return err
	}
	dst, prevDst, err := r.destPaths(path)
	if err != nil {
		return err
	}

	if matched {
		return r.ops.MakeHardLink(dst, prevDst)
	}

	target, err := os.Readlink(path)
	if err != nil {
		return fmt.Errorf("readlink %s: %w", path, err)
	}
	return r.ops.MakeSymlink(src, target, dst)
}
