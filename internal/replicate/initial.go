package replicate

import (
	"context"
	"fmt"
	"os"

	"github.com/mwaldron/snapshift/internal/walk"
)

// Config carries the fixed state for one snapshot traversal.
type Config struct {
	SrcRoot     string
	DstRoot     string
	RefRoot     string // incremental only: previous snapshot's source tree
	PrevDstRoot string // incremental only: previous snapshot's destination
	DirLinks    bool   // incremental only: hard-link matched directories
	Ops         *Ops
}

// Initial copies an entire snapshot tree unconditionally. It is used
// for the first snapshot, which has no reference tree to compare
// against.
type Initial struct {
	srcRoot string
	dstRoot string
	ops     *Ops
}

// NewInitial creates the initial-snapshot replicator.
func NewInitial(cfg Config) *Initial {
	return &Initial{
		srcRoot: cfg.SrcRoot,
		dstRoot: cfg.DstRoot,
		ops:     cfg.Ops,
	}
}

// Run replicates the tree rooted at SrcRoot into DstRoot. The roots
// themselves are created by the caller.
func (r *Initial) Run(ctx context.Context) error {
	return walk.Walk(ctx, r.srcRoot, r)
}

func (r *Initial) OnDirectory(ctx context.Context, path string) error {
	src, err := Lstat(path)
	if err != nil {
		return err
	}
	dst, err := Rebase(path, r.srcRoot, r.dstRoot)
	if err != nil {
		return err
	}

	if err := r.ops.MakeDir(src, dst); err != nil {
		return err
	}
	return walk.Walk(ctx, path, r)
}

func (r *Initial) OnFile(_ context.Context, path string) error {
	src, err := Lstat(path)
	if err != nil {
		return err
	}
	dst, err := Rebase(path, r.srcRoot, r.dstRoot)
	if err != nil {
		return err
	}

	return r.ops.CopyFile(src, dst)
}

func (r *Initial) OnSymlink(_ context.Context, path string) error {
	src, err := Lstat(path)
	if err != nil {
		return err
	}
	target, err := os.Readlink(path)
	if err != nil {
		return fmt.Errorf("readlink %s: %w", path, err)
	}
	dst, err := Rebase(path, r.srcRoot, r.dstRoot)
	if err != nil {
		return err
	}

	return r.ops.MakeSymlink(src, target, dst)
}
