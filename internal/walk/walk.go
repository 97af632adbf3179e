// Package walk enumerates the immediate children of a directory and
// dispatches each entry to a visitor by kind. The walker itself never
// recurses: a directory visitor that wants the subtree calls Walk again
// on the directory it was handed, which lets it skip whole subtrees
// (for example when one hard link replaces the entire directory).
package walk

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mwaldron/snapshift/internal/classify"
)

// Visitor receives one callback per directory entry.
type Visitor interface {
	OnDirectory(ctx context.Context, path string) error
	OnFile(ctx context.Context, path string) error
	OnSymlink(ctx context.Context, path string) error
}

// Walk lists the immediate children of dir and dispatches each to v.
// Entries of unsupported kinds are logged and skipped; a listing or
// classification failure aborts the walk.
func Walk(ctx context.Context, dir string, v Visitor) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("readdir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(dir, entry.Name())
		kind, err := classify.Classify(path)
		if err != nil {
			return err
		}

		switch kind {
		case classify.Directory:
			err = v.OnDirectory(ctx, path)
		case classify.RegularFile:
			err = v.OnFile(ctx, path)
		case classify.Symlink:
			err = v.OnSymlink(ctx, path)
		default:
			slog.Warn("skipping unsupported entry", "path", path)
			continue
		}
		if err != nil {
			return err
		}
	}

	return nil
}
