// Package replicate copies snapshot trees between volumes. The initial
// replicator materializes a full tree; the incremental replicator
// compares each entry's inode identity against a reference tree and
// reproduces unchanged entries as hard links into the previous
// snapshot's destination, preserving the archive's dedup topology.
package replicate

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// Entry is the lstat view of a filesystem object. Ino/Dev form the
// inode identity used for hard-link detection.
type Entry struct {
	Path    string
	Ino     uint64
	Dev     uint64
	UID     uint32
	GID     uint32
	Mode    os.FileMode
	Size    int64
	ModTime time.Time
	AccTime time.Time
}

// SameInode reports whether two entries refer to the same underlying
// storage object.
func (e Entry) SameInode(other Entry) bool {
	return e.Ino == other.Ino && e.Dev == other.Dev
}

// Lstat stats path without following symlinks and extracts the fields
// the replication decision needs.
func Lstat(path string) (Entry, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Entry{}, fmt.Errorf("lstat %s: %w", path, err)
	}

	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return Entry{}, fmt.Errorf("unsupported stat type for %s", path)
	}

	return Entry{
		Path:    path,
		Ino:     stat.Ino,
		Dev:     devFromStat(stat),
		UID:     stat.Uid,
		GID:     stat.Gid,
		Mode:    info.Mode(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		AccTime: atimeFromStat(stat),
	}, nil
}
