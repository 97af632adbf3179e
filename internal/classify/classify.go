package classify

import (
	"fmt"
	"os"
)

// Kind is the coarse classification of a directory entry.
type Kind int

const (
	Directory Kind = iota + 1
	RegularFile
	Symlink
	Unsupported // device nodes, sockets, fifos, ...
)

var kindNames = [...]string{
	Directory:   "directory",
	RegularFile: "file",
	Symlink:     "symlink",
	Unsupported: "unsupported",
}

func (k Kind) String() string {
	if k > 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Classify reports the kind of the entry at path without following
// symbolic links. A failed lstat is returned as an error; a partially
// seen tree cannot be reasoned about, so callers treat it as fatal.
func Classify(path string) (Kind, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return 0, fmt.Errorf("lstat %s: %w", path, err)
	}
	return FromMode(info.Mode()), nil
}

// FromMode maps a file mode to a Kind.
func FromMode(mode os.FileMode) Kind {
	switch {
	case mode.IsDir():
		return Directory
	case mode&os.ModeSymlink != 0:
		return Symlink
	case mode.IsRegular():
		return RegularFile
	default:
		return Unsupported
	}
}
