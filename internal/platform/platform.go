// Package platform provides kernel-accelerated file content copies.
// Snapshot archives are full of small unchanged files on the first
// snapshot; copy_file_range/sendfile/clonefile avoid bouncing their
// bytes through userspace where the kernel allows it.
package platform

import "os"

// CopyMethod identifies which syscall/strategy was used for a copy.
type CopyMethod int

const (
	ReadWrite     CopyMethod = iota
	CopyFileRange            // Linux copy_file_range(2)
	Sendfile                 // Linux sendfile(2)
	IOURing                  // Linux io_uring
	Clonefile                // macOS clonefile(2)
)

func (m CopyMethod) String() string {
	switch m {
	case ReadWrite:
		return "read_write"
	case CopyFileRange:
		return "copy_file_range"
	case Sendfile:
		return "sendfile"
	case IOURing:
		return "io_uring"
	case Clonefile:
		return "clonefile"
	default:
		return "unknown"
	}
}

// CopyResult reports the outcome of a copy operation.
type CopyResult struct {
	BytesWritten int64
	Method       CopyMethod
}

// CopyParams describes a whole-file content copy into an open
// destination descriptor.
type CopyParams struct {
	DstFd   *os.File
	SrcPath string
	Size    int64
}
