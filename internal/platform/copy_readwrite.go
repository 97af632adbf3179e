package platform

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

const bufferSize = 1 << 20 // 1 MiB

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, bufferSize)
		return &b
	},
}

// copyReadWrite copies data using pread/pwrite with a pooled buffer.
func copyReadWrite(params CopyParams) (CopyResult, error) {
	srcFd, err := os.Open(params.SrcPath)
	if err != nil {
		return CopyResult{}, err
	}
	defer srcFd.Close()

	bufp := bufPool.Get().(*[]byte)
	defer bufPool.Put(bufp)
	buf := *bufp

	var offset int64
	var totalWritten int64
	srcRawFd := int(srcFd.Fd())
	dstRawFd := int(params.DstFd.Fd())

	for {
		n, err := unix.Pread(srcRawFd, buf, offset)
		if err != nil {
			return CopyResult{BytesWritten: totalWritten, Method: ReadWrite}, err
		}
		if n == 0 {
			break
		}

		written := 0
		for written < n {
			w, err := unix.Pwrite(dstRawFd, buf[written:n], offset+int64(written))
			if err != nil {
				return CopyResult{BytesWritten: totalWritten + int64(written), Method: ReadWrite}, err
			}
			written += w
		}

		offset += int64(n)
		totalWritten += int64(n)
	}

	return CopyResult{BytesWritten: totalWritten, Method: ReadWrite}, nil
}

// CopyReadWrite is the exported fallback strategy, usable directly in tests.
func CopyReadWrite(params CopyParams) (CopyResult, error) {
	return copyReadWrite(params)
}

// isFallbackErr returns true if err should trigger a fallback to the next copy strategy.
func isFallbackErr(err error) bool {
	switch err {
	case unix.ENOSYS, unix.EXDEV, unix.EINVAL, unix.ENOTSUP:
		return true
	}
	// Also handle wrapped errors.
	if e, ok := err.(*os.PathError); ok {
		return isFallbackErr(e.Err)
	}
	return false
}
