//go:build darwin

package replicate

import (
	"syscall"
	"time"
)

// atimeFromStat returns the access time from a syscall.Stat_t.
func atimeFromStat(stat *syscall.Stat_t) time.Time {
	return time.Unix(stat.Atimespec.Sec, stat.Atimespec.Nsec)
}

// devFromStat returns the device number from a syscall.Stat_t.
func devFromStat(stat *syscall.Stat_t) uint64 {
	return uint64(stat.Dev) //nolint:gosec // G115: dev_t is int32 on darwin, always non-negative
}
