//go:build linux

package replicate

import (
	"syscall"
	"time"
)

// atimeFromStat returns the access time from a syscall.Stat_t.
func atimeFromStat(stat *syscall.Stat_t) time.Time {
	return time.Unix(stat.Atim.Sec, stat.Atim.Nsec)
}

// devFromStat returns the device number from a syscall.Stat_t.
func devFromStat(stat *syscall.Stat_t) uint64 {
	return stat.Dev
}
