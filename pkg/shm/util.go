package shm

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
)

// canCreateOnDevShm checks that /dev/shm's tmpfs has enough free space for
// a region of the given size before CreateOrReplace attempts to truncate
// it, turning an ENOSPC deep inside a syscall into an actionable error.
func canCreateOnDevShm(size int) error {
	usage, err := disk.Usage("/dev/shm")
	if err != nil {
		// /dev/shm is absent or unreadable (e.g. non-Linux CI sandbox);
		// let the subsequent mmap attempt surface the real error instead
		// of failing a precheck we can't actually evaluate here.
		return nil
	}
	if usage.Free < uint64(size) {
		return fmt.Errorf("/dev/shm has %d bytes free, need %d", usage.Free, size)
	}
	return nil
}
