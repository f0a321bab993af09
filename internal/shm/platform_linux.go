//go:build linux

package shm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// MapRegion maps or creates a shared memory region (Linux implementation).
//
// A non-MemFd region lives at /dev/shm/<Name> so that unrelated processes
// on the host can open it by name; a MemFd region has no filesystem
// presence and is only reachable by handing its fd to a child process.
func MapRegion(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	if opts.MemFd {
		return mapMemFdRegion(opts)
	}
	return mapFileRegion(opts)
}

func mapFileRegion(opts MapOptions) (*MappedRegion, error) {
	flags := unix.O_RDWR
	if opts.Create {
		flags |= unix.O_CREAT
	}
	shmPath := filepath.Join("/dev/shm", opts.Name)
	fd, err := unix.Open(shmPath, flags, 0600)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", shmPath, err)
	}
	size := opts.Size
	if opts.Create {
		if err := unix.Ftruncate(fd, int64(size)); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("ftruncate %s: %w", shmPath, err)
		}
	} else {
		// The opener doesn't necessarily know the creator's declared
		// payload size (it is itself stored inside the region); map the
		// file's real size rather than require callers to guess it.
		var st unix.Stat_t
		if err := unix.Fstat(fd, &st); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("fstat %s: %w", shmPath, err)
		}
		size = int(st.Size)
	}
	addr, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("mmap %s: %w", shmPath, err)
	}
	return &MappedRegion{
		Addr: addr,
		Name: opts.Name,
		fd:   fd,
	}, nil
}

func mapMemFdRegion(opts MapOptions) (*MappedRegion, error) {
	fd, err := unix.MemfdCreate(opts.Name, 0)
	if err != nil {
		return nil, fmt.Errorf("memfd_create %s: %w", opts.Name, err)
	}
	if err := unix.Ftruncate(fd, int64(opts.Size)); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("ftruncate memfd %s: %w", opts.Name, err)
	}
	addr, err := unix.Mmap(fd, 0, opts.Size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("mmap memfd %s: %w", opts.Name, err)
	}
	return &MappedRegion{
		Addr:  addr,
		Name:  opts.Name,
		fd:    fd,
		memFd: true,
	}, nil
}

// UnmapRegion unmaps and closes the shared memory region (Linux
// implementation). It does not remove the backing object — use
// RemoveRegion for that.
func UnmapRegion(ctx context.Context, region *MappedRegion) error {
	if region == nil || region.Addr == nil {
		return nil
	}
	if err := unix.Munmap(region.Addr); err != nil {
		return fmt.Errorf("munmap %s: %w", region.Name, err)
	}
	region.Addr = nil
	if region.fd >= 0 {
		if err := unix.Close(region.fd); err != nil {
			return fmt.Errorf("close %s: %w", region.Name, err)
		}
	}
	return nil
}

// RemoveRegion unlinks a named region from /dev/shm. It is a no-op for
// memfd-backed regions, which have no filesystem presence, and is
// idempotent: removing an already-absent region is not an error.
func RemoveRegion(name string) error {
	shmPath := filepath.Join("/dev/shm", name)
	if err := os.Remove(shmPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", shmPath, err)
	}
	return nil
}

// RegionExists reports whether a named /dev/shm region is present.
func RegionExists(name string) bool {
	_, err := os.Stat(filepath.Join("/dev/shm", name))
	return err == nil
}
