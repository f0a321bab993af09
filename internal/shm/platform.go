// Package shm contains platform-specific helpers backing the shared memory
// region allocator in pkg/shm. Callers never use this package directly.
package shm

import "errors"

// ErrUnsupportedPlatform is returned by platforms that have no shared
// memory mapping implementation yet.
var ErrUnsupportedPlatform = errors.New("shm: unsupported platform")

// MappedRegion is a memory-mapped shared region together with enough
// bookkeeping to unmap and, if it owns the backing object, remove it.
type MappedRegion struct {
	Addr []byte
	Name string

	fd       int
	memFd    bool
	unlinked bool
}

// Bytes returns the full mapped region.
func (r *MappedRegion) Bytes() []byte { return r.Addr }

// Fd returns the backing file descriptor, valid for passing to a child
// process via os.Process.ExtraFiles when MapOptions.MemFd was set.
func (r *MappedRegion) Fd() int { return r.fd }

// MapOptions describes how to map or create a shared region.
type MapOptions struct {
	// Name identifies the region. For a /dev/shm-backed region this is a
	// filename under /dev/shm; for a memfd-backed region it is only used
	// as the memfd's debug label.
	Name string
	// Size is the region size in bytes.
	Size int
	// Create creates the region (truncating to Size) if it does not
	// already exist. When false, Open fails with os.ErrNotExist if the
	// region is missing.
	Create bool
	// MemFd requests an anonymous memfd_create-backed region instead of
	// a named file under /dev/shm. Linux only.
	MemFd bool
}

// Function implementations (MapRegion, UnmapRegion, RemoveRegion) are
// provided in platform_linux.go / platform_windows.go.
