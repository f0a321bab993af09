//go:build windows

package shm

import (
	"context"
)

// MapRegion is not implemented on Windows. The fabric's named-region
// naming scheme (a plain /dev/shm path) has no Windows equivalent wired
// up yet; CreateFileMapping/MapViewOfFile would need a registry of named
// kernel objects analogous to /dev/shm, which is out of scope here.
func MapRegion(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	return nil, ErrUnsupportedPlatform
}

// UnmapRegion is not implemented on Windows, see MapRegion.
func UnmapRegion(ctx context.Context, region *MappedRegion) error {
	return ErrUnsupportedPlatform
}

// RemoveRegion is not implemented on Windows, see MapRegion.
func RemoveRegion(name string) error {
	return ErrUnsupportedPlatform
}

// RegionExists is not implemented on Windows, see MapRegion.
func RegionExists(name string) bool {
	return false
}
