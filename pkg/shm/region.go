package shm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	internalshm "github.com/oatfabric/shmdf/internal/shm"
)

// MemMapType selects the backing strategy for a region.
type MemMapType int

const (
	// MemMapTypeDevShmFile backs the region with a named file under
	// /dev/shm, visible to any process that knows the address.
	MemMapTypeDevShmFile MemMapType = iota
	// MemMapTypeMemFd backs the region with an anonymous memfd_create
	// object with no filesystem presence; only reachable by a child
	// process that inherited the fd.
	MemMapTypeMemFd
)

var (
	// ErrAddressInUse names the "address already owned by a live Sink"
	// condition. No function in this package returns it: CreateOrReplace
	// always replaces an existing region, and the exclusivity check
	// against the control block lives in pkg/node.
	ErrAddressInUse = errors.New("shm: address in use")
	// ErrNotFound is returned by Open for a memfd region, which cannot be
	// opened by name, or when its retries give up before the context is
	// done (a context that ends first yields ErrTimeout).
	ErrNotFound = errors.New("shm: region not found")
	// ErrAllocFailed wraps a failure to create or map a region.
	ErrAllocFailed = errors.New("shm: allocation failed")
	// ErrTimeout is returned by Open when it exceeds its deadline.
	ErrTimeout = errors.New("shm: timed out waiting for region")
)

// Region is a mapped, named shared memory region.
type Region struct {
	mapped     *internalshm.MappedRegion
	name       string
	size       int
	memMapType MemMapType
}

// Name returns the region's address.
func (r *Region) Name() string { return r.name }

// Size returns the region's size in bytes.
func (r *Region) Size() int { return r.size }

// Bytes returns the full mapped region, control block header and payload
// slot together.
func (r *Region) Bytes() []byte { return r.mapped.Bytes() }

// Fd returns the backing file descriptor. Only meaningful for
// MemMapTypeMemFd regions that a caller intends to hand to a child
// process via os.Process.ExtraFiles.
func (r *Region) Fd() int { return r.mapped.Fd() }

// MemMapType reports how the region is backed.
func (r *Region) MemMapType() MemMapType { return r.memMapType }

// Unmap releases this process's mapping of the region without removing
// the underlying named object. Safe to call multiple times.
func (r *Region) Unmap() error {
	if r == nil || r.mapped == nil {
		return nil
	}
	return internalshm.UnmapRegion(context.Background(), r.mapped)
}

// CreateOrReplace creates a new region of size bytes at name, first
// removing any stale region left behind by a crashed prior run (spec
// §4.1, §6 invariant 6, SC-5 crash recovery). MemMapTypeMemFd regions
// have no prior residue to clear since they are never named on disk.
func CreateOrReplace(ctx context.Context, name string, size int, memMapType MemMapType) (*Region, error) {
	if memMapType == MemMapTypeDevShmFile {
		if err := internalshm.RemoveRegion(name); err != nil {
			return nil, fmt.Errorf("%w: clearing stale region %s: %v", ErrAllocFailed, name, err)
		}
		if err := canCreateOnDevShm(size); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAllocFailed, err)
		}
	}
	mapped, err := internalshm.MapRegion(ctx, internalshm.MapOptions{
		Name:   name,
		Size:   size,
		Create: true,
		MemFd:  memMapType == MemMapTypeMemFd,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllocFailed, err)
	}
	return &Region{mapped: mapped, name: name, size: size, memMapType: memMapType}, nil
}

// Open blocks, retrying with exponential backoff, until the named region
// exists, then maps it at its creator's declared size (discovered via
// fstat, not passed by the caller — an opener cannot know the payload
// size the Sink chose before mapping the region that stores it). It does
// not inspect the control block inside the region — pkg/node polls the
// ready flag itself once the mapping succeeds. ctx bounds the total wait.
func Open(ctx context.Context, name string, memMapType MemMapType) (*Region, error) {
	if memMapType == MemMapTypeMemFd {
		// A memfd has no name to wait on; the caller must already hold
		// the fd (typically inherited from a parent process).
		return nil, fmt.Errorf("%w: memfd regions cannot be opened by name", ErrNotFound)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	bctx := backoff.WithContext(b, ctx)

	var mapped *internalshm.MappedRegion
	op := func() error {
		if !internalshm.RegionExists(name) {
			return fmt.Errorf("region %s not yet present", name)
		}
		m, err := internalshm.MapRegion(ctx, internalshm.MapOptions{Name: name})
		if err != nil {
			return err
		}
		mapped = m
		return nil
	}

	if err := backoff.Retry(op, bctx); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, name)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, name, err)
	}
	return &Region{mapped: mapped, name: name, size: len(mapped.Bytes()), memMapType: memMapType}, nil
}

// Exists reports whether a named region is currently present, without
// blocking. Used by Sink.Bind to distinguish a live address (fails with
// ErrAddressInUse) from stale residue left by a crashed prior run (safe
// to reclaim).
func Exists(name string) bool {
	return internalshm.RegionExists(name)
}

// Remove unlinks a named region. It is idempotent — removing an
// already-absent region is not an error (spec §9 open question (a)).
func Remove(name string) error {
	return internalshm.RemoveRegion(name)
}
