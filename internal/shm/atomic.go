package shm

import (
	"sync/atomic"
	"unsafe"
)

// The control block lives in a memory-mapped region shared across process
// boundaries, so every multi-byte field it holds must be read and written
// through sync/atomic rather than plain loads/stores — the Go memory model
// only gives ordering guarantees for atomic operations, and nothing about
// the mapped bytes tells the compiler they are shared.

// AtomicLoadUint64 loads a uint64 from shared memory atomically.
func AtomicLoadUint64(addr unsafe.Pointer) uint64 {
	return atomic.LoadUint64((*uint64)(addr))
}

// AtomicStoreUint64 stores a uint64 to shared memory atomically.
func AtomicStoreUint64(addr unsafe.Pointer, val uint64) {
	atomic.StoreUint64((*uint64)(addr), val)
}

// AtomicAddUint64 adds delta to a uint64 in shared memory and returns the
// new value.
func AtomicAddUint64(addr unsafe.Pointer, delta uint64) uint64 {
	return atomic.AddUint64((*uint64)(addr), delta)
}

// AtomicCompareAndSwapUint64 atomically compares and swaps a uint64 in shared memory.
func AtomicCompareAndSwapUint64(addr unsafe.Pointer, old, new uint64) bool {
	return atomic.CompareAndSwapUint64((*uint64)(addr), old, new)
}

// AtomicLoadUint32 loads a uint32 from shared memory atomically.
func AtomicLoadUint32(addr unsafe.Pointer) uint32 {
	return atomic.LoadUint32((*uint32)(addr))
}

// AtomicStoreUint32 stores a uint32 to shared memory atomically.
func AtomicStoreUint32(addr unsafe.Pointer, val uint32) {
	atomic.StoreUint32((*uint32)(addr), val)
}

// AtomicCompareAndSwapUint32 atomically compares and swaps a uint32 in shared memory.
func AtomicCompareAndSwapUint32(addr unsafe.Pointer, old, new uint32) bool {
	return atomic.CompareAndSwapUint32((*uint32)(addr), old, new)
}

// AtomicAddUint32 adds delta to a uint32 in shared memory and returns the
// new value.
func AtomicAddUint32(addr unsafe.Pointer, delta uint32) uint32 {
	return atomic.AddUint32((*uint32)(addr), delta)
}
