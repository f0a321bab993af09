package node

import (
	"unsafe"

	internalshm "github.com/oatfabric/shmdf/internal/shm"
)

// SinkState is the node's writer-side state (spec §4.2).
type SinkState uint32

const (
	StateUndefined SinkState = iota
	StateSinkBound
	StateSourceWait
	StateEnd
)

func (s SinkState) String() string {
	switch s {
	case StateUndefined:
		return "Undefined"
	case StateSinkBound:
		return "SinkBound"
	case StateSourceWait:
		return "SourceWait"
	case StateEnd:
		return "End"
	default:
		return "Unknown"
	}
}

// Control block byte layout. Every multi-byte field is accessed through
// sync/atomic (via internal/shm) because the backing memory is shared
// across process boundaries — mirrors the fixed-offset header layout in
// the teacher's bufferSlice (cap/size/start/next/flag), generalized to
// the node's own fields.
const (
	offsetReady            = 0  // uint32, written last, readyMagic once initialized
	offsetSinkState        = 4  // uint32, SinkState
	offsetMutexOwner       = 8  // int32, pid of mutex holder or 0
	offsetSourceCount      = 12 // uint32
	offsetAcknowledgements = 16 // uint32
	offsetEndOfStream      = 20 // uint32, 0 or 1
	_                      = 24 // padding to keep sampleNumber 8-byte aligned
	offsetSampleNumber     = 32 // uint64
	offsetDescKind         = 40 // uint32
	offsetDescRows         = 44 // uint32
	offsetDescCols         = 48 // uint32
	offsetDescPixelFormat  = 52 // uint32
	offsetDescElemSize     = 56 // uint32
	offsetDescRecordSize   = 60 // uint32
	offsetPayloadLen       = 64 // uint32, size of the payload slot in bytes
	offsetSinkPid          = 68 // int32, pid recorded at Bind, for exclusivity checks
	offsetSourceRoster     = 72 // uint32[MaxSources], pid per slot, 0 means free

	// MaxSources bounds how many Sources may be concurrently attached to
	// a single node. The roster exists so a Sink can notice a Source
	// that crashed without calling Close, rather than block forever on
	// an acknowledgement that will never arrive (spec §4.4 edge case).
	MaxSources = 8

	// ControlBlockSize is the number of bytes reserved for the control
	// block ahead of the payload slot. Rounded up to a cache-line
	// multiple, leaving headroom for future fields without an on-disk
	// format break.
	ControlBlockSize = 128

	readyMagic uint32 = 0x53484D44 // "SHMD"
)

// controlBlock is a thin view over a mapped region's first
// ControlBlockSize bytes. It never copies: every accessor reads or
// writes the backing mmap directly.
type controlBlock struct {
	mem []byte
}

func newControlBlock(mem []byte) *controlBlock {
	return &controlBlock{mem: mem}
}

func (c *controlBlock) ptr(offset int) unsafe.Pointer {
	return unsafe.Pointer(&c.mem[offset])
}

func (c *controlBlock) isReady() bool {
	return internalshm.AtomicLoadUint32(c.ptr(offsetReady)) == readyMagic
}

func (c *controlBlock) markReady() {
	internalshm.AtomicStoreUint32(c.ptr(offsetReady), readyMagic)
}

func (c *controlBlock) state() SinkState {
	return SinkState(internalshm.AtomicLoadUint32(c.ptr(offsetSinkState)))
}

func (c *controlBlock) setState(s SinkState) {
	internalshm.AtomicStoreUint32(c.ptr(offsetSinkState), uint32(s))
}

func (c *controlBlock) sourceCount() uint32 {
	return internalshm.AtomicLoadUint32(c.ptr(offsetSourceCount))
}

func (c *controlBlock) addSourceCount(delta int32) uint32 {
	if delta >= 0 {
		return internalshm.AtomicAddUint32(c.ptr(offsetSourceCount), uint32(delta))
	}
	return internalshm.AtomicAddUint32(c.ptr(offsetSourceCount), ^uint32(-delta-1))
}

func (c *controlBlock) acknowledgements() uint32 {
	return internalshm.AtomicLoadUint32(c.ptr(offsetAcknowledgements))
}

func (c *controlBlock) setAcknowledgements(v uint32) {
	internalshm.AtomicStoreUint32(c.ptr(offsetAcknowledgements), v)
}

func (c *controlBlock) incAcknowledgements() uint32 {
	return internalshm.AtomicAddUint32(c.ptr(offsetAcknowledgements), 1)
}

func (c *controlBlock) endOfStream() bool {
	return internalshm.AtomicLoadUint32(c.ptr(offsetEndOfStream)) != 0
}

func (c *controlBlock) setEndOfStream() {
	internalshm.AtomicStoreUint32(c.ptr(offsetEndOfStream), 1)
}

func (c *controlBlock) sampleNumber() uint64 {
	return internalshm.AtomicLoadUint64(c.ptr(offsetSampleNumber))
}

func (c *controlBlock) incSampleNumber() uint64 {
	return internalshm.AtomicAddUint64(c.ptr(offsetSampleNumber), 1)
}

func (c *controlBlock) payloadLen() uint32 {
	return internalshm.AtomicLoadUint32(c.ptr(offsetPayloadLen))
}

func (c *controlBlock) setPayloadLen(n uint32) {
	internalshm.AtomicStoreUint32(c.ptr(offsetPayloadLen), n)
}

// payload returns the fixed-size buffer following the control block.
func (c *controlBlock) payload() []byte {
	n := int(c.payloadLen())
	return c.mem[ControlBlockSize : ControlBlockSize+n]
}

func (c *controlBlock) descriptor() Descriptor {
	return Descriptor{
		Kind:        DescriptorKind(internalshm.AtomicLoadUint32(c.ptr(offsetDescKind))),
		Rows:        internalshm.AtomicLoadUint32(c.ptr(offsetDescRows)),
		Cols:        internalshm.AtomicLoadUint32(c.ptr(offsetDescCols)),
		PixelFormat: PixelFormat(internalshm.AtomicLoadUint32(c.ptr(offsetDescPixelFormat))),
		ElemSize:    internalshm.AtomicLoadUint32(c.ptr(offsetDescElemSize)),
		RecordSize:  internalshm.AtomicLoadUint32(c.ptr(offsetDescRecordSize)),
	}
}

// writeDescriptor is only ever called once, by the Sink that binds the
// node, before the ready flag is set — no atomicity is required, but we
// keep the same accessors for symmetry.
func (c *controlBlock) writeDescriptor(d Descriptor) {
	internalshm.AtomicStoreUint32(c.ptr(offsetDescKind), uint32(d.Kind))
	internalshm.AtomicStoreUint32(c.ptr(offsetDescRows), d.Rows)
	internalshm.AtomicStoreUint32(c.ptr(offsetDescCols), d.Cols)
	internalshm.AtomicStoreUint32(c.ptr(offsetDescPixelFormat), uint32(d.PixelFormat))
	internalshm.AtomicStoreUint32(c.ptr(offsetDescElemSize), d.ElemSize)
	internalshm.AtomicStoreUint32(c.ptr(offsetDescRecordSize), d.RecordSize)
}

func (c *controlBlock) sinkPid() int32 {
	return int32(internalshm.AtomicLoadUint32(c.ptr(offsetSinkPid)))
}

func (c *controlBlock) setSinkPid(pid int32) {
	internalshm.AtomicStoreUint32(c.ptr(offsetSinkPid), uint32(pid))
}

func (c *controlBlock) rosterSlot(i int) unsafe.Pointer {
	return c.ptr(offsetSourceRoster + i*4)
}

// registerSource claims the first free roster slot for pid, returning
// its index. ok is false if every slot is already taken.
func (c *controlBlock) registerSource(pid int32) (slot int, ok bool) {
	for i := 0; i < MaxSources; i++ {
		if internalshm.AtomicCompareAndSwapUint32(c.rosterSlot(i), 0, uint32(pid)) {
			return i, true
		}
	}
	return 0, false
}

// releaseSource frees a roster slot claimed by registerSource.
func (c *controlBlock) releaseSource(slot int) {
	internalshm.AtomicStoreUint32(c.rosterSlot(slot), 0)
}

// sourcePids returns the pids of every currently registered Source.
func (c *controlBlock) sourcePids() []int32 {
	pids := make([]int32, 0, MaxSources)
	for i := 0; i < MaxSources; i++ {
		if pid := internalshm.AtomicLoadUint32(c.rosterSlot(i)); pid != 0 {
			pids = append(pids, int32(pid))
		}
	}
	return pids
}

// --- robust spinlock mutex, owner-pid based ---

// tryLock attempts to acquire the control block's mutex for pid, without
// blocking. It returns the current owner's pid on failure (0 means the
// lock was free but the CAS lost a race; retry).
func (c *controlBlock) tryLock(pid int32) (acquired bool, owner int32) {
	ptr := c.ptr(offsetMutexOwner)
	if internalshm.AtomicCompareAndSwapUint32(ptr, 0, uint32(pid)) {
		return true, pid
	}
	return false, int32(internalshm.AtomicLoadUint32(ptr))
}

// unlock releases the mutex. pid must match the current owner; a
// mismatch means the lock was already stolen from a dead owner, and
// unlock is a no-op in that case (the new owner is responsible).
func (c *controlBlock) unlock(pid int32) {
	internalshm.AtomicCompareAndSwapUint32(c.ptr(offsetMutexOwner), uint32(pid), 0)
}

// stealLock force-acquires the mutex from a dead owner. Called only
// after PeerLivenessInterval confirms the owning pid is gone.
func (c *controlBlock) stealLock(deadOwner, newOwner int32) bool {
	return internalshm.AtomicCompareAndSwapUint32(c.ptr(offsetMutexOwner), uint32(deadOwner), uint32(newOwner))
}

func (c *controlBlock) lockOwner() int32 {
	return int32(internalshm.AtomicLoadUint32(c.ptr(offsetMutexOwner)))
}
