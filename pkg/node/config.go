package node

import (
	"time"

	"github.com/oatfabric/shmdf/pkg/shm"
)

// MemMapType re-exports shm.MemMapType so callers never need to import
// pkg/shm directly just to pick a backing strategy.
type MemMapType = shm.MemMapType

const (
	MemMapTypeDevShmFile = shm.MemMapTypeDevShmFile
	MemMapTypeMemFd      = shm.MemMapTypeMemFd
)

// Config carries the tunables shared by every Sink and Source in a
// process. There is no file or environment-variable binding for it —
// like the teacher's own Config, callers build one with DefaultConfig
// and override fields directly.
type Config struct {
	// MemMapType selects how the underlying region is backed.
	MemMapType MemMapType

	// PayloadSlack is added to the caller-declared payload size when a
	// Sink binds a node, leaving headroom for descriptor growth without
	// forcing every caller to round up by hand.
	PayloadSlack int

	// TouchBackoffFloor is the initial retry interval a Source waits
	// between attempts to find a node that does not exist yet.
	TouchBackoffFloor time.Duration
	// TouchBackoffCeiling caps the exponential backoff interval.
	TouchBackoffCeiling time.Duration
	// TouchTimeout bounds the total time Source.Touch will wait for a
	// node to appear before failing with ErrTimeout.
	TouchTimeout time.Duration

	// WaitBackoffFloor and WaitBackoffCeiling bound the polling interval
	// used by Sink.Wait/Source.Wait while blocked on the control block's
	// condition fields (see DESIGN.md for why this is polling rather
	// than a true cross-process condition variable).
	WaitBackoffFloor   time.Duration
	WaitBackoffCeiling time.Duration

	// PeerLivenessInterval is how often a blocked Wait call verifies
	// that the peer it is waiting on is still alive, via gopsutil's
	// process table, before declaring the node Poisoned.
	PeerLivenessInterval time.Duration
}

// DefaultConfig returns the fabric's default tunables.
func DefaultConfig() *Config {
	return &Config{
		MemMapType:           MemMapTypeDevShmFile,
		PayloadSlack:         4096,
		TouchBackoffFloor:    5 * time.Millisecond,
		TouchBackoffCeiling:  250 * time.Millisecond,
		TouchTimeout:         5 * time.Second,
		WaitBackoffFloor:     50 * time.Microsecond,
		WaitBackoffCeiling:   20 * time.Millisecond,
		PeerLivenessInterval: 200 * time.Millisecond,
	}
}
