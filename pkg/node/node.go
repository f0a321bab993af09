// Package node implements the shared-memory dataflow fabric's rendezvous
// point: a named region holding one control block and one payload slot,
// and the Sink/Source endpoints that bind and attach to it.
package node

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/oatfabric/shmdf/internal/logx"
	"github.com/oatfabric/shmdf/pkg/audit"
	"github.com/oatfabric/shmdf/pkg/shm"
)

var log = logx.New("node", os.Stderr)

// regionSuffix and blockSuffix are the stable suffixes appended to a
// user-chosen address to derive, respectively, the OS-level shared
// memory object name and the in-region symbol name of the control
// block (spec §6). The fabric has exactly one symbol per region, so the
// block suffix is documentation more than a distinct name, but it is
// kept stable for implementations that introspect regions created by
// this package.
const (
	regionSuffix = ".shmdf.region"
	blockSuffix  = ".shmdf.block"
)

func regionName(address string) string { return address + regionSuffix }

// NodeState is returned by Source.Wait to distinguish a fresh sample
// from end-of-stream (spec §4.4).
type NodeState int

const (
	// StateRunning means a new sample is available to Retrieve.
	StateRunning NodeState = iota
	// StateEndReached means the node's Sink has set end_of_stream; no
	// further samples will ever be published.
	StateEndReached
)

// node is the shared state behind both Sink and Source handles. Each
// process-local handle owns its own node value — the fabric never
// exposes a process-wide singleton registry of addresses (spec §9,
// "Global mutable state").
type node struct {
	address string
	region  *shm.Region
	cb      *controlBlock
	cfg     *Config
	pid     int32

	poisoned atomic.Bool
}

func currentPid() int32 { return int32(os.Getpid()) }

func (n *node) checkPoisoned() error {
	if n.poisoned.Load() {
		return fmt.Errorf("%w: %s", ErrPoisoned, n.address)
	}
	return nil
}

func (n *node) poison(cause error) error {
	n.poisoned.Store(true)
	log.Errorf("node %s poisoned: %v", n.address, cause)
	poisonedCounter.WithLabelValues(n.address).Inc()
	audit.Record(audit.EventPoisoned, n.address, map[string]interface{}{"cause": cause.Error()})
	return fmt.Errorf("%w: %s: %w", ErrPoisoned, n.address, cause)
}

// withLock runs fn while holding the control block's spinlock, handling
// contention and dead-owner recovery (spec §4.4 edge case: a crashed
// peer must not block the survivor forever). It retries tryLock with a
// bounded exponential backoff, and escalates to ErrPeerDied/ErrPoisoned
// once the recorded owner has been unresponsive for longer than
// Config.PeerLivenessInterval and is confirmed dead via the process
// table.
func (n *node) withLock(ctx context.Context, fn func() error) error {
	if err := n.checkPoisoned(); err != nil {
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = n.cfg.WaitBackoffFloor
	b.MaxInterval = n.cfg.WaitBackoffCeiling
	b.Reset()

	var staleSince time.Time
	var staleOwner int32

	for {
		if acquired, owner := n.cb.tryLock(n.pid); acquired {
			err := fn()
			n.cb.unlock(n.pid)
			return err
		} else if owner != 0 {
			if owner != staleOwner {
				staleOwner = owner
				staleSince = timeNow()
			} else if timeNow().Sub(staleSince) > n.cfg.PeerLivenessInterval {
				if !pidAlive(owner) {
					if n.cb.stealLock(owner, n.pid) {
						n.cb.unlock(n.pid)
						return n.poison(fmt.Errorf("%w: mutex owner pid %d no longer running", ErrPeerDied, owner))
					}
				}
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrTimeout, n.address)
		case <-time.After(b.NextBackOff()):
		}
	}
}

// waitUntil polls check under the control block's lock, releasing it
// and backing off between attempts when check reports false. This is
// the fabric's substitute for the two inter-process condition variables
// the original spec describes (writer_cv/reader_cv): there is no
// cross-process condvar in the Go ecosystem, so Sink.Wait/Source.Wait
// both bottom out here.
func (n *node) waitUntil(ctx context.Context, check func() bool) error {
	return n.waitUntilWithLiveness(ctx, check, nil)
}

// waitUntilWithLiveness is waitUntil plus a periodic liveness probe run
// at most once per Config.PeerLivenessInterval while the wait is stalled.
// Sink.Wait uses this to notice a Source that vanished between
// operations — the common crash case, where the dead process was not
// holding the spinlock and so withLock's own dead-owner check never
// fires (spec §4.4 edge case). liveness may be nil.
func (n *node) waitUntilWithLiveness(ctx context.Context, check func() bool, liveness func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = n.cfg.WaitBackoffFloor
	b.MaxInterval = n.cfg.WaitBackoffCeiling
	b.Reset()

	var lastLivenessCheck time.Time
	for {
		satisfied := false
		if err := n.withLock(ctx, func() error {
			satisfied = check()
			return nil
		}); err != nil {
			return err
		}
		if satisfied {
			return nil
		}
		if liveness != nil && timeNow().Sub(lastLivenessCheck) > n.cfg.PeerLivenessInterval {
			lastLivenessCheck = timeNow()
			if err := liveness(); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrTimeout, n.address)
		case <-time.After(b.NextBackOff()):
		}
	}
}

// sourceLivenessCheck scans the node's registered-source roster for a
// pid that is no longer running. Only a Sink calls this: a Source never
// needs to know about its siblings. A Source that crashes without
// calling Close leaves its roster slot and source_count intact, which
// would otherwise block Sink.Wait forever on an acknowledgement that
// will never arrive.
func (n *node) sourceLivenessCheck() error {
	for _, pid := range n.cb.sourcePids() {
		if !pidAlive(pid) {
			return n.poison(fmt.Errorf("%w: source pid %d no longer running", ErrPeerDied, pid))
		}
	}
	return nil
}

// timeNow is a thin indirection so tests can be written without timing
// flakiness creeping into withLock's staleness bookkeeping.
var timeNow = time.Now

func pidAlive(pid int32) bool {
	if pid <= 0 {
		return false
	}
	alive, err := process.PidExists(pid)
	if err != nil {
		// Can't determine liveness; assume alive rather than steal a
		// lock we can't prove is abandoned.
		return true
	}
	return alive
}

// openRegion maps an existing region, retrying until the Sink's ready
// flag is observed (spec §4.1: "open... blocks... until the named
// region exists and has completed initialization").
func openRegion(ctx context.Context, address string, cfg *Config) (*shm.Region, *controlBlock, error) {
	region, err := shm.Open(ctx, regionName(address), shm.MemMapType(cfg.MemMapType))
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, fmt.Errorf("%w: %s: %w", ErrTimeout, address, err)
		}
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrNotFound, address, err)
	}
	cb := newControlBlock(region.Bytes())

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.TouchBackoffFloor
	b.MaxInterval = cfg.TouchBackoffCeiling
	bctx := backoff.WithContext(b, ctx)

	op := func() error {
		if cb.isReady() {
			return nil
		}
		return fmt.Errorf("control block at %s not yet initialized", address)
	}
	if err := backoff.Retry(op, bctx); err != nil {
		_ = region.Unmap()
		if ctx.Err() != nil {
			return nil, nil, fmt.Errorf("%w: %s", ErrTimeout, address)
		}
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrNotFound, address, err)
	}
	return region, cb, nil
}
