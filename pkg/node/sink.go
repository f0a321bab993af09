package node

import (
	"context"
	"fmt"
	"time"

	"github.com/oatfabric/shmdf/pkg/audit"
	"github.com/oatfabric/shmdf/pkg/security"
	"github.com/oatfabric/shmdf/pkg/shm"
)

// Sink is the exclusive writer endpoint of a node (spec §3, §4.3).
type Sink struct {
	n         *node
	desc      Descriptor
	firstWait bool
	retrieved bool
	closed    bool
}

// Bind allocates a node's region, constructs its control block, and
// declares the payload descriptor, asserting exclusivity (spec §4.2,
// §4.3). cfg may be nil to use DefaultConfig.
func Bind(ctx context.Context, address string, desc Descriptor, cfg *Config) (*Sink, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := security.ValidateAddress(address); err != nil {
		return nil, err
	}
	if err := security.ValidateDescriptor(desc.PayloadSize()); err != nil {
		return nil, err
	}
	name := regionName(address)

	if shm.Exists(name) {
		if live, err := sinkIsLive(ctx, name, cfg); err != nil {
			return nil, err
		} else if live {
			return nil, fmt.Errorf("%w: %s", ErrAddressInUse, address)
		}
		// Stale residue from a crashed prior run (spec invariant 6,
		// SC-5); CreateOrReplace below reclaims it.
	}

	payloadSize := desc.PayloadSize() + cfg.PayloadSlack
	size := ControlBlockSize + payloadSize
	region, err := shm.CreateOrReplace(ctx, name, size, shm.MemMapType(cfg.MemMapType))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrAllocFailed, address, err)
	}

	cb := newControlBlock(region.Bytes())
	cb.writeDescriptor(desc)
	cb.setPayloadLen(uint32(payloadSize))
	cb.setSinkPid(currentPid())
	cb.setState(StateSinkBound)
	cb.markReady()

	n := &node{address: address, region: region, cb: cb, cfg: cfg, pid: currentPid()}
	sourceCountGauge.WithLabelValues(address).Set(0)
	log.Infof("bound sink on %s (payload %d bytes)", address, payloadSize)
	audit.Record(audit.EventBind, address, map[string]interface{}{"payload_bytes": payloadSize})
	return &Sink{n: n, desc: desc, firstWait: true}, nil
}

// sinkIsLive maps an existing region just long enough to check whether
// its recorded sink pid is still a running process. A dead or never-set
// sink pid means the region is residue from an abnormal exit and safe
// to reclaim.
func sinkIsLive(ctx context.Context, regionAddrName string, cfg *Config) (bool, error) {
	checkCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	region, err := shm.Open(checkCtx, regionAddrName, shm.MemMapType(cfg.MemMapType))
	if err != nil {
		// Could not map it (e.g. it vanished between the Exists check
		// and now); treat as not live.
		return false, nil
	}
	defer region.Unmap()

	cb := newControlBlock(region.Bytes())
	if !cb.isReady() {
		return false, nil
	}
	return pidAlive(cb.sinkPid()), nil
}

// Parameters returns the node's immutable payload descriptor.
func (s *Sink) Parameters() Descriptor { return s.desc }

// Address returns the address this Sink is bound to.
func (s *Sink) Address() string { return s.n.address }

// Poisoned reports whether this Sink's node has detected a dead peer
// and is refusing further operations (spec §7).
func (s *Sink) Poisoned() bool { return s.n.poisoned.Load() }

// Wait blocks until every currently attached Source has acknowledged
// the previous sample (spec §4.3). The first call returns immediately.
// If no Sources are attached, Wait never blocks.
func (s *Sink) Wait(ctx context.Context) error {
	if err := s.n.checkPoisoned(); err != nil {
		return err
	}
	if s.firstWait {
		s.firstWait = false
		s.retrieved = true
		return nil
	}

	ctx, span := startSpan(ctx, "Sink.Wait", s.n.address)
	defer span.End()

	start := timeNow()
	err := s.n.waitUntilWithLiveness(ctx, func() bool {
		return s.n.cb.sourceCount() == 0 ||
			s.n.cb.state() != StateSourceWait ||
			s.n.cb.acknowledgements() >= s.n.cb.sourceCount()
	}, s.n.sourceLivenessCheck)
	ackLagHistogram.WithLabelValues(s.n.address).Observe(timeNow().Sub(start).Seconds())
	if err != nil {
		return err
	}
	s.retrieved = true
	return nil
}

// Retrieve returns a mutable view over the payload slot. Valid only
// between Wait and Post.
func (s *Sink) Retrieve() ([]byte, error) {
	if !s.retrieved {
		return nil, fmt.Errorf("%w: Retrieve before Wait", ErrProtocolViolation)
	}
	return s.n.cb.payload(), nil
}

// Post publishes the sample currently staged in the payload slot (spec
// §4.3): increments sample_number, resets acknowledgements, and if any
// Source is attached transitions to SourceWait.
func (s *Sink) Post(ctx context.Context) error {
	if !s.retrieved {
		return fmt.Errorf("%w: Post without Wait/Retrieve", ErrProtocolViolation)
	}
	s.retrieved = false
	ctx, span := startSpan(ctx, "Sink.Post", s.n.address)
	defer span.End()
	return s.n.withLock(ctx, func() error {
		sample := s.n.cb.incSampleNumber() - 1
		s.n.cb.setAcknowledgements(0)
		if s.n.cb.sourceCount() > 0 {
			s.n.cb.setState(StateSourceWait)
		}
		sampleNumberGauge.WithLabelValues(s.n.address).Set(float64(sample))
		recordSampleProcessed(ctx, s.n.address, "sink")
		return nil
	})
}

// SetEndOfStream sets the monotonic end_of_stream flag (spec §4.3,
// §4.6). Safe to call more than once; only the first call has effect.
func (s *Sink) SetEndOfStream(ctx context.Context) error {
	return s.n.withLock(ctx, func() error {
		if s.n.cb.endOfStream() {
			return nil
		}
		s.n.cb.setEndOfStream()
		s.n.cb.setState(StateEnd)
		endOfStreamCounter.WithLabelValues(s.n.address).Inc()
		log.Infof("end of stream on %s", s.n.address)
		audit.Record(audit.EventEndOfStream, s.n.address, nil)
		return nil
	})
}

// Close sets end-of-stream (if not already) and unlinks the region
// (spec invariant 6). Close is idempotent.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.SetEndOfStream(ctx); err != nil {
		log.Warnf("close %s: set end of stream: %v", s.n.address, err)
	}
	if err := s.n.region.Unmap(); err != nil {
		log.Warnf("close %s: unmap: %v", s.n.address, err)
	}
	return shm.Remove(regionName(s.n.address))
}
