package node

import (
	"context"
	"fmt"

	"github.com/oatfabric/shmdf/pkg/audit"
	"github.com/oatfabric/shmdf/pkg/security"
)

// Source is a reader endpoint of a node (spec §3, §4.4). A node may
// have many concurrently attached Sources.
type Source struct {
	n           *node
	desc        Descriptor
	lastSeen    uint64
	slot        int
	attached    bool
	retrievedOK bool
}

// Touch opens a node (retrying with exponential backoff until it exists
// and is initialized) and registers this Source by incrementing
// source_count (spec §4.4). cfg may be nil to use DefaultConfig.
// Touch fails with ErrTimeout if the node never appears within
// Config.TouchTimeout.
func Touch(ctx context.Context, address string, cfg *Config) (*Source, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := security.ValidateAddress(address); err != nil {
		return nil, err
	}
	touchCtx, cancel := context.WithTimeout(ctx, cfg.TouchTimeout)
	defer cancel()

	region, cb, err := openRegion(touchCtx, address, cfg)
	if err != nil {
		return nil, err
	}

	n := &node{address: address, region: region, cb: cb, cfg: cfg, pid: currentPid()}
	desc := cb.descriptor()

	var lastSeen uint64
	var slot int
	if err := n.withLock(ctx, func() error {
		lastSeen = cb.sampleNumber()
		s, ok := cb.registerSource(currentPid())
		if !ok {
			return fmt.Errorf("%w: %s: source roster full (max %d)", ErrAllocFailed, address, MaxSources)
		}
		slot = s
		count := cb.addSourceCount(1)
		sourceCountGauge.WithLabelValues(address).Set(float64(count))
		return nil
	}); err != nil {
		_ = region.Unmap()
		return nil, err
	}

	log.Infof("touched source on %s", address)
	audit.Record(audit.EventTouch, address, nil)
	return &Source{n: n, desc: desc, lastSeen: lastSeen, slot: slot, attached: true}, nil
}

// Parameters returns the node's immutable payload descriptor.
func (s *Source) Parameters() Descriptor { return s.desc }

// Address returns the address this Source is attached to.
func (s *Source) Address() string { return s.n.address }

// Poisoned reports whether this Source's node has detected a dead peer
// and is refusing further operations (spec §7).
func (s *Source) Poisoned() bool { return s.n.poisoned.Load() }

// Wait blocks until the next unseen sample is available or
// end-of-stream (spec §4.4). A Source attaching mid-stream never
// observes samples published before its Touch.
func (s *Source) Wait(ctx context.Context) (NodeState, error) {
	if err := s.n.checkPoisoned(); err != nil {
		return StateEndReached, err
	}

	ctx, span := startSpan(ctx, "Source.Wait", s.n.address)
	defer span.End()

	err := s.n.waitUntil(ctx, func() bool {
		return s.n.cb.endOfStream() || s.n.cb.sampleNumber() != s.lastSeen
	})
	if err != nil {
		return StateEndReached, err
	}

	if s.n.cb.endOfStream() {
		s.retrievedOK = false
		return StateEndReached, nil
	}
	s.lastSeen = s.n.cb.sampleNumber()
	s.retrievedOK = true
	return StateRunning, nil
}

// Retrieve returns a read-only view over the payload slot. Valid only
// between a Wait that returned StateRunning and the matching Post.
func (s *Source) Retrieve() ([]byte, error) {
	if !s.retrievedOK {
		return nil, fmt.Errorf("%w: Retrieve without a pending sample", ErrProtocolViolation)
	}
	return s.n.cb.payload(), nil
}

// Post acknowledges consumption of the sample last returned by Wait
// (spec §4.4): increments acknowledgements, and if it now equals
// source_count, transitions the node back to SinkBound.
func (s *Source) Post(ctx context.Context) error {
	if !s.retrievedOK {
		return fmt.Errorf("%w: Post without a retrieved sample", ErrProtocolViolation)
	}
	s.retrievedOK = false
	ctx, span := startSpan(ctx, "Source.Post", s.n.address)
	defer span.End()
	return s.n.withLock(ctx, func() error {
		acks := s.n.cb.incAcknowledgements()
		if acks >= s.n.cb.sourceCount() {
			s.n.cb.setState(StateSinkBound)
		}
		recordSampleProcessed(ctx, s.n.address, "source")
		return nil
	})
}

// Close detaches this Source, decrementing source_count so the Sink is
// never blocked waiting on a reader that has gone away (spec §4.4
// destruction, §9 "cyclic references"). Idempotent.
func (s *Source) Close() error {
	if !s.attached {
		return nil
	}
	s.attached = false
	ctx, cancel := context.WithTimeout(context.Background(), s.n.cfg.PeerLivenessInterval*4)
	defer cancel()
	err := s.n.withLock(ctx, func() error {
		s.n.cb.releaseSource(s.slot)
		count := s.n.cb.addSourceCount(-1)
		sourceCountGauge.WithLabelValues(s.n.address).Set(float64(count))
		if count == 0 {
			s.n.cb.setState(StateSinkBound)
		}
		return nil
	})
	if unmapErr := s.n.region.Unmap(); unmapErr != nil && err == nil {
		err = unmapErr
	}
	audit.Record(audit.EventDetach, s.n.address, nil)
	return err
}
