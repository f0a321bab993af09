// Package buffer implements the stand-alone Buffer component: a process
// that owns one Source and one Sink coupled through a bounded FIFO,
// absorbing producer/consumer rate mismatch (spec §4.5). Every other
// Source/Sink pair in the fabric is lock-step; this is the one place
// rate decoupling happens.
package buffer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Workiva/go-datastructures/queue"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/bytebufferpool"
	"golang.org/x/sync/errgroup"

	"github.com/oatfabric/shmdf/internal/logx"
	"github.com/oatfabric/shmdf/pkg/node"
)

var log = logx.New("buffer", os.Stderr)

var (
	overrunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shmdf",
		Subsystem: "buffer",
		Name:      "overruns_total",
		Help:      "Samples dropped because the FIFO was at capacity.",
	}, []string{"source_address", "sink_address"})

	occupancyGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "shmdf",
		Subsystem: "buffer",
		Name:      "occupancy",
		Help:      "Current number of samples queued in the FIFO.",
	}, []string{"source_address", "sink_address"})
)

func init() {
	prometheus.MustRegister(overrunCounter, occupancyGauge)
}

// DefaultCapacity is the FIFO depth spec.md §4.5 specifies.
const DefaultCapacity = 1000

// Config carries a Buffer's tunables.
type Config struct {
	// Capacity bounds the internal FIFO's depth. Defaults to
	// DefaultCapacity when zero.
	Capacity int64
	// WriterPollInterval is how often the writer goroutine checks the
	// FIFO for pending samples (spec §4.5: "condition-wait with a 10ms
	// timeout").
	WriterPollInterval time.Duration
	// Node carries the Source/Sink tunables (backoff, timeouts).
	Node *node.Config
}

// DefaultConfig returns the Buffer's default tunables.
func DefaultConfig() *Config {
	return &Config{
		Capacity:           DefaultCapacity,
		WriterPollInterval: 10 * time.Millisecond,
		Node:               node.DefaultConfig(),
	}
}

// Buffer couples a Source on one node to a Sink on another through a
// bounded, drop-oldest FIFO (spec §9 open question (c): the overrun
// policy is left to the implementer; this fabric drops the oldest
// sample because the spec's own framing for an unread Sink — "frames
// are dropped by design when no one listens" — already accepts loss
// under backpressure, and drop-oldest keeps the freshest view for a
// consumer that falls behind, which matters more for live video than
// for a record stream).
type Buffer struct {
	cfg *Config

	sourceAddr string
	sinkAddr   string

	source *node.Source
	sink   *node.Sink
	fifo   *queue.Queue
	done   chan struct{}
}

// New attaches to an existing node at sourceAddr and binds a new node
// at sinkAddr, forwarding the descriptor observed on the Source.
func New(ctx context.Context, sourceAddr, sinkAddr string, cfg *Config) (*Buffer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}

	source, err := node.Touch(ctx, sourceAddr, cfg.Node)
	if err != nil {
		return nil, fmt.Errorf("buffer: touch %s: %w", sourceAddr, err)
	}

	sink, err := node.Bind(ctx, sinkAddr, source.Parameters(), cfg.Node)
	if err != nil {
		_ = source.Close()
		return nil, fmt.Errorf("buffer: bind %s: %w", sinkAddr, err)
	}

	return &Buffer{
		cfg:        cfg,
		sourceAddr: sourceAddr,
		sinkAddr:   sinkAddr,
		source:     source,
		sink:       sink,
		fifo:       queue.New(cfg.Capacity),
		done:       make(chan struct{}),
	}, nil
}

// Close detaches the Source and closes the Sink.
func (b *Buffer) Close() error {
	b.fifo.Dispose()
	sErr := b.source.Close()
	kErr := b.sink.Close()
	if sErr != nil {
		return sErr
	}
	return kErr
}

// Run drives the reader and writer halves until the Source reports
// end-of-stream, ctx is cancelled, or either half errors.
func (b *Buffer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.readLoop(ctx) })
	g.Go(func() error { return b.writeLoop(ctx) })
	return g.Wait()
}

// readLoop drives the Source: wait for a sample, clone it into the
// FIFO (dropping the oldest entry first if at capacity), acknowledge.
func (b *Buffer) readLoop(ctx context.Context) error {
	for {
		state, err := b.source.Wait(ctx)
		if err != nil {
			return fmt.Errorf("buffer: source wait: %w", err)
		}
		if state == node.StateEndReached {
			log.Infof("buffer %s->%s: end of stream from source", b.sourceAddr, b.sinkAddr)
			close(b.done)
			return nil
		}

		view, err := b.source.Retrieve()
		if err != nil {
			return fmt.Errorf("buffer: source retrieve: %w", err)
		}
		clone := bytebufferpool.Get()
		clone.Set(view)

		if int64(b.fifo.Len()) >= b.cfg.Capacity {
			dropped, err := b.fifo.Get(1)
			if err != nil && !b.fifo.Disposed() {
				return fmt.Errorf("buffer: drop oldest: %w", err)
			}
			for _, d := range dropped {
				bytebufferpool.Put(d.(*bytebufferpool.ByteBuffer))
			}
			overrunCounter.WithLabelValues(b.sourceAddr, b.sinkAddr).Inc()
			log.Warnf("buffer %s->%s: FIFO overrun, dropped oldest sample", b.sourceAddr, b.sinkAddr)
		}
		if err := b.fifo.Put(clone); err != nil {
			return fmt.Errorf("buffer: put: %w", err)
		}
		occupancyGauge.WithLabelValues(b.sourceAddr, b.sinkAddr).Set(float64(b.fifo.Len()))

		if err := b.source.Post(ctx); err != nil {
			return fmt.Errorf("buffer: source post: %w", err)
		}
	}
}

// writeLoop drives the Sink: on a fixed poll interval, drain whatever
// is queued into the Sink, one sample per Wait/Retrieve/Post cycle.
func (b *Buffer) writeLoop(ctx context.Context) error {
	ticker := time.NewTicker(b.cfg.WriterPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.done:
			return b.drainAndClose(ctx)
		case <-ticker.C:
			if err := b.drainOnce(ctx); err != nil {
				return err
			}
		}
	}
}

func (b *Buffer) drainOnce(ctx context.Context) error {
	for !b.fifo.Empty() {
		items, err := b.fifo.Get(1)
		if err != nil {
			if b.fifo.Disposed() {
				return nil
			}
			return fmt.Errorf("buffer: get: %w", err)
		}
		if len(items) == 0 {
			return nil
		}
		sample := items[0].(*bytebufferpool.ByteBuffer)

		if err := b.sink.Wait(ctx); err != nil {
			return fmt.Errorf("buffer: sink wait: %w", err)
		}
		slot, err := b.sink.Retrieve()
		if err != nil {
			return fmt.Errorf("buffer: sink retrieve: %w", err)
		}
		copy(slot, sample.Bytes())
		if err := b.sink.Post(ctx); err != nil {
			return fmt.Errorf("buffer: sink post: %w", err)
		}
		bytebufferpool.Put(sample)
		occupancyGauge.WithLabelValues(b.sourceAddr, b.sinkAddr).Set(float64(b.fifo.Len()))
	}
	return nil
}

func (b *Buffer) drainAndClose(ctx context.Context) error {
	if err := b.drainOnce(ctx); err != nil {
		return err
	}
	if err := b.sink.SetEndOfStream(ctx); err != nil {
		return fmt.Errorf("buffer: set end of stream: %w", err)
	}
	return nil
}
