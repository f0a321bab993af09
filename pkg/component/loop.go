// Package component implements the connect-then-process lifecycle every
// fabric participant shares (spec §4.6): a two-phase connect protocol
// followed by a process loop that runs until Process reports
// end-of-stream or a termination signal arrives.
package component

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/oatfabric/shmdf/internal/logx"
	"github.com/oatfabric/shmdf/pkg/node"
)

var log = logx.New("component", os.Stderr)

// Participant is implemented by every process that joins the fabric: a
// camera Sink, a viewer Source, a Buffer, or anything composed from
// pkg/node handles. Connect performs the two-phase rendezvous; Process
// is called repeatedly until it reports node.StateEndReached or
// returns an error; Close releases every handle Connect acquired.
type Participant interface {
	Connect(ctx context.Context) error
	Process(ctx context.Context) (node.NodeState, error)
	Close() error
}

// Run drives a Participant: Connect, then Process in a loop, cancelling
// on SIGINT/SIGTERM (spec §5 "Cancellation") or on Process reporting
// end-of-stream. Once Connect has succeeded, Close always runs, even
// when Process fails; if Connect itself fails, Close is not called.
func Run(ctx context.Context, p Participant) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := p.Connect(ctx); err != nil {
		return fmt.Errorf("component: connect: %w", err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Warnf("close: %v", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Infof("termination signal received, exiting process loop")
			return nil
		default:
		}

		state, err := p.Process(ctx)
		if err != nil {
			return fmt.Errorf("component: process: %w", err)
		}
		if state == node.StateEndReached {
			log.Infof("process loop reached end of stream")
			return nil
		}
	}
}

// TouchAll attaches to every address in addresses concurrently, via a
// bounded ants pool sized to the host's CPU count, and returns the
// resulting Sources in the same order as addresses. This is phase one
// of the two-phase connect protocol (spec §4.6): every compulsory
// Source registers its presence before the Sink binds, so source_count
// reflects every reader by the time sample 0 is published.
func TouchAll(ctx context.Context, cfg *node.Config, addresses []string) ([]*node.Source, error) {
	pool, err := ants.NewPool(runtime.NumCPU())
	if err != nil {
		return nil, fmt.Errorf("component: new pool: %w", err)
	}
	defer pool.Release()

	sources := make([]*node.Source, len(addresses))
	g, gctx := errgroup.WithContext(ctx)
	for i, addr := range addresses {
		i, addr := i, addr
		g.Go(func() error {
			resultCh := make(chan error, 1)
			if err := pool.Submit(func() {
				src, err := node.Touch(gctx, addr, cfg)
				if err != nil {
					resultCh <- err
					return
				}
				sources[i] = src
				resultCh <- nil
			}); err != nil {
				return fmt.Errorf("submit touch %s: %w", addr, err)
			}
			return <-resultCh
		})
	}
	if err := g.Wait(); err != nil {
		for _, s := range sources {
			if s != nil {
				_ = s.Close()
			}
		}
		return nil, err
	}
	return sources, nil
}

// Connect runs the full two-phase protocol: touch every Source address,
// then call bindSink (which the caller typically implements as
// node.Bind for its own Sink address), guarding both halves against
// double-unlink via the process-local registry (spec §9 open question
// (a)).
func Connect(ctx context.Context, cfg *node.Config, sourceAddrs []string, bindSink func(context.Context) (*node.Sink, error)) (*node.Sink, []*node.Source, []func() error, error) {
	sources, err := TouchAll(ctx, cfg, sourceAddrs)
	if err != nil {
		return nil, nil, nil, err
	}

	closers := make([]func() error, 0, len(sources)+1)
	for i, src := range sources {
		closers = append(closers, trackClose(sourceAddrs[i], src))
	}

	sink, err := bindSink(ctx)
	if err != nil {
		for _, c := range closers {
			_ = c()
		}
		return nil, nil, nil, err
	}
	closers = append(closers, trackClose(sink.Address(), sink))
	return sink, sources, closers, nil
}
