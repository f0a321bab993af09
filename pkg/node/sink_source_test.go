package node_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oatfabric/shmdf/pkg/node"
)

// testAddress derives a unique /dev/shm address per test so concurrent
// test binaries never collide on the same region.
func testAddress(t *testing.T) string {
	return fmt.Sprintf("shmdf-test-%s-%d-%d", t.Name(), os.Getpid(), time.Now().UnixNano())
}

func frameDesc() node.Descriptor {
	return node.FrameDescriptor(4, 4, node.PixelFormatGray, 1)
}

// SC-1: a single Sink and a single Source exchange one sample in order.
func TestSinkSourceSinglePair(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	addr := testAddress(t)

	sink, err := node.Bind(ctx, addr, frameDesc(), nil)
	require.NoError(t, err)
	defer sink.Close()

	src, err := node.Touch(ctx, addr, nil)
	require.NoError(t, err)
	defer src.Close()

	require.NoError(t, sink.Wait(ctx)) // first Wait returns immediately
	buf, err := sink.Retrieve()
	require.NoError(t, err)
	for i := range buf {
		buf[i] = 0x42
	}
	require.NoError(t, sink.Post(ctx))

	state, err := src.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, node.StateRunning, state)

	got, err := src.Retrieve()
	require.NoError(t, err)
	require.Equal(t, byte(0x42), got[0])
	require.NoError(t, src.Post(ctx))
}

// SC-2: two Sources attached to the same node both observe every sample
// and the Sink only proceeds once both have acknowledged.
func TestSinkSourceTwoSources(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	addr := testAddress(t)

	sink, err := node.Bind(ctx, addr, frameDesc(), nil)
	require.NoError(t, err)
	defer sink.Close()
	require.NoError(t, sink.Wait(ctx))

	src1, err := node.Touch(ctx, addr, nil)
	require.NoError(t, err)
	defer src1.Close()
	src2, err := node.Touch(ctx, addr, nil)
	require.NoError(t, err)
	defer src2.Close()

	buf, err := sink.Retrieve()
	require.NoError(t, err)
	buf[0] = 1
	require.NoError(t, sink.Post(ctx))

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- sink.Wait(ctx)
	}()

	for _, s := range []*node.Source{src1, src2} {
		state, err := s.Wait(ctx)
		require.NoError(t, err)
		require.Equal(t, node.StateRunning, state)
		_, err = s.Retrieve()
		require.NoError(t, err)
	}

	// Sink.Wait must still be blocked: only one of two Sources has
	// acknowledged so far.
	require.NoError(t, src1.Post(ctx))
	select {
	case err := <-waitErr:
		t.Fatalf("sink.Wait returned (%v) before the second source acknowledged", err)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, src2.Post(ctx))
	require.NoError(t, <-waitErr)
}

// SC-3: a Source that attaches after a sample was published never
// observes that sample; it only sees samples published after Touch.
func TestSinkSourceLateAttach(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	addr := testAddress(t)

	sink, err := node.Bind(ctx, addr, frameDesc(), nil)
	require.NoError(t, err)
	defer sink.Close()
	require.NoError(t, sink.Wait(ctx))
	buf, err := sink.Retrieve()
	require.NoError(t, err)
	buf[0] = 7
	require.NoError(t, sink.Post(ctx)) // published with no Sources attached

	src, err := node.Touch(ctx, addr, nil)
	require.NoError(t, err)
	defer src.Close()

	waitCtx, waitCancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer waitCancel()
	_, err = src.Wait(waitCtx)
	require.ErrorIs(t, err, node.ErrTimeout)

	require.NoError(t, sink.Wait(ctx))
	buf, err = sink.Retrieve()
	require.NoError(t, err)
	buf[0] = 8
	require.NoError(t, sink.Post(ctx))

	state, err := src.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, node.StateRunning, state)
	got, err := src.Retrieve()
	require.NoError(t, err)
	require.Equal(t, byte(8), got[0])
}

// SC-6: when the Sink sets end of stream, every attached Source observes
// StateEndReached instead of blocking forever.
func TestSinkSourceEndOfStreamFanout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	addr := testAddress(t)

	sink, err := node.Bind(ctx, addr, frameDesc(), nil)
	require.NoError(t, err)
	defer sink.Close()
	require.NoError(t, sink.Wait(ctx))

	src1, err := node.Touch(ctx, addr, nil)
	require.NoError(t, err)
	defer src1.Close()
	src2, err := node.Touch(ctx, addr, nil)
	require.NoError(t, err)
	defer src2.Close()

	require.NoError(t, sink.SetEndOfStream(ctx))

	for _, s := range []*node.Source{src1, src2} {
		state, err := s.Wait(ctx)
		require.NoError(t, err)
		require.Equal(t, node.StateEndReached, state)
	}

	// A second SetEndOfStream call must be a harmless no-op.
	require.NoError(t, sink.SetEndOfStream(ctx))
}

// Binding a second Sink at the same live address must fail; attempting
// to bind over a Source is nonsensical and covered by Touch's own
// not-found/timeout path instead.
func TestBindExclusivity(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	addr := testAddress(t)

	sink, err := node.Bind(ctx, addr, frameDesc(), nil)
	require.NoError(t, err)
	defer sink.Close()

	_, err = node.Bind(ctx, addr, frameDesc(), nil)
	require.ErrorIs(t, err, node.ErrAddressInUse)
}

// Touch on an address that never gets a Sink must fail with ErrTimeout
// rather than block forever.
func TestTouchTimesOutWhenNoSink(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	addr := testAddress(t)

	cfg := node.DefaultConfig()
	cfg.TouchTimeout = 200 * time.Millisecond

	_, err := node.Touch(ctx, addr, cfg)
	require.ErrorIs(t, err, node.ErrTimeout)
}

// Close is idempotent: a second call, after the region has already been
// unlinked, is a harmless no-op.
func TestSinkCloseIsIdempotentAndTerminal(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	addr := testAddress(t)

	sink, err := node.Bind(ctx, addr, frameDesc(), nil)
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close()) // idempotent
}
