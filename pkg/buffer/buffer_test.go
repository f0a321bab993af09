package buffer_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oatfabric/shmdf/pkg/buffer"
	"github.com/oatfabric/shmdf/pkg/node"
)

func addrPair(t *testing.T) (string, string) {
	base := fmt.Sprintf("shmdf-buf-test-%s-%d-%d", t.Name(), os.Getpid(), time.Now().UnixNano())
	return base + "-in", base + "-out"
}

// SC-4: a Buffer sits between an upstream Sink and a downstream Source,
// decoupling their rates. Under no overrun, every sample the producer
// posts is eventually observed, in order, by the downstream consumer.
func TestBufferForwardsInOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	upstream, downstream := addrPair(t)

	producer, err := node.Bind(ctx, upstream, node.RecordDescriptor(4), nil)
	require.NoError(t, err)
	defer producer.Close()
	require.NoError(t, producer.Wait(ctx))

	cfg := buffer.DefaultConfig()
	cfg.Capacity = 16
	cfg.WriterPollInterval = 5 * time.Millisecond
	buf, err := buffer.New(ctx, upstream, downstream, cfg)
	require.NoError(t, err)

	runErr := make(chan error, 1)
	go func() { runErr <- buf.Run(ctx) }()

	consumer, err := node.Touch(ctx, downstream, nil)
	require.NoError(t, err)
	defer consumer.Close()

	const n = 5
	for i := 0; i < n; i++ {
		slot, err := producer.Retrieve()
		require.NoError(t, err)
		slot[0] = byte(i)
		require.NoError(t, producer.Post(ctx))
		require.NoError(t, producer.Wait(ctx))
	}
	require.NoError(t, producer.SetEndOfStream(ctx))

	for i := 0; i < n; i++ {
		state, err := consumer.Wait(ctx)
		require.NoError(t, err)
		require.Equal(t, node.StateRunning, state)
		got, err := consumer.Retrieve()
		require.NoError(t, err)
		require.Equal(t, byte(i), got[0], "sample %d arrived out of order or corrupted", i)
		require.NoError(t, consumer.Post(ctx))
	}

	state, err := consumer.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, node.StateEndReached, state)

	require.NoError(t, <-runErr)
	require.NoError(t, buf.Close())
}

// A Buffer with no Source ever attached downstream must still drain
// without blocking forever, since Sink.Wait never blocks when
// source_count is zero.
func TestBufferDrainsWithoutDownstreamConsumer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	upstream, downstream := addrPair(t)

	producer, err := node.Bind(ctx, upstream, node.RecordDescriptor(4), nil)
	require.NoError(t, err)
	defer producer.Close()
	require.NoError(t, producer.Wait(ctx))

	cfg := buffer.DefaultConfig()
	cfg.WriterPollInterval = 5 * time.Millisecond
	buf, err := buffer.New(ctx, upstream, downstream, cfg)
	require.NoError(t, err)
	defer buf.Close()

	runCtx, runCancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer runCancel()
	runErr := make(chan error, 1)
	go func() { runErr <- buf.Run(runCtx) }()

	slot, err := producer.Retrieve()
	require.NoError(t, err)
	slot[0] = 9
	require.NoError(t, producer.Post(ctx))
	require.NoError(t, producer.SetEndOfStream(ctx))

	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("buffer.Run never observed end of stream")
	}
}
