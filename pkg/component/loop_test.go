package component_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oatfabric/shmdf/pkg/component"
	"github.com/oatfabric/shmdf/pkg/node"
)

func uniqueAddrs(t *testing.T, n int) []string {
	base := fmt.Sprintf("shmdf-comp-test-%s-%d-%d", t.Name(), os.Getpid(), time.Now().UnixNano())
	addrs := make([]string, n)
	for i := range addrs {
		addrs[i] = fmt.Sprintf("%s-%d", base, i)
	}
	return addrs
}

func TestTouchAllAttachesEveryAddressConcurrently(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	addrs := uniqueAddrs(t, 3)

	sinks := make([]*node.Sink, len(addrs))
	for i, addr := range addrs {
		sink, err := node.Bind(ctx, addr, node.RecordDescriptor(4), nil)
		require.NoError(t, err)
		sinks[i] = sink
		defer sink.Close()
	}

	sources, err := component.TouchAll(ctx, nil, addrs)
	require.NoError(t, err)
	require.Len(t, sources, len(addrs))
	for i, src := range sources {
		require.Equal(t, addrs[i], src.Address())
		require.NoError(t, src.Close())
	}
}

func TestTouchAllFailsFastWhenOneAddressNeverAppears(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	addrs := uniqueAddrs(t, 2)

	sink, err := node.Bind(ctx, addrs[0], node.RecordDescriptor(4), nil)
	require.NoError(t, err)
	defer sink.Close()
	// addrs[1] never gets a Sink.

	cfg := node.DefaultConfig()
	cfg.TouchTimeout = 200 * time.Millisecond

	_, err = component.TouchAll(ctx, cfg, addrs)
	require.Error(t, err)
}

// fakeParticipant drives component.Run through exactly n Process calls
// before reporting end of stream.
type fakeParticipant struct {
	remaining int
	connected bool
	closed    bool
}

func (f *fakeParticipant) Connect(ctx context.Context) error {
	f.connected = true
	return nil
}

func (f *fakeParticipant) Process(ctx context.Context) (node.NodeState, error) {
	if f.remaining <= 0 {
		return node.StateEndReached, nil
	}
	f.remaining--
	return node.StateRunning, nil
}

func (f *fakeParticipant) Close() error {
	f.closed = true
	return nil
}

func TestRunDrivesParticipantToEndOfStream(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	p := &fakeParticipant{remaining: 3}
	require.NoError(t, component.Run(ctx, p))
	require.True(t, p.connected)
	require.True(t, p.closed)
}

// Connect wires a bound Sink together with the Sources it depends on,
// and the returned closers must tear down both halves exactly once.
func TestConnectWiresSinkAndSources(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	addrs := uniqueAddrs(t, 2)
	sinkAddr := addrs[0] + "-downstream-sink"

	upstreamSinks := make([]*node.Sink, len(addrs))
	for i, addr := range addrs {
		sink, err := node.Bind(ctx, addr, node.RecordDescriptor(4), nil)
		require.NoError(t, err)
		upstreamSinks[i] = sink
		defer sink.Close()
	}

	sink, sources, closers, err := component.Connect(ctx, nil, addrs, func(ctx context.Context) (*node.Sink, error) {
		return node.Bind(ctx, sinkAddr, node.RecordDescriptor(4), nil)
	})
	require.NoError(t, err)
	require.Len(t, sources, len(addrs))
	require.Equal(t, sinkAddr, sink.Address())
	require.Len(t, closers, len(addrs)+1)

	for _, c := range closers {
		require.NoError(t, c())
		require.NoError(t, c()) // idempotent
	}
}
