package lifecycle_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oatfabric/shmdf/pkg/lifecycle"
	"github.com/oatfabric/shmdf/pkg/node"
)

type fakeParticipant struct {
	processCalls int
	failAfter    int
	failErr      error
}

func (f *fakeParticipant) Connect(ctx context.Context) error { return nil }

func (f *fakeParticipant) Process(ctx context.Context) (node.NodeState, error) {
	f.processCalls++
	if f.failErr != nil && f.processCalls >= f.failAfter {
		return node.StateRunning, f.failErr
	}
	select {
	case <-time.After(time.Millisecond):
	case <-ctx.Done():
		return node.StateEndReached, nil
	}
	return node.StateRunning, nil
}

func (f *fakeParticipant) Close() error { return nil }

func TestManagerStartStopTransitions(t *testing.T) {
	p := &fakeParticipant{}
	m := lifecycle.New("test", p)
	require.Equal(t, lifecycle.StateIdle, m.State())

	m.Start(context.Background())
	require.Eventually(t, func() bool { return m.State() == lifecycle.StateRunning }, time.Second, time.Millisecond)

	m.Stop()
	require.Equal(t, lifecycle.StateStopped, m.State())
	require.NoError(t, m.Wait())
}

func TestManagerStartIsANoOpOnceRunning(t *testing.T) {
	p := &fakeParticipant{}
	m := lifecycle.New("test", p)
	m.Start(context.Background())
	require.Eventually(t, func() bool { return m.State() == lifecycle.StateRunning }, time.Second, time.Millisecond)

	m.Start(context.Background()) // second Start must not spawn a second loop
	m.Stop()
	require.Equal(t, lifecycle.StateStopped, m.State())
}

func TestManagerReportsFailure(t *testing.T) {
	wantErr := errors.New("boom")
	p := &fakeParticipant{failAfter: 1, failErr: wantErr}
	m := lifecycle.New("test", p)
	m.Start(context.Background())

	err := m.Wait()
	require.Error(t, err)
	require.Equal(t, lifecycle.StateFailed, m.State())
}

func TestManagerGetStateRendersNameAndState(t *testing.T) {
	m := lifecycle.New("camera", &fakeParticipant{})
	require.Equal(t, "camera: Idle", m.GetState())
}

func TestManagerReloadRestartsARunningParticipant(t *testing.T) {
	p := &fakeParticipant{}
	m := lifecycle.New("test", p)
	m.Start(context.Background())
	require.Eventually(t, func() bool { return m.State() == lifecycle.StateRunning }, time.Second, time.Millisecond)

	m.Reload(context.Background())
	require.Eventually(t, func() bool { return m.State() == lifecycle.StateRunning }, time.Second, time.Millisecond)

	m.Stop()
	require.Equal(t, lifecycle.StateStopped, m.State())
}

func TestManagerReloadStartsAnIdleParticipant(t *testing.T) {
	p := &fakeParticipant{}
	m := lifecycle.New("test", p)
	require.Equal(t, lifecycle.StateIdle, m.State())

	m.Reload(context.Background())
	require.Eventually(t, func() bool { return m.State() == lifecycle.StateRunning }, time.Second, time.Millisecond)
	m.Stop()
}
