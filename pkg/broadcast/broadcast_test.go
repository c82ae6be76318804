package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBroadcastAddress(t *testing.T) {
	addr := broadcastAddress()
	require.NotNil(t, addr)
	assert.NotNil(t, addr.To4())
}

func TestListenStopsOnCancel(t *testing.T) {
	c := NewChannel(48888, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- c.Listen(ctx, nil, nil)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop after cancel")
	}
}

func TestPeersHaveDistinctIDs(t *testing.T) {
	a := NewChannel(0, zap.NewNop())
	b := NewChannel(0, zap.NewNop())
	assert.NotEqual(t, a.peerID, b.peerID)
	assert.Equal(t, DefaultPort, a.port)
}
