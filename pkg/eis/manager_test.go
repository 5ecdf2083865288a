package eis

import (
	"bufio"
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miragedesk/eisbridge/pkg/compositor"
	"github.com/miragedesk/eisbridge/pkg/eis/wire"
	"github.com/miragedesk/eisbridge/pkg/keymap"
)

func startManager(t *testing.T, cfg Config) (*Manager, *compositor.Fake, context.CancelFunc) {
	t.Helper()
	host := compositor.NewFake()
	keymaps := keymap.NewStaticProvider(testKeymapText, testLogger())
	mgr := NewManager(cfg, host, keymaps, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		mgr.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("manager did not shut down")
		}
	})
	return mgr, host, cancel
}

func TestManagerRejectsBeyondSessionCap(t *testing.T) {
	mgr, _, _ := startManager(t, Config{MaxSessions: 2})
	ctx := context.Background()

	var clients []net.Conn
	for i := 0; i < 2; i++ {
		client, server := net.Pipe()
		clients = append(clients, client)
		mgr.AddConnection(ctx, server)
	}
	require.Eventually(t, func() bool {
		return mgr.ActiveSessions() == 2
	}, 5*time.Second, 10*time.Millisecond)

	// The connection past the cap is dropped before any handshake byte.
	extraClient, extraServer := net.Pipe()
	mgr.AddConnection(ctx, extraServer)

	extraClient.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 1)
	n, err := extraClient.Read(buf)
	assert.Zero(t, n)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, os.ErrDeadlineExceeded)

	// Closing an admitted client frees its slot for a newcomer.
	clients[0].Close()
	require.Eventually(t, func() bool {
		return mgr.ActiveSessions() == 1
	}, 5*time.Second, 10*time.Millisecond)

	lateClient, lateServer := net.Pipe()
	defer lateClient.Close()
	mgr.AddConnection(ctx, lateServer)
	require.Eventually(t, func() bool {
		return mgr.ActiveSessions() == 2
	}, 5*time.Second, 10*time.Millisecond)

	for _, c := range clients[1:] {
		c.Close()
	}
}

func TestManagerDispatchesToHost(t *testing.T) {
	mgr, host, _ := startManager(t, Config{MaxSessions: 4})
	ctx := context.Background()

	client, server := net.Pipe()
	defer client.Close()
	mgr.AddConnection(ctx, server)

	br := bufio.NewReader(client)
	clientHandshake(t, client, br)

	_, err := client.Write(wire.Marshal(wire.Bind{SeatID: 1, Caps: wire.CapAll}))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = wire.ReadMessage(br)
		require.NoError(t, err)
	}

	frames := []wire.Request{
		wire.KeyboardKey{DeviceID: 1, Key: 30, Pressed: true},
		wire.PointerMotionAbsolute{X: 100, Y: 200},
		wire.KeyboardKey{DeviceID: 1, Key: 30, Pressed: false},
	}
	for _, f := range frames {
		_, err = client.Write(wire.Marshal(f))
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return host.CallCount() == len(frames)
	}, 5*time.Second, 10*time.Millisecond)

	// The dispatcher serializes injection in arrival order.
	assert.Equal(t, []string{
		"key code=30 pressed=true",
		"motion x=100 y=200 target=<nil>",
		"key code=30 pressed=false",
	}, host.Calls())
}

func TestManagerInvalidInputNeverReachesHost(t *testing.T) {
	mgr, host, _ := startManager(t, Config{MaxSessions: 4})
	ctx := context.Background()

	client, server := net.Pipe()
	defer client.Close()
	mgr.AddConnection(ctx, server)

	br := bufio.NewReader(client)
	clientHandshake(t, client, br)

	_, err := client.Write(wire.Marshal(wire.Bind{SeatID: 1, Caps: wire.CapAll}))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = wire.ReadMessage(br)
		require.NoError(t, err)
	}

	// Out-of-range keycode, then a valid scroll as a sentinel.
	_, err = client.Write(wire.Marshal(wire.KeyboardKey{DeviceID: 1, Key: 0x300, Pressed: true}))
	require.NoError(t, err)
	_, err = client.Write(wire.Marshal(wire.ScrollDelta{DX: 0, DY: 15}))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return host.CallCount() == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"scroll dx=0 dy=15"}, host.Calls())
}

func TestManagerConnectionDuringShutdownIsClosed(t *testing.T) {
	host := compositor.NewFake()
	keymaps := keymap.NewStaticProvider(testKeymapText, testLogger())
	mgr := NewManager(Config{MaxSessions: 4}, host, keymaps, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		mgr.Run(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not shut down")
	}

	// A connection handed over after shutdown must not sit in its
	// handshake read holding an admission slot.
	client, server := net.Pipe()
	defer client.Close()
	mgr.AddConnection(context.Background(), server)

	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 1)
	_, err := client.Read(buf)
	require.Error(t, err)
	require.NotErrorIs(t, err, os.ErrDeadlineExceeded)

	require.Eventually(t, func() bool {
		return mgr.ActiveSessions() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestManagerShutdownClosesSessions(t *testing.T) {
	mgr, _, cancel := startManager(t, Config{MaxSessions: 4})
	ctx := context.Background()

	client, server := net.Pipe()
	defer client.Close()
	mgr.AddConnection(ctx, server)

	require.Eventually(t, func() bool {
		return mgr.ActiveSessions() == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	mgr.Wait()
	assert.Equal(t, 0, mgr.ActiveSessions())
}
