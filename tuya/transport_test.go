package tuya

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"local-tuya/backoff"
	"local-tuya/events"
)

type testServer struct {
	listener net.Listener
	conns    chan net.Conn
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })
	s := &testServer{listener: listener, conns: make(chan net.Conn, 4)}
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			s.conns <- conn
		}
	}()
	return s
}

func (s *testServer) accept(t *testing.T) net.Conn {
	t.Helper()
	select {
	case conn := <-s.conns:
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	case <-time.After(time.Second):
		t.Fatal("no connection received")
		return nil
	}
}

func newTestTransport(t *testing.T, server *testServer) (*Transport, *events.Notifier, chan []byte) {
	t.Helper()
	notifier := events.NewNotifier(nil)
	frames := make(chan []byte, 16)
	events.Register(notifier, func(e DataReceived) error {
		frames <- e.Data
		return nil
	})
	cfg := Config{
		Address: "127.0.0.1",
		Port:    server.listener.Addr().(*net.TCPAddr).Port,
		Timeout: time.Second,
	}
	tr := NewTransport("test", cfg, backoff.NewSequence(0, 10*time.Millisecond), notifier)
	t.Cleanup(tr.Close)
	return tr, notifier, frames
}

func TestTransportConnectsAndSplitsFrames(t *testing.T) {
	server := newTestServer(t)
	tr, notifier, frames := newTestTransport(t, server)

	connected := make(chan struct{}, 1)
	events.Register(notifier, func(ConnectionEstablished) error {
		connected <- struct{}{}
		return nil
	})
	tr.Start()
	conn := server.accept(t)
	select {
	case <-connected:
	case <-time.After(time.Second):
		t.Fatal("connection was not established")
	}

	// Two frames in one write plus a partial trailer flushed separately.
	first := heartbeatResponse()
	second := heartbeatResponse()
	_, err := conn.Write(append(append([]byte{}, first...), second[:20]...))
	require.NoError(t, err)
	_, err = conn.Write(second[20:])
	require.NoError(t, err)

	assert.Equal(t, first, <-frames)
	assert.Equal(t, second, <-frames)
}

func TestTransportWrite(t *testing.T) {
	server := newTestServer(t)
	tr, notifier, _ := newTestTransport(t, server)
	tr.Start()
	conn := server.accept(t)

	payload := []byte("some frame bytes")
	done := make(chan struct{})
	go func() {
		defer close(done)
		notifier.Emit(DataSent{Data: payload})
	}()

	received := make([]byte, len(payload))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err := conn.Read(received)
	require.NoError(t, err)
	assert.Equal(t, payload, received)
	<-done
}

func TestTransportWriteWaitsForConnection(t *testing.T) {
	server := newTestServer(t)
	tr, notifier, _ := newTestTransport(t, server)

	// Write before Start blocks until the first connection is up.
	written := make(chan struct{})
	go func() {
		defer close(written)
		notifier.Emit(DataSent{Data: []byte("hello")})
	}()
	select {
	case <-written:
		t.Fatal("write should block until connected")
	case <-time.After(20 * time.Millisecond):
	}

	tr.Start()
	conn := server.accept(t)
	received := make([]byte, 5)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err := conn.Read(received)
	require.NoError(t, err)
	select {
	case <-written:
	case <-time.After(time.Second):
		t.Fatal("write did not complete")
	}
}

func TestTransportReconnects(t *testing.T) {
	server := newTestServer(t)
	tr, notifier, _ := newTestTransport(t, server)

	established := make(chan struct{}, 4)
	closed := make(chan error, 4)
	events.Register(notifier, func(ConnectionEstablished) error {
		established <- struct{}{}
		return nil
	})
	events.Register(notifier, func(e ConnectionClosed) error {
		closed <- e.Err
		return nil
	})

	tr.Start()
	conn := server.accept(t)
	<-established

	// Simulate the device dropping the connection.
	require.NoError(t, conn.Close())
	select {
	case err := <-closed:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("connection loss was not detected")
	}
	server.accept(t)
	select {
	case <-established:
	case <-time.After(time.Second):
		t.Fatal("transport did not reconnect")
	}
}

func TestTransportClose(t *testing.T) {
	server := newTestServer(t)
	tr, notifier, _ := newTestTransport(t, server)

	closed := make(chan error, 4)
	events.Register(notifier, func(e ConnectionClosed) error {
		closed <- e.Err
		return nil
	})

	tr.Start()
	server.accept(t)
	tr.Close()
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("close was not announced")
	}

	// Writes after close fail instead of blocking forever.
	done := make(chan struct{})
	go func() {
		defer close(done)
		notifier.Emit(DataSent{Data: []byte("late")})
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("write after close did not return")
	}
}
