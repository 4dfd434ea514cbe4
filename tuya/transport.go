package tuya

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"local-tuya/backoff"
	"local-tuya/codec"
	"local-tuya/events"
)

// Transport maintains a single resilient TCP session to the device.
//
// One goroutine owns the connection: it dials with the configured backoff,
// then reads frames until the connection drops, then dials again. Planned
// close cancels that goroutine and closes the socket. Inbound bytes are
// split on the frame suffix and emitted one frame at a time as DataReceived.
type Transport struct {
	log      *log.Entry
	address  string
	backoff  backoff.Backoff
	timeout  time.Duration
	notifier *events.Notifier

	mu        sync.Mutex
	conn      net.Conn
	connected chan struct{} // closed while a connection is up
	started   bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewTransport(name string, cfg Config, bo backoff.Backoff, notifier *events.Notifier) *Transport {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		log:       log.WithField("device", name),
		address:   net.JoinHostPort(cfg.Address, fmt.Sprintf("%d", cfg.Port)),
		backoff:   bo,
		timeout:   cfg.Timeout,
		notifier:  notifier,
		connected: make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	events.Register(notifier, t.write)
	// Only a decoded response proves the peer is healthy: a device can
	// accept TCP connections and still never answer. Until then repeated
	// connects keep escalating the backoff.
	events.Register(notifier, func(ResponseReceived) error {
		t.backoff.Reset()
		return nil
	})
	return t
}

// Start launches the connection loop. It returns immediately.
func (t *Transport) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	t.started = true
	go t.run()
}

// Close tears the transport down: it announces the closure, closes the
// socket and waits up to the configured timeout for the OS-level teardown.
func (t *Transport) Close() {
	t.cancel()
	t.notifier.Emit(ConnectionClosed{})
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	t.mu.Lock()
	started := t.started
	t.mu.Unlock()
	if !started {
		return
	}
	select {
	case <-t.done:
	case <-time.After(t.timeout):
		t.log.Error("timeout waiting for transport to close")
	}
}

// run owns the connection: exactly one attempt is in flight at any time.
func (t *Transport) run() {
	defer close(t.done)
	for {
		conn, err := t.connect()
		if err != nil {
			return // closing
		}
		t.mu.Lock()
		t.conn = conn
		close(t.connected)
		t.mu.Unlock()
		t.log.Infof("connected to device %s", t.address)
		t.notifier.Emit(ConnectionEstablished{})

		err = t.read(conn)

		t.mu.Lock()
		closing := t.ctx.Err() != nil
		t.conn = nil
		t.connected = make(chan struct{})
		t.mu.Unlock()
		_ = conn.Close()
		if closing {
			return
		}
		t.log.WithError(err).Warn("connection lost, reconnecting...")
		t.notifier.Emit(ConnectionClosed{Err: err})
	}
}

func (t *Transport) connect() (net.Conn, error) {
	for {
		if err := t.backoff.Wait(t.ctx); err != nil {
			return nil, err
		}
		dialer := net.Dialer{Timeout: t.timeout}
		conn, err := dialer.DialContext(t.ctx, "tcp", t.address)
		if err == nil {
			return conn, nil
		}
		if t.ctx.Err() != nil {
			return nil, t.ctx.Err()
		}
		t.log.WithError(err).Warn("could not connect, retrying...")
	}
}

// read splits the inbound byte stream on the frame suffix and emits each
// complete frame. It returns the error that broke the connection.
func (t *Transport) read(conn net.Conn) error {
	suffix := codec.Suffix()
	var buf []byte
	chunk := make([]byte, 4096)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			for {
				idx := bytes.Index(buf, suffix)
				if idx < 0 {
					break
				}
				end := idx + len(suffix)
				frame := make([]byte, end)
				copy(frame, buf[:end])
				buf = buf[end:]
				t.notifier.Emit(DataReceived{Data: frame})
			}
		}
		if err != nil {
			return err
		}
	}
}

// write blocks until a connection is up, then writes the frame. Socket-level
// write errors are not reported here; they surface asynchronously through
// the read loop as a ConnectionClosed event.
func (t *Transport) write(e DataSent) error {
	// A nil channel never fires: frames without a context wait indefinitely.
	var cancelled <-chan struct{}
	if e.Ctx != nil {
		cancelled = e.Ctx.Done()
	}
	for {
		t.mu.Lock()
		if t.ctx.Err() != nil {
			t.mu.Unlock()
			return ErrTransportClosed
		}
		conn, connected := t.conn, t.connected
		t.mu.Unlock()
		if conn != nil {
			if _, err := conn.Write(e.Data); err != nil {
				t.log.WithError(err).Warn("write failed")
			}
			return nil
		}
		select {
		case <-connected:
		case <-cancelled:
			return nil
		case <-t.ctx.Done():
			return ErrTransportClosed
		}
	}
}
