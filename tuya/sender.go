package tuya

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"local-tuya/codec"
	"local-tuya/events"
	"local-tuya/message"
)

type pendingKey struct {
	seq  uint32
	kind message.Kind
}

type pendingEntry struct {
	result chan error // buffered, completed at most once
}

// Sender owns the sequence counter and the pending table. It packs commands,
// hands the frames to the transport and correlates responses back to their
// waiting callers by (sequence, kind).
//
// Sequence numbers cycle through 1..1000. Heartbeats always use 0: devices
// answer them with 0 whatever was sent, so the zero sequence is reserved for
// them and never collides with numbered commands.
type Sender struct {
	log      *log.Entry
	notifier *events.Notifier
	codec    *codec.Codec
	timeout  time.Duration

	mu        sync.Mutex
	seq       uint32
	pending   map[pendingKey]*pendingEntry
	connected chan struct{} // closed while the connection is up
	canSend   bool

	closed    chan struct{}
	closeOnce sync.Once
}

func NewSender(name string, c *codec.Codec, timeout time.Duration, notifier *events.Notifier) *Sender {
	s := &Sender{
		log:       log.WithField("device", name),
		notifier:  notifier,
		codec:     c,
		timeout:   timeout,
		pending:   make(map[pendingKey]*pendingEntry),
		connected: make(chan struct{}),
		closed:    make(chan struct{}),
	}
	events.Register(notifier, func(ConnectionEstablished) error {
		s.mu.Lock()
		if !s.canSend {
			s.canSend = true
			close(s.connected)
		}
		s.mu.Unlock()
		return nil
	})
	events.Register(notifier, func(ConnectionClosed) error {
		s.mu.Lock()
		if s.canSend {
			s.canSend = false
			s.connected = make(chan struct{})
		}
		entries := s.pending
		s.pending = make(map[pendingKey]*pendingEntry)
		s.mu.Unlock()
		for _, p := range entries {
			p.complete(ErrConnectionLost)
		}
		return nil
	})
	events.Register(notifier, s.receive)
	events.Register(notifier, s.send)
	return s
}

// Close fails any subsequent sends. Pending commands were already resolved
// by the ConnectionClosed emitted during transport teardown.
func (s *Sender) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

func (p *pendingEntry) complete(err error) {
	select {
	case p.result <- err:
	default:
	}
}

// receive pops the pending entry matching the response and completes it.
// Responses with no matching entry are dropped.
func (s *Sender) receive(e ResponseReceived) error {
	key := pendingKey{seq: e.Seq, kind: e.CommandKind}
	s.mu.Lock()
	p, ok := s.pending[key]
	if ok {
		delete(s.pending, key)
	}
	s.mu.Unlock()
	if !ok {
		s.log.Debugf("dropping unmatched %s response %d", e.Response.Kind, e.Seq)
		return nil
	}
	p.complete(e.Response.Err)
	return nil
}

// send runs on the emitter's goroutine: it blocks until the command is
// answered, times out or fails, and completes e.Done with the outcome.
func (s *Sender) send(e CommandSent) error {
	err := s.doSend(e)
	select {
	case e.Done <- err:
	default:
	}
	return nil
}

func (s *Sender) doSend(e CommandSent) error {
	ctx := e.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	seq := s.allocate(e.Command)
	s.log.Debugf("sending message %d %s", seq, e.Command.Kind())
	frame, err := s.codec.Pack(seq, e.Command)
	if err != nil {
		return err
	}

	key := pendingKey{seq: seq, kind: e.Command.Kind()}
	p := &pendingEntry{result: make(chan error, 1)}
	s.mu.Lock()
	s.pending[key] = p
	connected := s.connected
	canSend := s.canSend
	s.mu.Unlock()

	// Wait for the connection without a timeout; the response wait below is
	// the only bounded part.
	if !canSend {
		select {
		case <-connected:
		case <-s.closed:
			s.forget(key)
			return ErrConnectionLost
		case <-ctx.Done():
			s.forget(key)
			return ctx.Err()
		}
	}
	s.notifier.Emit(DataSent{Ctx: ctx, Data: frame})

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case err := <-p.result:
		return err
	case <-timer.C:
		s.forget(key)
		return ErrCommandTimeout
	case <-s.closed:
		s.forget(key)
		return ErrConnectionLost
	case <-ctx.Done():
		s.forget(key)
		return ctx.Err()
	}
}

func (s *Sender) forget(key pendingKey) {
	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()
}

// allocate reserves the next sequence number. The counter wraps from 1000
// back to 1, never 0.
func (s *Sender) allocate(cmd message.Command) uint32 {
	if cmd.Kind() == message.KindHeartbeat {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq >= 1000 {
		s.seq = 1
	} else {
		s.seq++
	}
	return s.seq
}
