package tuya

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"local-tuya/codec"
	"local-tuya/events"
	"local-tuya/message"
)

var testKey = []byte("9efe59a10acd6ccf")

func newTestSender(t *testing.T, timeout time.Duration) (*Sender, *events.Notifier) {
	t.Helper()
	c, err := codec.New(testKey)
	require.NoError(t, err)
	notifier := events.NewNotifier(nil)
	s := NewSender("test", c, timeout, notifier)
	t.Cleanup(s.Close)
	return s, notifier
}

// frameHeader extracts the sequence and command code of an outbound frame.
func frameHeader(frame []byte) (uint32, message.Kind) {
	return binary.BigEndian.Uint32(frame[4:8]), message.Kind(binary.BigEndian.Uint32(frame[8:12]))
}

func emitCommand(ctx context.Context, notifier *events.Notifier, cmd message.Command) chan error {
	done := make(chan error, 1)
	notifier.Emit(CommandSent{Ctx: ctx, Command: cmd, Done: done})
	return done
}

func TestSenderRoundTrip(t *testing.T) {
	_, notifier := newTestSender(t, time.Second)
	notifier.Emit(ConnectionEstablished{})

	// Answer every outbound frame with a matching response.
	events.Register(notifier, func(e DataSent) error {
		seq, kind := frameHeader(e.Data)
		notifier.Emit(ResponseReceived{
			Seq:         seq,
			Response:    &message.Response{Kind: kind},
			CommandKind: message.CommandKind(kind),
		})
		return nil
	})

	done := emitCommand(context.Background(), notifier, message.UpdateCommand{Values: message.Values{"1": true}})
	assert.NoError(t, <-done)

	done = emitCommand(context.Background(), notifier, message.HeartbeatCommand{})
	assert.NoError(t, <-done)
}

func TestSenderResponseError(t *testing.T) {
	_, notifier := newTestSender(t, time.Second)
	notifier.Emit(ConnectionEstablished{})

	respErr := &message.ResponseError{Body: "json struct data unvalid"}
	events.Register(notifier, func(e DataSent) error {
		seq, kind := frameHeader(e.Data)
		notifier.Emit(ResponseReceived{
			Seq:         seq,
			Response:    &message.Response{Kind: kind, Err: respErr},
			CommandKind: message.CommandKind(kind),
		})
		return nil
	})

	done := emitCommand(context.Background(), notifier, message.StateCommand{})
	assert.ErrorIs(t, <-done, respErr)
}

func TestSenderTimeout(t *testing.T) {
	_, notifier := newTestSender(t, 20*time.Millisecond)
	notifier.Emit(ConnectionEstablished{})

	done := emitCommand(context.Background(), notifier, message.StateCommand{})
	assert.ErrorIs(t, <-done, ErrCommandTimeout)
}

func TestSenderConnectionLostWhilePending(t *testing.T) {
	_, notifier := newTestSender(t, time.Minute)
	notifier.Emit(ConnectionEstablished{})

	done := make(chan error, 1)
	go notifier.Emit(CommandSent{
		Ctx:     context.Background(),
		Command: message.StateCommand{},
		Done:    done,
	})
	// Let the send register and start waiting before dropping the link.
	time.Sleep(20 * time.Millisecond)
	notifier.Emit(ConnectionClosed{})
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrConnectionLost)
	case <-time.After(time.Second):
		t.Fatal("command was not failed on connection loss")
	}
}

func TestSenderWaitsForConnection(t *testing.T) {
	_, notifier := newTestSender(t, time.Second)

	events.Register(notifier, func(e DataSent) error {
		seq, kind := frameHeader(e.Data)
		notifier.Emit(ResponseReceived{
			Seq:         seq,
			Response:    &message.Response{Kind: kind},
			CommandKind: message.CommandKind(kind),
		})
		return nil
	})

	done := make(chan error, 1)
	go notifier.Emit(CommandSent{
		Ctx:     context.Background(),
		Command: message.StateCommand{},
		Done:    done,
	})
	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("command should wait for the connection")
	default:
	}
	notifier.Emit(ConnectionEstablished{})
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("command was not sent after connection")
	}
}

func TestSenderContextCancelled(t *testing.T) {
	_, notifier := newTestSender(t, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go notifier.Emit(CommandSent{Ctx: ctx, Command: message.StateCommand{}, Done: done})
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("command was not cancelled")
	}
}

func TestSenderClosed(t *testing.T) {
	s, notifier := newTestSender(t, time.Minute)
	done := make(chan error, 1)
	go notifier.Emit(CommandSent{
		Ctx:     context.Background(),
		Command: message.StateCommand{},
		Done:    done,
	})
	time.Sleep(20 * time.Millisecond)
	s.Close()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrConnectionLost)
	case <-time.After(time.Second):
		t.Fatal("command was not failed on close")
	}
}

func TestSenderUnmatchedResponse(t *testing.T) {
	_, notifier := newTestSender(t, time.Second)
	// Unsolicited pushes have no pending entry and are simply dropped here;
	// the state keeper consumes them on its own.
	notifier.Emit(ResponseReceived{
		Seq:         0,
		Response:    &message.Response{Kind: message.KindStatus},
		CommandKind: message.KindNone,
	})
}

func TestSenderSequenceAllocation(t *testing.T) {
	s, _ := newTestSender(t, time.Second)

	assert.Equal(t, uint32(0), s.allocate(message.HeartbeatCommand{}))
	assert.Equal(t, uint32(1), s.allocate(message.StateCommand{}))
	assert.Equal(t, uint32(2), s.allocate(message.UpdateCommand{}))
	// Heartbeats never consume a number.
	assert.Equal(t, uint32(0), s.allocate(message.HeartbeatCommand{}))
	assert.Equal(t, uint32(3), s.allocate(message.StateCommand{}))

	s.mu.Lock()
	s.seq = 1000
	s.mu.Unlock()
	assert.Equal(t, uint32(1), s.allocate(message.StateCommand{}))
}
