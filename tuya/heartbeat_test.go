package tuya

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"local-tuya/events"
	"local-tuya/message"
)

func TestHeartbeatRunsWhileConnected(t *testing.T) {
	notifier := events.NewNotifier(nil)
	h := NewHeartbeat("test", 10*time.Millisecond, notifier)
	defer h.Close()

	var beats atomic.Int32
	events.Register(notifier, func(e CommandSent) error {
		assert.Equal(t, message.KindHeartbeat, e.Command.Kind())
		beats.Add(1)
		e.Done <- nil
		return nil
	})

	notifier.Emit(ConnectionEstablished{})
	assert.Eventually(t, func() bool { return beats.Load() >= 3 },
		time.Second, time.Millisecond)

	notifier.Emit(ConnectionClosed{})
	stopped := beats.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, beats.Load())
}

func TestHeartbeatCloseWithoutStart(t *testing.T) {
	notifier := events.NewNotifier(nil)
	h := NewHeartbeat("test", time.Second, notifier)
	h.Close() // never connected, must not block
}
