package tuya

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"local-tuya/events"
	"local-tuya/message"
)

// Heartbeat keeps the connection alive with a periodic liveness command.
// The task runs only while connected: it starts on ConnectionEstablished and
// stops on ConnectionClosed. Timeouts are logged and tolerated.
type Heartbeat struct {
	log      *log.Entry
	interval time.Duration
	notifier *events.Notifier
	task     periodicTask
}

func NewHeartbeat(name string, interval time.Duration, notifier *events.Notifier) *Heartbeat {
	h := &Heartbeat{
		log:      log.WithField("device", name),
		interval: interval,
		notifier: notifier,
	}
	events.Register(notifier, func(ConnectionEstablished) error {
		h.task.start(h.interval, h.beat)
		return nil
	})
	events.Register(notifier, func(ConnectionClosed) error {
		h.task.stop()
		return nil
	})
	return h
}

// Close stops the task if it is still running.
func (h *Heartbeat) Close() { h.task.stop() }

func (h *Heartbeat) beat(ctx context.Context) {
	done := make(chan error, 1)
	h.notifier.Emit(CommandSent{Ctx: ctx, Command: message.HeartbeatCommand{}, Done: done})
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		h.log.WithError(err).Warn("heartbeat failed")
	}
}

// periodicTask runs fn immediately and then on every tick, in its own
// goroutine, until stopped. start after stop launches a fresh run.
type periodicTask struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (t *periodicTask) start(interval time.Duration, fn func(context.Context)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return // already running
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			fn(ctx)
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (t *periodicTask) stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel = nil
	t.done = nil
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
