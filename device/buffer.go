package device

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"local-tuya/backoff"
	"local-tuya/events"
	"local-tuya/message"
	"local-tuya/tuya"
)

// ErrCancelled completes outstanding update waiters when the buffer is
// closed.
var ErrCancelled = errors.New("update cancelled")

// UpdateBuffer debounces updates to the device.
//
// Incoming values are merged into a buffer, filtered against the observed
// state and the device constraints, and sent after the debounce delay so
// rapid successive commands collapse into one device write. At most one
// send is in flight at any time. After a send, a check-and-retry task
// re-filters the buffer against the latest state on each backoff tick and
// resends what the device has not confirmed, up to the configured number of
// retries. The desired buffer is preserved across that window; keys are
// dropped only when the observed state catches up.
type UpdateBuffer struct {
	log          *log.Entry
	delay        time.Duration
	protocol     *tuya.Protocol
	constraints  Constraints
	retries      int
	retryBackoff backoff.Backoff

	mu             sync.Mutex
	state          message.Values
	stateReady     chan struct{} // closed on first snapshot
	buffer         message.Values
	inflight       chan struct{} // non-nil while a send is in progress
	debounceCancel context.CancelFunc
	waiters        []chan error
	retryRunning   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewUpdateBuffer(
	name string,
	delay time.Duration,
	protocol *tuya.Protocol,
	notifier *events.Notifier,
	constraints Constraints,
	retries int,
	retryBackoff backoff.Backoff,
) *UpdateBuffer {
	ctx, cancel := context.WithCancel(context.Background())
	b := &UpdateBuffer{
		log:          log.WithField("device", name),
		delay:        delay,
		protocol:     protocol,
		constraints:  constraints,
		retries:      retries,
		retryBackoff: retryBackoff,
		stateReady:   make(chan struct{}),
		buffer:       message.Values{},
		ctx:          ctx,
		cancel:       cancel,
	}
	events.Register(notifier, func(e tuya.StateUpdated) error {
		b.setState(e.Values)
		return nil
	})
	return b
}

// Close cancels the debounce and retry tasks and fails outstanding waiters
// with ErrCancelled. It waits for every task to return.
func (b *UpdateBuffer) Close() {
	b.cancel()
	b.mu.Lock()
	if b.debounceCancel != nil {
		b.debounceCancel()
		b.debounceCancel = nil
	}
	waiters := b.waiters
	b.waiters = nil
	b.mu.Unlock()
	for _, w := range waiters {
		w <- ErrCancelled
	}
	b.wg.Wait()
}

func (b *UpdateBuffer) setState(state message.Values) {
	b.mu.Lock()
	first := b.state == nil
	b.state = state.Copy()
	b.mu.Unlock()
	if first {
		close(b.stateReady)
	}
}

// Update merges values into the buffer and waits until the pending cycle
// completes: the buffered values were sent, the buffer became empty after
// filtering, or the send failed. The first update blocks until an initial
// state snapshot is available.
func (b *UpdateBuffer) Update(ctx context.Context, values message.Values) error {
	filtered, err := b.filter(ctx, values)
	if err != nil {
		return err
	}
	// Wait for any send in progress: it cannot be cancelled, and the buffer
	// it sent is still the confirmation baseline.
	if err := b.waitIdle(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	b.buffer = filtered
	if b.debounceCancel != nil {
		// Restart the debounce window.
		b.debounceCancel()
		b.debounceCancel = nil
	}
	if len(filtered) == 0 {
		waiters := b.waiters
		b.waiters = nil
		b.mu.Unlock()
		b.log.Debug("cancelling previous commands as update is no longer required")
		for _, w := range waiters {
			w <- nil
		}
		return nil
	}
	debounceCtx, debounceCancel := context.WithCancel(b.ctx)
	b.debounceCancel = debounceCancel
	waiter := make(chan error, 1)
	b.waiters = append(b.waiters, waiter)
	b.wg.Add(1)
	go b.debounce(debounceCtx)
	b.mu.Unlock()

	select {
	case err := <-waiter:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// filter merges the buffer with the incoming values, drops keys already at
// their desired value in the snapshot and applies the constraints. Unknown
// datapoints pass through.
func (b *UpdateBuffer) filter(ctx context.Context, values message.Values) (message.Values, error) {
	b.mu.Lock()
	state := b.state
	ready := b.stateReady
	b.mu.Unlock()
	if state == nil {
		select {
		case <-ready:
		case <-b.ctx.Done():
			return nil, ErrCancelled
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	b.mu.Lock()
	state = b.state
	base := b.buffer.Merge(values)
	b.mu.Unlock()

	filtered := make(message.Values, len(base))
	for k, v := range base {
		if current, ok := state[k]; ok && message.Equal(current, v) {
			continue
		}
		filtered[k] = v
	}
	return b.constraints.Filter(filtered, state), nil
}

// waitIdle blocks while a send is in flight.
func (b *UpdateBuffer) waitIdle(ctx context.Context) error {
	for {
		b.mu.Lock()
		inflight := b.inflight
		b.mu.Unlock()
		if inflight == nil {
			return nil
		}
		select {
		case <-inflight:
		case <-b.ctx.Done():
			return ErrCancelled
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// debounce waits for the delay, then sends the buffered values. Cancelling
// the debounce only aborts the wait; a send in progress always completes.
func (b *UpdateBuffer) debounce(ctx context.Context) {
	defer b.wg.Done()
	if b.delay > 0 {
		b.log.Debugf("received command, waiting %s before sending to device", b.delay)
		timer := time.NewTimer(b.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		}
	} else if ctx.Err() != nil {
		return
	}

	b.mu.Lock()
	if ctx.Err() != nil {
		// Cancelled between the timer firing and the send claim.
		b.mu.Unlock()
		return
	}
	b.debounceCancel = nil
	values := b.buffer.Copy()
	b.mu.Unlock()
	if len(values) == 0 {
		b.resolveWaiters(nil)
		return
	}

	b.log.Debugf("updating device with: %v", values)
	err := b.send(values)
	if err == nil && b.retries == 0 {
		// No confirmation phase: the buffer is done with.
		b.mu.Lock()
		b.buffer = message.Values{}
		b.mu.Unlock()
	}
	b.resolveWaiters(err)
	b.startCheckAndRetry()
}

// send claims the single-flight slot and performs one device update.
func (b *UpdateBuffer) send(values message.Values) error {
	for {
		b.mu.Lock()
		if b.inflight == nil {
			b.inflight = make(chan struct{})
			b.mu.Unlock()
			break
		}
		inflight := b.inflight
		b.mu.Unlock()
		select {
		case <-inflight:
		case <-b.ctx.Done():
			return ErrCancelled
		}
	}
	err := b.protocol.Update(b.ctx, values)
	b.mu.Lock()
	close(b.inflight)
	b.inflight = nil
	b.mu.Unlock()
	return err
}

func (b *UpdateBuffer) resolveWaiters(err error) {
	b.mu.Lock()
	waiters := b.waiters
	b.waiters = nil
	b.mu.Unlock()
	for _, w := range waiters {
		w <- err
	}
}

func (b *UpdateBuffer) startCheckAndRetry() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.retries == 0 || b.retryRunning || b.ctx.Err() != nil {
		return
	}
	b.retryRunning = true
	b.wg.Add(1)
	go b.checkAndRetry()
}

// checkAndRetry resends the remaining buffer until the observed state
// matches the update or the retry budget runs out. The backoff is reset
// when the loop ends so the next cycle starts from the first delay.
func (b *UpdateBuffer) checkAndRetry() {
	defer b.wg.Done()
	defer func() {
		b.retryBackoff.Reset()
		b.mu.Lock()
		b.retryRunning = false
		b.mu.Unlock()
	}()
	for attempt := 0; ; {
		if err := b.retryBackoff.Wait(b.ctx); err != nil {
			return
		}
		b.mu.Lock()
		state := b.state
		remaining := make(message.Values, len(b.buffer))
		for k, v := range b.buffer {
			if current, ok := state[k]; ok && message.Equal(current, v) {
				continue
			}
			remaining[k] = v
		}
		b.buffer = remaining
		b.mu.Unlock()
		if len(remaining) == 0 {
			if attempt == 0 {
				b.log.Debug("update confirmed")
			} else {
				b.log.Debugf("update confirmed after retry %d", attempt)
			}
			return
		}
		if attempt == b.retries {
			b.log.Errorf("update still not confirmed after %d retries, aborting", attempt)
			return
		}
		attempt++
		b.log.Debugf("update not confirmed, attempting new update, retry %d...", attempt)
		if err := b.send(remaining.Copy()); err != nil {
			b.log.WithError(err).Error("retrying update failed")
		}
	}
}
