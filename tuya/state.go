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

// State keeps the last observed complete device state.
//
// A full refresh runs periodically while connected. Unsolicited status
// pushes are merged into the snapshot, but only once an initial full state
// response has been received: a delta observed before the baseline could be
// newer than the state response it would be merged into, so it is discarded.
// Every snapshot mutation is followed by a StateUpdated emission.
type State struct {
	log      *log.Entry
	interval time.Duration
	notifier *events.Notifier
	task     periodicTask

	mu       sync.Mutex
	snapshot message.Values
}

func NewState(name string, refreshInterval time.Duration, notifier *events.Notifier) *State {
	s := &State{
		log:      log.WithField("device", name),
		interval: refreshInterval,
		notifier: notifier,
	}
	events.Register(notifier, s.update)
	events.Register(notifier, func(ConnectionEstablished) error {
		s.task.start(s.interval, s.refresh)
		return nil
	})
	events.Register(notifier, func(ConnectionClosed) error {
		s.task.stop()
		return nil
	})
	return s
}

// Close stops the refresh task if it is still running.
func (s *State) Close() { s.task.stop() }

// Snapshot returns a copy of the current snapshot, nil before the first
// state response.
func (s *State) Snapshot() message.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return nil
	}
	return s.snapshot.Copy()
}

func (s *State) refresh(ctx context.Context) {
	s.log.Debug("refreshing device state")
	done := make(chan error, 1)
	s.notifier.Emit(CommandSent{Ctx: ctx, Command: message.StateCommand{}, Done: done})
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		s.log.WithError(err).Warn("timeout waiting for state response")
	}
}

func (s *State) update(e ResponseReceived) error {
	resp := e.Response
	if resp.Err != nil {
		// The sender already reported the error to its waiter.
		return nil
	}
	switch resp.Kind {
	case message.KindState:
		if len(resp.Values) == 0 {
			return nil
		}
		s.mu.Lock()
		changed := !resp.Values.Equal(s.snapshot)
		if changed {
			s.snapshot = resp.Values.Copy()
		}
		snapshot := s.snapshot.Copy()
		s.mu.Unlock()
		if changed {
			s.log.Debugf("received new device state: %v", snapshot)
			s.notifier.Emit(StateUpdated{Values: snapshot})
		}
	case message.KindStatus:
		s.mu.Lock()
		if s.snapshot == nil {
			// No baseline yet, the delta might be newer than the state
			// response we are waiting for.
			s.mu.Unlock()
			return nil
		}
		merged := s.snapshot.Merge(resp.Values)
		changed := !merged.Equal(s.snapshot)
		if changed {
			s.snapshot = merged
		}
		snapshot := s.snapshot.Copy()
		s.mu.Unlock()
		if changed {
			s.log.Debugf("received device state update: %v", resp.Values)
			s.notifier.Emit(StateUpdated{Values: snapshot})
		}
	}
	return nil
}
