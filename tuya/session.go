package tuya

import (
	"context"

	"github.com/pkg/errors"

	"local-tuya/backoff"
	"local-tuya/codec"
	"local-tuya/events"
	"local-tuya/message"
)

// Protocol is the narrow surface the device layer uses to talk to the
// hardware: it turns an update into a command emission and reports the send
// outcome.
type Protocol struct {
	notifier *events.Notifier
}

// NewProtocol wraps a notifier carrying a wired sender.
func NewProtocol(notifier *events.Notifier) *Protocol {
	return &Protocol{notifier: notifier}
}

// Update sends the values to the device and waits for the response within
// the session timeout. The wait for the connection is bounded by ctx only.
func (p *Protocol) Update(ctx context.Context, values message.Values) error {
	done := make(chan error, 1)
	p.notifier.Emit(CommandSent{
		Ctx:     ctx,
		Command: message.UpdateCommand{Values: values.Copy()},
		Done:    done,
	})
	return <-done
}

// Session assembles the per-device client stack: codec, transport, receiver,
// sender, heartbeat and state keeper, all wired on one notifier. Components
// are created at session start and torn down together on Close.
type Session struct {
	Notifier *events.Notifier
	Protocol *Protocol
	State    *State

	transport *Transport
	sender    *Sender
	heartbeat *Heartbeat
}

// NewSession wires a session for the device. Registration order on shared
// events is fixed here: the sender resolves pending commands before the
// periodic tasks are stopped or started.
func NewSession(name string, cfg Config, notifier *events.Notifier) (*Session, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "device %s", name)
	}
	c, err := codec.New(cfg.Key)
	if err != nil {
		return nil, errors.Wrapf(err, "device %s", name)
	}
	bo := backoff.NewSequence(cfg.ConnectionBackoff...)
	transport := NewTransport(name, cfg, bo, notifier)
	NewReceiver(name, c, notifier)
	sender := NewSender(name, c, cfg.Timeout, notifier)
	heartbeat := NewHeartbeat(name, cfg.HeartbeatInterval, notifier)
	state := NewState(name, cfg.StateRefreshInterval, notifier)
	return &Session{
		Notifier:  notifier,
		Protocol:  NewProtocol(notifier),
		State:     state,
		transport: transport,
		sender:    sender,
		heartbeat: heartbeat,
	}, nil
}

// Start opens the transport; connection management is internal from then on.
func (s *Session) Start() {
	s.transport.Start()
}

// Close tears the session down: the transport close emits ConnectionClosed,
// which resolves pending commands and stops the periodic tasks, then the
// sender refuses further sends.
func (s *Session) Close() {
	s.transport.Close()
	s.heartbeat.Close()
	s.State.Close()
	s.sender.Close()
}
