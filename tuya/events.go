package tuya

import (
	"context"

	"local-tuya/message"
)

// Events flowing through a device session. Dispatch is synchronous and in
// registration order, see the events package.

// ConnectionEstablished is emitted by the transport once a TCP session to
// the device is up.
type ConnectionEstablished struct{}

// ConnectionClosed is emitted when the connection goes down. Err is nil on a
// planned close; otherwise the transport will reconnect.
type ConnectionClosed struct {
	Err error
}

// DataReceived carries the bytes of a single inbound wire frame.
type DataReceived struct {
	Data []byte
}

// DataSent carries outbound frame bytes to the transport. Ctx bounds the
// wait for a connection; a nil Ctx waits indefinitely.
type DataSent struct {
	Ctx  context.Context
	Data []byte
}

// CommandSent asks the sender to deliver a command. The sender completes
// Done exactly once, before the emit returns, with nil or the send failure.
// Ctx bounds the wait for the connection to be established.
type CommandSent struct {
	Ctx     context.Context
	Command message.Command
	Done    chan error
}

// ResponseReceived is emitted by the receiver for every decoded frame.
// CommandKind identifies the command the response answers; KindNone for
// unsolicited status pushes.
type ResponseReceived struct {
	Seq         uint32
	Response    *message.Response
	CommandKind message.Kind
}

// StateUpdated is emitted after the state keeper mutated its snapshot.
// Values is a copy; observers may keep it.
type StateUpdated struct {
	Values message.Values
}
