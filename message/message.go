// Package message defines the commands and responses exchanged with a Tuya
// device, and the Values maps they carry.
//
// A device exposes datapoints keyed by short numeric strings ("1", "2", ...).
// Commands are packed into wire frames by the codec package; responses come
// back the same way and are correlated to commands by (sequence, kind).
package message

import "fmt"

// Value is a datapoint value: bool, integer, float or string.
// JSON decoding produces float64 for all numbers, so comparisons must go
// through Equal rather than ==.
type Value = any

// Values maps datapoint keys to values.
type Values map[string]Value

// Copy returns a shallow copy, never nil.
func (v Values) Copy() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Merge returns v overridden by other, leaving both inputs untouched.
func (v Values) Merge(other Values) Values {
	out := v.Copy()
	for k, val := range other {
		out[k] = val
	}
	return out
}

// Equal compares two Values maps using value-level Equal semantics.
func (v Values) Equal(other Values) bool {
	if len(v) != len(other) {
		return false
	}
	for k, val := range v {
		o, ok := other[k]
		if !ok || !Equal(val, o) {
			return false
		}
	}
	return true
}

// Equal compares two datapoint values, treating numeric types as equal when
// they represent the same number. The device reports integers, but values
// that went through encoding/json arrive as float64.
func Equal(a, b Value) bool {
	if af, ok := toFloat(a); ok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	return a == b
}

func toFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// Kind is the wire command code shared by a command and its response.
type Kind uint32

const (
	// KindNone marks responses that have no matching command, such as
	// unsolicited status pushes.
	KindNone      Kind = 0
	KindUpdate    Kind = 7
	KindStatus    Kind = 8
	KindHeartbeat Kind = 9
	KindState     Kind = 10
)

func (k Kind) String() string {
	switch k {
	case KindUpdate:
		return "update"
	case KindStatus:
		return "status"
	case KindHeartbeat:
		return "heartbeat"
	case KindState:
		return "state"
	case KindNone:
		return "none"
	}
	return fmt.Sprintf("kind(%d)", uint32(k))
}

// Command is a request to the device.
type Command interface {
	Kind() Kind
	// Payload returns the JSON-serializable body, nil for empty commands.
	Payload() map[string]any
}

// HeartbeatCommand keeps the connection alive. Devices answer it with
// sequence number 0 whatever was sent.
type HeartbeatCommand struct{}

func (HeartbeatCommand) Kind() Kind              { return KindHeartbeat }
func (HeartbeatCommand) Payload() map[string]any { return nil }

// StateCommand requests the full device state.
type StateCommand struct{}

func (StateCommand) Kind() Kind              { return KindState }
func (StateCommand) Payload() map[string]any { return nil }

// UpdateCommand sets datapoint values on the device.
type UpdateCommand struct {
	Values Values
}

func (UpdateCommand) Kind() Kind { return KindUpdate }
func (c UpdateCommand) Payload() map[string]any {
	return map[string]any{"dps": map[string]Value(c.Values)}
}

// Response is a decoded device response. Values is only populated for state
// and status responses. Err carries a device or decoding error; the response
// is still correlated to its pending command so the waiter sees the error.
type Response struct {
	Kind   Kind
	Values Values
	Err    error
}

// ResponseError is returned when the device answers with a non-zero return
// code. The body is the raw (unencrypted) error descriptor from the device.
type ResponseError struct {
	Body string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("error from device: %s", e.Body)
}

// CommandKind maps a response code to the kind of command that triggered it.
// Status responses are pushed by the device without a command.
func CommandKind(k Kind) Kind {
	if k == KindStatus {
		return KindNone
	}
	return k
}
