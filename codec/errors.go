package codec

import "fmt"

// DecodeError reports a malformed, unauthentic or undecryptable inbound
// frame. Reason is a short stable tag ("prefix", "unknown", "short",
// "length", "suffix", "decrypt", "json", "no dps") so callers can log it
// without string matching.
type DecodeError struct {
	Reason string
	Detail string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "decode " + e.Reason
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Incomplete reports whether the frame only needs more bytes to decode, as
// opposed to being corrupt.
func (e *DecodeError) Incomplete() bool { return e.Reason == "short" }

func decodeErr(reason, format string, args ...any) *DecodeError {
	return &DecodeError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// EncodeError reports an unsupported command or a serialization failure.
// It is fatal for the call and never retried.
type EncodeError struct {
	Detail string
	Err    error
}

func (e *EncodeError) Error() string {
	msg := "encode: " + e.Detail
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EncodeError) Unwrap() error { return e.Err }
